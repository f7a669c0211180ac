// Package safety gates candidate queries before the human-approval step.
// It is a gate, not a sanitizer: queries are never rewritten, and the scan
// is textual and conservative. Translator output is untrusted whether it
// came from the pattern catalog or from a model, and a false rejection is
// preferred over a false acceptance.
package safety

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/queryline-io/queryline-engine/pkg/models"
)

// MaxQueryLength is the anti-abuse bound on query text.
const MaxQueryLength = 8192

// sqlBlockedKeywords are mutation/DDL verbs and administrative commands that
// must not appear anywhere in a read-only query, comments included.
var sqlBlockedKeywords = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|truncate|alter|create|grant|revoke|merge|call|exec|execute|shutdown|backup|restore|attach|detach|vacuum|pragma|copy|load_file|outfile|dumpfile|xp_\w+|sp_\w+)\b`)

// documentBlockedOperators are server-side-execution and write-stage
// operators that have no place in a read-only document query.
var documentBlockedOperators = []string{
	"$where", "$function", "$accumulator", "$out", "$merge", "mapreduce",
	"drop", "insert", "update", "delete", "rename",
}

// documentReadOps are the read-only operations a document query spec may name.
var documentReadOps = map[string]bool{"find": true, "aggregate": true, "count": true}

// singleQuoted extracts the contents of single-quoted SQL string literals.
var singleQuoted = regexp.MustCompile(`'((?:[^']|'')*)'`)

// Validate applies the safety rules in order; the first match wins. It is a
// pure function: the same query and dialect always produce the same verdict,
// and it is computed fresh for every submission, including re-submissions of
// previously approved text.
func Validate(query string, dialect models.Dialect) models.ValidationVerdict {
	if dialect == models.DialectDocument {
		return validateDocument(query)
	}
	return validateSQL(query)
}

func validateSQL(query string) models.ValidationVerdict {
	trimmed := strings.TrimSpace(query)
	lower := strings.ToLower(trimmed)

	// A query led by a mutation verb reports the keyword, not the weaker
	// read-only complaint.
	if fields := strings.Fields(lower); len(fields) > 0 && sqlBlockedKeywords.MatchString(fields[0]) {
		return models.Reject(models.ReasonForbiddenKeyword,
			fmt.Sprintf("query contains forbidden keyword %q", fields[0]))
	}

	// Rule 1: must begin with a read-only operation.
	if !strings.HasPrefix(lower, "select") && !strings.HasPrefix(lower, "with") {
		return models.Reject(models.ReasonNotReadOnly,
			"only SELECT queries are allowed")
	}

	// Rule 2: blocked keywords anywhere in the text, plus statement
	// separators outside string literals (multi-statement injection).
	if m := sqlBlockedKeywords.FindString(trimmed); m != "" {
		return models.Reject(models.ReasonForbiddenKeyword,
			fmt.Sprintf("query contains forbidden keyword %q", strings.ToLower(m)))
	}
	if hasSemicolonOutsideStrings(stripTrailingSemicolon(trimmed)) {
		return models.Reject(models.ReasonForbiddenKeyword,
			"multiple SQL statements are not allowed")
	}

	// Rule 3: anti-abuse length bound.
	if len(trimmed) > MaxQueryLength {
		return models.Reject(models.ReasonTooLong,
			fmt.Sprintf("query exceeds maximum length of %d characters", MaxQueryLength))
	}

	// Rule 4: SQLi fingerprinting on string-literal contents. Literals are
	// the only place attacker-controlled values survive translation intact.
	for _, m := range singleQuoted.FindAllStringSubmatch(trimmed, -1) {
		if isSQLi, fingerprint := libinjection.IsSQLi(m[1]); isSQLi {
			return models.Reject(models.ReasonInjectionDetected,
				fmt.Sprintf("string literal matches SQL injection fingerprint %s", fingerprint))
		}
	}

	return models.Accept()
}

func validateDocument(query string) models.ValidationVerdict {
	trimmed := strings.TrimSpace(query)
	lower := strings.ToLower(trimmed)

	// Rule 1: the query must be a JSON object naming a read-only operation.
	var spec struct {
		Op string `json:"op"`
	}
	if err := json.Unmarshal([]byte(trimmed), &spec); err != nil || !documentReadOps[spec.Op] {
		return models.Reject(models.ReasonNotReadOnly,
			"document query must be a JSON object with op find, aggregate, or count")
	}

	// Rule 2: blocked operators anywhere in the raw text, keys and values
	// alike. A textual scan, not a structural walk.
	for _, op := range documentBlockedOperators {
		if strings.Contains(lower, op) {
			return models.Reject(models.ReasonForbiddenKeyword,
				fmt.Sprintf("document query contains forbidden operator %q", op))
		}
	}

	// Rule 3: anti-abuse length bound.
	if len(trimmed) > MaxQueryLength {
		return models.Reject(models.ReasonTooLong,
			fmt.Sprintf("query exceeds maximum length of %d characters", MaxQueryLength))
	}

	return models.Accept()
}

// hasSemicolonOutsideStrings reports whether the SQL contains a semicolon
// outside single- or double-quoted regions. Doubled quotes ('') exit and
// immediately re-enter the string state, which keeps them inside.
func hasSemicolonOutsideStrings(sqlText string) bool {
	const (
		stateNormal = iota
		stateSingle
		stateDouble
	)

	state := stateNormal
	var prev rune

	for _, c := range sqlText {
		switch state {
		case stateNormal:
			switch c {
			case ';':
				return true
			case '\'':
				state = stateSingle
			case '"':
				state = stateDouble
			}
		case stateSingle:
			if c == '\'' && prev != '\\' {
				state = stateNormal
			}
		case stateDouble:
			if c == '"' && prev != '\\' {
				state = stateNormal
			}
		}
		prev = c
	}
	return false
}

// stripTrailingSemicolon removes one trailing semicolon so a conventionally
// terminated single statement is not mistaken for two.
func stripTrailingSemicolon(sqlText string) string {
	sqlText = strings.TrimRight(sqlText, " \t\n\r")
	return strings.TrimRight(strings.TrimSuffix(sqlText, ";"), " \t\n\r")
}
