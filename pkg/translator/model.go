package translator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/apperrors"
	"github.com/queryline-io/queryline-engine/pkg/llm"
	"github.com/queryline-io/queryline-engine/pkg/models"
	"github.com/queryline-io/queryline-engine/pkg/retry"
)

const (
	// DefaultModelTimeout bounds one model call. A hung endpoint surfaces as
	// ModelUnavailable so the orchestrator can fall back.
	DefaultModelTimeout = 30 * time.Second

	// modelConfidence is the heuristic confidence assigned to model
	// translations. Models do not self-report calibrated confidence.
	modelConfidence = 0.85

	maxPriorTurns = 5
)

var (
	sqlSectionPattern         = regexp.MustCompile(`(?is)SQL:\s*(.+?)(?:EXPLANATION:|$)`)
	querySectionPattern       = regexp.MustCompile(`(?is)QUERY:\s*(.+?)(?:EXPLANATION:|$)`)
	explanationSectionPattern = regexp.MustCompile(`(?is)EXPLANATION:\s*(.+?)(?:CHART:|$)`)
	chartSectionPattern       = regexp.MustCompile(`(?i)CHART:\s*([a-z]+)`)
	codeFencePattern          = regexp.MustCompile("(?is)```(?:sql|json)?\\s*(.+?)\\s*```")
)

// ModelStrategy translates questions by prompting a configured language
// model and defensively parsing its sectioned reply.
type ModelStrategy struct {
	client  llm.Client
	timeout time.Duration
	logger  *zap.Logger
}

var _ Strategy = (*ModelStrategy)(nil)

// NewModelStrategy creates a model-backed strategy. A timeout of zero uses
// DefaultModelTimeout.
func NewModelStrategy(client llm.Client, timeout time.Duration, logger *zap.Logger) *ModelStrategy {
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	return &ModelStrategy{
		client:  client,
		timeout: timeout,
		logger:  logger.Named("translator.model"),
	}
}

// Name implements Strategy.
func (s *ModelStrategy) Name() string { return "model" }

// Translate implements Strategy. Transport failures and timeouts surface as
// ModelUnavailable; replies the parser cannot extract a query from surface
// as ModelResponseUnparseable. Both are typed so the orchestrator can fall
// back to the pattern strategy.
func (s *ModelStrategy) Translate(ctx context.Context, req *models.TranslationRequest) (*models.TranslationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	system, prompt := buildPrompt(req)

	var resp *llm.CompletionResult
	err := retry.DoIfRetryable(ctx, retry.DefaultConfig(), func() error {
		var callErr error
		resp, callErr = s.client.Complete(ctx, system, prompt)
		return callErr
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || llm.IsRetryable(err) {
			return nil, apperrors.Wrap(apperrors.KindModelUnavailable, "translator",
				"model endpoint unavailable", err)
		}
		return nil, apperrors.Wrap(apperrors.KindModelUnavailable, "translator",
			"model call failed", err)
	}

	result, err := parseModelReply(resp.Content, req.Dialect)
	if err != nil {
		s.logger.Warn("unparseable model reply",
			zap.Int("reply_len", len(resp.Content)),
			zap.Error(err))
		return nil, err
	}

	s.logger.Debug("model translation",
		zap.String("model", s.client.Model()),
		zap.Int("query_len", len(result.Query)))

	return result, nil
}

// buildPrompt serializes the schema compactly and embeds prior turns so
// follow-up questions resolve references like "those sites".
func buildPrompt(req *models.TranslationRequest) (system, prompt string) {
	var b strings.Builder

	b.WriteString("DATABASE SCHEMA:\n")
	b.WriteString(formatSchema(req.Schema))

	if len(req.PriorTurns) > 0 {
		turns := req.PriorTurns
		if len(turns) > maxPriorTurns {
			turns = turns[len(turns)-maxPriorTurns:]
		}
		b.WriteString("\nPRIOR EXCHANGES:\n")
		for _, turn := range turns {
			fmt.Fprintf(&b, "Q: %s\nQuery: %s\n", turn.Question, turn.Query)
		}
	}

	fmt.Fprintf(&b, "\nUSER QUESTION: %s\n", req.Question)

	if req.Dialect == models.DialectDocument {
		b.WriteString(`
INSTRUCTIONS:
1. Produce a single read-only JSON query specification answering the question
2. The specification shape is {"op":"find|aggregate|count","collection":...,"filter":...,"pipeline":...,"sort":...}
3. Use only collections and fields from the schema provided
4. Never use $where, $out, $merge or any operator that writes or runs code

OUTPUT FORMAT (exactly this shape):

QUERY:
<the JSON specification>

EXPLANATION:
<one or two sentences on what it returns>

CHART:
<one of: bar, line, pie, table, none>
`)
		return "You are an expert query assistant for a trial supply management system backed by a document database.", b.String()
	}

	b.WriteString(`
INSTRUCTIONS:
1. Generate one safe SELECT SQL query answering the question
2. Use only tables and columns from the schema provided
3. Include JOINs where multiple tables are needed and ORDER BY for readability
4. Use aggregate functions (COUNT, SUM, AVG) when appropriate
5. Never generate INSERT, UPDATE, DELETE, DROP or any other mutation

OUTPUT FORMAT (exactly this shape):

SQL:
<the complete SQL query>

EXPLANATION:
<one or two sentences on what it returns>

CHART:
<one of: bar, line, pie, table, none>
`)
	return "You are an expert SQL assistant for a trial supply management system.", b.String()
}

func formatSchema(schema *models.SchemaDescriptor) string {
	if schema == nil || schema.IsEmpty() {
		return "No schema available\n"
	}

	var b strings.Builder
	for _, table := range schema.Tables {
		fmt.Fprintf(&b, "Table: %s\n", table.Name)
		for _, col := range table.Columns {
			nullable := ""
			if col.Nullable {
				nullable = ", nullable"
			}
			fmt.Fprintf(&b, "  - %s (%s%s)\n", col.Name, col.DataType, nullable)
		}
	}
	return b.String()
}

// parseModelReply extracts the query, explanation and chart hint from a
// free-text reply. Tolerates code fences, surrounding prose and missing
// optional sections; only a missing query is fatal.
func parseModelReply(text string, dialect models.Dialect) (*models.TranslationResult, error) {
	queryPattern := sqlSectionPattern
	if dialect == models.DialectDocument {
		queryPattern = querySectionPattern
	}

	var query string
	if m := queryPattern.FindStringSubmatch(text); m != nil {
		query = strings.TrimSpace(m[1])
	} else if m := codeFencePattern.FindStringSubmatch(text); m != nil {
		query = strings.TrimSpace(m[1])
	}

	query = stripCodeFences(query)
	if dialect != models.DialectDocument {
		// Drop any preamble the model put before the statement.
		if idx := strings.Index(strings.ToLower(query), "select"); idx > 0 {
			query = query[idx:]
		}
	}

	if query == "" {
		return nil, apperrors.New(apperrors.KindModelResponseUnparseable, "translator",
			"no query found in model reply")
	}

	explanation := "Query generated from your question."
	if m := explanationSectionPattern.FindStringSubmatch(text); m != nil {
		if e := strings.TrimSpace(m[1]); e != "" {
			explanation = e
		}
	}

	chart := models.ChartTable
	if m := chartSectionPattern.FindStringSubmatch(text); m != nil {
		if candidate := strings.ToLower(m[1]); models.ValidChartType(candidate) {
			chart = models.ChartType(candidate)
		}
	}

	resultDialect := models.DialectSQL
	if dialect == models.DialectDocument {
		resultDialect = models.DialectDocument
	}

	return &models.TranslationResult{
		Query:          query,
		Dialect:        resultDialect,
		Explanation:    explanation,
		SuggestedChart: chart,
		Confidence:     modelConfidence,
	}, nil
}

func stripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```sql", "")
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
