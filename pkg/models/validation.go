package models

// ReasonCode classifies why the safety validator rejected a query.
type ReasonCode string

const (
	ReasonNotReadOnly       ReasonCode = "NOT_READ_ONLY"
	ReasonForbiddenKeyword  ReasonCode = "FORBIDDEN_KEYWORD"
	ReasonTooLong           ReasonCode = "TOO_LONG"
	ReasonInjectionDetected ReasonCode = "INJECTION_DETECTED"
)

// ValidationVerdict is the safety validator's decision for one query.
// Computed fresh for every query, including resubmissions after edit;
// never mutated.
type ValidationVerdict struct {
	Accepted   bool       `json:"accepted"`
	ReasonCode ReasonCode `json:"reason_code,omitempty"`
	Message    string     `json:"message,omitempty"`
}

// Accept returns the accepting verdict.
func Accept() ValidationVerdict {
	return ValidationVerdict{Accepted: true}
}

// Reject returns a rejecting verdict with the given reason.
func Reject(code ReasonCode, message string) ValidationVerdict {
	return ValidationVerdict{Accepted: false, ReasonCode: code, Message: message}
}
