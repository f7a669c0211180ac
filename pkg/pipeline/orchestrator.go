// Package pipeline orchestrates the question-to-result state machine:
// translate, validate, await human approval, execute, visualize. Each
// request is an independent unit of work; only the schema cache and the
// connection manager are shared, and both are concurrency-safe.
package pipeline

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/adapters/datasource"
	"github.com/queryline-io/queryline-engine/pkg/apperrors"
	"github.com/queryline-io/queryline-engine/pkg/logging"
	"github.com/queryline-io/queryline-engine/pkg/models"
	"github.com/queryline-io/queryline-engine/pkg/safety"
	"github.com/queryline-io/queryline-engine/pkg/schema"
	"github.com/queryline-io/queryline-engine/pkg/translator"
	"github.com/queryline-io/queryline-engine/pkg/viz"
)

// State names a position in the pipeline's state machine.
type State string

const (
	StateReceived         State = "received"
	StateTranslating      State = "translating"
	StateValidating       State = "validating"
	StateAwaitingApproval State = "awaiting_approval"
	StateExecuting        State = "executing"
	StateCompleted        State = "completed"
	StateRejected         State = "rejected"
	StateFailed           State = "failed"
)

var (
	// ErrUnknownConversation is returned by ExecuteApproved for an ID that
	// never passed through Interpret.
	ErrUnknownConversation = errors.New("unknown conversation")

	// ErrNoValidatedQuery is returned when a conversation has nothing
	// awaiting approval.
	ErrNoValidatedQuery = errors.New("no validated query awaiting approval")

	// ErrQueryMismatch is returned when the submitted query differs from the
	// validated one without being flagged as an edit.
	ErrQueryMismatch = errors.New("query differs from the validated one and was not flagged as edited")
)

// InterpretResult is the composite answer to one Interpret call. Execution
// never happens here; an accepted result waits for explicit approval.
type InterpretResult struct {
	ConversationID string           `json:"conversation_id"`
	State          State            `json:"state"`
	Query          string           `json:"query,omitempty"`
	Dialect        models.Dialect   `json:"dialect,omitempty"`
	Explanation    string           `json:"explanation"`
	ChartType      models.ChartType `json:"chart_type"`
	Confidence     float64          `json:"confidence"`
	Strategy       string           `json:"strategy"`

	Accepted           bool   `json:"accepted"`
	NeedsClarification bool   `json:"needs_clarification,omitempty"`
	RejectionCode      string `json:"rejection_code,omitempty"`
	RejectionReason    string `json:"rejection_reason,omitempty"`
}

// ExecuteResult is the composite answer to one ExecuteApproved call.
type ExecuteResult struct {
	ConversationID string                   `json:"conversation_id"`
	State          State                    `json:"state"`
	Result         *models.ResultSet        `json:"result,omitempty"`
	ChartHint      models.VisualizationHint `json:"chart_hint"`

	Accepted        bool   `json:"accepted"`
	RejectionCode   string `json:"rejection_code,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`
}

// Orchestrator wires the pipeline components together.
type Orchestrator struct {
	schemas       *schema.Provider
	pattern       translator.Strategy
	model         translator.Strategy // nil when no model endpoint is configured
	manager       *datasource.ConnectionManager
	profile       *models.ConnectionProfile
	conversations *ConversationStore
	defaultLimit  int
	logger        *zap.Logger
}

// Options carries the orchestrator's collaborators.
type Options struct {
	Schemas      *schema.Provider
	Pattern      translator.Strategy
	Model        translator.Strategy // optional
	Manager      *datasource.ConnectionManager
	Profile      *models.ConnectionProfile
	DefaultLimit int
	Logger       *zap.Logger
}

// New creates a pipeline orchestrator.
func New(opts Options) *Orchestrator {
	limit := opts.DefaultLimit
	if limit <= 0 {
		limit = models.DefaultRowLimit
	}
	return &Orchestrator{
		schemas:       opts.Schemas,
		pattern:       opts.Pattern,
		model:         opts.Model,
		manager:       opts.Manager,
		profile:       opts.Profile,
		conversations: NewConversationStore(),
		defaultLimit:  limit,
		logger:        opts.Logger.Named("pipeline"),
	}
}

// Interpret translates and validates a question, returning an explained
// candidate query. It never executes: an accepted result parks in
// AwaitingApproval until the caller invokes ExecuteApproved.
func (o *Orchestrator) Interpret(ctx context.Context, question, conversationID string) (*InterpretResult, error) {
	conversationID, conv := o.conversations.acquire(conversationID)

	// Serialize per conversation so follow-ups see prior turns in order.
	conv.mu.Lock()
	defer conv.mu.Unlock()

	dialect := o.profile.EngineKind.Dialect()
	req := &models.TranslationRequest{
		Question:   question,
		Dialect:    dialect,
		PriorTurns: conv.turns,
	}

	// The pattern strategy works without a schema, so introspection failure
	// only disables the model path.
	if descriptor, err := o.schemas.Get(ctx, o.profile); err == nil {
		req.Schema = descriptor
	} else {
		o.logger.Warn("schema unavailable, pattern-only translation",
			zap.Error(err))
	}

	result, strategyName, err := o.translate(ctx, req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindTranslationFailed, "pipeline",
			"no strategy produced a result", err)
	}

	out := &InterpretResult{
		ConversationID: conversationID,
		Query:          result.Query,
		Dialect:        result.Dialect,
		Explanation:    result.Explanation,
		ChartType:      result.SuggestedChart,
		Confidence:     result.Confidence,
		Strategy:       strategyName,
	}

	if result.NeedsClarification {
		out.State = StateCompleted
		out.NeedsClarification = true
		return out, nil
	}

	verdict := safety.Validate(result.Query, result.Dialect)
	if !verdict.Accepted {
		o.logger.Info("query rejected",
			zap.String("conversation", conversationID),
			zap.String("reason", string(verdict.ReasonCode)),
			zap.String("query", logging.SanitizeQuery(result.Query)))
		out.State = StateRejected
		out.RejectionCode = string(verdict.ReasonCode)
		out.RejectionReason = verdict.Message
		return out, nil
	}

	conv.recordTurn(models.Turn{Question: question, Query: result.Query})
	conv.lastValidated = result.Query
	conv.lastDialect = result.Dialect

	out.State = StateAwaitingApproval
	out.Accepted = true
	return out, nil
}

// translate runs the model strategy when configured, falling back to the
// pattern strategy on ModelUnavailable or ModelResponseUnparseable.
func (o *Orchestrator) translate(ctx context.Context, req *models.TranslationRequest) (*models.TranslationResult, string, error) {
	if o.model != nil && req.Schema != nil {
		result, err := o.model.Translate(ctx, req)
		if err == nil {
			return result, o.model.Name(), nil
		}

		switch apperrors.KindOf(err) {
		case apperrors.KindModelUnavailable, apperrors.KindModelResponseUnparseable:
			o.logger.Warn("model strategy failed, falling back to pattern",
				zap.String("kind", string(apperrors.KindOf(err))),
				zap.Error(err))
		default:
			return nil, "", err
		}
	}

	result, err := o.pattern.Translate(ctx, req)
	if err != nil {
		return nil, "", err
	}
	return result, o.pattern.Name(), nil
}

// ExecuteApproved runs a previously validated query. The submitted query
// must be byte-identical to the validated one unless explicitly flagged as
// edited, and is re-validated unconditionally: no trust carries forward
// from Interpret.
func (o *Orchestrator) ExecuteApproved(ctx context.Context, conversationID, query string, limit int, edited bool) (*ExecuteResult, error) {
	conv := o.conversations.lookup(conversationID)
	if conv == nil {
		return nil, ErrUnknownConversation
	}

	conv.mu.Lock()
	defer conv.mu.Unlock()

	if conv.lastValidated == "" {
		return nil, ErrNoValidatedQuery
	}
	if query != conv.lastValidated && !edited {
		return nil, ErrQueryMismatch
	}

	dialect := conv.lastDialect
	if dialect == "" {
		dialect = o.profile.EngineKind.Dialect()
	}

	out := &ExecuteResult{ConversationID: conversationID}

	verdict := safety.Validate(query, dialect)
	if !verdict.Accepted {
		o.logger.Info("approved query failed re-validation",
			zap.String("conversation", conversationID),
			zap.String("reason", string(verdict.ReasonCode)),
			zap.String("query", logging.SanitizeQuery(query)))
		out.State = StateRejected
		out.RejectionCode = string(verdict.ReasonCode)
		out.RejectionReason = verdict.Message
		out.ChartHint = models.VisualizationHint{ChartType: models.ChartNone}
		return out, nil
	}

	if limit <= 0 {
		limit = o.defaultLimit
	}

	result, err := o.manager.Execute(ctx, o.profile, &models.ExecutionRequest{
		Query:   query,
		Dialect: dialect,
		Limit:   limit,
	})
	if err != nil {
		return nil, err
	}

	// An edited query that survived re-validation becomes the conversation's
	// validated query for subsequent runs.
	conv.lastValidated = query

	out.State = StateCompleted
	out.Accepted = true
	out.Result = result
	out.ChartHint = viz.Recommend(result)

	o.logger.Info("query executed",
		zap.String("conversation", conversationID),
		zap.Int("rows", result.RowCount),
		zap.Int64("elapsed_ms", result.ExecutionTimeMs))

	return out, nil
}
