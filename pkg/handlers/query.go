package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/apperrors"
	"github.com/queryline-io/queryline-engine/pkg/logging"
	"github.com/queryline-io/queryline-engine/pkg/pipeline"
)

// QueryHandler exposes the pipeline's two operations over HTTP.
type QueryHandler struct {
	orchestrator *pipeline.Orchestrator
	logger       *zap.Logger
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(orchestrator *pipeline.Orchestrator, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{orchestrator: orchestrator, logger: logger}
}

// RegisterRoutes registers the query handler's routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/query/ask", h.Ask)
	mux.HandleFunc("POST /api/v1/query/execute", h.Execute)
}

// AskRequest is the body for POST /api/v1/query/ask.
type AskRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// ExecuteRequest is the body for POST /api/v1/query/execute. The query must
// match the one validated by the preceding ask, unless Edited is set.
type ExecuteRequest struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
	Limit          int    `json:"limit,omitempty"`
	Edited         bool   `json:"edited,omitempty"`
}

// Ask handles POST /api/v1/query/ask. Translates and validates a question
// without executing anything.
func (h *QueryHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Question == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}

	result, err := h.orchestrator.Interpret(r.Context(), req.Question, req.ConversationID)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode ask response", zap.Error(err))
	}
}

// Execute handles POST /api/v1/query/execute. Runs a previously validated
// query after mandatory re-validation.
func (h *QueryHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.ConversationID == "" || req.Query == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request",
			"conversation_id and query are required")
		return
	}

	result, err := h.orchestrator.ExecuteApproved(r.Context(),
		req.ConversationID, req.Query, req.Limit, req.Edited)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, result); err != nil {
		h.logger.Error("Failed to encode execute response", zap.Error(err))
	}
}

// writePipelineError maps pipeline failures to HTTP statuses. Surfaced
// error text is sanitized first: adapter errors can wrap driver messages
// that echo connection strings. The apperrors kind doubles as the error
// code.
func (h *QueryHandler) writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrUnknownConversation):
		_ = ErrorResponse(w, http.StatusNotFound, "unknown_conversation", err.Error())
		return
	case errors.Is(err, pipeline.ErrNoValidatedQuery):
		_ = ErrorResponse(w, http.StatusConflict, "no_validated_query", err.Error())
		return
	case errors.Is(err, pipeline.ErrQueryMismatch):
		_ = ErrorResponse(w, http.StatusConflict, "query_mismatch", err.Error())
		return
	}

	kind := apperrors.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case apperrors.KindTimeout:
		status = http.StatusGatewayTimeout
	case apperrors.KindConnectionError, apperrors.KindExecutionError,
		apperrors.KindSchemaUnavailable:
		status = http.StatusBadGateway
	case apperrors.KindTranslationFailed:
		status = http.StatusUnprocessableEntity
	}

	h.logger.Warn("pipeline request failed",
		zap.String("kind", string(kind)),
		zap.Error(err))
	_ = ErrorResponse(w, status, string(kind), logging.SanitizeError(err))
}
