package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/queryline-io/queryline-engine/pkg/adapters/datasource"
	"github.com/queryline-io/queryline-engine/pkg/config"
	"github.com/queryline-io/queryline-engine/pkg/llm"
)

const statusPingTimeout = 5 * time.Second

// StatusHandler reports the engine's effective configuration and the health
// of its datasource and model connections.
type StatusHandler struct {
	cfg     *config.Config
	manager *datasource.ConnectionManager
	model   llm.Client
	logger  *zap.Logger
}

// NewStatusHandler creates a new StatusHandler. model may be nil when no
// model is configured.
func NewStatusHandler(cfg *config.Config, manager *datasource.ConnectionManager, model llm.Client, logger *zap.Logger) *StatusHandler {
	return &StatusHandler{cfg: cfg, manager: manager, model: model, logger: logger}
}

// RegisterRoutes registers the status endpoint on the given mux.
func (h *StatusHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/config/status", h.Status)
}

// StatusResponse is the body for GET /api/v1/config/status. It never carries
// credentials.
type StatusResponse struct {
	Engine              string   `json:"engine"`
	Database            string   `json:"database"`
	DatasourceReachable bool     `json:"datasource_reachable"`
	DatasourceError     string   `json:"datasource_error,omitempty"`
	ModelProvider       string   `json:"model_provider,omitempty"`
	ModelName           string   `json:"model_name,omitempty"`
	ModelConfigured     bool     `json:"model_configured"`
	ModelReachable      bool     `json:"model_reachable"`
	SupportedEngines    []string `json:"supported_engines"`
}

// Status handles GET /api/v1/config/status.
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), statusPingTimeout)
	defer cancel()

	profile := h.cfg.Profile()
	resp := StatusResponse{
		Engine:          string(profile.EngineKind),
		Database:        profile.Database,
		ModelConfigured: h.model != nil,
	}
	for _, info := range datasource.RegisteredAdapters() {
		resp.SupportedEngines = append(resp.SupportedEngines, string(info.Kind))
	}

	if err := h.manager.Ping(ctx, profile); err != nil {
		h.logger.Warn("Datasource ping failed", zap.Error(err))
		resp.DatasourceError = err.Error()
	} else {
		resp.DatasourceReachable = true
	}

	if h.model != nil {
		resp.ModelProvider = h.cfg.Model.Provider
		resp.ModelName = h.model.Model()
		if err := h.model.Ping(ctx); err != nil {
			h.logger.Warn("Model ping failed", zap.Error(err))
		} else {
			resp.ModelReachable = true
		}
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode status response", zap.Error(err))
	}
}
