package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	activationservice "fieldops/contexts/field-marketing/activation-service"
	httpadapter "fieldops/contexts/field-marketing/activation-service/adapters/http"
	prometheusadapter "fieldops/contexts/field-marketing/activation-service/adapters/prometheus"
	domainerrors "fieldops/contexts/field-marketing/activation-service/domain/errors"
	activationhttp "fieldops/contexts/field-marketing/activation-service/transport/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "fieldops/internal/platform/httpserver/docs"
)

const (
	headerUserID  = "X-User-Id"
	headerAgentID = "X-Agent-Id"
)

type Options struct {
	Addr string
	// Registry backs GET /metrics. Nil disables the endpoint.
	Registry *prometheus.Registry
	Metrics  *prometheusadapter.Metrics
	Logger   *slog.Logger
}

type Server struct {
	mux        *http.ServeMux
	handler    http.Handler
	httpServer *http.Server
	logger     *slog.Logger
	addr       string
	activation activationservice.Module
	metrics    *prometheusadapter.Metrics
}

func New(activation activationservice.Module, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:        http.NewServeMux(),
		logger:     logger,
		addr:       addr,
		activation: activation,
		metrics:    opts.Metrics,
	}
	s.registerRoutes(opts.Registry)
	s.handler = s.instrument(s.mux)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler exposes the routed and instrumented handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(registry *prometheus.Registry) {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	if registry != nil {
		s.mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.mux.HandleFunc("POST /v1/campaigns", s.handleCreateCampaign)
	s.mux.HandleFunc("GET /v1/campaigns/{campaign_id}", s.handleGetCampaign)
	s.mux.HandleFunc("DELETE /v1/campaigns/{campaign_id}", s.handleDeleteCampaign)
	s.mux.HandleFunc("POST /v1/campaigns/{campaign_id}/cancel", s.handleCancelCampaign)
	s.mux.HandleFunc("POST /v1/campaigns/{campaign_id}/recompute-status", s.handleRecomputeCampaignStatus)
	s.mux.HandleFunc("GET /v1/campaigns/{campaign_id}/activations", s.handleListCampaignActivations)
	s.mux.HandleFunc("POST /v1/campaigns/{campaign_id}/activations", s.handleCreateActivation)

	s.mux.HandleFunc("GET /v1/activations/{activation_id}", s.handleGetActivation)
	s.mux.HandleFunc("PUT /v1/activations/{activation_id}", s.handleEditActivation)
	s.mux.HandleFunc("DELETE /v1/activations/{activation_id}", s.handleDeleteActivation)
	for _, action := range []string{
		httpadapter.ActionStart,
		httpadapter.ActionSuspend,
		httpadapter.ActionResume,
		httpadapter.ActionFinish,
	} {
		s.mux.HandleFunc("POST /v1/activations/{activation_id}/"+action, s.transitionHandler(action))
	}
	s.mux.HandleFunc("POST /v1/activations/{activation_id}/proofs/validate", s.handleValidateProofs)

	s.mux.HandleFunc("POST /v1/agents", s.handleRegisterAgent)
	s.mux.HandleFunc("GET /v1/agents/conflicts", s.handleCheckAgentConflicts)
	s.mux.HandleFunc("GET /v1/agents/available", s.handleListAvailableAgents)
	s.mux.HandleFunc("POST /v1/agents/{agent_id}/positions", s.handleRecordPosition)
	s.mux.HandleFunc("GET /v1/agents/{agent_id}/positions", s.handleListAgentPositions)

	s.mux.HandleFunc("POST /v1/incidents", s.handleReportIncident)
	s.mux.HandleFunc("POST /v1/maintenance/sweep-expired", s.handleSweepExpired)
}

func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req activationhttp.CreateCampaignRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.activation.Handler.CreateCampaignHandler(r.Context(), r.Header.Get(headerUserID), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	resp, err := s.activation.Handler.GetCampaignHandler(r.Context(), r.PathValue("campaign_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	err := s.activation.Handler.DeleteCampaignHandler(r.Context(), r.Header.Get(headerUserID), r.PathValue("campaign_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelCampaign(w http.ResponseWriter, r *http.Request) {
	var req activationhttp.CancelCampaignRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	resp, err := s.activation.Handler.CancelCampaignHandler(
		r.Context(),
		r.Header.Get(headerUserID),
		r.PathValue("campaign_id"),
		req,
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecomputeCampaignStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.activation.Handler.RecomputeCampaignStatusHandler(
		r.Context(),
		r.Header.Get(headerUserID),
		r.PathValue("campaign_id"),
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListCampaignActivations(w http.ResponseWriter, r *http.Request) {
	resp, err := s.activation.Handler.ListCampaignActivationsHandler(r.Context(), r.PathValue("campaign_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateActivation(w http.ResponseWriter, r *http.Request) {
	var req activationhttp.ActivationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.activation.Handler.CreateActivationHandler(
		r.Context(),
		r.Header.Get(headerUserID),
		r.PathValue("campaign_id"),
		req,
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetActivation(w http.ResponseWriter, r *http.Request) {
	resp, err := s.activation.Handler.GetActivationHandler(r.Context(), r.PathValue("activation_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEditActivation(w http.ResponseWriter, r *http.Request) {
	var req activationhttp.ActivationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.activation.Handler.EditActivationHandler(
		r.Context(),
		r.Header.Get(headerUserID),
		r.PathValue("activation_id"),
		req,
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteActivation(w http.ResponseWriter, r *http.Request) {
	err := s.activation.Handler.DeleteActivationHandler(r.Context(), r.Header.Get(headerUserID), r.PathValue("activation_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) transitionHandler(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req activationhttp.StatusActionRequest
		if !decodeOptionalBody(w, r, &req) {
			return
		}
		resp, err := s.activation.Handler.TransitionActivationHandler(
			r.Context(),
			r.Header.Get(headerUserID),
			r.Header.Get(headerAgentID),
			r.PathValue("activation_id"),
			action,
			req,
		)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleValidateProofs(w http.ResponseWriter, r *http.Request) {
	resp, err := s.activation.Handler.ValidateProofsHandler(r.Context(), r.Header.Get(headerUserID), r.PathValue("activation_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req activationhttp.RegisterAgentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.activation.Handler.RegisterAgentHandler(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleCheckAgentConflicts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.activation.Handler.CheckAgentConflictsHandler(
		r.Context(),
		query.Get("date"),
		splitList(query["agent_id"]),
		query.Get("exclude_activation_id"),
		query.Get("start_time"),
		query.Get("end_time"),
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListAvailableAgents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	resp, err := s.activation.Handler.ListAvailableAgentsHandler(
		r.Context(),
		query.Get("date"),
		query.Get("activation_id"),
		query.Get("start_time"),
		query.Get("end_time"),
	)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordPosition(w http.ResponseWriter, r *http.Request) {
	var req activationhttp.RecordPositionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.activation.Handler.RecordPositionHandler(r.Context(), r.PathValue("agent_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListAgentPositions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}
	resp, err := s.activation.Handler.ListAgentPositionsHandler(r.Context(), r.PathValue("agent_id"), limit)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReportIncident(w http.ResponseWriter, r *http.Request) {
	agentID := strings.TrimSpace(r.Header.Get(headerAgentID))
	if agentID == "" {
		writeError(w, http.StatusUnauthorized, "missing_agent", "X-Agent-Id header is required")
		return
	}
	var req activationhttp.ReportIncidentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	resp, err := s.activation.Handler.ReportIncidentHandler(r.Context(), agentID, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleSweepExpired(w http.ResponseWriter, r *http.Request) {
	resp, err := s.activation.Handler.SweepExpiredHandler(r.Context(), r.URL.Query().Get("today"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var scheduling *domainerrors.SchedulingConflictError
	var transition *domainerrors.TransitionError
	switch {
	case errors.As(err, &scheduling):
		writeJSON(w, http.StatusConflict, activationhttp.ErrorResponse{
			Code:      "agent_scheduling_conflict",
			Message:   err.Error(),
			Conflicts: httpadapter.MapConflicts(scheduling.Conflicts),
		})
	case errors.As(err, &transition):
		writeError(w, http.StatusUnprocessableEntity, "invalid_transition", err.Error())
	case errors.Is(err, domainerrors.ErrVersionConflict):
		writeError(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, domainerrors.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domainerrors.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	case errors.Is(err, domainerrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	default:
		s.logger.Error("request failed",
			"event", "http_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, activationhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

// decodeOptionalBody accepts an empty body.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

// splitList accepts both repeated and comma separated query values.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
