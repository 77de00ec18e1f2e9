package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"go.uber.org/zap"
)

// AgentService: шлюз мутаций агентов (service.AgentService).
type AgentService interface {
	ListAgents() []domain.Agent
	GetAgent(id string) (domain.Agent, error)
	RefreshAgents(ctx context.Context) ([]domain.Agent, error)
	CreateAgent(ctx context.Context, draft domain.AgentDraft) (domain.Agent, error)
	DeployAgent(ctx context.Context, agentID, targetID string, capID domain.CapabilityID) (domain.Agent, error)
	StopAgent(ctx context.Context, agentID string) (domain.Agent, error)
	UpdateAgentConfig(ctx context.Context, agentID string, patch domain.AgentPatch) (domain.Agent, error)
	DeleteAgent(ctx context.Context, agentID string) error
}

type AgentHandler struct {
	service AgentService
	logger  *zap.Logger
}

func NewAgentHandler(s AgentService, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{service: s, logger: logger.Named("agent-handler")}
}

// Routes Маршруты для Chi
func (h *AgentHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Post("/refresh", h.Refresh)
	r.Route("/{agentID}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Patch("/", h.Update)
		r.Delete("/", h.Delete)
		r.Post("/deploy", h.Deploy) // POST /agents/4/deploy {target_id, capability_id}
		r.Post("/stop", h.Stop)
	})
	return r
}

func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"agents": h.service.ListAgents()})
}

func (h *AgentHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.GetAgent(chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agent": a})
}

func (h *AgentHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	agents, err := h.service.RefreshAgents(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agents": agents})
}

func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var draft domain.AgentDraft
	if err := decode(r, &draft); err != nil {
		writeError(w, h.logger, err)
		return
	}
	a, err := h.service.CreateAgent(r.Context(), draft)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"agent": a})
}

type deployRequest struct {
	TargetID     string `json:"target_id"`
	CapabilityID string `json:"capability_id"`
}

func (h *AgentHandler) Deploy(w http.ResponseWriter, r *http.Request) {
	var req deployRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.TargetID == "" || req.CapabilityID == "" {
		writeError(w, h.logger, &domain.ValidationError{Field: "target_id", Message: "target_id and capability_id are required"})
		return
	}

	a, err := h.service.DeployAgent(r.Context(), chi.URLParam(r, "agentID"), req.TargetID, domain.CapabilityID(req.CapabilityID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agent": a})
}

func (h *AgentHandler) Stop(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.StopAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agent": a})
}

func (h *AgentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch domain.AgentPatch
	if err := decode(r, &patch); err != nil {
		writeError(w, h.logger, err)
		return
	}
	a, err := h.service.UpdateAgentConfig(r.Context(), chi.URLParam(r, "agentID"), patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"agent": a})
}

func (h *AgentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAgent(r.Context(), chi.URLParam(r, "agentID")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
