package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/matcher"
	"go.uber.org/zap"
)

// CatalogService: цели, способности и совместимость (service.CatalogService).
type CatalogService interface {
	Targets() []domain.Target
	Target(id string) (domain.Target, error)
	Capabilities(installedOnly bool) []domain.Capability
	Compatibility(agentID, targetID string) (matcher.Result, error)
	EligibleTargets(agentID string) ([]domain.Target, error)
	SetInstalled(ctx context.Context, id domain.CapabilityID, installed bool) (domain.Capability, error)
	InstallAll(ctx context.Context) int
}

type CatalogHandler struct {
	service CatalogService
	logger  *zap.Logger
}

func NewCatalogHandler(s CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{service: s, logger: logger.Named("catalog-handler")}
}

// TargetRoutes: /targets
func (h *CatalogHandler) TargetRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListTargets) // ?agent_id= оставляет цели, поддерживаемые агентом
	r.Get("/{targetID}", h.GetTarget)
	return r
}

// CapabilityRoutes: /capabilities (магазин способностей)
func (h *CatalogHandler) CapabilityRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListCapabilities) // ?installed=true
	r.Post("/install-all", h.InstallAll)
	r.Put("/{capabilityID}/install", h.Install)
	r.Delete("/{capabilityID}/install", h.Uninstall)
	return r
}

func (h *CatalogHandler) ListTargets(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"targets": h.service.Targets()})
		return
	}
	targets, err := h.service.EligibleTargets(agentID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"targets": targets})
}

func (h *CatalogHandler) GetTarget(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.Target(chi.URLParam(r, "targetID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"target": t})
}

func (h *CatalogHandler) ListCapabilities(w http.ResponseWriter, r *http.Request) {
	installed := r.URL.Query().Get("installed") == "true"
	writeJSON(w, http.StatusOK, map[string]any{"capabilities": h.service.Capabilities(installed)})
}

func (h *CatalogHandler) Install(w http.ResponseWriter, r *http.Request) {
	h.setInstalled(w, r, true)
}

func (h *CatalogHandler) Uninstall(w http.ResponseWriter, r *http.Request) {
	h.setInstalled(w, r, false)
}

func (h *CatalogHandler) setInstalled(w http.ResponseWriter, r *http.Request, installed bool) {
	id := domain.CapabilityID(chi.URLParam(r, "capabilityID"))
	c, err := h.service.SetInstalled(r.Context(), id, installed)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"capability": c})
}

func (h *CatalogHandler) InstallAll(w http.ResponseWriter, r *http.Request) {
	n := h.service.InstallAll(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"installed": n})
}

// Compatibility: GET /compatibility?agent_id=4&target_id=vscode
func (h *CatalogHandler) Compatibility(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.service.Compatibility(q.Get("agent_id"), q.Get("target_id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
