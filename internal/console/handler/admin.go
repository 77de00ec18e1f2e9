package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"go.uber.org/zap"
)

// AdminService: пользователи и настройки инференса (service.AdminService).
type AdminService interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	CreateUser(ctx context.Context, in domain.UserInput) (domain.User, error)
	UpdateUser(ctx context.Context, id string, in domain.UserInput) (domain.User, error)
	DeleteUser(ctx context.Context, id string) error
	InferenceModels(ctx context.Context) (domain.InferenceModels, error)
	SetMOAModel(ctx context.Context, kind, model string) error
	SaveAPIKey(ctx context.Context, in domain.APIKeyInput) error
}

type AdminHandler struct {
	service AdminService
	logger  *zap.Logger
}

func NewAdminHandler(s AdminService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{service: s, logger: logger.Named("admin-handler")}
}

// UserRoutes: /users (право users:manage)
func (h *AdminHandler) UserRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListUsers)
	r.Post("/", h.CreateUser)
	r.Route("/{userID}", func(r chi.Router) {
		r.Get("/", h.GetUser)
		r.Put("/", h.UpdateUser)
		r.Delete("/", h.DeleteUser)
	})
	return r
}

// SettingsRoutes: /settings (право settings:manage)
func (h *AdminHandler) SettingsRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/models", h.Models)
	r.Put("/moa/{kind}", h.SetMOAModel) // kind = primary | fallback
	r.Post("/api-keys", h.SaveAPIKey)
	return r
}

func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetUser(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in domain.UserInput
	if err := decode(r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	u, err := h.service.CreateUser(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var in domain.UserInput
	if err := decode(r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	u, err := h.service.UpdateUser(r.Context(), chi.URLParam(r, "userID"), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), chi.URLParam(r, "userID")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) Models(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.InferenceModels(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type modelRequest struct {
	Model string `json:"model"`
}

func (h *AdminHandler) SetMOAModel(w http.ResponseWriter, r *http.Request) {
	var req modelRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.service.SetMOAModel(r.Context(), chi.URLParam(r, "kind"), req.Model); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) SaveAPIKey(w http.ResponseWriter, r *http.Request) {
	var in domain.APIKeyInput
	if err := decode(r, &in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if err := h.service.SaveAPIKey(r.Context(), in); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
