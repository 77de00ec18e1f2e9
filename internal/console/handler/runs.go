package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"github.com/xela07ax/nft-agents-console/internal/engine"
	"github.com/xela07ax/nft-agents-console/internal/selection"
	"go.uber.org/zap"
)

// RunService: выбор и запуски (service.RunService).
type RunService interface {
	Selection() selection.Snapshot
	Options() []selection.Option
	SelectAgent(agentID string) (selection.Snapshot, error)
	DeselectAgent() selection.Snapshot
	SelectTarget(targetID string) (selection.Snapshot, error)
	SelectCapability(id domain.CapabilityID) (selection.Snapshot, error)
	SetInput(text string) (selection.Snapshot, error)
	Submit(ctx context.Context) (domain.Run, error)
	Runs() []domain.Run
	Run(id string) (domain.Run, error)
	CancelRun(id string) (domain.Run, error)
}

type RunHandler struct {
	service RunService
	logger  *zap.Logger
}

func NewRunHandler(s RunService, logger *zap.Logger) *RunHandler {
	return &RunHandler{service: s, logger: logger.Named("run-handler")}
}

// SelectionRoutes монтируется в /selection: агент -> цель -> способность -> ввод
func (h *RunHandler) SelectionRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.GetSelection)
	r.Delete("/", h.Reset)
	r.Get("/options", h.Options)
	r.Put("/agent", h.SelectAgent)
	r.Put("/target", h.SelectTarget)
	r.Put("/capability", h.SelectCapability)
	r.Put("/input", h.SetInput)
	r.Post("/submit", h.Submit)
	return r
}

// RunRoutes: /runs
func (h *RunHandler) RunRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{runID}", h.Get)
	r.Post("/{runID}/cancel", h.Cancel)
	return r
}

// runView: запуск с уже отформатированной длительностью
type runView struct {
	domain.Run
	Duration string `json:"duration"`
}

func viewOf(run domain.Run) runView {
	return runView{Run: run, Duration: engine.FormatDuration(run)}
}

type idRequest struct {
	ID string `json:"id"`
}

type inputRequest struct {
	Input string `json:"input"`
}

func (h *RunHandler) GetSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Selection())
}

func (h *RunHandler) Options(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"options": h.service.Options()})
}

func (h *RunHandler) Reset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.DeselectAgent())
}

func (h *RunHandler) SelectAgent(w http.ResponseWriter, r *http.Request) {
	h.selectByID(w, r, h.service.SelectAgent)
}

func (h *RunHandler) SelectTarget(w http.ResponseWriter, r *http.Request) {
	h.selectByID(w, r, h.service.SelectTarget)
}

func (h *RunHandler) SelectCapability(w http.ResponseWriter, r *http.Request) {
	h.selectByID(w, r, func(id string) (selection.Snapshot, error) {
		return h.service.SelectCapability(domain.CapabilityID(id))
	})
}

func (h *RunHandler) selectByID(w http.ResponseWriter, r *http.Request, pick func(id string) (selection.Snapshot, error)) {
	var req idRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	snap, err := pick(req.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *RunHandler) SetInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := decode(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	snap, err := h.service.SetInput(req.Input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *RunHandler) Submit(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Submit(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"run": viewOf(run)})
}

func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	runs := h.service.Runs()
	out := make([]runView, 0, len(runs))
	for _, run := range runs {
		out = append(out, viewOf(run))
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.Run(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": viewOf(run)})
}

func (h *RunHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.CancelRun(chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"run": viewOf(run)})
}
