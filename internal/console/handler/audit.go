package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/xela07ax/nft-agents-console/internal/audit"
	"github.com/xela07ax/nft-agents-console/internal/domain"
	"go.uber.org/zap"
)

type AuditService interface {
	FetchEvents(ctx context.Context, f audit.Filter) ([]audit.Event, error)
}

type AuditHandler struct {
	service AuditService
	logger  *zap.Logger
}

func NewAuditHandler(s AuditService, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{service: s, logger: logger.Named("audit-handler")}
}

// GetLogs возвращает события журнала с фильтрацией
// GET /audit?kind=mutation&entity_id=4&limit=50
func (h *AuditHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := audit.Filter{Kind: q.Get("kind"), EntityID: q.Get("entity_id")}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, h.logger, &domain.ValidationError{Field: "limit", Message: "limit must be a non-negative integer"})
			return
		}
		f.Limit = n
	}

	events, err := h.service.FetchEvents(r.Context(), f)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
