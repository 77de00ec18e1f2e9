package handler

import (
	"net/http"

	"github.com/xela07ax/nft-agents-console/internal/domain"
)

type DashboardService interface {
	Dashboard() domain.Dashboard
}

// DashboardHandler отдает сводку каталога и запусков. Данные живые, кэшировать нельзя.
type DashboardHandler struct {
	service DashboardService
}

func NewDashboardHandler(s DashboardService) *DashboardHandler {
	return &DashboardHandler{service: s}
}

func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, h.service.Dashboard())
}
