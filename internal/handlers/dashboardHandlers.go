package handlers

import (
	"net/http"

	"gbconnect/internal/services"
	"gbconnect/internal/utils"
)

type DashboardHandler struct {
	dashboard services.DashboardService
}

func NewDashboardHandler(dashboard services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

func (h *DashboardHandler) ProviderDashboard(w http.ResponseWriter, r *http.Request) {
	providerID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	dash, err := h.dashboard.ProviderDashboard(r.Context(), providerID)
	if err != nil {
		writeServiceError(w, r, err, "provider dashboard")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, dash)
}
