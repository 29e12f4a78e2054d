package handlers

import (
	"net/http"

	"gbconnect/internal/database"
	"gbconnect/internal/utils"
)

type CommonHandler struct {
	db database.Service
}

func NewCommonHandler(db database.Service) *CommonHandler {
	return &CommonHandler{db: db}
}

func (h *CommonHandler) HelloWorldHandler(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "GBConnect API"})
}

func (h *CommonHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := h.db.Health()
	status := http.StatusOK
	if health["status"] != "up" {
		status = http.StatusServiceUnavailable
	}
	utils.RespondWithJSON(w, status, health)
}
