package handlers

import (
	"net/http"

	"gbconnect/internal/models"
	"gbconnect/internal/services"
	"gbconnect/internal/utils"
)

type AssistantHandler struct {
	assistant services.AssistantService
}

func NewAssistantHandler(assistant services.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

func (a *AssistantHandler) DescribeService(w http.ResponseWriter, r *http.Request) {
	var req models.DescribeServiceRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		return
	}

	description, err := a.assistant.DescribeService(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, err, "describe service")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"description": description})
}

func (a *AssistantHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	suggestions, err := a.assistant.Suggestions(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "service suggestions")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, suggestions)
}
