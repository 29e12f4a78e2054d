package handlers

import (
	"net/http"
	"strconv"

	"gbconnect/internal/services"
	"gbconnect/internal/utils"
)

type NotificationHandler struct {
	notifications services.NotificationService
}

func NewNotificationHandler(notifications services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	unreadOnly := false
	if raw := r.URL.Query().Get("unread"); raw != "" {
		if unreadOnly, err = strconv.ParseBool(raw); err != nil {
			utils.SendJSONError(w, "unread must be true or false", http.StatusBadRequest)
			return
		}
	}

	notifications, err := h.notifications.List(r.Context(), userID, unreadOnly)
	if err != nil {
		writeServiceError(w, r, err, "list notifications")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}
	notificationID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	if err := h.notifications.MarkRead(r.Context(), userID, notificationID); err != nil {
		writeServiceError(w, r, err, "mark notification read")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	updated, err := h.notifications.MarkAllRead(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "mark all notifications read")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}
