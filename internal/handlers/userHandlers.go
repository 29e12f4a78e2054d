package handlers

import (
	"net/http"

	"gbconnect/internal/models"
	"gbconnect/internal/services"
	"gbconnect/internal/utils"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (u *UserHandler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	user, err := u.userService.GetUserProfile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "get profile")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, user)
}

func (u *UserHandler) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	var updatePayload models.UserProfileUpdate
	if err := utils.DecodeJSONBody(w, r, &updatePayload); err != nil {
		return
	}

	updatedUser, err := u.userService.UpdateUserProfile(r.Context(), userID, &updatePayload)
	if err != nil {
		writeServiceError(w, r, err, "update profile")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, updatedUser)
}

func (u *UserHandler) DeleteMyProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	if err := u.userService.DeleteUser(r.Context(), userID); err != nil {
		writeServiceError(w, r, err, "delete profile")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
