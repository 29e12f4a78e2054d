package handlers

import (
	"net/http"

	"gbconnect/internal/models"
	"gbconnect/internal/services"
	"gbconnect/internal/utils"
)

type ReviewHandler struct {
	reviewService services.ReviewService
}

func NewReviewHandler(reviewService services.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService}
}

func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}
	serviceID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	var req models.CreateReviewRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		return
	}

	review, err := h.reviewService.CreateReview(r.Context(), userID, serviceID, &req)
	if err != nil {
		writeServiceError(w, r, err, "create review")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, review)
}

func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	serviceID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	reviews, err := h.reviewService.ListReviews(r.Context(), serviceID)
	if err != nil {
		writeServiceError(w, r, err, "list reviews")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, reviews)
}

func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}
	reviewID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	if err := h.reviewService.DeleteReview(r.Context(), userID, reviewID); err != nil {
		writeServiceError(w, r, err, "delete review")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
