package handlers

import (
	"net/http"

	"gbconnect/internal/models"
	"gbconnect/internal/services"
	"gbconnect/internal/utils"
)

type BookingHandler struct {
	bookingService services.BookingService
}

func NewBookingHandler(bookingService services.BookingService) *BookingHandler {
	return &BookingHandler{bookingService: bookingService}
}

func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	var req models.CreateBookingRequest
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		return
	}

	booking, err := h.bookingService.CreateBooking(r.Context(), userID, &req)
	if err != nil {
		writeServiceError(w, r, err, "create booking")
		return
	}
	utils.RespondWithJSON(w, http.StatusCreated, booking)
}

func (h *BookingHandler) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	bookings, err := h.bookingService.ListUserBookings(r.Context(), userID, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err, "list bookings")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, bookings)
}

func (h *BookingHandler) ListProviderBookings(w http.ResponseWriter, r *http.Request) {
	providerID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}

	bookings, err := h.bookingService.ListProviderBookings(r.Context(), providerID, r.URL.Query().Get("status"))
	if err != nil {
		writeServiceError(w, r, err, "list provider bookings")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, bookings)
}

func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}
	bookingID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	booking, err := h.bookingService.GetBooking(r.Context(), userID, bookingID)
	if err != nil {
		writeServiceError(w, r, err, "get booking")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := utils.GetUserIDFromContext(w, r)
	if err != nil {
		return
	}
	bookingID, err := utils.GetObjectIDFromVars(w, r, "id")
	if err != nil {
		return
	}

	var req models.BookingStatusUpdate
	if err := utils.DecodeJSONBody(w, r, &req); err != nil {
		return
	}

	booking, err := h.bookingService.UpdateBookingStatus(r.Context(), userID, bookingID, req.Status)
	if err != nil {
		writeServiceError(w, r, err, "update booking status")
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, booking)
}
