package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/quickhop/quickhop/internal/service"
	"github.com/quickhop/quickhop/pkg/utils"
)

// TrackHandler serves the public customer-facing tracking endpoints.
// No authentication: a tracking number or phone number is the lookup key.
type TrackHandler struct {
	deliveryService service.DeliveryService
}

func NewTrackHandler(deliveryService service.DeliveryService) *TrackHandler {
	return &TrackHandler{deliveryService: deliveryService}
}

func (h *TrackHandler) RegisterRoutes(r chi.Router) {
	r.Get("/track", h.TrackByPhone)
	r.Get("/track/{trackingNumber}", h.TrackByNumber)
}

// GET /v1/track/{trackingNumber}
func (h *TrackHandler) TrackByNumber(w http.ResponseWriter, r *http.Request) {
	trackingNumber := chi.URLParam(r, "trackingNumber")
	if trackingNumber == "" {
		utils.BadRequest(w, "tracking number is required")
		return
	}

	tracking, err := h.deliveryService.TrackByNumber(r.Context(), trackingNumber)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, tracking)
}

// GET /v1/track?phone=
func (h *TrackHandler) TrackByPhone(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		utils.BadRequest(w, "phone query parameter is required")
		return
	}

	tracking, err := h.deliveryService.TrackByPhone(r.Context(), phone)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, tracking)
}
