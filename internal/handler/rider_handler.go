package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/quickhop/quickhop/internal/models"
	"github.com/quickhop/quickhop/internal/service"
	"github.com/quickhop/quickhop/pkg/utils"
)

type RiderHandler struct {
	riderService service.RiderService
	validate     *validator.Validate
}

func NewRiderHandler(riderService service.RiderService) *RiderHandler {
	return &RiderHandler{
		riderService: riderService,
		validate:     validator.New(),
	}
}

func (h *RiderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/riders/{id}/availability", h.GetAvailability)
	r.Put("/riders/{id}/availability", h.SetAvailability)
	r.Get("/riders/{id}/delivery", h.ActiveDelivery)
}

// GET /v1/riders/{id}/availability
func (h *RiderHandler) GetAvailability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "rider id is required")
		return
	}

	available, err := h.riderService.GetAvailability(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]bool{
		"is_available": available,
	})
}

// PUT /v1/riders/{id}/availability
func (h *RiderHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "rider id is required")
		return
	}

	var req models.SetAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	if err := h.riderService.SetAvailability(r.Context(), id, *req.IsAvailable); err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]bool{
		"is_available": *req.IsAvailable,
	})
}

// GET /v1/riders/{id}/delivery
func (h *RiderHandler) ActiveDelivery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "rider id is required")
		return
	}

	delivery, err := h.riderService.ActiveDelivery(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, delivery)
}
