package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/quickhop/quickhop/internal/models"
	"github.com/quickhop/quickhop/internal/service"
	"github.com/quickhop/quickhop/pkg/utils"
)

type DeliveryHandler struct {
	deliveryService service.DeliveryService
	claimService    service.ClaimService
	validate        *validator.Validate
}

func NewDeliveryHandler(deliveryService service.DeliveryService, claimService service.ClaimService) *DeliveryHandler {
	return &DeliveryHandler{
		deliveryService: deliveryService,
		claimService:    claimService,
		validate:        validator.New(),
	}
}

func (h *DeliveryHandler) RegisterRoutes(r chi.Router) {
	r.Post("/deliveries", h.CreateDelivery)
	r.Get("/deliveries", h.ListDeliveries)
	r.Get("/deliveries/{id}", h.GetDelivery)
	r.Post("/deliveries/{id}/cancel", h.CancelDelivery)
	r.Post("/deliveries/{id}/assign", h.AssignRider)
	r.Patch("/deliveries/{id}/status", h.UpdateStatus)
	r.Post("/drop-offs/{id}/delivered", h.MarkDropOffDelivered)
}

// POST /v1/deliveries
func (h *DeliveryHandler) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDeliveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	delivery, err := h.deliveryService.CreateDelivery(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	// Open the claim window so available riders see the booking.
	request, err := h.claimService.BroadcastNewRequest(r.Context(), delivery.ID)
	if err != nil {
		log.Printf("failed to broadcast request for delivery %s: %v", delivery.ID, err)
	}

	response := map[string]interface{}{
		"delivery": delivery,
	}
	if request != nil {
		response["request"] = request.ToResponse()
	}

	utils.Created(w, response)
}

// GET /v1/deliveries?business_id=
func (h *DeliveryHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	businessID := r.URL.Query().Get("business_id")

	var (
		deliveries []*models.DeliveryResponse
		err        error
	)
	if businessID != "" {
		deliveries, err = h.deliveryService.ListByBusiness(r.Context(), businessID)
	} else {
		deliveries, err = h.deliveryService.ListAll(r.Context())
	}
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]interface{}{
		"deliveries": deliveries,
	})
}

// GET /v1/deliveries/{id}
func (h *DeliveryHandler) GetDelivery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "delivery id is required")
		return
	}

	delivery, err := h.deliveryService.GetDelivery(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, delivery)
}

// POST /v1/deliveries/{id}/cancel
func (h *DeliveryHandler) CancelDelivery(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "delivery id is required")
		return
	}

	if err := h.deliveryService.CancelDelivery(r.Context(), id); err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{
		"status": "cancelled",
	})
}

// POST /v1/deliveries/{id}/assign
func (h *DeliveryHandler) AssignRider(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "delivery id is required")
		return
	}

	var req models.AssignRiderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	if err := h.deliveryService.AssignRider(r.Context(), id, req.RiderID); err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{
		"status": "assigned",
	})
}

// PATCH /v1/deliveries/{id}/status
func (h *DeliveryHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "delivery id is required")
		return
	}

	var req models.UpdateDeliveryStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	if err := h.deliveryService.UpdateStatus(r.Context(), id, req.Status); err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{
		"status": req.Status,
	})
}

// POST /v1/drop-offs/{id}/delivered
func (h *DeliveryHandler) MarkDropOffDelivered(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "drop-off id is required")
		return
	}

	dropOff, err := h.deliveryService.MarkDropOffDelivered(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, dropOff)
}
