package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/quickhop/quickhop/internal/service"
	"github.com/quickhop/quickhop/pkg/utils"
)

type RequestHandler struct {
	claimService service.ClaimService
	validate     *validator.Validate
}

func NewRequestHandler(claimService service.ClaimService) *RequestHandler {
	return &RequestHandler{
		claimService: claimService,
		validate:     validator.New(),
	}
}

func (h *RequestHandler) RegisterRoutes(r chi.Router) {
	r.Get("/requests", h.ListPending)
	r.Get("/requests/{id}", h.GetRequest)
	r.Post("/requests/{id}/accept", h.AcceptRequest)
	r.Post("/requests/{id}/reject", h.RejectRequest)
}

type riderActionRequest struct {
	RiderID string `json:"rider_id" validate:"required,uuid"`
}

// GET /v1/requests
func (h *RequestHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	requests, err := h.claimService.PendingRequests(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]interface{}{
		"requests": requests,
	})
}

// GET /v1/requests/{id}
func (h *RequestHandler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "request id is required")
		return
	}

	request, err := h.claimService.GetRequest(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, request)
}

// POST /v1/requests/{id}/accept
func (h *RequestHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "request id is required")
		return
	}

	var req riderActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	deliveryID, err := h.claimService.AcceptRequest(r.Context(), id, req.RiderID)
	if err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{
		"status":      "accepted",
		"delivery_id": deliveryID,
	})
}

// POST /v1/requests/{id}/reject
func (h *RequestHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "request id is required")
		return
	}

	var req riderActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	if err := h.claimService.RejectRequest(r.Context(), id, req.RiderID); err != nil {
		handleError(w, err)
		return
	}

	utils.Success(w, http.StatusOK, map[string]string{
		"status": "rejected",
	})
}
