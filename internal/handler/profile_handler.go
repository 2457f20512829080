package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	apperrors "github.com/quickhop/quickhop/internal/errors"
	"github.com/quickhop/quickhop/internal/models"
	"github.com/quickhop/quickhop/internal/repository"
	"github.com/quickhop/quickhop/pkg/utils"
)

type ProfileHandler struct {
	profileRepo repository.ProfileRepository
	validate    *validator.Validate
}

func NewProfileHandler(profileRepo repository.ProfileRepository) *ProfileHandler {
	return &ProfileHandler{
		profileRepo: profileRepo,
		validate:    validator.New(),
	}
}

func (h *ProfileHandler) RegisterRoutes(r chi.Router) {
	r.Post("/profiles", h.CreateProfile)
	r.Get("/profiles/{id}", h.GetProfile)
	r.Get("/riders", h.ListRiders)
}

// POST /v1/profiles
func (h *ProfileHandler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.CreateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.BadRequest(w, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		utils.BadRequest(w, err.Error())
		return
	}

	existing, err := h.profileRepo.GetByEmail(r.Context(), req.Email)
	if err != nil {
		handleError(w, err)
		return
	}
	if existing != nil {
		utils.Error(w, apperrors.Conflict("profile with this email already exists"))
		return
	}

	profile := &models.Profile{
		Email: req.Email,
		Name:  req.Name,
		Role:  req.Role,
	}
	if req.Phone != "" {
		phone := req.Phone
		profile.Phone = &phone
	}

	if err := h.profileRepo.Create(r.Context(), profile); err != nil {
		handleError(w, err)
		return
	}

	utils.Created(w, profile.ToResponse())
}

// GET /v1/profiles/{id}
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		utils.BadRequest(w, "profile id is required")
		return
	}

	profile, err := h.profileRepo.GetByID(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}
	if profile == nil {
		utils.NotFound(w, "profile")
		return
	}

	utils.Success(w, http.StatusOK, profile.ToResponse())
}

// GET /v1/riders
func (h *ProfileHandler) ListRiders(w http.ResponseWriter, r *http.Request) {
	riders, err := h.profileRepo.ListRiders(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	responses := make([]*models.ProfileResponse, 0, len(riders))
	for _, rider := range riders {
		responses = append(responses, rider.ToResponse())
	}

	utils.Success(w, http.StatusOK, map[string]interface{}{
		"riders": responses,
	})
}
