package handler

import (
	"net/http"

	apperrors "github.com/quickhop/quickhop/internal/errors"
	"github.com/quickhop/quickhop/pkg/utils"
)

// handleError maps service errors onto API responses. Claim-race outcomes
// are ordinary conflict responses, never 5xx.
func handleError(w http.ResponseWriter, err error) {
	if apiErr, ok := err.(*apperrors.APIError); ok {
		utils.Error(w, apiErr)
		return
	}

	switch err {
	case apperrors.ErrDuplicateResponse:
		utils.Error(w, apperrors.DuplicateResponse())
	case apperrors.ErrRequestNotFound:
		utils.Error(w, apperrors.NotFound("delivery request"))
	case apperrors.ErrAlreadyClaimed:
		utils.Error(w, apperrors.AlreadyClaimed())
	case apperrors.ErrNotEarliestAcceptor:
		utils.Error(w, apperrors.NotEarliestAcceptor())
	case apperrors.ErrRequestExpired:
		utils.Error(w, apperrors.RequestExpired())
	case apperrors.ErrRiderUnavailable:
		utils.Error(w, apperrors.RiderUnavailable())
	case apperrors.ErrNoDropOffs:
		utils.BadRequest(w, "delivery has no drop-offs")
	default:
		utils.InternalError(w, "internal server error")
	}
}
