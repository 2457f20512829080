package service

import (
	"context"
	"log"

	"github.com/quickhop/quickhop/internal/cache"
	apperrors "github.com/quickhop/quickhop/internal/errors"
	"github.com/quickhop/quickhop/internal/models"
	"github.com/quickhop/quickhop/internal/repository"
)

type RiderService interface {
	GetAvailability(ctx context.Context, riderID string) (bool, error)
	SetAvailability(ctx context.Context, riderID string, available bool) error
	ActiveDelivery(ctx context.Context, riderID string) (*models.DeliveryResponse, error)
}

type riderService struct {
	profileRepo  repository.ProfileRepository
	deliveryRepo repository.DeliveryRepository
	dropOffRepo  repository.DropOffRepository
	riderCache   cache.RiderStateCache
}

func NewRiderService(
	profileRepo repository.ProfileRepository,
	deliveryRepo repository.DeliveryRepository,
	dropOffRepo repository.DropOffRepository,
	riderCache cache.RiderStateCache,
) RiderService {
	return &riderService{
		profileRepo:  profileRepo,
		deliveryRepo: deliveryRepo,
		dropOffRepo:  dropOffRepo,
		riderCache:   riderCache,
	}
}

func (s *riderService) GetAvailability(ctx context.Context, riderID string) (bool, error) {
	rider, err := s.profileRepo.GetByID(ctx, riderID)
	if err != nil {
		return false, err
	}
	if rider == nil {
		return false, apperrors.NotFound("rider")
	}
	if rider.Role != models.RoleRider {
		return false, apperrors.BadRequest("profile is not a rider account")
	}
	return rider.Available(), nil
}

// SetAvailability lets a rider toggle their own flag. Going available is
// refused while an assigned delivery still has unresolved drop-offs; the
// delivery completion path flips it back automatically.
func (s *riderService) SetAvailability(ctx context.Context, riderID string, available bool) error {
	rider, err := s.profileRepo.GetByID(ctx, riderID)
	if err != nil {
		return err
	}
	if rider == nil {
		return apperrors.NotFound("rider")
	}
	if rider.Role != models.RoleRider {
		return apperrors.BadRequest("profile is not a rider account")
	}

	if available {
		active, err := s.deliveryRepo.GetActiveByRiderID(ctx, riderID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperrors.Conflict("cannot go available with an active delivery")
		}
	}

	return s.profileRepo.SetAvailability(ctx, riderID, available)
}

// ActiveDelivery resolves the rider's current assignment, trying the
// Redis mirror before the database.
func (s *riderService) ActiveDelivery(ctx context.Context, riderID string) (*models.DeliveryResponse, error) {
	var delivery *models.Delivery

	if deliveryID, err := s.riderCache.GetActiveDelivery(ctx, riderID); err == nil && deliveryID != "" {
		delivery, err = s.deliveryRepo.GetByID(ctx, deliveryID)
		if err != nil {
			return nil, err
		}
		// Stale mirror entry; fall through to the database.
		if delivery != nil && !delivery.IsActive() {
			delivery = nil
		}
	}

	if delivery == nil {
		var err error
		delivery, err = s.deliveryRepo.GetActiveByRiderID(ctx, riderID)
		if err != nil {
			return nil, err
		}
	}
	if delivery == nil {
		return nil, apperrors.NotFound("active delivery")
	}

	response := delivery.ToResponse()
	dropOffs, err := s.dropOffRepo.ListByDelivery(ctx, delivery.ID)
	if err != nil {
		log.Printf("failed to load drop-offs for delivery %s: %v", delivery.ID, err)
	} else {
		response.DropOffs = dropOffs
	}
	return response, nil
}
