package service

import (
	"context"
	"log"

	"github.com/quickhop/quickhop/internal/cache"
	apperrors "github.com/quickhop/quickhop/internal/errors"
	"github.com/quickhop/quickhop/internal/events"
	"github.com/quickhop/quickhop/internal/models"
	"github.com/quickhop/quickhop/internal/notify"
	"github.com/quickhop/quickhop/internal/repository"
	"github.com/quickhop/quickhop/pkg/utils"
)

type DeliveryService interface {
	CreateDelivery(ctx context.Context, req *models.CreateDeliveryRequest) (*models.DeliveryResponse, error)
	GetDelivery(ctx context.Context, id string) (*models.DeliveryResponse, error)
	ListByBusiness(ctx context.Context, businessID string) ([]*models.DeliveryResponse, error)
	ListAll(ctx context.Context) ([]*models.DeliveryResponse, error)
	UpdateStatus(ctx context.Context, id, status string) error
	CancelDelivery(ctx context.Context, id string) error
	AssignRider(ctx context.Context, deliveryID, riderID string) error
	MarkDropOffDelivered(ctx context.Context, dropOffID string) (*models.DropOff, error)
	TrackByNumber(ctx context.Context, trackingNumber string) (*models.TrackingResponse, error)
	TrackByPhone(ctx context.Context, phone string) (*models.TrackingResponse, error)
}

type deliveryService struct {
	deliveryRepo repository.DeliveryRepository
	dropOffRepo  repository.DropOffRepository
	profileRepo  repository.ProfileRepository
	requestRepo  repository.RequestRepository
	riderCache   cache.RiderStateCache
	notifier     notify.Notifier
	publisher    events.Publisher
}

func NewDeliveryService(
	deliveryRepo repository.DeliveryRepository,
	dropOffRepo repository.DropOffRepository,
	profileRepo repository.ProfileRepository,
	requestRepo repository.RequestRepository,
	riderCache cache.RiderStateCache,
	notifier notify.Notifier,
	publisher events.Publisher,
) DeliveryService {
	return &deliveryService{
		deliveryRepo: deliveryRepo,
		dropOffRepo:  dropOffRepo,
		profileRepo:  profileRepo,
		requestRepo:  requestRepo,
		riderCache:   riderCache,
		notifier:     notifier,
		publisher:    publisher,
	}
}

func (s *deliveryService) CreateDelivery(ctx context.Context, req *models.CreateDeliveryRequest) (*models.DeliveryResponse, error) {
	business, err := s.profileRepo.GetByID(ctx, req.BusinessID)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, apperrors.NotFound("business")
	}
	if business.Role != models.RoleBusiness {
		return nil, apperrors.BadRequest("profile is not a business account")
	}

	delivery := &models.Delivery{
		BusinessID:    business.ID,
		BusinessName:  business.Name,
		PickupAddress: req.PickupAddress,
		ScheduledFor:  req.ScheduledFor,
	}
	if req.Notes != "" {
		delivery.Notes = &req.Notes
	}

	if err := s.deliveryRepo.Create(ctx, delivery); err != nil {
		return nil, err
	}

	dropOffs := make([]*models.DropOff, 0, len(req.DropOffs))
	for i, d := range req.DropOffs {
		trackingNumber := utils.GenerateTrackingNumber()
		dropOff := &models.DropOff{
			DeliveryID:     delivery.ID,
			CustomerName:   d.CustomerName,
			CustomerPhone:  d.CustomerPhone,
			Address:        d.Address,
			Sequence:       i + 1,
			TrackingNumber: &trackingNumber,
		}
		if d.CustomerEmail != "" {
			email := d.CustomerEmail
			dropOff.CustomerEmail = &email
		}
		dropOffs = append(dropOffs, dropOff)
	}

	if err := s.dropOffRepo.CreateBatch(ctx, dropOffs); err != nil {
		return nil, err
	}

	// Tracking emails are best-effort and never block the booking.
	go s.sendTrackingEmails(dropOffs)

	response := delivery.ToResponse()
	response.DropOffs = dropOffs
	return response, nil
}

func (s *deliveryService) sendTrackingEmails(dropOffs []*models.DropOff) {
	ctx := context.Background()
	for _, d := range dropOffs {
		if d.CustomerEmail == nil || d.TrackingNumber == nil {
			continue
		}
		if err := s.notifier.SendTrackingEmail(ctx, *d.CustomerEmail, d.CustomerName, *d.TrackingNumber); err != nil {
			log.Printf("failed to send tracking email for drop-off %s: %v", d.ID, err)
		}
	}
}

func (s *deliveryService) GetDelivery(ctx context.Context, id string) (*models.DeliveryResponse, error) {
	delivery, err := s.deliveryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, apperrors.NotFound("delivery")
	}

	response := delivery.ToResponse()
	dropOffs, err := s.dropOffRepo.ListByDelivery(ctx, id)
	if err == nil {
		response.DropOffs = dropOffs
	}
	return response, nil
}

func (s *deliveryService) ListByBusiness(ctx context.Context, businessID string) ([]*models.DeliveryResponse, error) {
	deliveries, err := s.deliveryRepo.ListByBusiness(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return s.withDropOffs(ctx, deliveries), nil
}

func (s *deliveryService) ListAll(ctx context.Context) ([]*models.DeliveryResponse, error) {
	deliveries, err := s.deliveryRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.withDropOffs(ctx, deliveries), nil
}

func (s *deliveryService) withDropOffs(ctx context.Context, deliveries []*models.Delivery) []*models.DeliveryResponse {
	responses := make([]*models.DeliveryResponse, 0, len(deliveries))
	for _, delivery := range deliveries {
		response := delivery.ToResponse()
		if dropOffs, err := s.dropOffRepo.ListByDelivery(ctx, delivery.ID); err == nil {
			response.DropOffs = dropOffs
		}
		responses = append(responses, response)
	}
	return responses
}

func (s *deliveryService) UpdateStatus(ctx context.Context, id, status string) error {
	delivery, err := s.deliveryRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if delivery == nil {
		return apperrors.NotFound("delivery")
	}

	if !delivery.CanTransitionTo(status) {
		return apperrors.InvalidTransition(delivery.Status, status)
	}

	if err := s.deliveryRepo.UpdateStatus(ctx, id, status); err != nil {
		return err
	}

	// Keep undelivered drop-offs in step with the parent delivery.
	if status == models.DeliveryStatusPickedUp || status == models.DeliveryStatusInTransit {
		if err := s.dropOffRepo.UpdateStatusByDelivery(ctx, id, status); err != nil {
			log.Printf("failed to propagate status to drop-offs of delivery %s: %v", id, err)
		}
	}

	s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeDeliveryUpdated,
		DeliveryID: id,
	})
	return nil
}

func (s *deliveryService) CancelDelivery(ctx context.Context, id string) error {
	delivery, err := s.deliveryRepo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if delivery == nil {
		return apperrors.NotFound("delivery")
	}

	if !delivery.CanTransitionTo(models.DeliveryStatusCancelled) {
		return apperrors.InvalidTransition(delivery.Status, models.DeliveryStatusCancelled)
	}

	if err := s.deliveryRepo.UpdateStatus(ctx, id, models.DeliveryStatusCancelled); err != nil {
		return err
	}

	// Close the claim window if no rider had won it yet.
	cancelled, err := s.requestRepo.CancelByDeliveryID(ctx, id)
	if err != nil {
		log.Printf("failed to cancel request for delivery %s: %v", id, err)
	} else if cancelled {
		s.publisher.Publish(ctx, events.Event{
			Type:       events.TypeRequestCancelled,
			DeliveryID: id,
		})
	}

	// An assigned rider becomes available again.
	if delivery.RiderID != nil {
		if err := s.profileRepo.SetAvailability(ctx, *delivery.RiderID, true); err != nil {
			log.Printf("failed to restore availability for rider %s: %v", *delivery.RiderID, err)
		}
		if err := s.riderCache.ClearActiveDelivery(ctx, *delivery.RiderID); err != nil {
			log.Printf("failed to clear active delivery for rider %s: %v", *delivery.RiderID, err)
		}
	}

	s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeDeliveryUpdated,
		DeliveryID: id,
	})
	return nil
}

// AssignRider is the admin's manual assignment path. It bypasses the claim
// protocol but respects the same availability rules.
func (s *deliveryService) AssignRider(ctx context.Context, deliveryID, riderID string) error {
	delivery, err := s.deliveryRepo.GetByID(ctx, deliveryID)
	if err != nil {
		return err
	}
	if delivery == nil {
		return apperrors.NotFound("delivery")
	}
	if !delivery.CanTransitionTo(models.DeliveryStatusAssigned) {
		return apperrors.InvalidTransition(delivery.Status, models.DeliveryStatusAssigned)
	}

	rider, err := s.profileRepo.GetByID(ctx, riderID)
	if err != nil {
		return err
	}
	if rider == nil {
		return apperrors.NotFound("rider")
	}
	if !rider.Available() {
		return apperrors.RiderUnavailable()
	}

	if err := s.deliveryRepo.AssignRider(ctx, deliveryID, riderID, rider.Name, models.DeliveryStatusAssigned); err != nil {
		return err
	}
	if err := s.profileRepo.SetAvailability(ctx, riderID, false); err != nil {
		log.Printf("failed to mark rider %s unavailable: %v", riderID, err)
	}
	if err := s.riderCache.SetActiveDelivery(ctx, riderID, deliveryID); err != nil {
		log.Printf("failed to cache active delivery for rider %s: %v", riderID, err)
	}

	s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeDeliveryUpdated,
		DeliveryID: deliveryID,
		RiderID:    riderID,
	})
	return nil
}

// MarkDropOffDelivered stamps one drop-off. When it was the last
// undelivered one, the delivery completes and the rider becomes available
// again; otherwise the delivery moves to in_transit.
func (s *deliveryService) MarkDropOffDelivered(ctx context.Context, dropOffID string) (*models.DropOff, error) {
	dropOff, err := s.dropOffRepo.GetByID(ctx, dropOffID)
	if err != nil {
		return nil, err
	}
	if dropOff == nil {
		return nil, apperrors.NotFound("drop-off")
	}
	if dropOff.Status == models.DropOffStatusDelivered {
		return dropOff, nil
	}

	if err := s.dropOffRepo.MarkDelivered(ctx, dropOffID); err != nil {
		return nil, err
	}

	delivery, err := s.deliveryRepo.GetByID(ctx, dropOff.DeliveryID)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, apperrors.NotFound("delivery")
	}

	allDelivered, err := s.dropOffRepo.AllDelivered(ctx, dropOff.DeliveryID)
	if err != nil {
		return nil, err
	}

	if allDelivered {
		if err := s.deliveryRepo.UpdateStatus(ctx, delivery.ID, models.DeliveryStatusDelivered); err != nil {
			return nil, err
		}
		if delivery.RiderID != nil {
			if err := s.profileRepo.SetAvailability(ctx, *delivery.RiderID, true); err != nil {
				log.Printf("failed to restore availability for rider %s: %v", *delivery.RiderID, err)
			}
			if err := s.riderCache.ClearActiveDelivery(ctx, *delivery.RiderID); err != nil {
				log.Printf("failed to clear active delivery for rider %s: %v", *delivery.RiderID, err)
			}
		}
	} else if delivery.Status != models.DeliveryStatusInTransit {
		if err := s.deliveryRepo.UpdateStatus(ctx, delivery.ID, models.DeliveryStatusInTransit); err != nil {
			return nil, err
		}
	}

	s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeDropOffDelivered,
		DeliveryID: dropOff.DeliveryID,
		DropOffID:  dropOffID,
	})

	dropOff, err = s.dropOffRepo.GetByID(ctx, dropOffID)
	if err != nil {
		return nil, err
	}
	return dropOff, nil
}

func (s *deliveryService) TrackByNumber(ctx context.Context, trackingNumber string) (*models.TrackingResponse, error) {
	dropOff, err := s.dropOffRepo.GetByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}
	if dropOff == nil {
		return nil, apperrors.NotFound("tracking number")
	}
	return s.buildTracking(ctx, dropOff)
}

func (s *deliveryService) TrackByPhone(ctx context.Context, phone string) (*models.TrackingResponse, error) {
	dropOff, err := s.dropOffRepo.GetActiveByPhone(ctx, phone)
	if err != nil {
		return nil, err
	}
	if dropOff == nil {
		return nil, apperrors.NotFound("active delivery for phone")
	}
	return s.buildTracking(ctx, dropOff)
}

func (s *deliveryService) buildTracking(ctx context.Context, dropOff *models.DropOff) (*models.TrackingResponse, error) {
	delivery, err := s.deliveryRepo.GetByID(ctx, dropOff.DeliveryID)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, apperrors.NotFound("delivery")
	}

	return &models.TrackingResponse{
		DropOff:      dropOff,
		Delivery:     delivery.ToResponse(),
		BusinessName: delivery.BusinessName,
		RiderName:    delivery.RiderName,
	}, nil
}
