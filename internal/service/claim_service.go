package service

import (
	"context"
	"log"
	"time"

	"github.com/quickhop/quickhop/internal/cache"
	apperrors "github.com/quickhop/quickhop/internal/errors"
	"github.com/quickhop/quickhop/internal/events"
	"github.com/quickhop/quickhop/internal/models"
	"github.com/quickhop/quickhop/internal/repository"
)

const defaultRequestExpiry = 30 * time.Minute

// ClaimService arbitrates concurrent accept attempts on one delivery
// request: exactly one rider wins, everyone else gets a typed rejection.
// Coordination happens entirely through the store's row lock, uniqueness
// constraint and conditional update; there is no in-process locking and
// no retrying, since a retry cannot undo a lost race.
type ClaimService interface {
	BroadcastNewRequest(ctx context.Context, deliveryID string) (*models.DeliveryRequest, error)
	RecordResponse(ctx context.Context, requestID, riderID, action string) (*models.RiderResponse, error)
	ResolveAcceptance(ctx context.Context, requestID, riderID string) (string, error)
	AcceptRequest(ctx context.Context, requestID, riderID string) (string, error)
	RejectRequest(ctx context.Context, requestID, riderID string) error
	GetRequest(ctx context.Context, requestID string) (*models.RequestResponse, error)
	PendingRequests(ctx context.Context) ([]*models.RequestResponse, error)
	ExpireOverdueRequests(ctx context.Context) (int, error)
}

type claimService struct {
	claimStore    repository.ClaimStore
	requestRepo   repository.RequestRepository
	responseRepo  repository.ResponseRepository
	deliveryRepo  repository.DeliveryRepository
	dropOffRepo   repository.DropOffRepository
	profileRepo   repository.ProfileRepository
	riderCache    cache.RiderStateCache
	publisher     events.Publisher
	requestExpiry time.Duration
	now           func() time.Time
}

func NewClaimService(
	claimStore repository.ClaimStore,
	requestRepo repository.RequestRepository,
	responseRepo repository.ResponseRepository,
	deliveryRepo repository.DeliveryRepository,
	dropOffRepo repository.DropOffRepository,
	profileRepo repository.ProfileRepository,
	riderCache cache.RiderStateCache,
	publisher events.Publisher,
	requestExpiry time.Duration,
) ClaimService {
	if requestExpiry <= 0 {
		requestExpiry = defaultRequestExpiry
	}
	return &claimService{
		claimStore:    claimStore,
		requestRepo:   requestRepo,
		responseRepo:  responseRepo,
		deliveryRepo:  deliveryRepo,
		dropOffRepo:   dropOffRepo,
		profileRepo:   profileRepo,
		riderCache:    riderCache,
		publisher:     publisher,
		requestExpiry: requestExpiry,
		now:           time.Now,
	}
}

// BroadcastNewRequest opens a claim window for a booked delivery. The
// published event is only a signal; riders re-fetch the pending list.
func (s *claimService) BroadcastNewRequest(ctx context.Context, deliveryID string) (*models.DeliveryRequest, error) {
	delivery, err := s.deliveryRepo.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if delivery == nil {
		return nil, apperrors.NotFound("delivery")
	}

	count, err := s.dropOffRepo.CountByDelivery(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, apperrors.ErrNoDropOffs
	}

	expiresAt := s.now().Add(s.requestExpiry)
	request := &models.DeliveryRequest{
		DeliveryID: deliveryID,
		ExpiresAt:  &expiresAt,
	}
	if err := s.requestRepo.Create(ctx, request); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeRequestCreated,
		RequestID:  request.ID,
		DeliveryID: deliveryID,
	})

	return request, nil
}

// RecordResponse appends the rider's immutable accept/reject attempt to
// the response ledger. The store's uniqueness constraint is the backstop
// against double-clicks and client retries.
func (s *claimService) RecordResponse(ctx context.Context, requestID, riderID, action string) (*models.RiderResponse, error) {
	if action != models.ResponseActionAccepted && action != models.ResponseActionRejected {
		return nil, apperrors.BadRequest("action must be accepted or rejected")
	}

	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.ErrRequestNotFound
	}

	if action == models.ResponseActionAccepted {
		if request.Status == models.RequestStatusAccepted {
			return nil, apperrors.ErrAlreadyClaimed
		}
		if request.Status == models.RequestStatusExpired || request.IsExpired(s.now()) {
			return nil, apperrors.ErrRequestExpired
		}
		if request.Status == models.RequestStatusCancelled {
			return nil, apperrors.ErrRequestNotFound
		}
	}

	// Both actions write a row referencing the rider, so an unknown
	// rider is rejected here rather than by the foreign key.
	rider, err := s.profileRepo.GetByID(ctx, riderID)
	if err != nil {
		return nil, err
	}
	if rider == nil {
		return nil, apperrors.NotFound("rider")
	}
	if action == models.ResponseActionAccepted && !rider.Available() {
		return nil, apperrors.ErrRiderUnavailable
	}

	response := &models.RiderResponse{
		DeliveryRequestID: requestID,
		RiderID:           riderID,
		Action:            action,
	}
	if err := s.responseRepo.Create(ctx, response); err != nil {
		return nil, err
	}
	return response, nil
}

// ResolveAcceptance decides the winner for a request the rider just
// accepted. Two race guards run inside one transaction: the earliest
// acceptor computation answers "who clicked first" from the response
// ledger, and the conditional status update is the linearization point
// that can succeed at most once per request. Both are required; the
// timestamp ordering alone cannot exclude two resolvers that read the
// ledger before either wrote.
func (s *claimService) ResolveAcceptance(ctx context.Context, requestID, riderID string) (string, error) {
	rider, err := s.profileRepo.GetByID(ctx, riderID)
	if err != nil {
		return "", err
	}
	if rider == nil {
		return "", apperrors.NotFound("rider")
	}

	var deliveryID string
	err = s.claimStore.WithTx(ctx, func(tx repository.ClaimTx) error {
		request, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if request == nil {
			return apperrors.ErrRequestNotFound
		}

		switch request.Status {
		case models.RequestStatusAccepted:
			return apperrors.ErrAlreadyClaimed
		case models.RequestStatusExpired:
			return apperrors.ErrRequestExpired
		case models.RequestStatusCancelled:
			return apperrors.ErrRequestNotFound
		}
		if request.IsExpired(s.now()) {
			return apperrors.ErrRequestExpired
		}

		earliest, err := tx.EarliestAcceptor(ctx, requestID)
		if err != nil {
			return err
		}
		if earliest == "" || earliest != riderID {
			return apperrors.ErrNotEarliestAcceptor
		}

		claimed, err := tx.MarkAccepted(ctx, requestID, riderID, s.now())
		if err != nil {
			return err
		}
		if !claimed {
			return apperrors.ErrAlreadyClaimed
		}

		if err := tx.AssignRider(ctx, request.DeliveryID, riderID, rider.Name, models.DeliveryStatusPickedUp); err != nil {
			return err
		}
		if err := tx.SetRiderAvailability(ctx, riderID, false); err != nil {
			return err
		}

		deliveryID = request.DeliveryID
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := s.riderCache.SetActiveDelivery(ctx, riderID, deliveryID); err != nil {
		log.Printf("failed to cache active delivery for rider %s: %v", riderID, err)
	}

	s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeRequestAccepted,
		RequestID:  requestID,
		DeliveryID: deliveryID,
		RiderID:    riderID,
	})

	return deliveryID, nil
}

// AcceptRequest is the rider-facing accept flow: record the response,
// then resolve. A DuplicateResponse here is a hard stop; the rider's
// original attempt stands and its outcome is already decided.
func (s *claimService) AcceptRequest(ctx context.Context, requestID, riderID string) (string, error) {
	if _, err := s.RecordResponse(ctx, requestID, riderID, models.ResponseActionAccepted); err != nil {
		return "", err
	}
	return s.ResolveAcceptance(ctx, requestID, riderID)
}

// RejectRequest records a rejection. A duplicate is benign: the rider
// already declined and nothing about the outcome changes.
func (s *claimService) RejectRequest(ctx context.Context, requestID, riderID string) error {
	_, err := s.RecordResponse(ctx, requestID, riderID, models.ResponseActionRejected)
	if err == apperrors.ErrDuplicateResponse {
		return nil
	}
	return err
}

func (s *claimService) GetRequest(ctx context.Context, requestID string) (*models.RequestResponse, error) {
	request, err := s.requestRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, apperrors.ErrRequestNotFound
	}
	return s.enrich(ctx, request), nil
}

func (s *claimService) PendingRequests(ctx context.Context) ([]*models.RequestResponse, error) {
	requests, err := s.requestRepo.ListPending(ctx)
	if err != nil {
		return nil, err
	}

	responses := make([]*models.RequestResponse, 0, len(requests))
	for _, request := range requests {
		responses = append(responses, s.enrich(ctx, request))
	}
	return responses, nil
}

func (s *claimService) enrich(ctx context.Context, request *models.DeliveryRequest) *models.RequestResponse {
	response := request.ToResponse()

	delivery, err := s.deliveryRepo.GetByID(ctx, request.DeliveryID)
	if err == nil && delivery != nil {
		response.Delivery = delivery.ToResponse()
	}
	if count, err := s.dropOffRepo.CountByDelivery(ctx, request.DeliveryID); err == nil {
		response.DropOffCount = count
	}
	return response
}

// ExpireOverdueRequests is the sweep transitioning overdue pending
// requests to expired. Run periodically from the server process.
func (s *claimService) ExpireOverdueRequests(ctx context.Context) (int, error) {
	ids, err := s.requestRepo.ExpireOverdue(ctx, s.now())
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		s.publisher.Publish(ctx, events.Event{
			Type:      events.TypeRequestExpired,
			RequestID: id,
		})
	}
	return len(ids), nil
}
