package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/quickhop/quickhop/internal/models"
)

// ClaimTx is the view of the store available inside one claim resolution
// transaction. All reads and writes made through it commit or roll back
// together; the request row lock taken by GetRequestForUpdate serializes
// concurrent resolvers on the same request.
type ClaimTx interface {
	GetRequestForUpdate(ctx context.Context, requestID string) (*models.DeliveryRequest, error)
	EarliestAcceptor(ctx context.Context, requestID string) (string, error)
	MarkAccepted(ctx context.Context, requestID, riderID string, acceptedAt time.Time) (bool, error)
	AssignRider(ctx context.Context, deliveryID, riderID, riderName, status string) error
	SetRiderAvailability(ctx context.Context, riderID string, available bool) error
}

// ClaimStore runs claim resolutions transactionally.
type ClaimStore interface {
	WithTx(ctx context.Context, fn func(tx ClaimTx) error) error
}

type claimStore struct {
	db        *sqlx.DB
	requests  RequestRepository
	responses ResponseRepository
	delivers  DeliveryRepository
	profiles  ProfileRepository
}

func NewClaimStore(
	db *sqlx.DB,
	requests RequestRepository,
	responses ResponseRepository,
	deliveries DeliveryRepository,
	profiles ProfileRepository,
) ClaimStore {
	return &claimStore{
		db:        db,
		requests:  requests,
		responses: responses,
		delivers:  deliveries,
		profiles:  profiles,
	}
}

func (s *claimStore) WithTx(ctx context.Context, fn func(tx ClaimTx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin claim tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&claimTx{store: s, tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type claimTx struct {
	store *claimStore
	tx    *sqlx.Tx
}

func (c *claimTx) GetRequestForUpdate(ctx context.Context, requestID string) (*models.DeliveryRequest, error) {
	return c.store.requests.GetByIDForUpdate(ctx, c.tx, requestID)
}

func (c *claimTx) EarliestAcceptor(ctx context.Context, requestID string) (string, error) {
	return c.store.responses.EarliestAcceptorTx(ctx, c.tx, requestID)
}

func (c *claimTx) MarkAccepted(ctx context.Context, requestID, riderID string, acceptedAt time.Time) (bool, error) {
	return c.store.requests.MarkAcceptedTx(ctx, c.tx, requestID, riderID, acceptedAt)
}

func (c *claimTx) AssignRider(ctx context.Context, deliveryID, riderID, riderName, status string) error {
	return c.store.delivers.AssignRiderTx(ctx, c.tx, deliveryID, riderID, riderName, status)
}

func (c *claimTx) SetRiderAvailability(ctx context.Context, riderID string, available bool) error {
	return c.store.profiles.SetAvailabilityTx(ctx, c.tx, riderID, available)
}
