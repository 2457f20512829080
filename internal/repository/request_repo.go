package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/quickhop/quickhop/internal/models"
)

type RequestRepository interface {
	Create(ctx context.Context, request *models.DeliveryRequest) error
	GetByID(ctx context.Context, id string) (*models.DeliveryRequest, error)
	GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.DeliveryRequest, error)
	ListPending(ctx context.Context) ([]*models.DeliveryRequest, error)
	MarkAcceptedTx(ctx context.Context, tx *sqlx.Tx, id, riderID string, acceptedAt time.Time) (bool, error)
	CancelByDeliveryID(ctx context.Context, deliveryID string) (bool, error)
	ExpireOverdue(ctx context.Context, now time.Time) ([]string, error)
}

type requestRepository struct {
	db *sqlx.DB
}

func NewRequestRepository(db *sqlx.DB) RequestRepository {
	return &requestRepository{db: db}
}

func (r *requestRepository) Create(ctx context.Context, request *models.DeliveryRequest) error {
	if request.ID == "" {
		request.ID = uuid.New().String()
	}
	request.CreatedAt = time.Now()
	request.Status = models.RequestStatusPending

	query := `
		INSERT INTO delivery_requests (id, delivery_id, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.db.ExecContext(ctx, query,
		request.ID, request.DeliveryID, request.Status, request.ExpiresAt, request.CreatedAt)
	return err
}

func (r *requestRepository) GetByID(ctx context.Context, id string) (*models.DeliveryRequest, error) {
	var request models.DeliveryRequest
	query := `SELECT * FROM delivery_requests WHERE id = $1`
	err := r.db.GetContext(ctx, &request, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &request, err
}

// GetByIDForUpdate locks the request row for the duration of the claim
// resolution transaction, serializing concurrent resolvers on one request.
func (r *requestRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*models.DeliveryRequest, error) {
	var request models.DeliveryRequest
	query := `SELECT * FROM delivery_requests WHERE id = $1 FOR UPDATE`
	err := tx.GetContext(ctx, &request, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &request, err
}

func (r *requestRepository) ListPending(ctx context.Context) ([]*models.DeliveryRequest, error) {
	var requests []*models.DeliveryRequest
	query := `
		SELECT * FROM delivery_requests
		WHERE status = $1 AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at DESC
	`
	err := r.db.SelectContext(ctx, &requests, query, models.RequestStatusPending)
	return requests, err
}

// MarkAcceptedTx is the conditional state transition: the update applies
// only while the request is still pending. Returns false when zero rows
// changed, meaning a concurrent resolver already claimed the request.
// At most one call per request can ever return true.
func (r *requestRepository) MarkAcceptedTx(ctx context.Context, tx *sqlx.Tx, id, riderID string, acceptedAt time.Time) (bool, error) {
	query := `
		UPDATE delivery_requests
		SET status = $1, accepted_at = $2, accepted_by_rider_id = $3
		WHERE id = $4 AND status = $5
	`
	result, err := tx.ExecContext(ctx, query,
		models.RequestStatusAccepted, acceptedAt, riderID, id, models.RequestStatusPending)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// CancelByDeliveryID closes the pending request of a cancelled delivery.
// Same conditional-update shape as MarkAcceptedTx; a request that was
// already accepted or expired is left untouched.
func (r *requestRepository) CancelByDeliveryID(ctx context.Context, deliveryID string) (bool, error) {
	query := `
		UPDATE delivery_requests
		SET status = $1
		WHERE delivery_id = $2 AND status = $3
	`
	result, err := r.db.ExecContext(ctx, query,
		models.RequestStatusCancelled, deliveryID, models.RequestStatusPending)
	if err != nil {
		return false, err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// ExpireOverdue transitions pending requests past their expiry to expired
// and returns the affected ids so events can be published.
func (r *requestRepository) ExpireOverdue(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		UPDATE delivery_requests
		SET status = $1
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at < $3
		RETURNING id
	`
	rows, err := r.db.QueryxContext(ctx, query, models.RequestStatusExpired, models.RequestStatusPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
