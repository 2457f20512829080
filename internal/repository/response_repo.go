package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	apperrors "github.com/quickhop/quickhop/internal/errors"
	"github.com/quickhop/quickhop/internal/models"
)

// Postgres unique_violation, raised by the (delivery_request_id, rider_id)
// unique index that backstops double responses.
const uniqueViolationCode = "23505"

type ResponseRepository interface {
	Create(ctx context.Context, response *models.RiderResponse) error
	GetByRequestAndRider(ctx context.Context, requestID, riderID string) (*models.RiderResponse, error)
	ListByRequest(ctx context.Context, requestID string) ([]*models.RiderResponse, error)
	EarliestAcceptorTx(ctx context.Context, tx *sqlx.Tx, requestID string) (string, error)
}

type responseRepository struct {
	db *sqlx.DB
}

func NewResponseRepository(db *sqlx.DB) ResponseRepository {
	return &responseRepository{db: db}
}

// Create appends one immutable response row. The response timestamp comes
// from the database clock, never the rider's client, so a single
// authoritative ordering source exists per request. A second response for
// the same (request, rider) pair fails with ErrDuplicateResponse.
func (r *responseRepository) Create(ctx context.Context, response *models.RiderResponse) error {
	if response.ID == "" {
		response.ID = uuid.New().String()
	}

	query := `
		INSERT INTO rider_delivery_responses (id, delivery_request_id, rider_id, action, response_timestamp, created_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING response_timestamp, seq, created_at
	`
	err := r.db.QueryRowxContext(ctx, query,
		response.ID, response.DeliveryRequestID, response.RiderID, response.Action).
		Scan(&response.ResponseTimestamp, &response.Seq, &response.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationCode {
			return apperrors.ErrDuplicateResponse
		}
		return err
	}
	return nil
}

func (r *responseRepository) GetByRequestAndRider(ctx context.Context, requestID, riderID string) (*models.RiderResponse, error) {
	var response models.RiderResponse
	query := `SELECT * FROM rider_delivery_responses WHERE delivery_request_id = $1 AND rider_id = $2`
	err := r.db.GetContext(ctx, &response, query, requestID, riderID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &response, err
}

func (r *responseRepository) ListByRequest(ctx context.Context, requestID string) ([]*models.RiderResponse, error) {
	var responses []*models.RiderResponse
	query := `
		SELECT * FROM rider_delivery_responses
		WHERE delivery_request_id = $1
		ORDER BY response_timestamp ASC, seq ASC
	`
	err := r.db.SelectContext(ctx, &responses, query, requestID)
	return responses, err
}

// EarliestAcceptorTx computes the winner of the human-facing "who clicked
// first" ordering in a single read inside the resolution transaction:
// smallest server timestamp wins, same-instant ties broken by the seq
// sequence, so the first row inserted wins. Returns an empty string when
// no accepted response exists yet.
func (r *responseRepository) EarliestAcceptorTx(ctx context.Context, tx *sqlx.Tx, requestID string) (string, error) {
	var riderID string
	query := `
		SELECT rider_id FROM rider_delivery_responses
		WHERE delivery_request_id = $1 AND action = $2
		ORDER BY response_timestamp ASC, seq ASC
		LIMIT 1
	`
	err := tx.GetContext(ctx, &riderID, query, requestID, models.ResponseActionAccepted)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return riderID, err
}
