package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/quickhop/quickhop/internal/models"
)

type DropOffRepository interface {
	CreateBatch(ctx context.Context, dropOffs []*models.DropOff) error
	GetByID(ctx context.Context, id string) (*models.DropOff, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.DropOff, error)
	GetActiveByPhone(ctx context.Context, phone string) (*models.DropOff, error)
	ListByDelivery(ctx context.Context, deliveryID string) ([]*models.DropOff, error)
	CountByDelivery(ctx context.Context, deliveryID string) (int, error)
	MarkDelivered(ctx context.Context, id string) error
	UpdateStatusByDelivery(ctx context.Context, deliveryID, status string) error
	AllDelivered(ctx context.Context, deliveryID string) (bool, error)
}

type dropOffRepository struct {
	db *sqlx.DB
}

func NewDropOffRepository(db *sqlx.DB) DropOffRepository {
	return &dropOffRepository{db: db}
}

func (r *dropOffRepository) CreateBatch(ctx context.Context, dropOffs []*models.DropOff) error {
	if len(dropOffs) == 0 {
		return nil
	}

	query := `
		INSERT INTO drop_offs (id, delivery_id, customer_name, customer_phone, customer_email,
			address, lat, lng, status, sequence, tracking_number, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, d := range dropOffs {
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		d.CreatedAt = time.Now()
		d.Status = models.DropOffStatusPending

		if _, err := r.db.ExecContext(ctx, query,
			d.ID, d.DeliveryID, d.CustomerName, d.CustomerPhone, d.CustomerEmail,
			d.Address, d.Lat, d.Lng, d.Status, d.Sequence, d.TrackingNumber, d.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r *dropOffRepository) GetByID(ctx context.Context, id string) (*models.DropOff, error) {
	var dropOff models.DropOff
	query := `SELECT * FROM drop_offs WHERE id = $1`
	err := r.db.GetContext(ctx, &dropOff, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &dropOff, err
}

func (r *dropOffRepository) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.DropOff, error) {
	var dropOff models.DropOff
	query := `SELECT * FROM drop_offs WHERE tracking_number = $1`
	err := r.db.GetContext(ctx, &dropOff, query, trackingNumber)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &dropOff, err
}

func (r *dropOffRepository) GetActiveByPhone(ctx context.Context, phone string) (*models.DropOff, error) {
	var dropOff models.DropOff
	query := `
		SELECT * FROM drop_offs
		WHERE customer_phone = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &dropOff, query, phone,
		models.DropOffStatusPending, models.DropOffStatusPickedUp, models.DropOffStatusInTransit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &dropOff, err
}

func (r *dropOffRepository) ListByDelivery(ctx context.Context, deliveryID string) ([]*models.DropOff, error) {
	var dropOffs []*models.DropOff
	query := `SELECT * FROM drop_offs WHERE delivery_id = $1 ORDER BY sequence ASC`
	err := r.db.SelectContext(ctx, &dropOffs, query, deliveryID)
	return dropOffs, err
}

func (r *dropOffRepository) CountByDelivery(ctx context.Context, deliveryID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM drop_offs WHERE delivery_id = $1`
	err := r.db.GetContext(ctx, &count, query, deliveryID)
	return count, err
}

func (r *dropOffRepository) MarkDelivered(ctx context.Context, id string) error {
	query := `UPDATE drop_offs SET status = $1, delivered_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, models.DropOffStatusDelivered, time.Now(), id)
	return err
}

// UpdateStatusByDelivery moves all non-delivered drop-offs of a delivery to
// the given status, used when the parent delivery advances.
func (r *dropOffRepository) UpdateStatusByDelivery(ctx context.Context, deliveryID, status string) error {
	query := `UPDATE drop_offs SET status = $1 WHERE delivery_id = $2 AND status != $3`
	_, err := r.db.ExecContext(ctx, query, status, deliveryID, models.DropOffStatusDelivered)
	return err
}

func (r *dropOffRepository) AllDelivered(ctx context.Context, deliveryID string) (bool, error) {
	var remaining int
	query := `SELECT COUNT(*) FROM drop_offs WHERE delivery_id = $1 AND status != $2`
	err := r.db.GetContext(ctx, &remaining, query, deliveryID, models.DropOffStatusDelivered)
	return remaining == 0, err
}
