package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/quickhop/quickhop/internal/models"
)

type DeliveryRepository interface {
	Create(ctx context.Context, delivery *models.Delivery) error
	GetByID(ctx context.Context, id string) (*models.Delivery, error)
	ListByBusiness(ctx context.Context, businessID string) ([]*models.Delivery, error)
	ListAll(ctx context.Context) ([]*models.Delivery, error)
	GetActiveByRiderID(ctx context.Context, riderID string) (*models.Delivery, error)
	UpdateStatus(ctx context.Context, id, status string) error
	AssignRider(ctx context.Context, id, riderID, riderName, status string) error
	AssignRiderTx(ctx context.Context, tx *sqlx.Tx, id, riderID, riderName, status string) error
}

type deliveryRepository struct {
	db *sqlx.DB
}

func NewDeliveryRepository(db *sqlx.DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

func (r *deliveryRepository) Create(ctx context.Context, delivery *models.Delivery) error {
	if delivery.ID == "" {
		delivery.ID = uuid.New().String()
	}
	delivery.CreatedAt = time.Now()
	delivery.Status = models.DeliveryStatusPending

	query := `
		INSERT INTO deliveries (id, business_id, business_name, pickup_address,
			pickup_lat, pickup_lng, status, scheduled_for, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		delivery.ID, delivery.BusinessID, delivery.BusinessName, delivery.PickupAddress,
		delivery.PickupLat, delivery.PickupLng, delivery.Status, delivery.ScheduledFor,
		delivery.Notes, delivery.CreatedAt)
	return err
}

func (r *deliveryRepository) GetByID(ctx context.Context, id string) (*models.Delivery, error) {
	var delivery models.Delivery
	query := `SELECT * FROM deliveries WHERE id = $1`
	err := r.db.GetContext(ctx, &delivery, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &delivery, err
}

func (r *deliveryRepository) ListByBusiness(ctx context.Context, businessID string) ([]*models.Delivery, error) {
	var deliveries []*models.Delivery
	query := `SELECT * FROM deliveries WHERE business_id = $1 ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &deliveries, query, businessID)
	return deliveries, err
}

func (r *deliveryRepository) ListAll(ctx context.Context) ([]*models.Delivery, error) {
	var deliveries []*models.Delivery
	query := `SELECT * FROM deliveries ORDER BY created_at DESC`
	err := r.db.SelectContext(ctx, &deliveries, query)
	return deliveries, err
}

func (r *deliveryRepository) GetActiveByRiderID(ctx context.Context, riderID string) (*models.Delivery, error) {
	var delivery models.Delivery
	query := `
		SELECT * FROM deliveries
		WHERE rider_id = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &delivery, query, riderID,
		models.DeliveryStatusAssigned, models.DeliveryStatusPickedUp, models.DeliveryStatusInTransit)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &delivery, err
}

func (r *deliveryRepository) UpdateStatus(ctx context.Context, id, status string) error {
	if status == models.DeliveryStatusDelivered {
		query := `UPDATE deliveries SET status = $1, completed_at = $2 WHERE id = $3`
		_, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
		return err
	}

	query := `UPDATE deliveries SET status = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, id)
	return err
}

func (r *deliveryRepository) AssignRider(ctx context.Context, id, riderID, riderName, status string) error {
	query := `UPDATE deliveries SET rider_id = $1, rider_name = $2, status = $3 WHERE id = $4`
	_, err := r.db.ExecContext(ctx, query, riderID, riderName, status, id)
	return err
}

// AssignRiderTx writes the assignment fields inside the claim resolution
// transaction. The arbiter is the only writer of these fields.
func (r *deliveryRepository) AssignRiderTx(ctx context.Context, tx *sqlx.Tx, id, riderID, riderName, status string) error {
	query := `UPDATE deliveries SET rider_id = $1, rider_name = $2, status = $3 WHERE id = $4`
	_, err := tx.ExecContext(ctx, query, riderID, riderName, status, id)
	return err
}
