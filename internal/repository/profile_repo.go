package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/quickhop/quickhop/internal/models"
)

type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	GetByEmail(ctx context.Context, email string) (*models.Profile, error)
	ListRiders(ctx context.Context) ([]*models.Profile, error)
	SetAvailability(ctx context.Context, riderID string, available bool) error
	SetAvailabilityTx(ctx context.Context, tx *sqlx.Tx, riderID string, available bool) error
}

type profileRepository struct {
	db *sqlx.DB
}

func NewProfileRepository(db *sqlx.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	profile.CreatedAt = time.Now()
	profile.UpdatedAt = time.Now()

	// Riders start available; the flag has no meaning for other roles.
	if profile.Role == models.RoleRider && profile.IsAvailable == nil {
		available := true
		profile.IsAvailable = &available
	}

	query := `
		INSERT INTO profiles (id, email, name, role, phone, is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		profile.ID, profile.Email, profile.Name, profile.Role, profile.Phone,
		profile.IsAvailable, profile.CreatedAt, profile.UpdatedAt)
	return err
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	query := `SELECT * FROM profiles WHERE id = $1`
	err := r.db.GetContext(ctx, &profile, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &profile, err
}

func (r *profileRepository) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	query := `SELECT * FROM profiles WHERE email = $1`
	err := r.db.GetContext(ctx, &profile, query, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &profile, err
}

func (r *profileRepository) ListRiders(ctx context.Context) ([]*models.Profile, error) {
	var riders []*models.Profile
	query := `SELECT * FROM profiles WHERE role = $1 ORDER BY name ASC`
	err := r.db.SelectContext(ctx, &riders, query, models.RoleRider)
	return riders, err
}

func (r *profileRepository) SetAvailability(ctx context.Context, riderID string, available bool) error {
	query := `UPDATE profiles SET is_available = $1, updated_at = $2 WHERE id = $3 AND role = $4`
	_, err := r.db.ExecContext(ctx, query, available, time.Now(), riderID, models.RoleRider)
	return err
}

// SetAvailabilityTx flips the flag inside an open transaction so the claim
// resolution commits the assignment and the availability change together.
func (r *profileRepository) SetAvailabilityTx(ctx context.Context, tx *sqlx.Tx, riderID string, available bool) error {
	query := `UPDATE profiles SET is_available = $1, updated_at = $2 WHERE id = $3 AND role = $4`
	_, err := tx.ExecContext(ctx, query, available, time.Now(), riderID, models.RoleRider)
	return err
}
