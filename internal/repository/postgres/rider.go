package postgres

import (
	"context"
	"database/sql"
	"errors"

	"ecoride/internal/domain"
	"ecoride/internal/repository"
)

// RiderRepository implements repository.RiderRepository using PostgreSQL.
type RiderRepository struct {
	q Querier
}

// NewRiderRepository creates a new RiderRepository.
func NewRiderRepository(db *sql.DB) *RiderRepository {
	return &RiderRepository{q: db}
}

// Create adds a new rider.
func (r *RiderRepository) Create(ctx context.Context, rider *domain.Rider) error {
	query := `INSERT INTO riders (id, name, phone, phone_verified, date_of_birth, city, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var dob sql.NullTime
	if rider.DateOfBirth != nil {
		dob = sql.NullTime{Time: *rider.DateOfBirth, Valid: true}
	}

	_, err := r.q.ExecContext(ctx, query, rider.ID, rider.Name, rider.Phone, rider.PhoneVerified, dob, rider.City, rider.CreatedAt)
	return err
}

// GetByID retrieves a rider by ID.
func (r *RiderRepository) GetByID(ctx context.Context, id string) (*domain.Rider, error) {
	query := `SELECT id, name, phone, phone_verified, date_of_birth, city, created_at FROM riders WHERE id = $1`
	return scanRider(r.q.QueryRowContext(ctx, query, id))
}

// GetByPhone retrieves a rider by phone number.
func (r *RiderRepository) GetByPhone(ctx context.Context, phone string) (*domain.Rider, error) {
	query := `SELECT id, name, phone, phone_verified, date_of_birth, city, created_at FROM riders WHERE phone = $1`
	return scanRider(r.q.QueryRowContext(ctx, query, phone))
}

func scanRider(row *sql.Row) (*domain.Rider, error) {
	var rider domain.Rider
	var dob sql.NullTime
	err := row.Scan(&rider.ID, &rider.Name, &rider.Phone, &rider.PhoneVerified, &dob, &rider.City, &rider.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	if dob.Valid {
		rider.DateOfBirth = &dob.Time
	}
	return &rider, nil
}
