package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"ecoride/internal/domain"
	"ecoride/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
// The full ride is kept in a JSONB document; queried fields are mirrored into columns.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

// rideColumns mirrors the scalar fields of a ride.
type rideColumns struct {
	driverID        sql.NullString
	actualDistance  sql.NullFloat64
	co2Saved        sql.NullFloat64
	treesEquivalent sql.NullFloat64
	fuelSaved       sql.NullFloat64
	doc             []byte
}

func columnsFor(ride *domain.Ride) (rideColumns, error) {
	var c rideColumns
	if ride.Driver != nil {
		c.driverID = sql.NullString{String: ride.Driver.DriverID, Valid: true}
	}
	if ride.ActualDistance != nil {
		c.actualDistance = sql.NullFloat64{Float64: *ride.ActualDistance, Valid: true}
	}
	if ride.EcoImpact != nil {
		c.co2Saved = sql.NullFloat64{Float64: ride.EcoImpact.CO2Saved, Valid: true}
		c.treesEquivalent = sql.NullFloat64{Float64: ride.EcoImpact.TreesEquivalent, Valid: true}
		c.fuelSaved = sql.NullFloat64{Float64: ride.EcoImpact.FuelSaved, Valid: true}
	}
	doc, err := json.Marshal(ride)
	if err != nil {
		return c, fmt.Errorf("encode ride %s: %w", ride.ID, err)
	}
	c.doc = doc
	return c, nil
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, rider_id, driver_id, status, vehicle_type, service_type, actual_distance, co2_saved, trees_equivalent, fuel_saved, requested_at, updated_at, version, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	c, err := columnsFor(ride)
	if err != nil {
		return err
	}

	_, err = r.q.ExecContext(ctx, query,
		ride.ID,
		ride.RiderID,
		c.driverID,
		ride.Status,
		ride.VehicleType,
		ride.ServiceType,
		c.actualDistance,
		c.co2Saved,
		c.treesEquivalent,
		c.fuelSaved,
		ride.RequestedAt,
		ride.UpdatedAt,
		ride.Version,
		c.doc,
	)
	if isActiveRideViolation(err) {
		return repository.ErrDuplicateActiveRide
	}
	return err
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT doc, version FROM rides WHERE id = $1`
	return scanRide(r.q.QueryRowContext(ctx, query, id))
}

// Update writes the ride if nobody else updated it since it was read.
func (r *RideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	query := `
		UPDATE rides
		SET driver_id = $1, status = $2, actual_distance = $3, co2_saved = $4, trees_equivalent = $5, fuel_saved = $6, updated_at = $7, doc = $8, version = version + 1
		WHERE id = $9 AND version = $10
	`

	c, err := columnsFor(ride)
	if err != nil {
		return err
	}

	result, err := r.q.ExecContext(ctx, query,
		c.driverID,
		ride.Status,
		c.actualDistance,
		c.co2Saved,
		c.treesEquivalent,
		c.fuelSaved,
		ride.UpdatedAt,
		c.doc,
		ride.ID,
		ride.Version,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		var exists bool
		if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM rides WHERE id = $1)`, ride.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}

	ride.Version++
	return nil
}

// GetActiveByRider returns the rider's non-terminal ride.
func (r *RideRepository) GetActiveByRider(ctx context.Context, riderID string) (*domain.Ride, error) {
	query := `
		SELECT doc, version FROM rides
		WHERE rider_id = $1 AND status = ANY($2)
		ORDER BY requested_at DESC LIMIT 1
	`
	return scanRide(r.q.QueryRowContext(ctx, query, riderID, pq.Array(activeStatuses())))
}

// ListByRider returns a page of the rider's rides, newest first.
func (r *RideRepository) ListByRider(ctx context.Context, riderID string, limit, skip int) ([]*domain.Ride, error) {
	query := `
		SELECT doc, version FROM rides
		WHERE rider_id = $1
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.q.QueryContext(ctx, query, riderID, limit, skip)
	if err != nil {
		return nil, err
	}
	return scanRides(rows)
}

// ListActive returns non-terminal rides, newest first.
func (r *RideRepository) ListActive(ctx context.Context, limit int) ([]*domain.Ride, error) {
	query := `
		SELECT doc, version FROM rides
		WHERE status = ANY($1)
		ORDER BY requested_at DESC
		LIMIT $2
	`
	rows, err := r.q.QueryContext(ctx, query, pq.Array(activeStatuses()), limit)
	if err != nil {
		return nil, err
	}
	return scanRides(rows)
}

// EcoStatsByRider sums eco impact over completed rides. Rounding is left to the caller.
func (r *RideRepository) EcoStatsByRider(ctx context.Context, riderID string) (domain.EcoStats, error) {
	query := `
		SELECT COUNT(*),
			COALESCE(SUM(actual_distance), 0),
			COALESCE(SUM(co2_saved), 0),
			COALESCE(SUM(trees_equivalent), 0),
			COALESCE(SUM(fuel_saved), 0)
		FROM rides
		WHERE rider_id = $1 AND status = $2
	`

	var stats domain.EcoStats
	err := r.q.QueryRowContext(ctx, query, riderID, domain.RideStatusCompleted).Scan(
		&stats.TotalRides,
		&stats.TotalDistance,
		&stats.CO2Saved,
		&stats.TreesEquivalent,
		&stats.FuelSaved,
	)
	return stats, err
}

// CompletedDistanceByRider returns how many rides the rider completed and their average length.
func (r *RideRepository) CompletedDistanceByRider(ctx context.Context, riderID string) (int, float64, error) {
	query := `
		SELECT COUNT(*), COALESCE(AVG(actual_distance), 0)
		FROM rides
		WHERE rider_id = $1 AND status = $2
	`

	var count int
	var avg float64
	if err := r.q.QueryRowContext(ctx, query, riderID, domain.RideStatusCompleted).Scan(&count, &avg); err != nil {
		return 0, 0, err
	}
	return count, avg, nil
}

func scanRide(row *sql.Row) (*domain.Ride, error) {
	var doc []byte
	var version int64
	if err := row.Scan(&doc, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return decodeRide(doc, version)
}

func scanRides(rows *sql.Rows) ([]*domain.Ride, error) {
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		var doc []byte
		var version int64
		if err := rows.Scan(&doc, &version); err != nil {
			return nil, err
		}
		ride, err := decodeRide(doc, version)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

func decodeRide(doc []byte, version int64) (*domain.Ride, error) {
	var ride domain.Ride
	if err := json.Unmarshal(doc, &ride); err != nil {
		return nil, fmt.Errorf("decode ride: %w", err)
	}
	ride.Version = version
	return &ride, nil
}

func activeStatuses() []string {
	statuses := domain.ActiveRideStatuses()
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

// isActiveRideViolation reports whether err is the one-active-ride-per-rider index firing.
func isActiveRideViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == uniqueViolation && pqErr.Constraint == activeRideIndex
}
