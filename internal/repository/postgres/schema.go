package postgres

import (
	"context"
	"fmt"
	"strings"

	"ecoride/internal/domain"
)

const (
	uniqueViolation = "23505"
	activeRideIndex = "rides_one_active_per_rider"
)

// EnsureSchema creates the tables and indexes the repositories rely on.
func EnsureSchema(ctx context.Context, q Querier) error {
	for _, stmt := range schemaStatements() {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func schemaStatements() []string {
	quoted := make([]string, 0, 3)
	for _, s := range []domain.RideStatus{domain.RideStatusCompleted, domain.RideStatusCancelled, domain.RideStatusFailed} {
		quoted = append(quoted, "'"+string(s)+"'")
	}
	terminal := strings.Join(quoted, ", ")

	return []string{
		`CREATE TABLE IF NOT EXISTS riders (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL UNIQUE,
			phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
			date_of_birth DATE,
			city TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS drivers (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			phone TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL,
			rating DOUBLE PRECISION NOT NULL DEFAULT 0,
			vehicle_type TEXT NOT NULL,
			vehicle_make TEXT NOT NULL DEFAULT '',
			vehicle_model TEXT NOT NULL DEFAULT '',
			vehicle_color TEXT NOT NULL DEFAULT '',
			plate_number TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS rides (
			id TEXT PRIMARY KEY,
			rider_id TEXT NOT NULL,
			driver_id TEXT,
			status TEXT NOT NULL,
			vehicle_type TEXT NOT NULL,
			service_type TEXT NOT NULL,
			actual_distance DOUBLE PRECISION,
			co2_saved DOUBLE PRECISION,
			trees_equivalent DOUBLE PRECISION,
			fuel_saved DOUBLE PRECISION,
			requested_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			version BIGINT NOT NULL DEFAULT 0,
			doc JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS rides_rider_requested_at ON rides (rider_id, requested_at DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ` + activeRideIndex + ` ON rides (rider_id) WHERE status NOT IN (` + terminal + `)`,
	}
}
