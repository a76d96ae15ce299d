package postgres

import (
	"context"
	"database/sql"

	"ecoride/internal/repository"
)

// TxManager runs ride and driver writes in a single transaction.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a new TxManager.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithinTx calls fn with transaction-scoped repositories. The transaction is
// committed when fn returns nil and rolled back otherwise.
func (m *TxManager) WithinTx(
	ctx context.Context,
	fn func(rides repository.RideRepository, drivers repository.DriverRepository) error,
) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(NewRideRepositoryWithTx(tx), NewDriverRepositoryWithTx(tx)); err != nil {
		return err
	}

	return tx.Commit()
}
