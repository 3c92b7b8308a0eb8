package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UpdateState records when a data source last delivered data, and whether it
// is fed by push. Incremental pull sources use it to request deltas;
// downstream read paths use it to judge data freshness.
type UpdateState struct {
	DataSource string
	LastUpdate time.Time
	Push       bool
}

// UpdateStateRepository persists per-source sync state.
type UpdateStateRepository struct {
	db *sql.DB
}

// NewUpdateStateRepository returns repository.
func NewUpdateStateRepository(db *sql.DB) *UpdateStateRepository {
	return &UpdateStateRepository{db: db}
}

// ErrUpdateStateNotFound indicates the data source has never completed a sync.
var ErrUpdateStateNotFound = errors.New("update state not found")

// Get returns the state record for a data source.
func (r *UpdateStateRepository) Get(ctx context.Context, dataSource string) (*UpdateState, error) {
	const query = `SELECT data_source, last_update, push FROM update_states WHERE data_source = $1`
	var st UpdateState
	err := r.db.QueryRowContext(ctx, query, dataSource).Scan(&st.DataSource, &st.LastUpdate, &st.Push)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUpdateStateNotFound
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Touch upserts the state record with the given timestamp.
func (r *UpdateStateRepository) Touch(ctx context.Context, dataSource string, at time.Time, push bool) error {
	const query = `
		INSERT INTO update_states (data_source, last_update, push)
		VALUES ($1, $2, $3)
		ON CONFLICT (data_source) DO UPDATE SET
			last_update = EXCLUDED.last_update,
			push = EXCLUDED.push
	`
	_, err := r.db.ExecContext(ctx, query, dataSource, at, push)
	return err
}
