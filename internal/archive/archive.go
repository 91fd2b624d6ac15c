// Package archive keeps a local SQLite record of appended samples and
// control-state transitions, so a session can be reviewed after the rig
// has moved on.
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/rigdash/internal/control"
	"github.com/nerrad567/rigdash/internal/device"
	"github.com/nerrad567/rigdash/internal/rig"
	"github.com/nerrad567/rigdash/internal/series"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// ErrInvalidRetention is returned by Prune for a non-positive age.
var ErrInvalidRetention = errors.New("archive: retention must be positive")

// SampleRecord is one archived sample.
type SampleRecord struct {
	ID         int64         `json:"id"`
	Device     device.Ref    `json:"device"`
	Name       string        `json:"name"`
	Sample     series.Sample `json:"sample"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Transition is one archived control-state change.
type Transition struct {
	ID         int64            `json:"id"`
	State      control.State    `json:"state"`
	Code       rig.ControlState `json:"code"`
	Text       string           `json:"text"`
	Experiment string           `json:"experiment,omitempty"`
	User       string           `json:"user,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}

// Store reads and writes the archive tables. It is safe for concurrent use;
// serialisation is left to the single-connection pool.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a store over an open, migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WriteSamples archives samples for dev in one transaction. It satisfies
// poller.SampleSink.
func (s *Store) WriteSamples(ctx context.Context, dev device.Device, samples []series.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting sample transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO samples (kind, device_id, name, t, v, recorded_at) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing sample insert: %w", err)
	}
	defer stmt.Close()

	at := s.now().UnixMilli()
	for _, smp := range samples {
		if _, err := stmt.ExecContext(ctx, string(dev.Kind), dev.ID, dev.Name, smp.T, smp.V, at); err != nil {
			return fmt.Errorf("inserting sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing samples: %w", err)
	}
	return nil
}

// RecordTransition archives a control view. Callers pass views from
// control.Monitor's change listener, so identical polls are never stored.
func (s *Store) RecordTransition(ctx context.Context, v control.View) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO control_transitions (state, code, text, experiment, user_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(v.State), int(v.Code), v.Text, v.Experiment, v.User, s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("inserting control transition: %w", err)
	}
	return nil
}

// Samples returns the most recent archived samples for ref, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - ref: Device to read
//   - limit: Maximum rows (default 50, max 200)
func (s *Store) Samples(ctx context.Context, ref device.Ref, limit int) ([]SampleRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, device_id, name, t, v, recorded_at
		 FROM samples
		 WHERE kind = ? AND device_id = ?
		 ORDER BY t DESC
		 LIMIT ?`,
		string(ref.Kind), ref.ID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying samples: %w", err)
	}
	defer rows.Close()

	var out []SampleRecord
	for rows.Next() {
		var r SampleRecord
		var kind string
		var at int64
		if err := rows.Scan(&r.ID, &kind, &r.Device.ID, &r.Name, &r.Sample.T, &r.Sample.V, &at); err != nil {
			return nil, fmt.Errorf("scanning sample: %w", err)
		}
		r.Device.Kind = rig.Kind(kind)
		r.RecordedAt = time.UnixMilli(at).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating samples: %w", err)
	}
	return out, nil
}

// Transitions returns the most recent control transitions, newest first.
func (s *Store) Transitions(ctx context.Context, limit int) ([]Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state, code, text, experiment, user_name, created_at
		 FROM control_transitions
		 ORDER BY id DESC
		 LIMIT ?`,
		clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("querying control transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var tr Transition
		var state string
		var at int64
		if err := rows.Scan(&tr.ID, &state, &tr.Code, &tr.Text, &tr.Experiment, &tr.User, &at); err != nil {
			return nil, fmt.Errorf("scanning control transition: %w", err)
		}
		tr.State = control.State(state)
		tr.CreatedAt = time.UnixMilli(at).UTC()
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating control transitions: %w", err)
	}
	return out, nil
}

// Prune deletes rows recorded more than olderThan ago from both tables and
// returns how many went.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidRetention
	}
	cutoff := s.now().Add(-olderThan).UnixMilli()

	var total int64
	for _, q := range []string{
		"DELETE FROM samples WHERE recorded_at < ?",
		"DELETE FROM control_transitions WHERE created_at < ?",
	} {
		res, err := s.db.ExecContext(ctx, q, cutoff)
		if err != nil {
			return total, fmt.Errorf("pruning archive: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("reading pruned row count: %w", err)
		}
		total += n
	}
	return total, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}
