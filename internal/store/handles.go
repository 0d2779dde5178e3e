package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// HandleRecord is the audit row for one issued result handle.
type HandleRecord struct {
	Handle       int64  `json:"handle"`
	Kind         string `json:"kind"`
	Seq          int64  `json:"seq"`
	DestroyedSeq *int64 `json:"destroyed_seq,omitempty"`
}

// Destroyed reports whether the handle has been destroyed.
func (r HandleRecord) Destroyed() bool {
	return r.DestroyedSeq != nil
}

// RecordHandle allocates a new handle number for a result of the given kind.
// Handle numbers start at 1 and are never reused.
func (s *Store) RecordHandle(ctx context.Context, kind string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("record handle: begin tx: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextCounter(ctx, tx, counterSeq)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO result_handles (kind, seq) VALUES (?, ?)
	`, kind, seq)
	if err != nil {
		return 0, fmt.Errorf("record handle: %w", err)
	}
	h, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record handle: last insert id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("record handle: commit: %w", err)
	}
	return h, nil
}

// MarkHandleDestroyed stamps the handle with the current logical time.
// Marking an already destroyed handle is a no-op; an unknown handle
// returns ErrNotFound.
func (s *Store) MarkHandleDestroyed(ctx context.Context, h int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mark handle destroyed: begin tx: %w", err)
	}
	defer tx.Rollback()

	var destroyed sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT destroyed_seq FROM result_handles WHERE handle = ?
	`, h).Scan(&destroyed)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("handle %d: %w", h, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("mark handle destroyed: %w", err)
	}
	if destroyed.Valid {
		return nil
	}

	seq, err := nextCounter(ctx, tx, counterSeq)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE result_handles SET destroyed_seq = ? WHERE handle = ?
	`, seq, h); err != nil {
		return fmt.Errorf("mark handle destroyed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("mark handle destroyed: commit: %w", err)
	}
	return nil
}

// OpenHandles returns handles that were issued but never destroyed,
// ordered by issue order.
//
// Returns an empty slice (not nil) when every handle has been destroyed.
func (s *Store) OpenHandles(ctx context.Context) ([]HandleRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT handle, kind, seq, destroyed_seq
		FROM result_handles
		WHERE destroyed_seq IS NULL
		ORDER BY seq ASC, handle ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query open handles: %w", err)
	}
	defer rows.Close()

	records := []HandleRecord{}
	for rows.Next() {
		var (
			r         HandleRecord
			destroyed sql.NullInt64
		)
		if err := rows.Scan(&r.Handle, &r.Kind, &r.Seq, &destroyed); err != nil {
			return nil, fmt.Errorf("scan handle: %w", err)
		}
		if destroyed.Valid {
			v := destroyed.Int64
			r.DestroyedSeq = &v
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate handles: %w", err)
	}
	return records, nil
}
