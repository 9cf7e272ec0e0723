package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kalambet/procura/internal/rfp"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const rfpColumns = `id, title, description, budget, deadline, requirements_json, status,
	comparison_cache, comparison_cache_updated_at, created_at, updated_at`

func scanRFP(row rowScanner) (rfp.RFP, error) {
	var r rfp.RFP
	var budget sql.NullFloat64
	var deadline, cache, cacheAt sql.NullString
	var reqJSON, status, createdAt, updatedAt string
	if err := row.Scan(&r.ID, &r.Title, &r.Description, &budget, &deadline, &reqJSON, &status,
		&cache, &cacheAt, &createdAt, &updatedAt); err != nil {
		return rfp.RFP{}, err
	}
	r.Status = rfp.Status(status)
	if budget.Valid {
		b := budget.Float64
		r.Budget = &b
	}
	var err error
	if r.Deadline, err = parseNullTime(deadline); err != nil {
		return rfp.RFP{}, fmt.Errorf("parsing deadline for rfp %s: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(reqJSON), &r.Requirements); err != nil {
		return rfp.RFP{}, fmt.Errorf("decoding requirements for rfp %s: %w", r.ID, err)
	}
	if cache.Valid {
		var c rfp.ComparisonResult
		if err := json.Unmarshal([]byte(cache.String), &c); err != nil {
			return rfp.RFP{}, fmt.Errorf("decoding comparison for rfp %s: %w", r.ID, err)
		}
		r.Comparison = &c
		if r.ComparisonUpdatedAt, err = parseNullTime(cacheAt); err != nil {
			return rfp.RFP{}, fmt.Errorf("parsing comparison time for rfp %s: %w", r.ID, err)
		}
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return rfp.RFP{}, fmt.Errorf("parsing created_at for rfp %s: %w", r.ID, err)
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return rfp.RFP{}, fmt.Errorf("parsing updated_at for rfp %s: %w", r.ID, err)
	}
	return r, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// CreateRFP inserts a new RFP. The comparison cache starts empty.
func (s *Store) CreateRFP(r rfp.RFP) error {
	req, err := json.Marshal(r.Requirements)
	if err != nil {
		return fmt.Errorf("encoding requirements: %w", err)
	}
	status := r.Status
	if status == "" {
		status = rfp.StatusDraft
	}
	now := time.Now()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	_, err = s.db.Exec(`
		INSERT INTO rfps (id, title, description, budget, deadline, requirements_json, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, r.Description, nullFloat(r.Budget), formatNullTime(r.Deadline), string(req),
		string(status), formatTime(r.CreatedAt), formatTime(r.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("rfp %s: %w", r.ID, ErrConflict)
	}
	return err
}

func (s *Store) GetRFP(id string) (rfp.RFP, error) {
	r, err := scanRFP(s.db.QueryRow(`SELECT `+rfpColumns+` FROM rfps WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return rfp.RFP{}, ErrNotFound
	}
	return r, err
}

// ListRFPs returns the most recently created RFPs first.
func (s *Store) ListRFPs(limit int) ([]rfp.RFP, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`SELECT `+rfpColumns+` FROM rfps ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []rfp.RFP{}
	for rows.Next() {
		r, err := scanRFP(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// UpdateRFP writes the mutable fields of r. When structural is set the
// comparison cache is cleared in the same transaction.
func (s *Store) UpdateRFP(r rfp.RFP, structural bool) error {
	req, err := json.Marshal(r.Requirements)
	if err != nil {
		return fmt.Errorf("encoding requirements: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning update transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE rfps SET title = ?, description = ?, budget = ?, deadline = ?, requirements_json = ?, updated_at = ?
		WHERE id = ?`,
		r.Title, r.Description, nullFloat(r.Budget), formatNullTime(r.Deadline), string(req),
		formatTime(time.Now()), r.ID,
	)
	if err != nil {
		return err
	}
	if err := checkAffected(res); err != nil {
		return err
	}
	if structural {
		if err := invalidateComparison(tx, r.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetRFPStatus moves an RFP to status to, rejecting transitions the
// lifecycle does not allow.
func (s *Store) SetRFPStatus(id string, to rfp.Status) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning status transaction: %w", err)
	}
	defer tx.Rollback()

	var from string
	err = tx.QueryRow(`SELECT status FROM rfps WHERE id = ?`, id).Scan(&from)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !rfp.CanTransition(rfp.Status(from), to) {
		return fmt.Errorf("rfp %s from %s to %s: %w", id, from, to, rfp.ErrInvalidTransition)
	}
	if _, err := tx.Exec(`UPDATE rfps SET status = ?, updated_at = ? WHERE id = ?`,
		string(to), formatTime(time.Now()), id); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Comparison cache ---

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func invalidateComparison(db execer, rfpID string) error {
	_, err := db.Exec(`
		UPDATE rfps SET comparison_cache = NULL, comparison_cache_updated_at = NULL, cache_epoch = cache_epoch + 1
		WHERE id = ?`, rfpID)
	if err != nil {
		return fmt.Errorf("invalidating comparison for rfp %s: %w", rfpID, err)
	}
	return nil
}

// InvalidateComparison clears the cached comparison of an RFP and bumps its
// epoch so that comparisons computed before this call are never stored.
func (s *Store) InvalidateComparison(rfpID string) error {
	return invalidateComparison(s.db, rfpID)
}

// GetComparison returns the cached comparison of an RFP, which may be nil,
// and the epoch to pass to StoreComparison.
func (s *Store) GetComparison(rfpID string) (CachedComparison, error) {
	var c CachedComparison
	var cache, cacheAt sql.NullString
	err := s.db.QueryRow(`SELECT cache_epoch, comparison_cache, comparison_cache_updated_at FROM rfps WHERE id = ?`, rfpID).
		Scan(&c.Epoch, &cache, &cacheAt)
	if err == sql.ErrNoRows {
		return CachedComparison{}, ErrNotFound
	}
	if err != nil {
		return CachedComparison{}, err
	}
	if !cache.Valid {
		return c, nil
	}
	var res rfp.ComparisonResult
	if err := json.Unmarshal([]byte(cache.String), &res); err != nil {
		return CachedComparison{}, fmt.Errorf("decoding comparison for rfp %s: %w", rfpID, err)
	}
	c.Result = &res
	if c.UpdatedAt, err = parseNullTime(cacheAt); err != nil {
		return CachedComparison{}, fmt.Errorf("parsing comparison time for rfp %s: %w", rfpID, err)
	}
	return c, nil
}

// StoreComparison caches res for an RFP only if no invalidation happened
// since epoch was read. It reports whether the write took effect.
func (s *Store) StoreComparison(rfpID string, epoch int64, res rfp.ComparisonResult, at time.Time) (bool, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return false, fmt.Errorf("encoding comparison: %w", err)
	}
	r, err := s.db.Exec(`
		UPDATE rfps SET comparison_cache = ?, comparison_cache_updated_at = ?
		WHERE id = ? AND cache_epoch = ?`,
		string(data), formatTime(at), rfpID, epoch,
	)
	if err != nil {
		return false, err
	}
	n, err := r.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
