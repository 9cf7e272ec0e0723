package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/procura/internal/rfp"
)

const vendorColumns = `id, name, email, contact, notes, created_at`

func scanVendor(row rowScanner) (rfp.Vendor, error) {
	var v rfp.Vendor
	var createdAt string
	if err := row.Scan(&v.ID, &v.Name, &v.Email, &v.Contact, &v.Notes, &createdAt); err != nil {
		return rfp.Vendor{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return rfp.Vendor{}, fmt.Errorf("parsing created_at for vendor %s: %w", v.ID, err)
	}
	v.CreatedAt = t
	return v, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateVendor inserts a vendor. Emails are unique regardless of case.
func (s *Store) CreateVendor(v rfp.Vendor) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO vendors (id, name, email, contact, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, normalizeEmail(v.Email), v.Contact, v.Notes, formatTime(v.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("vendor %s: %w", v.Email, ErrConflict)
	}
	return err
}

// UpsertVendor creates v, or updates the name, contact and notes of the
// vendor that already has its email. It returns the stored vendor.
func (s *Store) UpsertVendor(v rfp.Vendor) (rfp.Vendor, error) {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO vendors (id, name, email, contact, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET name = excluded.name, contact = excluded.contact, notes = excluded.notes`,
		v.ID, v.Name, normalizeEmail(v.Email), v.Contact, v.Notes, formatTime(v.CreatedAt),
	)
	if err != nil {
		return rfp.Vendor{}, err
	}
	return s.GetVendorByEmail(v.Email)
}

func (s *Store) GetVendor(id string) (rfp.Vendor, error) {
	v, err := scanVendor(s.db.QueryRow(`SELECT `+vendorColumns+` FROM vendors WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return rfp.Vendor{}, ErrNotFound
	}
	return v, err
}

// GetVendorByEmail looks a vendor up by email, ignoring case.
func (s *Store) GetVendorByEmail(email string) (rfp.Vendor, error) {
	v, err := scanVendor(s.db.QueryRow(`SELECT `+vendorColumns+` FROM vendors WHERE email = ?`, normalizeEmail(email)))
	if err == sql.ErrNoRows {
		return rfp.Vendor{}, ErrNotFound
	}
	return v, err
}

// ListVendors returns all vendors ordered by name.
func (s *Store) ListVendors() ([]rfp.Vendor, error) {
	rows, err := s.db.Query(`SELECT ` + vendorColumns + ` FROM vendors ORDER BY name COLLATE NOCASE ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []rfp.Vendor{}
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}
