package storage

import (
	"database/sql"
	"fmt"
	"time"
)

func scanDispatch(row rowScanner) (Dispatch, error) {
	var d Dispatch
	var sentAt string
	if err := row.Scan(&d.ID, &d.RFPID, &d.VendorID, &d.MessageID, &sentAt); err != nil {
		return Dispatch{}, err
	}
	t, err := parseTime(sentAt)
	if err != nil {
		return Dispatch{}, fmt.Errorf("parsing sent_at for dispatch %s: %w", d.ID, err)
	}
	d.SentAt = t
	return d, nil
}

func (s *Store) RecordDispatch(d Dispatch) error {
	if d.SentAt.IsZero() {
		d.SentAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO dispatches (id, rfp_id, vendor_id, message_id, sent_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.RFPID, d.VendorID, d.MessageID, formatTime(d.SentAt),
	)
	return err
}

// DispatchByMessageID finds the dispatch whose email carried messageID.
func (s *Store) DispatchByMessageID(messageID string) (Dispatch, error) {
	d, err := scanDispatch(s.db.QueryRow(`
		SELECT id, rfp_id, vendor_id, message_id, sent_at FROM dispatches
		WHERE message_id = ? ORDER BY sent_at DESC LIMIT 1`, messageID))
	if err == sql.ErrNoRows {
		return Dispatch{}, ErrNotFound
	}
	return d, err
}

// LatestDispatch returns the most recent RFP sent to a vendor.
func (s *Store) LatestDispatch(vendorID string) (Dispatch, error) {
	d, err := scanDispatch(s.db.QueryRow(`
		SELECT id, rfp_id, vendor_id, message_id, sent_at FROM dispatches
		WHERE vendor_id = ? ORDER BY sent_at DESC LIMIT 1`, vendorID))
	if err == sql.ErrNoRows {
		return Dispatch{}, ErrNotFound
	}
	return d, err
}

// ListDispatches returns every dispatch of an RFP, oldest first.
func (s *Store) ListDispatches(rfpID string) ([]Dispatch, error) {
	rows, err := s.db.Query(`
		SELECT id, rfp_id, vendor_id, message_id, sent_at FROM dispatches
		WHERE rfp_id = ? ORDER BY sent_at ASC`, rfpID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Dispatch{}
	for rows.Next() {
		d, err := scanDispatch(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}
