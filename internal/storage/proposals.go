package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kalambet/procura/internal/rfp"
)

const proposalColumns = `id, rfp_id, vendor_id, raw_reply, fields_json, parsed_data_json,
	attachments_json, evaluation_json, created_at, updated_at`

func scanProposal(row rowScanner) (rfp.Proposal, error) {
	var p rfp.Proposal
	var fieldsJSON, attachmentsJSON, createdAt, updatedAt string
	var parsedJSON, evalJSON sql.NullString
	if err := row.Scan(&p.ID, &p.RFPID, &p.VendorID, &p.RawReply, &fieldsJSON, &parsedJSON,
		&attachmentsJSON, &evalJSON, &createdAt, &updatedAt); err != nil {
		return rfp.Proposal{}, err
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &p.Fields); err != nil {
		return rfp.Proposal{}, fmt.Errorf("decoding fields for proposal %s: %w", p.ID, err)
	}
	if parsedJSON.Valid {
		if err := json.Unmarshal([]byte(parsedJSON.String), &p.ParsedData); err != nil {
			return rfp.Proposal{}, fmt.Errorf("decoding parsed data for proposal %s: %w", p.ID, err)
		}
	}
	if err := json.Unmarshal([]byte(attachmentsJSON), &p.Attachments); err != nil {
		return rfp.Proposal{}, fmt.Errorf("decoding attachments for proposal %s: %w", p.ID, err)
	}
	if evalJSON.Valid {
		var e rfp.Evaluation
		if err := json.Unmarshal([]byte(evalJSON.String), &e); err != nil {
			return rfp.Proposal{}, fmt.Errorf("decoding evaluation for proposal %s: %w", p.ID, err)
		}
		p.Evaluation = &e
	}
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return rfp.Proposal{}, fmt.Errorf("parsing created_at for proposal %s: %w", p.ID, err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return rfp.Proposal{}, fmt.Errorf("parsing updated_at for proposal %s: %w", p.ID, err)
	}
	return p, nil
}

type proposalJSON struct {
	fields, attachments string
	parsed              sql.NullString
}

func encodeProposal(p rfp.Proposal) (proposalJSON, error) {
	var out proposalJSON
	fields, err := json.Marshal(p.Fields)
	if err != nil {
		return out, fmt.Errorf("encoding fields: %w", err)
	}
	out.fields = string(fields)

	attachments := p.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	a, err := json.Marshal(attachments)
	if err != nil {
		return out, fmt.Errorf("encoding attachments: %w", err)
	}
	out.attachments = string(a)

	if p.ParsedData != nil {
		pd, err := json.Marshal(p.ParsedData)
		if err != nil {
			return out, fmt.Errorf("encoding parsed data: %w", err)
		}
		out.parsed = sql.NullString{String: string(pd), Valid: true}
	}
	return out, nil
}

// CreateProposal inserts a proposal and clears the RFP's comparison cache
// in the same transaction. A second proposal from the same vendor for the
// same RFP fails with ErrConflict.
func (s *Store) CreateProposal(p rfp.Proposal) error {
	enc, err := encodeProposal(p)
	if err != nil {
		return err
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning proposal transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO proposals (id, rfp_id, vendor_id, raw_reply, fields_json, parsed_data_json, attachments_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.RFPID, p.VendorID, p.RawReply, enc.fields, enc.parsed, enc.attachments,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("proposal from vendor %s for rfp %s: %w", p.VendorID, p.RFPID, ErrConflict)
	}
	if err != nil {
		return err
	}
	if err := invalidateComparison(tx, p.RFPID); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateProposal replaces the reply content of an existing proposal, drops
// its stale evaluation and clears the RFP's comparison cache. p.UpdatedAt
// becomes the proposal's new version; a zero value means now.
func (s *Store) UpdateProposal(p rfp.Proposal) error {
	enc, err := encodeProposal(p)
	if err != nil {
		return err
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning proposal transaction: %w", err)
	}
	defer tx.Rollback()

	var rfpID string
	err = tx.QueryRow(`SELECT rfp_id FROM proposals WHERE id = ?`, p.ID).Scan(&rfpID)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		UPDATE proposals SET raw_reply = ?, fields_json = ?, parsed_data_json = ?, attachments_json = ?,
			evaluation_json = NULL, updated_at = ?
		WHERE id = ?`,
		p.RawReply, enc.fields, enc.parsed, enc.attachments, formatTime(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return err
	}
	if err := invalidateComparison(tx, rfpID); err != nil {
		return err
	}
	return tx.Commit()
}

// SaveEvaluation stores an evaluation computed from the proposal as of seen,
// its updated_at. It does not touch updated_at, so saving an evaluation never
// makes a comparison stale. If the proposal was replaced after seen the
// evaluation is not written and ErrStale is returned.
func (s *Store) SaveEvaluation(proposalID string, seen time.Time, e rfp.Evaluation) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding evaluation: %w", err)
	}
	res, err := s.db.Exec(`UPDATE proposals SET evaluation_json = ? WHERE id = ? AND updated_at = ?`,
		string(data), proposalID, formatTime(seen))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = s.db.QueryRow(`SELECT 1 FROM proposals WHERE id = ?`, proposalID).Scan(&exists)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("evaluation of proposal %s: %w", proposalID, ErrStale)
}

func (s *Store) GetProposal(id string) (rfp.Proposal, error) {
	p, err := scanProposal(s.db.QueryRow(`SELECT `+proposalColumns+` FROM proposals WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return rfp.Proposal{}, ErrNotFound
	}
	return p, err
}

// GetProposalByVendor returns the proposal a vendor submitted for an RFP.
func (s *Store) GetProposalByVendor(rfpID, vendorID string) (rfp.Proposal, error) {
	p, err := scanProposal(s.db.QueryRow(
		`SELECT `+proposalColumns+` FROM proposals WHERE rfp_id = ? AND vendor_id = ?`, rfpID, vendorID))
	if err == sql.ErrNoRows {
		return rfp.Proposal{}, ErrNotFound
	}
	return p, err
}

// ListProposals returns the proposals of an RFP in the order they arrived.
func (s *Store) ListProposals(rfpID string) ([]rfp.Proposal, error) {
	rows, err := s.db.Query(
		`SELECT `+proposalColumns+` FROM proposals WHERE rfp_id = ? ORDER BY created_at ASC, rowid ASC`, rfpID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []rfp.Proposal{}
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, rows.Err()
}
