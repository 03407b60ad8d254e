package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/spotrcpt/internal/models"
	"github.com/desertthunder/spotrcpt/internal/shared"
)

// ReceiptRepository implements [models.Repository] for [models.Receipt] persistence.
type ReceiptRepository struct {
	db *sql.DB
}

// NewReceiptRepository creates a new [ReceiptRepository] with the given database connection
func NewReceiptRepository(db *sql.DB) *ReceiptRepository {
	return &ReceiptRepository{db: db}
}

const receiptColumns = `id, sequence, owner_id, owner_name, time_range, lines, created_at, updated_at, deleted_at`

// Create inserts a receipt with a generated ID and sequence
func (r *ReceiptRepository) Create(receipt *models.Receipt) error {
	if err := receipt.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	lines, err := json.Marshal(receipt.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode receipt lines: %w", err)
	}

	sequence, err := NextSequence(r.db, "receipts")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	receipt.SetID(shared.GenerateID())
	receipt.Sequence = sequence
	if receipt.Created.IsZero() {
		receipt.Created = time.Now()
	}
	if receipt.Updated.IsZero() {
		receipt.Updated = receipt.Created
	}

	query := `
		INSERT INTO receipts (id, sequence, owner_id, owner_name, time_range, lines, total_duration_ms, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		receipt.ID(), sequence, receipt.Owner.ID, receipt.Owner.Name(), string(receipt.TimeRange),
		string(lines), receipt.TotalDurationMS(), receipt.CreatedAt(), receipt.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}

	return nil
}

// Get retrieves a receipt by ID, excluding soft-deleted receipts
func (r *ReceiptRepository) Get(id string) (*models.Receipt, error) {
	row := r.db.QueryRow(`SELECT `+receiptColumns+` FROM receipts WHERE id = ? AND deleted_at IS NULL`, id)

	receipt, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrReceiptNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// GetBySequence retrieves a receipt by its sequence number
func (r *ReceiptRepository) GetBySequence(sequence int) (*models.Receipt, error) {
	row := r.db.QueryRow(`SELECT `+receiptColumns+` FROM receipts WHERE sequence = ? AND deleted_at IS NULL`, sequence)

	receipt, err := scanReceipt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: #%d", shared.ErrReceiptNotFound, sequence)
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Update replaces the owner, range and lines of an existing receipt
func (r *ReceiptRepository) Update(receipt *models.Receipt) error {
	if err := receipt.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	lines, err := json.Marshal(receipt.Lines)
	if err != nil {
		return fmt.Errorf("failed to encode receipt lines: %w", err)
	}

	now := time.Now()
	receipt.Touch(now)

	query := `
		UPDATE receipts
		SET owner_id = ?, owner_name = ?, time_range = ?, lines = ?, total_duration_ms = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		receipt.Owner.ID, receipt.Owner.Name(), string(receipt.TimeRange), string(lines),
		receipt.TotalDurationMS(), now, receipt.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update receipt: %w", err)
	}

	return expectAffected(result, receipt.ID())
}

// Delete soft-deletes a receipt by ID
func (r *ReceiptRepository) Delete(id string) error {
	query := `
		UPDATE receipts
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete receipt: %w", err)
	}

	return expectAffected(result, id)
}

// List retrieves receipts newest first, excluding soft-deleted receipts.
//
// Criteria:
//   - "time_range" ([models.TimeRange] or string): only receipts for that range
//   - "owner_id" (string): only receipts for that listener
//   - "limit" (int): at most this many receipts
func (r *ReceiptRepository) List(criteria map[string]any) ([]*models.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE deleted_at IS NULL`
	args := []any{}

	switch tr := criteria["time_range"].(type) {
	case models.TimeRange:
		if tr != "" {
			query += " AND time_range = ?"
			args = append(args, string(tr))
		}
	case string:
		if tr != "" {
			query += " AND time_range = ?"
			args = append(args, tr)
		}
	}

	if owner, ok := criteria["owner_id"].(string); ok && owner != "" {
		query += " AND owner_id = ?"
		args = append(args, owner)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*models.Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return receipts, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row scanner) (*models.Receipt, error) {
	var (
		receipt   models.Receipt
		timeRange string
		lines     string
		deletedAt sql.NullTime
	)

	err := row.Scan(
		&receipt.RecordID, &receipt.Sequence, &receipt.Owner.ID, &receipt.Owner.DisplayName,
		&timeRange, &lines, &receipt.Created, &receipt.Updated, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan receipt: %w", err)
	}

	receipt.TimeRange = models.TimeRange(timeRange)
	if err := json.Unmarshal([]byte(lines), &receipt.Lines); err != nil {
		return nil, fmt.Errorf("failed to decode lines for receipt %s: %w", receipt.RecordID, err)
	}
	if deletedAt.Valid {
		receipt.DeletedAt = &deletedAt.Time
	}

	return &receipt, nil
}

func expectAffected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s (or already deleted)", shared.ErrReceiptNotFound, id)
	}
	return nil
}

var _ models.Repository[*models.Receipt] = (*ReceiptRepository)(nil)
