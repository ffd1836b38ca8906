package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// PreviewRepository stores page snapshots addressed by preview tokens.
type PreviewRepository struct {
	db *sqlx.DB
}

// NewPreviewRepository creates a new PreviewRepository.
func NewPreviewRepository(db *sqlx.DB) *PreviewRepository {
	return &PreviewRepository{db: db}
}

// GetSnapshot returns the snapshot stored for the (content type, token) pair.
// Reading a preview never consumes it.
func (r *PreviewRepository) GetSnapshot(ctx context.Context, contentType, token string) (*PageSnapshot, error) {
	var preview Preview
	query := `SELECT id, token, content_type, content_json, created_at FROM page_previews WHERE content_type = ? AND token = ?`
	if err := r.db.GetContext(ctx, &preview, query, contentType, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("preview for %s: %w", contentType, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get preview: %w", err)
	}
	var snapshot PageSnapshot
	if err := json.Unmarshal([]byte(preview.ContentJSON), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode preview %d: %w", preview.ID, err)
	}
	return &snapshot, nil
}

// CreateSnapshot stores a snapshot under token, replacing any previous
// snapshot for the same pair.
func (r *PreviewRepository) CreateSnapshot(ctx context.Context, contentType, token string, snapshot *PageSnapshot) error {
	content, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM page_previews WHERE content_type = ? AND token = ?`, contentType, token); err != nil {
		return fmt.Errorf("failed to replace preview: %w", err)
	}
	query := `INSERT INTO page_previews (token, content_type, content_json, created_at) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query, token, contentType, string(content), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to create preview: %w", err)
	}
	return tx.Commit()
}

// DeleteOlderThan removes previews created before cutoff.
func (r *PreviewRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM page_previews WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete previews: %w", err)
	}
	return res.RowsAffected()
}
