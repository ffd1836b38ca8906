package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ImageRepository handles database operations for image assets.
type ImageRepository struct {
	DB *sqlx.DB
}

// NewImageRepository creates a new ImageRepository.
func NewImageRepository(db *sqlx.DB) *ImageRepository {
	return &ImageRepository{DB: db}
}

// GetImageByID finds an image by its ID.
func (r *ImageRepository) GetImageByID(ctx context.Context, id int64) (*Image, error) {
	var image Image
	err := r.DB.GetContext(ctx, &image, "SELECT id, title, file, width, height, created_at FROM images WHERE id = ?", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("image with id %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get image by id: %w", err)
	}
	return &image, nil
}

// CreateImage saves a new image and sets its ID.
func (r *ImageRepository) CreateImage(ctx context.Context, image *Image) error {
	if image.CreatedAt.IsZero() {
		image.CreatedAt = time.Now().UTC()
	}
	res, err := r.DB.NamedExecContext(ctx,
		"INSERT INTO images (title, file, width, height, created_at) VALUES (:title, :file, :width, :height, :created_at)", image)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	image.ID = id
	return nil
}
