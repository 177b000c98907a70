package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/duette-app/duette/cmd/server/models"
	"github.com/duette-app/duette/common/db"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

//go:embed schema.sql
var Schema string

// ApplySchema creates the catalog tables, used as the bootstrap DB init hook
func ApplySchema(database *db.DB) error {
	return database.ApplySchema(context.Background(), Schema)
}

const videoColumns = `id, title, composer, music_key, performer, notes, created_at, updated_at`

// VideoPostgresRepository handles database operations for videos
type VideoPostgresRepository struct {
	db *db.DB
}

// NewVideoPostgresRepository creates a new video repository
func NewVideoPostgresRepository(db *db.DB) *VideoPostgresRepository {
	return &VideoPostgresRepository{db: db}
}

// Create inserts a new video, filling the timestamps
func (r *VideoPostgresRepository) Create(ctx context.Context, video *models.Video) error {
	query := `
		INSERT INTO video (id, title, composer, music_key, performer, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		video.ID,
		video.Title,
		video.Composer,
		video.Key,
		video.Performer,
		video.Notes,
	).Scan(&video.CreatedAt, &video.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetByID retrieves a video by id
func (r *VideoPostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM video WHERE id = $1`

	video, err := scanVideo(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video: %w", err)
	}

	return video, nil
}

// List returns videos newest first, optionally filtered by search text
func (r *VideoPostgresRepository) List(ctx context.Context, search string) ([]*models.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM video`
	var args []any

	if search != "" {
		query += ` WHERE title ILIKE $1 OR composer ILIKE $1 OR performer ILIKE $1`
		args = append(args, likePattern(search))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	videos := make([]*models.Video, 0)
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, video)
	}

	return videos, rows.Err()
}

// Update overwrites the editable fields
func (r *VideoPostgresRepository) Update(ctx context.Context, video *models.Video) error {
	query := `
		UPDATE video
		SET title = $2, composer = $3, music_key = $4, performer = $5, notes = $6,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		video.ID,
		video.Title,
		video.Composer,
		video.Key,
		video.Performer,
		video.Notes,
	).Scan(&video.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}

	return nil
}

// Delete removes the video and its duettes in one transaction
func (r *VideoPostgresRepository) Delete(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	var duetteIDs []uuid.UUID

	err := r.db.InTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `DELETE FROM duette WHERE video_id = $1 RETURNING id`, id)
		if err != nil {
			return fmt.Errorf("failed to delete duettes: %w", err)
		}
		duetteIDs, err = pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
		if err != nil {
			return fmt.Errorf("failed to collect duette ids: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM video WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete video: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return duetteIDs, nil
}

// DuettePostgresRepository handles database operations for duettes
type DuettePostgresRepository struct {
	db *db.DB
}

// NewDuettePostgresRepository creates a new duette repository
func NewDuettePostgresRepository(db *db.DB) *DuettePostgresRepository {
	return &DuettePostgresRepository{db: db}
}

// Create inserts a duette row
func (r *DuettePostgresRepository) Create(ctx context.Context, duette *models.Duette) error {
	query := `
		INSERT INTO duette (id, video_id)
		VALUES ($1, $2)
		RETURNING created_at
	`

	if err := r.db.QueryRow(ctx, query, duette.ID, duette.VideoID).Scan(&duette.CreatedAt); err != nil {
		return fmt.Errorf("failed to create duette: %w", err)
	}

	duette.WithObjectKey()
	return nil
}

// ListByVideo lists duettes for a video, oldest first
func (r *DuettePostgresRepository) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*models.Duette, error) {
	query := `
		SELECT id, video_id, created_at
		FROM duette
		WHERE video_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list duettes: %w", err)
	}
	defer rows.Close()

	duettes := make([]*models.Duette, 0)
	for rows.Next() {
		d := &models.Duette{}
		if err := rows.Scan(&d.ID, &d.VideoID, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan duette: %w", err)
		}
		duettes = append(duettes, d.WithObjectKey())
	}

	return duettes, rows.Err()
}

// Delete removes one duette of a video
func (r *DuettePostgresRepository) Delete(ctx context.Context, videoID, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM duette WHERE id = $1 AND video_id = $2`, id, videoID)
	if err != nil {
		return fmt.Errorf("failed to delete duette: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanVideo(row pgx.Row) (*models.Video, error) {
	video := &models.Video{}
	err := row.Scan(
		&video.ID,
		&video.Title,
		&video.Composer,
		&video.Key,
		&video.Performer,
		&video.Notes,
		&video.CreatedAt,
		&video.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return video, nil
}

// likePattern escapes LIKE wildcards in s and wraps it for substring matching
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
