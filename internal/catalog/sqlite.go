package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
)

// SQLiteRepository implements Repository backed by a SQLite database file.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (creating if necessary) the database at dbPath
// and ensures the schema exists.
func NewSQLiteRepository(ctx context.Context, dbPath string) (*SQLiteRepository, error) {
	// WAL mode and busy_timeout prevent "database is locked" errors under
	// concurrent uploads.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	r := &SQLiteRepository{db: db}
	if err := r.initialize(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return r, nil
}

func (r *SQLiteRepository) initialize(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		user_id TEXT NOT NULL,
		thumbnail_url TEXT,
		video_url TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_videos_user_id ON videos(user_id);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return err
	}
	return nil
}

// Close closes the underlying database handle.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Create inserts a new video entry.
func (r *SQLiteRepository) Create(ctx context.Context, v *Video) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO videos (id, created_at, updated_at, title, description, user_id, thumbnail_url, video_url)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID.String(),
		v.CreatedAt.Unix(),
		v.UpdatedAt.Unix(),
		v.Title,
		v.Description,
		v.UserID.String(),
		v.ThumbnailURL,
		v.VideoURL,
	)
	if err != nil {
		return fmt.Errorf("insert video: %w", err)
	}
	return nil
}

// Get returns the video with the given ID.
func (r *SQLiteRepository) Get(ctx context.Context, id uuid.UUID) (*Video, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at, title, description, user_id, thumbnail_url, video_url
		 FROM videos WHERE id = ?`,
		id.String(),
	)
	v, err := scanVideo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrVideoNotFound
		}
		return nil, fmt.Errorf("get video: %w", err)
	}
	return v, nil
}

// Update rewrites the mutable fields of an existing entry and stamps
// UpdatedAt on the passed value with the persisted timestamp.
func (r *SQLiteRepository) Update(ctx context.Context, v *Video) error {
	updatedAt := time.Now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx,
		`UPDATE videos
		 SET updated_at = ?, title = ?, description = ?, thumbnail_url = ?, video_url = ?
		 WHERE id = ?`,
		updatedAt.Unix(),
		v.Title,
		v.Description,
		v.ThumbnailURL,
		v.VideoURL,
		v.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update video: %w", err)
	}
	if n == 0 {
		return ErrVideoNotFound
	}

	v.UpdatedAt = updatedAt
	return nil
}

// Delete removes the entry with the given ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete video: %w", err)
	}
	if n == 0 {
		return ErrVideoNotFound
	}
	return nil
}

// ListByUser returns all entries owned by the given user, newest first.
func (r *SQLiteRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Video, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, updated_at, title, description, user_id, thumbnail_url, video_url
		 FROM videos WHERE user_id = ? ORDER BY created_at DESC`,
		userID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var videos []*Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, fmt.Errorf("list videos: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list videos: %w", err)
	}
	return videos, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (*Video, error) {
	var (
		v         Video
		idStr     string
		userIDStr string
		created   int64
		updated   int64
	)
	if err := row.Scan(&idStr, &created, &updated, &v.Title, &v.Description, &userIDStr, &v.ThumbnailURL, &v.VideoURL); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse video id: %w", err)
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("parse user id: %w", err)
	}

	v.ID = id
	v.UserID = userID
	v.CreatedAt = time.Unix(created, 0).UTC()
	v.UpdatedAt = time.Unix(updated, 0).UTC()
	return &v, nil
}
