package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/hyperjump/movierec/internal/models"
)

const (
	// DriverCGO is the mattn/go-sqlite3 driver name.
	DriverCGO = "sqlite3"
	// DriverPure is the modernc.org/sqlite driver name.
	DriverPure = "sqlite"

	movieColumns = `id, title, description, genre, year, image, embedding, embedding_updated_at, created_at, updated_at`
)

// SQLiteStorage implements Storage using SQLite through sqlx.
type SQLiteStorage struct {
	db   *sqlx.DB
	path string
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath with the given driver
// ("sqlite3" or "sqlite") and initializes the schema. Parent directories are created
// if they do not exist.
func NewSQLiteStorage(driver, dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dsn, err := dataSourceName(driver, dbPath)
	if err != nil {
		return nil, err
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

// dataSourceName sets WAL and a busy timeout on every pooled connection.
func dataSourceName(driver, dbPath string) (string, error) {
	switch driver {
	case DriverCGO:
		return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", dbPath), nil
	case DriverPure:
		return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite", dbPath), nil
	default:
		return "", fmt.Errorf("unsupported sqlite driver %q", driver)
	}
}

func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS movies (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		genre TEXT NOT NULL DEFAULT '',
		year INTEGER NOT NULL DEFAULT 0,
		image TEXT NOT NULL DEFAULT '',
		embedding BLOB,
		embedding_updated_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_movies_title ON movies(title);
	`
	_, err := db.Exec(schema)
	return err
}

// UpsertMovie inserts a movie or updates its catalog fields. A changed description clears
// the stored embedding so incremental generation picks the movie up again.
func (s *SQLiteStorage) UpsertMovie(ctx context.Context, m *models.Movie) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO movies (id, title, description, genre, year, image, created_at, updated_at)
		 VALUES (:id, :title, :description, :genre, :year, :image, :created_at, :updated_at)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			genre = excluded.genre,
			year = excluded.year,
			image = excluded.image,
			updated_at = excluded.updated_at,
			embedding = CASE WHEN movies.description = excluded.description THEN movies.embedding ELSE NULL END,
			embedding_updated_at = CASE WHEN movies.description = excluded.description THEN movies.embedding_updated_at ELSE NULL END,
			description = excluded.description`,
		m,
	)
	return persistErr("upsert movie", m.ID, err)
}

// GetMovie returns a movie by ID.
func (s *SQLiteStorage) GetMovie(ctx context.Context, id string) (*models.Movie, error) {
	var m models.Movie
	err := s.db.GetContext(ctx, &m, `SELECT `+movieColumns+` FROM movies WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByTitle returns the first movie whose title matches case-insensitively.
func (s *SQLiteStorage) FindByTitle(ctx context.Context, title string) (*models.Movie, error) {
	var m models.Movie
	err := s.db.GetContext(ctx, &m,
		`SELECT `+movieColumns+` FROM movies WHERE title = ? COLLATE NOCASE ORDER BY id LIMIT 1`, title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: title %q", ErrNotFound, title)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMovies returns movies ordered by title with offset and limit.
func (s *SQLiteStorage) ListMovies(ctx context.Context, offset, limit int) ([]*models.Movie, error) {
	var movies []*models.Movie
	err := s.db.SelectContext(ctx, &movies,
		`SELECT `+movieColumns+` FROM movies ORDER BY title, id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	return movies, nil
}

// DeleteMovie removes a movie and its embedding.
func (s *SQLiteStorage) DeleteMovie(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM movies WHERE id = ?`, id)
	if err != nil {
		return persistErr("delete movie", id, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Descriptors streams the id, title and description of every movie, or only of movies
// without an embedding when missingOnly is set, ordered by id.
func (s *SQLiteStorage) Descriptors(ctx context.Context, missingOnly bool, fn func(models.Descriptor) error) error {
	query := `SELECT id, title, description FROM movies`
	if missingOnly {
		query += ` WHERE embedding IS NULL OR length(embedding) = 0`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var d models.Descriptor
		if err := rows.StructScan(&d); err != nil {
			return err
		}
		if err := fn(d); err != nil {
			return err
		}
	}
	return rows.Err()
}

// EmbeddingBytes returns the raw embedding payload of a movie; nil when none is stored.
func (s *SQLiteStorage) EmbeddingBytes(ctx context.Context, id string) ([]byte, error) {
	var b []byte
	err := s.db.QueryRowxContext(ctx, `SELECT embedding FROM movies WHERE id = ?`, id).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// SetEmbeddingBytes replaces the embedding payload in a single UPDATE; nil clears it.
func (s *SQLiteStorage) SetEmbeddingBytes(ctx context.Context, id string, b []byte) error {
	var updatedAt any
	if len(b) > 0 {
		updatedAt = time.Now().UTC()
	} else {
		b = nil
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE movies SET embedding = ?, embedding_updated_at = ? WHERE id = ?`, b, updatedAt, id)
	if err != nil {
		return persistErr("set embedding", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return persistErr("set embedding", id, err)
	}
	if n == 0 {
		return persistErr("set embedding", id, ErrNotFound)
	}
	return nil
}

// ScanEmbeddings streams every non-empty embedding payload through a single cursor, ordered by id.
func (s *SQLiteStorage) ScanEmbeddings(ctx context.Context, fn func(id string, b []byte) error) error {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT id, embedding FROM movies WHERE embedding IS NOT NULL AND length(embedding) > 0 ORDER BY id`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var b []byte
		if err := rows.Scan(&id, &b); err != nil {
			return err
		}
		if err := fn(id, b); err != nil {
			return err
		}
	}
	return rows.Err()
}

// RandomEmbeddedMovie returns a random movie that has an embedding.
func (s *SQLiteStorage) RandomEmbeddedMovie(ctx context.Context) (*models.Movie, error) {
	var m models.Movie
	err := s.db.GetContext(ctx, &m,
		`SELECT `+movieColumns+` FROM movies
		 WHERE embedding IS NOT NULL AND length(embedding) > 0
		 ORDER BY RANDOM() LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: no movie has an embedding", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMovies returns the total number of movies.
func (s *SQLiteStorage) CountMovies(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM movies`)
	return count, err
}

// CountEmbeddings returns the number of movies with a non-empty embedding.
func (s *SQLiteStorage) CountEmbeddings(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM movies WHERE embedding IS NOT NULL AND length(embedding) > 0`)
	return count, err
}

// SizeBytes returns the on-disk size of the database including WAL files.
func (s *SQLiteStorage) SizeBytes() (int64, error) {
	return fileSizes(databaseFiles(s.path)...)
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
