// Package storage defines the persistence interface for movies and their embedding payloads.
package storage

import (
	"context"

	"github.com/hyperjump/movierec/internal/models"
)

// Storage defines movie persistence operations. Embedding payloads are opaque bytes here;
// encoding and decoding belong to the embedstore package.
type Storage interface {
	// Movie operations
	UpsertMovie(ctx context.Context, m *models.Movie) error
	GetMovie(ctx context.Context, id string) (*models.Movie, error)
	FindByTitle(ctx context.Context, title string) (*models.Movie, error)
	ListMovies(ctx context.Context, offset, limit int) ([]*models.Movie, error)
	DeleteMovie(ctx context.Context, id string) error

	// Embedding payload operations
	Descriptors(ctx context.Context, missingOnly bool, fn func(models.Descriptor) error) error
	EmbeddingBytes(ctx context.Context, id string) ([]byte, error)
	SetEmbeddingBytes(ctx context.Context, id string, b []byte) error
	ScanEmbeddings(ctx context.Context, fn func(id string, b []byte) error) error
	RandomEmbeddedMovie(ctx context.Context) (*models.Movie, error)

	// Stats
	CountMovies(ctx context.Context) (int64, error)
	CountEmbeddings(ctx context.Context) (int64, error)
	SizeBytes() (int64, error)

	Close() error
}
