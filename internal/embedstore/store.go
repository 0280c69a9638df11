package embedstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/movierec/internal/storage"
	"github.com/hyperjump/movierec/internal/vector"
)

// Entry is one stored embedding yielded by Scan. Err is set, wrapping vector.ErrCorruptData,
// when the payload could not be decoded; Vector is nil in that case.
type Entry struct {
	ID     string
	Vector []float32
	Err    error
}

// Counts summarizes embedding coverage.
type Counts struct {
	Movies     int64 `json:"movies"`
	Embeddings int64 `json:"embeddings"`
}

// Missing returns the number of movies without an embedding.
func (c Counts) Missing() int64 {
	return c.Movies - c.Embeddings
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Store reads and writes embeddings of dimension dim. Reads are safe for concurrent use;
// the backing storage's connection pool serializes writes.
type Store struct {
	storage storage.Storage
	dim     int
	logger  *zap.Logger
}

// New returns a Store over s for vectors of dimension dim. A non-positive dim disables the
// length check on decode.
func New(s storage.Storage, dim int, opts ...Option) *Store {
	st := &Store{storage: s, dim: dim, logger: zap.NewNop()}
	for _, o := range opts {
		o(st)
	}
	return st
}

// Dimensions returns the configured vector dimension.
func (s *Store) Dimensions() int {
	return s.dim
}

// Get returns the embedding of id. An empty payload is Absent; an undecodable one returns
// an error wrapping vector.ErrCorruptData; an unknown id wraps storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Embedding, error) {
	b, err := s.storage.EmbeddingBytes(ctx, id)
	if err != nil {
		return Absent(), err
	}
	if len(b) == 0 {
		return Absent(), nil
	}
	v, err := vector.Decode(b, s.dim)
	if err != nil {
		return Absent(), fmt.Errorf("movie %s: %w", id, err)
	}
	return Present(v), nil
}

// Put overwrites the embedding of id. The write is a single UPDATE, so a failure leaves the
// previous payload in place.
func (s *Store) Put(ctx context.Context, id string, v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("movie %s: %w: empty vector", id, vector.ErrDimensionMismatch)
	}
	if s.dim > 0 && len(v) != s.dim {
		return fmt.Errorf("movie %s: %w: got %d, want %d", id, vector.ErrDimensionMismatch, len(v), s.dim)
	}
	return s.storage.SetEmbeddingBytes(ctx, id, vector.Encode(v))
}

// Clear resets the embedding of id to Absent.
func (s *Store) Clear(ctx context.Context, id string) error {
	return s.storage.SetEmbeddingBytes(ctx, id, nil)
}

// Scan streams every present embedding in id order, decoding each payload once. Corrupt
// payloads are yielded with Err set rather than stopping the scan. A non-nil error from fn
// stops the scan and is returned.
func (s *Store) Scan(ctx context.Context, fn func(Entry) error) error {
	return s.storage.ScanEmbeddings(ctx, func(id string, b []byte) error {
		v, err := vector.Decode(b, s.dim)
		if err != nil {
			s.logger.Warn("corrupt embedding payload",
				zap.String("id", id),
				zap.Int("bytes", len(b)),
				zap.Error(err))
			return fn(Entry{ID: id, Err: err})
		}
		return fn(Entry{ID: id, Vector: v})
	})
}

// Candidates collects Scan into ranker input.
func (s *Store) Candidates(ctx context.Context) ([]vector.Candidate, error) {
	var out []vector.Candidate
	err := s.Scan(ctx, func(e Entry) error {
		out = append(out, vector.Candidate{ID: e.ID, Vector: e.Vector, Err: e.Err})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan embeddings: %w", err)
	}
	return out, nil
}

// Counts returns total movies and movies with an embedding.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	var err error
	if c.Movies, err = s.storage.CountMovies(ctx); err != nil {
		return c, err
	}
	if c.Embeddings, err = s.storage.CountEmbeddings(ctx); err != nil {
		return c, err
	}
	return c, nil
}
