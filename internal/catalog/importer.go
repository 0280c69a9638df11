// Package catalog imports movie catalogs from JSON, CSV and XLSX files into the record store.
package catalog

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/movierec/internal/models"
	"github.com/hyperjump/movierec/internal/storage"
	"github.com/hyperjump/movierec/pkg/utils"
)

// Result summarizes one import.
type Result struct {
	Source   string   `json:"source"`
	Read     int      `json:"read"`
	Upserted int      `json:"upserted"`
	Invalid  int      `json:"invalid"`
	Errors   []string `json:"errors,omitempty"`
}

// Importer upserts catalog records. Invalid rows are counted and skipped.
type Importer struct {
	storage storage.Storage
	logger  *zap.Logger
}

// Option configures an Importer.
type Option func(*Importer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(im *Importer) { im.logger = l }
}

// NewImporter creates an importer writing to s.
func NewImporter(s storage.Storage, opts ...Option) *Importer {
	im := &Importer{storage: s, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// ImportFile reads the catalog at path, choosing the format from its extension.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	res, err := im.Import(ctx, f, format)
	if res != nil {
		res.Source = path
	}
	return res, err
}

// Import reads a catalog from r and upserts every valid movie. Movies without an id get
// MovieID(title, year). A storage failure stops the import and is returned.
func (im *Importer) Import(ctx context.Context, r io.Reader, format Format) (*Result, error) {
	inputs, err := ReadMovies(r, format)
	if err != nil {
		return nil, err
	}
	res := &Result{Read: len(inputs)}
	for i := range inputs {
		in := &inputs[i]
		if err := in.Validate(); err != nil {
			res.Invalid++
			res.Errors = append(res.Errors, fmt.Sprintf("record %d: %v", i+1, err))
			continue
		}
		if _, err := im.Upsert(ctx, in); err != nil {
			return res, err
		}
		res.Upserted++
	}
	im.logger.Info("catalog imported",
		zap.String("format", string(format)),
		zap.Int("read", res.Read),
		zap.Int("upserted", res.Upserted),
		zap.Int("invalid", res.Invalid))
	return res, nil
}

// Upsert normalizes and stores one movie, assigning an id when missing.
func (im *Importer) Upsert(ctx context.Context, in *models.MovieInput) (*models.Movie, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if in.ID == "" {
		in.ID = MovieID(in.Title, in.Year)
	}
	in.Description = utils.CollapseSpace(in.Description)
	m := in.Movie()
	if existing, err := im.storage.GetMovie(ctx, m.ID); err == nil {
		m.CreatedAt = existing.CreatedAt
	}
	if err := im.storage.UpsertMovie(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to store movie: %w", err)
	}
	im.logger.Debug("movie upserted", zap.String("id", m.ID), zap.String("title", m.Title))
	return m, nil
}
