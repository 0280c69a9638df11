// Package generator brings stored movie embeddings up to date from their descriptions.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/movierec/internal/embedding"
	"github.com/hyperjump/movierec/internal/embedstore"
	"github.com/hyperjump/movierec/internal/models"
	"github.com/hyperjump/movierec/internal/storage"
)

// DefaultWorkers is the number of concurrent provider calls when none is configured.
const DefaultWorkers = 4

// ErrEmptyDescription is returned by RegenerateOne for a movie with a blank description
// when blank descriptions are skipped.
var ErrEmptyDescription = errors.New("movie has an empty description")

// ErrRunInProgress is returned by Run while another run on the same Generator is active.
var ErrRunInProgress = errors.New("embedding generation already running")

// Generator embeds movie descriptions and stores the vectors.
type Generator struct {
	storage   storage.Storage
	store     *embedstore.Store
	embedder  embedding.Embedder
	workers   int
	skipEmpty bool
	progress  func(ItemResult)
	logger    *zap.Logger

	// progressMu keeps progress callbacks from interleaving.
	progressMu sync.Mutex
	// running admits one Run at a time.
	running sync.Mutex
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets a logger for per-item and summary events.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// WithWorkers bounds the number of items processed concurrently.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// WithSkipEmpty controls whether whitespace-only descriptions are skipped instead of embedded.
func WithSkipEmpty(skip bool) Option {
	return func(g *Generator) { g.skipEmpty = skip }
}

// WithProgress registers a callback invoked once per finished item. Calls are serialized.
func WithProgress(fn func(ItemResult)) Option {
	return func(g *Generator) { g.progress = fn }
}

// New creates a generator. The embedder should already carry its timeout and retry policy.
func New(s storage.Storage, store *embedstore.Store, e embedding.Embedder, opts ...Option) *Generator {
	g := &Generator{
		storage:   s,
		store:     store,
		embedder:  e,
		workers:   DefaultWorkers,
		skipEmpty: true,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run generates embeddings for the movies selected by mode. Item failures are collected
// in the report and never abort the run. Run returns an error only when movies cannot be
// enumerated or when another run is active (ErrRunInProgress).
func (g *Generator) Run(ctx context.Context, mode Mode) (*Report, error) {
	if !g.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer g.running.Unlock()
	start := time.Now()

	var targets []models.Descriptor
	err := g.storage.Descriptors(ctx, mode == ModeMissing, func(d models.Descriptor) error {
		targets = append(targets, d)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate movies: %w", err)
	}

	g.logger.Info("embedding generation started",
		zap.String("mode", string(mode)),
		zap.Int("targets", len(targets)),
		zap.Int("workers", g.workers))

	report := &Report{Mode: mode, Total: len(targets)}
	var mu sync.Mutex
	var grp errgroup.Group
	grp.SetLimit(g.workers)
	for _, d := range targets {
		grp.Go(func() error {
			res := g.process(ctx, d)
			mu.Lock()
			report.add(res)
			mu.Unlock()
			g.notify(res)
			return nil
		})
	}
	_ = grp.Wait()
	report.finish(time.Since(start))

	g.logger.Info("embedding generation finished",
		zap.String("mode", string(mode)),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// RegenerateOne regenerates the embedding of a single movie.
func (g *Generator) RegenerateOne(ctx context.Context, id string) error {
	m, err := g.storage.GetMovie(ctx, id)
	if err != nil {
		return err
	}
	res := g.process(ctx, models.Descriptor{ID: m.ID, Title: m.Title, Description: m.Description})
	g.notify(res)
	switch res.Status {
	case StatusSkipped:
		return fmt.Errorf("movie %s: %w", id, ErrEmptyDescription)
	case StatusFailed:
		return res.Err
	}
	return nil
}

func (g *Generator) process(ctx context.Context, d models.Descriptor) ItemResult {
	res := ItemResult{ID: d.ID, Title: d.Title}
	// The description goes to the provider as stored.
	text := d.Description
	if strings.TrimSpace(text) == "" && g.skipEmpty {
		res.Status = StatusSkipped
		res.Reason = "empty description"
		g.logger.Debug("skipping movie without description", zap.String("id", d.ID))
		return res
	}
	if err := ctx.Err(); err != nil {
		return g.fail(res, err)
	}

	vec, err := g.embedder.Embed(ctx, text)
	if err != nil {
		return g.fail(res, err)
	}
	if err := g.store.Put(ctx, d.ID, vec); err != nil {
		return g.fail(res, err)
	}
	res.Status = StatusStored
	res.Dimensions = len(vec)
	g.logger.Debug("stored embedding",
		zap.String("id", d.ID),
		zap.String("title", d.Title),
		zap.Int("dimensions", len(vec)))
	return res
}

func (g *Generator) fail(res ItemResult, err error) ItemResult {
	res.Status = StatusFailed
	res.Err = err
	res.Reason = strings.TrimSpace(err.Error())
	g.logger.Warn("failed to generate embedding",
		zap.String("id", res.ID),
		zap.String("title", res.Title),
		zap.Error(err))
	return res
}

func (g *Generator) notify(res ItemResult) {
	if g.progress == nil {
		return
	}
	g.progressMu.Lock()
	defer g.progressMu.Unlock()
	g.progress(res)
}
