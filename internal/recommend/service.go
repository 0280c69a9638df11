// Package recommend answers free-text queries with the most similar stored movies.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/movierec/internal/embedding"
	"github.com/hyperjump/movierec/internal/embedstore"
	"github.com/hyperjump/movierec/internal/storage"
	"github.com/hyperjump/movierec/internal/vector"
	"github.com/hyperjump/movierec/pkg/utils"
)

// ScoreDecimals is the number of decimal places scores are reported with.
const ScoreDecimals = 4

// Service runs queries. It holds no per-request state and is safe for concurrent use.
type Service struct {
	storage  storage.Storage
	store    *embedstore.Store
	embedder embedding.Embedder
	ranker   vector.Ranker
	topK     int
	timeout  time.Duration
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithTopK sets the default length of the top list.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithRanker replaces the brute-force ranker.
func WithRanker(r vector.Ranker) Option {
	return func(s *Service) { s.ranker = r }
}

// WithTimeout bounds the provider call for the query vector.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// New creates a Service.
func New(st storage.Storage, store *embedstore.Store, e embedding.Embedder, opts ...Option) *Service {
	s := &Service{
		storage:  st,
		store:    store,
		embedder: e,
		ranker:   vector.NewBruteForce(),
		topK:     vector.DefaultTopK,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TopK returns the default top list length.
func (s *Service) TopK() int {
	return s.topK
}

// Recommend returns the best match and the default top list for text.
func (s *Service) Recommend(ctx context.Context, text string) (*Recommendation, error) {
	return s.RecommendTopK(ctx, text, s.topK)
}

// RecommendTopK is Recommend with an explicit top list length; k <= 0 uses the default.
// An empty query and an empty catalog are outcomes, not errors. A failed provider call
// returns an error matching embedding.ErrProvider or embedding.ErrTimeout.
func (s *Service) RecommendTopK(ctx context.Context, text string, k int) (*Recommendation, error) {
	start := time.Now()
	if k <= 0 {
		k = s.topK
	}
	rec := &Recommendation{Query: text, Top: []Result{}}
	rec.enter(StateIdle)
	defer func() { rec.TookMs = time.Since(start).Milliseconds() }()

	query := strings.TrimSpace(text)
	if query == "" {
		rec.Outcome = OutcomeEmptyQuery
		rec.enter(StateDone)
		return rec, nil
	}

	rec.enter(StateAwaitingProviderVector)
	qvec, err := s.embedQuery(ctx, query)
	if err != nil {
		rec.enter(StateFailed)
		s.logger.Warn("query embedding failed", zap.String("query", utils.Truncate(query, 80)), zap.Error(err))
		return rec, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates, err := s.store.Candidates(ctx)
	if err != nil {
		rec.enter(StateFailed)
		return rec, err
	}
	if len(candidates) == 0 {
		rec.Outcome = OutcomeNoCandidates
		rec.enter(StateNoCandidates)
		rec.enter(StateDone)
		return rec, nil
	}

	rec.enter(StateRanking)
	ranking, err := s.ranker.Rank(qvec, candidates, k)
	if err != nil {
		rec.enter(StateFailed)
		return rec, fmt.Errorf("failed to rank candidates: %w", err)
	}
	rec.Considered = ranking.Considered
	for _, sk := range ranking.Skipped {
		rec.Skipped = append(rec.Skipped, SkippedCandidate{ID: sk.ID, Reason: sk.Err.Error()})
		s.logger.Warn("skipped candidate", zap.String("id", sk.ID), zap.Error(sk.Err))
	}
	if len(ranking.Matches) == 0 {
		rec.Outcome = OutcomeNoCandidates
		rec.enter(StateNoCandidates)
		rec.enter(StateDone)
		return rec, nil
	}

	for _, m := range ranking.Matches {
		rec.Top = append(rec.Top, Result{
			ID:       m.ID,
			Title:    s.title(ctx, m.ID),
			Score:    utils.RoundTo(m.Score, ScoreDecimals),
			RawScore: m.Score,
		})
	}
	best := rec.Top[0]
	rec.Best = &best
	rec.Outcome = OutcomeOK
	rec.enter(StateDone)

	s.logger.Debug("recommendation",
		zap.String("query", utils.Truncate(query, 80)),
		zap.String("best", best.ID),
		zap.Float64("score", best.Score),
		zap.Int("considered", rec.Considered),
		zap.Int("skipped", len(rec.Skipped)))
	return rec, nil
}

func (s *Service) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, embedding.ErrTimeout) {
			return nil, fmt.Errorf("%w: %v", embedding.ErrTimeout, err)
		}
		return nil, err
	}
	return vec, nil
}

// title resolves a movie title; a movie deleted since the scan keeps an empty title.
func (s *Service) title(ctx context.Context, id string) string {
	m, err := s.storage.GetMovie(ctx, id)
	if err != nil {
		s.logger.Debug("title lookup failed", zap.String("id", id), zap.Error(err))
		return ""
	}
	return strings.TrimSpace(m.Title)
}
