package generator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/hyperjump/movierec/internal/embedding"
	"github.com/hyperjump/movierec/internal/embedstore"
	"github.com/hyperjump/movierec/internal/models"
	"github.com/hyperjump/movierec/internal/storage"
	"github.com/hyperjump/movierec/internal/vector"
)

const testDim = 4

func testGenerator(t *testing.T, movies []models.Movie, opts ...Option) (*Generator, *embedstore.Store, *embedding.MockEmbedder) {
	t.Helper()
	db, err := storage.NewSQLiteStorage(storage.DriverPure, filepath.Join(t.TempDir(), "movies.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	for i := range movies {
		if err := db.UpsertMovie(context.Background(), &movies[i]); err != nil {
			t.Fatal(err)
		}
	}
	store := embedstore.New(db, testDim)
	mock := embedding.NewMockEmbedder(testDim)
	return New(db, store, mock, opts...), store, mock
}

func catalog(n int) []models.Movie {
	movies := make([]models.Movie, n)
	for i := range movies {
		movies[i] = models.Movie{
			ID:          fmt.Sprintf("m%02d", i+1),
			Title:       fmt.Sprintf("Movie %d", i+1),
			Description: fmt.Sprintf("description of movie %d", i+1),
		}
	}
	return movies
}

func TestRun_AllSucceed(t *testing.T) {
	g, store, mock := testGenerator(t, catalog(5))
	report, err := g.Run(context.Background(), ModeAll)
	if err != nil {
		t.Fatal(err)
	}
	if report.Total != 5 || report.Succeeded != 5 || report.Failed != 0 || report.Skipped != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(report.Failures) != 0 {
		t.Errorf("failures = %v", report.Failures)
	}
	if mock.Calls() != 5 {
		t.Errorf("provider calls = %d", mock.Calls())
	}
	c, _ := store.Counts(context.Background())
	if c.Embeddings != 5 {
		t.Errorf("stored embeddings = %d", c.Embeddings)
	}
}

func TestRun_FailureIsolation(t *testing.T) {
	for _, workers := range []int{1, 4} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			movies := catalog(6)
			g, store, mock := testGenerator(t, movies, WithWorkers(workers))
			mock.FailOn(movies[2].Description, embedding.NewProviderError("mock", "rate limited", nil))

			report, err := g.Run(context.Background(), ModeAll)
			if err != nil {
				t.Fatal(err)
			}
			if report.Succeeded != 5 || report.Failed != 1 {
				t.Fatalf("succeeded=%d failed=%d, want 5/1", report.Succeeded, report.Failed)
			}
			f := report.Failures[0]
			if f.ID != "m03" || f.Title != "Movie 3" || f.Reason == "" || !errors.Is(f.Err, embedding.ErrProvider) {
				t.Errorf("failure = %+v", f)
			}
			for _, m := range movies {
				e, err := store.Get(context.Background(), m.ID)
				if err != nil {
					t.Fatal(err)
				}
				if (m.ID == "m03") != e.IsAbsent() {
					t.Errorf("%s absent=%v", m.ID, e.IsAbsent())
				}
			}
		})
	}
}

func TestRun_DimensionFailureIsItemScoped(t *testing.T) {
	movies := catalog(3)
	g, _, mock := testGenerator(t, movies)
	mock.SetVector(movies[0].Description, []float32{1, 2})

	report, err := g.Run(context.Background(), ModeAll)
	if err != nil {
		t.Fatal(err)
	}
	if report.Succeeded != 2 || report.Failed != 1 || !errors.Is(report.Failures[0].Err, vector.ErrDimensionMismatch) {
		t.Errorf("report = %+v", report)
	}
}

func TestRun_MissingMode(t *testing.T) {
	g, store, mock := testGenerator(t, catalog(4))
	ctx := context.Background()
	_ = store.Put(ctx, "m01", []float32{1, 0, 0, 0})
	_ = store.Put(ctx, "m04", []float32{0, 1, 0, 0})

	report, err := g.Run(ctx, ModeMissing)
	if err != nil {
		t.Fatal(err)
	}
	if report.Mode != ModeMissing || report.Total != 2 || report.Succeeded != 2 {
		t.Errorf("report = %+v", report)
	}
	if mock.Calls() != 2 {
		t.Errorf("provider calls = %d, want 2", mock.Calls())
	}
	e, _ := store.Get(ctx, "m01")
	if v, _ := e.Vector(); v[0] != 1 {
		t.Error("missing mode must not touch existing embeddings")
	}

	again, _ := g.Run(ctx, ModeMissing)
	if again.Total != 0 {
		t.Errorf("second missing run total = %d", again.Total)
	}
}

func TestRun_SkipEmpty(t *testing.T) {
	movies := catalog(3)
	movies[1].Description = "   \n\t"
	g, _, mock := testGenerator(t, movies)

	report, _ := g.Run(context.Background(), ModeAll)
	if report.Succeeded != 2 || report.Skipped != 1 || report.Failed != 0 {
		t.Errorf("report = %+v", report)
	}
	if len(report.SkippedIDs) != 1 || report.SkippedIDs[0] != "m02" {
		t.Errorf("skipped ids = %v", report.SkippedIDs)
	}
	if mock.Calls() != 2 {
		t.Errorf("provider calls = %d", mock.Calls())
	}

	g2, _, mock2 := testGenerator(t, movies, WithSkipEmpty(false))
	report, _ = g2.Run(context.Background(), ModeAll)
	if report.Skipped != 0 || report.Succeeded != 3 || mock2.Calls() != 3 {
		t.Errorf("skip disabled: report = %+v", report)
	}
}

func TestRun_DeterministicFailureOrder(t *testing.T) {
	movies := catalog(8)
	var mu sync.Mutex
	var seen []string
	g, _, mock := testGenerator(t, movies, WithWorkers(8), WithProgress(func(r ItemResult) {
		mu.Lock()
		seen = append(seen, r.ID)
		mu.Unlock()
	}))
	for _, i := range []int{6, 1, 4} {
		mock.FailOn(movies[i].Description, embedding.NewProviderError("mock", "down", nil))
	}
	report, _ := g.Run(context.Background(), ModeAll)
	var ids []string
	for _, f := range report.Failures {
		ids = append(ids, f.ID)
	}
	if fmt.Sprint(ids) != "[m02 m05 m07]" {
		t.Errorf("failure order = %v", ids)
	}
	if len(seen) != 8 {
		t.Errorf("progress called %d times, want 8", len(seen))
	}
}

func TestRun_CancelledContext(t *testing.T) {
	g, _, _ := testGenerator(t, catalog(3))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := g.Run(ctx, ModeAll)
	if err == nil {
		// Enumeration may or may not observe the cancellation; items must.
		if report.Succeeded != 0 || report.Failed != report.Total {
			t.Errorf("report = %+v", report)
		}
	}
}

func TestRegenerateOne(t *testing.T) {
	movies := catalog(2)
	movies[1].Description = ""
	g, store, mock := testGenerator(t, movies)
	ctx := context.Background()

	if err := g.RegenerateOne(ctx, "m01"); err != nil {
		t.Fatal(err)
	}
	if e, _ := store.Get(ctx, "m01"); e.IsAbsent() {
		t.Error("embedding should be stored")
	}
	if err := g.RegenerateOne(ctx, "m02"); !errors.Is(err, ErrEmptyDescription) {
		t.Errorf("empty description: %v", err)
	}
	if err := g.RegenerateOne(ctx, "ghost"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown id: %v", err)
	}
	mock.FailOn(movies[0].Description, embedding.NewProviderError("mock", "down", nil))
	if err := g.RegenerateOne(ctx, "m01"); !errors.Is(err, embedding.ErrProvider) {
		t.Errorf("provider failure: %v", err)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAll, "all": ModeAll, "missing": ModeMissing} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseMode("some"); err == nil {
		t.Error("expected error")
	}
}

// rejectingStorage fails embedding writes for one id.
type rejectingStorage struct {
	storage.Storage
	rejectID string
}

func (s *rejectingStorage) SetEmbeddingBytes(ctx context.Context, id string, b []byte) error {
	if id == s.rejectID {
		return &storage.PersistenceError{Op: "set embedding", ID: id, Err: errors.New("disk I/O error")}
	}
	return s.Storage.SetEmbeddingBytes(ctx, id, b)
}

func TestRun_PersistenceFailureIsItemScoped(t *testing.T) {
	db, err := storage.NewSQLiteStorage(storage.DriverPure, filepath.Join(t.TempDir(), "movies.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	movies := catalog(4)
	for i := range movies {
		if err := db.UpsertMovie(context.Background(), &movies[i]); err != nil {
			t.Fatal(err)
		}
	}
	st := &rejectingStorage{Storage: db, rejectID: "m02"}
	store := embedstore.New(st, testDim)
	g := New(st, store, embedding.NewMockEmbedder(testDim), WithWorkers(2))

	report, err := g.Run(context.Background(), ModeAll)
	if err != nil {
		t.Fatal(err)
	}
	if report.Succeeded != 3 || report.Failed != 1 {
		t.Fatalf("succeeded=%d failed=%d, want 3/1", report.Succeeded, report.Failed)
	}
	if f := report.Failures[0]; f.ID != "m02" || !errors.Is(f.Err, storage.ErrPersistence) {
		t.Errorf("failure = %+v", f)
	}
	for _, m := range movies {
		e, err := store.Get(context.Background(), m.ID)
		if err != nil {
			t.Fatal(err)
		}
		if (m.ID == "m02") != e.IsAbsent() {
			t.Errorf("%s absent=%v", m.ID, e.IsAbsent())
		}
	}
}

// gatedEmbedder blocks every call until release is closed.
type gatedEmbedder struct {
	*embedding.MockEmbedder
	started chan struct{}
	once    sync.Once
	release chan struct{}
}

func (e *gatedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.once.Do(func() { close(e.started) })
	<-e.release
	return e.MockEmbedder.Embed(ctx, text)
}

func TestRun_OneRunAtATime(t *testing.T) {
	db, err := storage.NewSQLiteStorage(storage.DriverPure, filepath.Join(t.TempDir(), "movies.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	movies := catalog(2)
	for i := range movies {
		_ = db.UpsertMovie(context.Background(), &movies[i])
	}
	gate := &gatedEmbedder{
		MockEmbedder: embedding.NewMockEmbedder(testDim),
		started:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	g := New(db, embedstore.New(db, testDim), gate)

	done := make(chan *Report, 1)
	go func() {
		report, _ := g.Run(context.Background(), ModeAll)
		done <- report
	}()
	<-gate.started

	if _, err := g.Run(context.Background(), ModeMissing); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("concurrent run: err = %v, want ErrRunInProgress", err)
	}
	close(gate.release)
	if report := <-done; report == nil || report.Succeeded != 2 {
		t.Errorf("first run report = %+v", report)
	}
	if _, err := g.Run(context.Background(), ModeMissing); err != nil {
		t.Errorf("run after completion: %v", err)
	}
}

func TestRun_SendsDescriptionAsStored(t *testing.T) {
	movies := catalog(1)
	movies[0].Description = "  Two  spaces\tand a tab. "
	g, store, mock := testGenerator(t, movies)
	mock.SetVector(movies[0].Description, []float32{0, 0, 1, 0})

	if _, err := g.Run(context.Background(), ModeAll); err != nil {
		t.Fatal(err)
	}
	e, _ := store.Get(context.Background(), "m01")
	if v, ok := e.Vector(); !ok || v[2] != 1 {
		t.Errorf("provider did not receive the stored description: %v", v)
	}
}
