package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/movierec/internal/embedding"
	"github.com/hyperjump/movierec/internal/generator"
	"github.com/hyperjump/movierec/internal/models"
	"github.com/hyperjump/movierec/internal/storage"
	"github.com/hyperjump/movierec/internal/vector"
)

const (
	defaultListLimit   = 50
	maxListLimit       = 500
	defaultInspectSize = 8
)

type recommendRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("recommend request", zap.String("query", req.Query), zap.Int("top_k", req.TopK))
	rec, err := s.recommender.RecommendTopK(r.Context(), req.Query, req.TopK)
	if err != nil {
		s.logger.Error("recommend failed", zap.Error(err), zap.Any("states", rec.States))
		s.respondError(w, errorStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

type generateRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	mode, err := generator.ParseMode(req.Mode)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	// The run completes even if the client goes away.
	report, err := s.generator.Run(context.WithoutCancel(r.Context()), mode)
	if err != nil {
		if !errors.Is(err, generator.ErrRunInProgress) {
			s.logger.Error("generation failed", zap.Error(err))
		}
		s.respondError(w, errorStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

type movieResponse struct {
	*models.Movie
	HasEmbedding bool `json:"has_embedding"`
}

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	offset := queryInt(r, "offset", 0)
	limit := queryInt(r, "limit", defaultListLimit)
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	movies, err := s.storage.ListMovies(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list movies failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]movieResponse, len(movies))
	for i, m := range movies {
		out[i] = movieResponse{Movie: m, HasEmbedding: m.HasEmbedding()}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"movies": out,
		"offset": offset,
		"limit":  limit,
	})
}

func (s *Server) handleUpsertMovie(w http.ResponseWriter, r *http.Request) {
	var input models.MovieInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := input.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := s.importer.Upsert(r.Context(), &input)
	if err != nil {
		s.logger.Error("upsert movie failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": m.ID, "status": "stored"})
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	m, err := s.storage.GetMovie(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, errorStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, movieResponse{Movie: m, HasEmbedding: m.HasEmbedding()})
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete movie request", zap.String("id", id))
	if err := s.storage.DeleteMovie(r.Context(), id); err != nil {
		s.respondError(w, errorStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type embeddingResponse struct {
	ID         string    `json:"id"`
	Dimensions int       `json:"dimensions"`
	Head       []float32 `json:"head"`
}

func (s *Server) handleGetEmbedding(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n := queryInt(r, "n", defaultInspectSize)
	emb, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.respondError(w, errorStatus(err), err.Error())
		return
	}
	v, ok := emb.Vector()
	if !ok {
		s.respondError(w, http.StatusNotFound, "movie has no embedding")
		return
	}
	if n < 0 || n > len(v) {
		n = len(v)
	}
	s.respondJSON(w, http.StatusOK, embeddingResponse{ID: id, Dimensions: len(v), Head: v[:n]})
}

func (s *Server) handleRegenerateEmbedding(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.generator.RegenerateOne(r.Context(), id); err != nil {
		s.logger.Warn("regenerate embedding failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, errorStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "stored"})
}

func (s *Server) handleClearEmbedding(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.Clear(r.Context(), id); err != nil {
		s.respondError(w, errorStatus(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"id": id, "status": "cleared"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		s.logger.Error("status: count movies failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"movies":             counts.Movies,
		"embeddings":         counts.Embeddings,
		"missing_embeddings": counts.Missing(),
	}
	if size, err := s.storage.SizeBytes(); err == nil {
		resp["disk_usage_bytes"] = size
	}
	if s.config != nil {
		resp["config"] = map[string]interface{}{
			"provider":       s.config.Provider.Type,
			"model":          s.config.Provider.Model,
			"dimensions":     s.config.Provider.Dimensions,
			"storage_driver": s.config.Storage.Driver,
			"database_path":  s.config.Storage.DatabasePath,
			"workers":        s.config.Generation.Workers,
			"top_k":          s.config.Recommend.TopK,
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, embedding.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, embedding.ErrProvider):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, generator.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, generator.ErrEmptyDescription),
		errors.Is(err, vector.ErrCorruptData),
		errors.Is(err, vector.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
