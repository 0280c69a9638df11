// Package models defines core data structures for movies and their embedding descriptors.
package models

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Movie is a catalog record. Embedding holds the raw little-endian float32 payload;
// NULL or empty means no embedding has been generated yet.
type Movie struct {
	ID                 string       `json:"id" db:"id"`
	Title              string       `json:"title" db:"title"`
	Description        string       `json:"description" db:"description"`
	Genre              string       `json:"genre,omitempty" db:"genre"`
	Year               int          `json:"year,omitempty" db:"year"`
	Image              string       `json:"image,omitempty" db:"image"`
	Embedding          []byte       `json:"-" db:"embedding"`
	EmbeddingUpdatedAt sql.NullTime `json:"-" db:"embedding_updated_at"`
	CreatedAt          time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at" db:"updated_at"`
}

// HasEmbedding reports whether the record carries a non-empty embedding payload.
func (m *Movie) HasEmbedding() bool {
	return len(m.Embedding) > 0
}

// Descriptor is the minimal data needed to generate an embedding.
type Descriptor struct {
	ID          string `json:"id" db:"id"`
	Title       string `json:"title" db:"title"`
	Description string `json:"description" db:"description"`
}

// MovieInput is the input for creating or updating a movie.
type MovieInput struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Genre       string `json:"genre,omitempty"`
	Year        int    `json:"year,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Validate trims fields and requires a title.
func (in *MovieInput) Validate() error {
	in.ID = strings.TrimSpace(in.ID)
	in.Title = strings.TrimSpace(in.Title)
	in.Genre = strings.TrimSpace(in.Genre)
	in.Image = strings.TrimSpace(in.Image)
	if in.Title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if in.Year < 0 {
		return fmt.Errorf("year cannot be negative")
	}
	return nil
}

// Movie converts the input to a record. The embedding is left untouched by upserts.
func (in *MovieInput) Movie() *Movie {
	return &Movie{
		ID:          in.ID,
		Title:       in.Title,
		Description: in.Description,
		Genre:       in.Genre,
		Year:        in.Year,
		Image:       in.Image,
	}
}
