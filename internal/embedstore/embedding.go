// Package embedstore maps movie ids to decoded embedding vectors on top of the record store.
package embedstore

// Embedding is either a stored vector or Absent. The zero value is Absent, so "not yet
// generated" can never be mistaken for a zero vector or an empty payload.
type Embedding struct {
	vec     []float32
	present bool
}

// Absent returns the embedding of a movie that has none yet.
func Absent() Embedding {
	return Embedding{}
}

// Present wraps a stored vector.
func Present(v []float32) Embedding {
	return Embedding{vec: v, present: true}
}

// Vector returns the vector and true, or nil and false when Absent.
func (e Embedding) Vector() ([]float32, bool) {
	return e.vec, e.present
}

// IsAbsent reports whether no vector is stored.
func (e Embedding) IsAbsent() bool {
	return !e.present
}

// Dimensions returns the vector length, or 0 when Absent.
func (e Embedding) Dimensions() int {
	return len(e.vec)
}
