package embedding

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestMockEmbedder_Deterministic(t *testing.T) {
	e := NewMockEmbedder(16)
	a, _ := e.Embed(context.Background(), "heist thriller")
	b, _ := e.Embed(context.Background(), "heist thriller")
	if !reflect.DeepEqual(a, b) {
		t.Error("same text produced different vectors")
	}
	if len(a) != 16 {
		t.Fatalf("len = %d", len(a))
	}
	var sum float64
	for _, v := range a {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-5 {
		t.Errorf("norm = %v, want 1", math.Sqrt(sum))
	}
	if e.Calls() != 2 {
		t.Errorf("Calls() = %d", e.Calls())
	}
}

func TestMockEmbedder_FixedAndFailing(t *testing.T) {
	e := NewMockEmbedder(2)
	e.SetVector("q", []float32{1, 0})
	boom := NewProviderError("mock", "boom", nil)
	e.FailOn("bad", boom)

	v, err := e.Embed(context.Background(), "q")
	if err != nil || !reflect.DeepEqual(v, []float32{1, 0}) {
		t.Errorf("fixed: %v, %v", v, err)
	}
	if _, err := e.Embed(context.Background(), "bad"); !errors.Is(err, ErrProvider) {
		t.Errorf("failing: err = %v", err)
	}
}
