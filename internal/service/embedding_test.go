package service

import (
	"math"
	"testing"
)

func TestEmbedDeterministic(t *testing.T) {
	e := NewEmbedder(128)
	a := e.Embed([]string{"sunset", "beach"})
	b := e.Embed([]string{"sunset", "beach"})

	if len(a) != 128 || len(b) != 128 {
		t.Fatalf("unexpected vector length: %d / %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at index %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestEmbedIsUnitLength(t *testing.T) {
	e := NewEmbedder(64)
	vec := e.Embed([]string{"mountain", "lake", "forest"})

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if math.Abs(norm-1.0) > 1e-5 {
		t.Errorf("expected unit-length vector, got norm %v", norm)
	}
}

func TestEmbedEmptyTags(t *testing.T) {
	e := NewEmbedder(32)
	vec := e.Embed(nil)
	for i, v := range vec {
		if v != 0 {
			t.Fatalf("expected zero vector for no tags, index %d = %v", i, v)
		}
	}
}

func TestCosine(t *testing.T) {
	e := NewEmbedder(128)
	sunset := e.Embed([]string{"sunset"})

	testCases := []struct {
		name string
		a, b []string
	}{
		{name: "related shares trigrams", a: []string{"sunset"}, b: []string{"sunsets"}},
		{name: "unrelated", a: []string{"sunset"}, b: []string{"zqxwvy"}},
	}

	related := Cosine(e.Embed(testCases[0].a), e.Embed(testCases[0].b))
	unrelated := Cosine(e.Embed(testCases[1].a), e.Embed(testCases[1].b))

	if self := Cosine(sunset, sunset); math.Abs(self-1.0) > 1e-5 {
		t.Errorf("self similarity = %v, want 1.0", self)
	}
	if related <= unrelated {
		t.Errorf("expected related similarity (%v) above unrelated (%v)", related, unrelated)
	}
}

func TestCosineMismatchedLengths(t *testing.T) {
	a := NewEmbedder(32).Embed([]string{"sunset"})
	b := NewEmbedder(64).Embed([]string{"sunset"})
	if sim := Cosine(a, b); sim != 0 {
		t.Errorf("expected 0 for mismatched lengths, got %v", sim)
	}
}

func TestDefaultDimensions(t *testing.T) {
	if dims := NewEmbedder(0).Dimensions(); dims != 256 {
		t.Errorf("default dimensions = %d, want 256", dims)
	}
}
