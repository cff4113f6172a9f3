package service

import (
	"hash/fnv"
	"math"

	"github.com/clipforge/medialib/internal/domain"
)

// Embedder builds deterministic tag embeddings by hashing character
// trigrams into a fixed-size vector. This is intentionally not a learned
// model: it is a cheap, reproducible fallback whose only job is to rank
// probably-related assets above unrelated ones when exact tags are sparse.
type Embedder struct {
	dims int
}

// NewEmbedder creates an Embedder producing vectors of the given dimension.
func NewEmbedder(dims int) *Embedder {
	if dims <= 0 {
		dims = 256
	}
	return &Embedder{dims: dims}
}

// Dimensions returns the vector size.
func (e *Embedder) Dimensions() int {
	return e.dims
}

// bucketSalt separates the secondary hash stream from the primary one.
const bucketSalt = "\x01"

// Embed hashes each tag's character trigrams into the vector: the primary
// bucket gets weight 1.0, a salted secondary bucket gets 0.5, and the
// result is L2-normalized. Identical tag sets always produce identical
// vectors.
func (e *Embedder) Embed(tags []string) domain.EmbeddingVector {
	vec := make(domain.EmbeddingVector, e.dims)
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		padded := "^" + tag + "$"
		runes := []rune(padded)
		if len(runes) < 3 {
			e.add(vec, string(runes))
			continue
		}
		for i := 0; i+3 <= len(runes); i++ {
			e.add(vec, string(runes[i:i+3]))
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func (e *Embedder) add(vec domain.EmbeddingVector, gram string) {
	vec[hashBucket(gram, e.dims)] += 1.0
	vec[hashBucket(bucketSalt+gram, e.dims)] += 0.5
}

func hashBucket(s string, dims int) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % uint32(dims))
}

// Cosine computes the cosine similarity of two vectors. Returns 0 for
// mismatched lengths or zero-norm inputs.
func Cosine(a, b domain.EmbeddingVector) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
