package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/mshogin/lineage/internal/domain/services"
)

// DefaultDimension matches the footprint of small sentence-embedding
// models so local and remote vectors stay interchangeable in storage.
const DefaultDimension = 384

// LocalEmbedder generates embeddings with the hashing trick: each token
// is hashed into a fixed-size bucket space and the result is
// L2-normalized. It runs fully offline and is deterministic, so the
// same text always maps to the same vector. Quality is far below a
// trained model but shared vocabulary still produces high cosine
// similarity, which is enough for catalogs of table descriptions.
type LocalEmbedder struct {
	dimension int
}

// NewLocalEmbedder creates a local embedder. Non-positive dimensions
// fall back to DefaultDimension.
func NewLocalEmbedder(dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &LocalEmbedder{dimension: dimension}
}

// Embed maps text to a deterministic unit vector. Empty or
// punctuation-only text yields the zero vector.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector := make([]float32, e.dimension)
	tokens := tokenize(text)

	for i, token := range tokens {
		addToken(vector, token)
		if i+1 < len(tokens) {
			addToken(vector, token+" "+tokens[i+1])
		}
	}

	normalize(vector)
	return vector, nil
}

// Dimension returns the embedding dimension.
func (e *LocalEmbedder) Dimension() int {
	return e.dimension
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// addToken hashes a token into a bucket with a sign bit, the standard
// feature-hashing construction.
func addToken(vector []float32, token string) {
	h := fnv.New64a()
	h.Write([]byte(token))
	sum := h.Sum64()

	bucket := int(sum % uint64(len(vector)))
	if (sum>>63)&1 == 1 {
		vector[bucket] -= 1.0
	} else {
		vector[bucket] += 1.0
	}
}

func normalize(vector []float32) {
	var sum float64
	for _, v := range vector {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range vector {
		vector[i] /= norm
	}
}

var _ services.Embedder = (*LocalEmbedder)(nil)
