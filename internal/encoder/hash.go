package encoder

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/spigell/hh-pathfinder/internal/normalize"
)

const defaultHashDimension = 256

// Hash is an offline encoder based on signed feature hashing of words and
// word bigrams. It needs no model server and is deterministic.
type Hash struct {
	dim int
}

// NewHash returns a hashing encoder producing vectors of dim components.
func NewHash(dim int) *Hash {
	if dim <= 0 {
		dim = defaultHashDimension
	}
	return &Hash{dim: dim}
}

func (h *Hash) Model() string { return fmt.Sprintf("hash-%d", h.dim) }

func (h *Hash) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dim)
	words := strings.Fields(normalize.Text(text))

	for i, w := range words {
		h.add(vec, w, 1)
		if i > 0 {
			h.add(vec, words[i-1]+" "+w, 0.5)
		}
	}

	return vec, nil
}

func (h *Hash) add(vec []float32, feature string, weight float32) {
	f := fnv.New64a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum64()

	bucket := int(sum % uint64(h.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}
