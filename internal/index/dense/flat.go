package dense

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/spigell/hh-pathfinder/internal/encoder"
	"github.com/spigell/hh-pathfinder/internal/index"
	"github.com/spigell/hh-pathfinder/internal/index/hnsw"
)

// flat is an exact scan over unit vectors.
type flat struct {
	dim  int
	vecs [][]float32
}

func (f *flat) Build(vectors [][]float32) error {
	if len(vectors) == 0 {
		f.dim, f.vecs = 0, nil
		return nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("flat: inconsistent vector dims %d vs %d at %d", len(v), dim, i)
		}
	}
	f.dim = dim
	f.vecs = append([][]float32(nil), vectors...)
	return nil
}

func (f *flat) Search(q []float32, k int) ([]hnsw.Result, error) {
	if len(f.vecs) == 0 {
		return nil, nil
	}
	if len(q) != f.dim {
		return nil, fmt.Errorf("flat: query dim %d != index dim %d", len(q), f.dim)
	}

	scores := make([]float64, len(f.vecs))
	for i, v := range f.vecs {
		scores[i] = encoder.Dot(q, v)
	}

	top := index.TopK(scores, k)
	res := make([]hnsw.Result, len(top))
	for n, i := range top {
		res[n] = hnsw.Result{ID: i, Score: float32(scores[i])}
	}
	return res, nil
}

func (f *flat) Len() int { return len(f.vecs) }

func (f *flat) Dim() int { return f.dim }

func (f *flat) Vector(id int) []float32 { return f.vecs[id] }

// MarshalBinary writes dim u32, n u32 and the vectors, little endian.
func (f *flat) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, [2]uint32{uint32(f.dim), uint32(len(f.vecs))}); err != nil {
		return nil, err
	}
	for _, v := range f.vecs {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func (f *flat) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	var head [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &head); err != nil {
		return fmt.Errorf("flat: reading header: %w", err)
	}

	dim, n := int(head[0]), int(head[1])
	if !fits(r.Len(), dim, n) {
		return fmt.Errorf("flat: %d vectors of %d components do not fit %d bytes", n, dim, r.Len())
	}

	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("flat: reading vector %d: %w", i, err)
		}
		vecs[i] = v
	}

	f.dim, f.vecs = dim, vecs
	if n == 0 {
		f.dim, f.vecs = 0, nil
	}
	return nil
}

// fits reports whether size bytes hold exactly n float32 vectors of dim.
func fits(size, dim, n int) bool {
	if n == 0 {
		return size == 0
	}
	return size%(4*n) == 0 && size/(4*n) == dim
}
