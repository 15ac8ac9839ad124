package hnsw

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/viant/vec/search"
)

var magic = [4]byte{'H', 'N', 'S', 'W'}

const formatVersion uint32 = 1

type header struct {
	Magic          [4]byte
	Version        uint32
	M              uint32
	EfConstruction uint32
	EfSearch       uint32
	Seed           int64
	Dim            uint32
	Count          uint32
	Entry          int32
	MaxLevel       int32
}

// MarshalBinary encodes params, vectors and links, little endian.
func (x *Index) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	h := header{
		Magic:          magic,
		Version:        formatVersion,
		M:              uint32(x.params.M),
		EfConstruction: uint32(x.params.EfConstruction),
		EfSearch:       uint32(x.params.EfSearch),
		Seed:           x.params.Seed,
		Dim:            uint32(x.dim),
		Count:          uint32(len(x.vecs)),
		Entry:          int32(x.entry),
		MaxLevel:       int32(x.maxLevel),
	}
	if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
		return nil, err
	}

	for id, v := range x.vecs {
		if err := binary.Write(&buf, binary.LittleEndian, uint32(x.levels[id])); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
		for _, links := range x.links[id] {
			if err := binary.Write(&buf, binary.LittleEndian, uint32(len(links))); err != nil {
				return nil, err
			}
			if err := binary.Write(&buf, binary.LittleEndian, links); err != nil {
				return nil, err
			}
		}
	}

	return buf.Bytes(), nil
}

// UnmarshalBinary restores an index written by MarshalBinary.
func (x *Index) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("hnsw: reading header: %w", err)
	}
	if h.Magic != magic {
		return errors.New("hnsw: bad magic")
	}
	if h.Version != formatVersion {
		return fmt.Errorf("hnsw: unsupported format version %d", h.Version)
	}
	if h.Count > 0 && (h.Entry < 0 || uint32(h.Entry) >= h.Count) {
		return fmt.Errorf("hnsw: entry point %d out of range", h.Entry)
	}

	// Every node takes at least a level, a vector and one link count.
	if h.Count > 0 && 8+4*uint64(h.Dim) > uint64(r.Len())/uint64(h.Count) {
		return fmt.Errorf("hnsw: %d nodes of dimension %d do not fit %d bytes", h.Count, h.Dim, r.Len())
	}
	if h.Count > 0 && (h.MaxLevel < 0 || int64(h.MaxLevel) >= int64(r.Len())/4) {
		return fmt.Errorf("hnsw: max level %d out of range", h.MaxLevel)
	}

	params := Params{
		M:              int(h.M),
		EfConstruction: int(h.EfConstruction),
		EfSearch:       int(h.EfSearch),
		Seed:           h.Seed,
	}.withDefaults()

	n := int(h.Count)
	restored := Index{
		params:    params,
		levelMult: 1 / math.Log(float64(params.M)),
		rng:       rand.New(rand.NewSource(params.Seed + int64(n))),
		dim:       int(h.Dim),
		vecs:      make([][]float32, n),
		mags:      make([]float32, n),
		levels:    make([]int, n),
		links:     make([][][]int32, n),
		entry:     int(h.Entry),
		maxLevel:  int(h.MaxLevel),
	}
	if n == 0 {
		restored.entry = -1
	}

	for id := 0; id < n; id++ {
		var level uint32
		if err := binary.Read(r, binary.LittleEndian, &level); err != nil {
			return fmt.Errorf("hnsw: reading node %d: %w", id, err)
		}
		if int32(level) > h.MaxLevel {
			return fmt.Errorf("hnsw: node %d level %d above max level %d", id, level, h.MaxLevel)
		}

		v := make([]float32, restored.dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("hnsw: reading vector %d: %w", id, err)
		}

		layers := make([][]int32, level+1)
		for l := range layers {
			var count uint32
			if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
				return fmt.Errorf("hnsw: reading links of %d: %w", id, err)
			}
			if int(count) > 2*params.M {
				return fmt.Errorf("hnsw: node %d has %d links on layer %d", id, count, l)
			}
			links := make([]int32, count)
			if err := binary.Read(r, binary.LittleEndian, links); err != nil {
				return fmt.Errorf("hnsw: reading links of %d: %w", id, err)
			}
			for _, link := range links {
				if link < 0 || int(link) >= n {
					return fmt.Errorf("hnsw: node %d links to unknown node %d", id, link)
				}
			}
			layers[l] = links
		}

		restored.vecs[id] = v
		restored.mags[id] = search.Float32s(v).Magnitude()
		restored.levels[id] = int(level)
		restored.links[id] = layers
	}

	if r.Len() != 0 {
		return fmt.Errorf("hnsw: %d trailing bytes", r.Len())
	}

	*x = restored
	return nil
}
