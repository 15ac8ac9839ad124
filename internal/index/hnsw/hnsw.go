// Package hnsw is a Hierarchical Navigable Small World graph for approximate
// cosine nearest neighbor search.
package hnsw

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"

	"github.com/viant/vec/search"
)

// Params tune graph construction and search.
type Params struct {
	M              int   `mapstructure:"m"`
	EfConstruction int   `mapstructure:"ef-construction"`
	EfSearch       int   `mapstructure:"ef-search"`
	Seed           int64 `mapstructure:"seed"`
}

// DefaultParams returns M=32, efConstruction=200, efSearch=64.
func DefaultParams() Params {
	return Params{M: 32, EfConstruction: 200, EfSearch: 64, Seed: 42}
}

func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.M <= 1 {
		p.M = def.M
	}
	if p.EfConstruction <= 0 {
		p.EfConstruction = def.EfConstruction
	}
	if p.EfSearch <= 0 {
		p.EfSearch = def.EfSearch
	}
	return p
}

// Result is a neighbor with its cosine similarity to the query.
type Result struct {
	ID    int
	Score float32
}

// Index is built once with Build and then only searched.
type Index struct {
	params    Params
	levelMult float64
	rng       *rand.Rand

	dim      int
	vecs     [][]float32
	mags     []float32
	levels   []int
	links    [][][]int32
	entry    int
	maxLevel int
}

// New returns an empty index.
func New(params Params) *Index {
	params = params.withDefaults()
	return &Index{
		params:    params,
		levelMult: 1 / math.Log(float64(params.M)),
		rng:       rand.New(rand.NewSource(params.Seed)),
		entry:     -1,
	}
}

// Params returns the effective parameters.
func (x *Index) Params() Params { return x.params }

// Len returns the number of indexed vectors.
func (x *Index) Len() int { return len(x.vecs) }

// Dim returns the vector dimension, 0 when empty.
func (x *Index) Dim() int { return x.dim }

// Vector returns the stored vector of id.
func (x *Index) Vector(id int) []float32 { return x.vecs[id] }

// Build inserts vectors in order; the i-th vector gets id i.
func (x *Index) Build(vectors [][]float32) error {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("hnsw: inconsistent vector dims %d vs %d at %d", len(v), dim, i)
		}
	}

	x.dim = dim
	for _, v := range vectors {
		x.insert(v)
	}
	return nil
}

// Search returns up to k nearest neighbors of q by cosine similarity,
// best first.
func (x *Index) Search(q []float32, k int) ([]Result, error) {
	if k <= 0 || len(x.vecs) == 0 {
		return nil, nil
	}
	if len(q) != x.dim {
		return nil, fmt.Errorf("hnsw: query dim %d != index dim %d", len(q), x.dim)
	}

	qm := search.Float32s(q).Magnitude()
	ep := x.entry
	for l := x.maxLevel; l > 0; l-- {
		ep = x.greedy(q, qm, ep, l)
	}

	ef := x.params.EfSearch
	if ef < k {
		ef = k
	}
	found := x.searchLayer(q, qm, []int{ep}, ef, 0)
	if len(found) > k {
		found = found[:k]
	}

	results := make([]Result, len(found))
	for i, c := range found {
		results[i] = Result{ID: c.id, Score: 1 - c.dist}
	}
	return results, nil
}

func (x *Index) insert(v []float32) {
	id := len(x.vecs)
	level := x.randomLevel()

	x.vecs = append(x.vecs, v)
	x.mags = append(x.mags, search.Float32s(v).Magnitude())
	x.levels = append(x.levels, level)
	x.links = append(x.links, make([][]int32, level+1))

	if x.entry < 0 {
		x.entry, x.maxLevel = id, level
		return
	}

	m := x.mags[id]
	ep := x.entry
	for l := x.maxLevel; l > level; l-- {
		ep = x.greedy(v, m, ep, l)
	}

	eps := []int{ep}
	for l := min(level, x.maxLevel); l >= 0; l-- {
		found := x.searchLayer(v, m, eps, x.params.EfConstruction, l)

		neighbors := found
		if len(neighbors) > x.params.M {
			neighbors = neighbors[:x.params.M]
		}
		x.links[id][l] = make([]int32, len(neighbors))
		for i, n := range neighbors {
			x.links[id][l][i] = int32(n.id)
			x.connect(n.id, id, l)
		}

		eps = eps[:0]
		for _, c := range found {
			eps = append(eps, c.id)
		}
	}

	if level > x.maxLevel {
		x.entry, x.maxLevel = id, level
	}
}

// connect adds an edge from -> to on layer l, pruning to the closest
// neighbors when the node is over capacity.
func (x *Index) connect(from, to, l int) {
	links := append(x.links[from][l], int32(to))
	limit := x.maxLinks(l)
	if len(links) > limit {
		v, m := x.vecs[from], x.mags[from]
		cands := make([]candidate, len(links))
		for i, n := range links {
			cands[i] = candidate{id: int(n), dist: x.distance(v, m, int(n))}
		}
		sortCandidates(cands)
		links = links[:0]
		for _, c := range cands[:limit] {
			links = append(links, int32(c.id))
		}
	}
	x.links[from][l] = links
}

func (x *Index) maxLinks(l int) int {
	if l == 0 {
		return 2 * x.params.M
	}
	return x.params.M
}

func (x *Index) randomLevel() int {
	return int(math.Floor(-math.Log(1-x.rng.Float64()) * x.levelMult))
}

func (x *Index) distance(q []float32, qm float32, id int) float32 {
	if qm == 0 || x.mags[id] == 0 {
		return 1
	}
	return search.Float32s(q).CosineDistanceWithMagnitude(x.vecs[id], qm, x.mags[id])
}

func (x *Index) greedy(q []float32, qm float32, ep, l int) int {
	best := x.distance(q, qm, ep)
	for changed := true; changed; {
		changed = false
		for _, n := range x.links[ep][l] {
			if d := x.distance(q, qm, int(n)); d < best {
				best, ep, changed = d, int(n), true
			}
		}
	}
	return ep
}

// searchLayer returns up to ef closest nodes reachable from eps on layer l,
// sorted by ascending distance.
func (x *Index) searchLayer(q []float32, qm float32, eps []int, ef, l int) []candidate {
	visited := make(map[int]struct{}, ef*4)
	cands := &minHeap{}
	found := &maxHeap{}

	for _, ep := range eps {
		if _, ok := visited[ep]; ok {
			continue
		}
		visited[ep] = struct{}{}
		c := candidate{id: ep, dist: x.distance(q, qm, ep)}
		heap.Push(cands, c)
		heap.Push(found, c)
	}
	for found.Len() > ef {
		heap.Pop(found)
	}

	for cands.Len() > 0 {
		c := heap.Pop(cands).(candidate)
		if found.Len() >= ef && c.dist > (*found)[0].dist {
			break
		}
		if l >= len(x.links[c.id]) {
			continue
		}
		for _, n := range x.links[c.id][l] {
			id := int(n)
			if _, ok := visited[id]; ok {
				continue
			}
			visited[id] = struct{}{}

			d := x.distance(q, qm, id)
			if found.Len() < ef || d < (*found)[0].dist {
				heap.Push(cands, candidate{id: id, dist: d})
				heap.Push(found, candidate{id: id, dist: d})
				if found.Len() > ef {
					heap.Pop(found)
				}
			}
		}
	}

	out := make([]candidate, found.Len())
	copy(out, *found)
	sortCandidates(out)
	return out
}
