// Package graph implements the directed relation graph between positions,
// skills, companies, experience levels and industries.
package graph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/hh-pathfinder/internal/normalize"
	"github.com/spigell/hh-pathfinder/internal/vacancy"
)

// Kind is the node variant.
type Kind uint8

const (
	KindPosition Kind = iota + 1
	KindCompany
	KindLevel
	KindDomain
	KindSkill
)

func (k Kind) String() string {
	switch k {
	case KindPosition:
		return "position"
	case KindCompany:
		return "company"
	case KindLevel:
		return "level"
	case KindDomain:
		return "domain"
	case KindSkill:
		return "skill"
	default:
		return "unknown"
	}
}

// Handle addresses a node in the graph arena.
type Handle int32

// Key is the identity of a node. Two nodes of different kinds never collide.
type Key struct {
	Kind  Kind
	Label string
}

// Node is a graph vertex. Position attributes are set only for KindPosition.
type Node struct {
	Kind  Kind
	Label string

	Index      int
	VacancyID  int64
	Company    string
	Experience string
	Salary     string
	Industry   string
}

// Options controls node identity.
type Options struct {
	// MergeTitles keys positions by normalized title instead of vacancy id,
	// collapsing postings with the same title into one node.
	MergeTitles bool `mapstructure:"merge-titles"`
}

// Graph is built once and read concurrently afterwards.
type Graph struct {
	opts Options

	nodes     []Node
	keys      map[Key]Handle
	out       [][]Handle
	edges     map[[2]Handle]struct{}
	positions []Handle
}

// New returns an empty graph.
func New(opts Options) *Graph {
	return &Graph{
		opts:  opts,
		keys:  make(map[Key]Handle),
		edges: make(map[[2]Handle]struct{}),
	}
}

// Build adds every record of the corpus in order.
func Build(c *vacancy.Corpus, opts Options) (*Graph, error) {
	g := New(opts)
	for i := 0; i < c.Len(); i++ {
		if _, err := g.AddPosition(i, c.Record(i)); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddPosition inserts the position for corpus row index together with its
// attribute and skill edges. Rows must be added in corpus order.
func (g *Graph) AddPosition(index int, rec vacancy.Record) (Handle, error) {
	if index != len(g.positions) {
		return 0, fmt.Errorf("position %d added out of order, expected %d", index, len(g.positions))
	}

	label := strconv.FormatInt(rec.ID, 10)
	if g.opts.MergeTitles {
		label = normalize.Label(rec.Title)
	}

	pos := g.node(Key{Kind: KindPosition, Label: label}, strings.TrimSpace(rec.Title))
	n := &g.nodes[pos]
	n.Label = strings.TrimSpace(rec.Title)
	n.Index = index
	n.VacancyID = rec.ID
	n.Company = rec.Company
	n.Experience = rec.Experience
	n.Salary = rec.Salary
	n.Industry = rec.Industry

	g.positions = append(g.positions, pos)

	attrs := []struct {
		kind  Kind
		value string
	}{
		{KindCompany, rec.Company},
		{KindLevel, rec.Experience},
		{KindDomain, rec.Industry},
	}
	for _, attr := range attrs {
		value := strings.TrimSpace(attr.value)
		if value == "" {
			continue
		}
		g.addEdge(pos, g.node(Key{Kind: attr.kind, Label: normalize.Label(value)}, value))
	}

	for _, skill := range rec.Skills {
		skill = strings.TrimSpace(skill)
		if skill == "" {
			continue
		}
		s := g.node(Key{Kind: KindSkill, Label: normalize.Label(skill)}, skill)
		g.addEdge(pos, s)
		g.addEdge(s, pos)
	}

	return pos, nil
}

func (g *Graph) node(key Key, display string) Handle {
	if h, ok := g.keys[key]; ok {
		return h
	}
	h := Handle(len(g.nodes))
	g.nodes = append(g.nodes, Node{Kind: key.Kind, Label: display})
	g.out = append(g.out, nil)
	g.keys[key] = h
	return h
}

func (g *Graph) addEdge(from, to Handle) {
	e := [2]Handle{from, to}
	if _, ok := g.edges[e]; ok {
		return
	}
	g.edges[e] = struct{}{}
	g.out[from] = append(g.out[from], to)
}

// Node returns the node stored under h.
func (g *Graph) Node(h Handle) Node {
	return g.nodes[h]
}

// Len returns the total number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// Positions returns the number of corpus rows added.
func (g *Graph) Positions() int {
	return len(g.positions)
}

// Position returns the node of corpus row index.
func (g *Graph) Position(index int) (Handle, bool) {
	if index < 0 || index >= len(g.positions) {
		return 0, false
	}
	return g.positions[index], true
}

// Lookup finds a node by kind and label.
func (g *Graph) Lookup(kind Kind, label string) (Handle, bool) {
	if kind == KindPosition && !g.opts.MergeTitles {
		h, ok := g.keys[Key{Kind: kind, Label: strings.TrimSpace(label)}]
		return h, ok
	}
	h, ok := g.keys[Key{Kind: kind, Label: normalize.Label(label)}]
	return h, ok
}

// Count returns the number of nodes of the given kind.
func (g *Graph) Count(kind Kind) int {
	n := 0
	for _, node := range g.nodes {
		if node.Kind == kind {
			n++
		}
	}
	return n
}

// Successors returns the direct successors of h in insertion order.
func (g *Graph) Successors(h Handle) []Handle {
	return g.out[h]
}

// SkillsOf returns the skills required by a position in insertion order.
func (g *Graph) SkillsOf(pos Handle) []Handle {
	return g.successorsOf(pos, KindSkill, -1)
}

// PositionsOf returns the positions requiring skill, excluding exclude.
func (g *Graph) PositionsOf(skill, exclude Handle) []Handle {
	return g.successorsOf(skill, KindPosition, exclude)
}

// Labels resolves handles to display labels.
func (g *Graph) Labels(hs []Handle) []string {
	labels := make([]string, len(hs))
	for i, h := range hs {
		labels[i] = g.nodes[h].Label
	}
	return labels
}

func (g *Graph) successorsOf(h Handle, kind Kind, exclude Handle) []Handle {
	var out []Handle
	for _, next := range g.out[h] {
		if next == exclude || g.nodes[next].Kind != kind {
			continue
		}
		out = append(out, next)
	}
	return out
}
