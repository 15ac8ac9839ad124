package graphexport

import (
	"strconv"

	"github.com/spigell/hh-pathfinder/internal/graph"
	"github.com/spigell/hh-pathfinder/internal/normalize"
)

// Position is one position node with its outgoing relations, shaped as the
// parameter map of an UNWIND batch.
type Position struct {
	Key       string
	Title     string
	VacancyID int64
	Salary    string
	Company   *Named
	Level     *Named
	Domain    *Named
	Skills    []Named
}

// Named is an attribute or skill node. Key is the normalized label and is
// what nodes are merged on.
type Named struct {
	Key  string
	Name string
}

func named(n graph.Node) Named {
	return Named{Key: normalize.Label(n.Label), Name: n.Label}
}

// Positions walks the graph in corpus order and returns every position once.
func Positions(g *graph.Graph) []Position {
	seen := make(map[graph.Handle]struct{}, g.Positions())
	out := make([]Position, 0, g.Positions())

	for i := 0; i < g.Positions(); i++ {
		h, ok := g.Position(i)
		if !ok {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}

		node := g.Node(h)
		p := Position{
			Key:       strconv.FormatInt(node.VacancyID, 10),
			Title:     node.Label,
			VacancyID: node.VacancyID,
			Salary:    node.Salary,
			Skills:    []Named{},
		}

		for _, next := range g.Successors(h) {
			n := named(g.Node(next))
			switch g.Node(next).Kind {
			case graph.KindCompany:
				p.Company = &n
			case graph.KindLevel:
				p.Level = &n
			case graph.KindDomain:
				p.Domain = &n
			case graph.KindSkill:
				p.Skills = append(p.Skills, n)
			}
		}

		out = append(out, p)
	}

	return out
}

// params renders a batch of positions for the driver. Optional attributes
// become zero or one element lists so that the query can use FOREACH.
func params(batch []Position) []map[string]any {
	rows := make([]map[string]any, 0, len(batch))
	for _, p := range batch {
		skills := make([]map[string]any, 0, len(p.Skills))
		for _, s := range p.Skills {
			skills = append(skills, namedParam(s))
		}

		rows = append(rows, map[string]any{
			"key":        p.Key,
			"title":      p.Title,
			"vacancy_id": p.VacancyID,
			"salary":     p.Salary,
			"company":    optional(p.Company),
			"level":      optional(p.Level),
			"domain":     optional(p.Domain),
			"skills":     skills,
		})
	}
	return rows
}

func namedParam(n Named) map[string]any {
	return map[string]any{"key": n.Key, "name": n.Name}
}

func optional(n *Named) []map[string]any {
	if n == nil {
		return []map[string]any{}
	}
	return []map[string]any{namedParam(*n)}
}

func batches(ps []Position, size int) [][]Position {
	if size <= 0 {
		size = len(ps)
	}
	var out [][]Position
	for start := 0; start < len(ps); start += size {
		end := start + size
		if end > len(ps) {
			end = len(ps)
		}
		out = append(out, ps[start:end])
	}
	return out
}
