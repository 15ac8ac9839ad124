package recommend

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/graph"
	"github.com/spigell/hh-pathfinder/internal/index"
)

// Options control a single recommendation.
type Options struct {
	TopK         int `mapstructure:"top-k" json:"top_k"`
	TopCareer    int `mapstructure:"top-career" json:"top_career"`
	MinSkillFreq int `mapstructure:"min-skill-freq" json:"min_skill_freq"`
	TopSkills    int `mapstructure:"top-skills" json:"top_skills"`
	// Filters keep only matches whose attribute equals the value, keyed by
	// snapshot column (company, experience, industry, ...).
	Filters map[string]string `mapstructure:"filters" json:"filters,omitempty"`
}

// DefaultOptions returns top_k=5, top_career=1, min_skill_freq=2, top_skills=10.
func DefaultOptions() Options {
	return Options{TopK: 5, TopCareer: 1, MinSkillFreq: 2, TopSkills: 10}
}

// Recommendation is a matched vacancy.
type Recommendation struct {
	VacancyID  int64    `json:"vacancy_id"`
	Title      string   `json:"title"`
	Company    string   `json:"company"`
	Experience string   `json:"experience"`
	Salary     string   `json:"salary"`
	Industry   string   `json:"industry"`
	URL        string   `json:"url,omitempty"`
	Skills     []string `json:"skills"`
	Score      float64  `json:"score"`
	Similarity float64  `json:"similarity"`
}

// CareerPath is an adjacent position reached through a shared skill.
type CareerPath struct {
	VacancyID  int64    `json:"vacancy_id"`
	Title      string   `json:"title"`
	Company    string   `json:"company"`
	Skills     []string `json:"skills"`
	Similarity float64  `json:"similarity"`
}

// Result is the outcome of Recommend.
type Result struct {
	Snapshot        string           `json:"snapshot"`
	Strategy        string           `json:"strategy"`
	Recommendations []Recommendation `json:"recommendations"`
	ExpandedSkills  []string         `json:"expanded_skills"`
	CareerPaths     []CareerPath     `json:"career_paths"`
}

// Recommend scores text, then expands every match through its skills to the
// most relevant neighboring positions and aggregates their skills.
func (e *Engine) Recommend(ctx context.Context, text string, opts Options) (*Result, error) {
	q, served, err := e.prepare(ctx, text)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Snapshot:        e.id,
		Strategy:        served,
		Recommendations: []Recommendation{},
		ExpandedSkills:  []string{},
		CareerPaths:     []CareerPath{},
	}

	seen := make(map[graph.Handle]struct{})
	var neighborSkills []graph.Handle

	for _, m := range e.match(q, opts) {
		pos, ok := e.graph.Position(m.Index)
		if !ok {
			continue
		}
		skills := e.graph.SkillsOf(pos)

		rec := e.corpus.Record(m.Index)
		res.Recommendations = append(res.Recommendations, Recommendation{
			VacancyID:  rec.ID,
			Title:      rec.Title,
			Company:    rec.Company,
			Experience: rec.Experience,
			Salary:     rec.Salary,
			Industry:   rec.Industry,
			URL:        rec.URL,
			Skills:     e.graph.Labels(skills),
			Score:      m.Score,
			Similarity: m.Similarity,
		})

		for _, skill := range skills {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			for _, n := range e.nearest(q, e.graph.PositionsOf(skill, pos), opts.TopCareer) {
				nskills := e.graph.SkillsOf(n)
				neighborSkills = append(neighborSkills, nskills...)

				if _, dup := seen[n]; dup {
					continue
				}
				seen[n] = struct{}{}

				node := e.graph.Node(n)
				res.CareerPaths = append(res.CareerPaths, CareerPath{
					VacancyID:  node.VacancyID,
					Title:      node.Label,
					Company:    node.Company,
					Skills:     e.graph.Labels(nskills),
					Similarity: q.Similarity(node.Index),
				})
			}
		}
	}

	res.ExpandedSkills = e.graph.Labels(frequent(neighborSkills, opts.MinSkillFreq, opts.TopSkills))

	e.logger.Debug("recommendation ready",
		zap.String("served_by", served),
		zap.Int("recommendations", len(res.Recommendations)),
		zap.Int("career_paths", len(res.CareerPaths)),
		zap.Int("expanded_skills", len(res.ExpandedSkills)),
	)

	return res, nil
}

// match returns the top matches, applying attribute filters over a widened
// candidate window when filters are set.
func (e *Engine) match(q index.Query, opts Options) []index.Match {
	if len(opts.Filters) == 0 {
		return q.Top(opts.TopK)
	}
	n := e.corpus.Len()
	k := index.Clamp(opts.TopK, n)
	if k == 0 {
		return nil
	}

	var out []index.Match
	for _, m := range q.Top(min(3*k, n)) {
		if !e.accepts(m.Index, opts.Filters) {
			continue
		}
		out = append(out, m)
		if len(out) == k {
			break
		}
	}
	return out
}

func (e *Engine) accepts(i int, filters map[string]string) bool {
	rec := e.corpus.Record(i)
	for field, want := range filters {
		got, ok := rec.Field(field)
		if ok && got != want {
			return false
		}
	}
	return true
}

// nearest orders positions by query relevance, first seen first on ties, and
// keeps n of them.
func (e *Engine) nearest(q index.Query, positions []graph.Handle, n int) []graph.Handle {
	if n <= 0 || len(positions) == 0 {
		return nil
	}

	sims := make(map[graph.Handle]float64, len(positions))
	for _, p := range positions {
		sims[p] = q.Similarity(e.graph.Node(p).Index)
	}
	sort.SliceStable(positions, func(a, b int) bool {
		return sims[positions[a]] > sims[positions[b]]
	})

	if len(positions) > n {
		positions = positions[:n]
	}
	return positions
}

// frequent counts hs, keeps entries seen at least threshold times and returns the
// top most common ones. Ties keep first occurrence order.
func frequent(hs []graph.Handle, threshold, top int) []graph.Handle {
	if top <= 0 {
		return nil
	}

	counts := make(map[graph.Handle]int)
	var order []graph.Handle
	for _, h := range hs {
		if counts[h] == 0 {
			order = append(order, h)
		}
		counts[h]++
	}

	kept := order[:0]
	for _, h := range order {
		if counts[h] >= threshold {
			kept = append(kept, h)
		}
	}
	sort.SliceStable(kept, func(a, b int) bool {
		return counts[kept[a]] > counts[kept[b]]
	})

	if len(kept) > top {
		kept = kept[:top]
	}
	return kept
}
