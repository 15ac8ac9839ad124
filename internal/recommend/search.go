package recommend

import (
	"context"
	"strings"
)

// Hit is a keyword search result.
type Hit struct {
	VacancyID  int64   `json:"vacancy_id"`
	Title      string  `json:"title"`
	Company    string  `json:"company"`
	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
	Text       string  `json:"text"`
}

// SearchKeywords joins keywords into one query and returns the top k
// vacancies without graph expansion.
func (e *Engine) SearchKeywords(ctx context.Context, keywords []string, k int) ([]Hit, error) {
	q, _, err := e.prepare(ctx, strings.Join(keywords, " "))
	if err != nil {
		return nil, err
	}

	matches := q.Top(k)
	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		rec := e.corpus.Record(m.Index)
		hits = append(hits, Hit{
			VacancyID:  rec.ID,
			Title:      rec.Title,
			Company:    rec.Company,
			Score:      m.Score,
			Similarity: m.Similarity,
			Text:       rec.Text(),
		})
	}
	return hits, nil
}
