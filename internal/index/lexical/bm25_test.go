package lexical

import (
	"context"
	"testing"

	"github.com/spigell/hh-pathfinder/internal/normalize"
)

var docs = []string{
	normalize.Composite("Data Analyst", "Acme", []string{"SQL", "Excel"}, "", "reporting dashboards"),
	normalize.Composite("Python Developer", "Beta", []string{"Python", "Django"}, "", "backend services"),
	normalize.Composite("Data Engineer", "Gamma", []string{"Python", "SQL", "Airflow"}, "", "etl pipelines"),
	normalize.Composite("Designer", "Delta", []string{"Figma"}, "", "interfaces"),
}

func build(t *testing.T) *Index {
	t.Helper()
	x := New(Params{}, nil)
	if err := x.Build(context.Background(), docs); err != nil {
		t.Fatalf("build: %v", err)
	}
	return x
}

func TestSelfRetrieval(t *testing.T) {
	x := build(t)
	for i, doc := range docs {
		q, err := x.Prepare(context.Background(), doc)
		if err != nil {
			t.Fatal(err)
		}
		top := q.Top(1)
		if len(top) != 1 || top[0].Index != i {
			t.Fatalf("expected document %d to rank first for itself, got %+v", i, top)
		}
		if top[0].Similarity != 1 {
			t.Fatalf("expected similarity 1 for the best match, got %v", top[0].Similarity)
		}
	}
}

func TestKeywordRanking(t *testing.T) {
	x := build(t)
	q, err := x.Prepare(context.Background(), "Python SQL")
	if err != nil {
		t.Fatal(err)
	}

	top := q.Top(3)
	if len(top) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(top))
	}
	if top[0].Index != 2 {
		t.Fatalf("expected the document with both terms first, got %+v", top)
	}
	for _, m := range top[1:] {
		if m.Score > top[0].Score {
			t.Fatalf("expected descending scores, got %+v", top)
		}
	}
	if q.Similarity(3) != 0 {
		t.Fatalf("expected zero similarity for unrelated document, got %v", q.Similarity(3))
	}
}

func TestEmptyQuery(t *testing.T) {
	x := build(t)
	q, err := x.Prepare(context.Background(), "")
	if err != nil {
		t.Fatalf("empty query must not fail: %v", err)
	}
	for _, m := range q.Top(10) {
		if m.Score != 0 || m.Similarity != 0 {
			t.Fatalf("expected zero scores, got %+v", m)
		}
	}
	if got := len(q.Top(10)); got != len(docs) {
		t.Fatalf("expected top_k to clamp to %d, got %d", len(docs), got)
	}
}

func TestEmptyCorpus(t *testing.T) {
	x := New(DefaultParams(), nil)
	if err := x.Build(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	q, err := x.Prepare(context.Background(), "python")
	if err != nil {
		t.Fatal(err)
	}
	if got := q.Top(5); len(got) != 0 {
		t.Fatalf("expected no matches, got %v", got)
	}
}

func TestRareTermsWeighMore(t *testing.T) {
	x := build(t)
	if x.idf["airflow"] <= x.idf["python"] {
		t.Fatalf("expected rare term to have higher idf: airflow=%v python=%v", x.idf["airflow"], x.idf["python"])
	}
}
