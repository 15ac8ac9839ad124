package graph

import (
	"reflect"
	"testing"

	"github.com/spigell/hh-pathfinder/internal/vacancy"
)

func testCorpus(t *testing.T) *vacancy.Corpus {
	t.Helper()
	c, err := vacancy.NewCorpus([]vacancy.Record{
		{ID: 1, Title: "Data Analyst", Company: "Acme", Experience: "нет опыта", Industry: "Finance", Skills: []string{"SQL", " Excel ", "", "SQL"}},
		{ID: 2, Title: "Data Analyst", Company: "", Experience: "от 1 года до 3 лет", Skills: []string{"SQL", "Python"}},
		{ID: 3, Title: "Financial Analyst", Company: "Acme", Industry: "Finance", Skills: []string{"Finance", "Excel"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestBuildPositions(t *testing.T) {
	g, err := Build(testCorpus(t), Options{})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := g.Count(KindPosition); got != 3 {
		t.Fatalf("expected 3 positions keyed by vacancy id, got %d", got)
	}
	if g.Positions() != 3 {
		t.Fatalf("expected 3 corpus rows, got %d", g.Positions())
	}

	for i := 0; i < 3; i++ {
		h, ok := g.Position(i)
		if !ok {
			t.Fatalf("missing position %d", i)
		}
		if g.Node(h).Index != i {
			t.Fatalf("position %d points to index %d", i, g.Node(h).Index)
		}
	}
}

func TestSkillsOf(t *testing.T) {
	g, err := Build(testCorpus(t), Options{})
	if err != nil {
		t.Fatal(err)
	}

	h, _ := g.Position(0)
	got := g.Labels(g.SkillsOf(h))
	if !reflect.DeepEqual(got, []string{"SQL", "Excel"}) {
		t.Fatalf("unexpected skills: %v", got)
	}
}

func TestTypedKeysDoNotCollide(t *testing.T) {
	g, err := Build(testCorpus(t), Options{})
	if err != nil {
		t.Fatal(err)
	}

	skill, ok := g.Lookup(KindSkill, "finance")
	if !ok {
		t.Fatal("expected finance skill node")
	}
	domain, ok := g.Lookup(KindDomain, "Finance")
	if !ok {
		t.Fatal("expected finance domain node")
	}
	if skill == domain {
		t.Fatal("skill and domain with the same label must be distinct nodes")
	}

	h, _ := g.Position(2)
	if got := g.Labels(g.SkillsOf(h)); !reflect.DeepEqual(got, []string{"Finance", "Excel"}) {
		t.Fatalf("unexpected skills: %v", got)
	}
}

func TestAttributeEdgesOnlyWhenPresent(t *testing.T) {
	g, err := Build(testCorpus(t), Options{})
	if err != nil {
		t.Fatal(err)
	}

	h, _ := g.Position(1)
	kinds := map[Kind]int{}
	for _, next := range g.Successors(h) {
		kinds[g.Node(next).Kind]++
	}
	if kinds[KindCompany] != 0 || kinds[KindDomain] != 0 {
		t.Fatalf("expected no company or domain edges, got %v", kinds)
	}
	if kinds[KindLevel] != 1 || kinds[KindSkill] != 2 {
		t.Fatalf("unexpected successor kinds: %v", kinds)
	}
}

func TestPositionsOfExcludes(t *testing.T) {
	g, err := Build(testCorpus(t), Options{})
	if err != nil {
		t.Fatal(err)
	}

	sql, _ := g.Lookup(KindSkill, "SQL")
	first, _ := g.Position(0)
	second, _ := g.Position(1)

	got := g.PositionsOf(sql, first)
	if !reflect.DeepEqual(got, []Handle{second}) {
		t.Fatalf("unexpected neighbors: %v", got)
	}
}

func TestBidirectionalSkillEdges(t *testing.T) {
	g, err := Build(testCorpus(t), Options{})
	if err != nil {
		t.Fatal(err)
	}

	excel, _ := g.Lookup(KindSkill, "excel")
	for _, pos := range g.PositionsOf(excel, -1) {
		found := false
		for _, s := range g.SkillsOf(pos) {
			if s == excel {
				found = true
			}
		}
		if !found {
			t.Fatalf("position %d misses reverse edge to excel", pos)
		}
	}
}

func TestMergeTitles(t *testing.T) {
	g, err := Build(testCorpus(t), Options{MergeTitles: true})
	if err != nil {
		t.Fatal(err)
	}

	if got := g.Count(KindPosition); got != 2 {
		t.Fatalf("expected 2 unique titles, got %d", got)
	}

	first, _ := g.Position(0)
	second, _ := g.Position(1)
	if first != second {
		t.Fatal("expected rows with the same title to share a node")
	}
	if g.Node(first).Index != 1 {
		t.Fatalf("expected last writer to win, got index %d", g.Node(first).Index)
	}
	if got := g.Labels(g.SkillsOf(first)); !reflect.DeepEqual(got, []string{"SQL", "Excel", "Python"}) {
		t.Fatalf("unexpected merged skills: %v", got)
	}
}

func TestAddPositionOutOfOrder(t *testing.T) {
	g := New(Options{})
	if _, err := g.AddPosition(1, vacancy.Record{ID: 1, Title: "x"}); err == nil {
		t.Fatal("expected error for out of order insert")
	}
}
