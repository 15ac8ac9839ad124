package recommend

import (
	"context"
	"errors"
	"testing"

	"github.com/spigell/hh-pathfinder/internal/graph"
	"github.com/spigell/hh-pathfinder/internal/index/lexical"
	"github.com/spigell/hh-pathfinder/internal/vacancy"
)

func TestHolderLifecycle(t *testing.T) {
	builds := 0
	fail := false
	h := NewHolder(func(ctx context.Context) (*Engine, error) {
		if fail {
			return nil, errors.New("snapshot is broken")
		}
		builds++
		c := corpus(t, vacancy.Record{Title: "Go Developer", Skills: []string{"Go"}})
		return Build(ctx, c, lexical.New(lexical.DefaultParams(), nil), graphOptions(), nil)
	}, nil)

	if _, err := h.Recommend(context.Background(), "go", DefaultOptions()); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}

	first, err := h.Reload(context.Background())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	res, err := h.Recommend(context.Background(), "go", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Snapshot != first.ID() {
		t.Fatalf("expected snapshot %s, got %s", first.ID(), res.Snapshot)
	}

	second, err := h.Reload(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.ID() == first.ID() {
		t.Fatal("expected a new snapshot id")
	}

	fail = true
	if _, err := h.Reload(context.Background()); err == nil {
		t.Fatal("expected reload error")
	}
	current, err := h.Load()
	if err != nil || current != second {
		t.Fatalf("expected failed reload to keep the current snapshot")
	}

	hits, err := h.SearchKeywords(context.Background(), []string{"go"}, 1)
	if err != nil || len(hits) != 1 {
		t.Fatalf("unexpected search result: %v %v", hits, err)
	}
	if builds != 2 {
		t.Fatalf("expected 2 builds, got %d", builds)
	}
}

func graphOptions() graph.Options { return graph.Options{} }
