package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/hh-pathfinder/internal/filtering"
	"github.com/spigell/hh-pathfinder/internal/index/dense"
	"github.com/spigell/hh-pathfinder/internal/index/lexical"
	"github.com/spigell/hh-pathfinder/internal/recommend"
	"github.com/spigell/hh-pathfinder/internal/vacancy"
)

func writeCorpus(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vacancies.jsonl")
	err := writeSnapshot(path, []vacancy.Record{
		{ID: 1, Title: "Backend Developer", Company: "Acme", Skills: []string{"Go", "PostgreSQL"}},
		{ID: 2, Title: "Data Engineer", Company: "Globex", Skills: []string{"Python", "Kafka"}},
		{ID: 3, Title: "Platform Engineer", Company: "Acme", Skills: []string{"Go", "Kafka"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("expected temporary file to be renamed, stat error: %v", err)
	}
	return path
}

func TestBuildLexical(t *testing.T) {
	config := &Config{Corpus: CorpusConfig{Path: writeCorpus(t)}}
	config.Index.Strategy = lexical.Name

	d, err := newDeps(context.Background(), config, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	e, err := d.build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if e.Strategy() != lexical.Name || e.Corpus().Len() != 3 {
		t.Fatalf("unexpected engine: %s with %d positions", e.Strategy(), e.Corpus().Len())
	}

	res, err := e.Recommend(context.Background(), "kafka python", recommend.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if res.Recommendations[0].Title != "Data Engineer" {
		t.Fatalf("expected Data Engineer first, got %+v", res.Recommendations[0])
	}
}

func TestBuildDenseStoresIndex(t *testing.T) {
	dir := t.TempDir()
	config := &Config{Corpus: CorpusConfig{Path: writeCorpus(t)}}
	config.Index.Strategy = dense.Name
	config.Index.Path = filepath.Join(dir, "index.bin")
	config.Index.Fallback = true
	config.Encoder.Provider = "hash"
	config.Encoder.CachePath = filepath.Join(dir, "cache.db")

	core, logs := observer.New(zapcore.DebugLevel)
	d, err := newDeps(context.Background(), config, zap.New(core))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	first, err := d.build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if first.Strategy() != dense.Name {
		t.Fatalf("expected dense strategy, got %s", first.Strategy())
	}
	if _, err := os.Stat(config.Index.Path); err != nil {
		t.Fatalf("expected stored index: %v", err)
	}
	if logs.FilterMessage("dense index loaded").Len() != 0 {
		t.Fatal("first build must not load an index")
	}

	second, err := d.build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if logs.FilterMessage("dense index loaded").Len() != 1 {
		t.Fatal("expected the stored index to be reused")
	}
	if second.ID() == first.ID() {
		t.Fatal("expected a new snapshot id")
	}

	n, err := d.cache.Len(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("expected 3 cached embeddings, got %d", n)
	}
}

func TestBuildUnknownStrategy(t *testing.T) {
	config := &Config{Corpus: CorpusConfig{Path: writeCorpus(t)}}
	config.Index.Strategy = "fuzzy"

	d := &deps{config: config, logger: zap.NewNop()}
	if _, err := d.build(context.Background()); err == nil {
		t.Fatal("expected error for unknown strategy")
	}
}

func TestReadHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	data := `[{"role": "user", "content": "Я бэкенд разработчик."}, {"role": "assistant", "content": "Расскажите о навыках"}]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	history, err := readHistory(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[1].Role != "assistant" {
		t.Fatalf("unexpected history: %+v", history)
	}

	if _, err := readHistory(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestMergeSnapshot(t *testing.T) {
	path := writeCorpus(t)
	fresh := []vacancy.Record{
		{ID: 2, Title: "Senior Data Engineer", Company: "Globex", Skills: []string{"Python", "Spark"}},
		{ID: 9, Title: "SRE", Company: "Initech", Skills: []string{"Kubernetes"}},
	}

	merged, kept, err := mergeSnapshot(path, fresh)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if kept != 3 || len(merged) != 5 {
		t.Fatalf("expected 3 previous and 5 merged records, got %d and %d", kept, len(merged))
	}

	unique, _, err := filtering.NewDedupe().Apply(context.Background(), merged)
	if err != nil {
		t.Fatal(err)
	}
	titles := map[int64]string{}
	for _, rec := range unique {
		titles[rec.ID] = rec.Title
	}
	if len(unique) != 4 || titles[2] != "Senior Data Engineer" {
		t.Fatalf("expected fresh records to win over stale ones, got %v", titles)
	}

	missing, kept, err := mergeSnapshot(filepath.Join(t.TempDir(), "absent.jsonl"), fresh)
	if err != nil || kept != 0 || len(missing) != len(fresh) {
		t.Fatalf("expected fresh records only for a missing snapshot, got %d records, %d kept, err %v", len(missing), kept, err)
	}
}
