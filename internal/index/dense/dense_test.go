package dense

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/hh-pathfinder/internal/encoder"
	"github.com/spigell/hh-pathfinder/internal/index/hnsw"
	"github.com/spigell/hh-pathfinder/internal/normalize"
)

var docs = []string{
	normalize.Composite("ML Engineer", "Yandex", []string{"Python", "PyTorch"}, "от 1 года до 3 лет", "deep learning"),
	normalize.Composite("Data Engineer", "Acme", []string{"Python", "SQL", "Airflow"}, "от 3 до 6 лет", "etl"),
	normalize.Composite("Frontend Developer", "Beta", []string{"JavaScript", "React"}, "нет опыта", "web"),
	normalize.Composite("Designer", "Gamma", []string{"Figma"}, "", "interfaces"),
}

type failingEncoder struct{}

func (failingEncoder) Model() string { return "down" }

func (failingEncoder) Embed(context.Context, string) ([]float32, error) {
	return nil, encoder.ErrUnavailable
}

func build(t *testing.T, kind string) *Index {
	t.Helper()
	x, err := New(encoder.NewHash(256), Options{Kind: kind, HNSW: hnsw.DefaultParams()}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := x.Build(context.Background(), docs); err != nil {
		t.Fatalf("build: %v", err)
	}
	return x
}

func TestSelfRetrieval(t *testing.T) {
	for _, kind := range []string{KindHNSW, KindFlat} {
		t.Run(kind, func(t *testing.T) {
			x := build(t, kind)
			for i, doc := range docs {
				q, err := x.Prepare(context.Background(), doc)
				if err != nil {
					t.Fatal(err)
				}
				top := q.Top(1)
				if len(top) != 1 || top[0].Index != i {
					t.Fatalf("expected %d first, got %+v", i, top)
				}
				if math.Abs(top[0].Score-1) > 1e-4 {
					t.Fatalf("expected cosine 1, got %v", top[0].Score)
				}
				if math.Abs(q.Similarity(i)-top[0].Score) > 1e-4 {
					t.Fatalf("similarity %v disagrees with score %v", q.Similarity(i), top[0].Score)
				}
			}
		})
	}
}

func TestTopClampsAndEmptyQuery(t *testing.T) {
	x := build(t, KindHNSW)
	q, err := x.Prepare(context.Background(), "")
	if err != nil {
		t.Fatalf("empty query must not fail: %v", err)
	}
	if got := len(q.Top(10)); got != len(docs) {
		t.Fatalf("expected %d matches, got %d", len(docs), got)
	}
	if got := q.Top(0); len(got) != 0 {
		t.Fatalf("expected nothing for k=0, got %v", got)
	}
}

// ollamaServer embeds with the hash encoder and, like Ollama, answers an
// empty input with no embeddings.
func ollamaServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	hash := encoder.NewHash(64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req struct {
			Input string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		embeddings := [][]float32{}
		if req.Input != "" {
			v, _ := hash.Embed(r.Context(), req.Input)
			embeddings = append(embeddings, v)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEmptyQueryWithRemoteEncoder(t *testing.T) {
	for _, kind := range []string{KindHNSW, KindFlat} {
		t.Run(kind, func(t *testing.T) {
			var calls atomic.Int32
			srv := ollamaServer(t, &calls)

			x, err := New(encoder.NewOllama(srv.URL, "nomic-embed-text"), Options{Kind: kind}, nil)
			if err != nil {
				t.Fatal(err)
			}
			if err := x.Build(context.Background(), docs); err != nil {
				t.Fatalf("build: %v", err)
			}
			built := calls.Load()

			for _, text := range []string{"", "?!", "  —  "} {
				q, err := x.Prepare(context.Background(), text)
				if err != nil {
					t.Fatalf("Prepare(%q): expected no error, got %v", text, err)
				}
				if got := len(q.Top(10)); got != len(docs) {
					t.Fatalf("Prepare(%q): expected %d matches, got %d", text, len(docs), got)
				}
				for i := range docs {
					if s := q.Similarity(i); s != 0 {
						t.Fatalf("Prepare(%q): expected zero similarity for %d, got %v", text, i, s)
					}
				}
			}
			if calls.Load() != built {
				t.Fatalf("expected no encoder calls for empty queries, got %d", calls.Load()-built)
			}

			q, err := x.Prepare(context.Background(), docs[1])
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if top := q.Top(1); len(top) != 1 || top[0].Index != 1 {
				t.Fatalf("expected doc 1 first, got %+v", top)
			}
		})
	}
}

func TestEmptyCorpus(t *testing.T) {
	x, err := New(encoder.NewHash(16), Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
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

func TestEncoderUnavailable(t *testing.T) {
	x, err := New(failingEncoder{}, Options{}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := x.Build(context.Background(), docs); !errors.Is(err, encoder.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from build, got %v", err)
	}
	if _, err := x.Prepare(context.Background(), "x"); !errors.Is(err, encoder.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from prepare, got %v", err)
	}
}

func TestUnknownKind(t *testing.T) {
	if _, err := New(encoder.NewHash(8), Options{Kind: "ivf"}, nil); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestSaveLoad(t *testing.T) {
	for _, kind := range []string{KindHNSW, KindFlat} {
		t.Run(kind, func(t *testing.T) {
			x := build(t, kind)

			var buf bytes.Buffer
			if err := x.Save(&buf, "sum-1"); err != nil {
				t.Fatalf("save: %v", err)
			}
			data := buf.Bytes()

			restored, err := New(encoder.NewHash(256), Options{Kind: kind}, nil)
			if err != nil {
				t.Fatal(err)
			}
			if err := restored.Load(bytes.NewReader(data), "sum-1"); err != nil {
				t.Fatalf("load: %v", err)
			}
			if restored.Len() != len(docs) {
				t.Fatalf("expected %d vectors, got %d", len(docs), restored.Len())
			}

			q, _ := restored.Prepare(context.Background(), docs[2])
			if top := q.Top(1); top[0].Index != 2 {
				t.Fatalf("unexpected match after restore: %+v", top)
			}

			other, _ := New(encoder.NewHash(256), Options{Kind: kind}, nil)
			if err := other.Load(bytes.NewReader(data), "sum-2"); !errors.Is(err, ErrChecksumMismatch) {
				t.Fatalf("expected ErrChecksumMismatch, got %v", err)
			}

			wrongModel, _ := New(encoder.NewHash(128), Options{Kind: kind}, nil)
			if err := wrongModel.Load(bytes.NewReader(data), "sum-1"); err == nil {
				t.Fatal("expected model mismatch error")
			}
		})
	}
}

func TestBuildLogsIndexShape(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	params := hnsw.DefaultParams()

	x, err := New(encoder.NewHash(32), Options{Kind: KindHNSW, HNSW: params}, zap.New(core))
	if err != nil {
		t.Fatal(err)
	}
	if err := x.Build(context.Background(), docs); err != nil {
		t.Fatal(err)
	}

	entries := logs.FilterMessage("dense index built").All()
	if len(entries) != 1 {
		t.Fatalf("expected one build entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["dimension"] != int64(32) || fields["m"] != int64(params.M) {
		t.Fatalf("unexpected build fields: %v", fields)
	}
}

func TestLoadRejectsCorruptSizes(t *testing.T) {
	enc := encoder.NewHash(16)
	file := func(kind string, size uint64, payload []byte) []byte {
		var buf bytes.Buffer
		_ = binary.Write(&buf, binary.LittleEndian, fileMagic)
		_ = binary.Write(&buf, binary.LittleEndian, fileVersion)
		for _, s := range []string{kind, enc.Model(), "sum"} {
			if err := writeString(&buf, s); err != nil {
				t.Fatal(err)
			}
		}
		_ = binary.Write(&buf, binary.LittleEndian, uint32(2))
		_ = binary.Write(&buf, binary.LittleEndian, size)
		buf.Write(payload)
		return buf.Bytes()
	}

	flatHeader := func(dim, n uint32) []byte {
		var buf bytes.Buffer
		_ = binary.Write(&buf, binary.LittleEndian, [2]uint32{dim, n})
		return buf.Bytes()
	}

	cases := []struct {
		name string
		kind string
		data []byte
	}{
		{"payload size beyond file", KindFlat, file(KindFlat, math.MaxUint64, nil)},
		{"payload shorter than header says", KindFlat, file(KindFlat, 64, flatHeader(0, 0))},
		{"trailing bytes", KindFlat, file(KindFlat, 8, append(flatHeader(0, 0), 1, 2, 3))},
		{"flat vectors beyond payload", KindFlat, file(KindFlat, 8, flatHeader(1<<31, 1<<31))},
		{"hnsw payload size beyond file", KindHNSW, file(KindHNSW, 1<<62, []byte("HNSW"))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			x, err := New(enc, Options{Kind: tc.kind}, nil)
			if err != nil {
				t.Fatal(err)
			}
			if err := x.Load(bytes.NewReader(tc.data), "sum"); err == nil {
				t.Fatal("expected a corrupt file to be rejected")
			}
			if x.Len() != 0 {
				t.Fatalf("expected the index to stay empty, got %d vectors", x.Len())
			}
		})
	}
}
