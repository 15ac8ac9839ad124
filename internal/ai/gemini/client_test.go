package gemini

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genai"
)

// scriptedChats answers chat turns from a fixed script and records what each
// turn was sent.
type scriptedChats struct {
	script []error
	reply  string
	turns  []turn
}

type turn struct {
	model   string
	system  string
	message string
}

type scriptedChat struct {
	c   *scriptedChats
	err error
	t   *turn
}

func (c *scriptedChats) Create(_ context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	if len(history) != 0 {
		return nil, errors.New("history is not expected for single-turn generation")
	}

	rec := turn{model: model}
	if config != nil && config.SystemInstruction != nil {
		for _, p := range config.SystemInstruction.Parts {
			rec.system += p.Text
		}
	}
	c.turns = append(c.turns, rec)

	var err error
	if n := len(c.turns) - 1; n < len(c.script) {
		err = c.script[n]
	}
	return &scriptedChat{c: c, err: err, t: &c.turns[len(c.turns)-1]}, nil
}

func (s *scriptedChat) SendMessage(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	for _, p := range parts {
		s.t.message += p.Text
	}
	if s.err != nil {
		return nil, s.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "  " + s.c.reply + "  "}, {Text: ""}}},
		}},
	}, nil
}

func TestGenerateContent(t *testing.T) {
	originalSleep := sleep
	defer func() { sleep = originalSleep }()

	internal := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	longQuota := genai.APIError{Code: http.StatusTooManyRequests, Message: "quota exhausted, retry after 60 seconds"}
	const profileReply = `{"title": "Data Analyst", "skills": ["SQL"]}`

	cases := []struct {
		name       string
		system     string
		message    string
		script     []error
		maxRetries int
		want       string
		wantErr    error
		wantTurns  []turn
		wantSleeps []time.Duration
	}{
		{
			name:      "system instruction reaches the model",
			system:    "  Extract the candidate profile as JSON.  ",
			message:   " Я аналитик данных. ",
			want:      profileReply,
			wantTurns: []turn{{model: "gemini-test", system: "Extract the candidate profile as JSON.", message: "Я аналитик данных."}},
		},
		{
			name:      "no system instruction",
			message:   "Я аналитик данных.",
			want:      profileReply,
			wantTurns: []turn{{model: "gemini-test", message: "Я аналитик данных."}},
		},
		{
			name:    "blank message is rejected before any call",
			system:  "Extract the candidate profile as JSON.",
			message: " \n\t ",
			wantErr: errEmptyMessage,
		},
		{
			name:       "temporary error is retried",
			system:     "sys",
			message:    "msg",
			script:     []error{internal},
			maxRetries: 2,
			want:       profileReply,
			wantTurns:  []turn{{"gemini-test", "sys", "msg"}, {"gemini-test", "sys", "msg"}},
			wantSleeps: []time.Duration{minBackoff},
		},
		{
			name:       "retries exhausted",
			system:     "sys",
			message:    "msg",
			script:     []error{internal, internal},
			maxRetries: 2,
			wantErr:    internal,
			wantTurns:  []turn{{"gemini-test", "sys", "msg"}, {"gemini-test", "sys", "msg"}},
			wantSleeps: []time.Duration{minBackoff},
		},
		{
			name:       "long quota delay is not waited for",
			system:     "sys",
			message:    "msg",
			script:     []error{longQuota},
			maxRetries: 3,
			wantErr:    longQuota,
			wantTurns:  []turn{{"gemini-test", "sys", "msg"}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var sleeps []time.Duration
			sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

			chats := &scriptedChats{script: tc.script, reply: profileReply}
			g := &Generator{chats: chats, model: "gemini-test", maxRetries: tc.maxRetries, logger: zap.NewNop()}

			got, err := g.GenerateContent(context.Background(), tc.system, tc.message)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) && !reflect.DeepEqual(errors.Unwrap(err), tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
			} else if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
			if !reflect.DeepEqual(chats.turns, tc.wantTurns) {
				t.Fatalf("unexpected turns:\n got %+v\nwant %+v", chats.turns, tc.wantTurns)
			}
			if !reflect.DeepEqual(sleeps, tc.wantSleeps) {
				t.Fatalf("expected sleeps %v, got %v", tc.wantSleeps, sleeps)
			}
		})
	}
}

func TestGenerateContentLogsRetries(t *testing.T) {
	originalSleep := sleep
	sleep = func(time.Duration) {}
	defer func() { sleep = originalSleep }()

	core, logs := observer.New(zapcore.WarnLevel)
	chats := &scriptedChats{script: []error{genai.APIError{Code: http.StatusServiceUnavailable}}, reply: "ok"}
	g := &Generator{chats: chats, model: defaultModel, maxRetries: 3, logger: zap.New(core)}

	if _, err := g.GenerateContent(context.Background(), "sys", "msg"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	entries := logs.FilterMessage("gemini request failed, retrying").All()
	if len(entries) != 1 || entries[0].ContextMap()["attempt"] != int64(1) {
		t.Fatalf("expected one retry entry for attempt 1, got %+v", entries)
	}
}

func TestGenerateContentStopsOnCanceledContext(t *testing.T) {
	originalSleep := sleep
	sleep = func(time.Duration) {}
	defer func() { sleep = originalSleep }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chats := &scriptedChats{script: []error{genai.APIError{Code: http.StatusBadGateway}}, reply: "ok"}
	g := &Generator{chats: chats, model: defaultModel, maxRetries: 3, logger: zap.NewNop()}

	if _, err := g.GenerateContent(ctx, "sys", "msg"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(chats.turns) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(chats.turns))
	}
}

func TestGenerateContentUninitialized(t *testing.T) {
	var g *Generator
	if _, err := g.GenerateContent(context.Background(), "sys", "msg"); err == nil {
		t.Fatal("expected error for a nil generator")
	}
}

func TestRetryDelay(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		retry bool
		delay time.Duration
	}{
		{name: "unavailable", err: genai.APIError{Code: http.StatusServiceUnavailable}, retry: true, delay: 2 * time.Second},
		{name: "short quota delay", err: genai.APIError{Code: http.StatusTooManyRequests, Message: "Please retry in 3s."}, retry: true, delay: 3 * time.Second},
		{name: "bad request", err: genai.APIError{Code: http.StatusBadRequest}},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			delay, retry := retryDelay(tc.err, 1)
			if retry != tc.retry {
				t.Fatalf("expected retry=%v, got %v", tc.retry, retry)
			}
			if retry && delay != tc.delay {
				t.Fatalf("expected delay %v, got %v", tc.delay, delay)
			}
		})
	}

	if got := backoff(5); got != maxBackoff {
		t.Fatalf("expected backoff to be capped, got %v", got)
	}
}

func TestGeneratorEmbed(t *testing.T) {
	var gotModel, gotText string
	g := &Generator{
		embedModel: "text-embedding-004",
		logger:     zap.NewNop(),
		embed: func(_ context.Context, model string, contents []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
			gotModel = model
			gotText = contents[0].Parts[0].Text
			return &genai.EmbedContentResponse{
				Embeddings: []*genai.ContentEmbedding{{Values: []float32{0.1, 0.2}}},
			}, nil
		},
	}

	vec, err := g.Embed(context.Background(), "go developer")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(vec) != 2 || gotModel != "text-embedding-004" || gotText != "go developer" {
		t.Fatalf("unexpected embed call: model=%q text=%q vec=%v", gotModel, gotText, vec)
	}

	g.embed = func(context.Context, string, []*genai.Content, *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
		return &genai.EmbedContentResponse{}, nil
	}
	if _, err := g.Embed(context.Background(), "x"); err == nil {
		t.Fatal("expected error on empty embeddings")
	}
}
