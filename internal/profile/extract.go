package profile

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/spigell/hh-pathfinder/internal/utils"
)

//go:embed prompt.md
var systemPrompt string

const (
	defaultMaxLogLength = 200
	maxMessageRunes     = 2000
)

var experienceCategories = []string{NoExperience, Experience1To3, Experience3To6, ExperienceOver6, ExperienceUnknown}

type generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// Extractor builds profiles with a language model.
type Extractor struct {
	generator generator
	logger    *zap.Logger
	maxLogLen int
}

func NewExtractor(g generator, maxLogLength int, logger *zap.Logger) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{generator: g, logger: logger, maxLogLen: maxLogLength}
}

// Extract asks the model for the candidate profile described in history.
func (e *Extractor) Extract(ctx context.Context, history []Message) (Profile, error) {
	transcript := buildTranscript(history)
	if transcript == "" {
		return Profile{}, errors.New("history has no messages")
	}

	e.logger.Debug("profile extraction request",
		zap.Int("messages", len(history)),
		zap.Int("transcript_length", utf8.RuneCountInString(transcript)),
		zap.String("transcript_preview", utils.TruncateForLog(transcript, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, systemPrompt, transcript)
	if err != nil {
		return Profile{}, err
	}

	e.logger.Debug("profile extraction response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	return parseResponse(raw)
}

// buildTranscript renders history one message per line. Brackets are
// replaced so that a message cannot pose as a role marker.
func buildTranscript(history []Message) string {
	var b strings.Builder
	for _, m := range history {
		content := sanitize(m.Content)
		if content == "" {
			continue
		}
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != "user" {
			role = "assistant"
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "(%s) %s", role, content)
	}
	return b.String()
}

func sanitize(s string) string {
	s = strings.NewReplacer("[", "(", "]", ")").Replace(s)
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxMessageRunes {
		s = string(r[:maxMessageRunes])
	}
	return s
}

func parseResponse(raw string) (Profile, error) {
	var data map[string]any
	if err := json.Unmarshal([]byte(extractJSON(raw)), &data); err != nil {
		return Profile{}, fmt.Errorf("parse profile response: %w", err)
	}

	p := Profile{
		Title:      coerceString(data["title"]),
		Company:    coerceString(data["company"]),
		Skills:     coerceStrings(data["skills"]),
		Experience: coerceExperience(data["experience"]),
		Keywords:   coerceString(data["keywords"]),
	}
	if p.Title == "" {
		p.Title = DefaultTitle
	}
	return p, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceExperience(v any) string {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, c := range experienceCategories {
			if strings.EqualFold(s, c) {
				return c
			}
		}
	}

	years := coerceFloat(v)
	if math.IsNaN(years) {
		return ExperienceUnknown
	}
	return ExperienceFor(int(years))
}

func coerceStrings(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		out = splitSkills(val, 0)
	}
	return out
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		if m := digits.FindString(val); m != "" {
			f, err := strconv.ParseFloat(m, 64)
			if err == nil {
				return f
			}
		}
	}
	return math.NaN()
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case nil:
		return ""
	default:
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
