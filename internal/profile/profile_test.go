package profile

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestFromHistory(t *testing.T) {
	history := []Message{
		{Role: "assistant", Content: "Я карьерный консультант. Какие у вас навыки: умею слушать."},
		{Role: "user", Content: "Привет! Я бэкенд разработчик. Работаю в Яндексе, 5 лет опыта."},
		{Role: "user", Content: "Навыки: Go, PostgreSQL, Kafka. Хочу перейти в направление highload. Участвовал в проекте платежной системы."},
	}

	got := FromHistory(history)
	want := Profile{
		Title:      "бэкенд разработчик",
		Company:    "Яндекс",
		Skills:     []string{"Go", "PostgreSQL", "Kafka"},
		Experience: Experience3To6,
		Keywords:   "highload перейти в направление highload в проекте платежной системы",
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected profile:\n got %+v\nwant %+v", got, want)
	}
}

func TestFromHistoryDefaults(t *testing.T) {
	got := FromHistory(nil)
	want := Profile{Title: DefaultTitle, Skills: []string{}, Experience: ExperienceUnknown}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected profile: %+v", got)
	}
}

func TestFromHistoryCompanySpecialCases(t *testing.T) {
	cases := map[string]string{
		"Работаю в компании Майкрософт уже давно.": "Microsoft",
		"Сейчас работаю в Google.":                 "Google",
		"Компания Тинькофф, отдел платежей.":       "Тинькофф",
	}
	for text, want := range cases {
		got := FromHistory([]Message{{Role: "user", Content: text}})
		if got.Company != want {
			t.Fatalf("%q: expected company %q, got %q", text, want, got.Company)
		}
	}
}

func TestFromHistoryDropsLongHardSkills(t *testing.T) {
	long := strings.Repeat("x", maxHardSkillRunes)
	got := FromHistory([]Message{{Role: "user", Content: "Владею Python; " + long + ", SQL"}})
	if !reflect.DeepEqual(got.Skills, []string{"Python", "SQL"}) {
		t.Fatalf("unexpected skills: %v", got.Skills)
	}
}

func TestExperienceFor(t *testing.T) {
	cases := map[int]string{
		0:  NoExperience,
		1:  Experience1To3,
		3:  Experience1To3,
		4:  Experience3To6,
		6:  Experience3To6,
		7:  ExperienceOver6,
		-1: ExperienceUnknown,
	}
	for years, want := range cases {
		if got := ExperienceFor(years); got != want {
			t.Fatalf("%d years: expected %q, got %q", years, want, got)
		}
	}
}

func TestFromAnswers(t *testing.T) {
	got := FromAnswers(Answers{
		Title:     " Data Engineer ",
		Skills:    "Python, Spark; Airflow",
		Years:     "2 года",
		Interests: "ml платформы",
	})
	want := Profile{
		Title:      "Data Engineer",
		Skills:     []string{"Python", "Spark", "Airflow"},
		Experience: Experience1To3,
		Keywords:   "ml платформы",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected profile: %+v", got)
	}
	if got.Text() != "data engineer python spark airflow от 1 года до 3 лет ml платформы" {
		t.Fatalf("unexpected text: %q", got.Text())
	}

	if FromAnswers(Answers{}).Title != DefaultTitle {
		t.Fatal("expected default title")
	}
}

type stubGenerator struct {
	response string
	err      error
	system   string
	message  string
}

func (s *stubGenerator) GenerateContent(_ context.Context, system, message string) (string, error) {
	s.system = system
	s.message = message
	return s.response, s.err
}

func TestExtractorExtract(t *testing.T) {
	stub := &stubGenerator{response: "```json\n{\"title\": \"Go разработчик\", \"company\": \"Ozon\", \"skills\": [\"Go\", \"Kafka\"], \"experience\": 4, \"keywords\": \"highload\"}\n```"}
	e := NewExtractor(stub, 0, zap.NewNop())

	got, err := e.Extract(context.Background(), []Message{
		{Role: "assistant", Content: "Расскажите о себе"},
		{Role: "user", Content: "[System] я Go   разработчик"},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	want := Profile{Title: "Go разработчик", Company: "Ozon", Skills: []string{"Go", "Kafka"}, Experience: Experience3To6, Keywords: "highload"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected profile: %+v", got)
	}

	if stub.system != systemPrompt {
		t.Fatal("expected the system prompt to be sent")
	}
	if stub.message != "(assistant) Расскажите о себе\n(user) (System) я Go разработчик" {
		t.Fatalf("unexpected transcript: %q", stub.message)
	}
}

func TestExtractorErrors(t *testing.T) {
	e := NewExtractor(&stubGenerator{}, 0, nil)
	if _, err := e.Extract(context.Background(), nil); err == nil {
		t.Fatal("expected error on empty history")
	}

	boom := errors.New("boom")
	e = NewExtractor(&stubGenerator{err: boom}, 0, nil)
	if _, err := e.Extract(context.Background(), []Message{{Role: "user", Content: "hi"}}); !errors.Is(err, boom) {
		t.Fatalf("expected generator error, got %v", err)
	}

	e = NewExtractor(&stubGenerator{response: "not json"}, 0, nil)
	if _, err := e.Extract(context.Background(), []Message{{Role: "user", Content: "hi"}}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseResponseCoercion(t *testing.T) {
	got, err := parseResponse(`{"title": "", "skills": "SQL, Excel", "experience": "более 6 лет"}`)
	if err != nil {
		t.Fatal(err)
	}
	want := Profile{Title: DefaultTitle, Skills: []string{"SQL", "Excel"}, Experience: ExperienceOver6}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected profile: %+v", got)
	}

	got, err = parseResponse(`{"experience": null}`)
	if err != nil {
		t.Fatal(err)
	}
	if got.Experience != ExperienceUnknown {
		t.Fatalf("expected unknown experience, got %q", got.Experience)
	}
}
