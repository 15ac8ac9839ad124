package normalize

import (
	"reflect"
	"testing"
)

func TestText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "empty", input: "", expect: ""},
		{name: "lowercases and strips punctuation", input: "Senior Go-Developer!", expect: "senior go developer"},
		{name: "keeps cyrillic", input: "  Аналитик   ДАННЫХ (SQL) ", expect: "аналитик данных sql"},
		{name: "keeps yo", input: "Ёлка", expect: "ёлка"},
		{name: "drops accented latin", input: "café", expect: "caf"},
		{name: "collapses tabs and newlines", input: "a\t\tb\nc", expect: "a b c"},
		{name: "digits survive", input: "C++ 17, Python3", expect: "c 17 python3"},
		{name: "only punctuation", input: "!!!---???", expect: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Text(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestTextIsIdempotent(t *testing.T) {
	inputs := []string{
		"ML Engineer с опытом PyTorch 1 год",
		"Data/Analyst; SQL, Power-BI",
		"   ",
		"Ещё один — тест №42",
	}
	for _, in := range inputs {
		once := Text(in)
		if twice := Text(once); twice != once {
			t.Fatalf("not idempotent for %q: %q != %q", in, twice, once)
		}
	}
}

func TestAny(t *testing.T) {
	if got := Any(42); got != "" {
		t.Fatalf("expected empty string for non-string input, got %q", got)
	}
	if got := Any(nil); got != "" {
		t.Fatalf("expected empty string for nil, got %q", got)
	}
	if got := Any("Go!"); got != "go" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}

func TestTokens(t *testing.T) {
	got := Tokens("Python, SQL и Go: ML-инженер в Яндекс")
	expect := []string{"python", "sql", "инженер", "яндекс"}
	if !reflect.DeepEqual(got, expect) {
		t.Fatalf("expected %v, got %v", expect, got)
	}

	if got := Tokens(""); len(got) != 0 {
		t.Fatalf("expected no tokens, got %v", got)
	}

	dup := Tokens("sql sql SQL")
	if len(dup) != 3 {
		t.Fatalf("expected duplicates to be preserved, got %v", dup)
	}
}

func TestComposite(t *testing.T) {
	got := Composite("ML Engineer", "Yandex", []string{"Python", "PyTorch"}, "от 1 года до 3 лет", "Deep learning")
	expect := "ml engineer yandex python pytorch от 1 года до 3 лет deep learning"
	if got != expect {
		t.Fatalf("expected %q, got %q", expect, got)
	}

	if got := Composite("", "", nil, "", ""); got != "" {
		t.Fatalf("expected empty composite, got %q", got)
	}
}

func TestLabel(t *testing.T) {
	if got := Label("  Power   BI "); got != "power bi" {
		t.Fatalf("unexpected label: %q", got)
	}
	if Label("C++") == Label("C#") {
		t.Fatal("expected punctuation to distinguish labels")
	}
}
