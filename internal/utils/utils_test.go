package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitFor(t *testing.T) {
	original := sleep
	defer func() { sleep = original }()

	var slept time.Duration
	sleep = func(d time.Duration) { slept = d }

	if err := WaitFor(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if slept != 2*time.Second {
		t.Fatalf("expected to sleep 2s, slept %v", slept)
	}

	if err := WaitFor(context.Background(), 0); err != nil {
		t.Fatalf("expected immediate return, got %v", err)
	}
}

func TestWaitForCancelled(t *testing.T) {
	original := sleep
	started := make(chan struct{})
	release := make(chan struct{})
	sleep = func(time.Duration) {
		close(started)
		<-release
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitFor(ctx, time.Hour)
	<-started
	close(release)
	sleep = original

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestJitter(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := Jitter(time.Second, 2*time.Second)
		if d < time.Second || d >= 2*time.Second {
			t.Fatalf("jitter out of range: %v", d)
		}
	}
	if d := Jitter(time.Second, time.Second); d != time.Second {
		t.Fatalf("expected min when range is empty, got %v", d)
	}
}

func TestTruncateForLog(t *testing.T) {
	cases := []struct {
		in    string
		limit int
		want  string
	}{
		{in: "hello world", limit: 0, want: ""},
		{in: "hello", limit: 10, want: "hello"},
		{in: "hello world", limit: 5, want: "hello..."},
		{in: "  spaced  ", limit: 5, want: "space..."},
		{in: "Навыки: Go, Kafka", limit: 6, want: "Навыки..."},
	}

	for _, tc := range cases {
		if got := TruncateForLog(tc.in, tc.limit); got != tc.want {
			t.Fatalf("TruncateForLog(%q, %d): expected %q, got %q", tc.in, tc.limit, tc.want, got)
		}
	}
}
