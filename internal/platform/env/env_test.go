package env

import (
	"testing"
	"time"
)

func TestDurations(t *testing.T) {
	t.Setenv("MB_TEST_BACKOFF", "5s, 10s,1m")
	got, err := Durations("MB_TEST_BACKOFF", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []time.Duration{5 * time.Second, 10 * time.Second, time.Minute}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for idx := range want {
		if got[idx] != want[idx] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestDurationsDefault(t *testing.T) {
	def := []time.Duration{time.Second}
	got, err := Durations("MB_TEST_BACKOFF_UNSET", def)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != time.Second {
		t.Fatalf("expected default, got %v", got)
	}
}

func TestDurationsInvalid(t *testing.T) {
	t.Setenv("MB_TEST_BACKOFF_BAD", "soon")
	if _, err := Durations("MB_TEST_BACKOFF_BAD", nil); err == nil {
		t.Fatalf("expected parse error")
	}
}
