package date

import (
	"testing"
	"time"
)

func TestCurrent_FallbackWithoutTicker(t *testing.T) {
	got := Current()
	if _, err := time.Parse(time.RFC1123, string(got)); err != nil {
		t.Errorf("Expected RFC1123 date, got %q: %v", got, err)
	}
}

func TestStartTicker(t *testing.T) {
	stop := StartTicker()
	defer stop()

	got := Current()
	parsed, err := time.Parse(time.RFC1123, string(got))
	if err != nil {
		t.Fatalf("Expected RFC1123 date, got %q: %v", got, err)
	}
	if d := time.Since(parsed); d > 2*time.Second || d < -2*time.Second {
		t.Errorf("Cached date too far from now: %v", d)
	}
}
