package client

import (
	"testing"
	"time"
)

func TestPollConfigDefaults(t *testing.T) {
	cfg := PollConfig{}.withDefaults()
	if cfg.Cycle != time.Second {
		t.Fatalf("Cycle default = %v, want 1s", cfg.Cycle)
	}
	if cfg.BackoffMin != cfg.Cycle {
		t.Fatalf("BackoffMin default = %v, want %v", cfg.BackoffMin, cfg.Cycle)
	}
	if cfg.BackoffMax != 10*cfg.BackoffMin {
		t.Fatalf("BackoffMax default = %v, want %v", cfg.BackoffMax, 10*cfg.BackoffMin)
	}
	if cfg.BackoffMultiplier != 1.5 {
		t.Fatalf("BackoffMultiplier default = %v, want 1.5", cfg.BackoffMultiplier)
	}
}

func TestNextBackoffGrowsThenCaps(t *testing.T) {
	max := 4 * time.Second
	d := 500 * time.Millisecond
	seen := []time.Duration{d}
	for i := 0; i < 10; i++ {
		d = nextBackoff(d, 1.5, max)
		seen = append(seen, d)
	}
	if d != max {
		t.Fatalf("backoff did not converge to max: got %v, want %v", d, max)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("backoff decreased: %v -> %v", seen[i-1], seen[i])
		}
	}
}
