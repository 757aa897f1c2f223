package signal

import (
	"testing"
	"time"
)

func TestRateLimiterBurstThenThrottle(t *testing.T) {
	rl := NewRateLimiter(1, 3, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !rl.Allow("alice") {
			t.Fatalf("frame %d within burst rejected", i)
		}
	}
	if rl.Allow("alice") {
		t.Fatal("burst exhausted, expected throttle")
	}
	if !rl.Allow("bob") {
		t.Fatal("buckets are per identity")
	}

	now = now.Add(time.Second)
	if !rl.Allow("alice") {
		t.Fatal("a token refills after one second")
	}
}

func TestRateLimiterSweep(t *testing.T) {
	rl := NewRateLimiter(1, 1, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	rl.Allow("alice")
	now = now.Add(30 * time.Second)
	rl.Allow("bob")
	now = now.Add(45 * time.Second)

	if n := rl.Sweep(); n != 1 {
		t.Fatalf("expected alice swept, removed %d", n)
	}
	if rl.Len() != 1 {
		t.Fatalf("bob should remain, len=%d", rl.Len())
	}
}
