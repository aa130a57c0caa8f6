package ratelimit

import (
	"testing"
	"time"
)

func TestAllow_BurstThenDeny(t *testing.T) {
	g := New(60, 2)
	now := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return now }

	for i := range 2 {
		if ok, _ := g.Allow(7); !ok {
			t.Fatalf("request %d denied inside burst", i)
		}
	}
	ok, wait := g.Allow(7)
	if ok {
		t.Fatal("request allowed beyond burst")
	}
	if wait <= 0 {
		t.Fatalf("wait = %v, want positive", wait)
	}
}

func TestAllow_RefillsOverTime(t *testing.T) {
	g := New(60, 1) // one token per second
	now := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return now }

	if ok, _ := g.Allow(7); !ok {
		t.Fatal("first request denied")
	}
	if ok, _ := g.Allow(7); ok {
		t.Fatal("second immediate request allowed")
	}

	now = now.Add(1100 * time.Millisecond)
	if ok, _ := g.Allow(7); !ok {
		t.Fatal("request denied after refill interval")
	}
}

func TestAllow_PerUserIsolation(t *testing.T) {
	g := New(60, 1)
	now := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return now }

	if ok, _ := g.Allow(1); !ok {
		t.Fatal("user 1 denied")
	}
	if ok, _ := g.Allow(2); !ok {
		t.Fatal("user 2 throttled by user 1's bucket")
	}
}

func TestExempt_BypassesGate(t *testing.T) {
	g := New(60, 1)
	g.Exempt(99)
	for i := range 10 {
		if ok, _ := g.Allow(99); !ok {
			t.Fatalf("exempt user denied on request %d", i)
		}
	}
}

func TestReset_DropsState(t *testing.T) {
	g := New(60, 1)
	now := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return now }

	g.Allow(7)
	if ok, _ := g.Allow(7); ok {
		t.Fatal("bucket not exhausted")
	}
	g.Reset()
	if ok, _ := g.Allow(7); !ok {
		t.Fatal("request denied after reset")
	}
}
