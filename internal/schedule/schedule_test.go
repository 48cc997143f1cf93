package schedule

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// TestShouldRecrawl verifies the default seven day interval.
func TestShouldRecrawl(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s, err := New(WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	const u = "https://example.se/"

	if !s.ShouldRecrawl(u) {
		t.Error("never crawled URL must be due")
	}

	s.MarkCrawled(u)
	if s.ShouldRecrawl(u) {
		t.Error("freshly crawled URL must not be due")
	}

	clock.Advance(DefaultInterval - time.Second)
	if s.ShouldRecrawl(u) {
		t.Error("URL is due one second early")
	}

	clock.Advance(time.Second)
	if !s.ShouldRecrawl(u) {
		t.Error("URL must be due after the interval")
	}
}

// TestRestore verifies restored times and that newer times win.
func TestRestore(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s, err := New(WithClock(clock.Now), WithInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	s.Restore("https://a.se/", clock.Now().Add(-2*time.Hour))
	if !s.ShouldRecrawl("https://a.se/") {
		t.Error("restored old crawl must be due")
	}

	s.MarkCrawled("https://a.se/")
	s.Restore("https://a.se/", clock.Now().Add(-5*time.Hour))
	at, ok := s.LastCrawled("https://a.se/")
	if !ok || !at.Equal(clock.Now()) {
		t.Errorf("LastCrawled = %v, %v; older restore replaced newer time", at, ok)
	}
}

// TestDue lists due URLs oldest first.
func TestDue(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	s, err := New(WithClock(clock.Now), WithInterval(time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	now := clock.Now()
	s.Restore("https://a.se/new", now.Add(-10*time.Minute))
	s.Restore("https://a.se/old", now.Add(-3*time.Hour))
	s.Restore("https://a.se/mid", now.Add(-2*time.Hour))

	due := s.Due()
	want := []string{"https://a.se/old", "https://a.se/mid"}
	if len(due) != len(want) {
		t.Fatalf("Due() = %v, want %v", due, want)
	}
	for i := range want {
		if due[i] != want[i] {
			t.Errorf("Due()[%d] = %s, want %s", i, due[i], want[i])
		}
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
}

// TestNewInvalidInterval rejects non-positive intervals.
func TestNewInvalidInterval(t *testing.T) {
	t.Parallel()

	for _, d := range []time.Duration{0, -time.Hour} {
		if _, err := New(WithInterval(d)); !errors.Is(err, ErrInvalidInterval) {
			t.Errorf("New(WithInterval(%v)) error = %v", d, err)
		}
	}
}
