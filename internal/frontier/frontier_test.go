package frontier

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/politecrawler/internal/urlproc"
)

// mustEntry builds an Entry for raw, failing the test on invalid input.
func mustEntry(t *testing.T, raw, domain string) Entry {
	t.Helper()
	u, err := urlproc.Normalize(raw)
	if err != nil {
		t.Fatalf("normalize %q: %v", raw, err)
	}
	return Entry{URL: u, Domain: domain}
}

// TestEnqueueDequeue covers the basic lifecycle of a single entry.
func TestEnqueueDequeue(t *testing.T) {
	t.Parallel()

	t.Run("scenario url is dequeued exactly once", func(t *testing.T) {
		t.Parallel()

		f := New()
		e := mustEntry(t, "https://EXAMPLE.se/Page/?b=2&a=1#frag", "example.se")
		if got := f.Enqueue(e, 1); got != Added {
			t.Fatalf("first enqueue = %v, want added", got)
		}
		dup := mustEntry(t, "https://example.se/Page?a=1&b=2", "example.se")
		if got := f.Enqueue(dup, 5); got != Duplicate {
			t.Fatalf("second enqueue = %v, want duplicate", got)
		}

		got, err := f.Dequeue()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.URL.String() != "https://example.se/Page?a=1&b=2" {
			t.Errorf("dequeued %q", got.URL.String())
		}
		if _, err := f.Dequeue(); !errors.Is(err, ErrEmpty) {
			t.Errorf("expected ErrEmpty, got %v", err)
		}
	})

	t.Run("visited urls are duplicates", func(t *testing.T) {
		t.Parallel()

		f := New()
		e := mustEntry(t, "https://example.se/a", "example.se")
		f.MarkVisited(e.URL.DedupKey())

		if got := f.Enqueue(e, 1); got != Duplicate {
			t.Errorf("enqueue after visit = %v, want duplicate", got)
		}
		if !f.Visited(e.URL.DedupKey()) {
			t.Error("expected key to be visited")
		}
	})

	t.Run("empty frontier", func(t *testing.T) {
		t.Parallel()

		if _, err := New().Dequeue(); !errors.Is(err, ErrEmpty) {
			t.Errorf("expected ErrEmpty, got %v", err)
		}
	})

	t.Run("fills defaults", func(t *testing.T) {
		t.Parallel()

		fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		f := New(WithClock(func() time.Time { return fixed }))
		f.Enqueue(mustEntry(t, "https://news.example.se/x", ""), 2)

		got, err := f.Dequeue()
		if err != nil {
			t.Fatal(err)
		}
		if got.Domain != "news.example.se" {
			t.Errorf("domain = %q", got.Domain)
		}
		if got.Key == "" {
			t.Error("expected key to be filled")
		}
		if !got.DiscoveredAt.Equal(fixed) {
			t.Errorf("discovered at %v, want %v", got.DiscoveredAt, fixed)
		}
		if got.Priority != 2 {
			t.Errorf("priority = %v, want 2", got.Priority)
		}
	})
}

// TestPriorityOrder verifies ordering within a single domain.
func TestPriorityOrder(t *testing.T) {
	t.Parallel()

	f := New()
	f.Enqueue(mustEntry(t, "https://example.se/low", "example.se"), 1)
	f.Enqueue(mustEntry(t, "https://example.se/high", "example.se"), 9)
	f.Enqueue(mustEntry(t, "https://example.se/first-mid", "example.se"), 5)
	f.Enqueue(mustEntry(t, "https://example.se/second-mid", "example.se"), 5)

	want := []string{"/high", "/first-mid", "/second-mid", "/low"}
	for i, w := range want {
		e, err := f.Dequeue()
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if e.URL.Path() != w {
			t.Errorf("dequeue %d = %s, want %s", i, e.URL.Path(), w)
		}
	}
}

// TestDomainCap verifies the per-domain admission limit.
func TestDomainCap(t *testing.T) {
	t.Parallel()

	f := New(WithMaxPerDomain(2))
	for i := range 4 {
		e := mustEntry(t, fmt.Sprintf("https://example.se/%d", i), "example.se")
		got := f.Enqueue(e, 1)
		want := Added
		if i >= 2 {
			want = Capped
		}
		if got != want {
			t.Errorf("enqueue %d = %v, want %v", i, got, want)
		}
	}
	if f.Dropped("example.se") != 2 {
		t.Errorf("dropped = %d, want 2", f.Dropped("example.se"))
	}
	if f.Pending("example.se") != 2 {
		t.Errorf("pending = %d, want 2", f.Pending("example.se"))
	}

	// Another domain is unaffected.
	if got := f.Enqueue(mustEntry(t, "https://other.se/", "other.se"), 1); got != Added {
		t.Errorf("other domain enqueue = %v", got)
	}

	f.ResetDomain("example.se")
	if f.Dropped("example.se") != 0 {
		t.Error("expected dropped counter to reset")
	}
}

// TestFairness verifies that a heavily weighted domain cannot starve a
// lightly weighted one.
func TestFairness(t *testing.T) {
	t.Parallel()

	const maxConsecutive = 3
	f := New(WithMaxConsecutive(maxConsecutive), WithMaxPerDomain(0))
	f.SetWeight("a.se", 10)
	f.SetWeight("b.se", 1)

	for i := range 50 {
		f.Enqueue(mustEntry(t, fmt.Sprintf("https://a.se/%d", i), "a.se"), 10)
	}
	for i := range 10 {
		f.Enqueue(mustEntry(t, fmt.Sprintf("https://b.se/%d", i), "b.se"), 1)
	}

	run := 0
	prev := ""
	servedB := 0
	for f.Pending("b.se") > 0 {
		e, err := f.Dequeue()
		if err != nil {
			t.Fatal(err)
		}
		if e.Domain == prev {
			run++
		} else {
			run = 1
			prev = e.Domain
		}
		if run > maxConsecutive {
			t.Fatalf("%s served %d times in a row while b.se was waiting", e.Domain, run)
		}
		if e.Domain == "b.se" {
			servedB++
		}
	}
	if servedB != 10 {
		t.Errorf("b.se served %d times, want 10", servedB)
	}
}

// TestFairnessSingleDomain verifies the consecutive cap is not applied when
// only one domain has work.
func TestFairnessSingleDomain(t *testing.T) {
	t.Parallel()

	f := New(WithMaxConsecutive(1))
	for i := range 5 {
		f.Enqueue(mustEntry(t, fmt.Sprintf("https://a.se/%d", i), "a.se"), 1)
	}
	for i := range 5 {
		if _, err := f.Dequeue(); err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
	}
}

// TestEligibility verifies skipped domains keep their entries.
func TestEligibility(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	suspended := map[string]bool{"a.se": true}
	f := New(WithEligibility(func(d string) bool {
		mu.Lock()
		defer mu.Unlock()
		return !suspended[d]
	}))

	f.Enqueue(mustEntry(t, "https://a.se/", "a.se"), 1)
	f.Enqueue(mustEntry(t, "https://b.se/", "b.se"), 1)

	e, err := f.Dequeue()
	if err != nil {
		t.Fatal(err)
	}
	if e.Domain != "b.se" {
		t.Errorf("got %s, want b.se", e.Domain)
	}
	if _, err := f.Dequeue(); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty while a.se is suspended, got %v", err)
	}
	if f.Len() != 1 {
		t.Errorf("len = %d, want 1", f.Len())
	}
	if f.Ready() != 0 {
		t.Errorf("ready = %d, want 0", f.Ready())
	}

	mu.Lock()
	suspended["a.se"] = false
	mu.Unlock()

	if f.Ready() != 1 {
		t.Errorf("ready = %d, want 1", f.Ready())
	}
	if e, err := f.Dequeue(); err != nil || e.Domain != "a.se" {
		t.Errorf("got %v, %v", e.Domain, err)
	}
}

// TestReschedule verifies recrawl re-entry.
func TestReschedule(t *testing.T) {
	t.Parallel()

	f := New(WithMaxPerDomain(1))
	e := mustEntry(t, "https://a.se/", "a.se")
	f.Enqueue(e, 1)

	if got := f.Reschedule(e, 1); got != Duplicate {
		t.Errorf("reschedule while pending = %v, want duplicate", got)
	}

	got, err := f.Dequeue()
	if err != nil {
		t.Fatal(err)
	}
	f.MarkVisited(got.Key)

	if out := f.Enqueue(e, 1); out != Duplicate {
		t.Errorf("enqueue after visit = %v, want duplicate", out)
	}
	if out := f.Reschedule(got, 1); out != Added {
		t.Errorf("reschedule = %v, want added", out)
	}
	if _, err := f.Dequeue(); err != nil {
		t.Errorf("expected rescheduled entry, got %v", err)
	}
}

// TestConcurrentEnqueue verifies dedup under concurrent producers.
func TestConcurrentEnqueue(t *testing.T) {
	t.Parallel()

	f := New(WithMaxPerDomain(0))
	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := range 100 {
				u, _ := urlproc.Normalize(fmt.Sprintf("https://a.se/%d", i))
				f.Enqueue(Entry{URL: u, Domain: "a.se", Depth: w}, 1)
			}
		}(w)
	}
	wg.Wait()

	if f.Len() != 100 {
		t.Errorf("len = %d, want 100", f.Len())
	}
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()

	if Added.String() != "added" || Duplicate.String() != "duplicate" || Capped.String() != "capped" {
		t.Error("unexpected outcome names")
	}
	if Outcome(9).String() != "outcome(9)" {
		t.Errorf("got %q", Outcome(9).String())
	}
}
