package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

// TestHealthString verifies Health names and JSON encoding.
func TestHealthString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		health Health
		want   string
	}{
		{HealthHealthy, "healthy"},
		{HealthSuspended, "suspended"},
		{Health(42), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			if got := tt.health.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("json uses name", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(DomainState{Name: "example.se", Health: HealthSuspended})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), `"health":"suspended"`) {
			t.Errorf("unexpected json: %s", data)
		}

		var decoded DomainState
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatal(err)
		}
		if decoded.Health != HealthSuspended {
			t.Errorf("decoded health = %s", decoded.Health)
		}
	})

	t.Run("unknown name", func(t *testing.T) {
		t.Parallel()

		var h Health
		if err := h.UnmarshalText([]byte("sleepy")); err == nil {
			t.Error("expected error for unknown health")
		}
	})
}

// TestDomainStateSuccessRate covers the zero and normal cases.
func TestDomainStateSuccessRate(t *testing.T) {
	t.Parallel()

	if rate := (DomainState{}).SuccessRate(); rate != 0 {
		t.Errorf("empty rate = %v, want 0", rate)
	}
	d := DomainState{PagesCrawled: 3, PagesFailed: 1}
	if rate := d.SuccessRate(); rate != 0.75 {
		t.Errorf("rate = %v, want 0.75", rate)
	}
}

// TestFetchResult covers the helper methods.
func TestFetchResult(t *testing.T) {
	t.Parallel()

	t.Run("ok requires 2xx and no error", func(t *testing.T) {
		t.Parallel()

		if !(&FetchResult{StatusCode: 200}).OK() {
			t.Error("200 should be OK")
		}
		if (&FetchResult{StatusCode: 404, Kind: FailureTerminal}).OK() {
			t.Error("404 should not be OK")
		}
		if (&FetchResult{StatusCode: 200, Err: errors.New("x")}).OK() {
			t.Error("error should not be OK")
		}
	})

	t.Run("retries", func(t *testing.T) {
		t.Parallel()

		if got := (&FetchResult{Attempts: 4}).Retries(); got != 3 {
			t.Errorf("retries = %d, want 3", got)
		}
		if got := (&FetchResult{}).Retries(); got != 0 {
			t.Errorf("retries = %d, want 0", got)
		}
	})

	t.Run("html detection", func(t *testing.T) {
		t.Parallel()

		for ct, want := range map[string]bool{
			"":                         true,
			"text/html; charset=utf-8": true,
			"application/xhtml+xml":    true,
			"application/json":         false,
			"image/png":                false,
		} {
			if got := (&FetchResult{ContentType: ct}).IsHTML(); got != want {
				t.Errorf("IsHTML(%q) = %v, want %v", ct, got, want)
			}
		}
	})

	t.Run("failure kind names", func(t *testing.T) {
		t.Parallel()

		names := map[FailureKind]string{
			FailureNone:      "none",
			FailureTransient: "transient",
			FailureTerminal:  "terminal",
			FailureCanceled:  "canceled",
			FailureKind(9):   "unknown",
		}
		for k, want := range names {
			if k.String() != want {
				t.Errorf("%d.String() = %q, want %q", int(k), k.String(), want)
			}
		}
	})
}

// TestTruncateText verifies the text cap keeps valid UTF-8.
func TestTruncateText(t *testing.T) {
	t.Parallel()

	p := PageRecord{Text: strings.Repeat("å", MaxTextSize)}
	p.TruncateText()
	if len(p.Text) > MaxTextSize {
		t.Errorf("len = %d, want <= %d", len(p.Text), MaxTextSize)
	}
	if !utf8.ValidString(p.Text) {
		t.Error("truncated text is not valid UTF-8")
	}

	short := PageRecord{Text: "hello"}
	short.TruncateText()
	if short.Text != "hello" {
		t.Errorf("short text changed: %q", short.Text)
	}
}
