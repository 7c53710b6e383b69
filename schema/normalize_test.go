package schema

import (
	"errors"
	"testing"
	"time"
)

func TestNormalizeStreamID(t *testing.T) {
	cases := []struct {
		name  string
		in    string
		want  StreamID
		valid bool
	}{
		{"simple", "report42", "report42", true},
		{"trimmed", "  report42 ", "report42", true},
		{"prefixed", "report:42", "report:42", true},
		{"dashes", "thread-7_a.b", "thread-7_a.b", true},
		{"empty", "", "", false},
		{"blank", "   ", "", false},
		{"space", "report 42", "", false},
		{"slash", "report/42", "", false},
	}
	for _, tc := range cases {
		got, err := NormalizeStreamID(tc.in)
		if tc.valid && err != nil {
			t.Fatalf("case %q expected valid, got error: %v", tc.name, err)
		}
		if !tc.valid {
			if !errors.Is(err, ErrInvalidStream) {
				t.Fatalf("case %q expected ErrInvalidStream, got %v", tc.name, err)
			}
			continue
		}
		if got != tc.want {
			t.Fatalf("case %q: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestNormalizeDirection(t *testing.T) {
	if d, err := NormalizeDirection(" Older "); err != nil || d != DirectionOlder {
		t.Fatalf("expected older, got %q %v", d, err)
	}
	if d, err := NormalizeDirection("newer"); err != nil || d != DirectionNewer {
		t.Fatalf("expected newer, got %q %v", d, err)
	}
	if _, err := NormalizeDirection("sideways"); !errors.Is(err, ErrInvalidDirection) {
		t.Fatalf("expected ErrInvalidDirection, got %v", err)
	}
}

func TestValidateEntry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if err := ValidateEntry(Entry{ID: "a", CreatedAt: now}); err != nil {
		t.Fatalf("expected valid entry, got %v", err)
	}
	if err := ValidateEntry(Entry{CreatedAt: now}); !errors.Is(err, ErrMalformedEntry) {
		t.Fatalf("expected malformed entry for missing id, got %v", err)
	}
	if err := ValidateEntry(Entry{ID: "a"}); !errors.Is(err, ErrMalformedEntry) {
		t.Fatalf("expected malformed entry for zero time, got %v", err)
	}
}

func TestNormalizePagerConfigDefaults(t *testing.T) {
	cfg, err := NormalizePagerConfig(PagerConfig{DefaultCurrency: " eur "})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.PageSize != DefaultPageSize {
		t.Fatalf("expected page size %d, got %d", DefaultPageSize, cfg.PageSize)
	}
	if cfg.Tick != DefaultTick {
		t.Fatalf("expected tick %s, got %s", DefaultTick, cfg.Tick)
	}
	if cfg.DefaultCurrency != "EUR" {
		t.Fatalf("expected EUR, got %q", cfg.DefaultCurrency)
	}
	if _, err := NormalizePagerConfig(PagerConfig{PageSize: -1}); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
