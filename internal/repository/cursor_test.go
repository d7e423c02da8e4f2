package repository

import (
	"testing"
	"time"
)

func TestCursor_RoundTrip(t *testing.T) {
	t.Parallel()

	in := &PaginationCursor{ID: "01HX", CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), Boosted: true}
	out, err := decodeCursor(encodeCursor(in))
	if err != nil {
		t.Fatalf("decodeCursor failed: %v", err)
	}
	if out.ID != in.ID || !out.CreatedAt.Equal(in.CreatedAt) || out.Boosted != in.Boosted {
		t.Errorf("round trip mismatch: %+v vs %+v", out, in)
	}
}

func TestDecodeCursor_Invalid(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"!!!", "bm90LWpzb24=", "e30="} {
		if _, err := decodeCursor(s); err != ErrInvalidCursor {
			t.Errorf("decodeCursor(%q) error = %v, want ErrInvalidCursor", s, err)
		}
	}
}

func TestDecodeCursor_Empty(t *testing.T) {
	t.Parallel()

	c, err := decodeCursor("")
	if err != nil || c != nil {
		t.Errorf("empty cursor should decode to nil, got %+v, %v", c, err)
	}
}

func TestMigrateURL(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"postgres://u:p@h/db":   "pgx5://u:p@h/db",
		"postgresql://u:p@h/db": "pgx5://u:p@h/db",
		"pgx5://u:p@h/db":       "pgx5://u:p@h/db",
	}
	for in, want := range tests {
		if got := migrateURL(in); got != want {
			t.Errorf("migrateURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	t.Parallel()

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) == 0 || len(entries)%2 != 0 {
		t.Fatalf("expected paired up/down migrations, got %d files", len(entries))
	}
}

func TestEscapeLike(t *testing.T) {
	t.Parallel()

	if got := escapeLike(`50%_a\b`); got != `50\%\_a\\b` {
		t.Errorf("escapeLike = %q", got)
	}
}

func TestLatestBirthDate(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.June, 15, 13, 0, 0, 0, time.UTC)
	got := latestBirthDate(now, 18)
	want := time.Date(2008, time.June, 15, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("latestBirthDate = %v, want %v", got, want)
	}
}
