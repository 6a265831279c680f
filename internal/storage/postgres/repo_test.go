package postgres

import (
	"context"
	"reflect"
	"testing"

	"github.com/jackc/pgx/v5"

	"ordersetl/internal/schema"
)

func TestNewRepositoryRejectsBadDSN(t *testing.T) {
	_, _, err := NewRepository(context.Background(), Config{
		DSN:   "://not-a-dsn",
		Table: "public.orders_",
	})
	if err == nil {
		t.Fatal("malformed DSN accepted")
	}
}

func TestPGIdentifier(t *testing.T) {
	got := pgIdentifier("public.orders_")
	want := pgx.Identifier{"public", "orders_"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("pgIdentifier = %#v, want %#v", got, want)
	}
}

func TestPGFQN(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"orders_", `"orders_"`},
		{"public.orders_", `"public"."orders_"`},
		{`we"ird`, `"we""ird"`},
	}
	for _, c := range cases {
		if got := pgFQN(c.in); got != c.want {
			t.Errorf("pgFQN(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSortedRegions(t *testing.T) {
	got := sortedRegions(schema.DiscountAdjustment{"West": 1, "Central": 2, "East": 3})
	want := []string{"Central", "East", "West"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("sortedRegions = %v, want %v", got, want)
	}
}
