package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"lock not available", fmt.Errorf("claim: %w", &pgconn.PgError{Code: "55P03"}), true},
		{"connection exception class", &pgconn.PgError{Code: "08006"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"deadline", fmt.Errorf("embed: %w", context.DeadlineExceeded), true},
		{"plain", errors.New("boom"), false},
		{"not found", ErrNotFound, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsTransient(tc.err); got != tc.want {
				t.Fatalf("IsTransient: want=%v got=%v", tc.want, got)
			}
		})
	}
}

func TestKind(t *testing.T) {
	if Kind(nil) != "none" {
		t.Fatalf("nil kind")
	}
	if Kind(&pgconn.PgError{Code: "40001"}) != "transient" {
		t.Fatalf("serialization failure should be transient")
	}
	if Kind(errors.New("x")) != "fatal" {
		t.Fatalf("plain error should be fatal")
	}
}
