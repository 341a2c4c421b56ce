package repository

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"
)

func TestBuildLikeConditionByDialect(t *testing.T) {
	condition, argCount := buildLikeConditionByDialect("sqlite", []string{"name", " ", "reward_description"})
	if argCount != 2 {
		t.Fatalf("arg count want 2 got %d", argCount)
	}
	want := "(name LIKE ? OR reward_description LIKE ?)"
	if condition != want {
		t.Fatalf("sqlite condition mismatch, want %s got %s", want, condition)
	}

	condition, _ = buildLikeConditionByDialect("postgres", []string{"name"})
	if condition != "(name ILIKE ?)" {
		t.Fatalf("postgres condition mismatch, got %s", condition)
	}

	condition, argCount = buildLikeConditionByDialect("sqlite", nil)
	if condition != "1 = 1" || argCount != 0 {
		t.Fatalf("empty condition mismatch, got %s/%d", condition, argCount)
	}
}

func TestRepeatLikeArgs(t *testing.T) {
	args := repeatLikeArgs("%test%", 3)
	if len(args) != 3 {
		t.Fatalf("args len want 3 got %d", len(args))
	}
	for idx, arg := range args {
		if arg != "%test%" {
			t.Fatalf("args[%d] want %%test%% got %v", idx, arg)
		}
	}
}

func TestIsDuplicateKeyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "translated", err: fmt.Errorf("wrap: %w", gorm.ErrDuplicatedKey), want: true},
		{name: "sqlite", err: errors.New("constraint failed: UNIQUE constraint failed: punch_codes.card_slot (2067)"), want: true},
		{name: "postgres", err: errors.New(`ERROR: duplicate key value violates unique constraint "idx_punch_codes_code_slot" (SQLSTATE 23505)`), want: true},
		{name: "other", err: errors.New("database is locked"), want: false},
	}
	for _, tc := range cases {
		if got := IsDuplicateKeyError(tc.err); got != tc.want {
			t.Fatalf("%s: want %v got %v", tc.name, tc.want, got)
		}
	}
}
