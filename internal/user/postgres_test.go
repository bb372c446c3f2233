package user

import (
	"testing"
)

func TestBuildWhere(t *testing.T) {
	filter := Filter{
		{{FieldUsername, MatchContains, "Jo"}},
		{{FieldName, MatchStartsWith, "jo"}},
		{
			{FieldName, MatchContains, "john"},
			{FieldSurname, MatchContains, "smith"},
		},
	}

	where, args := buildWhere(filter)

	wantWhere := "(username ILIKE $1) OR (name ILIKE $2) OR (name ILIKE $3 AND surname ILIKE $4)"
	if where != wantWhere {
		t.Errorf("where:\n got  %s\n want %s", where, wantWhere)
	}

	wantArgs := []string{"%jo%", "jo%", "%john%", "%smith%"}
	if len(args) != len(wantArgs) {
		t.Fatalf("expected %d args, got %d", len(wantArgs), len(args))
	}
	for i, want := range wantArgs {
		if args[i] != want {
			t.Errorf("arg %d: got %v, want %s", i, args[i], want)
		}
	}
}

func TestBuildWhere_Empty(t *testing.T) {
	where, args := buildWhere(nil)
	if where != "" || len(args) != 0 {
		t.Errorf("expected empty where, got %q %v", where, args)
	}

	where, _ = buildWhere(Filter{{{Field("email"), MatchContains, "x"}}})
	if where != "" {
		t.Errorf("unknown fields should be skipped, got %q", where)
	}
}

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"50%", `50\%`},
		{"a_b", `a\_b`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeLike(tt.in); got != tt.want {
			t.Errorf("escapeLike(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
