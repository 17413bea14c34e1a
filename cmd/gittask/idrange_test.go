package main

import (
	"reflect"
	"testing"
)

func TestParseIDs(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"single", []string{"7"}, []string{"7"}},
		{"comma list", []string{"1,3,5"}, []string{"1", "3", "5"}},
		{"range", []string{"3..5"}, []string{"3", "4", "5"}},
		{"mixed", []string{"1,3..5,7"}, []string{"1", "3", "4", "5", "7"}},
		{"separate args", []string{"1", "4..5"}, []string{"1", "4", "5"}},
		{"non-numeric passthrough", []string{"PROJ-9"}, []string{"PROJ-9"}},
		{"single element range", []string{"4..4"}, []string{"4"}},
		{"empty parts ignored", []string{"1,,2"}, []string{"1", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIDs(tt.args)
			if err != nil {
				t.Fatalf("parseIDs(%v): %v", tt.args, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseIDs(%v) = %v, want %v", tt.args, got, tt.want)
			}
		})
	}
}

func TestParseIDsRejectsBadRanges(t *testing.T) {
	for _, args := range [][]string{
		{"5..3"},
		{"a..5"},
		{"1..b"},
	} {
		if _, err := parseIDs(args); err == nil {
			t.Errorf("parseIDs(%v) should fail", args)
		}
	}
}

func TestNormalizeRefPath(t *testing.T) {
	tests := map[string]string{
		"work":            "refs/tasks/work",
		"refs/tasks/work": "refs/tasks/work",
		"refs/heads/t":    "refs/heads/t",
		"/work/":          "refs/tasks/work",
	}
	for in, want := range tests {
		if got := normalizeRefPath(in); got != want {
			t.Errorf("normalizeRefPath(%q) = %q, want %q", in, got, want)
		}
	}
}
