package status

import (
	"reflect"
	"testing"
)

func TestDefaultsWhenUnsetOrBroken(t *testing.T) {
	for _, cfg := range []string{"", "not json", "[]"} {
		m := NewManager(cfg)
		if m.Starting() != "OPEN" {
			t.Errorf("config %q: Starting = %q, want OPEN", cfg, m.Starting())
		}
		if m.Final() != "CLOSED" {
			t.Errorf("config %q: Final = %q, want CLOSED", cfg, m.Final())
		}
	}
}

func TestCustomVocabulary(t *testing.T) {
	m := NewManager(`[
		{"name":"TODO","shortcut":"t"},
		{"name":"DOING","shortcut":"d"},
		{"name":"DONE","shortcut":"x","is_done":true},
		{"name":"WONTFIX","shortcut":"w","is_done":true}
	]`)

	if m.Starting() != "TODO" {
		t.Errorf("Starting = %q", m.Starting())
	}
	// Final is the last done status, not the first.
	if m.Final() != "WONTFIX" {
		t.Errorf("Final = %q", m.Final())
	}
	if !m.IsDone("DONE") || m.IsDone("DOING") || m.IsDone("UNKNOWN") {
		t.Error("IsDone misclassifies")
	}
	if got, want := m.Vocabulary(), []string{"TODO", "WONTFIX"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Vocabulary = %v, want %v", got, want)
	}
}

func TestFullNameExpandsShortcuts(t *testing.T) {
	m := NewManager("")
	if got := m.FullName("c"); got != "CLOSED" {
		t.Errorf("FullName(c) = %q", got)
	}
	if got := m.FullName("CLOSED"); got != "CLOSED" {
		t.Errorf("full names must pass through, got %q", got)
	}
	if got := m.FullName("zzz"); got != "zzz" {
		t.Errorf("unknown values must pass through, got %q", got)
	}
}

func TestFormatNoColor(t *testing.T) {
	m := NewManager("")
	if got := m.Format("OPEN", true); got != "OPEN" {
		t.Errorf("Format with noColor = %q, want bare name", got)
	}
	if got := m.Format("UNKNOWN", true); got != "UNKNOWN" {
		t.Errorf("unknown status = %q, want pass-through", got)
	}
}
