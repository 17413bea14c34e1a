package connector

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gittask/gittask/internal/taskcfg"
)

// registry maps provider type names to their constructors
var (
	registry      = make(map[string]Constructor)
	registryMutex sync.RWMutex
)

// Register registers a provider constructor under its type name.
// This is called from init() functions in provider packages.
//
// Example:
//
//	func init() {
//	    connector.Register("github", New)
//	}
func Register(name string, constructor Constructor) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if constructor == nil {
		panic(fmt.Sprintf("connector: Register constructor is nil for %s", name))
	}

	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("connector: Register called twice for %s", name))
	}

	registry[name] = constructor
}

// IsRegistered returns true if a constructor is registered for the given name.
func IsRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, exists := registry[name]
	return exists
}

// RegisteredTypes returns all registered provider type names, sorted.
func RegisteredTypes() []string {
	registryMutex.RLock()
	defer registryMutex.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnregisterAll clears all registered constructors.
// This is primarily useful for testing.
func UnregisterAll() {
	registryMutex.Lock()
	defer registryMutex.Unlock()
	registry = make(map[string]Constructor)
}

// Match pairs a constructed connector with the scope one of the
// repository's remotes resolved to.
type Match struct {
	Connector Connector
	Scope     Scope
}

// Matches constructs every registered connector (or only the one named
// by typeFilter, when non-empty) and collects each (connector, scope)
// pair where some remote URL is recognized. Order is deterministic:
// providers by type name, remotes in the order given.
func Matches(cfg *taskcfg.Config, remotes []string, typeFilter string) []Match {
	registryMutex.RLock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		if typeFilter != "" && name != typeFilter {
			continue
		}
		names = append(names, name)
	}
	ctors := make(map[string]Constructor, len(names))
	for _, name := range names {
		ctors[name] = registry[name]
	}
	registryMutex.RUnlock()
	sort.Strings(names)

	var matches []Match
	for _, name := range names {
		conn := ctors[name](cfg)
		for _, url := range remotes {
			if scope, ok := conn.MatchRemote(url); ok {
				matches = append(matches, Match{Connector: conn, Scope: scope})
				break
			}
		}
	}
	return matches
}

// MatchOne returns the single connector serving the repository's
// remotes. Zero matches yields ErrNoMatch; more than one yields
// ErrAmbiguous listing the candidates so the user can pass a filter.
func MatchOne(cfg *taskcfg.Config, remotes []string, typeFilter string) (Match, error) {
	matches := Matches(cfg, remotes, typeFilter)
	switch len(matches) {
	case 0:
		return Match{}, ErrNoMatch
	case 1:
		return matches[0], nil
	default:
		names := make([]string, 0, len(matches))
		for _, m := range matches {
			names = append(names, m.Connector.TypeName())
		}
		return Match{}, fmt.Errorf("%w: %v; select one with --connector", ErrAmbiguous, names)
	}
}
