// Package filter compiles the configured glob patterns once per run and
// restricts enumeration snapshots to the pipes they match.
package filter

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/pipewatch/pipewatch/internal/pipes"
)

type compiled struct {
	raw string
	g   glob.Glob
}

// Set is an ordered list of compiled patterns. Matching is case-insensitive
// and a name passes when any pattern matches (union semantics).
type Set struct {
	patterns []compiled
}

// Compile lowercases and compiles each pattern. An empty list compiles to the
// match-everything set.
func Compile(patterns []string) (*Set, error) {
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}

	s := &Set{patterns: make([]compiled, 0, len(patterns))}
	for _, raw := range patterns {
		g, err := glob.Compile(strings.ToLower(raw))
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", raw, err)
		}
		s.patterns = append(s.patterns, compiled{raw: raw, g: g})
	}
	return s, nil
}

// Match reports whether any pattern matches the name.
func (s *Set) Match(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range s.patterns {
		if p.g.Match(lower) {
			return true
		}
	}
	return false
}

// Apply builds the tick snapshot: pipe name → record, for every record whose
// name matches at least one pattern. Patterns are evaluated in configured
// order, so when several match the same name the record seen under the last
// pattern wins.
func (s *Set) Apply(infos []pipes.Info) map[string]pipes.Info {
	snap := make(map[string]pipes.Info)

	lowered := make([]string, len(infos))
	for i, info := range infos {
		lowered[i] = strings.ToLower(info.Name)
	}

	for _, p := range s.patterns {
		for i, info := range infos {
			if info.Name == "" {
				continue
			}
			if p.g.Match(lowered[i]) {
				snap[info.Name] = info
			}
		}
	}
	return snap
}

// Patterns returns the raw patterns as configured, for logging.
func (s *Set) Patterns() []string {
	raw := make([]string, len(s.patterns))
	for i, p := range s.patterns {
		raw[i] = p.raw
	}
	return raw
}
