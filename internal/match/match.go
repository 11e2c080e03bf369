// Package match evaluates single lines of output against ordered sets of
// regular expressions.
package match

import (
	"fmt"
	"regexp"
	"strings"
)

// MatchEverything is the expression of the implicit match-all pattern
const MatchEverything = ".*"

// PatternError is returned by Compile for an expression which is not a valid
// regular expression.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid regular expression %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

type pattern struct {
	id string
	rx *regexp.Regexp
}

// Set is an ordered collection of compiled patterns. The source text of each
// expression is its identifier, so identical expressions collapse into one.
// A nil *Set is a valid empty set.
type Set struct {
	patterns []pattern
}

// Compile compiles all expressions eagerly. Duplicates keep the position of
// their first occurrence.
func Compile(exprs []string) (*Set, error) {
	seen := make(map[string]struct{}, len(exprs))
	s := &Set{patterns: make([]pattern, 0, len(exprs))}
	for _, expr := range exprs {
		if _, ok := seen[expr]; ok {
			continue
		}
		rx, err := regexp.Compile(expr)
		if err != nil {
			return nil, &PatternError{Pattern: expr, Err: err}
		}
		seen[expr] = struct{}{}
		s.patterns = append(s.patterns, pattern{id: expr, rx: rx})
	}
	return s, nil
}

// MustCompile is like Compile but panics on an invalid expression.
func MustCompile(exprs ...string) *Set {
	s, err := Compile(exprs)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of patterns in the set
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.patterns)
}

// IDs returns pattern identifiers in set order.
func (s *Set) IDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, len(s.patterns))
	for i, p := range s.patterns {
		ids[i] = p.id
	}
	return ids
}

// Match reports whether any pattern matched the line and returns the
// identifiers of all matching patterns in set order.
func (s *Set) Match(line string) (bool, []string) {
	ids := s.matched(line)
	return len(ids) > 0, ids
}

// MatchAll reports whether every pattern of a non-empty set matched the line.
// The matched subset is returned either way.
func (s *Set) MatchAll(line string) (bool, []string) {
	ids := s.matched(line)
	return s.Len() > 0 && len(ids) == s.Len(), ids
}

func (s *Set) matched(line string) []string {
	if s == nil {
		return nil
	}
	line = trimEOL(line)
	var ids []string
	for _, p := range s.patterns {
		if p.rx.MatchString(line) {
			ids = append(ids, p.id)
		}
	}
	return ids
}

func trimEOL(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}
