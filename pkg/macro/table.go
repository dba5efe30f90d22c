// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package macro

import (
	"regexp"
	"strings"

	"gitlab.com/tozd/go/errors"
)

// ErrInvalidMacros classifies every macro configuration failure.
var ErrInvalidMacros = errors.Base("invalid macro configuration")

// 🔁 Direction selects which side of a macro is searched for.
type Direction int

const (
	// DirectionExpand replaces tokens with their values.
	DirectionExpand Direction = iota
	// DirectionUnexpand replaces values with their tokens.
	DirectionUnexpand
)

func (d Direction) String() string {
	if d == DirectionUnexpand {
		return "unexpand"
	}
	return "expand"
}

// Macro is a single token and the text it stands for.
type Macro struct {
	Token       string
	Replacement string
}

// Scope is the set of macros that apply to paths matching Glob.
type Scope struct {
	Glob   string
	Macros []Macro
}

// Map is an ordered list of scopes. Order matters: when two matching scopes
// declare the same token, the earlier scope wins.
type Map []Scope

type compiledScope struct {
	glob   string
	match  *regexp.Regexp
	macros []Macro
}

// 📚 Table is an immutable, concurrency-safe macro substitution table.
type Table struct {
	forward []compiledScope
	reverse []compiledScope
}

// 🏭 New validates m and derives its reversed counterpart.
func New(m Map) (*Table, error) {
	t := &Table{}
	for i, scope := range m {
		if scope.Glob == "" {
			return nil, errors.Errorf("%w: scope %d: glob is required", ErrInvalidMacros, i)
		}

		seen := make(map[string]struct{}, len(scope.Macros))
		forward := make([]Macro, 0, len(scope.Macros))
		for _, mc := range scope.Macros {
			if mc.Token == "" {
				return nil, errors.Errorf("%w: scope %q: empty macro token", ErrInvalidMacros, scope.Glob)
			}
			if _, dup := seen[mc.Token]; dup {
				return nil, errors.Errorf("%w: scope %q: duplicate macro token %q", ErrInvalidMacros, scope.Glob, mc.Token)
			}
			seen[mc.Token] = struct{}{}
			forward = append(forward, mc)
		}

		match, err := compileGlob(scope.Glob)
		if err != nil {
			return nil, errors.Errorf("%w: scope %q: %s", ErrInvalidMacros, scope.Glob, err.Error())
		}
		t.forward = append(t.forward, compiledScope{glob: scope.Glob, match: match, macros: forward})
		t.reverse = append(t.reverse, compiledScope{glob: scope.Glob, match: match, macros: reverseMacros(forward)})
	}
	return t, nil
}

// reverseMacros swaps token and replacement. When two tokens share a
// replacement the later declaration wins, keeping the position of the first.
func reverseMacros(macros []Macro) []Macro {
	index := make(map[string]int, len(macros))
	out := make([]Macro, 0, len(macros))
	for _, mc := range macros {
		if i, ok := index[mc.Replacement]; ok {
			out[i].Replacement = mc.Token
			continue
		}
		index[mc.Replacement] = len(out)
		out = append(out, Macro{Token: mc.Replacement, Replacement: mc.Token})
	}
	return out
}

// Map returns the forward macro map in declaration order.
func (t *Table) Map() Map {
	return exportScopes(t.forward)
}

// Reversed returns the derived reversed macro map.
func (t *Table) Reversed() Map {
	return exportScopes(t.reverse)
}

func exportScopes(scopes []compiledScope) Map {
	out := make(Map, 0, len(scopes))
	for _, s := range scopes {
		macros := make([]Macro, len(s.macros))
		copy(macros, s.macros)
		out = append(out, Scope{Glob: s.glob, Macros: macros})
	}
	return out
}

// 🔍 Substitution is the compiled form of every macro that applies to one
// path in one direction.
type Substitution struct {
	lookup  map[string]string
	order   []string
	pattern *regexp.Regexp
}

// Compile merges every scope whose glob matches path. For a token declared by
// several matching scopes, the first scope wins.
func (t *Table) Compile(path string, dir Direction) *Substitution {
	scopes := t.forward
	if dir == DirectionUnexpand {
		scopes = t.reverse
	}

	sub := &Substitution{lookup: map[string]string{}}
	for _, s := range scopes {
		if !s.match.MatchString(path) {
			continue
		}
		for _, mc := range s.macros {
			// an empty needle can't be located, only happens on unexpand
			if mc.Token == "" {
				continue
			}
			escaped := regexp.QuoteMeta(mc.Token)
			if _, ok := sub.lookup[escaped]; ok {
				continue
			}
			sub.lookup[escaped] = mc.Replacement
			sub.order = append(sub.order, escaped)
		}
	}

	if len(sub.order) > 0 {
		sub.pattern = regexp.MustCompile(strings.Join(sub.order, "|"))
	}
	return sub
}

// Len is the number of distinct tokens in the substitution.
func (s *Substitution) Len() int {
	return len(s.order)
}

// Lookup returns the replacement for an escaped token.
func (s *Substitution) Lookup(escaped string) (string, bool) {
	v, ok := s.lookup[escaped]
	return v, ok
}

// Apply rewrites text in a single pass. Alternatives are tried in declaration
// order at each position, so a token that is a prefix of a later token
// shadows it.
func (s *Substitution) Apply(text string) string {
	if s.pattern == nil {
		return text
	}
	return s.pattern.ReplaceAllStringFunc(text, func(match string) string {
		if v, ok := s.lookup[regexp.QuoteMeta(match)]; ok {
			return v
		}
		// invalid UTF-8 in text can match a U+FFFD token without being it
		return match
	})
}

// Expand substitutes macro tokens with their values for path.
func (t *Table) Expand(path, text string) string {
	return t.Compile(path, DirectionExpand).Apply(text)
}

// Unexpand reverts values back to macro tokens for path.
func (t *Table) Unexpand(path, text string) string {
	return t.Compile(path, DirectionUnexpand).Apply(text)
}
