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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func mustTable(t *testing.T, m Map) *Table {
	t.Helper()
	tbl, err := New(m)
	require.NoError(t, err)
	return tbl
}

func TestTable_Expand(t *testing.T) {
	tbl := mustTable(t, Map{
		{Glob: "*.sql", Macros: []Macro{
			{Token: "${foo}", Replacement: "1"},
			{Token: "${bar}", Replacement: "two"},
		}},
		{Glob: "reports/*", Macros: []Macro{
			{Token: "$DB", Replacement: "prod_db"},
		}},
	})

	tests := []struct {
		name string
		path string
		text string
		want string
	}{
		{
			name: "single_token",
			path: "a.sql",
			text: "select ${foo};",
			want: "select 1;",
		},
		{
			name: "multiple_tokens",
			path: "a.sql",
			text: "select ${foo}, ${bar}, ${foo};",
			want: "select 1, two, 1;",
		},
		{
			name: "glob_star_crosses_directories",
			path: "nested/dir/a.sql",
			text: "${foo}",
			want: "1",
		},
		{
			name: "two_scopes_union",
			path: "reports/daily.sql",
			text: "select ${foo} from $DB.t;",
			want: "select 1 from prod_db.t;",
		},
		{
			name: "token_not_scoped_to_csv",
			path: "data.csv",
			text: "${foo},${bar}",
			want: "${foo},${bar}",
		},
		{
			name: "regex_metacharacters_are_literal",
			path: "a.sql",
			text: "${fooo} $foo {foo}",
			want: "${fooo} $foo {foo}",
		},
		{
			name: "empty_text",
			path: "a.sql",
			text: "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tbl.Expand(tt.path, tt.text))
		})
	}
}

func TestTable_RoundTrip(t *testing.T) {
	tbl := mustTable(t, Map{
		{Glob: "*.sql", Macros: []Macro{
			{Token: "${foo}", Replacement: "1"},
			{Token: "${env}", Replacement: "production"},
			{Token: "%%schema%%", Replacement: "analytics"},
		}},
	})

	texts := []string{
		"select ${foo};",
		"insert into %%schema%%.t select * from ${env}.src where id = ${foo};",
		"no macros at all",
		"${foo}${foo}${env}",
	}
	for _, text := range texts {
		expanded := tbl.Expand("q/a.sql", text)
		assert.Equal(t, text, tbl.Unexpand("q/a.sql", expanded), "round trip of %q", text)
	}
}

func TestTable_FirstMatchingScopeWins(t *testing.T) {
	tbl := mustTable(t, Map{
		{Glob: "*.sql", Macros: []Macro{{Token: "${x}", Replacement: "first"}}},
		{Glob: "a.*", Macros: []Macro{{Token: "${x}", Replacement: "second"}}},
	})

	assert.Equal(t, "first", tbl.Expand("a.sql", "${x}"))
	assert.Equal(t, "second", tbl.Expand("a.txt", "${x}"))

	sub := tbl.Compile("a.sql", DirectionExpand)
	assert.Equal(t, 1, sub.Len())
}

func TestTable_ReversedMap(t *testing.T) {
	tbl := mustTable(t, Map{
		{Glob: "*.sql", Macros: []Macro{
			{Token: "${a}", Replacement: "same"},
			{Token: "${b}", Replacement: "other"},
			{Token: "${c}", Replacement: "same"},
		}},
	})

	rev := tbl.Reversed()
	require.Len(t, rev, 1)
	assert.Equal(t, []Macro{
		{Token: "same", Replacement: "${c}"},
		{Token: "other", Replacement: "${b}"},
	}, rev[0].Macros)

	// lossy: ${a} cannot be recovered
	assert.Equal(t, "${c} ${b}", tbl.Unexpand("x.sql", tbl.Expand("x.sql", "${a} ${b}")))
}

func TestTable_OverlappingPrefixTokens(t *testing.T) {
	tbl := mustTable(t, Map{
		{Glob: "*", Macros: []Macro{
			{Token: "$a", Replacement: "short"},
			{Token: "$ab", Replacement: "long"},
		}},
	})

	// leftmost-first alternation: the earlier declared prefix shadows the longer token
	assert.Equal(t, "shortb", tbl.Expand("f", "$ab"))
}

func TestTable_NoMatchingScope(t *testing.T) {
	tbl := mustTable(t, Map{
		{Glob: "*.sql", Macros: []Macro{{Token: "${foo}", Replacement: "1"}}},
	})

	sub := tbl.Compile("readme.md", DirectionExpand)
	assert.Equal(t, 0, sub.Len())
	assert.Equal(t, "${foo}", sub.Apply("${foo}"))
}

func TestTable_EmptyReplacementSkippedOnUnexpand(t *testing.T) {
	tbl := mustTable(t, Map{
		{Glob: "*", Macros: []Macro{{Token: "${gone}", Replacement: ""}}},
	})

	assert.Equal(t, "select ;", tbl.Expand("a.sql", "select ${gone};"))
	assert.Equal(t, "select ;", tbl.Unexpand("a.sql", "select ;"))
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name      string
		m         Map
		wantError string
	}{
		{
			name:      "empty_token",
			m:         Map{{Glob: "*", Macros: []Macro{{Token: "", Replacement: "x"}}}},
			wantError: "empty macro token",
		},
		{
			name:      "duplicate_token",
			m:         Map{{Glob: "*", Macros: []Macro{{Token: "a", Replacement: "x"}, {Token: "a", Replacement: "y"}}}},
			wantError: "duplicate macro token",
		},
		{
			name:      "empty_glob",
			m:         Map{{Glob: "", Macros: []Macro{{Token: "a", Replacement: "x"}}}},
			wantError: "glob is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.m)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidMacros))
			assert.Contains(t, err.Error(), tt.wantError)
		})
	}
}

func TestNew_ReversedRangeGlob(t *testing.T) {
	table, err := New(Map{{Glob: "[z-a].sql", Macros: []Macro{{Token: "${a}", Replacement: "x"}}}})
	require.NoError(t, err)
	assert.Equal(t, "select ${a};", table.Expand("a.sql", "select ${a};"), "an empty range matches no file")
}

func TestSubstitution_InvalidUTF8IsKept(t *testing.T) {
	table, err := New(Map{{Glob: "*", Macros: []Macro{{Token: "\uFFFD", Replacement: "?"}}}})
	require.NoError(t, err)

	assert.Equal(t, "a\xffb", table.Expand("a.sql", "a\xffb"))
	assert.Equal(t, "a?b", table.Expand("a.sql", "a\uFFFDb"))
}

func TestMatchGlob(t *testing.T) {
	tests := []struct {
		glob string
		path string
		want bool
	}{
		{"*.sql", "a.sql", true},
		{"*.sql", "dir/a.sql", true},
		{"*.sql", "a.SQL", false},
		{"*.sql", "a.sql.bak", false},
		{"a?.sql", "ab.sql", true},
		{"a?.sql", "a.sql", false},
		{"[ab].sql", "b.sql", true},
		{"[!ab].sql", "b.sql", false},
		{"[!ab].sql", "c.sql", true},
		{"[a-c]x", "bx", true},
		{"[]]x", "]x", true},
		{"[z-a].sql", "a.sql", false},
		{"[z-a].sql", "z.sql", false},
		{"[!z-a].sql", "a.sql", true},
		{"[z-ab].sql", "b.sql", true},
		{"[a-c-e]x", "-x", true},
		{"[\\]x", "\\x", true},
		{"[x", "[x", true},
		{"dir/*", "dir/sub/file", true},
		{"*", "", true},
		{"a.b", "axb", false},
	}

	for _, tt := range tests {
		t.Run(tt.glob+"_"+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchGlob(tt.glob, tt.path))
		})
	}
}
