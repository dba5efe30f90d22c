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

package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplace(t *testing.T) {
	ctx := testContext(t)

	p, err := NewReplace([]ReplacementRule{
		{From: "SEL ", To: "SELECT "},
		{From: "@env", To: "prod", Files: "etl/**/*.sql"},
	}, nil)
	require.NoError(t, err)

	tests := []struct {
		name     string
		path     string
		input    string
		expanded string
	}{
		{
			name:     "rule_for_every_file",
			path:     "a.sql",
			input:    "SEL x FROM t_@env;",
			expanded: "SELECT x FROM t_@env;",
		},
		{
			name:     "scoped_rule_applies",
			path:     "etl/daily/load.sql",
			input:    "SEL x FROM t_@env;",
			expanded: "SELECT x FROM t_prod;",
		},
		{
			name:     "nothing_to_replace",
			path:     "etl/b.sql",
			input:    "select 1;",
			expanded: "select 1;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Preprocess(ctx, tt.path, tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expanded, out)

			back, err := p.Postprocess(ctx, tt.path, out)
			require.NoError(t, err)
			assert.Equal(t, tt.input, back)
		})
	}
}

func TestNewReplaceFromArgs(t *testing.T) {
	ctx := testContext(t)

	tests := []struct {
		name      string
		args      Args
		wantError string
	}{
		{
			name: "valid_rules",
			args: Args{"rules": []any{
				map[string]any{"from": "a", "to": "b"},
				map[string]any{"from": "c", "to": "d", "files": "**/*.sql"},
			}},
		},
		{
			name:      "missing_rules",
			args:      Args{},
			wantError: "rules is required",
		},
		{
			name:      "rules_not_a_list",
			args:      Args{"rules": "a=b"},
			wantError: "rules must be a list",
		},
		{
			name:      "rule_not_a_mapping",
			args:      Args{"rules": []any{"a"}},
			wantError: "rules[0] must be a mapping",
		},
		{
			name:      "missing_from",
			args:      Args{"rules": []any{map[string]any{"to": "b"}}},
			wantError: "from is required",
		},
		{
			name:      "missing_to",
			args:      Args{"rules": []any{map[string]any{"from": "a"}}},
			wantError: "to is required",
		},
		{
			name:      "non_string_value",
			args:      Args{"rules": []any{map[string]any{"from": 1, "to": "b"}}},
			wantError: `argument "from" must be a string`,
		},
		{
			name:      "bad_pattern",
			args:      Args{"rules": []any{map[string]any{"from": "a", "to": "b", "files": "[a"}}},
			wantError: "invalid files pattern",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(ctx, ReplaceName, tt.args)
			if tt.wantError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, ReplaceName, p.Name())
		})
	}
}
