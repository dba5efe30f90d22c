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
	"bytes"
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

const macrosKey = "macros"

// 🎯 Load reads a macro mapping file and builds its table.
func Load(ctx context.Context, path string) (*Table, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("parsing macros file")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading macros file: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, errors.Errorf("parsing macros file %s: %w", path, err)
	}

	t, err := New(m)
	if err != nil {
		return nil, errors.Errorf("building macro table from %s: %w", path, err)
	}

	logger.Info().Str("path", path).Int("scopes", len(m)).Msg("finished parsing macros file")
	return t, nil
}

// Parse decodes `macros: {glob: {token: replacement}}`, keeping the
// declaration order of globs and tokens.
func Parse(data []byte) (Map, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.Errorf("%w: file is empty", ErrInvalidMacros)
		}
		return nil, errors.Errorf("%w: %s", ErrInvalidMacros, err.Error())
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, errors.Errorf("%w: top level must be a mapping", ErrInvalidMacros)
	}

	var macros *yaml.Node
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		if key != macrosKey {
			return nil, errors.Errorf("%w: line %d: unknown field %q", ErrInvalidMacros, root.Content[i].Line, key)
		}
		macros = root.Content[i+1]
	}
	if macros == nil {
		return nil, errors.Errorf("%w: missing required field %q", ErrInvalidMacros, macrosKey)
	}
	return decodeScopes(macros)
}

func decodeScopes(node *yaml.Node) (Map, error) {
	if node.Kind != yaml.MappingNode {
		return nil, errors.Errorf("%w: line %d: %q must be a mapping of glob to macros", ErrInvalidMacros, node.Line, macrosKey)
	}

	m := make(Map, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		globNode, body := node.Content[i], node.Content[i+1]
		if body.Kind != yaml.MappingNode {
			return nil, errors.Errorf("%w: line %d: macros for %q must be a mapping", ErrInvalidMacros, body.Line, globNode.Value)
		}

		scope := Scope{Glob: globNode.Value}
		for j := 0; j+1 < len(body.Content); j += 2 {
			k, v := body.Content[j], body.Content[j+1]
			if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode || v.Tag == "!!null" {
				return nil, errors.Errorf("%w: line %d: macro %q under %q must map a string to a string", ErrInvalidMacros, k.Line, k.Value, scope.Glob)
			}
			scope.Macros = append(scope.Macros, Macro{Token: k.Value, Replacement: v.Value})
		}
		m = append(m, scope)
	}
	return m, nil
}
