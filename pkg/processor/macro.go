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
	"context"
	"sort"

	"github.com/rs/zerolog"
	"github.com/walteh/sqlbatch/pkg/macro"
	"gitlab.com/tozd/go/errors"
)

// MacroName is the registry name of the macro processor.
const MacroName = "macro"

func init() {
	Register(MacroName, newMacroFromArgs)
}

// 🔄 Macro expands macros before translation and reverts them after.
type Macro struct {
	table  *macro.Table
	logger *zerolog.Logger
}

var _ Processor = (*Macro)(nil)

// NewMacro wraps a macro table. A nil logger falls back to the context logger.
func NewMacro(table *macro.Table, logger *zerolog.Logger) *Macro {
	return &Macro{table: table, logger: logger}
}

// newMacroFromArgs accepts either `path: macros.yaml` or an inline
// `macros: {glob: {token: value}}` mapping.
func newMacroFromArgs(ctx context.Context, args Args) (Processor, error) {
	path, err := args.String("path")
	if err != nil {
		return nil, err
	}

	inline, hasInline := args["macros"]
	switch {
	case path != "" && hasInline:
		return nil, errors.Errorf("%w: set either path or macros, not both", macro.ErrInvalidMacros)
	case path != "":
		t, err := macro.Load(ctx, path)
		if err != nil {
			return nil, err
		}
		return NewMacro(t, nil), nil
	case hasInline:
		m, err := inlineMacros(inline)
		if err != nil {
			return nil, err
		}
		t, err := macro.New(m)
		if err != nil {
			return nil, err
		}
		return NewMacro(t, nil), nil
	default:
		return nil, errors.Errorf("%w: one of path or macros is required", macro.ErrInvalidMacros)
	}
}

// inlineMacros converts a decoded map. Go maps lose YAML order, so scopes
// and tokens are sorted to stay deterministic.
func inlineMacros(v any) (macro.Map, error) {
	scopes, ok := v.(map[string]any)
	if !ok {
		return nil, errors.Errorf("%w: macros must be a mapping, got %T", macro.ErrInvalidMacros, v)
	}

	globs := make([]string, 0, len(scopes))
	for g := range scopes {
		globs = append(globs, g)
	}
	sort.Strings(globs)

	m := make(macro.Map, 0, len(globs))
	for _, g := range globs {
		tokens, ok := scopes[g].(map[string]any)
		if !ok {
			return nil, errors.Errorf("%w: macros for %q must be a mapping", macro.ErrInvalidMacros, g)
		}
		keys := make([]string, 0, len(tokens))
		for k := range tokens {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		scope := macro.Scope{Glob: g}
		for _, k := range keys {
			s, ok := tokens[k].(string)
			if !ok {
				return nil, errors.Errorf("%w: macro %q under %q must be a string", macro.ErrInvalidMacros, k, g)
			}
			scope.Macros = append(scope.Macros, macro.Macro{Token: k, Replacement: s})
		}
		m = append(m, scope)
	}
	return m, nil
}

func (p *Macro) Name() string {
	return MacroName
}

func (p *Macro) log(ctx context.Context) *zerolog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return zerolog.Ctx(ctx)
}

func (p *Macro) Preprocess(ctx context.Context, relPath string, text string) (string, error) {
	sub := p.table.Compile(relPath, macro.DirectionExpand)
	p.log(ctx).Debug().Str("file", relPath).Int("macros", sub.Len()).Msg("expanding macros")
	return sub.Apply(text), nil
}

func (p *Macro) Postprocess(ctx context.Context, relPath string, text string) (string, error) {
	sub := p.table.Compile(relPath, macro.DirectionUnexpand)
	p.log(ctx).Debug().Str("file", relPath).Int("macros", sub.Len()).Msg("unexpanding macros")
	return sub.Apply(text), nil
}
