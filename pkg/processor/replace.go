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
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ReplaceName is the registry name of the replace processor.
const ReplaceName = "replace"

func init() {
	Register(ReplaceName, newReplaceFromArgs)
}

// ReplacementRule swaps From for To in files matching Files.
type ReplacementRule struct {
	From string
	To   string
	// Files is a doublestar pattern; empty matches every file
	Files string
}

// ✂️ Replace applies literal replacement rules in order before translation
// and undoes them in reverse order after. Postprocess only restores text
// exactly when To never occurs in the original file.
type Replace struct {
	rules  []ReplacementRule
	logger *zerolog.Logger
}

var _ Processor = (*Replace)(nil)

// NewReplace validates rules and builds the processor.
func NewReplace(rules []ReplacementRule, logger *zerolog.Logger) (*Replace, error) {
	for i, r := range rules {
		if r.From == "" {
			return nil, errors.Errorf("rule %d: from is required", i)
		}
		if r.To == "" {
			return nil, errors.Errorf("rule %d: to is required", i)
		}
		if r.Files != "" && !doublestar.ValidatePattern(r.Files) {
			return nil, errors.Errorf("rule %d: invalid files pattern %q", i, r.Files)
		}
	}
	return &Replace{rules: rules, logger: logger}, nil
}

// newReplaceFromArgs reads `rules: [{from, to, files}]`.
func newReplaceFromArgs(ctx context.Context, args Args) (Processor, error) {
	raw, ok := args["rules"]
	if !ok {
		return nil, errors.New("rules is required")
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, errors.Errorf("rules must be a list, got %T", raw)
	}

	rules := make([]ReplacementRule, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errors.Errorf("rules[%d] must be a mapping, got %T", i, item)
		}
		a := Args(m)
		var r ReplacementRule
		var err error
		if r.From, err = a.String("from"); err != nil {
			return nil, errors.Errorf("rules[%d]: %w", i, err)
		}
		if r.To, err = a.String("to"); err != nil {
			return nil, errors.Errorf("rules[%d]: %w", i, err)
		}
		if r.Files, err = a.String("files"); err != nil {
			return nil, errors.Errorf("rules[%d]: %w", i, err)
		}
		rules = append(rules, r)
	}

	return NewReplace(rules, nil)
}

func (p *Replace) Name() string {
	return ReplaceName
}

func (p *Replace) log(ctx context.Context) *zerolog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return zerolog.Ctx(ctx)
}

func (p *Replace) matches(rule ReplacementRule, relPath string) bool {
	if rule.Files == "" {
		return true
	}
	ok, _ := doublestar.Match(rule.Files, relPath)
	return ok
}

func (p *Replace) Preprocess(ctx context.Context, relPath string, text string) (string, error) {
	count := 0
	for _, r := range p.rules {
		if !p.matches(r, relPath) {
			continue
		}
		count += strings.Count(text, r.From)
		text = strings.ReplaceAll(text, r.From, r.To)
	}
	p.log(ctx).Debug().Str("file", relPath).Int("replacements", count).Msg("applied replacements")
	return text, nil
}

func (p *Replace) Postprocess(ctx context.Context, relPath string, text string) (string, error) {
	count := 0
	for i := len(p.rules) - 1; i >= 0; i-- {
		r := p.rules[i]
		if !p.matches(r, relPath) {
			continue
		}
		count += strings.Count(text, r.To)
		text = strings.ReplaceAll(text, r.To, r.From)
	}
	p.log(ctx).Debug().Str("file", relPath).Int("replacements", count).Msg("reverted replacements")
	return text, nil
}
