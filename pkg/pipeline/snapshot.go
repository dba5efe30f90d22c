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

package pipeline

import (
	"context"
	"os"
	"path/filepath"

	"github.com/sergi/go-diff/diffmatchpatch"
	"gitlab.com/tozd/go/errors"
)

// 📸 snapshot records the text a processor produced for rel. Failures are
// logged and swallowed so debugging output never changes a run's result.
func (p *Pipeline) snapshot(ctx context.Context, proc string, stage Stage, rel, before, after string) {
	if p.opts.IntermediateDir == "" {
		return
	}

	if err := writeSnapshot(p.opts.IntermediateDir, proc, stage, rel, before, after); err != nil {
		p.log(ctx).Warn().Err(err).
			Str("processor", proc).
			Str("stage", string(stage)).
			Str("file", rel).
			Msg("failed to write intermediate snapshot")
	}
}

func writeSnapshot(dir, proc string, stage Stage, rel, before, after string) error {
	dest := filepath.Join(dir, proc, string(stage), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Errorf("creating snapshot directory: %w", err)
	}
	if err := os.WriteFile(dest, []byte(after), 0o644); err != nil {
		return errors.Errorf("writing snapshot: %w", err)
	}

	if before == after {
		return nil
	}

	dmp := diffmatchpatch.New()
	patches := dmp.PatchMake(before, after)
	if err := os.WriteFile(dest+".diff", []byte(dmp.PatchToText(patches)), 0o644); err != nil {
		return errors.Errorf("writing snapshot diff: %w", err)
	}
	return nil
}
