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

// Package pipeline runs every file under an input directory through a chain
// of processors on the way to remote storage, and back again.
package pipeline

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/walteh/sqlbatch/pkg/log"
	"github.com/walteh/sqlbatch/pkg/processor"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"
)

// ErrLayout is returned when the pipeline directories overlap.
var ErrLayout = errors.Base("invalid directory layout")

// 🔀 Stage names a pipeline direction
type Stage string

const (
	StagePreprocess  Stage = "preprocess"
	StagePostprocess Stage = "postprocess"
)

const (
	uploadDir   = "upload"
	downloadDir = "download"
)

// ⚙️ Options configures a Pipeline
type Options struct {
	// Processors run in this order before upload and in reverse after download.
	Processors []processor.Processor
	// Remote is appended to the chain as the last processor.
	Remote *processor.RemoteStorage

	InputDir  string
	OutputDir string
	// StagingDir defaults to a .tmp directory next to InputDir.
	StagingDir string
	// IntermediateDir enables per-step snapshots when set.
	IntermediateDir string
	// Exclude holds doublestar patterns matched against slash-separated
	// paths relative to InputDir.
	Exclude []string
	CleanUp bool
	// Workers defaults to GOMAXPROCS.
	Workers int

	Logger  *zerolog.Logger
	Console *log.Logger
}

// 🏭 Pipeline moves files between the local project and remote storage
type Pipeline struct {
	opts  Options
	chain []processor.Processor
}

// 🏭 New validates opts and fills in defaults
func New(opts Options) (*Pipeline, error) {
	if opts.Remote == nil {
		return nil, errors.New("remote storage processor is required")
	}
	if opts.InputDir == "" {
		return nil, errors.New("input directory is required")
	}
	if opts.OutputDir == "" {
		return nil, errors.New("output directory is required")
	}

	for _, pattern := range opts.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return nil, errors.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	if opts.StagingDir == "" {
		abs, err := filepath.Abs(opts.InputDir)
		if err != nil {
			return nil, errors.Errorf("resolving input directory: %w", err)
		}
		opts.StagingDir = filepath.Join(filepath.Dir(abs), ".tmp")
	}

	if err := checkLayout(opts); err != nil {
		return nil, err
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}

	chain := make([]processor.Processor, 0, len(opts.Processors)+1)
	chain = append(chain, opts.Processors...)
	chain = append(chain, opts.Remote)

	return &Pipeline{opts: opts, chain: chain}, nil
}

// Overlaps reports whether a and b are the same directory or one contains
// the other. Both must be absolute and clean.
func Overlaps(a, b string) bool {
	sep := string(filepath.Separator)
	return a == b || strings.HasPrefix(a+sep, b+sep) || strings.HasPrefix(b+sep, a+sep)
}

// checkLayout rejects directory layouts where clearing one directory would
// remove another. Output and the intermediate directory are cleared, staging
// is removed on cleanup.
func checkLayout(opts Options) error {
	dirs := map[string]string{
		"input":   opts.InputDir,
		"output":  opts.OutputDir,
		"staging": opts.StagingDir,
	}
	if opts.IntermediateDir != "" {
		dirs["intermediate"] = opts.IntermediateDir
	}

	abs := make(map[string]string, len(dirs))
	for name, dir := range dirs {
		a, err := filepath.Abs(dir)
		if err != nil {
			return errors.Errorf("resolving %s directory: %w", name, err)
		}
		abs[name] = a
	}

	pairs := [][2]string{
		{"output", "input"},
		{"staging", "input"},
		{"staging", "output"},
		{"intermediate", "input"},
		{"intermediate", "output"},
		{"intermediate", "staging"},
	}
	for _, pair := range pairs {
		a, okA := abs[pair[0]]
		b, okB := abs[pair[1]]
		if okA && okB && Overlaps(a, b) {
			return errors.Errorf("%w: %s directory %s overlaps %s directory %s", ErrLayout, pair[0], a, pair[1], b)
		}
	}
	return nil
}

// Chain returns the processors in preprocess order.
func (p *Pipeline) Chain() []processor.Processor {
	out := make([]processor.Processor, len(p.chain))
	copy(out, p.chain)
	return out
}

// UploadStagingDir holds a copy of everything sent to remote storage.
func (p *Pipeline) UploadStagingDir() string {
	return filepath.Join(p.opts.StagingDir, uploadDir)
}

// DownloadStagingDir holds a copy of everything fetched from remote storage.
func (p *Pipeline) DownloadStagingDir() string {
	return filepath.Join(p.opts.StagingDir, downloadDir)
}

func (p *Pipeline) log(ctx context.Context) *zerolog.Logger {
	if p.opts.Logger != nil {
		return p.opts.Logger
	}
	return zerolog.Ctx(ctx)
}

func (p *Pipeline) names() []string {
	names := make([]string, len(p.chain))
	for i, proc := range p.chain {
		names[i] = proc.Name()
	}
	return names
}

func (p *Pipeline) report(ctx context.Context, op log.FileOperation) {
	if p.opts.Console != nil {
		p.opts.Console.LogFileOperation(ctx, op)
	}
}

// excluded reports whether rel matches one of the exclude patterns
func (p *Pipeline) excluded(ctx context.Context, rel string) bool {
	for _, pattern := range p.opts.Exclude {
		matched, err := doublestar.Match(pattern, rel)
		if err != nil {
			p.log(ctx).Debug().Str("pattern", pattern).Str("path", rel).Err(err).Msg("error matching pattern")
			continue
		}
		if matched {
			p.log(ctx).Debug().Str("file", rel).Str("pattern", pattern).Msg("file excluded by pattern")
			return true
		}
	}
	return false
}

type task struct {
	rel   string
	class Class
}

type fileError struct {
	rel string
	err error
}

// dispatch runs fn for every task on the worker pool. Every task runs to
// completion; failures are joined in path order.
func (p *Pipeline) dispatch(ctx context.Context, stage Stage, tasks []task, fn func(ctx context.Context, t task) error) error {
	var (
		mu       sync.Mutex
		failures []fileError
	)

	g := &errgroup.Group{}
	g.SetLimit(p.opts.Workers)

	for _, t := range tasks {
		t := t
		g.Go(func() error {
			if err := fn(ctx, t); err != nil {
				p.report(ctx, log.FileOperation{
					Path:   t.rel,
					Stage:  string(stage),
					Kind:   log.KindFailed,
					Status: "error",
					Err:    err,
				})
				mu.Lock()
				failures = append(failures, fileError{rel: t.rel, err: err})
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(failures) == 0 {
		return nil
	}

	sort.Slice(failures, func(i, j int) bool { return failures[i].rel < failures[j].rel })
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = errors.Errorf("%s: %w", f.rel, f.err)
	}

	p.log(ctx).Error().Str("stage", string(stage)).Int("failed", len(failures)).Int("total", len(tasks)).Msg("pipeline pass failed")
	if p.opts.Console != nil {
		p.opts.Console.Errorf("%s failed for %d of %d files", stage, len(failures), len(tasks))
	}
	return errors.Errorf("%s failed for %d of %d files: %w", stage, len(failures), len(tasks), errors.Join(errs...))
}

// 📤 Preprocess runs every file under InputDir through the chain. The last
// processor uploads, so the remote input prefix is complete on success.
func (p *Pipeline) Preprocess(ctx context.Context) error {
	tasks, err := p.collect(ctx)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(p.UploadStagingDir()); err != nil {
		return errors.Errorf("clearing upload staging: %w", err)
	}

	if p.opts.IntermediateDir != "" {
		p.log(ctx).Info().Str("dir", p.opts.IntermediateDir).Msg("clearing intermediate directory")
		if err := os.RemoveAll(p.opts.IntermediateDir); err != nil {
			return errors.Errorf("clearing intermediate directory: %w", err)
		}
	}

	if p.opts.Console != nil {
		p.opts.Console.StartRun(ctx, log.RunOperation{
			Stage:      string(StagePreprocess),
			Source:     p.opts.InputDir,
			Target:     p.opts.Remote.Location().InputURI(),
			Processors: p.names(),
		})
		defer p.opts.Console.EndRun(ctx)
	}

	return p.dispatch(ctx, StagePreprocess, p.skipIgnored(ctx, StagePreprocess, tasks), p.preprocessFile)
}

// collect walks InputDir and classifies every file it finds.
func (p *Pipeline) collect(ctx context.Context) ([]task, error) {
	info, err := os.Stat(p.opts.InputDir)
	if err != nil {
		return nil, errors.Errorf("reading input directory: %w", err)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("input %s is not a directory", p.opts.InputDir)
	}

	var tasks []task
	err = filepath.WalkDir(p.opts.InputDir, func(abs string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(p.opts.InputDir, abs)
		if err != nil {
			return errors.Errorf("relativizing %s: %w", abs, err)
		}
		rel = filepath.ToSlash(rel)

		class := Classify(d.Name(), d.Type())
		if class != ClassIgnored && p.excluded(ctx, rel) {
			class = ClassIgnored
		}
		tasks = append(tasks, task{rel: rel, class: class})
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("walking input directory: %w", err)
	}

	return tasks, nil
}

// skipIgnored reports ignored files and returns the rest. Ignored files
// never reach a worker.
func (p *Pipeline) skipIgnored(ctx context.Context, stage Stage, tasks []task) []task {
	kept := tasks[:0]
	for _, t := range tasks {
		if t.class != ClassIgnored {
			kept = append(kept, t)
			continue
		}
		p.log(ctx).Debug().Str("file", t.rel).Str("stage", string(stage)).Msg("ignoring file")
		p.report(ctx, log.FileOperation{Path: t.rel, Stage: string(stage), Kind: log.KindIgnored})
	}
	return kept
}

func (p *Pipeline) preprocessFile(ctx context.Context, t task) error {
	data, err := os.ReadFile(filepath.Join(p.opts.InputDir, filepath.FromSlash(t.rel)))
	if err != nil {
		return errors.Errorf("reading file: %w", err)
	}

	if t.class == ClassPassThrough {
		if err := writeFile(p.UploadStagingDir(), t.rel, data); err != nil {
			return err
		}
		if err := p.opts.Remote.UploadRaw(ctx, t.rel, data); err != nil {
			return err
		}
		p.report(ctx, log.FileOperation{Path: t.rel, Stage: string(StagePreprocess), Kind: log.KindCopied})
		return nil
	}

	text := string(data)
	for _, proc := range p.chain {
		out, err := proc.Preprocess(ctx, t.rel, text)
		if err != nil {
			return errors.Errorf("%s: %w", proc.Name(), err)
		}
		p.snapshot(ctx, proc.Name(), StagePreprocess, t.rel, text, out)
		text = out
	}

	if err := writeFile(p.UploadStagingDir(), t.rel, []byte(text)); err != nil {
		return err
	}

	p.report(ctx, log.FileOperation{Path: t.rel, Stage: string(StagePreprocess), Kind: log.KindProcessed})
	return nil
}

// 📥 Postprocess fetches every translated object, runs processable ones
// through the chain in reverse and writes the results under OutputDir.
func (p *Pipeline) Postprocess(ctx context.Context) error {
	rels, err := p.opts.Remote.ListOutputs(ctx)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
		return errors.Errorf("creating output directory: %w", err)
	}

	tasks := make([]task, 0, len(rels))
	for _, rel := range rels {
		tasks = append(tasks, task{rel: rel, class: ClassifyName(rel)})
	}

	if p.opts.Console != nil {
		p.opts.Console.StartRun(ctx, log.RunOperation{
			Stage:      string(StagePostprocess),
			Source:     p.opts.Remote.Location().OutputURI(),
			Target:     p.opts.OutputDir,
			Processors: reversed(p.names()),
		})
		defer p.opts.Console.EndRun(ctx)
	}

	runErr := p.dispatch(ctx, StagePostprocess, p.skipIgnored(ctx, StagePostprocess, tasks), p.postprocessFile)

	if p.opts.CleanUp {
		if err := os.RemoveAll(p.opts.StagingDir); err != nil {
			p.log(ctx).Warn().Err(err).Str("dir", p.opts.StagingDir).Msg("failed to remove staging directory")
		} else {
			p.log(ctx).Debug().Str("dir", p.opts.StagingDir).Msg("removed staging directory")
		}
	}

	return runErr
}

func (p *Pipeline) postprocessFile(ctx context.Context, t task) error {
	if t.class == ClassPassThrough {
		data, err := p.opts.Remote.DownloadRaw(ctx, t.rel)
		if err != nil {
			return err
		}
		if err := writeFile(p.DownloadStagingDir(), t.rel, data); err != nil {
			return err
		}
		if err := writeFile(p.opts.OutputDir, t.rel, data); err != nil {
			return err
		}
		p.report(ctx, log.FileOperation{Path: t.rel, Stage: string(StagePostprocess), Kind: log.KindCopied})
		return nil
	}

	text := ""
	for i := len(p.chain) - 1; i >= 0; i-- {
		proc := p.chain[i]
		out, err := proc.Postprocess(ctx, t.rel, text)
		if err != nil {
			return errors.Errorf("%s: %w", proc.Name(), err)
		}
		if proc == processor.Processor(p.opts.Remote) {
			if err := writeFile(p.DownloadStagingDir(), t.rel, []byte(out)); err != nil {
				return err
			}
		}
		p.snapshot(ctx, proc.Name(), StagePostprocess, t.rel, text, out)
		text = out
	}

	if err := writeFile(p.opts.OutputDir, t.rel, []byte(text)); err != nil {
		return err
	}

	p.report(ctx, log.FileOperation{Path: t.rel, Stage: string(StagePostprocess), Kind: log.KindProcessed})
	return nil
}

func writeFile(root, rel string, data []byte) error {
	dest := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return errors.Errorf("creating directory for %s: %w", dest, err)
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return errors.Errorf("writing %s: %w", dest, err)
	}
	return nil
}

func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}
