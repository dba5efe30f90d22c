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
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/walteh/sqlbatch/pkg/log"
	"github.com/walteh/sqlbatch/pkg/macro"
	"github.com/walteh/sqlbatch/pkg/processor"
	"github.com/walteh/sqlbatch/pkg/storage"
	"gitlab.com/tozd/go/errors"
)

func testContext(t *testing.T) context.Context {
	return zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background())
}

// project lays out files under a fresh <tmp>/input directory
func project(t *testing.T, files map[string]string) (input, output string) {
	t.Helper()
	root := t.TempDir()
	input = filepath.Join(root, "input")
	output = filepath.Join(root, "output")
	require.NoError(t, os.MkdirAll(input, 0o755))
	for name, content := range files {
		path := filepath.Join(input, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return input, output
}

// echo plays the translation service: every input object becomes an output
func echo(t *testing.T, ctx context.Context, loc storage.Location) {
	t.Helper()
	keys, err := loc.Bucket.List(ctx, loc.InputPrefix())
	require.NoError(t, err)
	for _, k := range keys {
		rel, ok := storage.Relative(loc.InputPrefix(), k)
		require.True(t, ok)
		data, err := loc.Bucket.Get(ctx, k)
		require.NoError(t, err)
		require.NoError(t, loc.Bucket.Put(ctx, loc.OutputKey(rel), data))
	}
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return out
	}
	require.NoError(t, filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	}))
	return out
}

func macroProcessor(t *testing.T, scopes macro.Map) processor.Processor {
	t.Helper()
	tbl, err := macro.New(scopes)
	require.NoError(t, err)
	return processor.NewMacro(tbl, nil)
}

// tagger appends its tag on the way in and the lower-cased tag on the way out
type tagger struct {
	tag string
}

func (p *tagger) Name() string { return "tagger_" + p.tag }

func (p *tagger) Preprocess(ctx context.Context, rel, text string) (string, error) {
	return text + p.tag, nil
}

func (p *tagger) Postprocess(ctx context.Context, rel, text string) (string, error) {
	return text + string(bytes.ToLower([]byte(p.tag))), nil
}

// failOn fails preprocessing for a single path
type failOn struct {
	rel string
}

func (p *failOn) Name() string { return "fail_on" }

func (p *failOn) Preprocess(ctx context.Context, rel, text string) (string, error) {
	if rel == p.rel {
		return "", errors.Errorf("refusing %s", rel)
	}
	return text, nil
}

func (p *failOn) Postprocess(ctx context.Context, rel, text string) (string, error) {
	return text, nil
}

type harness struct {
	pipe   *Pipeline
	loc    storage.Location
	input  string
	output string
}

func newHarness(t *testing.T, files map[string]string, mutate func(*Options)) *harness {
	t.Helper()
	input, output := project(t, files)
	loc := storage.NewLocation(storage.NewMemBucket("bkt"), time.Now())
	opts := Options{
		Remote:    processor.NewRemoteStorage(loc, nil),
		InputDir:  input,
		OutputDir: output,
		CleanUp:   true,
	}
	if mutate != nil {
		mutate(&opts)
	}
	p, err := New(opts)
	require.NoError(t, err)
	return &harness{pipe: p, loc: loc, input: input, output: output}
}

func (h *harness) roundTrip(t *testing.T, ctx context.Context) {
	t.Helper()
	require.NoError(t, h.pipe.Preprocess(ctx))
	echo(t, ctx, h.loc)
	require.NoError(t, h.pipe.Postprocess(ctx))
}

func TestPipeline_MacroScenario(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, map[string]string{"a.sql": "select ${foo};"}, func(o *Options) {
		o.Processors = []processor.Processor{
			macroProcessor(t, macro.Map{{Glob: "*.sql", Macros: []macro.Macro{{Token: "${foo}", Replacement: "1"}}}}),
		}
	})

	require.NoError(t, h.pipe.Preprocess(ctx))

	staged, err := h.loc.Bucket.Get(ctx, h.loc.InputKey("a.sql"))
	require.NoError(t, err)
	assert.Equal(t, "select 1;", string(staged), "remote input holds expanded text")

	local, err := os.ReadFile(filepath.Join(h.pipe.UploadStagingDir(), "a.sql"))
	require.NoError(t, err)
	assert.Equal(t, "select 1;", string(local), "upload staging mirrors remote input")

	echo(t, ctx, h.loc)
	require.NoError(t, h.pipe.Postprocess(ctx))

	assert.Equal(t, map[string]string{"a.sql": "select ${foo};"}, readTree(t, h.output))
}

func TestPipeline_ChainOrder(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, map[string]string{"q.sql": "x"}, func(o *Options) {
		o.Processors = []processor.Processor{&tagger{tag: "A"}, &tagger{tag: "B"}}
	})

	require.NoError(t, h.pipe.Preprocess(ctx))
	staged, err := h.loc.Bucket.Get(ctx, h.loc.InputKey("q.sql"))
	require.NoError(t, err)
	assert.Equal(t, "xAB", string(staged), "preprocess applies A then B")

	echo(t, ctx, h.loc)
	require.NoError(t, h.pipe.Postprocess(ctx))
	assert.Equal(t, "xABba", readTree(t, h.output)["q.sql"], "postprocess applies B then A")

	names := []string{}
	for _, p := range h.pipe.Chain() {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"tagger_A", "tagger_B", processor.RemoteStorageName}, names)
}

func TestPipeline_ConcurrencyIsolation(t *testing.T) {
	files := map[string]string{}
	for i := 0; i < 100; i++ {
		files[fmt.Sprintf("dir%d/file_%03d.sql", i%7, i)] = fmt.Sprintf("select %d from t_%d;", i, i)
	}

	tests := []struct {
		name    string
		workers int
	}{
		{name: "single_worker", workers: 1},
		{name: "many_workers", workers: 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testContext(t)
			h := newHarness(t, files, func(o *Options) {
				o.Workers = tt.workers
				o.Processors = []processor.Processor{macroProcessor(t, nil)}
			})

			h.roundTrip(t, ctx)

			assert.Equal(t, files, readTree(t, h.output))
		})
	}
}

func TestPipeline_HiddenFilesIgnored(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, map[string]string{
		".gitkeep":      "",
		"sub/.hidden":   "secret",
		"sub/query.sql": "select 1;",
	}, nil)

	h.roundTrip(t, ctx)

	assert.Equal(t, map[string]string{"sub/query.sql": "select 1;"}, readTree(t, h.output))

	keys, err := h.loc.Bucket.List(ctx, h.loc.InputPrefix())
	require.NoError(t, err)
	assert.Len(t, keys, 1, "hidden files are never uploaded")
}

func TestPipeline_PassThroughIsByteIdentical(t *testing.T) {
	ctx := testContext(t)
	blob := string([]byte{0x50, 0x4b, 0x03, 0x04, 0x00, 0xff, 0xfe, '$', '{', 'f', 'o', 'o', '}'})
	files := map[string]string{
		"data.csv":    "id,${foo}\n1,2\n",
		"meta.JSON":   `{"k": "${foo}"}`,
		"archive.zip": blob,
		"a.sql":       "select ${foo};",
	}
	h := newHarness(t, files, func(o *Options) {
		o.Processors = []processor.Processor{
			macroProcessor(t, macro.Map{{Glob: "*", Macros: []macro.Macro{{Token: "${foo}", Replacement: "1"}}}}),
			&tagger{tag: "T"},
		}
	})

	require.NoError(t, h.pipe.Preprocess(ctx))

	csv, err := h.loc.Bucket.Get(ctx, h.loc.InputKey("data.csv"))
	require.NoError(t, err)
	assert.Equal(t, files["data.csv"], string(csv), "pass-through upload skips the chain")

	echo(t, ctx, h.loc)
	require.NoError(t, h.pipe.Postprocess(ctx))

	out := readTree(t, h.output)
	assert.Equal(t, files["data.csv"], out["data.csv"])
	assert.Equal(t, files["meta.JSON"], out["meta.JSON"])
	assert.Equal(t, blob, out["archive.zip"])
	assert.Equal(t, "select ${foo};Tt", out["a.sql"])
}

func TestPipeline_GlobScoping(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, map[string]string{
		"a.sql": "${foo}",
		"a.txt": "${foo}",
	}, func(o *Options) {
		o.Processors = []processor.Processor{
			macroProcessor(t, macro.Map{{Glob: "*.sql", Macros: []macro.Macro{{Token: "${foo}", Replacement: "1"}}}}),
		}
	})

	require.NoError(t, h.pipe.Preprocess(ctx))

	sql, err := h.loc.Bucket.Get(ctx, h.loc.InputKey("a.sql"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(sql))

	txt, err := h.loc.Bucket.Get(ctx, h.loc.InputKey("a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "${foo}", string(txt), "token scoped to *.sql is left alone elsewhere")
}

func TestPipeline_Exclude(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, map[string]string{
		"keep.sql":        "select 1;",
		"vendor/skip.sql": "select 2;",
		"drafts/x.tmp":    "draft",
	}, func(o *Options) {
		o.Exclude = []string{"vendor/**", "**/*.tmp"}
	})

	h.roundTrip(t, ctx)

	assert.Equal(t, map[string]string{"keep.sql": "select 1;"}, readTree(t, h.output))
}

func TestPipeline_InvalidExclude(t *testing.T) {
	input, output := project(t, nil)
	_, err := New(Options{
		Remote:    processor.NewRemoteStorage(storage.NewLocation(storage.NewMemBucket("b"), time.Now()), nil),
		InputDir:  input,
		OutputDir: output,
		Exclude:   []string{"[unclosed"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid exclude pattern")
}

func TestPipeline_OverlappingDirectories(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(o *Options, root string)
		want   string
	}{
		{
			name:   "output_is_input",
			mutate: func(o *Options, root string) { o.OutputDir = o.InputDir },
			want:   "output directory",
		},
		{
			name:   "output_contains_input",
			mutate: func(o *Options, root string) { o.OutputDir = root },
			want:   "output directory",
		},
		{
			name:   "output_inside_input",
			mutate: func(o *Options, root string) { o.OutputDir = filepath.Join(o.InputDir, "out") },
			want:   "output directory",
		},
		{
			name:   "intermediate_is_input",
			mutate: func(o *Options, root string) { o.IntermediateDir = o.InputDir },
			want:   "intermediate directory",
		},
		{
			name:   "intermediate_inside_output",
			mutate: func(o *Options, root string) { o.IntermediateDir = filepath.Join(o.OutputDir, "debug") },
			want:   "intermediate directory",
		},
		{
			name:   "intermediate_is_staging",
			mutate: func(o *Options, root string) { o.IntermediateDir = filepath.Join(root, ".tmp") },
			want:   "intermediate directory",
		},
		{
			name:   "staging_is_input",
			mutate: func(o *Options, root string) { o.StagingDir = o.InputDir },
			want:   "staging directory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input, output := project(t, map[string]string{"a.sql": "select 1;"})
			opts := Options{
				Remote:    processor.NewRemoteStorage(storage.NewLocation(storage.NewMemBucket("b"), time.Now()), nil),
				InputDir:  input,
				OutputDir: output,
			}
			tt.mutate(&opts, filepath.Dir(input))

			_, err := New(opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrLayout))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPipeline_IntermediateClearedOnPreprocess(t *testing.T) {
	ctx := testContext(t)
	snapshots := filepath.Join(t.TempDir(), "intermediate")
	stale := filepath.Join(snapshots, "macro", "preprocess", "old.sql")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	h := newHarness(t, map[string]string{"a.sql": "select 1;"}, func(o *Options) {
		o.IntermediateDir = snapshots
	})

	_, err := os.Stat(stale)
	require.NoError(t, err, "building the pipeline deletes nothing")

	require.NoError(t, h.pipe.Preprocess(ctx))
	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "previous snapshots are cleared")
	assert.Contains(t, readTree(t, snapshots), "remote_storage/preprocess/a.sql")
}

func TestOverlaps(t *testing.T) {
	sep := string(filepath.Separator)
	root := sep + "work"
	assert.True(t, Overlaps(root, root))
	assert.True(t, Overlaps(root, root+sep+"input"))
	assert.True(t, Overlaps(root+sep+"input", root))
	assert.False(t, Overlaps(root+sep+"input", root+sep+"input2"))
	assert.False(t, Overlaps(root+sep+"input", root+sep+"output"))
}

func TestPipeline_FailuresAreCollected(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, map[string]string{
		"b.sql": "select 2;",
		"a.sql": "select 1;",
		"c.sql": "select 3;",
	}, func(o *Options) {
		o.Processors = []processor.Processor{&failOn{rel: "b.sql"}}
	})

	err := h.pipe.Preprocess(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed for 1 of 3 files")
	assert.Contains(t, err.Error(), "b.sql")

	for _, rel := range []string{"a.sql", "c.sql"} {
		_, err := h.loc.Bucket.Get(ctx, h.loc.InputKey(rel))
		assert.NoError(t, err, "%s still uploaded", rel)
	}
}

func TestPipeline_OutputComesFromRemote(t *testing.T) {
	ctx := testContext(t)
	h := newHarness(t, map[string]string{"a.sql": "select 1;"}, nil)

	require.NoError(t, h.pipe.Preprocess(ctx))
	require.NoError(t, h.loc.Bucket.Put(ctx, h.loc.OutputKey("a.sql"), []byte("SELECT 1;")))
	require.NoError(t, h.pipe.Postprocess(ctx))
	assert.Equal(t, "SELECT 1;", readTree(t, h.output)["a.sql"])
}

func TestPipeline_Snapshots(t *testing.T) {
	ctx := testContext(t)
	snapshots := filepath.Join(t.TempDir(), "intermediate")
	h := newHarness(t, map[string]string{"dir/a.sql": "select ${foo};"}, func(o *Options) {
		o.IntermediateDir = snapshots
		o.Processors = []processor.Processor{
			macroProcessor(t, macro.Map{{Glob: "*.sql", Macros: []macro.Macro{{Token: "${foo}", Replacement: "1"}}}}),
		}
	})

	h.roundTrip(t, ctx)

	tree := readTree(t, snapshots)
	assert.Equal(t, "select 1;", tree["macro/preprocess/dir/a.sql"])
	assert.Contains(t, tree, "macro/preprocess/dir/a.sql.diff")
	assert.Equal(t, "select 1;", tree["remote_storage/preprocess/dir/a.sql"])
	assert.NotContains(t, tree, "remote_storage/preprocess/dir/a.sql.diff", "unchanged text has no diff")
	assert.Equal(t, "select 1;", tree["remote_storage/postprocess/dir/a.sql"])
	assert.Equal(t, "select ${foo};", tree["macro/postprocess/dir/a.sql"])

	assert.Equal(t, "select ${foo};", readTree(t, h.output)["dir/a.sql"], "snapshots do not change output")
}

func TestPipeline_Cleanup(t *testing.T) {
	tests := []struct {
		name      string
		cleanUp   bool
		wantStage bool
	}{
		{name: "clean_up_enabled", cleanUp: true, wantStage: false},
		{name: "clean_up_disabled", cleanUp: false, wantStage: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := testContext(t)
			h := newHarness(t, map[string]string{"a.sql": "select 1;", "r.csv": "a,b"}, func(o *Options) {
				o.CleanUp = tt.cleanUp
			})

			h.roundTrip(t, ctx)

			assert.Equal(t, filepath.Join(filepath.Dir(h.input), ".tmp", "upload"), h.pipe.UploadStagingDir())

			upload := readTree(t, h.pipe.UploadStagingDir())
			download := readTree(t, h.pipe.DownloadStagingDir())
			if tt.wantStage {
				assert.Equal(t, map[string]string{"a.sql": "select 1;", "r.csv": "a,b"}, upload)
				assert.Equal(t, map[string]string{"a.sql": "select 1;", "r.csv": "a,b"}, download)
			} else {
				assert.Empty(t, upload)
				assert.Empty(t, download)
			}
		})
	}
}

func TestPipeline_InputMustBeDirectory(t *testing.T) {
	ctx := testContext(t)
	dir := t.TempDir()
	file := filepath.Join(dir, "input")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	p, err := New(Options{
		Remote:    processor.NewRemoteStorage(storage.NewLocation(storage.NewMemBucket("b"), time.Now()), nil),
		InputDir:  file,
		OutputDir: filepath.Join(dir, "output"),
	})
	require.NoError(t, err)

	err = p.Preprocess(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")
}

func TestPipeline_ConsoleReport(t *testing.T) {
	ctx := testContext(t)
	var out bytes.Buffer
	console := log.New(&out, zerolog.Nop())
	h := newHarness(t, map[string]string{"a.sql": "x", "b.csv": "y", ".gitkeep": "", "skip.bak": "z"}, func(o *Options) {
		o.Console = console
		o.Exclude = []string{"*.bak"}
	})

	require.NoError(t, h.pipe.Preprocess(ctx))
	assert.Equal(t, 1, console.Count(log.KindProcessed))
	assert.Equal(t, 1, console.Count(log.KindCopied))
	assert.Equal(t, 2, console.Count(log.KindIgnored), "hidden and excluded files are reported")
	assert.Contains(t, out.String(), ".gitkeep")
	assert.Contains(t, out.String(), "skip.bak")
}

func TestPipeline_ConsoleReportsFailures(t *testing.T) {
	ctx := testContext(t)
	var out bytes.Buffer
	console := log.New(&out, zerolog.Nop())
	h := newHarness(t, map[string]string{"a.sql": "x", "b.sql": "y"}, func(o *Options) {
		o.Console = console
		o.Processors = []processor.Processor{&failOn{rel: "b.sql"}}
	})

	require.Error(t, h.pipe.Preprocess(ctx))
	assert.Equal(t, 1, console.Count(log.KindFailed))
	assert.Contains(t, out.String(), "preprocess failed for 1 of 2 files")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		file string
		mode fs.FileMode
		want Class
	}{
		{name: "sql_file", file: "a.sql", want: ClassProcessable},
		{name: "no_extension", file: "Makefile", want: ClassProcessable},
		{name: "csv_file", file: "data.csv", want: ClassPassThrough},
		{name: "upper_case_json", file: "DATA.JSON", want: ClassPassThrough},
		{name: "mixed_case_zip", file: "bundle.Zip", want: ClassPassThrough},
		{name: "hidden_file", file: ".gitkeep", want: ClassIgnored},
		{name: "hidden_csv", file: ".data.csv", want: ClassIgnored},
		{name: "nested_path", file: "dir/sub/a.json", want: ClassPassThrough},
		{name: "symlink", file: "a.sql", mode: fs.ModeSymlink, want: ClassIgnored},
		{name: "directory", file: "dir", mode: fs.ModeDir, want: ClassIgnored},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.file, tt.mode))
		})
	}
}
