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

package commands

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/sqlbatch/pkg/auth"
	"github.com/walteh/sqlbatch/pkg/config"
	"github.com/walteh/sqlbatch/pkg/job"
	"github.com/walteh/sqlbatch/pkg/job/bqmigration"
	"github.com/walteh/sqlbatch/pkg/log"
	"github.com/walteh/sqlbatch/pkg/macro"
	"github.com/walteh/sqlbatch/pkg/pipeline"
	"github.com/walteh/sqlbatch/pkg/processor"
	"github.com/walteh/sqlbatch/pkg/storage"
	"gitlab.com/tozd/go/errors"
)

const (
	DefaultConfigPath = "config.yaml"
	DefaultInputPath  = "input"
	DefaultOutputPath = "output"
)

// TranslateOpts holds the translate flags
type TranslateOpts struct {
	ConfigPath   string
	InputDir     string
	OutputDir    string
	MacrosPath   string
	PipelinePath string
	NameMapping  string
	DryRun       bool
	PollInterval time.Duration
	Timeout      time.Duration
	Workers      int
}

// NewTranslateCmd creates the translate command
func NewTranslateCmd() *cobra.Command {
	o := &TranslateOpts{}

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Execute a batch SQL translation job",
		Long: `Translate runs every file under --input through the processor chain,
uploads the results, runs a translation job over them and writes the
translated files to --output after reverting the processors.

Files named .* are skipped. Files ending in .zip, .json or .csv are copied
without processing. The output directory is cleared before the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunTranslate(cmd.Context(), o, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.ConfigPath, "config", DefaultConfigPath, "path to the config file (.yaml, .yml, .json or .hcl)")
	flags.StringVar(&o.InputDir, "input", DefaultInputPath, "directory of files to translate")
	flags.StringVar(&o.OutputDir, "output", DefaultOutputPath, "directory for translated files, cleared before the run")
	flags.StringVarP(&o.MacrosPath, "macros", "m", "", "macro map file; expands macros before translation and reverts them after")
	flags.StringVarP(&o.PipelinePath, "processor_pipeline_config", "p", "", "processor pipeline config file")
	flags.StringVarP(&o.NameMapping, "object_name_mapping", "o", "", "object name mapping JSON file")
	flags.BoolVar(&o.DryRun, "dry-run", false, "use a local bucket and echo service instead of Google Cloud")
	flags.DurationVar(&o.PollInterval, "poll-interval", job.DefaultPollInterval, "time between job status checks")
	flags.DurationVar(&o.Timeout, "timeout", job.DefaultTimeout, "how long to wait for the job before giving up")
	flags.IntVar(&o.Workers, "workers", 0, "files processed concurrently (default GOMAXPROCS)")

	return cmd
}

// RunTranslate validates everything it can before touching the output
// directory or remote storage, then stages, translates and downloads.
func RunTranslate(ctx context.Context, o *TranslateOpts, stdout io.Writer) error {
	logger := zerolog.Ctx(ctx)

	input, output, err := checkDirectories(o.InputDir, o.OutputDir)
	if err != nil {
		return err
	}

	cfg, err := config.Load(ctx, o.ConfigPath)
	if err != nil {
		return err
	}

	procs, pipeCfg, err := buildProcessors(ctx, o)
	if err != nil {
		return err
	}

	var nameMapping []byte
	if o.NameMapping != "" {
		nameMapping, err = os.ReadFile(o.NameMapping)
		if err != nil {
			return errors.Errorf("reading object name mapping: %w", err)
		}
		if _, err := bqmigration.LoadNameMapping(nameMapping); err != nil {
			return err
		}
	}

	console := log.New(stdout, *logger)
	ctx = log.NewContext(ctx, console)
	console.Header("translating " + input)

	if !o.DryRun {
		console.Info("Verifying cloud login and credential settings")
		if _, err := auth.Validate(ctx, cfg.GCP.ProjectNumber); err != nil {
			return err
		}
	}

	staging := filepath.Join(filepath.Dir(input), ".tmp")

	bucket, err := openBucket(ctx, o, cfg, staging)
	if err != nil {
		return err
	}
	loc := storage.NewLocation(bucket, time.Now())
	remote := processor.NewRemoteStorage(loc, logger)

	pipeOpts := pipeline.Options{
		Processors: procs,
		Remote:     remote,
		InputDir:   input,
		OutputDir:  output,
		StagingDir: staging,
		CleanUp:    cfg.CleanUp(),
		Workers:    o.Workers,
		Logger:     logger,
		Console:    console,
	}
	if pipeCfg != nil {
		pipeOpts.IntermediateDir = pipeCfg.IntermediateDirectory
		pipeOpts.Exclude = pipeCfg.Exclude
	}

	pipe, err := pipeline.New(pipeOpts)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(output); err != nil {
		return errors.Errorf("clearing output directory: %w", err)
	}

	if err := pipe.Preprocess(ctx); err != nil {
		return errors.Errorf("preprocessing: %w", err)
	}
	console.LogNewline()

	svc, closeSvc, err := openService(ctx, o, cfg, loc, logger)
	if err != nil {
		return err
	}
	defer closeSvc()

	controller, err := job.NewController(job.Options{
		Service:  svc,
		Pipeline: pipe,
		Request: job.SubmitRequest{
			TranslationType:  cfg.Translation.TranslationType,
			SourceURI:        loc.InputURI(),
			TargetURI:        loc.OutputURI(),
			DefaultDatabase:  cfg.Translation.DefaultDatabase,
			SchemaSearchPath: cfg.Translation.SchemaSearchPath,
			NameMapping:      nameMapping,
		},
		PollInterval: o.PollInterval,
		Timeout:      o.Timeout,
		UILink:       bqmigration.UILink(cfg.GCP.ProjectNumber),
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	console.Infof("Submitting %s job for %s", cfg.Translation.TranslationType, loc.InputURI())
	res, err := controller.Run(ctx)
	if err != nil {
		return err
	}

	report(ctx, res, o, cfg, loc, output)
	return nil
}

func report(ctx context.Context, res job.Result, o *TranslateOpts, cfg *config.Config, loc storage.Location, output string) {
	console := log.FromContext(ctx)
	if res.State == job.StateTimedOut {
		console.Warningf("Job %s is still running after %s. Check it at %s and download results from %s",
			res.Name, o.Timeout, bqmigration.UILink(cfg.GCP.ProjectNumber), loc.OutputURI())
		return
	}
	console.Successf("Translation %s in %s, output written to %s", res.State, res.Elapsed.Round(time.Second), output)
}

// checkDirectories resolves both directories and makes sure clearing the
// output can never remove the input.
func checkDirectories(inputDir, outputDir string) (string, string, error) {
	input, err := config.AbsPath(inputDir)
	if err != nil {
		return "", "", err
	}
	output, err := config.AbsPath(outputDir)
	if err != nil {
		return "", "", err
	}

	info, err := os.Stat(input)
	if err != nil {
		return "", "", errors.Errorf("%w: input directory: %s", config.ErrInvalidConfig, err.Error())
	}
	if !info.IsDir() {
		return "", "", errors.Errorf("%w: input %s is not a directory", config.ErrInvalidConfig, input)
	}

	if pipeline.Overlaps(input, output) {
		return "", "", errors.Errorf("%w: output %s overlaps input %s", config.ErrInvalidConfig, output, input)
	}

	return input, output, nil
}

// buildProcessors puts the --macros processor first, followed by the
// pipeline file's processors.
func buildProcessors(ctx context.Context, o *TranslateOpts) ([]processor.Processor, *config.PipelineConfig, error) {
	var procs []processor.Processor

	if o.MacrosPath != "" {
		table, err := macro.Load(ctx, o.MacrosPath)
		if err != nil {
			return nil, nil, err
		}
		procs = append(procs, processor.NewMacro(table, nil))
	}

	if o.PipelinePath == "" {
		return procs, nil, nil
	}

	pipeCfg, err := config.LoadPipeline(ctx, o.PipelinePath)
	if err != nil {
		return nil, nil, err
	}
	more, err := pipeCfg.Build(ctx)
	if err != nil {
		return nil, nil, err
	}
	return append(procs, more...), pipeCfg, nil
}

func openBucket(ctx context.Context, o *TranslateOpts, cfg *config.Config, staging string) (storage.Bucket, error) {
	if o.DryRun {
		return storage.NewLocalBucket(filepath.Join(staging, "bucket")), nil
	}
	bucket, err := storage.Open(ctx, cfg.GCP.Bucket, cfg.GCP.ProjectNumber)
	if err != nil {
		return nil, errors.Errorf("opening bucket: %w", err)
	}
	return bucket, nil
}

func openService(ctx context.Context, o *TranslateOpts, cfg *config.Config, loc storage.Location, logger *zerolog.Logger) (job.Service, func(), error) {
	if o.DryRun {
		return job.NewEchoService(loc), func() {}, nil
	}

	svc, err := bqmigration.New(ctx, bqmigration.Options{
		ProjectNumber: cfg.GCP.ProjectNumber,
		Location:      cfg.Translation.Location,
		Logger:        logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, func() {
		if err := svc.Close(); err != nil {
			logger.Debug().Err(err).Msg("closing migration client")
		}
	}, nil
}
