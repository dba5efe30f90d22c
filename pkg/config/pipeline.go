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

package config

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/walteh/sqlbatch/pkg/processor"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"
)

// 🧩 ProcessorSpec names a registered processor and its arguments
type ProcessorSpec struct {
	Name string         `yaml:"name"`
	Args map[string]any `yaml:"args,omitempty"`
}

// 🔗 PipelineConfig is the processor pipeline file
type PipelineConfig struct {
	Processors            []ProcessorSpec `yaml:"processors"`
	IntermediateDirectory string          `yaml:"intermediate_directory,omitempty"`
	Exclude               []string        `yaml:"exclude,omitempty"`
}

// ParsePipeline decodes and validates a pipeline file.
func ParsePipeline(data []byte) (*PipelineConfig, error) {
	var cfg PipelineConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.Errorf("%w: pipeline file is empty", ErrInvalidConfig)
		}
		return nil, errors.Errorf("%w: parsing pipeline YAML: %s", ErrInvalidConfig, err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// 🔍 Validate checks the processor list
func (cfg *PipelineConfig) Validate() error {
	if cfg.Processors == nil {
		return errors.Errorf("%w: processors is required", ErrInvalidConfig)
	}
	for i, spec := range cfg.Processors {
		if spec.Name == "" {
			return errors.Errorf("%w: processors[%d].name is required", ErrInvalidConfig, i)
		}
	}
	return nil
}

// 🎯 LoadPipeline reads a pipeline file. Relative paths in it (the
// intermediate directory and any processor `path` argument) are resolved
// against the file's directory. The intermediate directory is only checked
// here; the pipeline clears it when a run starts.
func LoadPipeline(ctx context.Context, path string) (*PipelineConfig, error) {
	zerolog.Ctx(ctx).Debug().Str("path", path).Msg("loading processor pipeline")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading pipeline file: %w", err)
	}

	cfg, err := ParsePipeline(data)
	if err != nil {
		return nil, err
	}

	base, err := AbsPath(filepath.Dir(path))
	if err != nil {
		return nil, err
	}

	for i := range cfg.Processors {
		p, ok := cfg.Processors[i].Args["path"].(string)
		if ok && p != "" && !filepath.IsAbs(p) {
			cfg.Processors[i].Args["path"] = filepath.Join(base, p)
		}
	}

	if cfg.IntermediateDirectory != "" {
		dir := cfg.IntermediateDirectory
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(base, dir)
		}
		if err := checkIntermediateDirectory(dir); err != nil {
			return nil, err
		}
		cfg.IntermediateDirectory = filepath.Clean(dir)
	}

	return cfg, nil
}

func checkIntermediateDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Errorf("checking intermediate directory: %w", err)
	}
	if !info.IsDir() {
		return errors.Errorf("%w: intermediate_directory %s is a file", ErrInvalidConfig, dir)
	}
	return nil
}

// 🏗️ Build instantiates the processors in order
func (cfg *PipelineConfig) Build(ctx context.Context) ([]processor.Processor, error) {
	procs := make([]processor.Processor, 0, len(cfg.Processors))
	for i, spec := range cfg.Processors {
		p, err := processor.New(ctx, spec.Name, processor.Args(spec.Args))
		if err != nil {
			return nil, errors.Errorf("building processors[%d] %s: %w", i, spec.Name, err)
		}
		procs = append(procs, p)
	}
	return procs, nil
}
