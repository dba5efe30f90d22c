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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// ErrInvalidConfig marks missing, malformed or unsupported settings.
var ErrInvalidConfig = errors.Base("invalid config")

// DefaultLocation is used when translation_config.location is unset.
const DefaultLocation = "us"

// TranslationTypes are the supported translation_config.translation_type values.
var TranslationTypes = []string{
	"Translation_AzureSynapse2BQ",
	"Translation_Bteq2BQ",
	"Translation_HiveQL2BQ",
	"Translation_Netezza2BQ",
	"Translation_Oracle2BQ",
	"Translation_Redshift2BQ",
	"Translation_SQLServer2BQ",
	"Translation_Snowflake2BQ",
	"Translation_SparkSQL2BQ",
	"Translation_Teradata2BQ",
	"Translation_Vertica2BQ",
}

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// ☁️ GCPSettings locates the project and bucket
type GCPSettings struct {
	ProjectNumber string `json:"project_number" yaml:"project_number" hcl:"project_number"`
	// Bucket is a bucket name, or a scheme://name spec for non GCS stores.
	Bucket string `json:"gcs_bucket" yaml:"gcs_bucket" hcl:"gcs_bucket"`
}

// 🔧 TranslationConfig describes the translation job
type TranslationConfig struct {
	Location         string   `json:"location,omitempty" yaml:"location,omitempty" hcl:"location,optional"`
	TranslationType  string   `json:"translation_type" yaml:"translation_type" hcl:"translation_type"`
	DefaultDatabase  string   `json:"default_database,omitempty" yaml:"default_database,omitempty" hcl:"default_database,optional"`
	SchemaSearchPath []string `json:"schema_search_path,omitempty" yaml:"schema_search_path,omitempty" hcl:"schema_search_path,optional"`
	CleanUpTmpFiles  *bool    `json:"clean_up_tmp_files,omitempty" yaml:"clean_up_tmp_files,omitempty" hcl:"clean_up_tmp_files,optional"`
}

// 📚 Config represents the complete configuration
type Config struct {
	GCP         GCPSettings       `json:"gcp_settings" yaml:"gcp_settings" hcl:"gcp_settings,block"`
	Translation TranslationConfig `json:"translation_config" yaml:"translation_config" hcl:"translation_config,block"`
}

// 🎯 Load loads the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("%w: no parser found for file: %s", ErrInvalidConfig, path)
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	logger.Debug().Str("config", cfg.String()).Msg("configuration loaded")
	return cfg, nil
}

// 🔍 Validate checks required fields and applies defaults
func (cfg *Config) Validate() error {
	if cfg.GCP.ProjectNumber == "" {
		return errors.Errorf("%w: gcp_settings.project_number is required", ErrInvalidConfig)
	}
	if cfg.GCP.Bucket == "" {
		return errors.Errorf("%w: gcp_settings.gcs_bucket is required", ErrInvalidConfig)
	}
	if cfg.Translation.TranslationType == "" {
		return errors.Errorf("%w: translation_config.translation_type is required", ErrInvalidConfig)
	}
	if !slices.Contains(TranslationTypes, cfg.Translation.TranslationType) {
		return errors.Errorf("%w: unsupported translation_type %q, options: %s",
			ErrInvalidConfig, cfg.Translation.TranslationType, strings.Join(TranslationTypes, ", "))
	}
	for i, s := range cfg.Translation.SchemaSearchPath {
		if strings.TrimSpace(s) == "" {
			return errors.Errorf("%w: translation_config.schema_search_path[%d] is empty", ErrInvalidConfig, i)
		}
	}

	if cfg.Translation.Location == "" {
		cfg.Translation.Location = DefaultLocation
	}
	if cfg.Translation.CleanUpTmpFiles == nil {
		clean := true
		cfg.Translation.CleanUpTmpFiles = &clean
	}

	return nil
}

// CleanUp reports whether staging files are removed after a run.
func (cfg *Config) CleanUp() bool {
	return cfg.Translation.CleanUpTmpFiles == nil || *cfg.Translation.CleanUpTmpFiles
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	loc := cfg.Translation.Location
	if loc == "" {
		loc = DefaultLocation
	}
	return fmt.Sprintf("%s@projects/%s/locations/%s -> %s", cfg.Translation.TranslationType, cfg.GCP.ProjectNumber, loc, cfg.GCP.Bucket)
}

// AbsPath resolves path against the working directory.
func AbsPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Errorf("resolving %s: %w", path, err)
	}
	return abs, nil
}
