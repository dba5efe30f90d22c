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

package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/walteh/sqlbatch/cmd/sqlbatch/commands"

	// registers the gs:// bucket scheme
	_ "github.com/walteh/sqlbatch/pkg/storage/gcs"
)

// newRootCmd wires the subcommands under a shared --verbose flag
func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "sqlbatch",
		Short: "Batch SQL translation to BigQuery",
		Long: `sqlbatch stages a directory of SQL files in Cloud Storage, runs a
BigQuery batch translation job over them and writes the translated files to
an output directory. Macros are expanded before translation and restored
afterwards.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger := setupLogging(verbose)
			cmd.SetContext(logger.WithContext(cmd.Context()))
		},
	}

	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(
		commands.NewInitCmd(),
		commands.NewTranslateCmd(),
	)

	return rootCmd
}

// setupLogging builds the process logger
func setupLogging(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()
}
