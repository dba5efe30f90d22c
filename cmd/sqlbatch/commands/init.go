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
	"path/filepath"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/walteh/sqlbatch/pkg/scaffold"
	"gitlab.com/tozd/go/errors"
)

// NewInitCmd creates the init command
func NewInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <directory>",
		Short: "Initialize a new batch SQL translation project",
		Long: `Init creates <directory> and fills it with an example project:
config.yaml, macros.yaml, pipeline.yaml, object_name_mapping.json and an
input directory with sample queries. An existing directory must be empty.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := filepath.Abs(args[0])
			if err != nil {
				return errors.Errorf("resolving directory: %w", err)
			}

			info := pterm.Info.WithWriter(cmd.OutOrStdout()).WithPrefix(pterm.Prefix{Text: "📦"})
			info.Printfln("Initializing a new batch SQL translation project in %s", dir)

			files, err := scaffold.Write(cmd.Context(), dir)
			if err != nil {
				return errors.Errorf("initializing project: %w", err)
			}

			for _, f := range files {
				pterm.Debug.WithWriter(cmd.OutOrStdout()).Println(f)
			}

			pterm.Success.WithWriter(cmd.OutOrStdout()).WithPrefix(pterm.Prefix{Text: "✅"}).
				Printfln("Project scaffolding created in %s", dir)
			return nil
		},
	}

	return cmd
}
