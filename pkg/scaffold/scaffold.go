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

// Package scaffold writes the example project created by `sqlbatch init`.
package scaffold

import (
	"context"
	"embed"
	"io/fs"
	"os"
	"path"
	"sort"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

//go:embed all:project
var project embed.FS

const root = "project"

// ErrNotEmpty is returned when the target directory already has content.
var ErrNotEmpty = errors.Base("directory is not empty")

// Files lists the scaffold's files, slash separated and sorted.
func Files() ([]string, error) {
	var files []string
	err := fs.WalkDir(project, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		files = append(files, p[len(root)+1:])
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("listing scaffold: %w", err)
	}
	sort.Strings(files)
	return files, nil
}

// 🏗️ Write creates dir and fills it with the example project. An existing
// directory must be empty.
func Write(ctx context.Context, dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	switch {
	case err == nil && len(entries) > 0:
		return nil, errors.Errorf("%w: %s", ErrNotEmpty, dir)
	case err != nil && !os.IsNotExist(err):
		return nil, errors.Errorf("checking %s: %w", dir, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Errorf("creating %s: %w", dir, err)
	}

	return WriteTo(ctx, osfs.New(dir))
}

// WriteTo copies the example project into fsys.
func WriteTo(ctx context.Context, fsys billy.Filesystem) ([]string, error) {
	files, err := Files()
	if err != nil {
		return nil, err
	}

	for _, rel := range files {
		data, err := project.ReadFile(path.Join(root, rel))
		if err != nil {
			return nil, errors.Errorf("reading scaffold %s: %w", rel, err)
		}
		if dir := path.Dir(rel); dir != "." {
			if err := fsys.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Errorf("creating directory for %s: %w", rel, err)
			}
		}
		if err := util.WriteFile(fsys, rel, data, 0o644); err != nil {
			return nil, errors.Errorf("writing %s: %w", rel, err)
		}
		zerolog.Ctx(ctx).Debug().Str("file", rel).Msg("wrote scaffold file")
	}

	return files, nil
}
