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

package storage

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"gitlab.com/tozd/go/errors"
)

// 🗄️ FSBucket stores objects as files in a billy filesystem.
type FSBucket struct {
	name   string
	scheme string
	root   string // on-disk root, empty for in-memory buckets
	fs     billy.Filesystem

	// billy filesystems don't promise safe concurrent writes
	mu sync.RWMutex
}

var _ Bucket = (*FSBucket)(nil)

// NewMemBucket returns an in-memory bucket.
func NewMemBucket(name string) *FSBucket {
	return &FSBucket{name: name, scheme: "mem", fs: memfs.New()}
}

// NewLocalBucket returns a bucket rooted at dir on the local disk.
func NewLocalBucket(dir string) *FSBucket {
	return &FSBucket{name: dir, scheme: "file", root: dir, fs: osfs.New(dir)}
}

// NewFSBucket wraps an arbitrary billy filesystem.
func NewFSBucket(name string, fsys billy.Filesystem) *FSBucket {
	return &FSBucket{name: name, scheme: "mem", fs: fsys}
}

func (b *FSBucket) Name() string {
	return b.name
}

func (b *FSBucket) Ensure(ctx context.Context) error {
	if b.root == "" {
		return nil
	}
	if err := os.MkdirAll(b.root, 0o755); err != nil {
		return errors.Errorf("%w: creating %s: %s", ErrBucket, b.root, err.Error())
	}
	return nil
}

func (b *FSBucket) Put(ctx context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	key = cleanKey(key)
	if dir := path.Dir(key); dir != "." {
		if err := b.fs.MkdirAll(dir, 0o755); err != nil {
			return errors.Errorf("creating parent of %s: %w", key, err)
		}
	}
	if err := util.WriteFile(b.fs, key, data, 0o644); err != nil {
		return errors.Errorf("writing object %s: %w", key, err)
	}
	return nil
}

func (b *FSBucket) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	key = cleanKey(key)
	data, err := util.ReadFile(b.fs, key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errors.Errorf("%w: %s", ErrObjectNotFound, b.URI(key))
		}
		return nil, errors.Errorf("reading object %s: %w", key, err)
	}
	return data, nil
}

func (b *FSBucket) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	prefix = cleanKey(prefix)
	if _, err := b.fs.Stat(prefix); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Errorf("listing %s: %w", prefix, err)
	}

	var keys []string
	err := util.Walk(b.fs, prefix, func(p string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		keys = append(keys, cleanKey(filepath.ToSlash(p)))
		return nil
	})
	if err != nil {
		return nil, errors.Errorf("listing %s: %w", prefix, err)
	}

	sort.Strings(keys)
	return keys, nil
}

func (b *FSBucket) URI(key string) string {
	return b.scheme + "://" + strings.TrimSuffix(b.name, "/") + "/" + cleanKey(key)
}

func cleanKey(key string) string {
	return strings.TrimPrefix(path.Clean("/"+key), "/")
}
