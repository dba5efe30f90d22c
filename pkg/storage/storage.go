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
	"sort"
	"strings"
	"sync"

	"gitlab.com/tozd/go/errors"
)

var (
	// ErrObjectNotFound is returned by Get when the key does not exist.
	ErrObjectNotFound = errors.Base("object not found")
	// ErrBucket is returned when a bucket can't be reached or created.
	ErrBucket = errors.Base("bucket unavailable")
)

// Bucket is a flat object store addressed by slash separated keys.
// Implementations must be safe for concurrent use.
type Bucket interface {
	// Name returns the bucket name
	Name() string
	// Ensure makes sure the bucket exists, creating it when missing
	Ensure(ctx context.Context) error
	// Put writes data to key, replacing any existing object
	Put(ctx context.Context, key string, data []byte) error
	// Get reads the object at key
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns every key under prefix, sorted
	List(ctx context.Context, prefix string) ([]string, error)
	// URI returns a display URI for key
	URI(key string) string
}

// Opener creates a bucket from the part of a bucket spec after "scheme://".
type Opener func(ctx context.Context, name string, project string) (Bucket, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Opener{}
)

// RegisterScheme makes an Opener available to Open under scheme.
func RegisterScheme(scheme string, opener Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[scheme] = opener
}

// DefaultScheme is used for bucket specs without a "scheme://" prefix.
const DefaultScheme = "gs"

// 🎯 Open resolves a bucket spec such as "my-bucket", "gs://my-bucket",
// "file:///tmp/bucket" or "mem://scratch".
func Open(ctx context.Context, spec string, project string) (Bucket, error) {
	scheme, name, ok := strings.Cut(spec, "://")
	if !ok {
		scheme, name = DefaultScheme, spec
	}
	if name == "" {
		return nil, errors.Errorf("%w: empty bucket name in %q", ErrBucket, spec)
	}

	registryMu.RLock()
	opener, found := registry[scheme]
	registryMu.RUnlock()
	if !found {
		return nil, errors.Errorf("%w: scheme %q not registered, options: %s", ErrBucket, scheme, strings.Join(Schemes(), ", "))
	}

	b, err := opener(ctx, name, project)
	if err != nil {
		return nil, errors.Errorf("opening bucket %s: %w", spec, err)
	}
	return b, nil
}

// Schemes lists the registered bucket schemes.
func Schemes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func init() {
	RegisterScheme("file", func(_ context.Context, name, _ string) (Bucket, error) {
		return NewLocalBucket(name), nil
	})
	RegisterScheme("mem", func(_ context.Context, name, _ string) (Bucket, error) {
		return NewMemBucket(name), nil
	})
}
