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

package processor

import (
	"context"
	"sort"
	"strings"
	"sync"

	"gitlab.com/tozd/go/errors"
)

// 🔌 Processor transforms the text of one file on its way to the
// translation service and back. Implementations must be safe for concurrent
// use: the pipeline calls them from many goroutines, one file per call.
type Processor interface {
	// Name identifies the processor in logs and intermediate snapshots
	Name() string
	// Preprocess runs before upload, in chain order
	Preprocess(ctx context.Context, relPath string, text string) (string, error)
	// Postprocess runs after download, in reverse chain order
	Postprocess(ctx context.Context, relPath string, text string) (string, error)
}

// Args are the free-form constructor arguments from the pipeline config.
type Args map[string]any

// String returns the string argument key, or "" when absent.
func (a Args) String(key string) (string, error) {
	v, ok := a[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("argument %q must be a string, got %T", key, v)
	}
	return s, nil
}

// Factory builds a processor from its config arguments.
type Factory func(ctx context.Context, args Args) (Processor, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// 📝 Register makes a processor available to pipeline configs under name.
// Registering the same name twice replaces the earlier factory.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// 🏭 New instantiates the processor registered under name.
func New(ctx context.Context, name string, args Args) (Processor, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.Errorf("processor %q not found, options: %s", name, strings.Join(Registered(), ", "))
	}

	p, err := f(ctx, args)
	if err != nil {
		return nil, errors.Errorf("creating processor %q: %w", name, err)
	}
	return p, nil
}

// Registered lists the registered processor names.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for k := range registry {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
