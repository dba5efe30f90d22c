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
	"sync"

	"github.com/rs/zerolog"
	"github.com/walteh/sqlbatch/pkg/storage"
	"gitlab.com/tozd/go/errors"
)

// RemoteStorageName identifies the storage processor in snapshots.
const RemoteStorageName = "remote_storage"

// ☁️ RemoteStorage pushes preprocessed text to the run's input prefix and
// pulls translated text from its output prefix. It is the source of truth
// on the way back, so Postprocess ignores the text it is given.
type RemoteStorage struct {
	loc    storage.Location
	logger *zerolog.Logger

	ensureOnce sync.Once
	ensureErr  error
}

var _ Processor = (*RemoteStorage)(nil)

// NewRemoteStorage binds the processor to a run location.
func NewRemoteStorage(loc storage.Location, logger *zerolog.Logger) *RemoteStorage {
	return &RemoteStorage{loc: loc, logger: logger}
}

func (p *RemoteStorage) Name() string {
	return RemoteStorageName
}

// Location is the run location this processor reads and writes.
func (p *RemoteStorage) Location() storage.Location {
	return p.loc
}

func (p *RemoteStorage) log(ctx context.Context) *zerolog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return zerolog.Ctx(ctx)
}

// ensure creates the bucket on first use. The result is shared by every
// caller, so a creation failure fails every upload.
func (p *RemoteStorage) ensure(ctx context.Context) error {
	p.ensureOnce.Do(func() {
		p.ensureErr = p.loc.Bucket.Ensure(ctx)
	})
	return p.ensureErr
}

func (p *RemoteStorage) Preprocess(ctx context.Context, relPath string, text string) (string, error) {
	if err := p.UploadRaw(ctx, relPath, []byte(text)); err != nil {
		return "", err
	}
	return text, nil
}

func (p *RemoteStorage) Postprocess(ctx context.Context, relPath string, _ string) (string, error) {
	data, err := p.DownloadRaw(ctx, relPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// UploadRaw stores data at rel under the input prefix.
func (p *RemoteStorage) UploadRaw(ctx context.Context, relPath string, data []byte) error {
	if err := p.ensure(ctx); err != nil {
		return errors.Errorf("ensuring bucket %s: %w", p.loc.Bucket.Name(), err)
	}

	key := p.loc.InputKey(relPath)
	p.log(ctx).Info().Str("uri", p.loc.Bucket.URI(key)).Msg("uploading")
	if err := p.loc.Bucket.Put(ctx, key, data); err != nil {
		return errors.Errorf("uploading %s: %w", relPath, err)
	}
	return nil
}

// DownloadRaw reads rel from the output prefix.
func (p *RemoteStorage) DownloadRaw(ctx context.Context, relPath string) ([]byte, error) {
	key := p.loc.OutputKey(relPath)
	p.log(ctx).Info().Str("uri", p.loc.Bucket.URI(key)).Msg("downloading")
	data, err := p.loc.Bucket.Get(ctx, key)
	if err != nil {
		return nil, errors.Errorf("downloading %s: %w", relPath, err)
	}
	return data, nil
}

// ListOutputs returns the relative paths the translation wrote.
func (p *RemoteStorage) ListOutputs(ctx context.Context) ([]string, error) {
	prefix := p.loc.OutputPrefix()
	keys, err := p.loc.Bucket.List(ctx, prefix)
	if err != nil {
		return nil, errors.Errorf("listing outputs: %w", err)
	}

	rels := make([]string, 0, len(keys))
	for _, k := range keys {
		if rel, ok := storage.Relative(prefix, k); ok {
			rels = append(rels, rel)
		}
	}
	return rels, nil
}
