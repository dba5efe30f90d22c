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

// Package gcs implements storage.Bucket on Google Cloud Storage. Importing it
// registers the "gs" scheme with storage.Open.
package gcs

import (
	"context"
	"io"
	"sort"
	"strings"

	gstorage "cloud.google.com/go/storage"
	"github.com/rs/zerolog"
	"github.com/walteh/sqlbatch/pkg/storage"
	"gitlab.com/tozd/go/errors"
	"google.golang.org/api/iterator"
)

func init() {
	storage.RegisterScheme("gs", Open)
}

// ☁️ Bucket is a GCS bucket.
type Bucket struct {
	name    string
	project string
	client  *gstorage.Client
}

var _ storage.Bucket = (*Bucket)(nil)

// Open connects with application default credentials.
func Open(ctx context.Context, name string, project string) (storage.Bucket, error) {
	client, err := gstorage.NewClient(ctx)
	if err != nil {
		return nil, errors.Errorf("%w: creating storage client: %s", storage.ErrBucket, err.Error())
	}
	return New(client, name, project), nil
}

// New wraps an existing client.
func New(client *gstorage.Client, name string, project string) *Bucket {
	return &Bucket{name: strings.TrimSuffix(name, "/"), project: project, client: client}
}

func (b *Bucket) Name() string {
	return b.name
}

// Ensure creates the bucket in the configured project when it doesn't exist.
func (b *Bucket) Ensure(ctx context.Context) error {
	logger := zerolog.Ctx(ctx)
	handle := b.client.Bucket(b.name)

	logger.Debug().Str("bucket", b.name).Msg("get bucket")
	_, err := handle.Attrs(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gstorage.ErrBucketNotExist) {
		return errors.Errorf("%w: reading bucket %s: %s", storage.ErrBucket, b.name, err.Error())
	}

	logger.Info().Str("bucket", b.name).Msg("bucket does not exist, creating one")
	if err := handle.Create(ctx, b.project, nil); err != nil {
		return errors.Errorf("%w: creating bucket %s: %s", storage.ErrBucket, b.name, err.Error())
	}
	return nil
}

func (b *Bucket) Put(ctx context.Context, key string, data []byte) error {
	w := b.client.Bucket(b.name).Object(key).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return errors.Errorf("uploading %s: %w", b.URI(key), err)
	}
	if err := w.Close(); err != nil {
		return errors.Errorf("finalizing upload %s: %w", b.URI(key), err)
	}
	return nil
}

func (b *Bucket) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := b.client.Bucket(b.name).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, errors.Errorf("%w: %s", storage.ErrObjectNotFound, b.URI(key))
		}
		return nil, errors.Errorf("downloading %s: %w", b.URI(key), err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Errorf("reading %s: %w", b.URI(key), err)
	}
	return data, nil
}

func (b *Bucket) List(ctx context.Context, prefix string) ([]string, error) {
	it := b.client.Bucket(b.name).Objects(ctx, &gstorage.Query{Prefix: strings.TrimSuffix(prefix, "/") + "/"})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Errorf("listing %s: %w", b.URI(prefix), err)
		}
		// zero-byte "directory" placeholders created by the console
		if strings.HasSuffix(attrs.Name, "/") {
			continue
		}
		keys = append(keys, attrs.Name)
	}

	sort.Strings(keys)
	return keys, nil
}

func (b *Bucket) URI(key string) string {
	return "gs://" + b.name + "/" + strings.TrimPrefix(key, "/")
}
