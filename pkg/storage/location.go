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
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	inputDir  = "input"
	outputDir = "output"

	prefixTimeLayout = "2006-01-02T15:04:05.000000"
)

// 📍 Location is one run's area inside a bucket: the translation service
// reads from InputPrefix and writes to OutputPrefix.
type Location struct {
	Bucket Bucket
	Prefix string
}

// NewLocation returns a location whose prefix is a timestamp followed by a
// random UUID, so concurrent runs never share objects.
func NewLocation(b Bucket, now time.Time) Location {
	return Location{
		Bucket: b,
		Prefix: now.Format(prefixTimeLayout) + "-" + uuid.NewString(),
	}
}

func (l Location) InputPrefix() string {
	return path.Join(l.Prefix, inputDir)
}

func (l Location) OutputPrefix() string {
	return path.Join(l.Prefix, outputDir)
}

// InputKey is the object key of rel inside the input prefix.
func (l Location) InputKey(rel string) string {
	return path.Join(l.InputPrefix(), rel)
}

// OutputKey is the object key of rel inside the output prefix.
func (l Location) OutputKey(rel string) string {
	return path.Join(l.OutputPrefix(), rel)
}

func (l Location) InputURI() string {
	return l.Bucket.URI(l.InputPrefix())
}

func (l Location) OutputURI() string {
	return l.Bucket.URI(l.OutputPrefix())
}

// Relative strips prefix from key. ok is false when key is outside prefix.
func Relative(prefix, key string) (string, bool) {
	rel, ok := strings.CutPrefix(key, strings.TrimSuffix(prefix, "/")+"/")
	if !ok || rel == "" {
		return "", false
	}
	return rel, true
}
