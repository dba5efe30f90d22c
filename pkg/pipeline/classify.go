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

package pipeline

import (
	"io/fs"
	"path"
	"strings"
)

// 🏷️ Class is how the pipeline treats a file
type Class int

const (
	ClassIgnored Class = iota
	ClassPassThrough
	ClassProcessable
)

func (c Class) String() string {
	switch c {
	case ClassIgnored:
		return "ignored"
	case ClassPassThrough:
		return "pass-through"
	case ClassProcessable:
		return "processable"
	default:
		return "unknown"
	}
}

// extensions copied verbatim, compared lower-cased
var passThroughExts = map[string]bool{
	".zip":  true,
	".json": true,
	".csv":  true,
}

// 🔍 Classify decides the class of a file from its name and mode.
func Classify(name string, mode fs.FileMode) Class {
	if !mode.IsRegular() {
		return ClassIgnored
	}
	return ClassifyName(name)
}

// ClassifyName classifies a path that is known to be a regular file, such
// as a key listed from a bucket.
func ClassifyName(name string) Class {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if strings.HasPrefix(base, ".") {
		return ClassIgnored
	}
	if passThroughExts[strings.ToLower(path.Ext(base))] {
		return ClassPassThrough
	}
	return ClassProcessable
}
