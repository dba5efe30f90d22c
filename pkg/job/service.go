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

package job

import (
	"context"
)

// 📨 SubmitRequest describes one batch translation
type SubmitRequest struct {
	TranslationType  string
	SourceURI        string
	TargetURI        string
	DefaultDatabase  string
	SchemaSearchPath []string
	// NameMapping is the raw object name mapping JSON, if any.
	NameMapping []byte
}

// 🌐 Service is the remote translation backend
type Service interface {
	// Submit starts a job and returns its name.
	Submit(ctx context.Context, req SubmitRequest) (string, error)
	// Status reports the current remote state of a submitted job.
	Status(ctx context.Context, name string) (RemoteState, error)
}
