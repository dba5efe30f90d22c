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
	"sync"

	"github.com/google/uuid"
	"github.com/walteh/sqlbatch/pkg/storage"
	"gitlab.com/tozd/go/errors"
)

// 🔁 EchoService "translates" by copying every input object to the output
// prefix unchanged. It lets a project be exercised without a backend.
type EchoService struct {
	loc storage.Location
	// PendingPolls is how many Status calls report Running before Completed.
	PendingPolls int

	mu   sync.Mutex
	jobs map[string]int
}

var _ Service = (*EchoService)(nil)

// 🏭 NewEchoService echoes within loc
func NewEchoService(loc storage.Location) *EchoService {
	return &EchoService{loc: loc, jobs: map[string]int{}}
}

func (s *EchoService) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if req.SourceURI != s.loc.InputURI() {
		return "", errors.Errorf("source %s is outside %s", req.SourceURI, s.loc.InputURI())
	}
	if req.TargetURI != s.loc.OutputURI() {
		return "", errors.Errorf("target %s is outside %s", req.TargetURI, s.loc.OutputURI())
	}

	keys, err := s.loc.Bucket.List(ctx, s.loc.InputPrefix())
	if err != nil {
		return "", errors.Errorf("listing inputs: %w", err)
	}

	for _, key := range keys {
		rel, ok := storage.Relative(s.loc.InputPrefix(), key)
		if !ok {
			continue
		}
		data, err := s.loc.Bucket.Get(ctx, key)
		if err != nil {
			return "", errors.Errorf("reading %s: %w", key, err)
		}
		if err := s.loc.Bucket.Put(ctx, s.loc.OutputKey(rel), data); err != nil {
			return "", errors.Errorf("writing %s: %w", rel, err)
		}
	}

	name := "echo/" + uuid.NewString()
	s.mu.Lock()
	s.jobs[name] = 0
	s.mu.Unlock()
	return name, nil
}

func (s *EchoService) Status(ctx context.Context, name string) (RemoteState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	polls, ok := s.jobs[name]
	if !ok {
		return RemoteUnknown, errors.Errorf("job %q not found", name)
	}
	s.jobs[name] = polls + 1
	if polls < s.PendingPolls {
		return RemoteRunning, nil
	}
	return RemoteCompleted, nil
}
