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

// Package bqmigration submits batch translations to the BigQuery Migration API.
package bqmigration

import (
	"context"
	"fmt"
	"time"

	migration "cloud.google.com/go/bigquery/migration/apiv2"
	"cloud.google.com/go/bigquery/migration/apiv2/migrationpb"
	"github.com/rs/zerolog"
	"github.com/walteh/sqlbatch/pkg/job"
	"gitlab.com/tozd/go/errors"
	"google.golang.org/api/option"
)

// TaskName is the key of the single task in every workflow.
const TaskName = "translation-task"

const uiLinkFormat = "https://console.cloud.google.com/bigquery/migrations/offline-translation?projectnumber=%s"

// UILink points at the console page listing a project's translation jobs.
func UILink(projectNumber string) string {
	return fmt.Sprintf(uiLinkFormat, projectNumber)
}

type (
	createFunc func(ctx context.Context, req *migrationpb.CreateMigrationWorkflowRequest) (*migrationpb.MigrationWorkflow, error)
	getFunc    func(ctx context.Context, req *migrationpb.GetMigrationWorkflowRequest) (*migrationpb.MigrationWorkflow, error)
)

// 🌐 Service implements job.Service against the Migration API
type Service struct {
	parent string
	create createFunc
	get    getFunc
	close  func() error
	now    func() time.Time
	logger *zerolog.Logger
}

var _ job.Service = (*Service)(nil)

// ⚙️ Options configures a Service
type Options struct {
	ProjectNumber string
	Location      string
	Logger        *zerolog.Logger
	ClientOptions []option.ClientOption
}

// 🏭 New dials the Migration API
func New(ctx context.Context, opts Options) (*Service, error) {
	if opts.ProjectNumber == "" || opts.Location == "" {
		return nil, errors.New("project number and location are required")
	}

	client, err := migration.NewClient(ctx, opts.ClientOptions...)
	if err != nil {
		return nil, errors.Errorf("creating migration client: %w", err)
	}

	return &Service{
		parent: fmt.Sprintf("projects/%s/locations/%s", opts.ProjectNumber, opts.Location),
		create: func(ctx context.Context, req *migrationpb.CreateMigrationWorkflowRequest) (*migrationpb.MigrationWorkflow, error) {
			return client.CreateMigrationWorkflow(ctx, req)
		},
		get: func(ctx context.Context, req *migrationpb.GetMigrationWorkflowRequest) (*migrationpb.MigrationWorkflow, error) {
			return client.GetMigrationWorkflow(ctx, req)
		},
		close:  client.Close,
		now:    time.Now,
		logger: opts.Logger,
	}, nil
}

// Close releases the underlying client.
func (s *Service) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

func (s *Service) log(ctx context.Context) *zerolog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return zerolog.Ctx(ctx)
}

func (s *Service) Submit(ctx context.Context, req job.SubmitRequest) (string, error) {
	workflow, err := BuildWorkflow(req, s.now())
	if err != nil {
		return "", err
	}

	s.log(ctx).Info().
		Str("parent", s.parent).
		Str("display_name", workflow.GetDisplayName()).
		Str("source", req.SourceURI).
		Str("target", req.TargetURI).
		Msg("creating migration workflow")

	created, err := s.create(ctx, &migrationpb.CreateMigrationWorkflowRequest{
		Parent:            s.parent,
		MigrationWorkflow: workflow,
	})
	if err != nil {
		return "", errors.Errorf("creating migration workflow: %w", err)
	}

	s.log(ctx).Info().Str("workflow", created.GetName()).Msg("migration workflow created")
	return created.GetName(), nil
}

func (s *Service) Status(ctx context.Context, name string) (job.RemoteState, error) {
	workflow, err := s.get(ctx, &migrationpb.GetMigrationWorkflowRequest{Name: name})
	if err != nil {
		return job.RemoteUnknown, errors.Errorf("getting migration workflow %s: %w", name, err)
	}
	return RemoteState(workflow.GetState()), nil
}

// RemoteState maps a workflow state onto job.RemoteState.
func RemoteState(s migrationpb.MigrationWorkflow_State) job.RemoteState {
	switch s {
	case migrationpb.MigrationWorkflow_DRAFT:
		return job.RemoteDraft
	case migrationpb.MigrationWorkflow_RUNNING:
		return job.RemoteRunning
	case migrationpb.MigrationWorkflow_PAUSED:
		return job.RemotePaused
	case migrationpb.MigrationWorkflow_COMPLETED:
		return job.RemoteCompleted
	default:
		return job.RemoteUnknown
	}
}

// DisplayName is `<type>-cli-<MM-dd-HH:mm>`.
func DisplayName(translationType string, now time.Time) string {
	return translationType + "-cli-" + now.Format("01-02-15:04")
}

// 🏗️ BuildWorkflow assembles the workflow for req
func BuildWorkflow(req job.SubmitRequest, now time.Time) (*migrationpb.MigrationWorkflow, error) {
	source, err := SourceDialect(req.TranslationType)
	if err != nil {
		return nil, err
	}

	details := &migrationpb.TranslationConfigDetails{
		SourceLocation: &migrationpb.TranslationConfigDetails_GcsSourcePath{GcsSourcePath: req.SourceURI},
		TargetLocation: &migrationpb.TranslationConfigDetails_GcsTargetPath{GcsTargetPath: req.TargetURI},
		SourceDialect:  source,
		TargetDialect: &migrationpb.Dialect{
			DialectValue: &migrationpb.Dialect_BigqueryDialect{BigqueryDialect: &migrationpb.BigQueryDialect{}},
		},
	}

	if req.DefaultDatabase != "" || len(req.SchemaSearchPath) > 0 {
		details.SourceEnv = &migrationpb.SourceEnv{
			DefaultDatabase:  req.DefaultDatabase,
			SchemaSearchPath: req.SchemaSearchPath,
		}
	}

	if len(req.NameMapping) > 0 {
		mapping, err := LoadNameMapping(req.NameMapping)
		if err != nil {
			return nil, err
		}
		details.OutputNameMapping = &migrationpb.TranslationConfigDetails_NameMappingList{NameMappingList: mapping}
	}

	return &migrationpb.MigrationWorkflow{
		DisplayName: DisplayName(req.TranslationType, now),
		Tasks: map[string]*migrationpb.MigrationTask{
			TaskName: {
				Type: req.TranslationType,
				TaskDetails: &migrationpb.MigrationTask_TranslationConfigDetails{
					TranslationConfigDetails: details,
				},
			},
		},
	}, nil
}
