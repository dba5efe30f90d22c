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

// Package auth checks for usable Google application default credentials.
package auth

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/oauth2/google"
)

// ErrCredentials means no usable application default credentials exist.
var ErrCredentials = errors.Base("missing or invalid credentials")

// CloudPlatformScope is requested for every client.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

const loginHint = "run `gcloud auth application-default login` or set GOOGLE_APPLICATION_CREDENTIALS"

// Finder locates credentials. google.FindDefaultCredentials satisfies it.
type Finder func(ctx context.Context, scopes ...string) (*google.Credentials, error)

// 🔐 Validate finds application default credentials and fetches a token
// with them, so problems surface before any file is staged.
func Validate(ctx context.Context, projectNumber string) (*google.Credentials, error) {
	return ValidateWith(ctx, google.FindDefaultCredentials, projectNumber)
}

// ValidateWith is Validate with a custom Finder.
func ValidateWith(ctx context.Context, find Finder, projectNumber string) (*google.Credentials, error) {
	logger := zerolog.Ctx(ctx)

	creds, err := find(ctx, CloudPlatformScope)
	if err != nil {
		return nil, errors.Errorf("%w: %s; %s", ErrCredentials, err.Error(), loginHint)
	}
	if creds == nil || creds.TokenSource == nil {
		return nil, errors.Errorf("%w: no token source; %s", ErrCredentials, loginHint)
	}

	if _, err := creds.TokenSource.Token(); err != nil {
		return nil, errors.Errorf("%w: fetching token: %s; %s", ErrCredentials, err.Error(), loginHint)
	}

	logger.Debug().
		Str("credentials_project", creds.ProjectID).
		Str("project_number", projectNumber).
		Msg("application default credentials found")

	return creds, nil
}
