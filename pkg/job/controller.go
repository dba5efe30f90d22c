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

// Package job drives a remote translation job from submission to download.
package job

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultTimeout      = 600 * time.Second
)

// Postprocessor downloads and reverts results once the job is done.
type Postprocessor interface {
	Postprocess(ctx context.Context) error
}

// ⚙️ Options configures a Controller
type Options struct {
	Service  Service
	Pipeline Postprocessor
	Request  SubmitRequest

	PollInterval time.Duration
	Timeout      time.Duration
	// UILink is printed when the job outlives Timeout.
	UILink string

	Now    func() time.Time
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *zerolog.Logger
}

// 📋 Result summarizes a finished Run
type Result struct {
	Name    string
	State   State
	Elapsed time.Duration
	Polls   int
}

// 🎮 Controller runs the submit, poll and postprocess loop. It is not
// reentrant; use one Controller per job.
type Controller struct {
	opts Options

	mu    sync.Mutex
	state State
	start time.Time
}

// 🏭 NewController fills in defaults
func NewController(opts Options) (*Controller, error) {
	if opts.Service == nil {
		return nil, errors.New("translation service is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("pipeline is required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	return &Controller{opts: opts, state: StateNotStarted}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) log(ctx context.Context) *zerolog.Logger {
	if c.opts.Logger != nil {
		return c.opts.Logger
	}
	return zerolog.Ctx(ctx)
}

func (c *Controller) elapsed() time.Duration {
	return c.opts.Now().Sub(c.start)
}

func (c *Controller) transition(ctx context.Context, next State) error {
	c.mu.Lock()
	prev := c.state
	if !prev.CanTransition(next) {
		c.mu.Unlock()
		return errors.Errorf("invalid job transition %s -> %s", prev, next)
	}
	c.state = next
	c.mu.Unlock()

	if prev != next {
		c.log(ctx).Info().
			Str("from", prev.String()).
			Str("to", next.String()).
			Dur("elapsed", c.elapsed()).
			Msg("job state changed")
	}
	return nil
}

// 🏃 Run submits the job, polls until it finishes or times out, and then
// postprocesses. A timeout is reported through Result and is not an error.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	if c.State() != StateNotStarted {
		return Result{}, errors.Errorf("controller already used, state %s", c.State())
	}

	c.start = c.opts.Now()
	res := Result{}

	name, err := c.opts.Service.Submit(ctx, c.opts.Request)
	if err != nil {
		return res, errors.Errorf("submitting translation job: %w", err)
	}
	res.Name = name

	if err := c.transition(ctx, StateSubmitted); err != nil {
		return res, err
	}
	c.log(ctx).Info().Str("job", name).Msg("translation job submitted")

	for !c.State().IsTerminal() {
		if c.elapsed() >= c.opts.Timeout {
			if err := c.transition(ctx, StateTimedOut); err != nil {
				return res, err
			}
			break
		}

		if err := c.opts.Sleep(ctx, c.opts.PollInterval); err != nil {
			return c.finish(res), errors.Errorf("waiting for job %s: %w", name, err)
		}

		res.Polls++
		remote, err := c.opts.Service.Status(ctx, name)
		if err != nil {
			c.log(ctx).Warn().Err(err).Str("job", name).Int("poll", res.Polls).Msg("polling job status failed, retrying")
			continue
		}

		c.log(ctx).Debug().Str("job", name).Str("remote_state", remote.String()).Dur("elapsed", c.elapsed()).Msg("polled job")
		if err := c.transition(ctx, remote.local()); err != nil {
			return res, err
		}
	}

	res = c.finish(res)

	if res.State == StateTimedOut {
		ev := c.log(ctx).Warn().Str("job", name).Dur("timeout", c.opts.Timeout)
		if c.opts.UILink != "" {
			ev = ev.Str("link", c.opts.UILink)
		}
		ev.Msg("translation job did not finish in time, check its status and download results manually")
		return res, nil
	}

	if err := c.opts.Pipeline.Postprocess(ctx); err != nil {
		return res, errors.Errorf("postprocessing job %s: %w", name, err)
	}

	c.log(ctx).Info().Str("job", name).Str("state", res.State.String()).Dur("elapsed", c.elapsed()).Msg("translation finished")
	return c.finish(res), nil
}

func (c *Controller) finish(res Result) Result {
	res.State = c.State()
	res.Elapsed = c.elapsed()
	return res
}
