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

// 🚦 State is where a translation job is in its lifecycle
type State int

const (
	StateNotStarted State = iota
	StateSubmitted
	StateRunning
	StateCompleted
	StatePaused
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateSubmitted:
		return "submitted"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StatePaused:
		return "paused"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StatePaused || s == StateTimedOut
}

// IsSuccess reports whether results are ready to download.
func (s State) IsSuccess() bool {
	return s == StateCompleted || s == StatePaused
}

var transitions = map[State][]State{
	StateNotStarted: {StateSubmitted},
	StateSubmitted:  {StateRunning, StateCompleted, StatePaused, StateTimedOut},
	StateRunning:    {StateRunning, StateCompleted, StatePaused, StateTimedOut},
}

// CanTransition reports whether moving from s to next is allowed.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// 🛰️ RemoteState is the status reported by the translation service
type RemoteState int

const (
	RemoteUnknown RemoteState = iota
	RemoteDraft
	RemoteRunning
	RemotePaused
	RemoteCompleted
)

func (s RemoteState) String() string {
	switch s {
	case RemoteDraft:
		return "DRAFT"
	case RemoteRunning:
		return "RUNNING"
	case RemotePaused:
		return "PAUSED"
	case RemoteCompleted:
		return "COMPLETED"
	default:
		return "STATE_UNSPECIFIED"
	}
}

// local maps a remote status onto the controller's state machine
func (s RemoteState) local() State {
	switch s {
	case RemoteCompleted:
		return StateCompleted
	case RemotePaused:
		return StatePaused
	default:
		return StateRunning
	}
}
