// Copyright 2025 Poiesic Systems
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


package adapter

import (
	"context"
	"sync"
	"sync/atomic"
)

// DependencyState is the resolved state of an adapter's backing dependency.
type DependencyState int32

const (
	// StateUnresolved means the dependency has not been probed yet.
	StateUnresolved DependencyState = iota
	// StateAvailable means the probe succeeded and no call has failed since.
	StateAvailable
	// StateUnavailable means a probe or call failed. It is never left.
	StateUnavailable
	// StateOffline means no connection was configured. It is never left.
	StateOffline
)

// String returns the lowercase name used in logs and health reports.
func (s DependencyState) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateAvailable:
		return "available"
	case StateUnavailable:
		return "unavailable"
	case StateOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s DependencyState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Usable reports whether calls against the dependency should be attempted.
func (s DependencyState) Usable() bool {
	return s == StateAvailable
}

// DependencyHandle tracks the fail-once state of one dependency.
// The zero value is unresolved. A handle is safe for concurrent use.
type DependencyHandle struct {
	state   atomic.Int32
	resolve sync.Mutex
}

// NewOfflineHandle returns a handle that is already offline.
func NewOfflineHandle() *DependencyHandle {
	h := &DependencyHandle{}
	h.state.Store(int32(StateOffline))
	return h
}

// State returns the current state without probing.
func (h *DependencyHandle) State() DependencyState {
	return DependencyState(h.state.Load())
}

// Resolve runs probe the first time it is called and memoizes the outcome.
// Later calls return the current state without probing again.
//
// A probe that fails after ctx was canceled is not memoized: the caller went
// away, the dependency did not fail. That call sees StateUnavailable and the
// next call probes again.
func (h *DependencyHandle) Resolve(ctx context.Context, probe func(ctx context.Context) error) DependencyState {
	if s := h.State(); s != StateUnresolved {
		return s
	}
	if ctx.Err() != nil && probe != nil {
		return StateUnavailable
	}

	h.resolve.Lock()
	defer h.resolve.Unlock()

	if s := h.State(); s != StateUnresolved {
		return s
	}

	next := StateAvailable
	if probe == nil {
		next = StateOffline
	} else if err := probe(ctx); err != nil {
		if ctx.Err() != nil {
			return StateUnavailable
		}
		next = StateUnavailable
	}
	h.state.CompareAndSwap(int32(StateUnresolved), int32(next))
	return h.State()
}

// Trip moves an available (or still unresolved) dependency to unavailable.
// It reports whether this call made the transition, so callers can log once.
func (h *DependencyHandle) Trip() bool {
	if h.state.CompareAndSwap(int32(StateAvailable), int32(StateUnavailable)) {
		return true
	}
	return h.state.CompareAndSwap(int32(StateUnresolved), int32(StateUnavailable))
}
