// go-type4
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-type4.
//
// go-type4 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-type4 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-type4; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package polling

import (
	"errors"
	"time"
)

// CardDetectionState is where the monitor is with the tag in the field.
type CardDetectionState int

const (
	StateIdle CardDetectionState = iota
	StateTagDetected
	// StateDiscovering holds the removal timer while NDEF discovery runs.
	StateDiscovering
	StatePostReadGrace
)

func (s CardDetectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTagDetected:
		return "detected"
	case StateDiscovering:
		return "discovering"
	case StatePostReadGrace:
		return "post-read grace"
	default:
		return "unknown"
	}
}

// CardState tracks the tag currently on the reader.
type CardState struct {
	LastSeenTime     time.Time
	DiscoveryStarted time.Time
	RemovalTimer     *time.Timer
	LastUID          string
	LastTechnology   string
	DetectionState   CardDetectionState
	Present          bool
}

// ErrNoTagInPoll means the field was empty. It is not a failure.
var ErrNoTagInPoll = errors.New("no tag detected in polling cycle")

// stopTimer stops an AfterFunc timer. AfterFunc timers never send on C,
// so there is nothing to drain.
func stopTimer(timer *time.Timer) {
	if timer != nil {
		timer.Stop()
	}
}

// TransitionToDiscovering suspends the removal timer while discovery runs.
func (cs *CardState) TransitionToDiscovering() {
	cs.DetectionState = StateDiscovering
	cs.DiscoveryStarted = time.Now()
	stopTimer(cs.RemovalTimer)
	cs.RemovalTimer = nil
}

// TransitionToPostReadGrace rearms the removal timer with half the normal
// timeout once discovery has resolved.
func (cs *CardState) TransitionToPostReadGrace(timeout time.Duration, callback func()) {
	cs.DetectionState = StatePostReadGrace
	stopTimer(cs.RemovalTimer)
	cs.RemovalTimer = time.AfterFunc(timeout/2, callback)
}

// TransitionToDetected records a sighting and rearms the removal timer.
func (cs *CardState) TransitionToDetected(timeout time.Duration, callback func()) {
	cs.DetectionState = StateTagDetected
	cs.LastSeenTime = time.Now()
	stopTimer(cs.RemovalTimer)
	cs.RemovalTimer = time.AfterFunc(timeout, callback)
}

// TransitionToIdle forgets the tag.
func (cs *CardState) TransitionToIdle() {
	stopTimer(cs.RemovalTimer)
	*cs = CardState{}
}

// CanStartRemovalTimer reports whether removal may be timed in this state.
func (cs *CardState) CanStartRemovalTimer() bool {
	return cs.DetectionState == StateTagDetected || cs.DetectionState == StatePostReadGrace
}
