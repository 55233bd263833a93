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

package testing

import (
	"bytes"
	"fmt"

	type4 "github.com/ZaparooProject/go-type4"
)

// Step is one expected command and the response the transport answers with.
// A nil Response makes the transport report a transmission error.
type Step struct {
	Command  []byte
	Response []byte
}

// ScriptedTransport answers each transmitted frame from a fixed script.
// Completions are posted to the dispatcher, never delivered inside
// Transmit. A frame that does not match the next step, or arrives after the
// script ran out, completes with TransmitError and is recorded in
// Mismatches.
type ScriptedTransport struct {
	dispatcher type4.Dispatcher
	Steps      []Step
	Sent       [][]byte
	Mismatches []string
	// FailTransmit makes the n-th Transmit call (1-based) decline.
	FailTransmit int
	Transmits    int
	Cancels      int
	pending      uint64
	gen          uint64
}

// NewScriptedTransport creates a transport posting completions to d.
func NewScriptedTransport(d type4.Dispatcher, steps ...Step) *ScriptedTransport {
	return &ScriptedTransport{dispatcher: d, Steps: steps}
}

// Expect appends a step.
func (s *ScriptedTransport) Expect(cmd, resp []byte) *ScriptedTransport {
	s.Steps = append(s.Steps, Step{Command: cmd, Response: resp})
	return s
}

// Remaining is the number of steps not consumed yet.
func (s *ScriptedTransport) Remaining() int {
	return len(s.Steps)
}

// Transmit implements type4.Transport.
func (s *ScriptedTransport) Transmit(data []byte, done type4.TransmitFunc) bool {
	s.Transmits++
	if s.FailTransmit > 0 && s.Transmits == s.FailTransmit {
		return false
	}
	frame := append([]byte(nil), data...)
	s.Sent = append(s.Sent, frame)

	s.gen++
	gen := s.gen
	s.pending = gen
	return s.dispatcher.Post(func() {
		if s.pending != gen {
			return
		}
		s.pending = 0
		status, resp := s.answer(frame)
		done(status, resp)
	})
}

func (s *ScriptedTransport) answer(frame []byte) (type4.TransmitStatus, []byte) {
	if len(s.Steps) == 0 {
		s.Mismatches = append(s.Mismatches, fmt.Sprintf("unexpected % X", frame))
		return type4.TransmitError, nil
	}
	step := s.Steps[0]
	s.Steps = s.Steps[1:]
	if !bytes.Equal(step.Command, frame) {
		s.Mismatches = append(s.Mismatches,
			fmt.Sprintf("expected % X, got % X", step.Command, frame))
		return type4.TransmitError, nil
	}
	if step.Response == nil {
		return type4.TransmitError, nil
	}
	return type4.TransmitOK, append([]byte(nil), step.Response...)
}

// CancelTransmit implements type4.Transport.
func (s *ScriptedTransport) CancelTransmit() {
	s.Cancels++
	s.pending = 0
}

// ReactivatingTransport is a ScriptedTransport that also implements
// type4.Reactivator.
type ReactivatingTransport struct {
	*ScriptedTransport
	// FailReactivate makes every Reactivate call decline.
	FailReactivate bool
	Reactivations  int
}

// NewReactivatingTransport creates a scripted transport that supports
// reactivation.
func NewReactivatingTransport(d type4.Dispatcher, steps ...Step) *ReactivatingTransport {
	return &ReactivatingTransport{ScriptedTransport: NewScriptedTransport(d, steps...)}
}

// Reactivate implements type4.Reactivator.
func (r *ReactivatingTransport) Reactivate(done func()) bool {
	r.Reactivations++
	if r.FailReactivate {
		return false
	}
	return r.dispatcher.Post(done)
}

var (
	_ type4.Transport   = (*ScriptedTransport)(nil)
	_ type4.Reactivator = (*ReactivatingTransport)(nil)
)
