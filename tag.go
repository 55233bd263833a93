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

package type4

// HandlerID identifies a registered initialized handler.
type HandlerID uint64

type handler struct {
	fn func(*Tag)
	id HandlerID
}

// Tag is an activated Type 4 tag. NewTag starts NDEF discovery at once;
// the tag becomes initialized when discovery resolves, whether or not an
// NDEF message was found.
//
// A Tag is not safe for concurrent use. All methods, and all transport
// completions, must run on the same goroutine (see eventloop.Loop).
type Tag struct {
	transport   Transport
	transceiver *Transceiver
	activation  Activation
	parser      NDEFParser
	ndef        *NDEF
	discovery   *discovery
	handlers    []handler
	nextID      HandlerID
	frameSize   int
	initialized bool
	closed      bool
}

// NewTag wraps an activated tag reachable through transport.
func NewTag(transport Transport, params Activation, opts ...Option) (*Tag, error) {
	if transport == nil {
		return nil, ErrNilTransport
	}
	if isNilActivation(params) {
		return nil, ErrNilParams
	}

	t := &Tag{
		transport:   transport,
		transceiver: NewTransceiver(transport),
		activation:  params,
		frameSize:   params.FrameSize(),
		parser:      DefaultNDEFParser,
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}

	t.startDiscovery()
	return t, nil
}

// NewTypeA wraps an ISO 14443-4A tag.
func NewTypeA(transport Transport, params *IsoDepPollA, opts ...Option) (*Tag, error) {
	return NewTag(transport, params, opts...)
}

// NewTypeB wraps an ISO 14443-4B tag.
func NewTypeB(transport Transport, params *PollB, opts ...Option) (*Tag, error) {
	return NewTag(transport, params, opts...)
}

func isNilActivation(a Activation) bool {
	switch p := a.(type) {
	case nil:
		return true
	case *IsoDepPollA:
		return p == nil
	case *PollB:
		return p == nil
	default:
		return false
	}
}

// Technology reports how the tag was activated.
func (t *Tag) Technology() Technology {
	if t == nil {
		return TechnologyUnknown
	}
	return t.activation.Technology()
}

// Activation returns the parameters the tag was created with.
func (t *Tag) Activation() Activation {
	if t == nil {
		return nil
	}
	return t.activation
}

// FrameSize is the ISO-DEP frame size used to bound READ BINARY.
func (t *Tag) FrameSize() int {
	if t == nil {
		return 0
	}
	return t.frameSize
}

// Initialized reports whether NDEF discovery has finished.
func (t *Tag) Initialized() bool {
	return t != nil && t.initialized
}

// NDEF returns the tag's NDEF content, or nil when it has none.
func (t *Tag) NDEF() *NDEF {
	if t == nil {
		return nil
	}
	return t.ndef
}

// State returns the discovery step in progress.
func (t *Tag) State() DiscoveryState {
	if t == nil || t.discovery == nil {
		if t != nil && t.initialized {
			return StateResolved
		}
		return StateNotStarted
	}
	return t.discovery.state
}

// AddInitializedHandler registers fn to run once discovery resolves. It
// returns zero if fn is nil.
func (t *Tag) AddInitializedHandler(fn func(*Tag)) HandlerID {
	if t == nil || fn == nil {
		return 0
	}
	t.nextID++
	t.handlers = append(t.handlers, handler{id: t.nextID, fn: fn})
	return t.nextID
}

// RemoveHandler unregisters a handler.
func (t *Tag) RemoveHandler(id HandlerID) bool {
	if t == nil || id == 0 {
		return false
	}
	for i, h := range t.handlers {
		if h.id == id {
			t.handlers = append(t.handlers[:i], t.handlers[i+1:]...)
			return true
		}
	}
	return false
}

// Submit sends one APDU to the tag. It fails with ErrBusy while discovery or
// another exchange is in flight.
func (t *Tag) Submit(cmd *Command, done ResponseFunc, cleanup func()) (*Exchange, error) {
	if t == nil {
		return nil, ErrNilTag
	}
	if t.closed {
		return nil, ErrTagClosed
	}
	if t.discovery != nil {
		return nil, ErrBusy
	}
	return t.transceiver.Submit(cmd, done, cleanup)
}

// Transmit is the one-shot APDU primitive. le is the expected response
// length, zero for none.
func (t *Tag) Transmit(cla, ins, p1, p2 byte, data []byte, le int,
	done ResponseFunc, cleanup func(),
) (*Exchange, error) {
	return t.Submit(&Command{
		Class:       cla,
		Instruction: ins,
		P1:          p1,
		P2:          p2,
		Data:        data,
		Le:          le,
	}, done, cleanup)
}

// Cancel aborts an exchange started with Submit or Transmit.
func (t *Tag) Cancel(ex *Exchange) bool {
	if t == nil {
		return false
	}
	return t.transceiver.Cancel(ex)
}

// Close abandons discovery and cancels any exchange in flight. A tag that
// had not finished discovery stays uninitialized.
func (t *Tag) Close() {
	if t == nil || t.closed {
		return
	}
	t.closed = true
	t.discovery = nil
	t.transceiver.CancelPending()
	t.handlers = nil
}

func (t *Tag) markInitialized() {
	if t.initialized {
		return
	}
	t.initialized = true
	handlers := append([]handler(nil), t.handlers...)
	for _, h := range handlers {
		h.fn(t)
	}
}
