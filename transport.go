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

// TransmitStatus is the outcome a transport reports for one frame.
type TransmitStatus int

const (
	// TransmitOK means a response frame was received.
	TransmitOK TransmitStatus = iota
	// TransmitError means the frame could not be exchanged.
	TransmitError
	// TransmitTimeout means the tag did not answer in time.
	TransmitTimeout
)

func (s TransmitStatus) String() string {
	switch s {
	case TransmitOK:
		return "ok"
	case TransmitError:
		return "error"
	case TransmitTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// TransmitFunc receives the single completion of an accepted Transmit.
type TransmitFunc func(status TransmitStatus, resp []byte)

// Transport moves ISO-DEP frames to and from an activated tag.
//
// Transmit returns false when the frame is declined outright; done is then
// never called. Otherwise done is called exactly once, later, from the
// goroutine that owns the tag. CancelTransmit aborts the pending frame and
// suppresses its completion.
type Transport interface {
	Transmit(data []byte, done TransmitFunc) bool
	CancelTransmit()
}

// Reactivator is implemented by transports that can re-run ISO-DEP
// activation on the current tag. Reactivate returns false if it will not
// start; otherwise done is called once when the tag is active again.
type Reactivator interface {
	Reactivate(done func()) bool
}

// Dispatcher serializes callbacks onto the goroutine that owns the tags.
// Post returns false if the dispatcher no longer runs callbacks.
type Dispatcher interface {
	Post(fn func()) bool
}

// CanReactivate reports whether t advertises reactivation.
func CanReactivate(t Transport) bool {
	_, ok := t.(Reactivator)
	return ok
}
