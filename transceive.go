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

// ResponseFunc receives the status word and body of a finished exchange.
// The status is SWIOError when nothing usable came back.
type ResponseFunc func(sw StatusWord, data []byte)

// Exchange is one submitted APDU. It is finished after it completes or is
// cancelled and is never reused.
type Exchange struct {
	owner   *Transceiver
	done    ResponseFunc
	cleanup func()
	frame   []byte
	settled bool
}

// Finished reports whether the exchange completed or was cancelled.
func (e *Exchange) Finished() bool {
	return e == nil || e.settled
}

// Frame returns the encoded command.
func (e *Exchange) Frame() []byte {
	if e == nil {
		return nil
	}
	return e.frame
}

// settle fires done (if asked to) and then cleanup. It runs at most once.
func (e *Exchange) settle(notify bool, sw StatusWord, data []byte) {
	if e.settled {
		return
	}
	done := e.done
	cleanup := e.detach()
	if notify && done != nil {
		done(sw, data)
	}
	if cleanup != nil {
		cleanup()
	}
}

// detach marks e finished, frees its transceiver slot and returns the
// cleanup still owed.
func (e *Exchange) detach() func() {
	e.settled = true
	if e.owner != nil && e.owner.pending == e {
		e.owner.pending = nil
	}
	cleanup := e.cleanup
	e.done, e.cleanup = nil, nil
	return cleanup
}

// Transceiver tracks at most one in-flight APDU on a transport. It must be
// driven from a single goroutine.
type Transceiver struct {
	transport Transport
	pending   *Exchange
}

// NewTransceiver binds a transceiver to t.
func NewTransceiver(t Transport) *Transceiver {
	return &Transceiver{transport: t}
}

// Busy reports whether an exchange is in flight.
func (x *Transceiver) Busy() bool {
	return x != nil && x.pending != nil
}

// Submit encodes cmd and hands it to the transport. Submission errors are
// returned without touching the transport. If the transport declines the
// frame, done runs before Submit returns with SWIOError. cleanup, when set,
// runs exactly once after done, or on cancellation.
func (x *Transceiver) Submit(cmd *Command, done ResponseFunc, cleanup func()) (*Exchange, error) {
	if x == nil || x.transport == nil {
		return nil, ErrNilTransport
	}
	if cmd == nil {
		return nil, ErrNilCommand
	}
	if x.pending != nil {
		return nil, ErrBusy
	}
	frame, err := cmd.Bytes()
	if err != nil {
		return nil, err
	}

	ex := &Exchange{owner: x, frame: frame, done: done, cleanup: cleanup}
	x.pending = ex
	debugf("C-APDU % X", frame)

	accepted := x.transport.Transmit(frame, func(status TransmitStatus, resp []byte) {
		if ex.settled {
			return
		}
		if status != TransmitOK {
			debugf("R-APDU transmit %s", status)
			ex.settle(true, SWIOError, []byte{})
			return
		}
		r := ParseResponse(resp)
		debugf("R-APDU % X", resp)
		ex.settle(true, r.Status, r.Data)
	})
	if !accepted && !ex.settled {
		debugln("transport declined frame")
		ex.settle(true, SWIOError, []byte{})
	}
	return ex, nil
}

// Cancel aborts ex. done will not be called after Cancel returns; cleanup
// runs now if it has not run yet. It returns false if ex was not pending on x.
func (x *Transceiver) Cancel(ex *Exchange) bool {
	if x == nil || ex == nil || ex.owner != x || ex.settled {
		return false
	}
	inFlight := x.pending == ex
	cleanup := ex.detach()
	// ex is settled before the transport hears about it, so a transport
	// that completes the aborted frame from CancelTransmit is ignored.
	if inFlight && x.transport != nil {
		x.transport.CancelTransmit()
	}
	if cleanup != nil {
		cleanup()
	}
	return true
}

// CancelPending cancels whatever exchange is in flight.
func (x *Transceiver) CancelPending() bool {
	if x == nil {
		return false
	}
	return x.Cancel(x.pending)
}
