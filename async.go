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

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Exchanger performs one blocking ISO-DEP exchange with the active tag.
// Reader backends implement it; NewAsyncTransport turns it into a Transport.
type Exchanger interface {
	Exchange(ctx context.Context, frame []byte) ([]byte, error)
}

// Reselector is implemented by exchangers that can deselect and select the
// current tag again.
type Reselector interface {
	Reselect(ctx context.Context) error
}

// ErrNilDispatcher is returned when an async transport has nowhere to post
// its completions.
var ErrNilDispatcher = errors.New("nil dispatcher")

// AsyncTransport runs a blocking Exchanger on a worker goroutine and posts
// each completion through a Dispatcher, so tags only ever see completions on
// the dispatcher's goroutine.
type AsyncTransport struct {
	ex         Exchanger
	dispatcher Dispatcher
	cancel     context.CancelFunc
	timeout    time.Duration
	linkMu     sync.Mutex // held for the duration of each blocking call
	mu         sync.Mutex
	gen        uint64
	busy       bool
	closed     bool
}

// reactivatingTransport adds Reactivator when the exchanger can reselect.
type reactivatingTransport struct {
	*AsyncTransport
	reselector Reselector
}

// NewAsyncTransport wraps ex. The result implements Reactivator only when ex
// implements Reselector. A zero timeout leaves timing to the exchanger.
func NewAsyncTransport(ex Exchanger, d Dispatcher, timeout time.Duration) (Transport, error) {
	if ex == nil {
		return nil, ErrNilTransport
	}
	if d == nil {
		return nil, ErrNilDispatcher
	}
	a := &AsyncTransport{ex: ex, dispatcher: d, timeout: timeout}
	if r, ok := ex.(Reselector); ok {
		return &reactivatingTransport{AsyncTransport: a, reselector: r}, nil
	}
	return a, nil
}

// begin claims the transport for one operation.
func (a *AsyncTransport) begin() (ctx context.Context, gen uint64, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.busy || a.closed {
		return nil, 0, false
	}
	a.busy = true
	a.gen++
	ctx = context.Background()
	var cancel context.CancelFunc
	if a.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	a.cancel = cancel
	return ctx, a.gen, true
}

// end releases the transport if gen is still the current operation.
func (a *AsyncTransport) end(gen uint64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.busy || a.gen != gen {
		return false
	}
	a.busy = false
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	return true
}

// dropCompletion frees the transport when the dispatcher refused the
// completion of operation gen.
func (a *AsyncTransport) dropCompletion(gen uint64) {
	Logger().Warn().Str("component", "type4").Uint64("op", gen).Msg("dispatcher closed, completion dropped")
	a.end(gen)
}

// Transmit implements Transport.
func (a *AsyncTransport) Transmit(data []byte, done TransmitFunc) bool {
	ctx, gen, ok := a.begin()
	if !ok {
		return false
	}
	frame := append([]byte(nil), data...)

	go func() {
		a.linkMu.Lock()
		resp, err := a.ex.Exchange(ctx, frame)
		a.linkMu.Unlock()

		status := TransmitOK
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			status = TransmitTimeout
		case err != nil:
			status = TransmitError
		}
		if err != nil {
			debugf("exchange failed: %v", err)
		}

		posted := a.dispatcher.Post(func() {
			if a.end(gen) && done != nil {
				done(status, resp)
			}
		})
		if !posted {
			a.dropCompletion(gen)
		}
	}()
	return true
}

// CancelTransmit implements Transport. The worker may still be blocked in
// the exchanger; its result is dropped and the next operation waits for it.
func (a *AsyncTransport) CancelTransmit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.busy {
		return
	}
	a.busy = false
	a.gen++
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

// Close cancels any pending operation and declines further ones.
func (a *AsyncTransport) Close() error {
	a.CancelTransmit()
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return nil
}

// Reactivate implements Reactivator.
func (r *reactivatingTransport) Reactivate(done func()) bool {
	ctx, gen, ok := r.begin()
	if !ok {
		return false
	}
	go func() {
		r.linkMu.Lock()
		err := r.reselector.Reselect(ctx)
		r.linkMu.Unlock()
		if err != nil {
			debugf("reselect failed: %v", err)
		}
		posted := r.dispatcher.Post(func() {
			if r.end(gen) && done != nil {
				done()
			}
		})
		if !posted {
			r.dropCompletion(gen)
		}
	}()
	return true
}
