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

package wsrelay

import (
	"context"
	"fmt"
	"sync"
	"time"

	type4 "github.com/ZaparooProject/go-type4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type request struct {
	transmit   type4.TransmitFunc
	reactivate func()
	id         string
}

// Client is a type4.Transport backed by a remote Handler. Completions are
// posted through the dispatcher given to Dial.
type Client struct {
	conn       *websocket.Conn
	dispatcher type4.Dispatcher
	pending    *request
	done       chan struct{}
	writeMu    sync.Mutex
	mu         sync.Mutex
	closed     bool
}

var (
	_ type4.Transport   = (*Client)(nil)
	_ type4.Reactivator = (*Client)(nil)
)

// Dial connects to a relay Handler at url (ws:// or wss://).
func Dial(ctx context.Context, url string, d type4.Dispatcher) (*Client, error) {
	if d == nil {
		return nil, type4.ErrNilDispatcher
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("wsrelay: dial %s: %w", url, err)
	}
	return NewClient(conn, d), nil
}

// NewClient takes over an established connection.
func NewClient(conn *websocket.Conn, d type4.Dispatcher) *Client {
	c := &Client{
		conn:       conn,
		dispatcher: d,
		done:       make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Transmit implements type4.Transport.
func (c *Client) Transmit(data []byte, done type4.TransmitFunc) bool {
	req := &request{id: uuid.NewString(), transmit: done}
	return c.send(&Message{ID: req.id, Type: TypeTransmit, Data: data}, req)
}

// Reactivate implements type4.Reactivator. A reader that cannot reselect
// still completes the request, so discovery carries on.
func (c *Client) Reactivate(done func()) bool {
	req := &request{id: uuid.NewString(), reactivate: done}
	return c.send(&Message{ID: req.id, Type: TypeReactivate}, req)
}

// CancelTransmit implements type4.Transport. A late reply is dropped.
func (c *Client) CancelTransmit() {
	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
}

// Close ends the session. Pending work is dropped without a completion.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.pending = nil
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.conn.Close()
}

// Done is closed when the connection has gone away.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) send(msg *Message, req *request) bool {
	c.mu.Lock()
	if c.closed || c.pending != nil {
		c.mu.Unlock()
		return false
	}
	c.pending = req
	c.mu.Unlock()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		log.Warn().Err(err).Str("id", req.id).Msg("wsrelay: send failed")
		c.mu.Lock()
		if c.pending == req {
			c.pending = nil
		}
		c.mu.Unlock()
		return false
	}
	return true
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			c.fail(err)
			return
		}
		if msg.Type != TypeResult {
			log.Warn().Str("type", string(msg.Type)).Msg("wsrelay: ignoring message")
			continue
		}
		c.mu.Lock()
		req := c.pending
		c.mu.Unlock()
		if req == nil || req.id != msg.ID {
			log.Debug().Str("id", msg.ID).Msg("wsrelay: stale reply")
			continue
		}
		if msg.Error != "" {
			log.Debug().Str("id", msg.ID).Str("error", msg.Error).Msg("wsrelay: remote error")
		}
		status, data := transmitStatus(msg.Status), msg.Data
		c.dispatcher.Post(func() { c.settle(req, status, data) })
	}
}

// fail completes any pending request with an error once the connection is
// gone.
func (c *Client) fail(err error) {
	c.mu.Lock()
	wasClosed := c.closed
	c.closed = true
	req := c.pending
	c.mu.Unlock()
	if !wasClosed {
		log.Warn().Err(err).Msg("wsrelay: connection lost")
	}
	if req != nil {
		c.dispatcher.Post(func() { c.settle(req, type4.TransmitError, nil) })
	}
}

func (c *Client) settle(req *request, status type4.TransmitStatus, data []byte) {
	c.mu.Lock()
	if c.pending != req {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.mu.Unlock()

	switch {
	case req.transmit != nil:
		req.transmit(status, data)
	case req.reactivate != nil:
		req.reactivate()
	}
}
