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
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	type4 "github.com/ZaparooProject/go-type4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const defaultExchangeTimeout = 2 * time.Second

// Handler serves one reader to WebSocket clients. Exchanges from all
// connections are serialized onto the exchanger.
type Handler struct {
	ex       type4.Exchanger
	upgrader websocket.Upgrader
	timeout  time.Duration
	mu       sync.Mutex
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithExchangeTimeout bounds each exchange and reselect.
func WithExchangeTimeout(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.timeout = d
		}
	}
}

// WithCheckOrigin replaces the upgrader's origin check.
func WithCheckOrigin(fn func(*http.Request) bool) HandlerOption {
	return func(h *Handler) {
		h.upgrader.CheckOrigin = fn
	}
}

// NewHandler serves ex. Reactivate requests succeed only when ex also
// implements type4.Reselector.
func NewHandler(ex type4.Exchanger, opts ...HandlerOption) *Handler {
	h := &Handler{
		ex:      ex,
		timeout: defaultExchangeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and answers relay messages until the
// client goes away.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("wsrelay: upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()
	log.Debug().Str("remote", r.RemoteAddr).Msg("wsrelay: client connected")

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("wsrelay: read failed")
			}
			return
		}
		reply := h.handle(r.Context(), &msg)
		if err := conn.WriteJSON(reply); err != nil {
			log.Warn().Err(err).Msg("wsrelay: write failed")
			return
		}
	}
}

func (h *Handler) handle(ctx context.Context, msg *Message) *Message {
	reply := &Message{ID: msg.ID, Type: TypeResult}
	if msg.ID == "" {
		reply.Status, reply.Error = StatusError, ErrMissingID.Error()
		return reply
	}

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	h.mu.Lock()
	defer h.mu.Unlock()

	var err error
	switch msg.Type {
	case TypeTransmit:
		reply.Data, err = h.ex.Exchange(ctx, msg.Data)
	case TypeReactivate:
		rs, ok := h.ex.(type4.Reselector)
		if !ok {
			err = ErrNoReselect
			break
		}
		err = rs.Reselect(ctx)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownType, msg.Type)
	}

	switch {
	case err == nil:
		reply.Status = StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		reply.Status, reply.Error = StatusTimeout, err.Error()
		reply.Data = nil
	default:
		reply.Status, reply.Error = StatusError, err.Error()
		reply.Data = nil
	}
	log.Debug().Str("id", msg.ID).Str("type", string(msg.Type)).
		Str("status", reply.Status).Int("len", len(reply.Data)).Msg("wsrelay: handled")
	return reply
}
