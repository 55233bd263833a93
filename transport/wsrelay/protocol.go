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

// Package wsrelay carries ISO-DEP frames over a WebSocket, so a tag held by
// one process can be driven by the discovery core running in another.
//
// The reader side serves a Handler around any type4.Exchanger. The host side
// dials it with Dial and gets a type4.Transport that also implements
// type4.Reactivator.
package wsrelay

import (
	"errors"

	type4 "github.com/ZaparooProject/go-type4"
)

// MessageType names a relay message.
type MessageType string

const (
	TypeTransmit   MessageType = "transmit"
	TypeReactivate MessageType = "reactivate"
	TypeResult     MessageType = "result"
)

// Result statuses.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Message is the single JSON envelope used in both directions. Requests
// carry a fresh ID and results echo it.
type Message struct {
	ID     string      `json:"id"`
	Type   MessageType `json:"type"`
	Status string      `json:"status,omitempty"`
	Error  string      `json:"error,omitempty"`
	Data   []byte      `json:"data,omitempty"`
}

var (
	ErrClosed          = errors.New("relay closed")
	ErrUnknownType     = errors.New("unknown message type")
	ErrMissingID       = errors.New("message without id")
	ErrNoReselect      = errors.New("reader cannot reselect")
	ErrUnexpectedReply = errors.New("unexpected reply")
)

func transmitStatus(s string) type4.TransmitStatus {
	switch s {
	case StatusOK:
		return type4.TransmitOK
	case StatusTimeout:
		return type4.TransmitTimeout
	default:
		return type4.TransmitError
	}
}
