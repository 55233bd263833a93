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

import "errors"

// Submission errors. These are returned synchronously and never reach the
// transport.
var (
	ErrNilTag       = errors.New("nil tag")
	ErrNilTransport = errors.New("nil transport")
	ErrNilCommand   = errors.New("nil command")
	ErrNilParams    = errors.New("nil activation parameters")
	ErrLeTooLarge   = errors.New("expected response length out of range")
	ErrDataTooLarge = errors.New("command data too large")
	ErrBusy         = errors.New("exchange already in flight")
	ErrTagClosed    = errors.New("tag closed")
)

// Capability container errors. All of them wrap ErrInvalidCC.
var (
	ErrInvalidCC       = errors.New("invalid capability container")
	ErrCCLength        = errors.New("capability container has wrong length")
	ErrCCVersion       = errors.New("unsupported mapping version")
	ErrCCMaxReadLength = errors.New("MLe too small")
	ErrCCFileControl   = errors.New("NDEF file control TLV malformed")
	ErrCCFileID        = errors.New("reserved NDEF file identifier")
	ErrCCReadAccess    = errors.New("NDEF file not readable")
)

// ErrNDEFEmpty is returned by parsers for a zero-length message.
var ErrNDEFEmpty = errors.New("empty NDEF message")
