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

import "fmt"

// StatusWord is the SW1||SW2 trailer of an APDU response. It is wider than
// 16 bits so that SWIOError can live outside the range the wire can produce.
type StatusWord uint32

// Status words seen during discovery and by one-shot callers.
const (
	SWSuccess          StatusWord = 0x9000
	SWWrongLength      StatusWord = 0x6700
	SWSecurityStatus   StatusWord = 0x6982
	SWWrongParameters  StatusWord = 0x6A00
	SWFileNotFound     StatusWord = 0x6A82
	SWIncorrectP1P2    StatusWord = 0x6A86
	SWInsNotSupported  StatusWord = 0x6D00
	SWClassUnsupported StatusWord = 0x6E00

	// SWIOError reports that no response was obtained at all: the transport
	// declined the frame, failed, returned fewer than two bytes, or the
	// exchange was cancelled.
	SWIOError StatusWord = 0x10000
)

var statusNames = map[StatusWord]string{
	SWSuccess:          "success",
	SWWrongLength:      "wrong length",
	SWSecurityStatus:   "security status not satisfied",
	SWWrongParameters:  "wrong parameters",
	SWFileNotFound:     "file or application not found",
	SWIncorrectP1P2:    "incorrect P1-P2",
	SWInsNotSupported:  "instruction not supported",
	SWClassUnsupported: "class not supported",
}

// NewStatusWord builds a status word from its two trailer bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(sw1)<<8 | StatusWord(sw2)
}

// SW1 returns the high byte.
func (sw StatusWord) SW1() byte { return byte(sw >> 8) }

// SW2 returns the low byte.
func (sw StatusWord) SW2() byte { return byte(sw) }

// IsSuccess reports whether sw is 0x9000.
func (sw StatusWord) IsSuccess() bool { return sw == SWSuccess }

// IsIOError reports whether sw is the transport failure sentinel.
func (sw StatusWord) IsIOError() bool { return sw == SWIOError }

func (sw StatusWord) String() string {
	if sw == SWIOError {
		return "I/O error"
	}
	if name, ok := statusNames[sw]; ok {
		return fmt.Sprintf("%04X (%s)", uint32(sw), name)
	}
	return fmt.Sprintf("%04X", uint32(sw))
}
