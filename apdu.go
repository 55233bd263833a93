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

// ISO 7816-4 instruction bytes used by the NDEF mapping.
const (
	InsSelect     byte = 0xA4
	InsReadBinary byte = 0xB0
)

// Encoding limits.
const (
	MaxCommandData = 255
	MaxLe          = 65536
	maxShortLe     = 256
)

// Command is an ISO 7816-4 command APDU. Le of zero means no response data
// is expected; values up to 256 use the short form and values up to 65536
// the two-byte form.
type Command struct {
	Data        []byte
	Le          int
	Class       byte
	Instruction byte
	P1          byte
	P2          byte
}

// Bytes encodes the command. Data is copied into the returned frame.
func (c *Command) Bytes() ([]byte, error) {
	if c == nil {
		return nil, ErrNilCommand
	}
	if c.Le < 0 || c.Le > MaxLe {
		return nil, ErrLeTooLarge
	}
	if len(c.Data) > MaxCommandData {
		return nil, ErrDataTooLarge
	}

	size := 4
	if len(c.Data) > 0 {
		size += 1 + len(c.Data)
	}
	switch {
	case c.Le > maxShortLe:
		size += 2
	case c.Le > 0:
		size++
	}

	buf := make([]byte, 0, size)
	buf = append(buf, c.Class, c.Instruction, c.P1, c.P2)
	if len(c.Data) > 0 {
		buf = append(buf, byte(len(c.Data)))
		buf = append(buf, c.Data...)
	}
	switch {
	case c.Le > maxShortLe:
		le := uint16(c.Le % 0x10000)
		buf = append(buf, byte(le>>8), byte(le))
	case c.Le > 0:
		buf = append(buf, byte(c.Le%0x100))
	}
	return buf, nil
}

// Response is a decoded response APDU.
type Response struct {
	Data   []byte
	Status StatusWord
}

// ParseResponse splits raw into body and status word. Anything shorter than
// the two-byte trailer is an I/O error with an empty body.
func ParseResponse(raw []byte) Response {
	if len(raw) < 2 {
		return Response{Status: SWIOError, Data: []byte{}}
	}
	n := len(raw) - 2
	body := make([]byte, n)
	copy(body, raw[:n])
	return Response{
		Status: NewStatusWord(raw[n], raw[n+1]),
		Data:   body,
	}
}

// SelectByName builds SELECT by DF name with Le set to 256.
func SelectByName(aid []byte) *Command {
	return &Command{
		Instruction: InsSelect,
		P1:          0x04,
		P2:          0x00,
		Data:        aid,
		Le:          maxShortLe,
	}
}

// SelectFile builds SELECT by file identifier, first or only occurrence,
// no response data.
func SelectFile(fid uint16) *Command {
	return &Command{
		Instruction: InsSelect,
		P1:          0x00,
		P2:          0x0C,
		Data:        []byte{byte(fid >> 8), byte(fid)},
	}
}

// ReadBinary builds READ BINARY at a 15-bit offset.
func ReadBinary(offset uint16, le int) *Command {
	return &Command{
		Instruction: InsReadBinary,
		P1:          byte(offset>>8) & 0x7F,
		P2:          byte(offset),
		Le:          le,
	}
}
