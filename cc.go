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
	"encoding/binary"
	"fmt"
)

// Well-known identifiers of the NDEF tag application.
var NDEFApplicationID = []byte{0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01}

const (
	// CCFileID is the capability container's file identifier.
	CCFileID uint16 = 0xE103
	// CCLength is the size of a capability container with a single NDEF
	// file control TLV.
	CCLength = 15
	// MinReadLength is the smallest MLe accepted.
	MinReadLength = 0x000F

	// MappingVersionMajor is the only mapping version major accepted.
	MappingVersionMajor = 2

	tlvNDEFFileControl     = 0x04
	tlvNDEFFileControlSize = 0x06

	// AccessGranted is the read or write access byte meaning "no restriction".
	AccessGranted byte = 0x00

	// PCB, two EDC bytes and the status word.
	frameOverhead = 5
)

var reservedFileIDs = map[uint16]struct{}{
	0x0000:   {},
	0x3F00:   {},
	0x3FFF:   {},
	0xE102:   {},
	CCFileID: {},
}

// FileControl describes the NDEF file as declared by the capability container.
type FileControl struct {
	ID          uint16
	MaxSize     uint16
	ReadAccess  byte
	WriteAccess byte
}

// CapabilityContainer is the parsed content of file E103.
type CapabilityContainer struct {
	NDEFFile         FileControl
	Length           uint16
	MaxReadLength    uint16
	MaxCommandLength uint16
	MajorVersion     byte
	MinorVersion     byte
}

// ParseCapabilityContainer decodes and validates data read from the CC file.
// The returned error wraps ErrInvalidCC and the specific check that failed.
func ParseCapabilityContainer(data []byte) (*CapabilityContainer, error) {
	if len(data) != CCLength {
		return nil, fmt.Errorf("%w: %w (%d bytes)", ErrInvalidCC, ErrCCLength, len(data))
	}

	cc := &CapabilityContainer{
		Length:           binary.BigEndian.Uint16(data[0:2]),
		MajorVersion:     data[2] >> 4,
		MinorVersion:     data[2] & 0x0F,
		MaxReadLength:    binary.BigEndian.Uint16(data[3:5]),
		MaxCommandLength: binary.BigEndian.Uint16(data[5:7]),
	}
	if cc.MajorVersion != MappingVersionMajor {
		return nil, fmt.Errorf("%w: %w %d.%d", ErrInvalidCC, ErrCCVersion, cc.MajorVersion, cc.MinorVersion)
	}
	if cc.MaxReadLength < MinReadLength {
		return nil, fmt.Errorf("%w: %w (%#04x)", ErrInvalidCC, ErrCCMaxReadLength, cc.MaxReadLength)
	}

	tlv := data[7:]
	if tlv[0] != tlvNDEFFileControl || tlv[1] != tlvNDEFFileControlSize {
		return nil, fmt.Errorf("%w: %w (T=%02X L=%02X)", ErrInvalidCC, ErrCCFileControl, tlv[0], tlv[1])
	}
	cc.NDEFFile = FileControl{
		ID:          binary.BigEndian.Uint16(tlv[2:4]),
		MaxSize:     binary.BigEndian.Uint16(tlv[4:6]),
		ReadAccess:  tlv[6],
		WriteAccess: tlv[7],
	}
	if _, reserved := reservedFileIDs[cc.NDEFFile.ID]; reserved {
		return nil, fmt.Errorf("%w: %w %04X", ErrInvalidCC, ErrCCFileID, cc.NDEFFile.ID)
	}
	if cc.NDEFFile.ReadAccess != AccessGranted {
		return nil, fmt.Errorf("%w: %w (%02X)", ErrInvalidCC, ErrCCReadAccess, cc.NDEFFile.ReadAccess)
	}
	return cc, nil
}

// ReadChunkSize is the largest READ BINARY the tag can answer in one frame.
// frameSize is the negotiated ISO-DEP frame size; zero means unknown.
func (cc *CapabilityContainer) ReadChunkSize(frameSize int) int {
	chunk := int(cc.MaxReadLength)
	if frameSize > frameOverhead && frameSize-frameOverhead < chunk {
		chunk = frameSize - frameOverhead
	}
	return chunk
}

// Writable reports whether the NDEF file allows unrestricted writes.
func (cc *CapabilityContainer) Writable() bool {
	return cc.NDEFFile.WriteAccess == AccessGranted
}
