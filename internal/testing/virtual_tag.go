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

package testing

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"sync"

	"github.com/hsanjuan/go-ndef"
)

// ErrTagRemoved is returned by a VirtualTag that has been taken out of the
// field.
var ErrTagRemoved = errors.New("virtual tag removed")

// Status words answered by VirtualTag.
var (
	swOK          = []byte{0x90, 0x00}
	swNotFound    = []byte{0x6A, 0x82}
	swWrongP1P2   = []byte{0x6B, 0x00}
	swWrongLength = []byte{0x67, 0x00}
	swInsUnknown  = []byte{0x6D, 0x00}
	swNoEF        = []byte{0x69, 0x86}
)

// Default identifiers of the emulated NDEF application.
var (
	NDEFAID           = []byte{0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01}
	TestType4UID      = []byte{0x04, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC}
	TestType4ATS      = []byte{0x06, 0x78, 0x77, 0x71, 0x02, 0x80}
	defaultNDEFFileID = uint16(0xE104)
)

// VirtualTag emulates the file system of an NFC Forum Type 4 tag: one NDEF
// application holding a capability container (E103) and an NDEF file.
// It is safe for concurrent use.
type VirtualTag struct {
	files       map[uint16][]byte
	UID         []byte
	ATS         []byte
	mu          sync.Mutex
	selectedEF  uint16
	appSelected bool
	present     bool
	Selects     int
	Reads       int
}

// NewVirtualTag creates a present tag with a version 2.0 CC, MLe 0x3B and
// an NDEF text record "Hello World".
func NewVirtualTag(uid []byte) *VirtualTag {
	if uid == nil {
		uid = TestType4UID
	}
	v := &VirtualTag{
		UID:     uid,
		ATS:     TestType4ATS,
		files:   make(map[uint16][]byte),
		present: true,
	}
	v.SetCC(BuildCC(0x20, 0x003B, 0x0034, defaultNDEFFileID, 0x0FFF, 0x00, 0xFF))
	_ = v.SetNDEFText("Hello World")
	return v
}

// BuildCC returns a 15-byte capability container.
func BuildCC(version byte, mle, mlc, fileID, fileSize uint16, read, write byte) []byte {
	cc := make([]byte, 15)
	binary.BigEndian.PutUint16(cc[0:], 15)
	cc[2] = version
	binary.BigEndian.PutUint16(cc[3:], mle)
	binary.BigEndian.PutUint16(cc[5:], mlc)
	cc[7] = 0x04
	cc[8] = 0x06
	binary.BigEndian.PutUint16(cc[9:], fileID)
	binary.BigEndian.PutUint16(cc[11:], fileSize)
	cc[13] = read
	cc[14] = write
	return cc
}

// SetCC replaces the capability container file content.
func (v *VirtualTag) SetCC(cc []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.files[0xE103] = append([]byte(nil), cc...)
}

// SetFile replaces the content of any elementary file.
func (v *VirtualTag) SetFile(fid uint16, content []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.files[fid] = append([]byte(nil), content...)
}

// SetNDEF stores raw as the NDEF message, prefixed with its NLEN.
func (v *VirtualTag) SetNDEF(raw []byte) {
	file := make([]byte, 2+len(raw))
	binary.BigEndian.PutUint16(file, uint16(len(raw)))
	copy(file[2:], raw)
	v.SetFile(defaultNDEFFileID, file)
}

// SetNDEFText stores a single well-known text record.
func (v *VirtualTag) SetNDEFText(text string) error {
	raw, err := ndef.NewTextMessage(text, "en").Marshal()
	if err != nil {
		return err
	}
	v.SetNDEF(raw)
	return nil
}

// GetUIDString returns the UID as a hex string
func (v *VirtualTag) GetUIDString() string {
	return hex.EncodeToString(v.UID)
}

// Remove takes the tag out of the field.
func (v *VirtualTag) Remove() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.present = false
}

// Insert puts the tag back; selection state is lost.
func (v *VirtualTag) Insert() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.present = true
	v.appSelected = false
	v.selectedEF = 0
}

// Present reports whether the tag is in the field.
func (v *VirtualTag) Present() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.present
}

// Process answers one command APDU.
func (v *VirtualTag) Process(apdu []byte) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.present {
		return nil, ErrTagRemoved
	}
	if len(apdu) < 4 {
		return swWrongLength, nil
	}
	switch apdu[1] {
	case 0xA4:
		v.Selects++
		return v.selectFile(apdu), nil
	case 0xB0:
		v.Reads++
		return v.readBinary(apdu), nil
	default:
		return swInsUnknown, nil
	}
}

func (v *VirtualTag) selectFile(apdu []byte) []byte {
	if len(apdu) < 5 || int(apdu[4]) > len(apdu)-5 {
		return swWrongLength
	}
	data := apdu[5 : 5+int(apdu[4])]
	switch apdu[2] {
	case 0x04:
		if !bytes.Equal(data, NDEFAID) {
			return swNotFound
		}
		v.appSelected = true
		v.selectedEF = 0
		return swOK
	case 0x00:
		if len(data) != 2 || !v.appSelected {
			return swNotFound
		}
		fid := binary.BigEndian.Uint16(data)
		if _, ok := v.files[fid]; !ok {
			return swNotFound
		}
		v.selectedEF = fid
		return swOK
	default:
		return swWrongP1P2
	}
}

func (v *VirtualTag) readBinary(apdu []byte) []byte {
	file, ok := v.files[v.selectedEF]
	if !ok || v.selectedEF == 0 {
		return swNoEF
	}
	offset := int(binary.BigEndian.Uint16(apdu[2:4]) & 0x7FFF)
	le := 256
	switch len(apdu) {
	case 4:
	case 5:
		if apdu[4] != 0 {
			le = int(apdu[4])
		}
	default:
		return swWrongLength
	}
	if offset > len(file) {
		return swWrongP1P2
	}
	end := offset + le
	if end > len(file) {
		end = len(file)
	}
	resp := append([]byte(nil), file[offset:end]...)
	return append(resp, swOK...)
}

// Exchange implements type4.Exchanger.
func (v *VirtualTag) Exchange(ctx context.Context, frame []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.Process(frame)
}

// Reselect implements type4.Reselector.
func (v *VirtualTag) Reselect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.present {
		return ErrTagRemoved
	}
	v.appSelected = false
	v.selectedEF = 0
	return nil
}
