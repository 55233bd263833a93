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
	"errors"
	"fmt"
)

// Technology is the ISO 14443 variant the tag was activated with.
type Technology int

const (
	TechnologyUnknown Technology = iota
	TechnologyA
	TechnologyB
)

func (t Technology) String() string {
	switch t {
	case TechnologyA:
		return "ISO 14443-4A"
	case TechnologyB:
		return "ISO 14443-4B"
	default:
		return "unknown"
	}
}

// Activation carries what the activation sequence learned about the tag.
// The core only needs the negotiated frame size.
type Activation interface {
	Technology() Technology
	FrameSize() int
}

// IsoDepPollA holds the ISO-DEP parameters of a Type A tag, taken from its
// ATS. FSC is already in bytes.
type IsoDepPollA struct {
	HistoricalBytes []byte
	FSC             int
	T0              byte
	TA              byte
	TB              byte
	TC              byte
}

// Technology implements Activation.
func (*IsoDepPollA) Technology() Technology { return TechnologyA }

// FrameSize implements Activation.
func (p *IsoDepPollA) FrameSize() int { return p.FSC }

// PollB holds the ATQB of a Type B tag. FSCI is the raw 4-bit frame size
// code from the protocol info.
type PollB struct {
	NFCID0   []byte
	AppData  []byte
	ProtInfo []byte
	FSCI     byte
}

// Technology implements Activation.
func (*PollB) Technology() Technology { return TechnologyB }

// FrameSize implements Activation.
func (p *PollB) FrameSize() int { return FrameSizeFromFSCI(p.FSCI) }

var fsciTable = [...]int{16, 24, 32, 40, 48, 64, 96, 128, 256}

// FrameSizeFromFSCI maps an FSCI/FSDI code to bytes. Codes past 8 are
// treated as 256.
func FrameSizeFromFSCI(code byte) int {
	if int(code) < len(fsciTable) {
		return fsciTable[code]
	}
	return 256
}

// ErrInvalidATS is returned by ParseATS.
var ErrInvalidATS = errors.New("invalid ATS")

// ParseATS decodes an answer-to-select as returned by a Type A activation.
// The first byte is the length byte TL.
func ParseATS(ats []byte) (*IsoDepPollA, error) {
	if len(ats) == 0 || int(ats[0]) != len(ats) {
		return nil, fmt.Errorf("%w: length byte mismatch", ErrInvalidATS)
	}
	p := &IsoDepPollA{FSC: 32}
	if len(ats) == 1 {
		return p, nil
	}
	p.T0 = ats[1]
	p.FSC = FrameSizeFromFSCI(p.T0 & 0x0F)
	i := 2
	for _, present := range []struct {
		dst *byte
		bit byte
	}{{&p.TA, 0x10}, {&p.TB, 0x20}, {&p.TC, 0x40}} {
		if p.T0&present.bit == 0 {
			continue
		}
		if i >= len(ats) {
			return nil, fmt.Errorf("%w: truncated interface bytes", ErrInvalidATS)
		}
		*present.dst = ats[i]
		i++
	}
	p.HistoricalBytes = append([]byte(nil), ats[i:]...)
	return p, nil
}
