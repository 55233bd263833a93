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

import "encoding/binary"

// DiscoveryState is the step NDEF discovery is waiting on.
type DiscoveryState int

const (
	StateNotStarted DiscoveryState = iota
	StateAwaitingReactivation
	StateSelectingApplication
	StateSelectingCCFile
	StateReadingCC
	StateSelectingNDEFFile
	StateReadingNDEFLength
	StateReadingNDEFBody
	StateResolved
)

var stateNames = [...]string{
	StateNotStarted:           "not started",
	StateAwaitingReactivation: "awaiting reactivation",
	StateSelectingApplication: "selecting NDEF application",
	StateSelectingCCFile:      "selecting CC file",
	StateReadingCC:            "reading CC",
	StateSelectingNDEFFile:    "selecting NDEF file",
	StateReadingNDEFLength:    "reading NDEF length",
	StateReadingNDEFBody:      "reading NDEF body",
	StateResolved:             "resolved",
}

func (s DiscoveryState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "invalid"
}

const (
	nlenSize = 2
	// READ BINARY with P1 bit 8 clear addresses 15 bits.
	maxReadOffset = 0x7FFF
)

// discovery walks the NDEF tag application. It owns the bytes collected so
// far and is dropped as soon as it resolves.
type discovery struct {
	parser    NDEFParser
	result    *NDEF
	buf       []byte
	reason    string
	frameSize int
	chunk     int
	length    int
	offset    int
	fileID    uint16
	state     DiscoveryState
}

func newDiscovery(frameSize int, parser NDEFParser) *discovery {
	if parser == nil {
		parser = DefaultNDEFParser
	}
	return &discovery{frameSize: frameSize, parser: parser}
}

// command is the APDU the current state sends, or nil outside APDU states.
func (d *discovery) command() *Command {
	switch d.state {
	case StateSelectingApplication:
		return SelectByName(NDEFApplicationID)
	case StateSelectingCCFile:
		return SelectFile(CCFileID)
	case StateReadingCC:
		return ReadBinary(0, CCLength)
	case StateSelectingNDEFFile:
		return SelectFile(d.fileID)
	case StateReadingNDEFLength:
		return ReadBinary(0, nlenSize)
	case StateReadingNDEFBody:
		n := d.length - len(d.buf)
		if n > d.chunk {
			n = d.chunk
		}
		return ReadBinary(uint16(d.offset), n)
	default:
		return nil
	}
}

func (d *discovery) enter(s DiscoveryState) {
	debugf("discovery: %s -> %s", d.state, s)
	d.state = s
}

// resolveAbsent ends discovery without NDEF.
func (d *discovery) resolveAbsent(reason string) {
	debugf("discovery: no NDEF (%s) in state %s", reason, d.state)
	d.reason = reason
	d.buf = nil
	d.result = nil
	d.state = StateResolved
}

func (d *discovery) resolvePresent(n *NDEF) {
	debugf("discovery: NDEF present, %d bytes", len(n.Raw))
	d.reason = ""
	d.buf = nil
	d.result = n
	d.state = StateResolved
}

// reactivated moves past the optional reactivation step.
func (d *discovery) reactivated() {
	if d.state == StateNotStarted || d.state == StateAwaitingReactivation {
		d.enter(StateSelectingApplication)
	}
}

// advance consumes the completion of the current step's APDU and moves to
// the next state. It reports whether discovery has resolved.
func (d *discovery) advance(sw StatusWord, data []byte) bool {
	if d.state == StateResolved {
		return true
	}
	if !sw.IsSuccess() {
		d.resolveAbsent("status " + sw.String())
		return true
	}

	switch d.state {
	case StateSelectingApplication:
		d.enter(StateSelectingCCFile)

	case StateSelectingCCFile:
		d.enter(StateReadingCC)

	case StateReadingCC:
		cc, err := ParseCapabilityContainer(data)
		if err != nil {
			d.resolveAbsent(err.Error())
			return true
		}
		d.fileID = cc.NDEFFile.ID
		d.chunk = cc.ReadChunkSize(d.frameSize)
		debugf("discovery: CC v%d.%d file %04X size %d MLe %d chunk %d",
			cc.MajorVersion, cc.MinorVersion, cc.NDEFFile.ID, cc.NDEFFile.MaxSize,
			cc.MaxReadLength, d.chunk)
		d.enter(StateSelectingNDEFFile)

	case StateSelectingNDEFFile:
		d.enter(StateReadingNDEFLength)

	case StateReadingNDEFLength:
		if len(data) != nlenSize {
			d.resolveAbsent("malformed NDEF length")
			return true
		}
		d.length = int(binary.BigEndian.Uint16(data))
		if d.length == 0 {
			d.resolveAbsent("empty NDEF file")
			return true
		}
		d.offset = nlenSize
		d.buf = make([]byte, 0, d.length)
		d.enter(StateReadingNDEFBody)

	case StateReadingNDEFBody:
		if len(data) == 0 {
			d.resolveAbsent("short NDEF read")
			return true
		}
		remaining := d.length - len(d.buf)
		if len(data) > remaining {
			data = data[:remaining]
		}
		d.buf = append(d.buf, data...)
		d.offset += len(data)
		if len(d.buf) < d.length {
			if d.offset > maxReadOffset {
				d.resolveAbsent("NDEF file beyond READ BINARY range")
				return true
			}
			return false
		}
		return d.finish()

	default:
		d.resolveAbsent("unexpected completion")
		return true
	}
	return false
}

// finish hands the collected bytes to the NDEF parser.
func (d *discovery) finish() bool {
	raw := d.buf
	msg, err := d.parser.Parse(raw)
	if err != nil {
		d.resolveAbsent(err.Error())
		return true
	}
	d.resolvePresent(&NDEF{Raw: raw, Message: msg})
	return true
}

// startDiscovery runs the optional reactivation and the first APDU step.
func (t *Tag) startDiscovery() {
	d := newDiscovery(t.frameSize, t.parser)
	t.discovery = d

	r, ok := t.transport.(Reactivator)
	if !ok {
		d.resolveAbsent("transport cannot reactivate")
		t.finishDiscovery(d)
		return
	}
	d.enter(StateAwaitingReactivation)
	if !r.Reactivate(func() { t.onReactivated(d) }) && d.state == StateAwaitingReactivation {
		debugln("reactivation declined, continuing without it")
		d.reactivated()
		t.step(d)
	}
}

func (t *Tag) onReactivated(d *discovery) {
	if t.discovery != d || d.state != StateAwaitingReactivation {
		return
	}
	d.reactivated()
	t.step(d)
}

// step submits the APDU of the current state.
func (t *Tag) step(d *discovery) {
	cmd := d.command()
	if cmd == nil {
		d.resolveAbsent("no command for state")
		t.finishDiscovery(d)
		return
	}
	_, err := t.transceiver.Submit(cmd, func(sw StatusWord, data []byte) {
		t.onStep(d, sw, data)
	}, nil)
	if err != nil && t.discovery == d {
		d.resolveAbsent(err.Error())
		t.finishDiscovery(d)
	}
}

func (t *Tag) onStep(d *discovery, sw StatusWord, data []byte) {
	if t.discovery != d {
		return
	}
	if d.advance(sw, data) {
		t.finishDiscovery(d)
		return
	}
	t.step(d)
}

// finishDiscovery publishes the result and notifies subscribers.
func (t *Tag) finishDiscovery(d *discovery) {
	if t.discovery != d {
		return
	}
	t.discovery = nil
	t.ndef = d.result
	t.markInitialized()
}
