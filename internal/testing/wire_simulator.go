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
	"sync"

	"github.com/ZaparooProject/go-type4/internal/frame"
)

const (
	simMaxChunk     = 252
	simMoreInfo     = 0x40
	simStatusGone   = 0x29
	simStatusNoTgt  = 0x27
	simStatusParams = 0x10
)

// VirtualPN532 simulates a PN532 at the frame level. It implements
// io.ReadWriter so a pn532.StreamLink can run against it. ISO-DEP commands
// are answered by the attached VirtualTag.
type VirtualPN532 struct {
	tag          *VirtualTag
	rx           bytes.Buffer
	tx           bytes.Buffer
	lastResponse []byte
	incoming     []byte
	outgoing     []byte
	mu           sync.Mutex
	listed       bool
	responding   bool
	corruptNext  bool
	dropNextAck  bool
	// Commands counts the command frames received, by command code.
	Commands map[byte]int
}

// NewVirtualPN532 creates a simulator with tag in the field (nil for none)
func NewVirtualPN532(tag *VirtualTag) *VirtualPN532 {
	return &VirtualPN532{tag: tag, Commands: make(map[byte]int)}
}

// SetTag replaces the tag in the field
func (v *VirtualPN532) SetTag(tag *VirtualTag) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tag = tag
	v.listed = false
}

// InjectChecksumError corrupts the DCS of the next response frame
func (v *VirtualPN532) InjectChecksumError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.corruptNext = true
}

// DropNextACK skips the ACK of the next command
func (v *VirtualPN532) DropNextACK() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropNextAck = true
}

// CommandCount returns how many frames carried cmd
func (v *VirtualPN532) CommandCount(cmd byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.Commands[cmd]
}

// Write implements io.Writer.
func (v *VirtualPN532) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rx.Write(data)
	v.process()
	return len(data), nil
}

// Read implements io.Reader. It returns 0, nil when nothing is pending.
func (v *VirtualPN532) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tx.Len() == 0 {
		return 0, nil
	}
	n, _ := v.tx.Read(buf)
	return n, nil
}

func (v *VirtualPN532) process() {
	for {
		data := v.rx.Bytes()
		switch {
		case bytes.HasPrefix(data, frame.AckFrame):
			v.rx.Next(len(frame.AckFrame))
			continue
		case bytes.HasPrefix(data, frame.NackFrame):
			v.rx.Next(len(frame.NackFrame))
			if v.lastResponse != nil {
				v.tx.Write(v.lastResponse)
			}
			continue
		}

		off := frame.FindStart(data)
		if off < 0 || off+1 >= len(data) {
			return
		}
		end := off + 2 + int(data[off]) + 1
		if end > len(data) {
			return
		}
		body, err := frame.Parse(data[:end], frame.HostToPn532)
		if end < len(data) && data[end] == frame.Postamble {
			end++
		}
		v.rx.Next(end)
		if err != nil || len(body) == 0 {
			v.tx.Write(frame.NackFrame)
			continue
		}
		v.handle(body[0], body[1:])
	}
}

func (v *VirtualPN532) handle(cmd byte, args []byte) {
	v.Commands[cmd]++
	if v.dropNextAck {
		v.dropNextAck = false
		return
	}
	v.tx.Write(frame.AckFrame)

	resp := v.respond(cmd, args)
	frm, err := frame.Build(frame.Pn532ToHost, resp[0], resp[1:])
	if err != nil {
		return
	}
	v.lastResponse = append([]byte(nil), frm...)
	if v.corruptNext {
		v.corruptNext = false
		frm[len(frm)-2]++
	}
	v.tx.Write(frm)
}

func (v *VirtualPN532) respond(cmd byte, args []byte) []byte {
	switch cmd {
	case CmdGetFirmwareVersion:
		return BuildFirmwareVersionResponse()
	case CmdSAMConfiguration:
		return BuildSAMConfigurationResponse()
	case CmdRFConfiguration:
		return BuildRFConfigurationResponse()
	case CmdInListPassiveTarget:
		if v.tag == nil || !v.tag.Present() {
			v.listed = false
			return BuildNoTagResponse()
		}
		v.listed = true
		v.incoming, v.outgoing, v.responding = nil, nil, false
		return BuildISODEPDetectionResponse(v.tag.UID, v.tag.ATS)
	case CmdInDataExchange:
		return v.dataExchange(args)
	case CmdInDeselect, CmdInSelect:
		if !v.listed || v.tag == nil {
			return BuildStatusResponse(cmd, simStatusNoTgt)
		}
		if cmd == CmdInSelect {
			if err := v.tag.Reselect(context.Background()); err != nil {
				return BuildStatusResponse(cmd, simStatusGone)
			}
		}
		return BuildStatusResponse(cmd, 0x00)
	case CmdInRelease:
		v.listed = false
		v.incoming, v.outgoing, v.responding = nil, nil, false
		return BuildStatusResponse(cmd, 0x00)
	default:
		return BuildStatusResponse(cmd, simStatusParams)
	}
}

// dataExchange handles chaining in both directions: MI on the Tg byte
// accumulates the command, MI in the status hands out the rest of a long
// response on the following empty exchanges.
func (v *VirtualPN532) dataExchange(args []byte) []byte {
	if len(args) < 1 {
		return BuildStatusResponse(CmdInDataExchange, simStatusParams)
	}
	if !v.listed || v.tag == nil {
		return BuildStatusResponse(CmdInDataExchange, simStatusNoTgt)
	}
	tg, data := args[0], args[1:]

	if v.responding && len(data) == 0 && tg&simMoreInfo == 0 {
		return v.nextResponseChunk()
	}
	v.responding = false
	v.outgoing = nil
	v.incoming = append(v.incoming, data...)
	if tg&simMoreInfo != 0 {
		return BuildStatusResponse(CmdInDataExchange, 0x00)
	}
	apdu := v.incoming
	v.incoming = nil
	resp, err := v.tag.Process(apdu)
	if err != nil {
		v.listed = false
		return BuildStatusResponse(CmdInDataExchange, simStatusGone)
	}
	v.outgoing = resp
	v.responding = true
	return v.nextResponseChunk()
}

func (v *VirtualPN532) nextResponseChunk() []byte {
	status := byte(0x00)
	chunk := v.outgoing
	if len(chunk) > simMaxChunk {
		chunk = chunk[:simMaxChunk]
		status = simMoreInfo
	}
	v.outgoing = v.outgoing[len(chunk):]
	if status == 0 {
		v.responding = false
		v.outgoing = nil
	}
	resp := []byte{CmdInDataExchange + 1, status}
	return append(resp, chunk...)
}
