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

// Response builders return PN532 response bodies as a Link hands them
// back: the response code (command + 1) followed by the data.

// BuildFirmwareVersionResponse creates a GetFirmwareVersion response for a
// PN532 v1.6 supporting ISO 14443A and B
func BuildFirmwareVersionResponse() []byte {
	return []byte{0x03, 0x32, 0x01, 0x06, 0x07}
}

// BuildSAMConfigurationResponse creates a SAMConfiguration response
func BuildSAMConfigurationResponse() []byte {
	return []byte{0x15}
}

// BuildRFConfigurationResponse creates an RFConfiguration response
func BuildRFConfigurationResponse() []byte {
	return []byte{0x33}
}

// BuildISODEPDetectionResponse creates an InListPassiveTarget response for
// one ISO-DEP Type A target. ats starts with its TL byte.
func BuildISODEPDetectionResponse(uid, ats []byte) []byte {
	response := []byte{0x4B, 0x01, 0x01}
	response = append(response, 0x00, 0x04, 0x20, byte(len(uid)))
	response = append(response, uid...)
	return append(response, ats...)
}

// BuildMIFAREDetectionResponse creates an InListPassiveTarget response for
// a target without ISO-DEP
func BuildMIFAREDetectionResponse(uid []byte) []byte {
	response := []byte{0x4B, 0x01, 0x01}
	response = append(response, 0x00, 0x04, 0x08, byte(len(uid)))
	return append(response, uid...)
}

// BuildNoTagResponse creates an empty InListPassiveTarget response
func BuildNoTagResponse() []byte {
	return []byte{0x4B, 0x00}
}

// BuildDataExchangeResponse creates a successful InDataExchange response
func BuildDataExchangeResponse(data []byte) []byte {
	response := []byte{0x41, 0x00}
	return append(response, data...)
}

// BuildStatusResponse creates a response carrying only a status byte
func BuildStatusResponse(cmd, status byte) []byte {
	return []byte{cmd + 1, status}
}

// Command bytes for reference
const (
	CmdGetFirmwareVersion  = 0x02
	CmdSAMConfiguration    = 0x14
	CmdRFConfiguration     = 0x32
	CmdInDataExchange      = 0x40
	CmdInDeselect          = 0x44
	CmdInListPassiveTarget = 0x4A
	CmdInRelease           = 0x52
	CmdInSelect            = 0x54
)
