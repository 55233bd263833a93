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

// Package pn532 drives ISO 14443-4 tags through an NXP PN532 reader. A
// Link carries host commands over UART or I2C; Device lists a target and
// Exchanger moves APDUs to it with InDataExchange.
package pn532

import (
	"context"
)

// Link carries PN532 host commands. SendCommand returns the response frame
// body after the TFI: the response code (cmd+1) followed by its data.
type Link interface {
	SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error)
	Close() error
	Type() LinkType
}

// LinkType names the bus a link runs on
type LinkType string

const (
	// LinkUART is a high speed UART (HSU) link.
	LinkUART LinkType = "uart"
	// LinkI2C is an I2C bus link.
	LinkI2C LinkType = "i2c"
	// LinkMock is a link used in tests
	LinkMock LinkType = "mock"
)

// PN532 host commands used for ISO-DEP
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
