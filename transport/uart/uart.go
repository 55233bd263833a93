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

// Package uart provides a PN532 link over a high speed UART (HSU)
package uart

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ZaparooProject/go-type4/transport/pn532"
	"go.bug.st/serial"
)

const (
	baudRate    = 115200
	readTimeout = 10 * time.Millisecond
)

// wakeUp takes the PN532 out of power down on HSU: a long 0x55 preamble
// followed by zeros.
var wakeUp = []byte{
	0x55, 0x55, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// Link implements pn532.Link on a serial port
type Link struct {
	*pn532.StreamLink
	port     io.ReadWriter
	portName string
	once     sync.Once
	wakeErr  error
}

// Open opens portName at 115200 8N1
func Open(portName string) (*Link, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, pn532.NewTransportError("open", portName, fmt.Errorf("%w: %w", pn532.ErrDeviceNotFound, err),
			pn532.ErrorTypePermanent)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}
	return NewLink(port, portName), nil
}

// NewLink wraps an open port. If port is an io.Closer, Close closes it.
func NewLink(port io.ReadWriter, portName string) *Link {
	return &Link{
		StreamLink: pn532.NewStreamLink(port, portName, pn532.LinkUART),
		port:       port,
		portName:   portName,
	}
}

// PortName returns the serial port the link was opened on
func (l *Link) PortName() string {
	return l.portName
}

// SendCommand implements pn532.Link. The first command is preceded by the
// HSU wake-up sequence.
func (l *Link) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.once.Do(func() {
		if _, err := l.port.Write(wakeUp); err != nil {
			l.wakeErr = pn532.NewTransportError("wakeUp", l.portName,
				fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
		}
	})
	if l.wakeErr != nil {
		return nil, l.wakeErr
	}
	resp, err := l.StreamLink.SendCommand(ctx, cmd, args)
	if err != nil {
		return nil, fmt.Errorf("uart: %w", err)
	}
	return resp, nil
}

var _ pn532.Link = (*Link)(nil)
