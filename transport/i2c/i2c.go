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

// Package i2c provides a PN532 link over an I2C bus
package i2c

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ZaparooProject/go-type4/internal/frame"
	"github.com/ZaparooProject/go-type4/internal/transport"
	"github.com/ZaparooProject/go-type4/transport/pn532"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// PN532 7-bit I2C address
	pn532Addr  = 0x24
	pn532Ready = 0x01

	// Max clock frequency (400 kHz).
	maxClockFreq = 400 * physic.KiloHertz

	maxReadLen     = 1 + frame.MaxFrameDataLength + 7
	maxNACKTries   = 3
	processDelay   = 6 * time.Millisecond
	defaultTimeout = time.Second
)

// Bus is the part of periph's *i2c.Dev the link uses
type Bus interface {
	Tx(w, r []byte) error
}

// Link implements pn532.Link over I2C. Every read starts with the PN532
// status byte, which is 0x01 once a frame is ready.
type Link struct {
	dev     Bus
	closer  func() error
	busName string
	timeout time.Duration
	mu      sync.Mutex
}

// Open opens busName ("" for the first bus) and addresses the PN532 on it
func Open(busName string) (*Link, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}
	_ = bus.SetSpeed(maxClockFreq) // keep the default speed if refused

	l := NewLink(&i2c.Dev{Addr: pn532Addr, Bus: bus}, busName)
	l.closer = bus.Close
	return l, nil
}

// NewLink wraps an already addressed device
func NewLink(dev Bus, busName string) *Link {
	return &Link{dev: dev, busName: busName, timeout: defaultTimeout}
}

// SetTimeout bounds the wait for the ACK and for the response
func (l *Link) SetTimeout(timeout time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timeout = timeout
	return nil
}

// Close releases the bus
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closer == nil {
		return nil
	}
	closer := l.closer
	l.closer = nil
	if err := closer(); err != nil {
		return fmt.Errorf("failed to close I2C bus %s: %w", l.busName, err)
	}
	return nil
}

// Type implements pn532.Link.
func (*Link) Type() pn532.LinkType {
	return pn532.LinkI2C
}

// SendCommand implements pn532.Link.
func (l *Link) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dev == nil {
		return nil, pn532.NewTransportError("sendCommand", l.busName, pn532.ErrLinkClosed, pn532.ErrorTypePermanent)
	}

	if err := l.sendFrame(cmd, args); err != nil {
		return nil, err
	}
	if err := l.waitAck(ctx); err != nil {
		return nil, err
	}
	time.Sleep(processDelay)

	resp, err := l.receiveFrame(ctx)
	if err != nil {
		if ctx.Err() != nil {
			_ = l.dev.Tx(frame.AckFrame, nil)
		}
		return nil, err
	}
	if len(resp) == 0 || resp[0] != cmd+1 {
		return nil, pn532.NewTransportError("sendCommand", l.busName,
			fmt.Errorf("%w: response % X to command %02X", pn532.ErrInvalidResponse, resp, cmd),
			pn532.ErrorTypePermanent)
	}
	return resp, nil
}

func (l *Link) sendFrame(cmd byte, args []byte) error {
	frm, err := frame.Build(frame.HostToPn532, cmd, args)
	if err != nil {
		return pn532.NewDataTooLargeError("sendFrame", l.busName)
	}
	if err := l.dev.Tx(frm, nil); err != nil {
		return pn532.NewTransportError("sendFrame", l.busName,
			fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
	}
	return nil
}

// read performs one status-prefixed read. It asks for a retry while the
// PN532 is not ready.
func (l *Link) read(n int) ([]byte, bool, error) {
	buf := frame.GetBuffer(n + 1)
	if err := l.dev.Tx(nil, buf); err != nil {
		frame.PutBuffer(buf)
		return nil, false, pn532.NewTransportError("read", l.busName,
			fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
	}
	if buf[0] != pn532Ready {
		frame.PutBuffer(buf)
		return nil, true, nil
	}
	out := append([]byte(nil), buf[1:]...)
	frame.PutBuffer(buf)
	return out, false, nil
}

func (l *Link) waitAck(ctx context.Context) error {
	ack, err := transport.TimeoutRetry(ctx, l.timeout, "waitAck", l.busName, func() ([]byte, bool, error) {
		return l.read(len(frame.AckFrame))
	})
	if err != nil {
		if pn532.GetErrorType(err) == pn532.ErrorTypeTimeout {
			return pn532.NewNoACKError("waitAck", l.busName)
		}
		return err
	}
	if !bytes.Equal(ack, frame.AckFrame) {
		return pn532.NewNoACKError("waitAck", l.busName)
	}
	return nil
}

func (l *Link) receiveFrame(ctx context.Context) ([]byte, error) {
	cfg := transport.RetryConfig{
		Op:         "receiveFrame",
		Port:       l.busName,
		MaxRetries: maxNACKTries,
		OnRetry: func() error {
			if err := l.dev.Tx(frame.NackFrame, nil); err != nil {
				return pn532.NewTransportError("sendNack", l.busName, err, pn532.ErrorTypeTransient)
			}
			return nil
		},
	}
	return transport.WithRetry(ctx, cfg, func() ([]byte, bool, error) {
		raw, err := transport.TimeoutRetry(ctx, l.timeout, "receiveFrame", l.busName, func() ([]byte, bool, error) {
			return l.read(maxReadLen)
		})
		if err != nil {
			return nil, false, err
		}
		data, err := frame.Parse(raw, frame.Pn532ToHost)
		if err != nil {
			if errors.Is(err, frame.ErrApplicationError) {
				return nil, false, pn532.NewTransportError("receiveFrame", l.busName, err, pn532.ErrorTypePermanent)
			}
			return nil, true, nil
		}
		return data, false, nil
	})
}

var _ pn532.Link = (*Link)(nil)
