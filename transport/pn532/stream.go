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

package pn532

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ZaparooProject/go-type4/internal/frame"
)

const (
	defaultLinkTimeout = time.Second
	maxNACKRetries     = 3
	readChunk          = 64
)

// StreamLink speaks the PN532 frame protocol over a byte stream such as a
// serial port. Reads returning zero bytes are treated as "nothing yet".
type StreamLink struct {
	rw      io.ReadWriter
	name    string
	kind    LinkType
	buf     []byte
	timeout time.Duration
	mu      sync.Mutex
	closed  bool
}

// NewStreamLink wraps rw. name identifies the port in errors.
func NewStreamLink(rw io.ReadWriter, name string, kind LinkType) *StreamLink {
	return &StreamLink{rw: rw, name: name, kind: kind, timeout: defaultLinkTimeout}
}

// SetTimeout bounds each wait for an ACK or a response
func (l *StreamLink) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout %v", ErrInvalidParameter, timeout)
	}
	l.mu.Lock()
	l.timeout = timeout
	l.mu.Unlock()
	return nil
}

// Type implements Link.
func (l *StreamLink) Type() LinkType {
	return l.kind
}

// Close closes the underlying stream if it is closable.
func (l *StreamLink) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if c, ok := l.rw.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", l.name, err)
		}
	}
	return nil
}

// SendCommand implements Link. If ctx ends while waiting for the response
// an ACK frame is sent, which makes the PN532 abort the command.
func (l *StreamLink) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, NewTransportError("sendCommand", l.name, ErrLinkClosed, ErrorTypePermanent)
	}

	frm, err := frame.Build(frame.HostToPn532, cmd, args)
	if err != nil {
		return nil, NewDataTooLargeError("sendCommand", l.name)
	}
	l.buf = l.buf[:0]
	if err := l.write(frm); err != nil {
		return nil, err
	}
	deadline := time.Now().Add(l.timeout)
	if err := l.waitAck(ctx, deadline); err != nil {
		return nil, err
	}

	resp, err := l.receiveFrame(ctx, time.Now().Add(l.timeout))
	if err != nil {
		if ctx.Err() != nil {
			_ = l.write(frame.AckFrame)
		}
		return nil, err
	}
	if len(resp) == 0 || resp[0] != cmd+1 {
		return nil, NewTransportError("sendCommand", l.name,
			fmt.Errorf("%w: response % X to command %02X", ErrInvalidResponse, resp, cmd),
			ErrorTypePermanent)
	}
	return resp, nil
}

func (l *StreamLink) write(data []byte) error {
	if _, err := l.rw.Write(data); err != nil {
		return NewTransportError("write", l.name,
			fmt.Errorf("%w: %w", ErrTransportWrite, err), ErrorTypeTransient)
	}
	return nil
}

// fill appends whatever the stream has to l.buf. It returns false once the
// deadline or ctx is reached.
func (l *StreamLink) fill(ctx context.Context, deadline time.Time) (bool, error) {
	tmp := frame.GetSmallBuffer(readChunk)
	defer frame.PutBuffer(tmp)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		n, err := l.rw.Read(tmp)
		if n > 0 {
			l.buf = append(l.buf, tmp[:n]...)
			return true, nil
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return false, NewTransportError("read", l.name,
				fmt.Errorf("%w: %w", ErrTransportRead, err), ErrorTypeTransient)
		}
		time.Sleep(time.Millisecond)
	}
}

func (l *StreamLink) waitAck(ctx context.Context, deadline time.Time) error {
	for {
		if idx := bytes.Index(l.buf, frame.AckFrame); idx >= 0 {
			l.buf = l.buf[idx+len(frame.AckFrame):]
			return nil
		}
		if idx := bytes.Index(l.buf, frame.NackFrame); idx >= 0 {
			return NewNoACKError("waitAck", l.name)
		}
		more, err := l.fill(ctx, deadline)
		if err != nil {
			return l.ctxError("waitAck", err)
		}
		if !more {
			return NewNoACKError("waitAck", l.name)
		}
	}
}

// receiveFrame reads one response frame, NACKing corrupted ones.
func (l *StreamLink) receiveFrame(ctx context.Context, deadline time.Time) ([]byte, error) {
	for retries := 0; ; {
		if end, ok := l.frameEnd(); ok {
			data, err := frame.Parse(l.buf[:end], frame.Pn532ToHost)
			l.buf = l.buf[end:]
			switch {
			case err == nil:
				return data, nil
			case errors.Is(err, frame.ErrApplicationError):
				return nil, NewTransportError("receiveFrame", l.name, err, ErrorTypePermanent)
			case retries >= maxNACKRetries:
				return nil, NewFrameCorruptedError("receiveFrame", l.name)
			}
			retries++
			if err := l.write(frame.NackFrame); err != nil {
				return nil, err
			}
			continue
		}
		more, err := l.fill(ctx, deadline)
		if err != nil {
			return nil, l.ctxError("receiveFrame", err)
		}
		if !more {
			return nil, NewTimeoutError("receiveFrame", l.name)
		}
	}
}

// frameEnd returns the length of the buffered prefix holding a complete
// normal frame, up to and including its DCS.
func (l *StreamLink) frameEnd() (int, bool) {
	off := frame.FindStart(l.buf)
	if off < 0 || off+1 >= len(l.buf) {
		return 0, false
	}
	end := off + 2 + int(l.buf[off]) + 1
	if end > len(l.buf) {
		return 0, false
	}
	return end, true
}

func (l *StreamLink) ctxError(op string, err error) error {
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTransportError(op, l.name, fmt.Errorf("%w: %w", ErrTransportTimeout, err), ErrorTypeTimeout)
	}
	return NewTransportError(op, l.name, err, ErrorTypePermanent)
}

var _ Link = (*StreamLink)(nil)
