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
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ZaparooProject/go-type4/transport/pn532"
)

// ErrNoResponse is returned by MockLink for commands with nothing set up.
var ErrNoResponse = errors.New("no mock response configured")

// MockLink is a pn532.Link answering from per-command responses.
type MockLink struct {
	responses map[byte][]byte
	queued    map[byte][][]byte
	errs      map[byte]error
	calls     map[byte]int
	args      map[byte][]byte
	mu        sync.Mutex
	delay     time.Duration
	closed    bool
}

// NewMockLink creates an empty mock link
func NewMockLink() *MockLink {
	return &MockLink{
		responses: make(map[byte][]byte),
		queued:    make(map[byte][][]byte),
		errs:      make(map[byte]error),
		calls:     make(map[byte]int),
		args:      make(map[byte][]byte),
	}
}

// NewInitializedMockLink answers the commands pn532.Device.Init sends
func NewInitializedMockLink() *MockLink {
	m := NewMockLink()
	m.SetResponse(CmdGetFirmwareVersion, BuildFirmwareVersionResponse())
	m.SetResponse(CmdSAMConfiguration, BuildSAMConfigurationResponse())
	m.SetResponse(CmdRFConfiguration, BuildRFConfigurationResponse())
	return m
}

// SetResponse sets the response cmd gets every time
func (m *MockLink) SetResponse(cmd byte, resp []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[cmd] = resp
	delete(m.errs, cmd)
}

// QueueResponse queues one-shot responses used before the SetResponse one
func (m *MockLink) QueueResponse(cmd byte, resp ...[]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued[cmd] = append(m.queued[cmd], resp...)
}

// SetError makes cmd fail with err
func (m *MockLink) SetError(cmd byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[cmd] = err
}

// SetDelay delays every command
func (m *MockLink) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// GetCallCount returns how often cmd was sent
func (m *MockLink) GetCallCount(cmd byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[cmd]
}

// LastArgs returns the arguments of the last cmd sent
func (m *MockLink) LastArgs(cmd byte) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.args[cmd]
}

// SendCommand implements pn532.Link.
func (m *MockLink) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	m.mu.Lock()
	delay := m.delay
	m.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, pn532.ErrLinkClosed
	}
	m.calls[cmd]++
	m.args[cmd] = append([]byte(nil), args...)
	if err, ok := m.errs[cmd]; ok {
		return nil, err
	}
	if q := m.queued[cmd]; len(q) > 0 {
		m.queued[cmd] = q[1:]
		return append([]byte(nil), q[0]...), nil
	}
	if resp, ok := m.responses[cmd]; ok {
		return append([]byte(nil), resp...), nil
	}
	return nil, ErrNoResponse
}

// Close implements pn532.Link.
func (m *MockLink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Type implements pn532.Link.
func (*MockLink) Type() pn532.LinkType {
	return pn532.LinkMock
}

var _ pn532.Link = (*MockLink)(nil)
