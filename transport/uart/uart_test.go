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

package uart

import (
	"context"
	"errors"
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-type4/internal/testing"
	"github.com/ZaparooProject/go-type4/transport/pn532"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type simPort struct {
	*testutil.VirtualPN532
	closed bool
}

func (p *simPort) Close() error {
	p.closed = true
	return nil
}

func TestLinkCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	link := NewLink(&simPort{VirtualPN532: testutil.NewVirtualPN532(nil)}, "/dev/ttyUSB0")

	start := time.Now()
	_, err := link.SendCommand(ctx, testutil.CmdGetFirmwareVersion, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Millisecond)
}

func TestLinkSendsWakeUpOnce(t *testing.T) {
	t.Parallel()

	sim := testutil.NewVirtualPN532(nil)
	port := &simPort{VirtualPN532: sim}
	link := NewLink(port, "/dev/ttyUSB0")
	ctx := context.Background()

	for range 2 {
		resp, err := link.SendCommand(ctx, testutil.CmdGetFirmwareVersion, nil)
		require.NoError(t, err)
		assert.Equal(t, testutil.BuildFirmwareVersionResponse(), resp)
	}
	assert.Equal(t, 2, sim.CommandCount(testutil.CmdGetFirmwareVersion))
	assert.Equal(t, pn532.LinkUART, link.Type())
	assert.Equal(t, "/dev/ttyUSB0", link.PortName())

	require.NoError(t, link.Close())
	assert.True(t, port.closed)

	_, err := link.SendCommand(ctx, testutil.CmdGetFirmwareVersion, nil)
	assert.ErrorIs(t, err, pn532.ErrLinkClosed)
}

func TestLinkTimeoutWithoutResponse(t *testing.T) {
	t.Parallel()

	sim := testutil.NewVirtualPN532(nil)
	sim.DropNextACK()
	link := NewLink(&simPort{VirtualPN532: sim}, "/dev/ttyUSB0")
	require.NoError(t, link.SetTimeout(50*time.Millisecond))

	_, err := link.SendCommand(context.Background(), testutil.CmdGetFirmwareVersion, nil)
	require.Error(t, err)
	var te *pn532.TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "/dev/ttyUSB0", te.Port)
	assert.ErrorIs(t, err, pn532.ErrNoACK)
}

func TestLinkReadsNDEFThroughDevice(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualTag(nil)
	require.NoError(t, tag.SetNDEFText("uart"))
	link := NewLink(&simPort{VirtualPN532: testutil.NewVirtualPN532(tag)}, "/dev/ttyUSB0")
	ctx := context.Background()

	dev, err := pn532.New(link)
	require.NoError(t, err)
	require.NoError(t, dev.Init(ctx))
	target, err := dev.DetectTarget(ctx)
	require.NoError(t, err)

	ex, err := pn532.NewExchanger(dev, target)
	require.NoError(t, err)
	require.NoError(t, ex.Reselect(ctx))

	resp, err := ex.Exchange(ctx, []byte{0x00, 0xA4, 0x00, 0x0C, 0x02, 0xE1, 0x03})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x6A, 0x82}, resp, "CC is only visible inside the NDEF application")
}
