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

package pn532_test

import (
	"context"
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-type4/internal/testing"
	"github.com/ZaparooProject/go-type4/transport/pn532"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamLinkCommand(t *testing.T) {
	t.Parallel()

	sim := testutil.NewVirtualPN532(nil)
	link := pn532.NewStreamLink(sim, "sim", pn532.LinkMock)

	resp, err := link.SendCommand(context.Background(), testutil.CmdGetFirmwareVersion, nil)
	require.NoError(t, err)
	assert.Equal(t, testutil.BuildFirmwareVersionResponse(), resp)
	assert.Equal(t, pn532.LinkMock, link.Type())
}

func TestStreamLinkNACKsCorruptedFrame(t *testing.T) {
	t.Parallel()

	sim := testutil.NewVirtualPN532(nil)
	sim.InjectChecksumError()
	link := pn532.NewStreamLink(sim, "sim", pn532.LinkMock)

	resp, err := link.SendCommand(context.Background(), testutil.CmdRFConfiguration, []byte{0x05, 0xFF, 0x01, 0x02})
	require.NoError(t, err)
	assert.Equal(t, testutil.BuildRFConfigurationResponse(), resp)
}

func TestStreamLinkNoAck(t *testing.T) {
	t.Parallel()

	sim := testutil.NewVirtualPN532(nil)
	sim.DropNextACK()
	link := pn532.NewStreamLink(sim, "sim", pn532.LinkMock)
	require.NoError(t, link.SetTimeout(30*time.Millisecond))

	_, err := link.SendCommand(context.Background(), testutil.CmdGetFirmwareVersion, nil)
	assert.ErrorIs(t, err, pn532.ErrNoACK)

	resp, err := link.SendCommand(context.Background(), testutil.CmdGetFirmwareVersion, nil)
	require.NoError(t, err, "the next command goes through")
	assert.Equal(t, testutil.BuildFirmwareVersionResponse(), resp)
}

func TestStreamLinkRejections(t *testing.T) {
	t.Parallel()

	link := pn532.NewStreamLink(testutil.NewVirtualPN532(nil), "sim", pn532.LinkMock)
	assert.ErrorIs(t, link.SetTimeout(0), pn532.ErrInvalidParameter)

	_, err := link.SendCommand(context.Background(), testutil.CmdInDataExchange, make([]byte, 300))
	assert.ErrorIs(t, err, pn532.ErrDataTooLarge)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = link.SendCommand(ctx, testutil.CmdGetFirmwareVersion, nil)
	assert.ErrorIs(t, err, context.Canceled)

	require.NoError(t, link.Close())
	_, err = link.SendCommand(context.Background(), testutil.CmdGetFirmwareVersion, nil)
	assert.ErrorIs(t, err, pn532.ErrLinkClosed)
}
