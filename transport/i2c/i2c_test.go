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

package i2c

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-type4/internal/testing"
	"github.com/ZaparooProject/go-type4/transport/pn532"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simBus puts a status byte in front of every read, the way the PN532
// answers on I2C.
type simBus struct {
	sim *testutil.VirtualPN532
	mu  sync.Mutex
	err error
}

func (b *simBus) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	if len(w) > 0 {
		if _, err := b.sim.Write(w); err != nil {
			return err
		}
	}
	if len(r) == 0 {
		return nil
	}
	clear(r)
	n, _ := b.sim.Read(r[1:])
	if n > 0 {
		r[0] = pn532Ready
	}
	return nil
}

func newSimLink(t *testing.T, tag *testutil.VirtualTag) (*Link, *testutil.VirtualPN532) {
	t.Helper()
	sim := testutil.NewVirtualPN532(tag)
	link := NewLink(&simBus{sim: sim}, "sim")
	require.NoError(t, link.SetTimeout(200*time.Millisecond))
	return link, sim
}

func TestLinkCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	link := &Link{}
	_, err := link.SendCommand(ctx, testutil.CmdGetFirmwareVersion, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLinkFirmwareVersion(t *testing.T) {
	t.Parallel()

	link, _ := newSimLink(t, nil)
	resp, err := link.SendCommand(context.Background(), testutil.CmdGetFirmwareVersion, nil)
	require.NoError(t, err)
	assert.Equal(t, testutil.BuildFirmwareVersionResponse(), resp)
	assert.Equal(t, pn532.LinkI2C, link.Type())
}

func TestLinkRecoversFromChecksumError(t *testing.T) {
	t.Parallel()

	link, sim := newSimLink(t, nil)
	sim.InjectChecksumError()

	resp, err := link.SendCommand(context.Background(), testutil.CmdSAMConfiguration, []byte{0x01, 0x14, 0x01})
	require.NoError(t, err)
	assert.Equal(t, testutil.BuildSAMConfigurationResponse(), resp)
}

func TestLinkMissingAck(t *testing.T) {
	t.Parallel()

	link, sim := newSimLink(t, nil)
	sim.DropNextACK()

	_, err := link.SendCommand(context.Background(), testutil.CmdGetFirmwareVersion, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, pn532.ErrNoACK)
	assert.True(t, pn532.IsRetryable(err))
}

func TestLinkBusError(t *testing.T) {
	t.Parallel()

	sim := testutil.NewVirtualPN532(nil)
	link := NewLink(&simBus{sim: sim, err: errors.New("bus fault")}, "sim")

	_, err := link.SendCommand(context.Background(), testutil.CmdGetFirmwareVersion, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, pn532.ErrTransportWrite)
}

func TestLinkReadsType4Tag(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualTag(nil)
	link, _ := newSimLink(t, tag)
	ctx := context.Background()

	dev, err := pn532.New(link)
	require.NoError(t, err)
	require.NoError(t, dev.Init(ctx))

	target, err := dev.DetectTarget(ctx)
	require.NoError(t, err)
	assert.Equal(t, tag.UID, target.UID)

	ex, err := pn532.NewExchanger(dev, target)
	require.NoError(t, err)
	resp, err := ex.Exchange(ctx, []byte{0x00, 0xA4, 0x04, 0x00, 0x07, 0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, resp)
}
