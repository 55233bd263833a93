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

package type4

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameSizeFromFSCI(t *testing.T) {
	t.Parallel()
	want := []int{16, 24, 32, 40, 48, 64, 96, 128, 256, 256, 256, 256, 256, 256, 256, 256}
	for code, size := range want {
		assert.Equal(t, size, FrameSizeFromFSCI(byte(code)), "FSCI %d", code)
	}
}

func TestParseATS(t *testing.T) {
	t.Parallel()

	p, err := ParseATS([]byte{0x06, 0x78, 0x77, 0x71, 0x02, 0x80})
	require.NoError(t, err)
	assert.Equal(t, &IsoDepPollA{
		T0:              0x78,
		TA:              0x77,
		TB:              0x71,
		TC:              0x02,
		FSC:             256,
		HistoricalBytes: []byte{0x80},
	}, p)
	assert.Equal(t, TechnologyA, p.Technology())
	assert.Equal(t, 256, p.FrameSize())

	p, err = ParseATS([]byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, 32, p.FSC, "default FSCI 2")

	p, err = ParseATS([]byte{0x03, 0x05, 0xAA})
	require.NoError(t, err)
	assert.Equal(t, 64, p.FSC)
	assert.Equal(t, []byte{0xAA}, p.HistoricalBytes)
}

func TestParseATSErrors(t *testing.T) {
	t.Parallel()
	for _, ats := range [][]byte{
		nil,
		{0x05, 0x78},
		{0x02, 0x70},
	} {
		_, err := ParseATS(ats)
		require.ErrorIs(t, err, ErrInvalidATS, "% X", ats)
	}
}

func TestPollB(t *testing.T) {
	t.Parallel()
	p := &PollB{FSCI: 0x0B}
	assert.Equal(t, TechnologyB, p.Technology())
	assert.Equal(t, 256, p.FrameSize())
	assert.Equal(t, "ISO 14443-4B", p.Technology().String())
	assert.Equal(t, "unknown", TechnologyUnknown.String())
}
