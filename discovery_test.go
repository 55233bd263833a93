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
	"bytes"
	"errors"
	"testing"

	"github.com/hsanjuan/go-ndef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// textNDEF is a 66-byte well-known text record.
var textNDEF = append([]byte{0xD1, 0x01, 0x3E, 0x54, 0x02, 'e', 'n'},
	[]byte("Test test test test test test test test test test test test test")[:59]...)

func mustBytes(t *testing.T, cmd *Command) []byte {
	t.Helper()
	require.NotNil(t, cmd)
	b, err := cmd.Bytes()
	require.NoError(t, err)
	return b
}

// walk drives a fresh discovery up to reading the NDEF body.
func walk(t *testing.T, d *discovery) {
	t.Helper()
	ok := []byte{}
	d.reactivated()
	require.Equal(t, StateSelectingApplication, d.state)
	assert.False(t, d.advance(SWSuccess, ok))
	assert.Equal(t, StateSelectingCCFile, d.state)
	assert.False(t, d.advance(SWSuccess, ok))
	assert.Equal(t, StateReadingCC, d.state)
	assert.False(t, d.advance(SWSuccess, validCC()))
	assert.Equal(t, StateSelectingNDEFFile, d.state)
	assert.Equal(t, []byte{0x00, 0xA4, 0x00, 0x0C, 0x02, 0xE1, 0x04}, mustBytes(t, d.command()))
	assert.False(t, d.advance(SWSuccess, ok))
	assert.Equal(t, StateReadingNDEFLength, d.state)
	assert.Equal(t, []byte{0x00, 0xB0, 0x00, 0x00, 0x02}, mustBytes(t, d.command()))
	assert.False(t, d.advance(SWSuccess, []byte{0x00, 0x42}))
	require.Equal(t, StateReadingNDEFBody, d.state)
}

func TestDiscoveryChunkedRead(t *testing.T) {
	t.Parallel()
	require.Len(t, textNDEF, 0x42)

	d := newDiscovery(256, nil)
	walk(t, d)

	assert.Equal(t, []byte{0x00, 0xB0, 0x00, 0x02, 0x3B}, mustBytes(t, d.command()))
	assert.False(t, d.advance(SWSuccess, textNDEF[:0x3B]))
	assert.Equal(t, []byte{0x00, 0xB0, 0x00, 0x3D, 0x07}, mustBytes(t, d.command()))
	assert.True(t, d.advance(SWSuccess, textNDEF[0x3B:]))

	assert.Equal(t, StateResolved, d.state)
	require.NotNil(t, d.result)
	assert.Equal(t, textNDEF, d.result.Raw)
	assert.Nil(t, d.buf)
	text, ok := d.result.Text()
	assert.True(t, ok)
	assert.True(t, bytes.HasPrefix([]byte(text), []byte("Test test")))
}

func TestDiscoveryFrameSizeBoundsChunk(t *testing.T) {
	t.Parallel()
	d := newDiscovery(32, nil)
	walk(t, d)
	assert.Equal(t, 27, d.chunk)
	assert.Equal(t, []byte{0x00, 0xB0, 0x00, 0x02, 0x1B}, mustBytes(t, d.command()))
}

func TestDiscoveryOversizedReadIsTrimmed(t *testing.T) {
	t.Parallel()
	d := newDiscovery(256, nil)
	walk(t, d)
	padded := append(append([]byte(nil), textNDEF...), 0xFE, 0xFE)
	d.chunk = len(padded)
	assert.True(t, d.advance(SWSuccess, padded))
	require.NotNil(t, d.result)
	assert.Equal(t, textNDEF, d.result.Raw)
}

func TestDiscoveryResolvesAbsent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		drive func(d *discovery) bool
		name  string
	}{
		{name: "application not found", drive: func(d *discovery) bool {
			d.reactivated()
			return d.advance(SWFileNotFound, []byte{})
		}},
		{name: "I/O error", drive: func(d *discovery) bool {
			d.reactivated()
			return d.advance(SWIOError, []byte{})
		}},
		{name: "invalid CC", drive: func(d *discovery) bool {
			d.reactivated()
			d.advance(SWSuccess, nil)
			d.advance(SWSuccess, nil)
			return d.advance(SWSuccess, validCC()[:10])
		}},
		{name: "zero length", drive: func(d *discovery) bool {
			d.reactivated()
			d.advance(SWSuccess, nil)
			d.advance(SWSuccess, nil)
			d.advance(SWSuccess, validCC())
			d.advance(SWSuccess, nil)
			return d.advance(SWSuccess, []byte{0x00, 0x00})
		}},
		{name: "one byte length", drive: func(d *discovery) bool {
			d.reactivated()
			d.advance(SWSuccess, nil)
			d.advance(SWSuccess, nil)
			d.advance(SWSuccess, validCC())
			d.advance(SWSuccess, nil)
			return d.advance(SWSuccess, []byte{0x00})
		}},
		{name: "empty body read", drive: func(d *discovery) bool {
			walkQuiet(d)
			return d.advance(SWSuccess, []byte{})
		}},
		{name: "failed body read drops collected bytes", drive: func(d *discovery) bool {
			walkQuiet(d)
			d.advance(SWSuccess, textNDEF[:0x3B])
			return d.advance(SWWrongParameters, []byte{})
		}},
		{name: "completion in wrong state", drive: func(d *discovery) bool {
			return d.advance(SWSuccess, []byte{})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := newDiscovery(256, nil)
			assert.True(t, tt.drive(d))
			assert.Equal(t, StateResolved, d.state)
			assert.Nil(t, d.result)
			assert.Nil(t, d.buf)
			assert.NotEmpty(t, d.reason)
			assert.Nil(t, d.command())
		})
	}
}

func walkQuiet(d *discovery) {
	d.reactivated()
	d.advance(SWSuccess, nil)
	d.advance(SWSuccess, nil)
	d.advance(SWSuccess, validCC())
	d.advance(SWSuccess, nil)
	d.advance(SWSuccess, []byte{0x00, 0x42})
}

func TestDiscoveryParserFailure(t *testing.T) {
	t.Parallel()
	parser := NDEFParserFunc(func([]byte) (*ndef.Message, error) {
		return nil, errors.New("bad message")
	})
	d := newDiscovery(256, parser)
	walkQuiet(d)
	d.chunk = 0x42
	assert.True(t, d.advance(SWSuccess, textNDEF))
	assert.Nil(t, d.result)
	assert.Equal(t, "bad message", d.reason)
}

func TestDiscoveryOffsetLimit(t *testing.T) {
	t.Parallel()
	d := newDiscovery(256, nil)
	walkQuiet(d)
	d.length = 0xFFFF
	d.offset = maxReadOffset - 1
	assert.True(t, d.advance(SWSuccess, []byte{0x01, 0x02}))
	assert.Nil(t, d.result)
}

func TestDiscoveryStateString(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "reading CC", StateReadingCC.String())
	assert.Equal(t, "resolved", StateResolved.String())
	assert.Equal(t, "invalid", DiscoveryState(42).String())
}
