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


package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksums(t *testing.T) {
	t.Parallel()

	assert.Equal(t, byte(0x00), CalculateChecksum(nil))
	assert.Equal(t, byte(0x00), CalculateChecksum([]byte{0xFF, 0x01}))
	assert.Equal(t, byte(0x2A), CalculateDataChecksum(HostToPn532, []byte{0x02}))
	assert.Equal(t, byte(0x2C), CalculateDataChecksum(HostToPn532, nil))
	assert.False(t, ValidateChecksum([]byte{0xD4, 0x02, 0x2A}))
	assert.True(t, ValidateChecksum([]byte{0xD4, 0x02, 0x2B}))

	for i := 0; i < 256; i++ {
		assert.Zero(t, byte(i)+CalculateLengthChecksum(byte(i)), "length %d", i)
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	// GetFirmwareVersion
	got, err := Build(HostToPn532, 0x02, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00}, got)

	// InDataExchange carrying SELECT CC
	got, err = Build(HostToPn532, 0x40, []byte{0x01, 0x00, 0xA4, 0x00, 0x0C, 0x02, 0xE1, 0x03})
	require.NoError(t, err)
	assert.Equal(t, byte(10), got[3])
	assert.Zero(t, got[3]+got[4])
	assert.False(t, ValidateChecksum(got[5:len(got)-1]))

	_, err = Build(HostToPn532, 0x40, make([]byte, 254))
	assert.ErrorIs(t, err, ErrDataTooLarge)
}

func TestParse(t *testing.T) {
	t.Parallel()

	// firmware response with leading noise
	resp := []byte{0xAA, 0x00, 0x00, 0xFF, 0x06, 0xFA, 0xD5, 0x03, 0x32, 0x01, 0x06, 0x07, 0xE8, 0x00}
	data, err := Parse(resp, Pn532ToHost)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x32, 0x01, 0x06, 0x07}, data)

	tests := []struct {
		want error
		name string
		buf  []byte
	}{
		{name: "no start code", buf: []byte{0x00, 0x00, 0x00}, want: ErrFrameTooShort},
		{name: "bad LCS", buf: []byte{0x00, 0x00, 0xFF, 0x02, 0xFD, 0xD5, 0x03, 0x28, 0x00}, want: ErrLengthChecksum},
		{name: "bad DCS", buf: []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD5, 0x03, 0x27, 0x00}, want: ErrChecksumMismatch},
		{name: "truncated", buf: []byte{0x00, 0x00, 0xFF, 0x08, 0xF8, 0xD5, 0x03}, want: ErrFrameOutOfBounds},
		{name: "host frame", buf: []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00}, want: ErrUnexpectedTFI},
		{name: "application error", buf: []byte{0x00, 0x00, 0xFF, 0x01, 0xFF, 0x7F, 0x81, 0x00}, want: ErrApplicationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(tt.buf, Pn532ToHost)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIsAck(t *testing.T) {
	t.Parallel()

	assert.True(t, IsAck(AckFrame))
	assert.True(t, IsAck(append(append([]byte(nil), AckFrame...), 0x00, 0x00)))
	assert.False(t, IsAck(NackFrame))
	assert.False(t, IsAck(AckFrame[:4]))
}

func TestBufferPool(t *testing.T) {
	t.Parallel()

	buf := GetBuffer(16)
	assert.Len(t, buf, 16)
	buf[0] = 0x55
	PutBuffer(buf)

	again := GetBuffer(16)
	assert.Len(t, again, 16)
	assert.Equal(t, make([]byte, 16), again)
	PutBuffer(again)

	assert.Len(t, GetBuffer(MaxFrameDataLength+100), MaxFrameDataLength+100)
}
