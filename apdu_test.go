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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandBytes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cmd  Command
		want []byte
	}{
		{
			name: "select MF, header only",
			cmd:  Command{Instruction: 0xA4},
			want: []byte{0x00, 0xA4, 0x00, 0x00},
		},
		{
			name: "select MF by path",
			cmd:  Command{Instruction: 0xA4, Data: []byte{0x3F, 0x00}},
			want: []byte{0x00, 0xA4, 0x00, 0x00, 0x02, 0x3F, 0x00},
		},
		{
			name: "read 256",
			cmd:  Command{Instruction: 0xB0, Le: 256},
			want: []byte{0x00, 0xB0, 0x00, 0x00, 0x00},
		},
		{
			name: "read 257",
			cmd:  Command{Instruction: 0xB0, Le: 257},
			want: []byte{0x00, 0xB0, 0x00, 0x00, 0x01, 0x01},
		},
		{
			name: "read 65536",
			cmd:  Command{Instruction: 0xB0, Le: 65536},
			want: []byte{0x00, 0xB0, 0x00, 0x00, 0x00, 0x00},
		},
		{
			name: "select NDEF application",
			cmd:  *SelectByName(NDEFApplicationID),
			want: []byte{0x00, 0xA4, 0x04, 0x00, 0x07, 0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01, 0x00},
		},
		{
			name: "select CC file",
			cmd:  *SelectFile(CCFileID),
			want: []byte{0x00, 0xA4, 0x00, 0x0C, 0x02, 0xE1, 0x03},
		},
		{
			name: "read CC",
			cmd:  *ReadBinary(0, CCLength),
			want: []byte{0x00, 0xB0, 0x00, 0x00, 0x0F},
		},
		{
			name: "read at offset 0x3D",
			cmd:  *ReadBinary(0x3D, 7),
			want: []byte{0x00, 0xB0, 0x00, 0x3D, 0x07},
		},
		{
			name: "read offset keeps bit 8 of P1 clear",
			cmd:  *ReadBinary(0xFFFF, 1),
			want: []byte{0x00, 0xB0, 0x7F, 0xFF, 0x01},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := tt.cmd.Bytes()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCommandBytesShortLe(t *testing.T) {
	t.Parallel()
	for le := 0; le <= 256; le++ {
		got, err := (&Command{Instruction: InsReadBinary, Le: le}).Bytes()
		require.NoError(t, err)
		if le == 0 {
			require.Len(t, got, 4, "Le 0 must omit the Le field")
			continue
		}
		require.Len(t, got, 5, "Le %d", le)
		assert.Equal(t, byte(le%256), got[4], "Le %d", le)
	}
}

func TestCommandBytesExtendedLe(t *testing.T) {
	t.Parallel()
	for le := 257; le <= MaxLe; le++ {
		got, err := (&Command{Instruction: InsReadBinary, Le: le}).Bytes()
		require.NoError(t, err)
		require.Len(t, got, 6)
		v := le % 65536
		if got[4] != byte(v>>8) || got[5] != byte(v) {
			t.Fatalf("Le %d encoded as % X", le, got[4:])
		}
	}
}

func TestCommandBytesData(t *testing.T) {
	t.Parallel()
	for n := 0; n <= MaxCommandData; n++ {
		data := bytes.Repeat([]byte{0xA5}, n)
		got, err := (&Command{Instruction: 0xD6, Data: data}).Bytes()
		require.NoError(t, err)
		if n == 0 {
			require.Len(t, got, 4)
			continue
		}
		require.Len(t, got, 5+n)
		assert.Equal(t, byte(n), got[4])
		assert.Equal(t, data, got[5:])
	}
}

func TestCommandBytesCopiesData(t *testing.T) {
	t.Parallel()
	data := []byte{0xE1, 0x04}
	got, err := (&Command{Instruction: InsSelect, Data: data}).Bytes()
	require.NoError(t, err)
	data[0] = 0x00
	assert.Equal(t, byte(0xE1), got[5])
}

func TestCommandBytesErrors(t *testing.T) {
	t.Parallel()

	var nilCmd *Command
	_, err := nilCmd.Bytes()
	require.ErrorIs(t, err, ErrNilCommand)

	_, err = (&Command{Le: MaxLe + 1}).Bytes()
	require.ErrorIs(t, err, ErrLeTooLarge)

	_, err = (&Command{Le: -1}).Bytes()
	require.ErrorIs(t, err, ErrLeTooLarge)

	_, err = (&Command{Data: make([]byte, MaxCommandData+1)}).Bytes()
	require.ErrorIs(t, err, ErrDataTooLarge)
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    []byte
		body   []byte
		status StatusWord
	}{
		{name: "nil", raw: nil, status: SWIOError, body: []byte{}},
		{name: "one byte", raw: []byte{0x90}, status: SWIOError, body: []byte{}},
		{name: "status only", raw: []byte{0x90, 0x00}, status: SWSuccess, body: []byte{}},
		{name: "not found", raw: []byte{0x6A, 0x82}, status: SWFileNotFound, body: []byte{}},
		{name: "body", raw: []byte{0x00, 0x42, 0x90, 0x00}, status: SWSuccess, body: []byte{0x00, 0x42}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := ParseResponse(tt.raw)
			assert.Equal(t, tt.status, r.Status)
			assert.Equal(t, tt.body, r.Data)
		})
	}
}

func TestStatusWord(t *testing.T) {
	t.Parallel()

	sw := NewStatusWord(0x6A, 0x82)
	assert.Equal(t, SWFileNotFound, sw)
	assert.Equal(t, byte(0x6A), sw.SW1())
	assert.Equal(t, byte(0x82), sw.SW2())
	assert.False(t, sw.IsSuccess())
	assert.Equal(t, "6A82 (file or application not found)", sw.String())
	assert.Equal(t, "6283", NewStatusWord(0x62, 0x83).String())

	assert.True(t, SWSuccess.IsSuccess())
	assert.True(t, SWIOError.IsIOError())
	assert.Equal(t, "I/O error", SWIOError.String())

	// no wire status word collides with the I/O error sentinel
	assert.Greater(t, uint32(SWIOError), uint32(NewStatusWord(0xFF, 0xFF)))
}
