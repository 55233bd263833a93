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

package polling

import (
	"context"
	"testing"

	testutil "github.com/ZaparooProject/go-type4/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var selectNDEFApp = []byte{0x00, 0xA4, 0x04, 0x00, 0x07, 0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01, 0x00}

func TestFollowerEmptyField(t *testing.T) {
	t.Parallel()
	f := NewFollower(&fakeSource{})

	_, err := f.Exchange(context.Background(), selectNDEFApp)
	require.ErrorIs(t, err, ErrNoTagInPoll)
	assert.Nil(t, f.Current())
	require.ErrorIs(t, f.Reselect(context.Background()), ErrNoTagInPoll)
}

func TestFollowerFollowsSwap(t *testing.T) {
	t.Parallel()
	src := &fakeSource{}
	f := NewFollower(src)

	first := testutil.NewVirtualTag([]byte{0x04, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	src.set(virtualDetected(t, first), nil)

	resp, err := f.Exchange(context.Background(), selectNDEFApp)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, resp)
	require.NotNil(t, f.Current())
	assert.Equal(t, first.GetUIDString(), f.Current().UID)

	// the old tag leaves; the failed exchange drops it
	first.Remove()
	second := testutil.NewVirtualTag([]byte{0x04, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F})
	src.set(virtualDetected(t, second), nil)

	_, err = f.Exchange(context.Background(), selectNDEFApp)
	require.ErrorIs(t, err, testutil.ErrTagRemoved)
	assert.Nil(t, f.Current())

	resp, err = f.Exchange(context.Background(), selectNDEFApp)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x00}, resp)
	assert.Equal(t, second.GetUIDString(), f.Current().UID)
}

func TestFollowerReselectPollsAgain(t *testing.T) {
	t.Parallel()
	src := &fakeSource{}
	vt := testutil.NewVirtualTag(nil)
	src.set(virtualDetected(t, vt), nil)

	f := NewFollower(src)
	require.NoError(t, f.Reselect(context.Background()))
	assert.Equal(t, vt.GetUIDString(), f.Current().UID)
}
