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

package pcsc

import (
	"context"
	"testing"

	"github.com/ZaparooProject/go-type4/detection"
	"github.com/ZaparooProject/go-type4/transport/pcsc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubReaders(t *testing.T, readers []string, err error) {
	t.Helper()
	saved := listReaders
	listReaders = func() ([]string, error) { return readers, err }
	t.Cleanup(func() { listReaders = saved })
}

//nolint:paralleltest // replaces listReaders
func TestDetectReaders(t *testing.T) {
	stubReaders(t, []string{
		"ACS ACR122U PICC Interface 00 00",
		"Generic Smart Card Reader 01 00",
		"Ignored Reader 02 00",
	}, nil)

	opts := detection.DefaultOptions()
	opts.IgnorePaths = []string{"Ignored Reader 02 00"}
	devices, err := New().Detect(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	assert.Equal(t, detection.High, devices[0].Confidence)
	assert.Equal(t, "true", devices[0].Metadata["contactless"])
	assert.Equal(t, detection.Medium, devices[1].Confidence)
}

//nolint:paralleltest // replaces listReaders
func TestDetectNoReader(t *testing.T) {
	stubReaders(t, nil, pcsc.ErrNoReader)

	opts := detection.DefaultOptions()
	_, err := New().Detect(context.Background(), &opts)
	assert.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestIsContactless(t *testing.T) {
	t.Parallel()

	assert.True(t, isContactless("Identiv uTrust 3700 F CL Reader"))
	assert.True(t, isContactless("ACS ACR1252 Dual Reader PICC"))
	assert.False(t, isContactless("Gemalto PC Twin Reader"))
}
