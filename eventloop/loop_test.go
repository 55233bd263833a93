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

package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunPendingOrder(t *testing.T) {
	t.Parallel()
	l := New()
	var got []int
	for i := 0; i < 3; i++ {
		require.True(t, l.Post(func() { got = append(got, i) }))
	}
	// a callback queued from a callback runs in the same drain
	require.True(t, l.Post(func() {
		l.Post(func() { got = append(got, 99) })
	}))

	assert.Equal(t, 5, l.RunPending())
	assert.Equal(t, []int{0, 1, 2, 99}, got)
	assert.Zero(t, l.RunPending())
}

func TestPostNil(t *testing.T) {
	t.Parallel()
	assert.False(t, New().Post(nil))
}

func TestRunAndCall(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := New()
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()

	ran := false
	require.NoError(t, l.Call(ctx, func() { ran = true }))
	assert.True(t, ran)

	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Post(func() {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	require.NoError(t, l.Call(ctx, func() {}))
	mu.Lock()
	assert.Equal(t, 50, count)
	mu.Unlock()

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	<-l.Done()
	assert.False(t, l.Post(func() {}))
}

func TestClose(t *testing.T) {
	t.Parallel()
	l := New()
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(context.Background()) }()

	l.Close()
	l.Close()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	require.ErrorIs(t, l.Call(context.Background(), func() {}), ErrClosed)
}

func TestCallContextDone(t *testing.T) {
	t.Parallel()
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// nothing runs the loop, so only ctx can end the wait
	require.ErrorIs(t, l.Call(ctx, func() {}), context.Canceled)
}
