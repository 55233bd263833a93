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
	"errors"
	"sync"
	"testing"
	"time"

	type4 "github.com/ZaparooProject/go-type4"
	"github.com/ZaparooProject/go-type4/eventloop"
	testutil "github.com/ZaparooProject/go-type4/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource reports whatever tag the test has put in the field.
type fakeSource struct {
	current *Detected
	err     error
	mu      sync.Mutex
}

func (f *fakeSource) Poll(context.Context) (*Detected, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.current == nil {
		return nil, ErrNoTagInPoll
	}
	return f.current, nil
}

func (f *fakeSource) set(d *Detected, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current, f.err = d, err
}

func virtualDetected(t *testing.T, vt *testutil.VirtualTag) *Detected {
	t.Helper()
	params, err := type4.ParseATS(vt.ATS)
	require.NoError(t, err)
	return &Detected{UID: vt.GetUIDString(), Params: params, Exchanger: vt}
}

func fastConfig() *Config {
	return &Config{
		PollInterval:       5 * time.Millisecond,
		CardRemovalTimeout: 60 * time.Millisecond,
		ExchangeTimeout:    500 * time.Millisecond,
	}
}

type harness struct {
	monitor     *Monitor
	source      *fakeSource
	initialized chan string
	removed     chan string
	ctx         context.Context
}

func startMonitor(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	loop := eventloop.New()
	go func() { _ = loop.Run(ctx) }()

	h := &harness{
		source:      &fakeSource{},
		initialized: make(chan string, 8),
		removed:     make(chan string, 8),
		ctx:         ctx,
	}
	m, err := NewMonitor(h.source, loop, fastConfig())
	require.NoError(t, err)
	m.OnTagInitialized = func(tag *type4.Tag) {
		text := ""
		if n := tag.NDEF(); n != nil {
			text, _ = n.Text()
		}
		h.initialized <- text
	}
	m.OnTagRemoved = func(uid string) { h.removed <- uid }
	h.monitor = m

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = m.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
		loop.Close()
	})
	return h
}

func (h *harness) next(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-h.ctx.Done():
		t.Fatal("timed out waiting for monitor")
		return ""
	}
}

func TestMonitorTagLifecycle(t *testing.T) {
	t.Parallel()

	h := startMonitor(t)
	vt := testutil.NewVirtualTag(nil)
	det := virtualDetected(t, vt)
	h.source.set(det, nil)

	assert.Equal(t, "Hello World", h.next(t, h.initialized))

	// Staying in the field must not trigger another discovery.
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, h.initialized)
	assert.True(t, h.monitor.GetState().Present)

	h.source.set(nil, nil)
	assert.Equal(t, det.UID, h.next(t, h.removed))
	assert.False(t, h.monitor.GetState().Present)

	metrics := h.monitor.GetMetrics()
	assert.Equal(t, int64(1), metrics.TagsDetected)
	assert.Positive(t, metrics.PollCycles)
}

func TestMonitorTagSwap(t *testing.T) {
	t.Parallel()

	h := startMonitor(t)
	first := testutil.NewVirtualTag([]byte{0x04, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06})
	second := testutil.NewVirtualTag([]byte{0x04, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F})
	require.NoError(t, second.SetNDEFText("second"))

	h.source.set(virtualDetected(t, first), nil)
	assert.Equal(t, "Hello World", h.next(t, h.initialized))

	h.source.set(virtualDetected(t, second), nil)
	assert.Equal(t, first.GetUIDString(), h.next(t, h.removed))
	assert.Equal(t, "second", h.next(t, h.initialized))
}

func TestMonitorTagWithoutNDEF(t *testing.T) {
	t.Parallel()

	h := startMonitor(t)
	vt := testutil.NewVirtualTag(nil)
	vt.SetCC([]byte{0x00, 0x0F, 0x30, 0x00, 0x3B, 0x00, 0x34, 0x04, 0x06, 0xE1, 0x04, 0x0F, 0xFF, 0x00, 0xFF})
	h.source.set(virtualDetected(t, vt), nil)

	assert.Empty(t, h.next(t, h.initialized), "unsupported CC version resolves without NDEF")
}

func TestMonitorPollErrorDropsTag(t *testing.T) {
	t.Parallel()

	h := startMonitor(t)
	det := virtualDetected(t, testutil.NewVirtualTag(nil))
	h.source.set(det, nil)
	h.next(t, h.initialized)

	h.source.set(nil, errors.New("reader unplugged"))
	assert.Equal(t, det.UID, h.next(t, h.removed))
	assert.Eventually(t, func() bool { return h.monitor.GetMetrics().PollErrors > 0 },
		time.Second, 5*time.Millisecond)
}

func TestMonitorIgnoresNonType4(t *testing.T) {
	t.Parallel()

	h := startMonitor(t)
	h.source.set(nil, ErrNotType4)
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, h.monitor.GetMetrics().PollErrors)
	assert.False(t, h.monitor.GetState().Present)
}

func TestMonitorPauseResume(t *testing.T) {
	t.Parallel()

	h := startMonitor(t)
	h.monitor.Pause()
	assert.True(t, h.monitor.Paused())
	time.Sleep(20 * time.Millisecond)

	before := h.monitor.GetMetrics().PollCycles
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, h.monitor.GetMetrics().PollCycles)

	h.monitor.Resume()
	assert.Eventually(t, func() bool { return h.monitor.GetMetrics().PollCycles > before },
		time.Second, 5*time.Millisecond)
}

func TestNewMonitorValidation(t *testing.T) {
	t.Parallel()

	loop := eventloop.New()
	_, err := NewMonitor(nil, loop, nil)
	require.Error(t, err)

	_, err = NewMonitor(&fakeSource{}, nil, nil)
	require.ErrorIs(t, err, type4.ErrNilDispatcher)

	_, err = NewMonitor(&fakeSource{}, loop, &Config{})
	require.Error(t, err)

	m, err := NewMonitor(&fakeSource{}, loop, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().PollInterval, m.CurrentPollInterval())
}

func TestCurrentPollIntervalIdles(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		PollInterval:       10 * time.Millisecond,
		IdleInterval:       200 * time.Millisecond,
		IdleAfter:          time.Millisecond,
		CardRemovalTimeout: time.Second,
	}
	m, err := NewMonitor(&fakeSource{}, eventloop.New(), cfg)
	require.NoError(t, err)
	m.lastDetection.Store(time.Now().Add(-time.Second).UnixNano())
	assert.Equal(t, 200*time.Millisecond, m.CurrentPollInterval())

	m.lastDetection.Store(time.Now().UnixNano())
	cfg.IdleAfter = time.Hour
	assert.Equal(t, 10*time.Millisecond, m.CurrentPollInterval())
}
