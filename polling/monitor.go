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
	"io"
	"sync"
	"sync/atomic"
	"time"

	type4 "github.com/ZaparooProject/go-type4"
	"github.com/rs/zerolog/log"
)

// ErrDispatcherClosed is returned when the dispatcher no longer runs
// callbacks.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// Metrics are running counters for a Monitor.
type Metrics struct {
	PollCycles      int64
	PollErrors      int64
	TagsDetected    int64
	LastPollLatency time.Duration
}

// session is one tag's stay in the field. tag and closed belong to the
// dispatcher goroutine.
type session struct {
	transport type4.Transport
	tag       *type4.Tag
	done      chan struct{}
	uid       string
	endOnce   sync.Once
	closed    bool
}

// Monitor polls a Source and runs NDEF discovery on every tag it finds.
//
// OnTagInitialized and OnTagRemoved run on the dispatcher goroutine, the
// same one that owns the tags.
type Monitor struct {
	source           Source
	dispatcher       type4.Dispatcher
	config           *Config
	session          *session
	OnTagInitialized func(tag *type4.Tag)
	OnTagRemoved     func(uid string)
	tagOptions       []type4.Option
	state            CardState
	timerGen         uint64
	pollCycles       atomic.Int64
	pollErrors       atomic.Int64
	tagsDetected     atomic.Int64
	lastPollLatency  atomic.Int64
	lastDetection    atomic.Int64
	mu               sync.Mutex
	paused           atomic.Bool
}

// NewMonitor creates a monitor. A nil config uses DefaultConfig. opts are
// passed to every type4.Tag the monitor creates.
func NewMonitor(source Source, d type4.Dispatcher, config *Config, opts ...type4.Option) (*Monitor, error) {
	if source == nil {
		return nil, errors.New("nil source")
	}
	if d == nil {
		return nil, type4.ErrNilDispatcher
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Monitor{
		source:     source,
		dispatcher: d,
		config:     config,
		tagOptions: opts,
	}, nil
}

// Start polls until ctx is done. It blocks.
func (m *Monitor) Start(ctx context.Context) error {
	defer m.reset()
	m.lastDetection.Store(time.Now().UnixNano())

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !m.paused.Load() {
			m.pollOnce(ctx)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(m.CurrentPollInterval()):
		}
	}
}

// Pause stops polling without forgetting the current tag. Use it while the
// application exchanges APDUs with the tag.
func (m *Monitor) Pause() {
	m.paused.Store(true)
}

// Resume restarts polling.
func (m *Monitor) Resume() {
	m.paused.Store(false)
}

// Paused reports whether polling is paused.
func (m *Monitor) Paused() bool {
	return m.paused.Load()
}

// GetState returns a copy of the current card state.
func (m *Monitor) GetState() CardState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// GetMetrics returns the running counters.
func (m *Monitor) GetMetrics() Metrics {
	return Metrics{
		PollCycles:      m.pollCycles.Load(),
		PollErrors:      m.pollErrors.Load(),
		TagsDetected:    m.tagsDetected.Load(),
		LastPollLatency: time.Duration(m.lastPollLatency.Load()),
	}
}

// CurrentPollInterval slows polling down after IdleAfter without a tag.
func (m *Monitor) CurrentPollInterval() time.Duration {
	if m.config.IdleAfter <= 0 {
		return m.config.PollInterval
	}
	since := time.Since(time.Unix(0, m.lastDetection.Load()))
	if since > m.config.IdleAfter {
		return m.config.idleInterval()
	}
	return m.config.PollInterval
}

// Close forgets the current tag and closes the source if it can be closed.
func (m *Monitor) Close() error {
	m.reset()
	if c, ok := m.source.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (m *Monitor) pollOnce(ctx context.Context) {
	budget := m.config.PollInterval
	if m.config.ExchangeTimeout > budget {
		budget = m.config.ExchangeTimeout
	}
	pollCtx, cancel := context.WithTimeout(ctx, budget)
	start := time.Now()
	det, err := m.source.Poll(pollCtx)
	cancel()
	m.pollCycles.Add(1)
	m.lastPollLatency.Store(time.Since(start).Nanoseconds())

	switch {
	case errors.Is(err, ErrNoTagInPoll):
		return
	case errors.Is(err, ErrNotType4):
		log.Debug().Err(err).Msg("ignoring target")
		return
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		m.pollErrors.Add(1)
		log.Warn().Err(err).Msg("poll failed")
		m.handleRemoval()
		return
	}

	m.lastDetection.Store(start.UnixNano())
	m.handleDetected(ctx, det)
}

// handleDetected refreshes a known tag or starts discovery on a new one.
func (m *Monitor) handleDetected(ctx context.Context, det *Detected) {
	m.mu.Lock()
	if m.state.Present && m.state.LastUID == det.UID {
		if m.state.DetectionState != StateDiscovering {
			m.state.TransitionToDetected(m.config.CardRemovalTimeout, m.removalCallback())
		}
		m.mu.Unlock()
		return
	}

	old := m.session
	m.session = nil
	m.state.TransitionToIdle()
	m.state.Present = true
	m.state.LastUID = det.UID
	if det.Params != nil {
		m.state.LastTechnology = det.Params.Technology().String()
	}
	m.state.TransitionToDiscovering()
	m.mu.Unlock()

	if old != nil {
		m.endSession(old)
	}
	m.tagsDetected.Add(1)
	log.Debug().Str("uid", det.UID).Msg("tag entered field")

	s, ready, err := m.startSession(det)
	if err != nil {
		log.Error().Err(err).Str("uid", det.UID).Msg("failed to start discovery")
		m.mu.Lock()
		m.state.TransitionToIdle()
		m.mu.Unlock()
		return
	}

	select {
	case <-ready:
	case <-s.done:
		return
	case <-ctx.Done():
		return
	}

	m.mu.Lock()
	if m.session == s && m.state.DetectionState == StateDiscovering {
		m.state.TransitionToPostReadGrace(m.config.CardRemovalTimeout, m.removalCallback())
	}
	m.mu.Unlock()
}

// startSession creates the tag on the dispatcher. ready closes once
// discovery has resolved.
func (m *Monitor) startSession(det *Detected) (*session, <-chan struct{}, error) {
	tr, err := type4.NewAsyncTransport(det.Exchanger, m.dispatcher, m.config.ExchangeTimeout)
	if err != nil {
		return nil, nil, err
	}
	s := &session{uid: det.UID, transport: tr, done: make(chan struct{})}
	ready := make(chan struct{})
	var once sync.Once
	signal := func() { once.Do(func() { close(ready) }) }

	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	opts := make([]type4.Option, 0, len(m.tagOptions)+1)
	opts = append(opts, m.tagOptions...)
	opts = append(opts, type4.WithInitializedHandler(func(tag *type4.Tag) {
		signal()
		log.Debug().Str("uid", s.uid).Bool("ndef", tag.NDEF() != nil).Msg("discovery resolved")
		if m.OnTagInitialized != nil {
			m.OnTagInitialized(tag)
		}
	}))

	posted := m.dispatcher.Post(func() {
		if s.closed {
			return
		}
		tag, err := type4.NewTag(tr, det.Params, opts...)
		if err != nil {
			log.Error().Err(err).Str("uid", s.uid).Msg("failed to create tag")
			signal()
			return
		}
		s.tag = tag
	})
	if !posted {
		m.mu.Lock()
		if m.session == s {
			m.session = nil
		}
		m.mu.Unlock()
		return nil, nil, ErrDispatcherClosed
	}
	return s, ready, nil
}

// endSession closes the transport at once and the tag on the dispatcher.
func (m *Monitor) endSession(s *session) {
	s.endOnce.Do(func() {
		close(s.done)
		if c, ok := s.transport.(io.Closer); ok {
			_ = c.Close()
		}
		m.dispatcher.Post(func() {
			s.closed = true
			if s.tag != nil {
				s.tag.Close()
			}
			log.Debug().Str("uid", s.uid).Msg("tag left field")
			if m.OnTagRemoved != nil {
				m.OnTagRemoved(s.uid)
			}
		})
	})
}

// removalCallback arms a fresh timer generation. Callers hold mu.
func (m *Monitor) removalCallback() func() {
	m.timerGen++
	gen := m.timerGen
	return func() {
		m.mu.Lock()
		if gen != m.timerGen || !m.state.Present || !m.state.CanStartRemovalTimer() {
			m.mu.Unlock()
			return
		}
		s := m.session
		m.session = nil
		m.state.TransitionToIdle()
		m.mu.Unlock()
		if s != nil {
			m.endSession(s)
		}
	}
}

// handleRemoval drops the current tag after a reader error.
func (m *Monitor) handleRemoval() {
	m.mu.Lock()
	if !m.state.Present {
		m.mu.Unlock()
		return
	}
	s := m.session
	m.session = nil
	m.timerGen++
	m.state.TransitionToIdle()
	m.mu.Unlock()
	if s != nil {
		m.endSession(s)
	}
}

func (m *Monitor) reset() {
	m.mu.Lock()
	s := m.session
	m.session = nil
	m.timerGen++
	m.state.TransitionToIdle()
	m.mu.Unlock()
	if s != nil {
		m.endSession(s)
	}
}
