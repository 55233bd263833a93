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
	"sync"

	type4 "github.com/ZaparooProject/go-type4"
	"github.com/rs/zerolog/log"
)

// Follower is a type4.Exchanger for whatever tag a Source currently sees.
// It polls lazily: the first exchange after a failure polls again, so a
// swapped tag is picked up without a running Monitor.
type Follower struct {
	source  Source
	current *Detected
	mu      sync.Mutex
}

// NewFollower wraps source.
func NewFollower(source Source) *Follower {
	return &Follower{source: source}
}

// Current returns the tag last polled, or nil.
func (f *Follower) Current() *Detected {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

// Exchange implements type4.Exchanger. It returns ErrNoTagInPoll when the
// field is empty.
func (f *Follower) Exchange(ctx context.Context, frame []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == nil {
		if err := f.poll(ctx); err != nil {
			return nil, err
		}
	}
	resp, err := f.current.Exchanger.Exchange(ctx, frame)
	if err != nil {
		log.Debug().Err(err).Str("uid", f.current.UID).Msg("exchange failed, forgetting tag")
		f.current = nil
	}
	return resp, err
}

// Reselect implements type4.Reselector by polling again, which activates
// the tag from scratch.
func (f *Follower) Reselect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = nil
	return f.poll(ctx)
}

func (f *Follower) poll(ctx context.Context) error {
	det, err := f.source.Poll(ctx)
	if err != nil {
		return err
	}
	if f.current == nil || f.current.UID != det.UID {
		log.Info().Str("uid", det.UID).Msg("following tag")
	}
	f.current = det
	return nil
}

var (
	_ type4.Exchanger  = (*Follower)(nil)
	_ type4.Reselector = (*Follower)(nil)
)
