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

// Package polling watches a reader for Type 4 tags. Each tag that enters
// the field gets a type4.Tag, and the caller hears about it once NDEF
// discovery has resolved and again when the tag leaves.
package polling

import (
	"errors"
	"time"
)

// Config tunes a Monitor.
type Config struct {
	// PollInterval is the pause between polls while tags come and go.
	PollInterval time.Duration
	// IdleInterval is used once nothing has been seen for IdleAfter.
	IdleInterval time.Duration
	IdleAfter    time.Duration
	// CardRemovalTimeout is how long a tag may go unseen before it is
	// reported removed.
	CardRemovalTimeout time.Duration
	// ExchangeTimeout bounds every frame exchanged with a tag.
	ExchangeTimeout time.Duration
}

// DefaultConfig returns settings suited to a desk reader.
func DefaultConfig() *Config {
	return &Config{
		PollInterval:       100 * time.Millisecond,
		IdleInterval:       500 * time.Millisecond,
		IdleAfter:          5 * time.Second,
		CardRemovalTimeout: 600 * time.Millisecond,
		ExchangeTimeout:    time.Second,
	}
}

// Validate rejects settings the monitor cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.PollInterval <= 0:
		return errors.New("poll interval must be positive")
	case c.CardRemovalTimeout <= 0:
		return errors.New("card removal timeout must be positive")
	case c.ExchangeTimeout < 0:
		return errors.New("exchange timeout must not be negative")
	}
	return nil
}

func (c *Config) idleInterval() time.Duration {
	if c.IdleInterval < c.PollInterval {
		return c.PollInterval
	}
	return c.IdleInterval
}
