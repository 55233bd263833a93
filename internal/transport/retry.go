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

// Package transport holds retry helpers shared by the PN532 links
package transport

import (
	"context"
	"time"

	"github.com/ZaparooProject/go-type4/transport/pn532"
)

// RetryOperation is one attempt. It returns the result, whether another
// attempt should be made, or an error that stops retrying.
type RetryOperation[T any] func() (T, bool, error)

// RetryConfig configures WithRetry
type RetryConfig struct {
	OnRetry    func() error
	Port       string
	Op         string
	MaxRetries int
	RetryDelay time.Duration
}

// WithRetry runs operation until it stops asking for a retry, MaxRetries
// extra attempts have been made, or ctx ends.
func WithRetry[T any](ctx context.Context, config RetryConfig, operation RetryOperation[T]) (T, error) {
	var zero T

	for attempt := 0; ; attempt++ {
		result, shouldRetry, err := operation()
		if err != nil {
			return zero, err
		}
		if !shouldRetry {
			return result, nil
		}
		if attempt >= config.MaxRetries {
			break
		}
		if config.OnRetry != nil {
			if err := config.OnRetry(); err != nil {
				return zero, err
			}
		}
		if err := sleep(ctx, config.RetryDelay); err != nil {
			return zero, err
		}
	}

	return zero, pn532.NewTransportError(config.Op, config.Port, pn532.ErrCommunicationFailed, pn532.ErrorTypeTransient)
}

// TimeoutRetry polls operation every millisecond until it is done, the
// timeout passes or ctx ends. Used for waiting on the PN532 ready bit.
func TimeoutRetry[T any](ctx context.Context, timeout time.Duration, op, port string,
	operation RetryOperation[T],
) (T, error) {
	var zero T
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		result, shouldRetry, err := operation()
		if err != nil {
			return zero, err
		}
		if !shouldRetry {
			return result, nil
		}
		if err := sleep(ctx, time.Millisecond); err != nil {
			return zero, err
		}
	}

	return zero, pn532.NewTimeoutError(op, port)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
