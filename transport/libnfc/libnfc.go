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

//go:build libnfc

// Package libnfc reaches Type 4 tags through any reader libnfc supports.
// It needs cgo and libnfc, so it is only built with the libnfc tag.
package libnfc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	type4 "github.com/ZaparooProject/go-type4"
	"github.com/clausecker/nfc/v2"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotISODEP is returned when the selected target is not ISO 14443-4
	ErrNotISODEP = errors.New("target does not support ISO-DEP")
	// ErrNoTarget is returned when no target answered the selection
	ErrNoTarget = errors.New("no target in field")
)

const maxResponse = 264

var typeA106 = nfc.Modulation{Type: nfc.ISO14443a, BaudRate: nfc.Nbr_106}

// Reader is an initiator on a libnfc device
type Reader struct {
	dev     nfc.Device
	uid     []byte
	timeout time.Duration
	mu      sync.Mutex
}

// Open opens conn ("" for the first device) and puts it in initiator mode
func Open(conn string) (*Reader, error) {
	dev, err := nfc.Open(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to open libnfc device %q: %w", conn, err)
	}
	if err := dev.InitiatorInit(); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("failed to init initiator: %w", err)
	}
	log.Debug().Str("device", dev.String()).Msg("libnfc initiator ready")
	return &Reader{dev: dev, timeout: time.Second}, nil
}

// Select activates the first Type A target and returns its parameters.
func (r *Reader) Select() (*type4.IsoDepPollA, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectLocked(nil)
}

func (r *Reader) selectLocked(uid []byte) (*type4.IsoDepPollA, error) {
	target, err := r.dev.InitiatorSelectPassiveTarget(typeA106, uid)
	if err != nil {
		return nil, fmt.Errorf("select passive target: %w", err)
	}
	if target == nil {
		return nil, ErrNoTarget
	}
	a, ok := target.(*nfc.ISO14443aTarget)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotISODEP, target)
	}
	if a.Sak&0x20 == 0 || a.AtsLen == 0 {
		return nil, fmt.Errorf("%w: SAK %02X", ErrNotISODEP, a.Sak)
	}
	r.uid = append([]byte(nil), a.UID[:a.UIDLen]...)

	// libnfc strips TL
	ats := make([]byte, 0, a.AtsLen+1)
	ats = append(ats, byte(a.AtsLen+1))
	ats = append(ats, a.Ats[:a.AtsLen]...)
	p, err := type4.ParseATS(ats)
	if err != nil {
		return nil, fmt.Errorf("target %X: %w", r.uid, err)
	}
	return p, nil
}

// UID returns the UID of the selected target
func (r *Reader) UID() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.uid
}

// Exchange implements type4.Exchanger.
func (r *Reader) Exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	rx := make([]byte, maxResponse)
	n, err := r.dev.InitiatorTransceiveBytes(apdu, rx, int(timeout/time.Millisecond))
	if err != nil {
		var nerr nfc.Error
		if errors.As(err, &nerr) && nerr == nfc.ETIMEOUT {
			return nil, fmt.Errorf("transceive: %w", context.DeadlineExceeded)
		}
		return nil, fmt.Errorf("transceive: %w", err)
	}
	return rx[:n], nil
}

// Reselect implements type4.Reselector by deselecting and selecting the
// same UID again.
func (r *Reader) Reselect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.dev.InitiatorDeselectTarget(); err != nil {
		return fmt.Errorf("deselect: %w", err)
	}
	_, err := r.selectLocked(r.uid)
	return err
}

// Close closes the device
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.dev.Close(); err != nil {
		return fmt.Errorf("failed to close libnfc device: %w", err)
	}
	return nil
}

var (
	_ type4.Exchanger  = (*Reader)(nil)
	_ type4.Reselector = (*Reader)(nil)
)
