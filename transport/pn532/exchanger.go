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

package pn532

import (
	"context"
	"fmt"
	"sync"

	type4 "github.com/ZaparooProject/go-type4"
)

// maxExchangeData is what fits in a normal frame after TFI, command and Tg.
const maxExchangeData = 252

// Exchanger moves APDUs to one listed target with InDataExchange. It
// implements type4.Exchanger and type4.Reselector, so it can back a
// type4.AsyncTransport.
type Exchanger struct {
	dev    *Device
	target *Target
	mu     sync.Mutex
}

// NewExchanger binds an exchanger to target
func NewExchanger(dev *Device, target *Target) (*Exchanger, error) {
	if dev == nil || target == nil {
		return nil, fmt.Errorf("%w: nil device or target", ErrInvalidParameter)
	}
	if !target.IsISODEP() {
		return nil, fmt.Errorf("%w: SAK %02X", ErrNotISODEP, target.SAK)
	}
	return &Exchanger{dev: dev, target: target}, nil
}

// Target returns the bound target
func (e *Exchanger) Target() *Target {
	return e.target
}

// Exchange sends apdu and returns the complete R-APDU. Long frames are
// chained with the MI bit in both directions.
func (e *Exchanger) Exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tg := e.target.Number
	for len(apdu) > maxExchangeData {
		if _, _, err := e.dataExchange(ctx, tg|moreInformation, apdu[:maxExchangeData]); err != nil {
			return nil, err
		}
		apdu = apdu[maxExchangeData:]
	}

	out, status, err := e.dataExchange(ctx, tg, apdu)
	if err != nil {
		return nil, err
	}
	for status&moreInformation != 0 {
		var part []byte
		part, status, err = e.dataExchange(ctx, tg, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, part...)
	}
	return out, nil
}

func (e *Exchanger) dataExchange(ctx context.Context, tg byte, data []byte) ([]byte, byte, error) {
	args := make([]byte, 0, 1+len(data))
	args = append(args, tg)
	args = append(args, data...)
	resp, err := e.dev.send(ctx, CmdInDataExchange, args)
	if err != nil {
		return nil, 0, fmt.Errorf("InDataExchange failed: %w", err)
	}
	if err := statusError("InDataExchange", resp); err != nil {
		return nil, 0, err
	}
	return append([]byte(nil), resp[1:]...), resp[0], nil
}

// Reselect deselects the target and selects it again, which repeats RATS.
func (e *Exchanger) Reselect(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tg := e.target.Number
	resp, err := e.dev.send(ctx, CmdInDeselect, []byte{tg})
	if err != nil {
		return fmt.Errorf("InDeselect failed: %w", err)
	}
	if err := statusError("InDeselect", resp); err != nil {
		return err
	}
	resp, err = e.dev.send(ctx, CmdInSelect, []byte{tg})
	if err != nil {
		return fmt.Errorf("InSelect failed: %w", err)
	}
	return statusError("InSelect", resp)
}

// Release releases the target
func (e *Exchanger) Release(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dev.Release(ctx, e.target.Number)
}

var (
	_ type4.Exchanger  = (*Exchanger)(nil)
	_ type4.Reselector = (*Exchanger)(nil)
)
