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

package reader

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-type4/polling"
	"github.com/ZaparooProject/go-type4/transport/libnfc"
)

type libnfcSource struct {
	r *libnfc.Reader
}

func (s *libnfcSource) Poll(context.Context) (*polling.Detected, error) {
	params, err := s.r.Select()
	switch {
	case errors.Is(err, libnfc.ErrNoTarget):
		return nil, polling.ErrNoTagInPoll
	case errors.Is(err, libnfc.ErrNotISODEP):
		return nil, fmt.Errorf("%w: %w", polling.ErrNotType4, err)
	case err != nil:
		return nil, err
	}
	return &polling.Detected{UID: hex.EncodeToString(s.r.UID()), Params: params, Exchanger: s.r}, nil
}

func openLibNFC(conn string) (*Reader, error) {
	r, err := libnfc.Open(conn)
	if err != nil {
		return nil, err
	}
	name := conn
	if name == "" {
		name = "libnfc"
	}
	return &Reader{Source: &libnfcSource{r: r}, Name: name, closers: []func() error{r.Close}}, nil
}
