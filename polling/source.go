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
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	type4 "github.com/ZaparooProject/go-type4"
	"github.com/ZaparooProject/go-type4/transport/pcsc"
	"github.com/ZaparooProject/go-type4/transport/pn532"
	"github.com/rs/zerolog/log"
)

// ErrNotType4 is returned for targets that do not speak ISO-DEP.
var ErrNotType4 = errors.New("target is not an ISO-DEP tag")

// Detected is an activated tag ready for NDEF discovery.
type Detected struct {
	Exchanger type4.Exchanger
	Params    type4.Activation
	UID       string
}

// Source finds the tag in a reader's field. Poll returns ErrNoTagInPoll
// when the field is empty.
type Source interface {
	Poll(ctx context.Context) (*Detected, error)
}

// PN532Source polls a PN532 with InListPassiveTarget.
type PN532Source struct {
	dev *pn532.Device
}

// NewPN532Source wraps an initialized device.
func NewPN532Source(dev *pn532.Device) *PN532Source {
	return &PN532Source{dev: dev}
}

// Poll implements Source.
func (s *PN532Source) Poll(ctx context.Context) (*Detected, error) {
	target, err := s.dev.DetectTarget(ctx)
	switch {
	case errors.Is(err, pn532.ErrTagNotFound), errors.Is(err, context.DeadlineExceeded):
		return nil, ErrNoTagInPoll
	case err != nil:
		return nil, err
	}
	if !target.IsISODEP() {
		return nil, fmt.Errorf("%w: %s SAK %02X", ErrNotType4, target.UIDString(), target.SAK)
	}
	params, err := target.Params()
	if err != nil {
		return nil, err
	}
	ex, err := pn532.NewExchanger(s.dev, target)
	if err != nil {
		return nil, err
	}
	return &Detected{UID: target.UIDString(), Params: params, Exchanger: ex}, nil
}

// getUID is the PC/SC pseudo-APDU that returns the card UID.
var getUID = []byte{0xFF, 0xCA, 0x00, 0x00, 0x00}

// Connector is the part of pcsc.Context a PCSCSource needs.
type Connector interface {
	Connect(reader string) (*pcsc.Exchanger, error)
}

// PCSCSource polls one PC/SC reader. It keeps the card connected between
// polls and only reconnects after the card has gone.
type PCSCSource struct {
	conn    Connector
	current *Detected
	ex      *pcsc.Exchanger
	reader  string
	mu      sync.Mutex
}

// NewPCSCSource polls reader through conn.
func NewPCSCSource(conn Connector, reader string) *PCSCSource {
	return &PCSCSource{conn: conn, reader: reader}
}

// Poll implements Source.
func (s *PCSCSource) Poll(ctx context.Context) (*Detected, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ex != nil {
		if _, err := s.ex.Params(); err == nil {
			return s.current, nil
		}
		_ = s.ex.Close()
		s.ex, s.current = nil, nil
	}

	ex, err := s.conn.Connect(s.reader)
	if errors.Is(err, pcsc.ErrNoCard) {
		return nil, ErrNoTagInPoll
	}
	if err != nil {
		return nil, err
	}
	params, err := ex.Params()
	if err != nil {
		_ = ex.Close()
		return nil, err
	}

	uid := ""
	if resp, err := ex.Exchange(ctx, getUID); err == nil && len(resp) > 2 &&
		resp[len(resp)-2] == 0x90 && resp[len(resp)-1] == 0x00 {
		uid = hex.EncodeToString(resp[:len(resp)-2])
	} else {
		log.Debug().Str("reader", s.reader).Msg("reader did not report a UID")
		uid = "pcsc:" + strings.ToLower(s.reader)
	}

	s.ex = ex
	s.current = &Detected{UID: uid, Params: params, Exchanger: ex}
	return s.current, nil
}

// Close disconnects the card, if any.
func (s *PCSCSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ex == nil {
		return nil
	}
	err := s.ex.Close()
	s.ex, s.current = nil, nil
	return err
}

var (
	_ Source    = (*PN532Source)(nil)
	_ Source    = (*PCSCSource)(nil)
	_ Connector = (*pcsc.Context)(nil)
)
