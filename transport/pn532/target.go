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
	"encoding/hex"
	"fmt"

	type4 "github.com/ZaparooProject/go-type4"
)

const sakISODEP = 0x20

// Target is a Type A target listed by InListPassiveTarget
type Target struct {
	UID    []byte
	ATS    []byte
	ATQA   uint16
	Number byte
	SAK    byte
}

// UIDString returns the UID as lowercase hex
func (t *Target) UIDString() string {
	return hex.EncodeToString(t.UID)
}

// IsISODEP reports whether the SAK advertises ISO 14443-4
func (t *Target) IsISODEP() bool {
	return t.SAK&sakISODEP != 0
}

// Params decodes the ATS into Type A activation parameters.
func (t *Target) Params() (*type4.IsoDepPollA, error) {
	if !t.IsISODEP() {
		return nil, fmt.Errorf("%w: SAK %02X", ErrNotISODEP, t.SAK)
	}
	if len(t.ATS) == 0 {
		return nil, fmt.Errorf("%w: no ATS", ErrNotISODEP)
	}
	p, err := type4.ParseATS(t.ATS)
	if err != nil {
		return nil, fmt.Errorf("target %d: %w", t.Number, err)
	}
	return p, nil
}

// parseTarget decodes the InListPassiveTarget body for 106 kbps Type A:
// NbTg Tg SENS_RES(2) SEL_RES NFCIDLength NFCID1 [ATS].
func parseTarget(resp []byte) (*Target, error) {
	if len(resp) < 1 || resp[0] == 0 {
		return nil, ErrTagNotFound
	}
	if len(resp) < 6 {
		return nil, fmt.Errorf("%w: target data % X", ErrInvalidResponse, resp)
	}
	t := &Target{
		Number: resp[1],
		ATQA:   uint16(resp[2])<<8 | uint16(resp[3]),
		SAK:    resp[4],
	}
	uidLen := int(resp[5])
	rest := resp[6:]
	if len(rest) < uidLen {
		return nil, fmt.Errorf("%w: truncated UID", ErrInvalidResponse)
	}
	t.UID = append([]byte(nil), rest[:uidLen]...)
	rest = rest[uidLen:]
	if len(rest) > 0 {
		tl := int(rest[0])
		if tl == 0 || tl > len(rest) {
			return nil, fmt.Errorf("%w: ATS length %d", ErrInvalidResponse, tl)
		}
		t.ATS = append([]byte(nil), rest[:tl]...)
	}
	return t, nil
}
