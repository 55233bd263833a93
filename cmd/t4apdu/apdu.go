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

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	type4 "github.com/ZaparooProject/go-type4"
	"github.com/moov-io/bertlv"
)

var errMalformedAPDU = errors.New("malformed command APDU")

// parseCommand decodes a short command APDU written in hex. Spaces and
// colons between bytes are ignored.
func parseCommand(s string) (*type4.Command, error) {
	clean := strings.NewReplacer(" ", "", ":", "").Replace(s)
	raw, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedAPDU, err)
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("%w: %d bytes", errMalformedAPDU, len(raw))
	}
	cmd := &type4.Command{Class: raw[0], Instruction: raw[1], P1: raw[2], P2: raw[3]}
	body := raw[4:]
	switch {
	case len(body) == 0:
	case len(body) == 1:
		cmd.Le = shortLe(body[0])
	default:
		lc := int(body[0])
		switch len(body) {
		case 1 + lc:
		case 2 + lc:
			cmd.Le = shortLe(body[len(body)-1])
		default:
			return nil, fmt.Errorf("%w: Lc %d with %d bytes", errMalformedAPDU, lc, len(body)-1)
		}
		cmd.Data = body[1 : 1+lc]
	}
	return cmd, nil
}

func shortLe(b byte) int {
	if b == 0 {
		return 256
	}
	return int(b)
}

// describe renders a response body as BER-TLV when it parses as such and
// as plain hex otherwise.
func describe(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	tlvs, err := bertlv.Decode(data)
	if err != nil || len(tlvs) == 0 {
		return strings.ToUpper(hex.EncodeToString(data))
	}
	var sb strings.Builder
	writeTLVs(&sb, tlvs, "")
	return strings.TrimSuffix(sb.String(), "\n")
}

func writeTLVs(sb *strings.Builder, tlvs []bertlv.TLV, indent string) {
	for _, tlv := range tlvs {
		if len(tlv.TLVs) > 0 {
			_, _ = fmt.Fprintf(sb, "%s%s\n", indent, strings.ToUpper(tlv.Tag))
			writeTLVs(sb, tlv.TLVs, indent+"  ")
			continue
		}
		_, _ = fmt.Fprintf(sb, "%s%s: %s\n", indent, strings.ToUpper(tlv.Tag),
			strings.ToUpper(hex.EncodeToString(tlv.Value)))
	}
}
