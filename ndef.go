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

package type4

import (
	"fmt"

	"github.com/hsanjuan/go-ndef"
)

// NDEFParser turns the raw content of the NDEF file into a message. A
// parser error makes discovery resolve as "no NDEF".
type NDEFParser interface {
	Parse(raw []byte) (*ndef.Message, error)
}

// NDEFParserFunc adapts a function to NDEFParser.
type NDEFParserFunc func(raw []byte) (*ndef.Message, error)

// Parse implements NDEFParser.
func (f NDEFParserFunc) Parse(raw []byte) (*ndef.Message, error) { return f(raw) }

// DefaultNDEFParser decodes with go-ndef.
var DefaultNDEFParser NDEFParser = NDEFParserFunc(ParseNDEF)

// ParseNDEF decodes an NDEF message.
func ParseNDEF(raw []byte) (*ndef.Message, error) {
	if len(raw) == 0 {
		return nil, ErrNDEFEmpty
	}
	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(raw); err != nil {
		return nil, fmt.Errorf("failed to parse NDEF message: %w", err)
	}
	if len(msg.Records) == 0 {
		return nil, ErrNDEFEmpty
	}
	return msg, nil
}

// NDEF is the content of a tag's NDEF file.
type NDEF struct {
	Message *ndef.Message
	Raw     []byte
}

// RecordKind classifies a record by TNF and type.
type RecordKind string

const (
	RecordText     RecordKind = "text"
	RecordURI      RecordKind = "uri"
	RecordMedia    RecordKind = "media"
	RecordExternal RecordKind = "external"
	RecordOther    RecordKind = "other"
)

// Record is a flattened NDEF record.
type Record struct {
	Kind    RecordKind
	Type    string
	Text    string
	URI     string
	Payload []byte
}

// Records flattens the message. Records whose payload cannot be decoded
// are skipped.
func (n *NDEF) Records() []Record {
	if n == nil || n.Message == nil {
		return nil
	}
	out := make([]Record, 0, len(n.Message.Records))
	for _, rec := range n.Message.Records {
		payload, err := rec.Payload()
		if err != nil {
			debugf("skipping NDEF record: %v", err)
			continue
		}
		r := Record{Type: rec.Type(), Payload: payload.Marshal(), Kind: RecordOther}
		switch rec.TNF() {
		case ndef.NFCForumWellKnownType:
			switch r.Type {
			case "T":
				r.Kind = RecordText
				r.Text = decodeText(r.Payload)
			case "U":
				r.Kind = RecordURI
				r.URI = decodeURI(r.Payload)
			}
		case ndef.AbsoluteURI:
			r.Kind = RecordURI
			r.URI = r.Type
		case ndef.MediaType:
			r.Kind = RecordMedia
		case ndef.NFCForumExternalType:
			r.Kind = RecordExternal
		}
		out = append(out, r)
	}
	return out
}

// Text returns the first text record, if any.
func (n *NDEF) Text() (string, bool) {
	for _, r := range n.Records() {
		if r.Kind == RecordText {
			return r.Text, true
		}
	}
	return "", false
}

func decodeText(p []byte) string {
	if len(p) == 0 {
		return ""
	}
	langLen := int(p[0] & 0x3F)
	if 1+langLen > len(p) {
		return ""
	}
	return string(p[1+langLen:])
}

var uriPrefixes = [...]string{
	"", "http://www.", "https://www.", "http://", "https://", "tel:", "mailto:",
	"ftp://anonymous:anonymous@", "ftp://ftp.", "ftps://", "sftp://", "smb://",
	"nfs://", "ftp://", "dav://", "news:", "telnet://", "imap:", "rtsp://",
	"urn:", "pop:", "sip:", "sips:", "tftp:", "btspp://", "btl2cap://",
	"btgoep://", "tcpobex://", "irdaobex://", "file://", "urn:epc:id:",
	"urn:epc:tag:", "urn:epc:pat:", "urn:epc:raw:", "urn:epc:", "urn:nfc:",
}

func decodeURI(p []byte) string {
	if len(p) == 0 {
		return ""
	}
	prefix := ""
	if int(p[0]) < len(uriPrefixes) {
		prefix = uriPrefixes[p[0]]
	}
	return prefix + string(p[1:])
}
