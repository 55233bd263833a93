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

// Package pcsc reaches Type 4 tags through a PC/SC contactless reader.
// The reader runs ISO-DEP itself, so APDUs go out with SCardTransmit.
package pcsc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	type4 "github.com/ZaparooProject/go-type4"
	"github.com/ebfe/scard"
	"github.com/rs/zerolog/log"
)

// Errors
var (
	ErrNoReader      = errors.New("no PC/SC reader found")
	ErrNoCard        = errors.New("no card present")
	ErrShortResponse = errors.New("response shorter than a status word")
)

const (
	swBytesAvailable = 0x61
	swWrongLe        = 0x6C
	insGetResponse   = 0xC0
	maxGetResponses  = 16

	// contactless readers do the framing; a full short APDU always fits
	readerFrameSize = 256
)

// Card is the part of *scard.Card the exchanger uses
type Card interface {
	Transmit(cmd []byte) ([]byte, error)
	Reconnect(mode scard.ShareMode, proto scard.Protocol, disp scard.Disposition) error
	Disconnect(disp scard.Disposition) error
	Status() (*scard.CardStatus, error)
}

// Exchanger sends APDUs to a connected card. It implements type4.Exchanger
// and type4.Reselector.
type Exchanger struct {
	card   Card
	reader string
	mu     sync.Mutex
}

// NewExchanger wraps a connected card
func NewExchanger(card Card, reader string) *Exchanger {
	return &Exchanger{card: card, reader: reader}
}

// Reader returns the reader name
func (e *Exchanger) Reader() string {
	return e.reader
}

// Exchange transmits apdu. 61XX answers are collected with GET RESPONSE
// and 6CXX answers are repeated with the suggested Le.
func (e *Exchanger) Exchange(ctx context.Context, apdu []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	resp, err := e.transmit(ctx, apdu)
	if err != nil {
		return nil, err
	}
	if sw1, sw2 := statusWord(resp); sw1 == swWrongLe && len(apdu) >= 4 {
		retry := append(append([]byte(nil), apdu[:4]...), apdu[4:len(apdu)-leLength(apdu)]...)
		retry = append(retry, sw2)
		if resp, err = e.transmit(ctx, retry); err != nil {
			return nil, err
		}
	}

	var body []byte
	for i := 0; ; i++ {
		sw1, sw2 := statusWord(resp)
		if sw1 != swBytesAvailable || i == maxGetResponses {
			return append(body, resp...), nil
		}
		body = append(body, resp[:len(resp)-2]...)
		if resp, err = e.transmit(ctx, []byte{apdu[0], insGetResponse, 0x00, 0x00, sw2}); err != nil {
			return nil, err
		}
	}
}

func (e *Exchanger) transmit(ctx context.Context, apdu []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := e.card.Transmit(apdu)
	if err != nil {
		return nil, fmt.Errorf("transmit on %s: %w", e.reader, err)
	}
	if len(resp) < 2 {
		return nil, fmt.Errorf("%w: % X", ErrShortResponse, resp)
	}
	return resp, nil
}

// leLength is the number of trailing Le bytes in a short APDU, assuming
// the command has no data when it is five bytes long.
func leLength(apdu []byte) int {
	switch {
	case len(apdu) == 5:
		return 1
	case len(apdu) > 5 && len(apdu) == 5+int(apdu[4])+1:
		return 1
	default:
		return 0
	}
}

func statusWord(resp []byte) (byte, byte) {
	return resp[len(resp)-2], resp[len(resp)-1]
}

// Reselect resets the card and reconnects, which repeats activation.
func (e *Exchanger) Reselect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.card.Reconnect(scard.ShareShared, scard.ProtocolAny, scard.ResetCard); err != nil {
		return fmt.Errorf("reconnect on %s: %w", e.reader, err)
	}
	return nil
}

// Params derives Type A parameters from the card's ATR. PC/SC readers
// report a contactless card as 3B 8n 80 01 <n historical bytes> TCK.
func (e *Exchanger) Params() (*type4.IsoDepPollA, error) {
	st, err := e.card.Status()
	if err != nil {
		return nil, fmt.Errorf("status on %s: %w", e.reader, err)
	}
	return ParamsFromATR(st.Atr), nil
}

// ParamsFromATR extracts historical bytes from a PC/SC contactless ATR
func ParamsFromATR(atr []byte) *type4.IsoDepPollA {
	p := &type4.IsoDepPollA{FSC: readerFrameSize}
	if len(atr) < 5 || atr[0] != 0x3B || atr[1]&0xF0 != 0x80 {
		return p
	}
	n := int(atr[1] & 0x0F)
	if 4+n <= len(atr) {
		p.HistoricalBytes = append([]byte(nil), atr[4:4+n]...)
	}
	return p
}

// Close disconnects the card, leaving it powered
func (e *Exchanger) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.card.Disconnect(scard.LeaveCard); err != nil {
		return fmt.Errorf("disconnect on %s: %w", e.reader, err)
	}
	return nil
}

// Context owns a PC/SC context
type Context struct {
	ctx *scard.Context
}

// Establish creates a PC/SC context
func Establish() (*Context, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("failed to establish PC/SC context: %w", err)
	}
	return &Context{ctx: ctx}, nil
}

// Readers lists the connected readers
func (c *Context) Readers() ([]string, error) {
	readers, err := c.ctx.ListReaders()
	if err != nil {
		return nil, fmt.Errorf("failed to list readers: %w", err)
	}
	if len(readers) == 0 {
		return nil, ErrNoReader
	}
	return readers, nil
}

// WaitForCard blocks until a card is present on reader or ctx ends.
func (c *Context) WaitForCard(ctx context.Context, reader string) error {
	rs := []scard.ReaderState{{Reader: reader, CurrentState: scard.StateUnaware}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := c.ctx.GetStatusChange(rs, 250*time.Millisecond)
		switch {
		case errors.Is(err, scard.ErrTimeout):
		case err != nil:
			return fmt.Errorf("status change on %s: %w", reader, err)
		}
		if rs[0].EventState&scard.StatePresent != 0 {
			return nil
		}
		rs[0].CurrentState = rs[0].EventState
	}
}

// Connect connects to the card on reader
func (c *Context) Connect(reader string) (*Exchanger, error) {
	card, err := c.ctx.Connect(reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		if errors.Is(err, scard.ErrNoSmartcard) || errors.Is(err, scard.ErrRemovedCard) {
			return nil, fmt.Errorf("%w on %s", ErrNoCard, reader)
		}
		return nil, fmt.Errorf("connect to %s: %w", reader, err)
	}
	log.Debug().Str("reader", reader).Msg("card connected")
	return NewExchanger(card, reader), nil
}

// Release releases the context
func (c *Context) Release() error {
	if err := c.ctx.Release(); err != nil {
		return fmt.Errorf("failed to release PC/SC context: %w", err)
	}
	return nil
}

var (
	_ type4.Exchanger  = (*Exchanger)(nil)
	_ type4.Reselector = (*Exchanger)(nil)
	_ Card             = (*scard.Card)(nil)
)
