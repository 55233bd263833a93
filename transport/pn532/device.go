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
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// FirmwareVersion is the answer to GetFirmwareVersion
type FirmwareVersion struct {
	IC      byte
	Version byte
	Rev     byte
	Support byte
}

func (f FirmwareVersion) String() string {
	return fmt.Sprintf("PN5%02X v%d.%d", f.IC, f.Version, f.Rev)
}

// SupportsISO14443A reports the Type A bit of the support byte
func (f FirmwareVersion) SupportsISO14443A() bool {
	return f.Support&0x01 != 0
}

const (
	samNormalMode = 0x01
	samTimeout    = 0x14 // 50ms units
	samUseIRQ     = 0x01

	rfItemMaxRetries = 0x05
	baud106TypeA     = 0x00
)

// Device is a PN532 driven over a Link. It is not safe for concurrent use;
// Exchanger serializes its own calls.
type Device struct {
	link       Link
	firmware   *FirmwareVersion
	timeout    time.Duration
	maxRetries byte
}

// Option configures a Device
type Option func(*Device) error

// WithTimeout sets the per-command timeout used when the caller's context
// has no deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: timeout %v", ErrInvalidParameter, timeout)
		}
		d.timeout = timeout
		return nil
	}
}

// WithPassiveRetries sets MxRtyPassiveActivation, the number of times the
// PN532 retries InListPassiveTarget before reporting no target. 0xFF means
// forever.
func WithPassiveRetries(n byte) Option {
	return func(d *Device) error {
		d.maxRetries = n
		return nil
	}
}

// New creates a device on link. Call Init before listing targets.
func New(link Link, opts ...Option) (*Device, error) {
	if link == nil {
		return nil, fmt.Errorf("%w: nil link", ErrInvalidParameter)
	}
	d := &Device{link: link, timeout: time.Second, maxRetries: 0x02}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Link returns the underlying link
func (d *Device) Link() Link {
	return d.link
}

// Close closes the link
func (d *Device) Close() error {
	if err := d.link.Close(); err != nil {
		return fmt.Errorf("failed to close link: %w", err)
	}
	return nil
}

func (d *Device) send(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	resp, err := d.link.SendCommand(ctx, cmd, args)
	if err != nil {
		return nil, err
	}
	if len(resp) == 0 || resp[0] != cmd+1 {
		return nil, fmt.Errorf("%w: command %02X answered with % X", ErrInvalidResponse, cmd, resp)
	}
	return resp[1:], nil
}

// Init wakes the PN532, reads its firmware version and configures the SAM
// and activation retries.
func (d *Device) Init(ctx context.Context) error {
	fw, err := d.FirmwareVersion(ctx)
	if err != nil {
		return err
	}
	log.Debug().Str("firmware", fw.String()).Str("link", string(d.link.Type())).Msg("PN532 found")

	if _, err := d.send(ctx, CmdSAMConfiguration, []byte{samNormalMode, samTimeout, samUseIRQ}); err != nil {
		return fmt.Errorf("SAMConfiguration failed: %w", err)
	}
	args := []byte{rfItemMaxRetries, 0xFF, 0x01, d.maxRetries}
	if _, err := d.send(ctx, CmdRFConfiguration, args); err != nil {
		return fmt.Errorf("RFConfiguration failed: %w", err)
	}
	return nil
}

// FirmwareVersion queries the chip version. The result is cached.
func (d *Device) FirmwareVersion(ctx context.Context) (*FirmwareVersion, error) {
	if d.firmware != nil {
		return d.firmware, nil
	}
	resp, err := d.send(ctx, CmdGetFirmwareVersion, nil)
	if err != nil {
		return nil, fmt.Errorf("GetFirmwareVersion failed: %w", err)
	}
	if len(resp) < 4 {
		return nil, fmt.Errorf("%w: firmware version % X", ErrInvalidResponse, resp)
	}
	d.firmware = &FirmwareVersion{IC: resp[0], Version: resp[1], Rev: resp[2], Support: resp[3]}
	return d.firmware, nil
}

// DetectTarget lists one Type A target at 106 kbps. The PN532 activates
// ISO-DEP targets itself, so the ATS is already available.
func (d *Device) DetectTarget(ctx context.Context) (*Target, error) {
	resp, err := d.send(ctx, CmdInListPassiveTarget, []byte{0x01, baud106TypeA})
	if err != nil {
		return nil, fmt.Errorf("InListPassiveTarget failed: %w", err)
	}
	t, err := parseTarget(resp)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("uid", t.UIDString()).Uint8("sak", t.SAK).Hex("ats", t.ATS).Msg("target listed")
	return t, nil
}

// Release ends the session with target number tg
func (d *Device) Release(ctx context.Context, tg byte) error {
	resp, err := d.send(ctx, CmdInRelease, []byte{tg})
	if err != nil {
		return fmt.Errorf("InRelease failed: %w", err)
	}
	return statusError("InRelease", resp)
}

// statusError checks the status byte leading resp.
func statusError(op string, resp []byte) error {
	if len(resp) < 1 {
		return fmt.Errorf("%w: %s returned no status", ErrInvalidResponse, op)
	}
	if code := resp[0] & statusErrorMask; code != 0 {
		return &StatusError{Op: op, Code: code}
	}
	return nil
}

const (
	statusErrorMask = 0x3F
	moreInformation = 0x40

	statusTimeout        = 0x01
	statusTargetGone     = 0x29
	statusCardRemoved    = 0x2B
	statusBufferTooSmall = 0x07
)

// StatusError is a non-zero error code reported by the PN532
type StatusError struct {
	Op   string
	Code byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: PN532 status %02X", e.Op, e.Code)
}

// Unwrap maps the code onto the package sentinels.
func (e *StatusError) Unwrap() error {
	switch e.Code {
	case statusTimeout:
		return ErrTransportTimeout
	case statusTargetGone, statusCardRemoved:
		return ErrTagNotFound
	case statusBufferTooSmall:
		return ErrDataTooLarge
	default:
		return ErrCommunicationFailed
	}
}

// IsTagGone reports whether err means the target left the field
func IsTagGone(err error) bool {
	return errors.Is(err, ErrTagNotFound)
}
