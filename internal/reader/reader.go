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

// Package reader opens the reader named by the configuration and hands
// back a polling source for it.
package reader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-type4/detection"
	_ "github.com/ZaparooProject/go-type4/detection/i2c" // register detectors
	_ "github.com/ZaparooProject/go-type4/detection/pcsc"
	_ "github.com/ZaparooProject/go-type4/detection/uart"
	"github.com/ZaparooProject/go-type4/internal/config"
	"github.com/ZaparooProject/go-type4/polling"
	"github.com/ZaparooProject/go-type4/transport/i2c"
	"github.com/ZaparooProject/go-type4/transport/pcsc"
	"github.com/ZaparooProject/go-type4/transport/pn532"
	"github.com/ZaparooProject/go-type4/transport/uart"
	"github.com/rs/zerolog/log"
)

// ErrNoReader is returned when auto-detection finds nothing usable.
var ErrNoReader = errors.New("no reader found")

// Reader is an open reader.
type Reader struct {
	Source  polling.Source
	Name    string
	closers []func() error
}

// Close releases everything Open acquired, last first.
func (r *Reader) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// Open opens the reader cfg describes. The relay reader has no source and
// is rejected here.
func Open(ctx context.Context, cfg *config.Config) (*Reader, error) {
	path := cfg.Reader.Path
	switch cfg.Reader.Type {
	case config.ReaderAuto:
		return openDetected(ctx, cfg)
	case config.ReaderPN532UART:
		link, err := uart.Open(path)
		if err != nil {
			return nil, err
		}
		return openPN532(ctx, link, "PN532 on "+path, cfg)
	case config.ReaderPN532I2C:
		link, err := i2c.Open(path)
		if err != nil {
			return nil, err
		}
		return openPN532(ctx, link, "PN532 on "+path, cfg)
	case config.ReaderPCSC:
		return openPCSC(path)
	case config.ReaderLibNFC:
		return openLibNFC(path)
	default:
		return nil, fmt.Errorf("reader type %q cannot be polled", cfg.Reader.Type)
	}
}

// Detect lists candidate readers, most confident first.
func Detect(ctx context.Context, cfg *config.Config) ([]detection.DeviceInfo, error) {
	opts := detection.DefaultOptions()
	opts.Mode = detection.Safe
	opts.IgnorePaths = cfg.Reader.IgnorePaths
	return detection.DetectAllContext(ctx, &opts)
}

func openDetected(ctx context.Context, cfg *config.Config) (*Reader, error) {
	devices, err := Detect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoReader, err)
	}
	for _, dev := range devices {
		sub := *cfg
		sub.Reader.Path = dev.Path
		switch strings.ToLower(dev.Transport) {
		case "uart":
			sub.Reader.Type = config.ReaderPN532UART
		case "i2c":
			sub.Reader.Type = config.ReaderPN532I2C
			sub.Reader.Path = strings.SplitN(dev.Path, ":", 2)[0]
		case "pcsc":
			sub.Reader.Type = config.ReaderPCSC
		default:
			continue
		}
		r, err := Open(ctx, &sub)
		if err != nil {
			log.Warn().Err(err).Str("device", dev.String()).Msg("skipping reader")
			continue
		}
		return r, nil
	}
	return nil, ErrNoReader
}

func openPN532(ctx context.Context, link pn532.Link, name string, cfg *config.Config) (*Reader, error) {
	opts := []pn532.Option{}
	if cfg.Timeouts.Exchange > 0 {
		opts = append(opts, pn532.WithTimeout(cfg.Timeouts.Exchange))
	}
	dev, err := pn532.New(link, opts...)
	if err != nil {
		_ = link.Close()
		return nil, err
	}
	if err := dev.Init(ctx); err != nil {
		_ = dev.Close()
		return nil, fmt.Errorf("failed to initialize %s: %w", name, err)
	}
	if fw, err := dev.FirmwareVersion(ctx); err == nil {
		name = fmt.Sprintf("%s (%s)", name, fw)
	}
	return &Reader{Source: polling.NewPN532Source(dev), Name: name, closers: []func() error{dev.Close}}, nil
}

func openPCSC(name string) (*Reader, error) {
	c, err := pcsc.Establish()
	if err != nil {
		return nil, err
	}
	if name == "" {
		readers, err := c.Readers()
		if err != nil {
			_ = c.Release()
			return nil, err
		}
		name = readers[0]
	}
	src := polling.NewPCSCSource(c, name)
	return &Reader{Source: src, Name: name, closers: []func() error{c.Release, src.Close}}, nil
}
