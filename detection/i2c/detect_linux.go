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

//go:build linux

package i2c

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ZaparooProject/go-type4/detection"
	i2clink "github.com/ZaparooProject/go-type4/transport/i2c"
	"golang.org/x/sys/unix"
)

const (
	ioctlSlave  = 0x0703
	ioctlFuncs  = 0x0705
	funcI2C     = 0x00000001
	firstAddr   = 0x08
	lastAddr    = 0x77
	probeBudget = time.Second
)

// busGlob is replaced in tests.
var busGlob = "/dev/i2c-*"

func detectPlatform(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	buses, err := findBuses()
	if err != nil {
		return nil, err
	}
	if len(buses) == 0 {
		return nil, detection.ErrNoDevicesFound
	}

	var devices []detection.DeviceInfo
	for _, bus := range buses {
		if ctx.Err() != nil {
			return devices, detection.ErrDetectionTimeout
		}
		for _, addr := range candidateAddrs(bus, opts.Mode) {
			if dev, ok := rateAddr(ctx, bus, addr, opts); ok {
				devices = append(devices, dev)
			}
		}
	}
	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// findBuses returns bus device paths whose adapter speaks plain I2C.
func findBuses() ([]string, error) {
	matches, err := filepath.Glob(busGlob)
	if err != nil {
		return nil, fmt.Errorf("failed to scan for I2C buses: %w", err)
	}
	buses := make([]string, 0, len(matches))
	for _, path := range matches {
		fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
		if err != nil {
			continue
		}
		funcs, err := unix.IoctlGetUint32(fd, ioctlFuncs)
		_ = unix.Close(fd)
		if err != nil || funcs&funcI2C == 0 {
			continue
		}
		buses = append(buses, path)
	}
	return buses, nil
}

// candidateAddrs lists the addresses worth rating. Passive mode never
// touches the bus and only offers the PN532 default.
func candidateAddrs(bus string, mode detection.Mode) []uint8 {
	if mode == detection.Passive {
		return []uint8{DefaultPN532Address}
	}
	fd, err := unix.Open(bus, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil
	}
	defer func() { _ = unix.Close(fd) }()

	var found []uint8
	buf := make([]byte, 1)
	for addr := uint8(firstAddr); addr <= lastAddr; addr++ {
		if err := unix.IoctlSetInt(fd, ioctlSlave, int(addr)); err != nil {
			continue
		}
		if _, err := unix.Read(fd, buf); err == nil {
			found = append(found, addr)
		}
	}
	return found
}

func rateAddr(ctx context.Context, bus string, addr uint8, opts *detection.Options) (detection.DeviceInfo, bool) {
	path := fmt.Sprintf("%s:0x%02X", bus, addr)
	if detection.IsPathIgnored(path, opts.IgnorePaths) {
		return detection.DeviceInfo{}, false
	}

	dev := detection.DeviceInfo{
		Transport:  "i2c",
		Path:       path,
		Name:       fmt.Sprintf("I2C device at %s address 0x%02X", bus, addr),
		Confidence: detection.Low,
		Metadata: map[string]string{
			"bus":     bus,
			"address": fmt.Sprintf("0x%02X", addr),
		},
	}
	if addr == DefaultPN532Address {
		dev.Confidence = detection.Medium
	}
	if opts.Mode == detection.Passive {
		return dev, true
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeBudget)
	defer cancel()
	if meta, ok := probe(probeCtx, bus, addr); ok {
		for k, v := range meta {
			dev.Metadata[k] = v
		}
		dev.Confidence = detection.High
		return dev, true
	}
	return dev, opts.Mode == detection.Full || dev.Confidence > detection.Low
}

// probe talks PN532 frames to the default address only; other addresses
// belong to unrelated chips that may not like them.
func probe(ctx context.Context, bus string, addr uint8) (map[string]string, bool) {
	if addr != DefaultPN532Address {
		return nil, false
	}
	link, err := i2clink.Open(bus)
	if err != nil {
		return nil, false
	}
	defer func() { _ = link.Close() }()
	return detection.ProbePN532(ctx, link)
}
