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

// Package uart detects PN532 boards behind USB serial bridges.
package uart

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZaparooProject/go-type4/detection"
	uartlink "github.com/ZaparooProject/go-type4/transport/uart"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial/enumerator"
)

// knownBridges are the USB serial chips PN532 breakout boards ship with.
var knownBridges = map[string]string{
	"1A86:7523": "CH340",
	"1A86:55D4": "CH9102",
	"10C4:EA60": "CP210x",
	"0403:6001": "FT232R",
	"0403:6015": "FT231X",
	"067B:2303": "PL2303",
}

// listPorts is replaced in tests.
var listPorts = enumerator.GetDetailedPortsList

// probe opens a port and asks for firmware. Replaced in tests.
var probe = func(ctx context.Context, path string) (map[string]string, bool) {
	link, err := uartlink.Open(path)
	if err != nil {
		return nil, false
	}
	defer func() { _ = link.Close() }()
	return detection.ProbePN532(ctx, link)
}

type detector struct{}

// New returns the serial port detector.
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

func (*detector) Transport() string {
	return "uart"
}

// Detect lists serial ports and rates each one. Ports on known bridge chips
// get medium confidence; in Safe and Full mode a firmware answer raises any
// port to high.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, port := range ports {
		if ctx.Err() != nil {
			return devices, detection.ErrDetectionTimeout
		}
		if dev, ok := rate(ctx, port, opts); ok {
			devices = append(devices, dev)
		}
	}
	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func rate(ctx context.Context, port *enumerator.PortDetails, opts *detection.Options) (detection.DeviceInfo, bool) {
	if detection.IsPathIgnored(port.Name, opts.IgnorePaths) {
		return detection.DeviceInfo{}, false
	}

	dev := detection.DeviceInfo{
		Transport:  "uart",
		Path:       port.Name,
		Name:       port.Name,
		Confidence: detection.Low,
		Metadata:   map[string]string{},
	}
	if port.IsUSB {
		vidpid := strings.ToUpper(port.VID + ":" + port.PID)
		if detection.IsBlocked(vidpid, opts.Blocklist) {
			log.Debug().Str("port", port.Name).Str("usb", vidpid).Msg("skipping blocked device")
			return detection.DeviceInfo{}, false
		}
		dev.Metadata["vidpid"] = vidpid
		if port.SerialNumber != "" {
			dev.Metadata["serial"] = port.SerialNumber
		}
		if port.Product != "" {
			dev.Name = port.Product
		}
		if chip, ok := knownBridges[vidpid]; ok {
			dev.Metadata["bridge"] = chip
			dev.Confidence = detection.Medium
		}
	}

	if opts.Mode == detection.Passive {
		return dev, dev.Confidence > detection.Low
	}

	if meta, ok := probe(ctx, port.Name); ok {
		for k, v := range meta {
			dev.Metadata[k] = v
		}
		dev.Confidence = detection.High
		return dev, true
	}
	return dev, opts.Mode == detection.Full || dev.Confidence > detection.Low
}
