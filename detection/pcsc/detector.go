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

// Package pcsc lists PC/SC readers as detection candidates.
package pcsc

import (
	"context"
	"errors"
	"strings"

	"github.com/ZaparooProject/go-type4/detection"
	"github.com/ZaparooProject/go-type4/transport/pcsc"
)

// contactlessHints mark reader names that certainly have an antenna.
var contactlessHints = []string{"PICC", "CONTACTLESS", "ACR122", "ACR1252", "NFC", " CL "}

var listReaders = func() ([]string, error) {
	c, err := pcsc.Establish()
	if err != nil {
		return nil, err
	}
	defer func() { _ = c.Release() }()
	return c.Readers()
}

type detector struct{}

// New returns the PC/SC detector.
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

func (*detector) Transport() string {
	return "pcsc"
}

// Detect asks the PC/SC service for its readers. Listing never touches a
// card, so every mode behaves the same.
func (*detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	readers, err := listReaders()
	if errors.Is(err, pcsc.ErrNoReader) {
		return nil, detection.ErrNoDevicesFound
	}
	if err != nil {
		return nil, err
	}

	devices := make([]detection.DeviceInfo, 0, len(readers))
	for _, name := range readers {
		if ctx.Err() != nil {
			return devices, detection.ErrDetectionTimeout
		}
		if detection.IsPathIgnored(name, opts.IgnorePaths) {
			continue
		}
		dev := detection.DeviceInfo{
			Transport:  "pcsc",
			Path:       name,
			Name:       name,
			Confidence: detection.Medium,
			Metadata:   map[string]string{},
		}
		if isContactless(name) {
			dev.Confidence = detection.High
			dev.Metadata["contactless"] = "true"
		}
		devices = append(devices, dev)
	}
	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func isContactless(name string) bool {
	upper := " " + strings.ToUpper(name) + " "
	for _, hint := range contactlessHints {
		if strings.Contains(upper, hint) {
			return true
		}
	}
	return false
}
