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

// Package config loads the YAML settings shared by the command-line tools.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ZaparooProject/go-type4/polling"
	"gopkg.in/yaml.v3"
)

// Reader kinds.
const (
	ReaderAuto      = "auto"
	ReaderPN532UART = "pn532-uart"
	ReaderPN532I2C  = "pn532-i2c"
	ReaderPCSC      = "pcsc"
	ReaderLibNFC    = "libnfc"
	ReaderRelay     = "relay"
)

var knownReaders = []string{
	ReaderAuto, ReaderPN532UART, ReaderPN532I2C, ReaderPCSC, ReaderLibNFC, ReaderRelay,
}

type Config struct {
	Reader   ReaderConfig   `yaml:"reader"`
	Timeouts TimeoutsConfig `yaml:"timeouts"`
	Relay    RelayConfig    `yaml:"relay"`
	Log      LogConfig      `yaml:"log"`
}

type ReaderConfig struct {
	// Type is one of the Reader* constants.
	Type string `yaml:"type"`
	// Path is a serial port, an I2C bus, a PC/SC reader name or a libnfc
	// connstring, depending on Type.
	Path string `yaml:"path"`
	// URL of a relay server when Type is "relay".
	URL         string   `yaml:"url"`
	IgnorePaths []string `yaml:"ignore_paths"`
	// FrameSize overrides the negotiated ISO-DEP frame size when non-zero.
	FrameSize int `yaml:"frame_size"`
}

type TimeoutsConfig struct {
	Exchange time.Duration `yaml:"exchange"`
	Poll     time.Duration `yaml:"poll"`
	Removal  time.Duration `yaml:"removal"`
}

type RelayConfig struct {
	Listen string `yaml:"listen"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Debug bool   `yaml:"debug"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	p := polling.DefaultConfig()
	return &Config{
		Reader: ReaderConfig{Type: ReaderAuto},
		Timeouts: TimeoutsConfig{
			Exchange: p.ExchangeTimeout,
			Poll:     p.PollInterval,
			Removal:  p.CardRemovalTimeout,
		},
		Relay: RelayConfig{Listen: "127.0.0.1:7531"},
		Log:   LogConfig{Level: "info"},
	}
}

// Load reads path over the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(content)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(content []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	c.Reader.Type = strings.ToLower(strings.TrimSpace(c.Reader.Type))
	if c.Reader.Type == "" {
		c.Reader.Type = ReaderAuto
	}
	if !contains(knownReaders, c.Reader.Type) {
		return fmt.Errorf("config.reader.type %q is not one of %s",
			c.Reader.Type, strings.Join(knownReaders, ", "))
	}
	if c.Reader.Type == ReaderRelay && strings.TrimSpace(c.Reader.URL) == "" {
		return errors.New("config.reader.url is required for the relay reader")
	}
	if c.Reader.FrameSize < 0 {
		return errors.New("config.reader.frame_size must be >= 0")
	}
	if c.Timeouts.Exchange < 0 || c.Timeouts.Poll < 0 || c.Timeouts.Removal < 0 {
		return errors.New("config.timeouts must not be negative")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// Polling converts the timeouts to monitor settings, keeping defaults for
// the ones left at zero.
func (c *Config) Polling() *polling.Config {
	p := polling.DefaultConfig()
	if c.Timeouts.Poll > 0 {
		p.PollInterval = c.Timeouts.Poll
	}
	if c.Timeouts.Removal > 0 {
		p.CardRemovalTimeout = c.Timeouts.Removal
	}
	if c.Timeouts.Exchange > 0 {
		p.ExchangeTimeout = c.Timeouts.Exchange
	}
	return p
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
