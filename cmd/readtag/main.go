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
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	type4 "github.com/ZaparooProject/go-type4"
	"github.com/ZaparooProject/go-type4/eventloop"
	"github.com/ZaparooProject/go-type4/internal/config"
	"github.com/ZaparooProject/go-type4/internal/reader"
	"github.com/ZaparooProject/go-type4/polling"
	"github.com/ZaparooProject/go-type4/transport/wsrelay"
)

type flags struct {
	configPath   *string
	readerType   *string
	devicePath   *string
	relayURL     *string
	timeout      *time.Duration
	pollInterval *time.Duration
	debug        *bool
	list         *bool
}

func parseFlags() *flags {
	f := &flags{
		configPath: flag.String("config", "", "YAML configuration file"),
		readerType: flag.String("reader", "", "Reader type: auto, pn532-uart, pn532-i2c, pcsc, libnfc or relay"),
		devicePath: flag.String("device", "",
			"Serial port, I2C bus, PC/SC reader name or libnfc connstring. Leave empty for auto-detection."),
		relayURL:     flag.String("relay", "", "Relay server URL (ws://host:port/), implies -reader relay"),
		timeout:      flag.Duration("timeout", 0, "Exit after this long (default: run until interrupted)"),
		pollInterval: flag.Duration("poll-interval", 0, "Polling interval (default from config: 100ms)"),
		debug:        flag.Bool("debug", false, "Enable debug output"),
		list:         flag.Bool("list", false, "List detected readers and exit"),
	}
	flag.Parse()
	return f
}

func loadConfig(f *flags) (*config.Config, error) {
	cfg := config.Default()
	if *f.configPath != "" {
		loaded, err := config.Load(*f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if *f.readerType != "" {
		cfg.Reader.Type = *f.readerType
	}
	if *f.devicePath != "" {
		cfg.Reader.Path = *f.devicePath
		if *f.readerType == "" && cfg.Reader.Type == config.ReaderAuto {
			cfg.Reader.Type = config.ReaderPN532UART
		}
	}
	if *f.relayURL != "" {
		cfg.Reader.Type = config.ReaderRelay
		cfg.Reader.URL = *f.relayURL
	}
	if *f.pollInterval > 0 {
		cfg.Timeouts.Poll = *f.pollInterval
	}
	if *f.debug {
		cfg.Log.Debug = true
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printTag(uid string, tag *type4.Tag) {
	_, _ = fmt.Printf("\n=== Tag %s ===\n", uid)
	_, _ = fmt.Printf("Technology: %s\n", tag.Technology())
	_, _ = fmt.Printf("Frame size: %d\n", tag.FrameSize())
	n := tag.NDEF()
	if n == nil {
		_, _ = fmt.Println("No NDEF message")
		return
	}
	_, _ = fmt.Printf("NDEF: %d bytes\n", len(n.Raw))
	for i, rec := range n.Records() {
		switch rec.Kind {
		case type4.RecordText:
			_, _ = fmt.Printf("  [%d] text: %q\n", i, rec.Text)
		case type4.RecordURI:
			_, _ = fmt.Printf("  [%d] uri: %s\n", i, rec.URI)
		default:
			_, _ = fmt.Printf("  [%d] %s %q: % X\n", i, rec.Kind, rec.Type, rec.Payload)
		}
	}
}

func listReaders(ctx context.Context, cfg *config.Config) error {
	devices, err := reader.Detect(ctx, cfg)
	if err != nil {
		return err
	}
	for _, dev := range devices {
		_, _ = fmt.Println(dev.String())
	}
	return nil
}

func tagOptions(cfg *config.Config) []type4.Option {
	if cfg.Reader.FrameSize > 0 {
		return []type4.Option{type4.WithFrameSize(cfg.Reader.FrameSize)}
	}
	return nil
}

// readRelay runs discovery once on the tag behind a relay server.
func readRelay(ctx context.Context, cfg *config.Config, loop *eventloop.Loop) error {
	client, err := wsrelay.Dial(ctx, cfg.Reader.URL, loop)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	done := make(chan struct{})
	opts := append(tagOptions(cfg), type4.WithInitializedHandler(func(tag *type4.Tag) {
		printTag(cfg.Reader.URL, tag)
		close(done)
	}))
	var tagErr error
	if err := loop.Call(ctx, func() {
		_, tagErr = type4.NewTypeA(client, &type4.IsoDepPollA{FSC: 256}, opts...)
	}); err != nil {
		return err
	}
	if tagErr != nil {
		return tagErr
	}

	select {
	case <-done:
		return nil
	case <-client.Done():
		return errors.New("relay connection closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func monitor(ctx context.Context, cfg *config.Config, loop *eventloop.Loop) error {
	r, err := reader.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open reader: %w", err)
	}
	defer func() { _ = r.Close() }()
	_, _ = fmt.Printf("Using %s\n", r.Name)

	m, err := polling.NewMonitor(r.Source, loop, cfg.Polling(), tagOptions(cfg)...)
	if err != nil {
		return err
	}
	m.OnTagInitialized = func(tag *type4.Tag) {
		printTag(m.GetState().LastUID, tag)
	}
	m.OnTagRemoved = func(uid string) {
		_, _ = fmt.Printf("Tag %s removed - ready for next tag...\n", uid)
	}

	_, _ = fmt.Println("Waiting for NFC tags...")
	err = m.Start(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func main() {
	f := parseFlags()
	cfg, err := loadConfig(f)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}
	cfg.SetupLogging(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *f.timeout)
		defer cancel()
	}

	if *f.list {
		if err := listReaders(ctx, cfg); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Detection failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	loop := eventloop.New()
	go func() { _ = loop.Run(ctx) }()
	defer loop.Close()

	if cfg.Reader.Type == config.ReaderRelay {
		err = readRelay(ctx, cfg, loop)
	} else {
		err = monitor(ctx, cfg, loop)
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
