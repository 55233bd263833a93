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
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	readerType := flag.String("reader", "", "Reader type (default from config: auto)")
	devicePath := flag.String("device", "", "Reader path")
	timeout := flag.Duration("timeout", 30*time.Second, "How long to wait for a tag")
	debug := flag.Bool("debug", false, "Enable debug output")
	flag.Usage = func() {
		_, _ = fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] APDU...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cmds := make([]*type4.Command, 0, flag.NArg())
	for _, arg := range flag.Args() {
		cmd, err := parseCommand(arg)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "%s: %v\n", arg, err)
			os.Exit(2)
		}
		cmds = append(cmds, cmd)
	}
	if len(cmds) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(2)
		}
	}
	if *readerType != "" {
		cfg.Reader.Type = *readerType
	}
	if *devicePath != "" {
		cfg.Reader.Path = *devicePath
	}
	cfg.Log.Debug = cfg.Log.Debug || *debug
	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}
	cfg.SetupLogging(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := run(ctx, cfg, cmds); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, cmds []*type4.Command) error {
	r, err := reader.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open reader: %w", err)
	}
	defer func() { _ = r.Close() }()

	loop := eventloop.New()
	go func() { _ = loop.Run(ctx) }()
	defer loop.Close()

	m, err := polling.NewMonitor(r.Source, loop, cfg.Polling())
	if err != nil {
		return err
	}

	finished := make(chan struct{})
	m.OnTagInitialized = func(tag *type4.Tag) {
		if m.Paused() {
			return
		}
		m.Pause()
		_, _ = fmt.Printf("Tag %s (%s)\n", m.GetState().LastUID, tag.Technology())
		sendAll(tag, cmds, func() { close(finished) })
	}

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go func() { _ = m.Start(monitorCtx) }()

	_, _ = fmt.Println("Waiting for a tag...")
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return errors.New("timeout: no tag detected")
		}
		return ctx.Err()
	}
}

// sendAll sends cmds one after another, each from the previous completion.
func sendAll(tag *type4.Tag, cmds []*type4.Command, done func()) {
	if len(cmds) == 0 {
		done()
		return
	}
	cmd := cmds[0]
	frame, _ := cmd.Bytes()
	_, _ = fmt.Printf("> % X\n", frame)
	_, err := tag.Submit(cmd, func(sw type4.StatusWord, data []byte) {
		_, _ = fmt.Printf("< %s\n", sw)
		if out := describe(data); out != "" {
			_, _ = fmt.Println(out)
		}
		sendAll(tag, cmds[1:], done)
	}, nil)
	if err != nil {
		_, _ = fmt.Printf("! %v\n", err)
		done()
	}
}
