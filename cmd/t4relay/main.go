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
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/ZaparooProject/go-type4/internal/config"
	"github.com/ZaparooProject/go-type4/internal/reader"
	"github.com/ZaparooProject/go-type4/polling"
	"github.com/ZaparooProject/go-type4/transport/wsrelay"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	readerType := flag.String("reader", "", "Reader type (default from config: auto)")
	devicePath := flag.String("device", "", "Reader path")
	listen := flag.String("listen", "", "Address to serve the relay on (default from config: 127.0.0.1:7531)")
	debug := flag.Bool("debug", false, "Enable debug output")
	flag.Parse()

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
	if *listen != "" {
		cfg.Relay.Listen = *listen
	}
	cfg.Log.Debug = cfg.Log.Debug || *debug
	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(2)
	}
	if cfg.Reader.Type == config.ReaderRelay {
		_, _ = fmt.Fprintln(os.Stderr, "A relay cannot serve another relay")
		os.Exit(2)
	}
	cfg.SetupLogging(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := serve(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("relay stopped")
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	r, err := reader.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open reader: %w", err)
	}
	defer func() { _ = r.Close() }()

	opts := []wsrelay.HandlerOption{}
	if cfg.Timeouts.Exchange > 0 {
		opts = append(opts, wsrelay.WithExchangeTimeout(cfg.Timeouts.Exchange))
	}
	mux := http.NewServeMux()
	mux.Handle("/", wsrelay.NewHandler(polling.NewFollower(r.Source), opts...))

	srv := &http.Server{
		Addr:              cfg.Relay.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("reader", r.Name).Str("listen", cfg.Relay.Listen).Msg("serving relay")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
