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

package wsrelay_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	type4 "github.com/ZaparooProject/go-type4"
	"github.com/ZaparooProject/go-type4/eventloop"
	testutil "github.com/ZaparooProject/go-type4/internal/testing"
	"github.com/ZaparooProject/go-type4/transport/wsrelay"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exchangeFunc func(ctx context.Context, frame []byte) ([]byte, error)

func (f exchangeFunc) Exchange(ctx context.Context, frame []byte) ([]byte, error) {
	return f(ctx, frame)
}

func startServer(t *testing.T, ex type4.Exchanger, opts ...wsrelay.HandlerOption) string {
	t.Helper()
	srv := httptest.NewServer(wsrelay.NewHandler(ex, opts...))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startLoop(t *testing.T) (context.Context, *eventloop.Loop) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	loop := eventloop.New()
	go func() { _ = loop.Run(ctx) }()
	t.Cleanup(func() {
		loop.Close()
		cancel()
	})
	return ctx, loop
}

func dial(ctx context.Context, t *testing.T, url string, loop *eventloop.Loop) *wsrelay.Client {
	t.Helper()
	c, err := wsrelay.Dial(ctx, url, loop)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDiscoveryOverRelay(t *testing.T) {
	t.Parallel()

	vt := testutil.NewVirtualTag(nil)
	require.NoError(t, vt.SetNDEFText("relayed"))
	url := startServer(t, vt)
	ctx, loop := startLoop(t)
	client := dial(ctx, t, url, loop)

	params, err := type4.ParseATS(vt.ATS)
	require.NoError(t, err)

	ready := make(chan string, 1)
	require.NoError(t, loop.Call(ctx, func() {
		_, err = type4.NewTypeA(client, params, type4.WithInitializedHandler(func(tag *type4.Tag) {
			text, _ := tag.NDEF().Text()
			ready <- text
		}))
	}))
	require.NoError(t, err)

	select {
	case text := <-ready:
		assert.Equal(t, "relayed", text)
	case <-ctx.Done():
		t.Fatal("discovery did not finish")
	}
}

func TestClientDeclinesWhileBusy(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	url := startServer(t, exchangeFunc(func(ctx context.Context, _ []byte) ([]byte, error) {
		select {
		case <-release:
			return []byte{0x90, 0x00}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))
	ctx, loop := startLoop(t)
	client := dial(ctx, t, url, loop)

	type result struct {
		resp   []byte
		status type4.TransmitStatus
	}
	got := make(chan result, 1)
	require.True(t, client.Transmit([]byte{0x00, 0xA4, 0x00, 0x00}, func(st type4.TransmitStatus, resp []byte) {
		got <- result{status: st, resp: resp}
	}))
	assert.False(t, client.Transmit([]byte{0x00}, nil))
	assert.False(t, client.Reactivate(nil))
	close(release)

	select {
	case r := <-got:
		assert.Equal(t, type4.TransmitOK, r.status)
		assert.Equal(t, []byte{0x90, 0x00}, r.resp)
	case <-ctx.Done():
		t.Fatal("no completion")
	}
}

func TestRemoteTimeout(t *testing.T) {
	t.Parallel()

	url := startServer(t, exchangeFunc(func(ctx context.Context, _ []byte) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}), wsrelay.WithExchangeTimeout(20*time.Millisecond))
	ctx, loop := startLoop(t)
	client := dial(ctx, t, url, loop)

	got := make(chan type4.TransmitStatus, 1)
	require.True(t, client.Transmit([]byte{0x00}, func(st type4.TransmitStatus, _ []byte) { got <- st }))
	select {
	case st := <-got:
		assert.Equal(t, type4.TransmitTimeout, st)
	case <-ctx.Done():
		t.Fatal("no completion")
	}
}

func TestReactivateWithoutReselector(t *testing.T) {
	t.Parallel()

	url := startServer(t, exchangeFunc(func(context.Context, []byte) ([]byte, error) {
		return []byte{0x90, 0x00}, nil
	}))
	ctx, loop := startLoop(t)
	client := dial(ctx, t, url, loop)

	done := make(chan struct{})
	require.True(t, client.Reactivate(func() { close(done) }))
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("reactivation never completed")
	}
}

func TestCancelSuppressesCompletion(t *testing.T) {
	t.Parallel()

	vt := testutil.NewVirtualTag(nil)
	url := startServer(t, vt)
	ctx, loop := startLoop(t)
	client := dial(ctx, t, url, loop)

	called := make(chan struct{}, 1)
	var accepted bool
	require.NoError(t, loop.Call(ctx, func() {
		accepted = client.Transmit([]byte{0x00, 0xB0, 0x00, 0x00, 0x02}, func(type4.TransmitStatus, []byte) {
			called <- struct{}{}
		})
		client.CancelTransmit()
	}))
	require.True(t, accepted)

	// The transport is free again and the next exchange completes normally.
	second := make(chan type4.TransmitStatus, 1)
	require.NoError(t, loop.Call(ctx, func() {
		accepted = client.Transmit([]byte{0x00, 0xA4, 0x04, 0x00, 0x07,
			0xD2, 0x76, 0x00, 0x00, 0x85, 0x01, 0x01, 0x00}, func(st type4.TransmitStatus, _ []byte) {
			second <- st
		})
	}))
	require.True(t, accepted)
	select {
	case st := <-second:
		assert.Equal(t, type4.TransmitOK, st)
	case <-ctx.Done():
		t.Fatal("no completion")
	}
	assert.Empty(t, called)
}

func TestClosedClientDeclines(t *testing.T) {
	t.Parallel()

	url := startServer(t, testutil.NewVirtualTag(nil))
	ctx, loop := startLoop(t)
	client := dial(ctx, t, url, loop)

	require.NoError(t, client.Close())
	assert.False(t, client.Transmit([]byte{0x00}, nil))
	select {
	case <-client.Done():
	case <-ctx.Done():
		t.Fatal("read loop did not stop")
	}
}

func TestHandlerRejectsBadMessages(t *testing.T) {
	t.Parallel()

	url := startServer(t, testutil.NewVirtualTag(nil))
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	tests := []struct {
		name string
		msg  wsrelay.Message
	}{
		{name: "unknown type", msg: wsrelay.Message{ID: "a", Type: "format"}},
		{name: "missing id", msg: wsrelay.Message{Type: wsrelay.TypeTransmit, Data: []byte{0x00}}},
	}
	for _, tt := range tests {
		require.NoError(t, conn.WriteJSON(tt.msg), tt.name)
		var reply wsrelay.Message
		require.NoError(t, conn.ReadJSON(&reply), tt.name)
		assert.Equal(t, wsrelay.TypeResult, reply.Type, tt.name)
		assert.Equal(t, wsrelay.StatusError, reply.Status, tt.name)
		assert.Equal(t, tt.msg.ID, reply.ID, tt.name)
		assert.NotEmpty(t, reply.Error, tt.name)
	}
}
