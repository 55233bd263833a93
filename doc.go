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

/*
Package type4 reads NDEF from ISO 14443-4 (NFC Forum Type 4) tags.

A Tag wraps an activated tag and a Transport that moves ISO-DEP frames to
it. NewTag starts NDEF discovery straight away: it selects the NDEF tag
application, reads and validates the capability container, then reads the
NDEF file in chunks sized by MLe and the negotiated frame size. Discovery
always resolves. A tag without usable NDEF content is initialized with a
nil NDEF, it is not an error.

Tags are driven by completions rather than blocking calls. Every Tag
method and every transport completion must run on one goroutine, usually
an eventloop.Loop:

	loop := eventloop.New()
	go loop.Run(ctx)

	tr, err := type4.NewAsyncTransport(exchanger, loop, time.Second)
	if err != nil {
	    return err
	}
	loop.Post(func() {
	    _, err := type4.NewTypeA(tr, params, type4.WithInitializedHandler(func(tag *type4.Tag) {
	        if text, ok := tag.NDEF().Text(); ok {
	            fmt.Println(text)
	        }
	    }))
	    if err != nil {
	        log.Print(err)
	    }
	})

Readers:

The transport packages provide Exchangers for a PN532 on UART or I2C, for
PC/SC readers and, with the libnfc build tag, for libnfc devices. The
wsrelay package carries frames to a reader on another machine. The polling
package watches a reader and creates a Tag for every tag that arrives.

Raw APDUs:

Once a tag is initialized, Submit and Transmit send single APDUs. Each
completion receives the status word and response body; transport failures
arrive as SWIOError. Only one exchange may be in flight per tag.

Errors:

Submission errors are returned synchronously and can be inspected:

	if errors.Is(err, type4.ErrBusy) {
	    // wait for the pending exchange
	}
*/
package type4
