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

package type4

import (
	"errors"
	"fmt"
)

// Option is a functional option for configuring a Tag
type Option func(*Tag) error

// WithFrameSize overrides the frame size taken from the activation
// parameters. Zero disables the frame-size bound on READ BINARY.
func WithFrameSize(size int) Option {
	return func(t *Tag) error {
		if size < 0 {
			return fmt.Errorf("invalid frame size %d", size)
		}
		t.frameSize = size
		return nil
	}
}

// WithNDEFParser replaces the parser discovery hands the NDEF file to
func WithNDEFParser(parser NDEFParser) Option {
	return func(t *Tag) error {
		if parser == nil {
			return errors.New("nil NDEF parser")
		}
		t.parser = parser
		return nil
	}
}

// WithInitializedHandler registers a handler before discovery starts, so it
// also sees tags that resolve during NewTag
func WithInitializedHandler(fn func(*Tag)) Option {
	return func(t *Tag) error {
		t.AddInitializedHandler(fn)
		return nil
	}
}
