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
	"fmt"
	"io"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var (
	logger       atomic.Pointer[zerolog.Logger]
	debugEnabled atomic.Bool
)

func init() {
	l := zerolog.New(io.Discard)
	logger.Store(&l)
}

// SetLogger replaces the package logger. Debug output is written at debug
// level and only when enabled with SetDebugEnabled.
func SetLogger(l zerolog.Logger) {
	logger.Store(&l)
}

// SetDebugEnabled turns protocol tracing on or off.
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// Logger returns the package logger.
func Logger() *zerolog.Logger {
	return logger.Load()
}

func debugf(format string, args ...any) {
	if !debugEnabled.Load() {
		return
	}
	logger.Load().Debug().Str("component", "type4").Msgf(format, args...)
}

func debugln(args ...any) {
	if !debugEnabled.Load() {
		return
	}
	logger.Load().Debug().Str("component", "type4").Msg(fmt.Sprint(args...))
}
