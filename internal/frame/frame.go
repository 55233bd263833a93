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

// Package frame encodes and decodes PN532 normal information frames.
package frame

import (
	"errors"
	"sync"
)

// Frame identifiers
const (
	HostToPn532 = 0xD4
	Pn532ToHost = 0xD5
)

const (
	Preamble   = 0x00
	StartCode1 = 0x00
	StartCode2 = 0xFF
	Postamble  = 0x00

	// MaxFrameDataLength bounds LEN for extended frames; normal frames
	// stop at 255.
	MaxFrameDataLength = 263
)

// ACK and NACK flow control frames
var (
	AckFrame  = []byte{Preamble, StartCode1, StartCode2, 0x00, 0xFF, Postamble}
	NackFrame = []byte{Preamble, StartCode1, StartCode2, 0xFF, 0x00, Postamble}
)

// Frame errors
var (
	ErrFrameTooShort    = errors.New("frame too short")
	ErrLengthChecksum   = errors.New("frame length checksum mismatch")
	ErrChecksumMismatch = errors.New("frame data checksum mismatch")
	ErrDataTooLarge     = errors.New("frame data too large")
	ErrUnexpectedTFI    = errors.New("unexpected frame identifier")
	ErrApplicationError = errors.New("PN532 application error frame")
	ErrFrameOutOfBounds = errors.New("frame length exceeds buffer")
)

const (
	maxNormalFrameData   = 255
	applicationErrorCode = 0x7F
)

// CalculateChecksum sums data modulo 256
func CalculateChecksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// ValidateChecksum reports whether data (ending with its checksum byte)
// fails to sum to zero. True means the frame should be NACKed.
func ValidateChecksum(data []byte) bool {
	return CalculateChecksum(data) != 0
}

// CalculateDataChecksum returns the DCS byte for a frame body
func CalculateDataChecksum(tfi byte, data []byte) byte {
	return ^(tfi + CalculateChecksum(data)) + 1
}

// CalculateLengthChecksum returns the LCS byte for a frame length
func CalculateLengthChecksum(length byte) byte {
	return ^length + 1
}

// Build encodes a normal information frame carrying cmd and args.
func Build(tfi, cmd byte, args []byte) ([]byte, error) {
	dataLen := 2 + len(args)
	if dataLen > maxNormalFrameData {
		return nil, ErrDataTooLarge
	}
	out := make([]byte, 0, dataLen+7)
	out = append(out, Preamble, StartCode1, StartCode2,
		byte(dataLen), CalculateLengthChecksum(byte(dataLen)), tfi, cmd)
	out = append(out, args...)
	body := append([]byte{cmd}, args...)
	out = append(out, CalculateDataChecksum(tfi, body), Postamble)
	return out, nil
}

// FindStart returns the offset of the LEN byte following the 00 FF start
// code, or -1.
func FindStart(buf []byte) int {
	for off := 0; off < len(buf)-1; off++ {
		if buf[off] == StartCode1 && buf[off+1] == StartCode2 {
			return off + 2
		}
	}
	return -1
}

// ValidateFrameLength checks the LEN/LCS pair at buf[off+1:off+3] (off is
// the index of the second start code byte). A bad LCS asks for a retry.
func ValidateFrameLength(buf []byte, off, totalLen int, _, _ string) (frameLen int, shouldRetry bool, err error) {
	if off+2 >= totalLen || off+2 >= len(buf) {
		return 0, false, ErrFrameTooShort
	}
	frameLen = int(buf[off+1])
	if (buf[off+1]+buf[off+2])&0xFF != 0 {
		return 0, true, nil
	}
	if off+3+frameLen+1 > totalLen {
		return 0, false, ErrFrameOutOfBounds
	}
	return frameLen, false, nil
}

// ValidateFrameChecksum reports whether buf[start:end] (TFI through DCS)
// fails its checksum, meaning the frame should be retried.
func ValidateFrameChecksum(buf []byte, start, end int) bool {
	if start < 0 || end > len(buf) || start >= end {
		return true
	}
	return ValidateChecksum(buf[start:end])
}

// ExtractFrameData copies the frame body after the TFI. off is the index of
// the LEN byte. An application error frame is returned as an error.
func ExtractFrameData(buf []byte, off, frameLen int, expectedTFI byte) (data []byte, shouldRetry bool, err error) {
	start := off + 2
	if frameLen < 1 || start+frameLen > len(buf) {
		return nil, false, ErrFrameOutOfBounds
	}
	if buf[start] != expectedTFI {
		if buf[start] == applicationErrorCode {
			return nil, false, ErrApplicationError
		}
		return nil, true, nil
	}
	data = make([]byte, frameLen-1)
	copy(data, buf[start+1:start+frameLen])
	return data, false, nil
}

// Parse decodes the first complete response frame in buf and returns the
// bytes after the TFI.
func Parse(buf []byte, expectedTFI byte) ([]byte, error) {
	off := FindStart(buf)
	if off < 0 {
		return nil, ErrFrameTooShort
	}
	frameLen, retry, err := ValidateFrameLength(buf, off-1, len(buf), "parse", "")
	if err != nil {
		return nil, err
	}
	if retry {
		return nil, ErrLengthChecksum
	}
	if ValidateFrameChecksum(buf, off+2, off+2+frameLen+1) {
		return nil, ErrChecksumMismatch
	}
	data, retry, err := ExtractFrameData(buf, off, frameLen, expectedTFI)
	if err != nil {
		return nil, err
	}
	if retry {
		return nil, ErrUnexpectedTFI
	}
	return data, nil
}

// IsAck reports whether buf is an ACK frame
func IsAck(buf []byte) bool {
	return len(buf) >= len(AckFrame) && string(buf[:len(AckFrame)]) == string(AckFrame)
}

var bufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, MaxFrameDataLength+9)
		return &b
	},
}

// GetBuffer returns a pooled buffer of exactly size bytes
func GetBuffer(size int) []byte {
	p, ok := bufferPool.Get().(*[]byte)
	if !ok || cap(*p) < size {
		return make([]byte, size)
	}
	b := (*p)[:size]
	clear(b)
	return b
}

// GetSmallBuffer is GetBuffer for status reads
func GetSmallBuffer(size int) []byte {
	return GetBuffer(size)
}

// PutBuffer returns buf to the pool
func PutBuffer(buf []byte) {
	if cap(buf) < MaxFrameDataLength+9 {
		return
	}
	buf = buf[:cap(buf)]
	bufferPool.Put(&buf)
}
