/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package wol

import (
	"fmt"
	"net"
)

const (
	// DefaultPort is the standard Wake-on-LAN UDP port
	DefaultPort = 9

	// macLen is the length of a 48-bit hardware address
	macLen = 6

	// syncStreamLen is the length of the 0xFF synchronization header
	syncStreamLen = 6

	// macRepetitions is how many times the target MAC is repeated in the payload
	macRepetitions = 16

	// MinPacketSize is the minimum size of a WOL magic packet (6 + 16*6 = 102 bytes).
	// Valid packets may carry trailing data such as a SecureOn password.
	MinPacketSize = syncStreamLen + macRepetitions*macLen

	// MaxDatagramSize is the largest possible UDP payload (65535 minus 28 bytes
	// of IP and UDP headers)
	MaxDatagramSize = 65507
)

// ParseErrorKind classifies why a buffer failed to parse as a magic packet.
type ParseErrorKind int

const (
	// TooShort means the buffer is smaller than MinPacketSize.
	TooShort ParseErrorKind = iota + 1
	// BadHeader means the first 6 bytes are not all 0xFF.
	BadHeader
	// InconsistentRepetition means the 16 MAC repetitions are not identical.
	InconsistentRepetition
)

func (k ParseErrorKind) String() string {
	switch k {
	case TooShort:
		return "TooShort"
	case BadHeader:
		return "BadHeader"
	case InconsistentRepetition:
		return "InconsistentRepetition"
	default:
		return fmt.Sprintf("ParseErrorKind(%d)", int(k))
	}
}

// ParseError describes why a buffer is not a valid magic packet.
type ParseError struct {
	Kind ParseErrorKind
	// Offset is the byte position where validation failed, where meaningful.
	Offset int
	// Length is the observed buffer length (set for TooShort).
	Length int
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case TooShort:
		return fmt.Sprintf("magic packet too short: %d bytes (minimum %d)", e.Length, MinPacketSize)
	case BadHeader:
		return fmt.Sprintf("magic packet header byte at offset %d is not 0xFF", e.Offset)
	case InconsistentRepetition:
		return fmt.Sprintf("magic packet MAC repetition mismatch at offset %d", e.Offset)
	default:
		return "invalid magic packet"
	}
}

// MagicPacket is a decoded Wake-on-LAN magic packet. It is only ever
// constructed by a successful ParseMagicPacket call.
type MagicPacket struct {
	mac net.HardwareAddr
}

// MAC returns the target hardware address the packet is addressed to.
func (p MagicPacket) MAC() net.HardwareAddr {
	return p.mac
}

// String returns the target MAC in canonical lowercase colon-hex form.
func (p MagicPacket) String() string {
	return p.mac.String()
}

// ParseMagicPacket validates and decodes a WOL magic packet.
// A valid magic packet contains:
// - 6 bytes of 0xFF
// - 16 repetitions of the target MAC address (6 bytes each)
// Trailing bytes (e.g. a 4- or 6-byte SecureOn password) are ignored.
//
// The function is pure: no I/O, no logging, safe for concurrent use. The
// classified failure is returned as a *ParseError for the caller to act on.
func ParseMagicPacket(buf []byte) (MagicPacket, error) {
	if len(buf) < MinPacketSize {
		return MagicPacket{}, &ParseError{Kind: TooShort, Length: len(buf)}
	}

	// Check for 6 bytes of 0xFF at the start (cheap reject)
	for i := 0; i < syncStreamLen; i++ {
		if buf[i] != 0xFF {
			return MagicPacket{}, &ParseError{Kind: BadHeader, Offset: i}
		}
	}

	// The first repetition (bytes 6-11) is the candidate MAC
	candidate := buf[syncStreamLen : syncStreamLen+macLen]

	// The remaining repetitions must match byte for byte. A mismatch means the
	// buffer only superficially resembles a magic packet (e.g. an incidental
	// run of 0xFF in unrelated traffic).
	for rep := 1; rep < macRepetitions; rep++ {
		offset := syncStreamLen + rep*macLen
		for j := 0; j < macLen; j++ {
			if buf[offset+j] != candidate[j] {
				return MagicPacket{}, &ParseError{Kind: InconsistentRepetition, Offset: offset + j}
			}
		}
	}

	// Copy the MAC out: the caller reuses the receive buffer.
	mac := make(net.HardwareAddr, macLen)
	copy(mac, candidate)

	return MagicPacket{mac: mac}, nil
}

// BuildMagicPacket encodes a magic packet for the given hardware address.
func BuildMagicPacket(mac net.HardwareAddr) ([]byte, error) {
	if len(mac) != macLen {
		return nil, fmt.Errorf("hardware address must be %d bytes, got %d", macLen, len(mac))
	}

	packet := make([]byte, MinPacketSize)
	for i := 0; i < syncStreamLen; i++ {
		packet[i] = 0xFF
	}
	for rep := 0; rep < macRepetitions; rep++ {
		copy(packet[syncStreamLen+rep*macLen:], mac)
	}

	return packet, nil
}
