// SPDX-License-Identifier: MIT
/*
Package transport ships finished waterfall rows off the host.

Rows leave the worker through a Publisher, which copies them into a fixed
pool of packets and hands them to a sender goroutine without blocking. Each
Transport (UDP, WebSocket, log) receives the encoded packet:

	| Sequence | Timestamp (ns) | Count  | Intensities   |
	| uint32   | int64          | uint16 | Count × uint8 |

All header fields are big-endian.
*/
package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Transport sends one encoded packet. Implementations must be safe for use
// by the publisher's goroutine while Close is called from another.
type Transport interface {
	Send(packet []byte) error
	Close() error
}

// RowHeaderSize is the size of the packet header.
const RowHeaderSize = 4 + 8 + 2

var ErrPacket = errors.New("transport: malformed packet")

// Row is a decoded row packet.
type Row struct {
	Seq       uint32
	Timestamp int64
	Values    []byte
}

// AppendRow encodes a row packet onto dst.
func AppendRow(dst []byte, seq uint32, timestamp int64, values []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(timestamp))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(values)))
	return append(dst, values...)
}

// DecodeRow parses a row packet. Values aliases packet.
func DecodeRow(packet []byte) (Row, error) {
	if len(packet) < RowHeaderSize {
		return Row{}, fmt.Errorf("%w: %d bytes, header needs %d", ErrPacket, len(packet), RowHeaderSize)
	}
	n := int(binary.BigEndian.Uint16(packet[12:]))
	if len(packet) != RowHeaderSize+n {
		return Row{}, fmt.Errorf("%w: count %d, payload %d bytes", ErrPacket, n, len(packet)-RowHeaderSize)
	}
	return Row{
		Seq:       binary.BigEndian.Uint32(packet),
		Timestamp: int64(binary.BigEndian.Uint64(packet[4:])),
		Values:    packet[RowHeaderSize:],
	}, nil
}
