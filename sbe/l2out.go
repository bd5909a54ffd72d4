/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package sbe

import (
	"encoding/binary"
	"errors"
)

// Output schema (published L2 feed) - Schema ID: 1, Version: 1
//
// Wire format (little-endian):
//
//	┌─────────────────────────────────────────────────────────┐
//	│                  Message Header (8 bytes)               │
//	├─────────────────────────────────────────────────────────┤
//	│              L2Snapshot Root Block (46 bytes)           │
//	│  symbol[8]         (char[8])                            │
//	│  timestamp         (uint64)  - ns since epoch           │
//	│  sequenceNumber    (uint64)                             │
//	│  lastTradePrice    (int64)   - 7 decimal places         │
//	│  lastTradeQty      (uint32)                             │
//	│  totalVolume       (uint64)                             │
//	│  bidCount          (uint8)                              │
//	│  askCount          (uint8)                              │
//	├─────────────────────────────────────────────────────────┤
//	│  Bids Group Header (3 bytes) + entries (15 bytes each)  │
//	│  Asks Group Header (3 bytes) + entries (15 bytes each)  │
//	│    level      (uint8)                                   │
//	│    price      (int64)   - 7 decimal places              │
//	│    quantity   (uint32)                                  │
//	│    numOrders  (uint16)                                  │
//	└─────────────────────────────────────────────────────────┘

// Output schema constants.
const (
	OutSchemaID      uint16 = 1
	OutSchemaVersion uint16 = 1

	TemplateOutHeartbeat  uint16 = 1
	TemplateOutL2Snapshot uint16 = 2

	OutSymbolLen       = 8
	L2SnapshotRootSize = 46
	HeartbeatRootSize  = 16
	PriceLevelSize     = 15

	HeartbeatMsgSize = MessageHeaderSize + HeartbeatRootSize

	// MaxL2SnapshotSize is the encoded size at full 10+10 depth: 360 bytes.
	MaxL2SnapshotSize = MessageHeaderSize + L2SnapshotRootSize +
		2*(GroupHeaderSize+10*PriceLevelSize)
)

// ErrBufferTooSmall reports an encode target smaller than the exact
// required size.
var ErrBufferTooSmall = errors.New("sbe: buffer too small")

// ErrBadMessage reports an output-schema datagram that does not parse.
var ErrBadMessage = errors.New("sbe: bad message")

// PriceLevel is one published depth level.
type PriceLevel struct {
	Level     uint8 // 1-based
	Price     int64 // 7 implied decimals
	Quantity  uint32
	NumOrders uint16
}

// L2Snapshot is the published per-instrument book message.
type L2Snapshot struct {
	Symbol         [OutSymbolLen]byte
	Timestamp      uint64
	SequenceNumber uint64
	LastTradePrice int64
	LastTradeQty   uint32
	TotalVolume    uint64
	BidCount       uint8
	AskCount       uint8
	Bids           []PriceLevel
	Asks           []PriceLevel
}

// SymbolString returns the symbol with trailing NULs stripped.
func (s *L2Snapshot) SymbolString() string {
	for i, c := range s.Symbol {
		if c == 0 {
			return string(s.Symbol[:i])
		}
	}
	return string(s.Symbol[:])
}

// L2SnapshotSize returns the exact encoded size for the given group sizes.
func L2SnapshotSize(numBids, numAsks int) int {
	return MessageHeaderSize + L2SnapshotRootSize +
		GroupHeaderSize + numBids*PriceLevelSize +
		GroupHeaderSize + numAsks*PriceLevelSize
}

// EncodeL2Snapshot encodes snap into buf and returns the encoded length.
// Fails with ErrBufferTooSmall when buf is shorter than the exact size.
func EncodeL2Snapshot(buf []byte, snap *L2Snapshot) (int, error) {
	need := L2SnapshotSize(len(snap.Bids), len(snap.Asks))
	if len(buf) < need {
		return 0, ErrBufferTooSmall
	}

	binary.LittleEndian.PutUint16(buf[0:2], L2SnapshotRootSize)
	binary.LittleEndian.PutUint16(buf[2:4], TemplateOutL2Snapshot)
	binary.LittleEndian.PutUint16(buf[4:6], OutSchemaID)
	binary.LittleEndian.PutUint16(buf[6:8], OutSchemaVersion)
	off := MessageHeaderSize

	copy(buf[off:off+OutSymbolLen], snap.Symbol[:])
	off += OutSymbolLen
	binary.LittleEndian.PutUint64(buf[off:], snap.Timestamp)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], snap.SequenceNumber)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(snap.LastTradePrice))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], snap.LastTradeQty)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], snap.TotalVolume)
	off += 8
	buf[off] = snap.BidCount
	buf[off+1] = snap.AskCount
	off += 2

	off = encodeLevelGroup(buf, off, snap.Bids)
	off = encodeLevelGroup(buf, off, snap.Asks)
	return off, nil
}

func encodeLevelGroup(buf []byte, off int, levels []PriceLevel) int {
	binary.LittleEndian.PutUint16(buf[off:], PriceLevelSize)
	buf[off+2] = uint8(len(levels))
	off += GroupHeaderSize
	for _, lv := range levels {
		buf[off] = lv.Level
		binary.LittleEndian.PutUint64(buf[off+1:], uint64(lv.Price))
		binary.LittleEndian.PutUint32(buf[off+9:], lv.Quantity)
		binary.LittleEndian.PutUint16(buf[off+13:], lv.NumOrders)
		off += PriceLevelSize
	}
	return off
}

// DecodeL2Snapshot decodes a published snapshot datagram. The returned
// level slices are freshly allocated; the input buffer may be reused.
func DecodeL2Snapshot(buf []byte) (L2Snapshot, error) {
	var snap L2Snapshot
	if len(buf) < MessageHeaderSize+L2SnapshotRootSize {
		return snap, ErrBadMessage
	}
	if binary.LittleEndian.Uint16(buf[2:4]) != TemplateOutL2Snapshot ||
		binary.LittleEndian.Uint16(buf[4:6]) != OutSchemaID {
		return snap, ErrBadMessage
	}
	off := MessageHeaderSize

	copy(snap.Symbol[:], buf[off:off+OutSymbolLen])
	off += OutSymbolLen
	snap.Timestamp = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	snap.SequenceNumber = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	snap.LastTradePrice = int64(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	snap.LastTradeQty = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	snap.TotalVolume = binary.LittleEndian.Uint64(buf[off:])
	off += 8
	snap.BidCount = buf[off]
	snap.AskCount = buf[off+1]
	off += 2

	var err error
	if snap.Bids, off, err = decodeLevelGroup(buf, off); err != nil {
		return snap, err
	}
	if snap.Asks, _, err = decodeLevelGroup(buf, off); err != nil {
		return snap, err
	}
	return snap, nil
}

func decodeLevelGroup(buf []byte, off int) ([]PriceLevel, int, error) {
	if off+GroupHeaderSize > len(buf) {
		return nil, 0, ErrBadMessage
	}
	n := int(buf[off+2])
	off += GroupHeaderSize
	if off+n*PriceLevelSize > len(buf) {
		return nil, 0, ErrBadMessage
	}
	levels := make([]PriceLevel, n)
	for i := 0; i < n; i++ {
		levels[i] = PriceLevel{
			Level:     buf[off],
			Price:     int64(binary.LittleEndian.Uint64(buf[off+1:])),
			Quantity:  binary.LittleEndian.Uint32(buf[off+9:]),
			NumOrders: binary.LittleEndian.Uint16(buf[off+13:]),
		}
		off += PriceLevelSize
	}
	return levels, off, nil
}

// EncodeOutHeartbeat encodes an output-schema heartbeat.
func EncodeOutHeartbeat(buf []byte, timestamp, sequenceNumber uint64) (int, error) {
	if len(buf) < HeartbeatMsgSize {
		return 0, ErrBufferTooSmall
	}
	binary.LittleEndian.PutUint16(buf[0:2], HeartbeatRootSize)
	binary.LittleEndian.PutUint16(buf[2:4], TemplateOutHeartbeat)
	binary.LittleEndian.PutUint16(buf[4:6], OutSchemaID)
	binary.LittleEndian.PutUint16(buf[6:8], OutSchemaVersion)
	binary.LittleEndian.PutUint64(buf[8:16], timestamp)
	binary.LittleEndian.PutUint64(buf[16:24], sequenceNumber)
	return HeartbeatMsgSize, nil
}

// DecodeOutHeartbeat decodes an output-schema heartbeat, returning
// timestamp and sequence number.
func DecodeOutHeartbeat(buf []byte) (uint64, uint64, error) {
	if len(buf) < HeartbeatMsgSize ||
		binary.LittleEndian.Uint16(buf[2:4]) != TemplateOutHeartbeat ||
		binary.LittleEndian.Uint16(buf[4:6]) != OutSchemaID {
		return 0, 0, ErrBadMessage
	}
	return binary.LittleEndian.Uint64(buf[8:16]), binary.LittleEndian.Uint64(buf[16:24]), nil
}

// OutTemplateId peeks the template of an output-schema datagram.
func OutTemplateId(buf []byte) (uint16, bool) {
	if len(buf) < MessageHeaderSize {
		return 0, false
	}
	return binary.LittleEndian.Uint16(buf[2:4]), true
}
