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

// Package sbe implements the binary wire codec for both feed directions.
//
// Input side (incremental + snapshot multicast channels):
//
//	┌──────────────────────────────────────────────┐
//	│        Packet Header (12 bytes)              │
//	│  packetSeq    (uint32)                       │
//	│  sendingTime  (uint64)  - ns since epoch     │
//	├──────────────────────────────────────────────┤
//	│        SBE Message Header (8 bytes)          │
//	│  blockLength  (uint16)                       │
//	│  templateId   (uint16)                       │
//	│  schemaId     (uint16)                       │
//	│  version      (uint16)                       │
//	├──────────────────────────────────────────────┤
//	│        Root block + repeating groups         │
//	├──────────────────────────────────────────────┤
//	│        ... further messages back-to-back     │
//	└──────────────────────────────────────────────┘
//
// All integers are little-endian. Fields are packed with no implicit
// padding; the only padding byte is the explicit one in snapshot entries.
//
// Decoding is a lazy in-place view over the datagram: nothing is copied,
// every field read is bounds-checked against the datagram length, and a
// header, root, or group that would read past the end fails the whole
// datagram closed. Unknown templates are skipped by blockLength so that
// forward-compatible extensions do not desynchronise parsing.
package sbe

import "encoding/binary"

// Wire sizes for the input framing.
const (
	PacketHeaderSize  = 12
	MessageHeaderSize = 8
	GroupHeaderSize   = 3

	IncrementalEntrySize = 24
	SnapshotEntrySize    = 16

	incrementalRootSize = 8  // transactTime
	snapshotRootSize    = 20 // lastIncrSeq + securityId + rptSeq + transactTime
	secDefRootSize      = 37 // securityId + symbol[20] + minPriceIncrement + displayFactor + tradingStatus
	channelResetSize    = 8  // transactTime
	heartbeatSize       = 8  // lastMsgSeq
)

// PacketHeader prefixes every datagram on both input channels.
type PacketHeader struct {
	PacketSeq   uint32
	SendingTime uint64 // ns since epoch
}

// MessageHeader prefixes every SBE message inside a packet.
type MessageHeader struct {
	BlockLength uint16
	TemplateId  uint16
	SchemaId    uint16
	Version     uint16
}

// IncrementalEntry is one per-level delta from template 32.
type IncrementalEntry struct {
	Price      int64 // mantissa, implied exponent -7
	Quantity   int32
	SecurityId uint32
	RptSeq     uint32
	EntryType  uint8
	Action     uint8
	Level      uint8 // 1-based depth position
	NumOrders  uint8
}

// SnapshotEntry is one full-book level from template 38.
type SnapshotEntry struct {
	Price     int64
	Quantity  int32
	EntryType uint8
	Level     uint8
	NumOrders uint8
	// one explicit padding byte on the wire
}

// SecurityDefinition is the decoded template 27 payload.
type SecurityDefinition struct {
	SecurityId        uint32
	Symbol            string // trailing NULs stripped
	MinPriceIncrement int64  // mantissa, implied exponent -7
	DisplayFactor     uint32
	TradingStatus     uint8
}

// IncrementalRefresh is a lazy view of a template 32 message. Entries are
// decoded on access straight out of the datagram buffer.
type IncrementalRefresh struct {
	TransactTime uint64
	NumEntries   int
	entries      []byte // NumEntries * IncrementalEntrySize, bounds-checked at parse time
}

// Entry decodes entry i. i must be in [0, NumEntries).
func (m IncrementalRefresh) Entry(i int) IncrementalEntry {
	b := m.entries[i*IncrementalEntrySize:]
	return IncrementalEntry{
		Price:      int64(binary.LittleEndian.Uint64(b[0:8])),
		Quantity:   int32(binary.LittleEndian.Uint32(b[8:12])),
		SecurityId: binary.LittleEndian.Uint32(b[12:16]),
		RptSeq:     binary.LittleEndian.Uint32(b[16:20]),
		EntryType:  b[20],
		Action:     b[21],
		Level:      b[22],
		NumOrders:  b[23],
	}
}

// SnapshotRefresh is a lazy view of a template 38 message.
type SnapshotRefresh struct {
	LastIncrSeqProcessed uint32
	SecurityId           uint32
	RptSeq               uint32
	TransactTime         uint64
	NumEntries           int
	entries              []byte
}

// Entry decodes entry i. i must be in [0, NumEntries).
func (m SnapshotRefresh) Entry(i int) SnapshotEntry {
	b := m.entries[i*SnapshotEntrySize:]
	return SnapshotEntry{
		Price:     int64(binary.LittleEndian.Uint64(b[0:8])),
		Quantity:  int32(binary.LittleEndian.Uint32(b[8:12])),
		EntryType: b[12],
		Level:     b[13],
		NumOrders: b[14],
	}
}

// PriceToFixed converts a wire price (mantissa, exponent -7) to the
// published 4-decimal fixed-point representation.
func PriceToFixed(wirePrice int64) uint32 {
	return uint32(wirePrice / 1000)
}

// PriceFromFixed converts a 4-decimal fixed-point price back to the
// 7-decimal wire mantissa. Exact for all prices in range.
func PriceFromFixed(fixedPrice uint32) int64 {
	return int64(fixedPrice) * 1000
}
