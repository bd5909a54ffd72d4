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
	"strings"

	"cme-md-go/constants"
)

// ErrTruncated reports a datagram whose header, root, or group extends
// past the datagram end. The remainder of the datagram is unusable.
var ErrTruncated = errors.New("sbe: truncated message")

// PacketIterator walks the SBE messages of one input datagram in place.
//
// HOT PATH: one iterator is constructed per received datagram; Next is
// called once per message. No allocations beyond the small decoded views;
// entry payloads stay in the caller's receive buffer.
//
// Usage:
//
//	hdr, it, err := sbe.NewPacketIterator(datagram)
//	for it.Next() {
//		switch it.TemplateId() {
//		case constants.TemplateIncrementalRefresh:
//			m, _ := it.Incremental()
//			...
//		}
//	}
//	if it.Err() != nil { ... }
type PacketIterator struct {
	buf    []byte
	off    int
	err    error
	header MessageHeader
	body   []byte // current message root+groups, sized exactly
}

// NewPacketIterator parses the packet header and positions the iterator
// on the first message.
func NewPacketIterator(datagram []byte) (PacketHeader, *PacketIterator, error) {
	if len(datagram) < PacketHeaderSize {
		return PacketHeader{}, nil, ErrTruncated
	}
	hdr := PacketHeader{
		PacketSeq:   binary.LittleEndian.Uint32(datagram[0:4]),
		SendingTime: binary.LittleEndian.Uint64(datagram[4:12]),
	}
	return hdr, &PacketIterator{buf: datagram, off: PacketHeaderSize}, nil
}

// Next advances to the next message in the datagram. It returns false at
// the end of the datagram or on a framing error; distinguish the two with
// Err. A framing error fails the rest of the datagram closed.
func (it *PacketIterator) Next() bool {
	if it.err != nil {
		return false
	}
	// Clean end: no bytes left. Trailing bytes shorter than a header are
	// treated as truncation.
	if it.off == len(it.buf) {
		return false
	}
	if it.off+MessageHeaderSize > len(it.buf) {
		it.err = ErrTruncated
		return false
	}

	b := it.buf[it.off:]
	it.header = MessageHeader{
		BlockLength: binary.LittleEndian.Uint16(b[0:2]),
		TemplateId:  binary.LittleEndian.Uint16(b[2:4]),
		SchemaId:    binary.LittleEndian.Uint16(b[4:6]),
		Version:     binary.LittleEndian.Uint16(b[6:8]),
	}

	size, ok := it.messageSize(b[MessageHeaderSize:])
	if !ok {
		it.err = ErrTruncated
		return false
	}
	total := MessageHeaderSize + size
	if it.off+total > len(it.buf) {
		it.err = ErrTruncated
		return false
	}
	it.body = b[MessageHeaderSize : MessageHeaderSize+size]
	it.off += total
	return true
}

// messageSize computes the full body size (root + groups) for the current
// header. For templates with a repeating group the group header must be
// readable to learn the entry count; anything else falls back to
// blockLength so unknown templates are skipped without desynchronising.
func (it *PacketIterator) messageSize(body []byte) (int, bool) {
	switch it.header.TemplateId {
	case constants.TemplateIncrementalRefresh:
		n, ok := groupCount(body, incrementalRootSize)
		if !ok {
			return 0, false
		}
		return incrementalRootSize + GroupHeaderSize + n*IncrementalEntrySize, true
	case constants.TemplateSnapshotRefresh:
		n, ok := groupCount(body, snapshotRootSize)
		if !ok {
			return 0, false
		}
		return snapshotRootSize + GroupHeaderSize + n*SnapshotEntrySize, true
	default:
		return int(it.header.BlockLength), true
	}
}

// groupCount reads numInGroup from the group header that follows a root
// block of rootSize bytes.
func groupCount(body []byte, rootSize int) (int, bool) {
	if len(body) < rootSize+GroupHeaderSize {
		return 0, false
	}
	return int(body[rootSize+2]), true
}

// Err returns the framing error that stopped iteration, if any.
func (it *PacketIterator) Err() error { return it.err }

// Header returns the SBE header of the current message.
func (it *PacketIterator) Header() MessageHeader { return it.header }

// TemplateId returns the template of the current message.
func (it *PacketIterator) TemplateId() uint16 { return it.header.TemplateId }

// Incremental decodes the current message as a template 32 view.
func (it *PacketIterator) Incremental() (IncrementalRefresh, bool) {
	if it.header.TemplateId != constants.TemplateIncrementalRefresh {
		return IncrementalRefresh{}, false
	}
	b := it.body
	n := int(b[incrementalRootSize+2])
	return IncrementalRefresh{
		TransactTime: binary.LittleEndian.Uint64(b[0:8]),
		NumEntries:   n,
		entries:      b[incrementalRootSize+GroupHeaderSize:],
	}, true
}

// Snapshot decodes the current message as a template 38 view.
func (it *PacketIterator) Snapshot() (SnapshotRefresh, bool) {
	if it.header.TemplateId != constants.TemplateSnapshotRefresh {
		return SnapshotRefresh{}, false
	}
	b := it.body
	n := int(b[snapshotRootSize+2])
	return SnapshotRefresh{
		LastIncrSeqProcessed: binary.LittleEndian.Uint32(b[0:4]),
		SecurityId:           binary.LittleEndian.Uint32(b[4:8]),
		RptSeq:               binary.LittleEndian.Uint32(b[8:12]),
		TransactTime:         binary.LittleEndian.Uint64(b[12:20]),
		NumEntries:           n,
		entries:              b[snapshotRootSize+GroupHeaderSize:],
	}, true
}

// SecurityDef decodes the current message as a template 27 payload.
func (it *PacketIterator) SecurityDef() (SecurityDefinition, bool) {
	if it.header.TemplateId != constants.TemplateSecurityDefinition || len(it.body) < secDefRootSize {
		return SecurityDefinition{}, false
	}
	b := it.body
	sym := string(b[4:24])
	if i := strings.IndexByte(sym, 0); i >= 0 {
		sym = sym[:i]
	}
	return SecurityDefinition{
		SecurityId:        binary.LittleEndian.Uint32(b[0:4]),
		Symbol:            sym,
		MinPriceIncrement: int64(binary.LittleEndian.Uint64(b[24:32])),
		DisplayFactor:     binary.LittleEndian.Uint32(b[32:36]),
		TradingStatus:     b[36],
	}, true
}

// ChannelReset decodes the current message as a template 4 payload,
// returning its transact time.
func (it *PacketIterator) ChannelReset() (uint64, bool) {
	if it.header.TemplateId != constants.TemplateChannelReset || len(it.body) < channelResetSize {
		return 0, false
	}
	return binary.LittleEndian.Uint64(it.body[0:8]), true
}

// Heartbeat decodes the current message as a template 12 payload,
// returning the last message sequence it carries.
func (it *PacketIterator) Heartbeat() (uint64, bool) {
	if it.header.TemplateId != constants.TemplateHeartbeat || len(it.body) < heartbeatSize {
		return 0, false
	}
	return binary.LittleEndian.Uint64(it.body[0:8]), true
}
