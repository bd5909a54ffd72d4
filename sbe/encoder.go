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

	"cme-md-go/constants"
)

// Input-side encoders. The feed handler never sends on the input schema;
// these exist for the simulator and for test fixtures. All of them append
// to dst and return the extended slice, so a packet is built as
//
//	buf := sbe.AppendPacketHeader(nil, seq, now)
//	buf = sbe.AppendIncremental(buf, now, entries)

// AppendPacketHeader appends the 12-byte packet header.
func AppendPacketHeader(dst []byte, packetSeq uint32, sendingTime uint64) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, packetSeq)
	dst = binary.LittleEndian.AppendUint64(dst, sendingTime)
	return dst
}

func appendMessageHeader(dst []byte, blockLength, templateId uint16) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, blockLength)
	dst = binary.LittleEndian.AppendUint16(dst, templateId)
	dst = binary.LittleEndian.AppendUint16(dst, constants.InputSchemaID)
	dst = binary.LittleEndian.AppendUint16(dst, constants.InputSchemaVersion)
	return dst
}

func appendGroupHeader(dst []byte, blockLength uint16, numInGroup uint8) []byte {
	dst = binary.LittleEndian.AppendUint16(dst, blockLength)
	dst = append(dst, numInGroup)
	return dst
}

// AppendIncremental appends a template 32 message with the given entries.
// At most 255 entries fit the group header; callers keep batches small
// enough for one MTU anyway.
func AppendIncremental(dst []byte, transactTime uint64, entries []IncrementalEntry) []byte {
	dst = appendMessageHeader(dst, incrementalRootSize, constants.TemplateIncrementalRefresh)
	dst = binary.LittleEndian.AppendUint64(dst, transactTime)
	dst = appendGroupHeader(dst, IncrementalEntrySize, uint8(len(entries)))
	for _, e := range entries {
		dst = binary.LittleEndian.AppendUint64(dst, uint64(e.Price))
		dst = binary.LittleEndian.AppendUint32(dst, uint32(e.Quantity))
		dst = binary.LittleEndian.AppendUint32(dst, e.SecurityId)
		dst = binary.LittleEndian.AppendUint32(dst, e.RptSeq)
		dst = append(dst, e.EntryType, e.Action, e.Level, e.NumOrders)
	}
	return dst
}

// AppendSnapshot appends a template 38 message.
func AppendSnapshot(dst []byte, lastIncrSeq, securityId, rptSeq uint32, transactTime uint64, entries []SnapshotEntry) []byte {
	dst = appendMessageHeader(dst, snapshotRootSize, constants.TemplateSnapshotRefresh)
	dst = binary.LittleEndian.AppendUint32(dst, lastIncrSeq)
	dst = binary.LittleEndian.AppendUint32(dst, securityId)
	dst = binary.LittleEndian.AppendUint32(dst, rptSeq)
	dst = binary.LittleEndian.AppendUint64(dst, transactTime)
	dst = appendGroupHeader(dst, SnapshotEntrySize, uint8(len(entries)))
	for _, e := range entries {
		dst = binary.LittleEndian.AppendUint64(dst, uint64(e.Price))
		dst = binary.LittleEndian.AppendUint32(dst, uint32(e.Quantity))
		dst = append(dst, e.EntryType, e.Level, e.NumOrders, 0)
	}
	return dst
}

// AppendSecurityDefinition appends a template 27 message. Symbols longer
// than 20 bytes are truncated on the wire.
func AppendSecurityDefinition(dst []byte, def SecurityDefinition) []byte {
	dst = appendMessageHeader(dst, secDefRootSize, constants.TemplateSecurityDefinition)
	dst = binary.LittleEndian.AppendUint32(dst, def.SecurityId)
	var sym [20]byte
	copy(sym[:], def.Symbol)
	dst = append(dst, sym[:]...)
	dst = binary.LittleEndian.AppendUint64(dst, uint64(def.MinPriceIncrement))
	dst = binary.LittleEndian.AppendUint32(dst, def.DisplayFactor)
	dst = append(dst, def.TradingStatus)
	return dst
}

// AppendChannelReset appends a template 4 message.
func AppendChannelReset(dst []byte, transactTime uint64) []byte {
	dst = appendMessageHeader(dst, channelResetSize, constants.TemplateChannelReset)
	dst = binary.LittleEndian.AppendUint64(dst, transactTime)
	return dst
}

// AppendHeartbeat appends a template 12 message.
func AppendHeartbeat(dst []byte, lastMsgSeq uint64) []byte {
	dst = appendMessageHeader(dst, heartbeatSize, constants.TemplateHeartbeat)
	dst = binary.LittleEndian.AppendUint64(dst, lastMsgSeq)
	return dst
}
