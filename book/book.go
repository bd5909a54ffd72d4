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

// Package book maintains the per-instrument L2 order books.
//
// HOT PATH: Apply is called for every accepted incremental entry. A book
// is two fixed 10-slot ladders manipulated in place - no allocations, no
// locks. Books are owned by the dispatch loop and never touched from
// another goroutine; external readers get value copies via Snapshot.
//
// Ladder invariants:
//   - bids sorted descending, asks ascending (the feed's responsibility;
//     the book stores whatever the feed delivers)
//   - the occupied prefix [0, count) holds the valid levels, slots beyond
//     are zero
//   - count in [0, MaxDepth]
package book

import (
	"cme-md-go/constants"
	"cme-md-go/sbe"
)

// PriceLevel is one ladder slot. Price keeps the 7-decimal wire mantissa;
// rescaling happens only at the publish boundary.
type PriceLevel struct {
	Price      int64
	Quantity   int32
	OrderCount uint8
}

// Book is the L2 state for a single security.
type Book struct {
	securityId uint32
	lastRptSeq uint32

	bids     [constants.MaxDepth]PriceLevel
	asks     [constants.MaxDepth]PriceLevel
	bidCount uint8
	askCount uint8

	// trade tape
	lastTradePrice int64
	lastTradeQty   int32
	totalVolume    uint64
}

// New creates an empty book for the security.
func New(securityId uint32) *Book {
	return &Book{securityId: securityId}
}

func (b *Book) SecurityId() uint32 { return b.securityId }
func (b *Book) LastRptSeq() uint32 { return b.lastRptSeq }
func (b *Book) BidCount() int      { return int(b.bidCount) }
func (b *Book) AskCount() int      { return int(b.askCount) }

// SetLastRptSeq pins the book's sequence, used after snapshot application.
func (b *Book) SetLastRptSeq(seq uint32) { b.lastRptSeq = seq }

// Bid returns bid slot i (0-based). i must be in [0, MaxDepth).
func (b *Book) Bid(i int) PriceLevel { return b.bids[i] }

// Ask returns ask slot i (0-based). i must be in [0, MaxDepth).
func (b *Book) Ask(i int) PriceLevel { return b.asks[i] }

// TradeTape returns last trade price, last trade quantity, total volume.
func (b *Book) TradeTape() (int64, int32, uint64) {
	return b.lastTradePrice, b.lastTradeQty, b.totalVolume
}

// Clear zeroes both ladders. The trade tape and lastRptSeq survive a
// clear; a channel reset resets the sequence separately.
func (b *Book) Clear() {
	b.bids = [constants.MaxDepth]PriceLevel{}
	b.asks = [constants.MaxDepth]PriceLevel{}
	b.bidCount = 0
	b.askCount = 0
}

// Reset restores the book to its initial state, trade tape included.
func (b *Book) Reset() {
	*b = Book{securityId: b.securityId}
}

// Apply mutates the book with one incremental entry.
// HOT PATH: entry routing plus an O(depth) ladder shift at worst.
//
// Trades never touch the ladders; they update the trade tape. Implied
// bids/offers are applied to the regular ladders. Levels outside [1,10]
// are ignored without error. After any entry the book's sequence advances
// to max(lastRptSeq, entry.RptSeq); gating on sequence is the recovery
// manager's job, not the book's.
func (b *Book) Apply(e sbe.IncrementalEntry) {
	switch e.EntryType {
	case constants.EntryTypeBid, constants.EntryTypeImpliedBid:
		b.bidCount = applySide(&b.bids, b.bidCount, e.Action, e.Level, e.Price, e.Quantity, e.NumOrders)
	case constants.EntryTypeOffer, constants.EntryTypeImpliedOffer:
		b.askCount = applySide(&b.asks, b.askCount, e.Action, e.Level, e.Price, e.Quantity, e.NumOrders)
	case constants.EntryTypeTrade:
		b.recordTrade(e.Price, e.Quantity)
	}

	if e.RptSeq > b.lastRptSeq {
		b.lastRptSeq = e.RptSeq
	}
}

// applySide runs one update action against a ladder and returns the new
// occupied count. level is the 1-based wire position.
func applySide(side *[constants.MaxDepth]PriceLevel, count uint8, action, level uint8, price int64, qty int32, orders uint8) uint8 {
	if level == 0 || level > constants.MaxDepth {
		return count
	}
	idx := int(level) - 1

	switch action {
	case constants.ActionNew:
		// Shift deeper levels down one position; the tail is discarded.
		for i := constants.MaxDepth - 1; i > idx; i-- {
			side[i] = side[i-1]
		}
		side[idx] = PriceLevel{Price: price, Quantity: qty, OrderCount: orders}
		if count < constants.MaxDepth {
			count++
		}

	case constants.ActionChange:
		side[idx] = PriceLevel{Price: price, Quantity: qty, OrderCount: orders}

	case constants.ActionDelete:
		// Shift deeper levels up one position; the tail slot zeroes.
		for i := idx; i < constants.MaxDepth-1; i++ {
			side[i] = side[i+1]
		}
		side[constants.MaxDepth-1] = PriceLevel{}
		if count > 0 {
			count--
		}

	case constants.ActionDeleteThru:
		// Everything at or better than this level is gone; the feed's
		// semantic empties the whole side rather than compacting what
		// remains below it.
		*side = [constants.MaxDepth]PriceLevel{}
		count = 0

	case constants.ActionDeleteFrom:
		for i := idx; i < constants.MaxDepth; i++ {
			side[i] = PriceLevel{}
		}
		count = uint8(idx)

	case constants.ActionOverlay:
		side[idx] = PriceLevel{Price: price, Quantity: qty, OrderCount: orders}
		if uint8(idx+1) > count {
			count = uint8(idx + 1)
		}
	}
	return count
}

func (b *Book) recordTrade(price int64, qty int32) {
	b.lastTradePrice = price
	b.lastTradeQty = qty
	b.totalVolume += uint64(qty)
}

// ApplySnapshot replaces the book wholesale from a full-refresh message.
// The caller pins lastRptSeq to the snapshot's rpt_seq afterwards.
func (b *Book) ApplySnapshot(snap sbe.SnapshotRefresh) {
	b.Clear()

	for i := 0; i < snap.NumEntries; i++ {
		e := snap.Entry(i)
		if e.Level == 0 || e.Level > constants.MaxDepth {
			continue
		}
		idx := int(e.Level) - 1
		lv := PriceLevel{Price: e.Price, Quantity: e.Quantity, OrderCount: e.NumOrders}

		switch e.EntryType {
		case constants.EntryTypeBid, constants.EntryTypeImpliedBid:
			b.bids[idx] = lv
			if uint8(idx+1) > b.bidCount {
				b.bidCount = uint8(idx + 1)
			}
		case constants.EntryTypeOffer, constants.EntryTypeImpliedOffer:
			b.asks[idx] = lv
			if uint8(idx+1) > b.askCount {
				b.askCount = uint8(idx + 1)
			}
		}
	}
}

// Snapshot renders the book as a publishable message. Prices are rescaled
// through the 4-decimal fixed point exactly as the output schema expects;
// zero and negative quantities are never published as levels.
func (b *Book) Snapshot(symbol string) sbe.L2Snapshot {
	var snap sbe.L2Snapshot
	copy(snap.Symbol[:], symbol)

	snap.LastTradePrice = sbe.PriceFromFixed(sbe.PriceToFixed(b.lastTradePrice))
	snap.LastTradeQty = uint32(b.lastTradeQty)
	snap.TotalVolume = b.totalVolume

	snap.Bids = renderSide(b.bids[:int(b.bidCount)])
	snap.Asks = renderSide(b.asks[:int(b.askCount)])
	snap.BidCount = uint8(len(snap.Bids))
	snap.AskCount = uint8(len(snap.Asks))
	return snap
}

func renderSide(levels []PriceLevel) []sbe.PriceLevel {
	out := make([]sbe.PriceLevel, 0, len(levels))
	for i, lv := range levels {
		if lv.Quantity <= 0 {
			continue
		}
		out = append(out, sbe.PriceLevel{
			Level:     uint8(i + 1),
			Price:     sbe.PriceFromFixed(sbe.PriceToFixed(lv.Price)),
			Quantity:  uint32(lv.Quantity),
			NumOrders: uint16(lv.OrderCount),
		})
	}
	return out
}
