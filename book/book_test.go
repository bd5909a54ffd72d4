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

package book

import (
	"testing"

	"cme-md-go/constants"
	"cme-md-go/sbe"
)

// Tests for the L2 ladder semantics. Each update action has exact
// shift/clear/count behavior; the scenarios below pin it down together
// with the trade tape and the snapshot replace path.

func bidEntry(action, level uint8, price int64, qty int32, orders uint8, rptSeq uint32) sbe.IncrementalEntry {
	return sbe.IncrementalEntry{
		Price: price, Quantity: qty, SecurityId: 1001, RptSeq: rptSeq,
		EntryType: constants.EntryTypeBid, Action: action, Level: level, NumOrders: orders,
	}
}

func askEntry(action, level uint8, price int64, qty int32, orders uint8, rptSeq uint32) sbe.IncrementalEntry {
	e := bidEntry(action, level, price, qty, orders, rptSeq)
	e.EntryType = constants.EntryTypeOffer
	return e
}

// checkZeroTail verifies the occupied-prefix invariant: every slot past
// count is zero.
func checkZeroTail(t *testing.T, b *Book) {
	t.Helper()
	for i := b.BidCount(); i < constants.MaxDepth; i++ {
		if b.Bid(i) != (PriceLevel{}) {
			t.Errorf("bid slot %d not zero beyond count %d: %+v", i, b.BidCount(), b.Bid(i))
		}
	}
	for i := b.AskCount(); i < constants.MaxDepth; i++ {
		if b.Ask(i) != (PriceLevel{}) {
			t.Errorf("ask slot %d not zero beyond count %d: %+v", i, b.AskCount(), b.Ask(i))
		}
	}
}

// TestBook_NewChangeDelete runs the clean insert/replace/remove sequence:
// two inserts, a size change at the top, then a delete of the second
// level leaves a single updated level.
func TestBook_NewChangeDelete(t *testing.T) {
	b := New(1001)

	b.Apply(bidEntry(constants.ActionNew, 1, 45000000000, 10, 3, 1))
	b.Apply(bidEntry(constants.ActionNew, 2, 44997500000, 5, 2, 2))
	b.Apply(bidEntry(constants.ActionChange, 1, 45000000000, 12, 4, 3))
	b.Apply(bidEntry(constants.ActionDelete, 2, 0, 0, 0, 4))

	if b.BidCount() != 1 {
		t.Fatalf("bid count = %d, want 1", b.BidCount())
	}
	want := PriceLevel{Price: 45000000000, Quantity: 12, OrderCount: 4}
	if b.Bid(0) != want {
		t.Errorf("bids[0] = %+v, want %+v", b.Bid(0), want)
	}
	if b.LastRptSeq() != 4 {
		t.Errorf("last rpt_seq = %d, want 4", b.LastRptSeq())
	}
	checkZeroTail(t, b)
}

// TestBook_NewShiftsDeeperLevels verifies that an insert at the top
// pushes existing levels one position deeper and the tail at position 10
// is discarded.
func TestBook_NewShiftsDeeperLevels(t *testing.T) {
	b := New(1001)
	for i := 0; i < constants.MaxDepth; i++ {
		b.Apply(bidEntry(constants.ActionNew, uint8(i+1), int64(100-i), 1, 1, uint32(i+1)))
	}
	if b.BidCount() != constants.MaxDepth {
		t.Fatalf("bid count = %d, want %d", b.BidCount(), constants.MaxDepth)
	}
	deepest := b.Bid(constants.MaxDepth - 1)

	b.Apply(bidEntry(constants.ActionNew, 1, 101, 9, 9, 11))

	if b.BidCount() != constants.MaxDepth {
		t.Errorf("bid count = %d, want %d", b.BidCount(), constants.MaxDepth)
	}
	if b.Bid(0).Price != 101 {
		t.Errorf("bids[0].Price = %d, want 101", b.Bid(0).Price)
	}
	if b.Bid(1).Price != 100 {
		t.Errorf("bids[1].Price = %d, want 100", b.Bid(1).Price)
	}
	if b.Bid(constants.MaxDepth-1) == deepest {
		t.Error("deepest level should have been pushed out")
	}
}

// TestBook_OverlaySetsCount: an overlay at position 3 of an empty side
// occupies that slot and sets the count to 3, leaving the shallower
// slots zero.
func TestBook_OverlaySetsCount(t *testing.T) {
	b := New(1001)

	b.Apply(askEntry(constants.ActionOverlay, 3, 100, 7, 1, 1))

	if b.AskCount() != 3 {
		t.Fatalf("ask count = %d, want 3", b.AskCount())
	}
	if b.Ask(0) != (PriceLevel{}) || b.Ask(1) != (PriceLevel{}) {
		t.Errorf("asks[0..1] should be zero: %+v %+v", b.Ask(0), b.Ask(1))
	}
	want := PriceLevel{Price: 100, Quantity: 7, OrderCount: 1}
	if b.Ask(2) != want {
		t.Errorf("asks[2] = %+v, want %+v", b.Ask(2), want)
	}
}

func loadBids(b *Book, n int) {
	for i := 0; i < n; i++ {
		b.Apply(bidEntry(constants.ActionOverlay, uint8(i+1), int64(100-i), int32(10+i), 1, uint32(i+1)))
	}
}

// TestBook_DeleteThruEmptiesSide: DeleteThru clears the whole side per
// the feed semantics, not just the prefix.
func TestBook_DeleteThruEmptiesSide(t *testing.T) {
	b := New(1001)
	loadBids(b, 5)

	b.Apply(bidEntry(constants.ActionDeleteThru, 2, 0, 0, 0, 6))

	if b.BidCount() != 0 {
		t.Fatalf("bid count = %d, want 0", b.BidCount())
	}
	for i := 0; i < constants.MaxDepth; i++ {
		if b.Bid(i) != (PriceLevel{}) {
			t.Errorf("bids[%d] not zero after DeleteThru: %+v", i, b.Bid(i))
		}
	}
}

// TestBook_DeleteFromClearsSuffix: DeleteFrom at level 3 retains the two
// better levels and zeroes everything deeper.
func TestBook_DeleteFromClearsSuffix(t *testing.T) {
	b := New(1001)
	loadBids(b, 5)

	b.Apply(bidEntry(constants.ActionDeleteFrom, 3, 0, 0, 0, 6))

	if b.BidCount() != 2 {
		t.Fatalf("bid count = %d, want 2", b.BidCount())
	}
	if b.Bid(0).Price != 100 || b.Bid(1).Price != 99 {
		t.Errorf("retained prefix wrong: %+v %+v", b.Bid(0), b.Bid(1))
	}
	checkZeroTail(t, b)
}

// TestBook_OutOfRangeLevelIgnored: levels 0 and 11 never touch the
// ladders or the counts.
func TestBook_OutOfRangeLevelIgnored(t *testing.T) {
	b := New(1001)
	loadBids(b, 2)

	for _, level := range []uint8{0, constants.MaxDepth + 1, 200} {
		b.Apply(bidEntry(constants.ActionNew, level, 500, 5, 5, 10))
		b.Apply(bidEntry(constants.ActionDeleteThru, level, 0, 0, 0, 10))
	}

	if b.BidCount() != 2 {
		t.Errorf("bid count = %d, want 2", b.BidCount())
	}
	if b.Bid(0).Price != 100 {
		t.Errorf("bids[0].Price = %d, want 100", b.Bid(0).Price)
	}
	// The sequence still advances: gating is not the book's business.
	if b.LastRptSeq() != 10 {
		t.Errorf("last rpt_seq = %d, want 10", b.LastRptSeq())
	}
}

// TestBook_TradeUpdatesTapeNotLadders: trade entries record the tape and
// accumulate volume without moving any level.
func TestBook_TradeUpdatesTapeNotLadders(t *testing.T) {
	b := New(1001)
	loadBids(b, 2)

	trade := bidEntry(constants.ActionNew, 1, 45000000000, 3, 0, 7)
	trade.EntryType = constants.EntryTypeTrade
	b.Apply(trade)
	trade.Quantity = 5
	trade.RptSeq = 8
	b.Apply(trade)

	px, qty, vol := b.TradeTape()
	if px != 45000000000 || qty != 5 || vol != 8 {
		t.Errorf("tape = (%d, %d, %d), want (45000000000, 5, 8)", px, qty, vol)
	}
	if b.BidCount() != 2 {
		t.Errorf("trade moved the ladder: bid count = %d", b.BidCount())
	}
}

// TestBook_ImpliedEntriesHitRegularLadders: 'E'/'F' entry types apply to
// the bid/ask ladders exactly like 0/1.
func TestBook_ImpliedEntriesHitRegularLadders(t *testing.T) {
	b := New(1001)

	e := bidEntry(constants.ActionNew, 1, 100, 1, 1, 1)
	e.EntryType = constants.EntryTypeImpliedBid
	b.Apply(e)

	f := askEntry(constants.ActionNew, 1, 101, 2, 1, 2)
	f.EntryType = constants.EntryTypeImpliedOffer
	b.Apply(f)

	if b.BidCount() != 1 || b.Bid(0).Price != 100 {
		t.Errorf("implied bid not applied: count=%d %+v", b.BidCount(), b.Bid(0))
	}
	if b.AskCount() != 1 || b.Ask(0).Price != 101 {
		t.Errorf("implied offer not applied: count=%d %+v", b.AskCount(), b.Ask(0))
	}
}

func TestBook_LastRptSeqNonDecreasing(t *testing.T) {
	b := New(1001)
	b.Apply(bidEntry(constants.ActionOverlay, 1, 100, 1, 1, 9))
	b.Apply(bidEntry(constants.ActionOverlay, 1, 100, 2, 1, 4))

	if b.LastRptSeq() != 9 {
		t.Errorf("last rpt_seq = %d, want 9 (max, not last)", b.LastRptSeq())
	}
}

func makeSnapshot(t *testing.T, entries []sbe.SnapshotEntry, rptSeq uint32) sbe.SnapshotRefresh {
	t.Helper()
	buf := sbe.AppendPacketHeader(nil, 1, 2)
	buf = sbe.AppendSnapshot(buf, 0, 1001, rptSeq, 3, entries)
	_, it, err := sbe.NewPacketIterator(buf)
	if err != nil || !it.Next() {
		t.Fatalf("building snapshot fixture: %v", err)
	}
	snap, ok := it.Snapshot()
	if !ok {
		t.Fatal("fixture is not a snapshot")
	}
	return snap
}

// TestBook_SnapshotReplacesWholesale: a populated book is completely
// replaced by the snapshot contents, including stale deep levels.
func TestBook_SnapshotReplacesWholesale(t *testing.T) {
	b := New(1001)
	loadBids(b, 8)

	snap := makeSnapshot(t, []sbe.SnapshotEntry{
		{Price: 200, Quantity: 10, EntryType: constants.EntryTypeBid, Level: 1, NumOrders: 1},
		{Price: 199, Quantity: 11, EntryType: constants.EntryTypeBid, Level: 2, NumOrders: 2},
		{Price: 201, Quantity: 12, EntryType: constants.EntryTypeOffer, Level: 1, NumOrders: 3},
	}, 50)
	b.ApplySnapshot(snap)
	b.SetLastRptSeq(snap.RptSeq)

	if b.BidCount() != 2 || b.AskCount() != 1 {
		t.Fatalf("counts = (%d, %d), want (2, 1)", b.BidCount(), b.AskCount())
	}
	if b.Bid(0).Price != 200 || b.Bid(1).Price != 199 || b.Ask(0).Price != 201 {
		t.Errorf("snapshot contents wrong: %+v %+v %+v", b.Bid(0), b.Bid(1), b.Ask(0))
	}
	if b.LastRptSeq() != 50 {
		t.Errorf("last rpt_seq = %d, want 50", b.LastRptSeq())
	}
	checkZeroTail(t, b)
}

// TestBook_SnapshotRendering: rendering filters non-positive quantities
// and rescales prices through the 4-decimal fixed point exactly.
func TestBook_SnapshotRendering(t *testing.T) {
	b := New(1001)
	b.Apply(bidEntry(constants.ActionOverlay, 1, 45000000000, 10, 3, 1))
	b.Apply(bidEntry(constants.ActionOverlay, 2, 44997500000, 0, 0, 2)) // zero qty, not publishable
	b.Apply(askEntry(constants.ActionOverlay, 1, 45002500000, 7, 2, 3))

	trade := bidEntry(constants.ActionNew, 1, 45001000000, 2, 0, 4)
	trade.EntryType = constants.EntryTypeTrade
	b.Apply(trade)

	snap := b.Snapshot("ESH26")

	if snap.SymbolString() != "ESH26" {
		t.Errorf("symbol = %q", snap.SymbolString())
	}
	if len(snap.Bids) != 1 || snap.BidCount != 1 {
		t.Fatalf("bids = %d (count %d), want 1", len(snap.Bids), snap.BidCount)
	}
	if snap.Bids[0].Level != 1 || snap.Bids[0].Price != 45000000000 || snap.Bids[0].Quantity != 10 || snap.Bids[0].NumOrders != 3 {
		t.Errorf("bid level = %+v", snap.Bids[0])
	}
	if len(snap.Asks) != 1 || snap.Asks[0].Price != 45002500000 {
		t.Errorf("ask level = %+v", snap.Asks)
	}
	if snap.LastTradePrice != 45001000000 || snap.LastTradeQty != 2 || snap.TotalVolume != 2 {
		t.Errorf("tape = (%d, %d, %d)", snap.LastTradePrice, snap.LastTradeQty, snap.TotalVolume)
	}
}

func BenchmarkBook_ApplyOverlay(b *testing.B) {
	bk := New(1001)
	e := bidEntry(constants.ActionOverlay, 3, 45000000000, 10, 3, 1)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.RptSeq = uint32(i)
		bk.Apply(e)
	}
}
