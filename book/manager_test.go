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

func TestManager_LazyBookCreation(t *testing.T) {
	m := NewManager()

	if m.HasBook(1001) {
		t.Fatal("unsighted security should have no book")
	}
	b := m.GetBook(1001)
	if b == nil || !m.HasBook(1001) {
		t.Fatal("GetBook should create lazily")
	}
	if m.GetBook(1001) != b {
		t.Error("second GetBook should return the same book")
	}
}

func TestManager_ApplyIncrementalMarksDirty(t *testing.T) {
	m := NewManager()

	m.ApplyIncremental(sbe.IncrementalEntry{
		Price: 100, Quantity: 1, SecurityId: 1001, RptSeq: 1,
		EntryType: constants.EntryTypeBid, Action: constants.ActionNew, Level: 1, NumOrders: 1,
	})

	if m.DirtyCount() != 1 {
		t.Fatalf("dirty count = %d, want 1", m.DirtyCount())
	}
	if got := m.GetBook(1001).BidCount(); got != 1 {
		t.Errorf("bid count = %d, want 1", got)
	}
}

// TestManager_DrainDirtyAtomicity: draining returns every dirty id once
// and leaves the set empty.
func TestManager_DrainDirtyAtomicity(t *testing.T) {
	m := NewManager()
	m.MarkDirty(1003)
	m.MarkDirty(1001)
	m.MarkDirty(1003) // duplicate marks collapse

	ids := m.DrainDirty()
	if len(ids) != 2 || ids[0] != 1001 || ids[1] != 1003 {
		t.Fatalf("drained %v, want [1001 1003]", ids)
	}
	if m.DirtyCount() != 0 {
		t.Errorf("dirty count after drain = %d", m.DirtyCount())
	}
	if m.DrainDirty() != nil {
		t.Error("second drain should be empty")
	}
}

func TestManager_SymbolPrefersDefinitionMetadata(t *testing.T) {
	m := NewManager()

	// Before a definition arrives, the static catalog answers.
	if m.Symbol(constants.SecurityIdESH26) != "ESH26" {
		t.Errorf("catalog symbol = %q", m.Symbol(constants.SecurityIdESH26))
	}
	if m.Symbol(9999) != "UNKNOWN" {
		t.Errorf("unknown symbol = %q", m.Symbol(9999))
	}

	m.SetMeta(9999, SecurityMeta{Symbol: "ZZZ9", MinPriceIncrement: 100, DisplayFactor: 1})
	if m.Symbol(9999) != "ZZZ9" {
		t.Errorf("definition symbol = %q", m.Symbol(9999))
	}
	if meta, ok := m.Meta(9999); !ok || meta.MinPriceIncrement != 100 {
		t.Errorf("meta = %+v ok=%v", meta, ok)
	}
}

func TestManager_ResetAllClearsBooksAndDirty(t *testing.T) {
	m := NewManager()
	m.ApplyIncremental(sbe.IncrementalEntry{
		Price: 100, Quantity: 1, SecurityId: 1001, RptSeq: 5,
		EntryType: constants.EntryTypeBid, Action: constants.ActionNew, Level: 1, NumOrders: 1,
	})
	m.ApplyIncremental(sbe.IncrementalEntry{
		Price: 200, Quantity: 2, SecurityId: 1002, RptSeq: 8,
		EntryType: constants.EntryTypeOffer, Action: constants.ActionNew, Level: 1, NumOrders: 1,
	})

	m.ResetAll()

	if m.DirtyCount() != 0 {
		t.Errorf("dirty count = %d, want 0", m.DirtyCount())
	}
	for _, id := range []uint32{1001, 1002} {
		b := m.GetBook(id)
		if b.BidCount() != 0 || b.AskCount() != 0 {
			t.Errorf("book %d not empty after reset", id)
		}
		if b.LastRptSeq() != 0 {
			t.Errorf("book %d rpt_seq = %d after reset", id, b.LastRptSeq())
		}
	}
}
