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
	"sort"

	"cme-md-go/constants"
	"cme-md-go/sbe"
)

// SecurityMeta is the registry metadata carried by a security definition.
type SecurityMeta struct {
	Symbol            string
	MinPriceIncrement int64
	DisplayFactor     uint32
	TradingStatus     uint8
}

// Manager owns the per-security books, their definition metadata, and the
// dirty set drained by conflation. Like the books themselves it belongs
// to the dispatch loop; it is not safe for concurrent use.
type Manager struct {
	books map[uint32]*Book
	meta  map[uint32]SecurityMeta
	dirty map[uint32]struct{}
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{
		books: make(map[uint32]*Book),
		meta:  make(map[uint32]SecurityMeta),
		dirty: make(map[uint32]struct{}),
	}
}

// GetBook returns the book for the security, creating it lazily on first
// sighting.
func (m *Manager) GetBook(securityId uint32) *Book {
	b, ok := m.books[securityId]
	if !ok {
		b = New(securityId)
		m.books[securityId] = b
	}
	return b
}

// HasBook reports whether the security has been sighted.
func (m *Manager) HasBook(securityId uint32) bool {
	_, ok := m.books[securityId]
	return ok
}

// SetMeta records security-definition metadata.
func (m *Manager) SetMeta(securityId uint32, meta SecurityMeta) {
	m.meta[securityId] = meta
}

// Symbol resolves a security id to its symbol: definition metadata first,
// then the static catalog.
func (m *Manager) Symbol(securityId uint32) string {
	if meta, ok := m.meta[securityId]; ok && meta.Symbol != "" {
		return meta.Symbol
	}
	return constants.SymbolName(securityId)
}

// Meta returns the definition metadata, if any was received.
func (m *Manager) Meta(securityId uint32) (SecurityMeta, bool) {
	meta, ok := m.meta[securityId]
	return meta, ok
}

// ApplyIncremental routes one accepted entry into its book and marks the
// security dirty.
// HOT PATH: two map lookups plus the ladder update.
func (m *Manager) ApplyIncremental(e sbe.IncrementalEntry) {
	m.GetBook(e.SecurityId).Apply(e)
	m.MarkDirty(e.SecurityId)
}

// ApplySnapshot replaces the security's book wholesale, pins its sequence
// to the snapshot's rpt_seq, and marks it dirty.
func (m *Manager) ApplySnapshot(snap sbe.SnapshotRefresh) {
	b := m.GetBook(snap.SecurityId)
	b.ApplySnapshot(snap)
	b.SetLastRptSeq(snap.RptSeq)
	m.MarkDirty(snap.SecurityId)
}

// MarkDirty adds the security to the conflation set.
func (m *Manager) MarkDirty(securityId uint32) {
	m.dirty[securityId] = struct{}{}
}

// DrainDirty returns the dirty securities in ascending id order and
// atomically empties the set.
func (m *Manager) DrainDirty() []uint32 {
	if len(m.dirty) == 0 {
		return nil
	}
	ids := make([]uint32, 0, len(m.dirty))
	for id := range m.dirty {
		ids = append(ids, id)
	}
	m.dirty = make(map[uint32]struct{})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// DirtyCount reports the pending conflation set size.
func (m *Manager) DirtyCount() int { return len(m.dirty) }

// AllSecurityIds lists every sighted security in ascending order.
func (m *Manager) AllSecurityIds() []uint32 {
	ids := make([]uint32, 0, len(m.books))
	for id := range m.books {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ResetAll empties every ladder and the dirty set. Used on channel reset;
// metadata survives, sequence expectations are re-armed by the recovery
// manager.
func (m *Manager) ResetAll() {
	for _, b := range m.books {
		b.Reset()
	}
	m.dirty = make(map[uint32]struct{})
}
