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

// Package receiver implements the decoder/dumper for the published L2
// feed: it joins the output multicast group, decodes snapshots and
// heartbeats, keeps the latest book per symbol, and optionally captures
// everything to SQLite.
package receiver

import (
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"cme-md-go/constants"
	"cme-md-go/database"
	"cme-md-go/feedhandler"
	"cme-md-go/sbe"
)

// Config controls the receiver.
type Config struct {
	Group     string
	Port      int
	Interface string

	// CapturePath enables SQLite capture when non-empty.
	CapturePath string

	// Stream prints every decoded snapshot as a one-line update.
	Stream bool
}

// DefaultConfig subscribes to the standard output group.
func DefaultConfig() Config {
	return Config{
		Group: constants.OutputGroup,
		Port:  constants.OutputPort,
	}
}

// symbolStats tracks per-symbol activity for the status display.
type symbolStats struct {
	Updates  uint64
	LastSeq  uint64
	LastTsNs uint64
}

// Store holds the latest decoded snapshot per symbol.
//
// Concurrency model: single writer (the decode loop), multiple readers
// (the REPL), sync.RWMutex.
type Store struct {
	mu        sync.RWMutex
	books     map[string]sbe.L2Snapshot
	stats     map[string]*symbolStats
	heartbeat uint64 // last heartbeat sequence
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		books: make(map[string]sbe.L2Snapshot),
		stats: make(map[string]*symbolStats),
	}
}

func (st *Store) update(snap sbe.L2Snapshot) {
	st.mu.Lock()
	defer st.mu.Unlock()
	sym := snap.SymbolString()
	st.books[sym] = snap
	s, ok := st.stats[sym]
	if !ok {
		s = &symbolStats{}
		st.stats[sym] = s
	}
	s.Updates++
	s.LastSeq = snap.SequenceNumber
	s.LastTsNs = snap.Timestamp
}

// Book returns the latest snapshot for a symbol.
func (st *Store) Book(symbol string) (sbe.L2Snapshot, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	snap, ok := st.books[symbol]
	return snap, ok
}

// Symbols lists known symbols sorted.
func (st *Store) Symbols() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	syms := make([]string, 0, len(st.books))
	for s := range st.books {
		syms = append(syms, s)
	}
	sort.Strings(syms)
	return syms
}

// LastHeartbeat returns the most recent heartbeat sequence seen on the
// feed, 0 if none.
func (st *Store) LastHeartbeat() uint64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.heartbeat
}

// Stats returns a copy of the per-symbol counters.
func (st *Store) Stats() map[string]symbolStats {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make(map[string]symbolStats, len(st.stats))
	for sym, s := range st.stats {
		out[sym] = *s
	}
	return out
}

// Receiver is the decode loop plus its store.
type Receiver struct {
	cfg   Config
	sock  *feedhandler.Receiver
	store *Store
	db    *database.CaptureDb

	capturing atomic.Bool
	decoded   atomic.Uint64
	errors    atomic.Uint64
}

// New joins the output group and, when configured, opens the capture
// database.
func New(cfg Config) (*Receiver, error) {
	sock, err := feedhandler.NewReceiver("output", cfg.Group, cfg.Port, cfg.Interface)
	if err != nil {
		return nil, err
	}

	r := &Receiver{cfg: cfg, sock: sock, store: NewStore()}
	if cfg.CapturePath != "" {
		db, err := database.NewCaptureDb(cfg.CapturePath)
		if err != nil {
			_ = sock.Close()
			return nil, err
		}
		r.db = db
		r.capturing.Store(true)
	}
	return r, nil
}

// Store exposes the latest-book store for the REPL.
func (r *Receiver) Store() *Store { return r.store }

// Capture returns the capture database handle, nil when disabled.
func (r *Receiver) Capture() *database.CaptureDb { return r.db }

// SetCapturing toggles capture without closing the database.
func (r *Receiver) SetCapturing(on bool) {
	if r.db != nil {
		r.capturing.Store(on)
	}
}

// Capturing reports whether decoded messages are being persisted.
func (r *Receiver) Capturing() bool { return r.capturing.Load() }

// Decoded returns the total decoded message count.
func (r *Receiver) Decoded() uint64 { return r.decoded.Load() }

// Run decodes datagrams until the socket closes.
func (r *Receiver) Run() {
	log.Printf("receiver listening on %s:%d", r.cfg.Group, r.cfg.Port)
	go r.sock.Run()

	for dgram := range r.sock.Datagrams() {
		r.handleDatagram(dgram)
	}
}

// Close releases the socket and the capture database.
func (r *Receiver) Close() {
	_ = r.sock.Close()
	if r.db != nil {
		_ = r.db.Close()
	}
}

func (r *Receiver) handleDatagram(dgram []byte) {
	template, ok := sbe.OutTemplateId(dgram)
	if !ok {
		r.errors.Add(1)
		return
	}

	switch template {
	case sbe.TemplateOutL2Snapshot:
		snap, err := sbe.DecodeL2Snapshot(dgram)
		if err != nil {
			r.errors.Add(1)
			return
		}
		r.decoded.Add(1)
		r.store.update(snap)
		if r.cfg.Stream {
			StreamLine(&snap)
		}
		if r.capturing.Load() {
			if err := r.db.StoreSnapshot(&snap); err != nil {
				log.Printf("capture snapshot: %v", err)
			}
		}

	case sbe.TemplateOutHeartbeat:
		ts, seq, err := sbe.DecodeOutHeartbeat(dgram)
		if err != nil {
			r.errors.Add(1)
			return
		}
		r.decoded.Add(1)
		r.store.mu.Lock()
		r.store.heartbeat = seq
		r.store.mu.Unlock()
		if r.capturing.Load() {
			if err := r.db.StoreHeartbeat(ts, seq); err != nil {
				log.Printf("capture heartbeat: %v", err)
			}
		}

	default:
		r.errors.Add(1)
	}
}
