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

/*
HOT PATH - Incremental Datagram Processing Flow

Every datagram on the incremental channel runs this sequence; the loop in
Run is the single mutator of books, recovery state, dirty set, and
counters.

	┌──────────────────────────────────────────────────────────────┐
	│ [1] Receiver.Run - multicast.go                   READER      │
	│     • Copies the datagram out of the staging buffer           │
	│     • No decoding, no shared state                            │
	└──────────────────────────────────────────────────────────────┘
	                             │ channel
	                             ▼
	┌──────────────────────────────────────────────────────────────┐
	│ [2] processIncrementalDatagram - handler.go       DISPATCH    │
	│     • Packet header decode + packet-seq observability         │
	│     • Walks SBE messages via sbe.PacketIterator               │
	└──────────────────────────────────────────────────────────────┘
	                             │
	                             ▼
	┌──────────────────────────────────────────────────────────────┐
	│ [3] handleIncrementalRefresh                      GATE        │
	│     • RecoveryManager.OnIncremental per entry                 │
	│     • Accepted entries flow into book.Manager                 │
	└──────────────────────────────────────────────────────────────┘
	                             │
	                             ▼
	┌──────────────────────────────────────────────────────────────┐
	│ [4] publishConflated (timer-driven)               PUBLISH     │
	│     • Drains dirty set, encodes one snapshot per Normal       │
	│       instrument, re-queues skipped ones                      │
	└──────────────────────────────────────────────────────────────┘
*/

package feedhandler

import (
	"errors"
	"log"
	"time"

	"cme-md-go/book"
	"cme-md-go/constants"
	"cme-md-go/sbe"
)

// datagramSender abstracts the output socket so the publish path is
// testable without multicast.
type datagramSender interface {
	Send([]byte) error
}

// Handler is the feed handler: two input channels in, one conflated
// normalized snapshot feed out.
type Handler struct {
	cfg Config

	incremental *Receiver
	snapshot    *Receiver
	output      datagramSender
	outputConn  *Sender // concrete handle for Close

	books    *book.Manager
	recovery *RecoveryManager
	stats    FeedStats

	// Packet-sequence observability for the incremental channel; real
	// gap handling is per-security rpt_seq.
	lastPacketSeq uint32
	firstPacket   bool

	outputSeq uint64
	sendBuf   []byte

	start time.Time
}

// NewHandler opens the three sockets. Any socket failure here is fatal to
// the caller; there is no partial start.
func NewHandler(cfg Config) (*Handler, error) {
	inc, err := NewReceiver("incremental", cfg.Incremental.Group, cfg.Incremental.Port, cfg.Interface)
	if err != nil {
		return nil, err
	}
	snap, err := NewReceiver("snapshot", cfg.Snapshot.Group, cfg.Snapshot.Port, cfg.Interface)
	if err != nil {
		_ = inc.Close()
		return nil, err
	}
	out, err := NewSender(cfg.Output.Group, cfg.Output.Port, cfg.Output.TTL)
	if err != nil {
		_ = inc.Close()
		_ = snap.Close()
		return nil, err
	}

	h := newHandler(cfg)
	h.incremental = inc
	h.snapshot = snap
	h.output = out
	h.outputConn = out
	return h, nil
}

// newHandler builds the socket-free core, shared by NewHandler and tests.
func newHandler(cfg Config) *Handler {
	return &Handler{
		cfg:         cfg,
		books:       book.NewManager(),
		recovery:    NewRecoveryManager(),
		firstPacket: true,
		sendBuf:     make([]byte, 1500),
		start:       time.Now(),
	}
}

// Stats returns a copy of the data-plane counters.
func (h *Handler) Stats() FeedStats { return h.stats }

// RecoveryStats returns a copy of the recovery counters.
func (h *Handler) RecoveryStats() RecoveryStats { return h.recovery.Stats() }

// Close releases all sockets.
func (h *Handler) Close() {
	if h.incremental != nil {
		_ = h.incremental.Close()
	}
	if h.snapshot != nil {
		_ = h.snapshot.Close()
	}
	if h.outputConn != nil {
		_ = h.outputConn.Close()
	}
}

// monoNs is the monotonic clock used for recovery timeouts.
func (h *Handler) monoNs() uint64 {
	return uint64(time.Since(h.start).Nanoseconds()) + 1
}

// Run drives the dispatch loop until stop closes. The loop is the only
// goroutine that touches handler state; the two receivers just copy
// datagrams into their channels.
func (h *Handler) Run(stop <-chan struct{}) {
	log.Printf("CME feed handler starting")
	log.Printf("  incremental %s:%d", h.cfg.Incremental.Group, h.cfg.Incremental.Port)
	log.Printf("  snapshot    %s:%d", h.cfg.Snapshot.Group, h.cfg.Snapshot.Port)
	log.Printf("  output      %s:%d", h.cfg.Output.Group, h.cfg.Output.Port)

	go h.incremental.Run()
	go h.snapshot.Run()
	defer h.Close()

	conflation := time.Duration(h.cfg.ConflationIntervalMs) * time.Millisecond
	statsEvery := constants.StatsIntervalSec * time.Second
	timeoutNs := uint64(h.cfg.RecoveryTimeoutMs) * 1e6

	nextConflation := time.Now().Add(conflation)
	nextStats := time.Now().Add(statsEvery)

	timer := time.NewTimer(conflation)
	defer timer.Stop()

	for {
		// Sleep no longer than the next conflation tick, never less
		// than a millisecond.
		wait := time.Until(nextConflation)
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-stop:
			log.Printf("CME feed handler stopped")
			return

		case dgram, ok := <-h.incremental.Datagrams():
			if !ok {
				log.Printf("incremental socket closed")
				return
			}
			h.stats.MessagesReceived++
			h.stats.BytesReceived += uint64(len(dgram))
			h.processIncrementalDatagram(dgram)

		case dgram, ok := <-h.snapshot.Datagrams():
			if !ok {
				log.Printf("snapshot socket closed")
				return
			}
			h.stats.MessagesReceived++
			h.stats.BytesReceived += uint64(len(dgram))
			// Snapshot datagrams are not even parsed unless some
			// security is waiting for one.
			if h.recovery.NeedsRecovery() {
				h.processSnapshotDatagram(dgram)
			}

		case <-timer.C:
		}

		now := time.Now()
		if !now.Before(nextConflation) {
			h.publishConflated(uint64(now.UnixNano()))
			nextConflation = nextConflation.Add(conflation)
			// A long stall must not queue a burst of back-to-back ticks.
			if nextConflation.Before(now) {
				nextConflation = now.Add(conflation)
			}
		}
		if !now.Before(nextStats) {
			h.printStats()
			nextStats = now.Add(statsEvery)
		}
		h.sweepRecoveryTimeouts(timeoutNs)
	}
}

// processIncrementalDatagram walks one datagram from the incremental
// channel and dispatches every recognised message.
func (h *Handler) processIncrementalDatagram(dgram []byte) {
	pkt, it, err := sbe.NewPacketIterator(dgram)
	if err != nil {
		h.stats.Errors++
		return
	}

	if !h.firstPacket && pkt.PacketSeq != h.lastPacketSeq+1 {
		// Observability only; per-security rpt_seq drives recovery.
		log.Printf("packet gap on incremental channel: expected %d, got %d",
			h.lastPacketSeq+1, pkt.PacketSeq)
	}
	h.firstPacket = false
	h.lastPacketSeq = pkt.PacketSeq

	for it.Next() {
		switch it.TemplateId() {
		case constants.TemplateSecurityDefinition:
			if def, ok := it.SecurityDef(); ok {
				h.handleSecurityDefinition(def)
			}
		case constants.TemplateIncrementalRefresh:
			if m, ok := it.Incremental(); ok {
				h.handleIncrementalRefresh(m)
			}
		case constants.TemplateChannelReset:
			if _, ok := it.ChannelReset(); ok {
				h.handleChannelReset()
			}
		case constants.TemplateHeartbeat:
			// Liveness only; nothing to do.
		}
	}
	if errors.Is(it.Err(), sbe.ErrTruncated) {
		h.stats.Errors++
	}
}

// processSnapshotDatagram walks one datagram from the snapshot channel;
// only full-refresh messages are consumed there.
func (h *Handler) processSnapshotDatagram(dgram []byte) {
	_, it, err := sbe.NewPacketIterator(dgram)
	if err != nil {
		h.stats.Errors++
		return
	}
	for it.Next() {
		if it.TemplateId() != constants.TemplateSnapshotRefresh {
			continue
		}
		if m, ok := it.Snapshot(); ok {
			h.handleSnapshotRefresh(m)
		}
	}
	if errors.Is(it.Err(), sbe.ErrTruncated) {
		h.stats.Errors++
	}
}

func (h *Handler) handleSecurityDefinition(def sbe.SecurityDefinition) {
	log.Printf("security definition: %s (id=%d)", def.Symbol, def.SecurityId)
	h.books.GetBook(def.SecurityId)
	h.books.SetMeta(def.SecurityId, book.SecurityMeta{
		Symbol:            def.Symbol,
		MinPriceIncrement: def.MinPriceIncrement,
		DisplayFactor:     def.DisplayFactor,
		TradingStatus:     def.TradingStatus,
	})
	h.recovery.InitSecurity(def.SecurityId, 1)
}

// handleIncrementalRefresh gates every entry through the recovery FSM and
// applies the survivors in wire order.
func (h *Handler) handleIncrementalRefresh(m sbe.IncrementalRefresh) {
	for i := 0; i < m.NumEntries; i++ {
		e := m.Entry(i)
		if !h.recovery.OnIncremental(e.SecurityId, e.RptSeq) {
			continue
		}
		h.books.ApplyIncremental(e)

		switch e.Action {
		case constants.ActionNew:
			h.stats.AddOrders++
		case constants.ActionDelete:
			h.stats.DeleteOrders++
		}
		if e.EntryType == constants.EntryTypeTrade {
			h.stats.Trades++
		}
	}
}

// handleSnapshotRefresh applies a full refresh when the FSM wants it:
// wholesale book replace, sequence pinned, recovery completed, dirty.
func (h *Handler) handleSnapshotRefresh(m sbe.SnapshotRefresh) {
	if !h.recovery.OnSnapshot(m.SecurityId, m.RptSeq, m.LastIncrSeqProcessed) {
		return
	}
	log.Printf("applying snapshot for %s at rpt_seq=%d", h.books.Symbol(m.SecurityId), m.RptSeq)
	h.books.ApplySnapshot(m)
	h.recovery.CompleteRecovery(m.SecurityId, m.RptSeq)
	log.Printf("recovery complete for %s", h.books.Symbol(m.SecurityId))
}

// handleChannelReset discards all book state and re-arms every sequence
// expectation at 1.
func (h *Handler) handleChannelReset() {
	log.Printf("channel reset received, clearing all state")
	h.books.ResetAll()
	h.recovery.ResetAll()
}

// publishConflated drains the dirty set and emits one snapshot per
// Normal instrument. Skipped (recovering) instruments go straight back
// into the dirty set so their first post-recovery snapshot carries the
// accumulated changes. A tick that publishes nothing sends an output
// heartbeat instead.
func (h *Handler) publishConflated(nowNs uint64) {
	published := 0
	for _, id := range h.books.DrainDirty() {
		if h.recovery.State(id) != StateNormal {
			h.books.MarkDirty(id)
			continue
		}
		b := h.books.GetBook(id)
		snap := b.Snapshot(h.books.Symbol(id))
		h.outputSeq++
		snap.SequenceNumber = h.outputSeq
		snap.Timestamp = nowNs

		n, err := sbe.EncodeL2Snapshot(h.sendBuf, &snap)
		if err != nil {
			h.stats.Errors++
			continue
		}
		if err := h.output.Send(h.sendBuf[:n]); err != nil {
			h.stats.Errors++
			continue
		}
		h.stats.MessagesSent++
		h.stats.BytesSent += uint64(n)
		published++
	}

	if published == 0 {
		h.outputSeq++
		if n, err := sbe.EncodeOutHeartbeat(h.sendBuf, nowNs, h.outputSeq); err == nil {
			if err := h.output.Send(h.sendBuf[:n]); err == nil {
				h.stats.MessagesSent++
				h.stats.BytesSent += uint64(n)
			} else {
				h.stats.Errors++
			}
		}
	}
}

// sweepRecoveryTimeouts reports instruments stuck in recovery longer than
// the configured timeout. They stay where they are and wait for the next
// snapshot.
func (h *Handler) sweepRecoveryTimeouts(timeoutNs uint64) {
	for _, id := range h.recovery.CheckTimeouts(h.monoNs(), timeoutNs) {
		log.Printf("recovery timeout for %s - will retry with next snapshot", h.books.Symbol(id))
	}
}

func (h *Handler) printStats() {
	recovering := h.recovery.RecoveringSecurities()
	symbols := make([]string, 0, len(recovering))
	for _, id := range recovering {
		symbols = append(symbols, h.books.Symbol(id))
	}
	h.stats.print(h.recovery.Stats(), symbols)
}
