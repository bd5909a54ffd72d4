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

// Package simulator generates a synthetic exchange feed for the test
// universe: random walk books published as incremental overlays on one
// multicast group and periodic full snapshots on another. Optional
// rpt_seq gap injection exercises the handler's recovery path.
package simulator

import (
	"log"
	"math/rand"
	"time"

	"cme-md-go/constants"
	"cme-md-go/feedhandler"
	"cme-md-go/sbe"
)

const simDepth = 5

// simLevel is one synthetic ladder slot.
type simLevel struct {
	price  int64
	qty    int32
	orders uint8
}

// Config controls the synthetic feed.
type Config struct {
	IncrementalGroup string
	IncrementalPort  int
	SnapshotGroup    string
	SnapshotPort     int

	// TTL applies to both publishing sockets; 1 keeps the synthetic feed
	// link-local.
	TTL int

	UpdatesPerSecond   int
	SnapshotIntervalMs int

	// SimulateGaps skips a rpt_seq on the book being updated whenever the
	// incremental packet sequence is a multiple of GapFrequency, to force
	// the handler into snapshot recovery.
	SimulateGaps bool
	GapFrequency int

	// Seed pins the random walk for reproducible runs; 0 seeds from the
	// clock.
	Seed int64
}

// DefaultConfig returns the standard groups at 100 updates/s with 1 s
// snapshots.
func DefaultConfig() Config {
	return Config{
		IncrementalGroup:   constants.IncrementalGroup,
		IncrementalPort:    constants.IncrementalPort,
		SnapshotGroup:      constants.SnapshotGroup,
		SnapshotPort:       constants.SnapshotPort,
		TTL:                1,
		UpdatesPerSecond:   100,
		SnapshotIntervalMs: 1000,
		GapFrequency:       100,
	}
}

// simBook is the random-walk state for one security.
type simBook struct {
	securityId uint32
	symbol     string

	bids [simDepth]simLevel
	asks [simDepth]simLevel

	midPrice int64
	tickSize int64
	rptSeq   uint32
}

func (b *simBook) initialize(securityId uint32, symbol string, mid, tick int64) {
	b.securityId = securityId
	b.symbol = symbol
	b.midPrice = mid
	b.tickSize = tick
	b.reprice()
	for i := 0; i < simDepth; i++ {
		qty := int32(50 + (simDepth-1-i)*25) // more size at the top of book
		orders := uint8(5 + (simDepth-1-i)*2)
		b.bids[i].qty = qty
		b.bids[i].orders = orders
		b.asks[i].qty = qty
		b.asks[i].orders = orders
	}
}

func (b *simBook) reprice() {
	for i := 0; i < simDepth; i++ {
		b.bids[i].price = b.midPrice - int64(i+1)*b.tickSize
		b.asks[i].price = b.midPrice + int64(i+1)*b.tickSize
	}
}

// randomUpdate perturbs one level and occasionally walks the mid price.
func (b *simBook) randomUpdate(rng *rand.Rand) {
	isBid := rng.Intn(2) == 0
	level := rng.Intn(simDepth)

	side := &b.asks
	if isBid {
		side = &b.bids
	}

	newQty := side[level].qty + int32(rng.Intn(51)-20)
	if newQty < 10 {
		newQty = 10
	}
	side[level].qty = newQty

	if move := rng.Intn(3) - 1; move != 0 && level == 0 {
		b.midPrice += int64(move) * b.tickSize
		b.reprice()
	}

	b.rptSeq++
}

// Simulator drives the synthetic feed.
type Simulator struct {
	cfg Config

	incremental *feedhandler.Sender
	snapshot    *feedhandler.Sender

	books [4]simBook

	incrPacketSeq uint32
	snapPacketSeq uint32

	rng *rand.Rand
	buf []byte
}

// New opens both senders and seeds the books.
func New(cfg Config) (*Simulator, error) {
	inc, err := feedhandler.NewSender(cfg.IncrementalGroup, cfg.IncrementalPort, cfg.TTL)
	if err != nil {
		return nil, err
	}
	snap, err := feedhandler.NewSender(cfg.SnapshotGroup, cfg.SnapshotPort, cfg.TTL)
	if err != nil {
		_ = inc.Close()
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	s := &Simulator{
		cfg:         cfg,
		incremental: inc,
		snapshot:    snap,
		rng:         rand.New(rand.NewSource(seed)),
		buf:         make([]byte, 0, 1500),
	}
	s.initializeBooks()
	return s, nil
}

func (s *Simulator) initializeBooks() {
	s.books[0].initialize(constants.SecurityIdESH26, "ESH26", 45000000000, 2500000)    // $4500.00, $0.25 tick
	s.books[1].initialize(constants.SecurityIdNQM26, "NQM26", 180000000000, 2500000)   // $18000.00, $0.25 tick
	s.books[2].initialize(constants.SecurityIdCLK26, "CLK26", 750000000, 10000000)     // $75.00, $1.00 tick
	s.books[3].initialize(constants.SecurityIdGCZ26, "GCZ26", 20000000000, 1000000)    // $2000.00, $0.10 tick
}

// Close releases both sockets.
func (s *Simulator) Close() {
	_ = s.incremental.Close()
	_ = s.snapshot.Close()
}

// Run publishes until stop closes.
func (s *Simulator) Run(stop <-chan struct{}) {
	log.Printf("CME simulator starting")
	log.Printf("  incremental %s:%d", s.cfg.IncrementalGroup, s.cfg.IncrementalPort)
	log.Printf("  snapshot    %s:%d", s.cfg.SnapshotGroup, s.cfg.SnapshotPort)
	defer s.Close()

	s.sendSecurityDefinitions()

	updateInterval := time.Second / time.Duration(s.cfg.UpdatesPerSecond)
	snapshotInterval := time.Duration(s.cfg.SnapshotIntervalMs) * time.Millisecond

	ticker := time.NewTicker(updateInterval)
	defer ticker.Stop()

	lastSnapshot := time.Now()
	lastStats := time.Now()
	var totalUpdates uint64

	for {
		select {
		case <-stop:
			log.Printf("CME simulator stopped")
			return
		case <-ticker.C:
		}

		s.sendIncrementalUpdate()
		totalUpdates++

		now := time.Now()
		if now.Sub(lastSnapshot) >= snapshotInterval {
			s.sendSnapshots()
			lastSnapshot = now
		}
		if now.Sub(lastStats) >= 10*time.Second {
			log.Printf("simulator: sent %d updates, incr_seq=%d, snap_seq=%d",
				totalUpdates, s.incrPacketSeq, s.snapPacketSeq)
			lastStats = now
		}
	}
}

func nowNs() uint64 { return uint64(time.Now().UnixNano()) }

func (s *Simulator) sendSecurityDefinitions() {
	for i := range s.books {
		b := &s.books[i]
		s.incrPacketSeq++
		s.buf = sbe.AppendPacketHeader(s.buf[:0], s.incrPacketSeq, nowNs())
		s.buf = sbe.AppendSecurityDefinition(s.buf, sbe.SecurityDefinition{
			SecurityId:        b.securityId,
			Symbol:            b.symbol,
			MinPriceIncrement: b.tickSize,
			DisplayFactor:     1,
			TradingStatus:     17, // Trading
		})
		if err := s.incremental.Send(s.buf); err != nil {
			log.Printf("send security definition: %v", err)
			continue
		}
		log.Printf("sent security definition for %s (id=%d)", b.symbol, b.securityId)
	}
}

// sendIncrementalUpdate walks one random book and overlays its top three
// levels on both sides, all entries sharing the book's rpt_seq exactly as
// the real feed batches them.
func (s *Simulator) sendIncrementalUpdate() {
	b := &s.books[s.rng.Intn(len(s.books))]
	b.randomUpdate(s.rng)

	if s.cfg.SimulateGaps && s.cfg.GapFrequency > 0 && s.incrPacketSeq%uint32(s.cfg.GapFrequency) == 0 {
		b.rptSeq++ // the skipped sequence is the gap
		log.Printf("simulated gap on %s at rpt_seq=%d", b.symbol, b.rptSeq)
	}

	entries := make([]sbe.IncrementalEntry, 0, 6)
	for i := 0; i < 3; i++ {
		entries = append(entries, sbe.IncrementalEntry{
			Price:      b.bids[i].price,
			Quantity:   b.bids[i].qty,
			SecurityId: b.securityId,
			RptSeq:     b.rptSeq,
			EntryType:  constants.EntryTypeBid,
			Action:     constants.ActionOverlay,
			Level:      uint8(i + 1),
			NumOrders:  b.bids[i].orders,
		})
		entries = append(entries, sbe.IncrementalEntry{
			Price:      b.asks[i].price,
			Quantity:   b.asks[i].qty,
			SecurityId: b.securityId,
			RptSeq:     b.rptSeq,
			EntryType:  constants.EntryTypeOffer,
			Action:     constants.ActionOverlay,
			Level:      uint8(i + 1),
			NumOrders:  b.asks[i].orders,
		})
	}

	t := nowNs()
	s.incrPacketSeq++
	s.buf = sbe.AppendPacketHeader(s.buf[:0], s.incrPacketSeq, t)
	s.buf = sbe.AppendIncremental(s.buf, t, entries)
	if err := s.incremental.Send(s.buf); err != nil {
		log.Printf("send incremental: %v", err)
	}
}

func (s *Simulator) sendSnapshots() {
	for i := range s.books {
		s.sendSnapshotPacket(&s.books[i])
	}
}

func (s *Simulator) sendSnapshotPacket(b *simBook) {
	entries := make([]sbe.SnapshotEntry, 0, 2*simDepth)
	for i := 0; i < simDepth; i++ {
		entries = append(entries, sbe.SnapshotEntry{
			Price:     b.bids[i].price,
			Quantity:  b.bids[i].qty,
			EntryType: constants.EntryTypeBid,
			Level:     uint8(i + 1),
			NumOrders: b.bids[i].orders,
		})
	}
	for i := 0; i < simDepth; i++ {
		entries = append(entries, sbe.SnapshotEntry{
			Price:     b.asks[i].price,
			Quantity:  b.asks[i].qty,
			EntryType: constants.EntryTypeOffer,
			Level:     uint8(i + 1),
			NumOrders: b.asks[i].orders,
		})
	}

	t := nowNs()
	s.snapPacketSeq++
	s.buf = sbe.AppendPacketHeader(s.buf[:0], s.snapPacketSeq, t)
	s.buf = sbe.AppendSnapshot(s.buf, s.incrPacketSeq, b.securityId, b.rptSeq, t, entries)
	if err := s.snapshot.Send(s.buf); err != nil {
		log.Printf("send snapshot: %v", err)
	}
}
