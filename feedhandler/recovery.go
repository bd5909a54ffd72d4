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

package feedhandler

import "sort"

// RecoveryState is the per-security gap-recovery state.
type RecoveryState uint8

const (
	// StateNormal - processing incrementals in sequence.
	StateNormal RecoveryState = iota
	// StateGapDetected - a gap was seen, waiting for a snapshot.
	StateGapDetected
	// StateRecovering - a snapshot arrived and is being applied.
	StateRecovering
)

func (s RecoveryState) String() string {
	switch s {
	case StateNormal:
		return "Normal"
	case StateGapDetected:
		return "GapDetected"
	case StateRecovering:
		return "Recovering"
	default:
		return "Unknown"
	}
}

// securityRecovery tracks sequencing for one security.
type securityRecovery struct {
	state            RecoveryState
	expectedRptSeq   uint32 // next rpt_seq expected in Normal
	lastGoodRptSeq   uint32 // highest applied rpt_seq
	snapshotRptSeq   uint32 // rpt_seq of the snapshot being awaited/applied
	gapFirstSeenNs   uint64 // monotonic ns of the first timeout sweep after the gap; 0 until that sweep and when no gap is open
	recoveryAttempts uint32
}

// RecoveryStats are the counters the recovery manager owns.
type RecoveryStats struct {
	GapsDetected        uint64
	RecoveriesCompleted uint64
	MessagesDropped     uint64
}

// RecoveryManager runs the per-security recovery state machines. Each
// security's FSM is independent; one instrument's gap never blocks the
// others. Entries inside one incremental message share a single rpt_seq,
// so Normal must accept a repeated equal sequence without treating it as
// a gap and advance only on strictly greater sequences.
type RecoveryManager struct {
	states map[uint32]*securityRecovery
	stats  RecoveryStats

	// nonNormal counts securities with state != Normal so the global
	// recovery predicate stays O(1) on the receive path.
	nonNormal int
}

// NewRecoveryManager creates an empty manager.
func NewRecoveryManager() *RecoveryManager {
	return &RecoveryManager{states: make(map[uint32]*securityRecovery)}
}

func (rm *RecoveryManager) setState(s *securityRecovery, next RecoveryState) {
	if s.state == StateNormal && next != StateNormal {
		rm.nonNormal++
	} else if s.state != StateNormal && next == StateNormal {
		rm.nonNormal--
	}
	s.state = next
}

// InitSecurity arms a security at the given starting sequence in Normal.
func (rm *RecoveryManager) InitSecurity(securityId, initialSeq uint32) {
	s, ok := rm.states[securityId]
	if !ok {
		s = &securityRecovery{}
		rm.states[securityId] = s
	}
	rm.setState(s, StateNormal)
	s.expectedRptSeq = initialSeq
	if initialSeq > 0 {
		s.lastGoodRptSeq = initialSeq - 1
	} else {
		s.lastGoodRptSeq = 0
	}
	s.gapFirstSeenNs = 0
}

// OnIncremental decides whether an incremental entry with the given
// rpt_seq should be applied to the book.
// HOT PATH: one map lookup and a handful of compares per entry.
func (rm *RecoveryManager) OnIncremental(securityId, rptSeq uint32) bool {
	s, ok := rm.states[securityId]
	if !ok {
		// First sight of this security: accept and sync to its sequence.
		rm.InitSecurity(securityId, rptSeq+1)
		return true
	}

	switch s.state {
	case StateNormal:
		if rptSeq >= s.lastGoodRptSeq && rptSeq <= s.expectedRptSeq {
			// In order, or a repeat of the batch we just applied.
			if rptSeq > s.lastGoodRptSeq {
				s.lastGoodRptSeq = rptSeq
				s.expectedRptSeq = rptSeq + 1
			}
			return true
		}
		if rptSeq < s.lastGoodRptSeq {
			// Stale replay - discard.
			rm.stats.MessagesDropped++
			return false
		}
		// rptSeq > expected: gap. Wait for a snapshot.
		rm.setState(s, StateGapDetected)
		s.gapFirstSeenNs = 0 // armed by the next timeout sweep
		s.recoveryAttempts++
		rm.stats.GapsDetected++
		return false

	default: // GapDetected, Recovering
		rm.stats.MessagesDropped++
		return false
	}
}

// OnSnapshot decides whether a snapshot with the given rpt_seq should be
// applied. Snapshots in Normal are discarded: the book is already at or
// past the snapshot. A fresher snapshot while Recovering supersedes the
// one in flight.
func (rm *RecoveryManager) OnSnapshot(securityId, snapshotRptSeq, lastIncrSeq uint32) bool {
	_ = lastIncrSeq // carried on the wire; per-security rpt_seq is authoritative

	s, ok := rm.states[securityId]
	if !ok {
		// Unknown security: initialize straight from the snapshot.
		rm.InitSecurity(securityId, snapshotRptSeq+1)
		return true
	}

	switch s.state {
	case StateNormal:
		return false

	case StateGapDetected:
		rm.setState(s, StateRecovering)
		s.snapshotRptSeq = snapshotRptSeq
		return true

	default: // Recovering
		if snapshotRptSeq > s.snapshotRptSeq {
			s.snapshotRptSeq = snapshotRptSeq
			return true
		}
		return false
	}
}

// CompleteRecovery returns a security to Normal after its book has been
// replaced by a snapshot at rptSeq.
func (rm *RecoveryManager) CompleteRecovery(securityId, rptSeq uint32) {
	s, ok := rm.states[securityId]
	if !ok {
		return
	}
	rm.setState(s, StateNormal)
	s.expectedRptSeq = rptSeq + 1
	s.lastGoodRptSeq = rptSeq
	s.gapFirstSeenNs = 0
	rm.stats.RecoveriesCompleted++
}

// ResetAll re-arms every security to Normal expecting rpt_seq 1. Used on
// channel reset.
func (rm *RecoveryManager) ResetAll() {
	for id := range rm.states {
		rm.InitSecurity(id, 1)
	}
}

// NeedsRecovery is the global predicate consulted before parsing a
// snapshot datagram: true when any security is not Normal.
func (rm *RecoveryManager) NeedsRecovery() bool { return rm.nonNormal > 0 }

// State returns the security's state; unknown securities report Normal.
func (rm *RecoveryManager) State(securityId uint32) RecoveryState {
	if s, ok := rm.states[securityId]; ok {
		return s.state
	}
	return StateNormal
}

// ExpectedRptSeq returns the next expected sequence; unknown securities
// report 1.
func (rm *RecoveryManager) ExpectedRptSeq(securityId uint32) uint32 {
	if s, ok := rm.states[securityId]; ok {
		return s.expectedRptSeq
	}
	return 1
}

// LastGoodRptSeq returns the highest applied sequence.
func (rm *RecoveryManager) LastGoodRptSeq(securityId uint32) uint32 {
	if s, ok := rm.states[securityId]; ok {
		return s.lastGoodRptSeq
	}
	return 0
}

// RecoveringSecurities lists securities not in Normal, ascending.
func (rm *RecoveryManager) RecoveringSecurities() []uint32 {
	var ids []uint32
	for id, s := range rm.states {
		if s.state != StateNormal {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CheckTimeouts sweeps securities stuck outside Normal. A security whose
// gap has been open longer than timeoutNs is reported, its attempt
// counter bumped, and its clock re-armed; it stays in its current state
// and simply waits for the next snapshot.
func (rm *RecoveryManager) CheckTimeouts(nowNs, timeoutNs uint64) []uint32 {
	var timedOut []uint32
	for id, s := range rm.states {
		if s.state == StateNormal {
			continue
		}
		if s.gapFirstSeenNs == 0 {
			s.gapFirstSeenNs = nowNs
		} else if nowNs-s.gapFirstSeenNs > timeoutNs {
			timedOut = append(timedOut, id)
			s.recoveryAttempts++
			s.gapFirstSeenNs = nowNs
		}
	}
	sort.Slice(timedOut, func(i, j int) bool { return timedOut[i] < timedOut[j] })
	return timedOut
}

// RecoveryAttempts returns the per-security attempt counter.
func (rm *RecoveryManager) RecoveryAttempts(securityId uint32) uint32 {
	if s, ok := rm.states[securityId]; ok {
		return s.recoveryAttempts
	}
	return 0
}

// Stats returns a copy of the recovery counters.
func (rm *RecoveryManager) Stats() RecoveryStats { return rm.stats }
