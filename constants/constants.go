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

// Package constants defines the wire-level constants shared by the feed
// handler, the simulator, and the receiver: multicast defaults, SBE
// template identifiers, entry/action codes, and the static security
// catalog for the test universe.
package constants

// --- Multicast defaults ---
const (
	IncrementalGroup = "239.2.1.1"
	IncrementalPort  = 40001
	SnapshotGroup    = "239.2.1.2"
	SnapshotPort     = 40002
	OutputGroup      = "239.2.1.3"
	OutputPort       = 40003
)

// --- Input SBE template IDs (incremental + snapshot channels) ---
const (
	TemplateChannelReset       uint16 = 4
	TemplateHeartbeat          uint16 = 12
	TemplateSecurityDefinition uint16 = 27
	TemplateIncrementalRefresh uint16 = 32
	TemplateSnapshotRefresh    uint16 = 38
)

// Input schema identity, carried in every SBE message header.
const (
	InputSchemaID      uint16 = 1
	InputSchemaVersion uint16 = 9
)

// --- MD Entry Types ---
// Numeric bid/offer codes coexist with the implied 'E'/'F' character codes
// in the same 8-bit field; both map onto the same ladder side.
const (
	EntryTypeBid          uint8 = 0
	EntryTypeOffer        uint8 = 1
	EntryTypeTrade        uint8 = 2
	EntryTypeImpliedBid   uint8 = 'E'
	EntryTypeImpliedOffer uint8 = 'F'
)

// --- MD Update Actions ---
const (
	ActionNew        uint8 = 0
	ActionChange     uint8 = 1
	ActionDelete     uint8 = 2
	ActionDeleteThru uint8 = 3
	ActionDeleteFrom uint8 = 4
	ActionOverlay    uint8 = 5
)

// MaxDepth caps both ladders; wire price levels are 1-based [1, MaxDepth].
const MaxDepth = 10

// --- Timing defaults ---
const (
	DefaultConflationIntervalMs = 100
	DefaultRecoveryTimeoutMs    = 5000
	StatsIntervalSec            = 10
)

// --- Static security catalog (CME futures test universe) ---
const (
	SecurityIdESH26 uint32 = 1001 // E-mini S&P 500 Mar 2026
	SecurityIdNQM26 uint32 = 1002 // E-mini NASDAQ Jun 2026
	SecurityIdCLK26 uint32 = 1003 // Crude Oil May 2026
	SecurityIdGCZ26 uint32 = 1004 // Gold Dec 2026
)

// SymbolName maps a security id to its short ASCII symbol. Dynamic
// security definitions received on the feed take precedence; this covers
// the fixed test universe before definitions arrive.
func SymbolName(securityId uint32) string {
	switch securityId {
	case SecurityIdESH26:
		return "ESH26"
	case SecurityIdNQM26:
		return "NQM26"
	case SecurityIdCLK26:
		return "CLK26"
	case SecurityIdGCZ26:
		return "GCZ26"
	default:
		return "UNKNOWN"
	}
}

// SecurityIdFromSymbol is the reverse lookup; returns 0 for unknown symbols.
func SecurityIdFromSymbol(symbol string) uint32 {
	switch symbol {
	case "ESH26":
		return SecurityIdESH26
	case "NQM26":
		return SecurityIdNQM26
	case "CLK26":
		return SecurityIdCLK26
	case "GCZ26":
		return SecurityIdGCZ26
	default:
		return 0
	}
}

// AllSecurityIds lists the static test universe in catalog order.
func AllSecurityIds() []uint32 {
	return []uint32{SecurityIdESH26, SecurityIdNQM26, SecurityIdCLK26, SecurityIdGCZ26}
}
