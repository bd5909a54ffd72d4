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

package receiver

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"cme-md-go/sbe"
)

// wirePrice renders a 7-implied-decimal wire mantissa as a human price.
// Display only - the data plane never leaves integer arithmetic.
func wirePrice(p int64) decimal.Decimal {
	return decimal.New(p, -7)
}

// PrintBook renders the latest snapshot as a two-sided ladder.
func PrintBook(snap *sbe.L2Snapshot) {
	fmt.Printf("%s  seq=%d  %s\n", snap.SymbolString(), snap.SequenceNumber,
		time.Unix(0, int64(snap.Timestamp)).UTC().Format("15:04:05.000000"))
	fmt.Printf("  last trade %s x %d, volume %d\n",
		wirePrice(snap.LastTradePrice).StringFixed(2), snap.LastTradeQty, snap.TotalVolume)

	fmt.Printf("  %-5s %12s %8s %6s │ %-5s %12s %8s %6s\n",
		"LVL", "BID", "QTY", "ORD", "LVL", "ASK", "QTY", "ORD")

	rows := len(snap.Bids)
	if len(snap.Asks) > rows {
		rows = len(snap.Asks)
	}
	for i := 0; i < rows; i++ {
		bid, ask := "", ""
		if i < len(snap.Bids) {
			lv := snap.Bids[i]
			bid = fmt.Sprintf("  %-5d %12s %8d %6d", lv.Level, wirePrice(lv.Price).StringFixed(2), lv.Quantity, lv.NumOrders)
		} else {
			bid = fmt.Sprintf("  %-5s %12s %8s %6s", "", "", "", "")
		}
		if i < len(snap.Asks) {
			lv := snap.Asks[i]
			ask = fmt.Sprintf(" %-5d %12s %8d %6d", lv.Level, wirePrice(lv.Price).StringFixed(2), lv.Quantity, lv.NumOrders)
		}
		fmt.Printf("%s │%s\n", bid, ask)
	}
}

// StreamLine prints a single-line update for streaming mode.
func StreamLine(snap *sbe.L2Snapshot) {
	bestBid, bestAsk := "-", "-"
	if len(snap.Bids) > 0 {
		bestBid = wirePrice(snap.Bids[0].Price).StringFixed(2)
	}
	if len(snap.Asks) > 0 {
		bestAsk = wirePrice(snap.Asks[0].Price).StringFixed(2)
	}
	fmt.Printf("%s seq=%d bid %s / ask %s (%dx%d) vol=%d\n",
		snap.SymbolString(), snap.SequenceNumber, bestBid, bestAsk,
		snap.BidCount, snap.AskCount, snap.TotalVolume)
}
