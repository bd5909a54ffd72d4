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

import "log"

// FeedStats are the data-plane counters, owned and mutated only by the
// dispatch loop. Recovery counters live in RecoveryManager and are merged
// in at print time.
type FeedStats struct {
	MessagesReceived uint64
	BytesReceived    uint64
	MessagesSent     uint64
	BytesSent        uint64
	AddOrders        uint64
	DeleteOrders     uint64
	Trades           uint64
	Errors           uint64
}

// print emits the 10-second stats block with the current recovery picture.
func (s *FeedStats) print(rec RecoveryStats, recovering []string) {
	log.Println("=== Feed Handler Stats ===")
	log.Printf("Messages received: %d (%d bytes)", s.MessagesReceived, s.BytesReceived)
	log.Printf("Messages sent: %d (%d bytes)", s.MessagesSent, s.BytesSent)
	log.Printf("Add orders: %d | Delete orders: %d | Trades: %d", s.AddOrders, s.DeleteOrders, s.Trades)
	log.Printf("Errors: %d | Dropped: %d", s.Errors, rec.MessagesDropped)
	log.Printf("Gaps detected: %d | Recoveries completed: %d", rec.GapsDetected, rec.RecoveriesCompleted)
	if len(recovering) > 0 {
		log.Printf("Securities in recovery: %v", recovering)
	}
}
