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

// Package database provides SQLite capture storage for the receiver tool.
// Decoded snapshots from the published feed are written for offline
// inspection; the feed handler itself persists nothing.
package database

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"

	"cme-md-go/sbe"
)

const schemaDDL = `
CREATE TABLE IF NOT EXISTS l2_snapshots (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol        TEXT    NOT NULL,
	seq           INTEGER NOT NULL,
	ts_ns         INTEGER NOT NULL,
	last_trade_px INTEGER NOT NULL,
	last_trade_qty INTEGER NOT NULL,
	total_volume  INTEGER NOT NULL,
	bid_count     INTEGER NOT NULL,
	ask_count     INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_symbol ON l2_snapshots(symbol, seq);

CREATE TABLE IF NOT EXISTS l2_levels (
	snapshot_id INTEGER NOT NULL REFERENCES l2_snapshots(id),
	side        TEXT    NOT NULL,
	level       INTEGER NOT NULL,
	price       INTEGER NOT NULL,
	quantity    INTEGER NOT NULL,
	num_orders  INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS heartbeats (
	ts_ns INTEGER NOT NULL,
	seq   INTEGER NOT NULL
);
`

const (
	insertSnapshotQuery = `INSERT INTO l2_snapshots
		(symbol, seq, ts_ns, last_trade_px, last_trade_qty, total_volume, bid_count, ask_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	insertLevelQuery     = `INSERT INTO l2_levels (snapshot_id, side, level, price, quantity, num_orders) VALUES (?, ?, ?, ?, ?, ?)`
	insertHeartbeatQuery = `INSERT INTO heartbeats (ts_ns, seq) VALUES (?, ?)`
)

// CaptureDb provides SQLite storage for decoded feed output with prepared
// statements. Prepared statements are initialized once and reused for all
// batch operations, avoiding SQL parsing overhead on each insert.
type CaptureDb struct {
	db *sql.DB

	stmtSnapshot  *sql.Stmt
	stmtLevel     *sql.Stmt
	stmtHeartbeat *sql.Stmt
}

// NewCaptureDb opens (and creates, if needed) the capture database.
func NewCaptureDb(dbPath string) (*CaptureDb, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	cdb := &CaptureDb{db: db}
	if _, err := db.Exec(schemaDDL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cdb.stmtSnapshot, err = db.Prepare(insertSnapshotQuery); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare snapshot statement: %w", err)
	}
	if cdb.stmtLevel, err = db.Prepare(insertLevelQuery); err != nil {
		_ = cdb.stmtSnapshot.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare level statement: %w", err)
	}
	if cdb.stmtHeartbeat, err = db.Prepare(insertHeartbeatQuery); err != nil {
		_ = cdb.stmtSnapshot.Close()
		_ = cdb.stmtLevel.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare heartbeat statement: %w", err)
	}

	log.Printf("SQLite capture database initialized at %s", dbPath)
	return cdb, nil
}

// Close releases the prepared statements and the database.
func (cdb *CaptureDb) Close() error {
	if cdb.stmtSnapshot != nil {
		_ = cdb.stmtSnapshot.Close()
	}
	if cdb.stmtLevel != nil {
		_ = cdb.stmtLevel.Close()
	}
	if cdb.stmtHeartbeat != nil {
		_ = cdb.stmtHeartbeat.Close()
	}
	return cdb.db.Close()
}

// StoreSnapshot persists one decoded snapshot and all its levels in a
// single transaction.
func (cdb *CaptureDb) StoreSnapshot(snap *sbe.L2Snapshot) error {
	tx, err := cdb.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Stmt(cdb.stmtSnapshot).Exec(
		snap.SymbolString(), snap.SequenceNumber, snap.Timestamp,
		snap.LastTradePrice, snap.LastTradeQty, snap.TotalVolume,
		snap.BidCount, snap.AskCount)
	if err != nil {
		return err
	}
	snapshotId, err := res.LastInsertId()
	if err != nil {
		return err
	}

	for _, lv := range snap.Bids {
		if _, err := tx.Stmt(cdb.stmtLevel).Exec(snapshotId, "bid", lv.Level, lv.Price, lv.Quantity, lv.NumOrders); err != nil {
			return err
		}
	}
	for _, lv := range snap.Asks {
		if _, err := tx.Stmt(cdb.stmtLevel).Exec(snapshotId, "ask", lv.Level, lv.Price, lv.Quantity, lv.NumOrders); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// StoreHeartbeat persists one decoded heartbeat.
func (cdb *CaptureDb) StoreHeartbeat(tsNs, seq uint64) error {
	_, err := cdb.stmtHeartbeat.Exec(tsNs, seq)
	return err
}

// SnapshotCount returns the number of captured snapshots, for the REPL
// status display.
func (cdb *CaptureDb) SnapshotCount() (int64, error) {
	var n int64
	err := cdb.db.QueryRow(`SELECT COUNT(*) FROM l2_snapshots`).Scan(&n)
	return n, err
}
