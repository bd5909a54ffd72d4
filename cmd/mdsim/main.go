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

// mdsim publishes a synthetic exchange feed for the test universe on the
// incremental and snapshot multicast groups.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cme-md-go/simulator"
)

func main() {
	cfg := simulator.DefaultConfig()

	flag.IntVar(&cfg.TTL, "ttl", cfg.TTL, "multicast TTL for both publishing sockets")
	flag.IntVar(&cfg.UpdatesPerSecond, "rate", cfg.UpdatesPerSecond, "incremental updates per second")
	flag.IntVar(&cfg.SnapshotIntervalMs, "snapshot-interval", cfg.SnapshotIntervalMs, "snapshot interval in ms")
	flag.BoolVar(&cfg.SimulateGaps, "gaps", false, "inject rpt_seq gaps to exercise recovery")
	flag.IntVar(&cfg.GapFrequency, "gap-frequency", cfg.GapFrequency, "inject a gap every N packets")
	flag.Int64Var(&cfg.Seed, "seed", 0, "random seed (0 = from clock)")
	flag.Parse()

	sim, err := simulator.New(cfg)
	if err != nil {
		log.Printf("failed to start simulator: %v", err)
		os.Exit(1)
	}

	stop := make(chan struct{})
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		close(stop)
	}()

	sim.Run(stop)
}
