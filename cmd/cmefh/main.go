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

// cmefh is the L2 multicast feed handler: it consumes the incremental
// and snapshot channels, maintains per-security books with gap recovery,
// and republishes a conflated normalized snapshot feed.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"cme-md-go/feedhandler"
)

func main() {
	var (
		configPath         = flag.String("config", "", "optional YAML config file")
		iface              = flag.String("interface", "", "network interface IP (default 0.0.0.0)")
		conflationInterval = flag.Int("conflation-interval", 0, "conflation interval in ms (default 100)")
		recoveryTimeout    = flag.Int("recovery-timeout", 0, "recovery timeout in ms (default 5000)")
	)
	flag.Parse()

	cfg := feedhandler.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = feedhandler.LoadConfig(*configPath); err != nil {
			log.Printf("%v", err)
			os.Exit(1)
		}
	}

	// Flags override the config file.
	if *iface != "" {
		cfg.Interface = *iface
	}
	if *conflationInterval > 0 {
		cfg.ConflationIntervalMs = *conflationInterval
	}
	if *recoveryTimeout > 0 {
		cfg.RecoveryTimeoutMs = *recoveryTimeout
	}
	if err := cfg.Validate(); err != nil {
		log.Printf("invalid configuration: %v", err)
		os.Exit(1)
	}

	handler, err := feedhandler.NewHandler(cfg)
	if err != nil {
		log.Printf("failed to start feed handler: %v", err)
		os.Exit(1)
	}

	stop := make(chan struct{})
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Printf("received %v, stopping feed handler", sig)
		close(stop)
	}()

	handler.Run(stop)
}
