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

// mdrecv subscribes to the published L2 feed and offers an interactive
// inspector with optional SQLite capture.
package main

import (
	"flag"
	"log"
	"os"

	"cme-md-go/receiver"
)

func main() {
	cfg := receiver.DefaultConfig()

	flag.StringVar(&cfg.Interface, "interface", "", "network interface IP")
	flag.StringVar(&cfg.CapturePath, "capture", "", "capture decoded feed to this SQLite file")
	flag.BoolVar(&cfg.Stream, "stream", false, "print every snapshot as a one-line update")
	flag.Parse()

	r, err := receiver.New(cfg)
	if err != nil {
		log.Printf("failed to start receiver: %v", err)
		os.Exit(1)
	}
	defer r.Close()

	go r.Run()
	receiver.Repl(r)
}
