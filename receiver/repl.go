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
	"log"
	"strings"

	"github.com/chzyer/readline"
)

// Repl drives the interactive inspector until the user exits.
func Repl(r *Receiver) {
	completer := readline.NewPrefixCompleter(
		readline.PcItem("book",
			readline.PcItem("ESH26"),
			readline.PcItem("NQM26"),
			readline.PcItem("CLK26"),
			readline.PcItem("GCZ26"),
		),
		readline.PcItem("symbols"),
		readline.PcItem("stats"),
		readline.PcItem("capture", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "L2-MD> ",
		HistoryFile:     "/tmp/cmemd_history",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		log.Printf("Failed to create readline: %v", err)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			return
		}

		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) == 0 {
			continue
		}

		switch strings.ToLower(parts[0]) {
		case "book":
			handleBook(r, parts)
		case "symbols":
			handleSymbols(r)
		case "stats":
			handleStats(r)
		case "capture":
			handleCapture(r, parts)
		case "help":
			displayHelp()
		case "exit":
			return
		default:
			fmt.Println("Unknown command. Type 'help' for available commands.")
		}
	}
}

func handleBook(r *Receiver, parts []string) {
	if len(parts) < 2 {
		fmt.Println("Usage: book <symbol>")
		return
	}
	sym := strings.ToUpper(parts[1])
	snap, ok := r.Store().Book(sym)
	if !ok {
		fmt.Printf("No book for %s yet\n", sym)
		return
	}
	PrintBook(&snap)
}

func handleSymbols(r *Receiver) {
	syms := r.Store().Symbols()
	if len(syms) == 0 {
		fmt.Println("No snapshots received yet")
		return
	}
	for _, s := range syms {
		fmt.Println(" ", s)
	}
}

func handleStats(r *Receiver) {
	fmt.Printf("Decoded messages: %d\n", r.Decoded())
	stats := r.Store().Stats()
	for _, sym := range r.Store().Symbols() {
		s := stats[sym]
		fmt.Printf("  %-8s updates=%d last_seq=%d\n", sym, s.Updates, s.LastSeq)
	}
	if hb := r.Store().LastHeartbeat(); hb > 0 {
		fmt.Printf("Last heartbeat seq: %d\n", hb)
	}
	if r.Capture() != nil {
		if n, err := r.Capture().SnapshotCount(); err == nil {
			fmt.Printf("Captured snapshots: %d (capture %s)\n", n, onOff(r.Capturing()))
		}
	}
}

func handleCapture(r *Receiver, parts []string) {
	if r.Capture() == nil {
		fmt.Println("Capture disabled; restart with --capture <file.db>")
		return
	}
	if len(parts) < 2 {
		fmt.Printf("Capture is %s\n", onOff(r.Capturing()))
		return
	}
	switch strings.ToLower(parts[1]) {
	case "on":
		r.SetCapturing(true)
		fmt.Println("Capture on")
	case "off":
		r.SetCapturing(false)
		fmt.Println("Capture off")
	default:
		fmt.Println("Usage: capture [on|off]")
	}
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func displayHelp() {
	fmt.Print(`Commands:
  book <symbol>     - Show the latest book for a symbol
  symbols           - List symbols seen on the feed
  stats             - Per-symbol update counters
  capture [on|off]  - Toggle SQLite capture
  help, exit
`)
}
