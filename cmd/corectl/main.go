/*
Copyright (C) 2026  vectorcore contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
// corectl is the operator-facing entry point: it wires together the
// object store, the scorecard admission controller, the dispatcher,
// the metadata database and the vector index provider, then drops
// into an interactive REPL for tracking/untracking admission tickets
// and driving version-graph garbage collection by hand.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/launix-de/vectorcore/internal/dispatcher"
	"github.com/launix-de/vectorcore/internal/metadata"
	"github.com/launix-de/vectorcore/internal/metering"
	"github.com/launix-de/vectorcore/internal/objectstore"
	"github.com/launix-de/vectorcore/internal/scorecard"
	"github.com/launix-de/vectorcore/internal/vectorindex"
)

func main() {
	dataDir := flag.String("data", "./corectl-data", "directory backing the posix object store and metadata database")
	rulesPath := flag.String("rules", "", "scorecard rule file (PATTERN... LIMIT per line); empty admits everything")
	threadEstimate := flag.Int("threads", 0, "scorecard bucket sizing hint; 0 uses runtime.NumCPU()")
	cacheBudget := flag.Int64("index-cache-bytes", 256<<20, "resident vector index cache budget in bytes")
	historyFile := flag.String("history", ".corectl-history.tmp", "readline history file")
	flag.Parse()

	fmt.Print(`corectl  Copyright (C) 2026  vectorcore contributors
    This program comes with ABSOLUTELY NO WARRANTY;
    This is free software, and you are welcome to redistribute it
    under certain conditions;
`)

	store, err := objectstore.NewPosixStore(*dataDir)
	if err != nil {
		log.Fatalf("corectl: opening object store: %v", err)
	}

	var rules []scorecard.Rule
	if *rulesPath != "" {
		f, err := os.Open(*rulesPath)
		if err != nil {
			log.Fatalf("corectl: opening rules file: %v", err)
		}
		rules, err = scorecard.ParseRules(bufio.NewScanner(f))
		f.Close()
		if err != nil {
			log.Fatalf("corectl: parsing rules file: %v", err)
		}
	}
	sc := scorecard.New(rules, *threadEstimate)

	disp := dispatcher.New(dispatcher.DefaultConfig())
	defer disp.Stop()

	provider := vectorindex.NewProvider(store, "vectors/", *cacheBudget)

	db, err := metadata.Open(filepath.Join(*dataDir, "metadata.db"))
	if err != nil {
		log.Fatalf("corectl: opening metadata database: %v", err)
	}
	defer db.Close()
	reader := metadata.NewReader(db)
	writer := metadata.NewWriter(db)

	meterEvents := make(chan metering.Event, 256)
	metering.SetReceiver(meterEvents)
	go func() {
		for ev := range meterEvents {
			log.Printf("meter: kind=%s collection=%s at=%s fields=%v", ev.Kind, ev.CollectionID, ev.At, ev.Fields)
		}
	}()

	repl := &REPL{
		Scorecard:   sc,
		Dispatcher:  disp,
		Store:       store,
		Prefix:      "versiongraph/",
		Provider:    provider,
		Reader:      reader,
		Writer:      writer,
		tickets:     make(map[int]*scorecard.Ticket),
		historyFile: *historyFile,
	}
	repl.Run()
}
