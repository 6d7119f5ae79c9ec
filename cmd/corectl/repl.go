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
package main

import (
	"fmt"
	"io"
	"runtime/debug"
	"strings"

	"github.com/chzyer/readline"

	"github.com/launix-de/vectorcore/internal/dispatcher"
	"github.com/launix-de/vectorcore/internal/metadata"
	"github.com/launix-de/vectorcore/internal/objectstore"
	"github.com/launix-de/vectorcore/internal/scorecard"
	"github.com/launix-de/vectorcore/internal/vectorindex"
)

const prompt = "\033[32mcorectl>\033[0m "
const resultPrompt = "\033[31m=\033[0m "

// REPL holds every bootstrapped component a command may touch.
type REPL struct {
	Scorecard  *scorecard.Scorecard
	Dispatcher *dispatcher.Dispatcher
	Store      objectstore.Store
	Prefix     string
	Provider   *vectorindex.Provider
	Reader     *metadata.Reader
	Writer     *metadata.Writer

	historyFile string

	tickets    map[int]*scorecard.Ticket
	nextTicket int
}

// Run drives the interactive command loop until EOF or interrupt: a
// persistent history file, an anti-panic wrapper per line, and
// Ctrl-C clearing the current line instead of exiting outright.
func (r *REPL) Run() {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       r.historyFile,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			panic(err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		func() {
			defer func() {
				if rec := recover(); rec != nil {
					fmt.Println("panic:", rec, string(debug.Stack()))
				}
			}()
			out, err := r.dispatch(line)
			if err != nil {
				fmt.Println(resultPrompt + "error: " + err.Error())
				return
			}
			fmt.Println(resultPrompt + out)
		}()
	}
}

func (r *REPL) dispatch(line string) (string, error) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]
	switch cmd {
	case "help":
		return helpText, nil
	case "track":
		return r.cmdTrack(args)
	case "untrack":
		return r.cmdUntrack(args)
	case "gc":
		return r.cmdGC(args)
	case "inspect":
		return r.cmdInspect(args)
	case "count":
		return r.cmdCount(args)
	case "archive":
		return r.cmdArchive(args)
	case "restore":
		return r.cmdRestore(args)
	default:
		return "", fmt.Errorf("unknown command %q; try %q", cmd, "help")
	}
}

const helpText = `commands:
  track TAG...                 acquire a scorecard ticket for the given tags
  untrack ID                   release a ticket returned by track
  gc COLLECTION_ID CUTOFF_HOURS MIN_VERSIONS_TO_KEEP [LINEAGE]
                                construct the version graph for COLLECTION_ID
                                (reading versiongraph/versions/<id>.json, and
                                versiongraph/lineage/<LINEAGE>.json if given)
                                and report which versions a GC pass would drop
  inspect                      print admission, dispatcher and cache counters
  count SEGMENT_ID             count embeddings the metadata database holds
                                for SEGMENT_ID
  archive KEY                  move the block object at KEY to the
                                xz-compressed cold tier
  restore KEY                  bring an archived block object back to the
                                hot tier`
