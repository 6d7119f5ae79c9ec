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
// Package metering carries post-hoc accounting events (bytes
// read/written, records touched) out of the hot path and onto a
// single process-wide receiver, set once at startup.
package metering

import (
	"log"
	"sync"
	"time"

	"github.com/launix-de/vectorcore/internal/coretypes"
)

// Kind names the operation an Event accounts for.
type Kind string

const (
	KindCollectionRead     Kind = "collection_read"
	KindCollectionWrite    Kind = "collection_write"
	KindCollectionFork     Kind = "collection_fork"
	KindCompaction         Kind = "compaction"
	KindVersionGarbageScan Kind = "version_garbage_scan"
)

// Event is one meterable unit of work. Fields beyond Kind/CollectionID
// are Kind-specific and left as a loosely typed bag rather than a
// tagged union, since the accounting consumer (outside this module)
// is the only party that interprets them.
type Event struct {
	Kind         Kind
	CollectionID coretypes.CollectionID
	At           time.Time
	Fields       map[string]any
}

var (
	once     sync.Once
	receiver chan<- Event
)

// SetReceiver installs the process-wide meter-event channel. Only the
// first call takes effect; later calls are logged and ignored, the
// same one-shot-cell semantics as a startup-only global.
func SetReceiver(ch chan<- Event) {
	installed := false
	once.Do(func() {
		receiver = ch
		installed = true
	})
	if !installed {
		log.Printf("metering: receiver already initialized, ignoring later SetReceiver call")
	}
}

// Submit sends ev to the installed receiver; before SetReceiver has
// run it is a silent no-op. A full channel
// blocks the caller exactly as an unbuffered chan send would; give the
// channel passed to SetReceiver enough buffer for your workload.
func Submit(ev Event) {
	if receiver == nil {
		return
	}
	receiver <- ev
}
