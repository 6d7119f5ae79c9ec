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
package scorecard

import (
	"log"

	"github.com/fsnotify/fsnotify"
)

// WatchRulesFile loads path into sc and keeps watching it for writes,
// re-parsing and atomically swapping the active rule set on every
// change. The returned closer stops the watch goroutine.
func WatchRulesFile(sc *Scorecard, path string) (func() error, error) {
	rules, err := ParseRulesFile(path)
	if err != nil {
		return nil, err
	}
	sc.SetRules(rules)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				rules, err := ParseRulesFile(path)
				if err != nil {
					log.Printf("scorecard: rule reload of %s failed, keeping previous rules: %v", path, err)
					continue
				}
				sc.SetRules(rules)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("scorecard: watcher error on %s: %v", path, err)
			case <-done:
				return
			}
		}
	}()

	return func() error {
		close(done)
		return watcher.Close()
	}, nil
}
