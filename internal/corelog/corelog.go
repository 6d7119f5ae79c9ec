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
// Package corelog is the minimal leveled logger for components that
// run unattended (the WAL manager, the compactor, garbage
// collection). Interactive/bootstrap output stays on plain fmt
// printing; this exists so an operator can silence or raise the
// chatter of the background loops with one knob.
package corelog

import (
	"fmt"
	"log"
	"sync/atomic"
)

// Level orders log severities.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var current atomic.Int32

func init() {
	current.Store(int32(LevelInfo))
}

// SetLevel sets the minimum level that gets emitted.
func SetLevel(l Level) {
	current.Store(int32(l))
}

func emit(l Level, tag, format string, args ...any) {
	if int32(l) < current.Load() {
		return
	}
	log.Output(3, tag+" "+fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...any) { emit(LevelDebug, "DEBUG", format, args...) }
func Infof(format string, args ...any)  { emit(LevelInfo, "INFO", format, args...) }
func Warnf(format string, args ...any)  { emit(LevelWarn, "WARN", format, args...) }
func Errorf(format string, args ...any) { emit(LevelError, "ERROR", format, args...) }
