// Package xlog provides leveled diagnostic logging for the writer side
// of the RCU index structures. Read-side operations never call into
// this package: spec.md §5 requires read sections to be allocation-
// and syscall-free, and a log write is neither.
package xlog

import (
	"io"
	"log"
	"os"
)

var (
	DebugWriter io.Writer = os.Stderr
	NoteWriter  io.Writer = os.Stderr
	WarnWriter  io.Writer = os.Stderr
	ErrWriter   io.Writer = os.Stderr
)

var (
	DebugPrefix = "<7>[DEBUG] "
	NotePrefix  = "<5>[NOTE]  "
	WarnPrefix  = "<4>[WARN]  "
	ErrPrefix   = "<3>[ERR]   "
)

var (
	debugLog = log.New(DebugWriter, DebugPrefix, log.LstdFlags)
	noteLog  = log.New(NoteWriter, NotePrefix, log.LstdFlags)
	warnLog  = log.New(WarnWriter, WarnPrefix, log.LstdFlags|log.Lshortfile)
	errLog   = log.New(ErrWriter, ErrPrefix, log.LstdFlags|log.Lshortfile)
)

// SetLevel discards everything below lvl. One of "debug", "note",
// "warn", "err", "silent".
func SetLevel(lvl string) {
	switch lvl {
	case "silent":
		errLog.SetOutput(io.Discard)
		fallthrough
	case "err":
		warnLog.SetOutput(io.Discard)
		fallthrough
	case "warn":
		noteLog.SetOutput(io.Discard)
		fallthrough
	case "note":
		debugLog.SetOutput(io.Discard)
	case "debug":
		debugLog.SetOutput(DebugWriter)
		noteLog.SetOutput(NoteWriter)
		warnLog.SetOutput(WarnWriter)
		errLog.SetOutput(ErrWriter)
	}
}

func Debugf(format string, args ...any) { debugLog.Printf(format, args...) }
func Notef(format string, args ...any)  { noteLog.Printf(format, args...) }
func Warnf(format string, args ...any)  { warnLog.Printf(format, args...) }
func Errf(format string, args ...any)   { errLog.Printf(format, args...) }
