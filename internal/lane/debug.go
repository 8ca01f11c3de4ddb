package lane

import (
	"io"
	"log"
	"sync"
)

// Stream selects one of the tracker's log streams.
type Stream int

const (
	StreamOps   Stream = iota // mode transitions, re-acquisition, run summaries
	StreamDiag                // per-frame fits, curvature and stale causes
	StreamTrace               // per-window and per-band search detail
	numStreams
)

// LogWriters holds the io.Writers for each logging stream. A nil writer
// disables its stream.
type LogWriters struct {
	Ops   io.Writer
	Diag  io.Writer
	Trace io.Writer
}

const logPrefix = "[lane] "

var (
	logMu   sync.RWMutex
	loggers [numStreams]*log.Logger
)

// SetLogWriters replaces all three streams at once.
func SetLogWriters(w LogWriters) {
	var next [numStreams]*log.Logger
	for s, out := range [numStreams]io.Writer{StreamOps: w.Ops, StreamDiag: w.Diag, StreamTrace: w.Trace} {
		if out != nil {
			next[s] = log.New(out, logPrefix, log.LstdFlags|log.Lmicroseconds)
		}
	}
	logMu.Lock()
	loggers = next
	logMu.Unlock()
}

// Enabled reports whether s currently has a writer.
func Enabled(s Stream) bool {
	return streamLogger(s) != nil
}

func streamLogger(s Stream) *log.Logger {
	if s < 0 || s >= numStreams {
		return nil
	}
	logMu.RLock()
	defer logMu.RUnlock()
	return loggers[s]
}

func logf(s Stream, format string, args ...interface{}) {
	if l := streamLogger(s); l != nil {
		l.Printf(format, args...)
	}
}

// Opsf logs to the ops stream.
func Opsf(format string, args ...interface{}) { logf(StreamOps, format, args...) }

// Diagf logs to the diag stream.
func Diagf(format string, args ...interface{}) { logf(StreamDiag, format, args...) }

// Tracef logs to the trace stream.
func Tracef(format string, args ...interface{}) { logf(StreamTrace, format, args...) }
