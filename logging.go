package goasio

import (
	"os"
	"runtime"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the pluggable logging interface used by the runtime. The
// runtime reports driver poll errors through Errorf; it does not log
// registration lifecycle, worker park/unpark transitions or task panics,
// and never calls Debugf. The default implementation is backed by
// logiface/stumpy; callers may supply their own via [WithLogger].
type Logger interface {
	// Debugf logs a low-volume diagnostic message (worker park/unpark,
	// registration/deregistration).
	Debugf(format string, args ...any)
	// Errorf logs an unexpected failure (driver poll error, task panic).
	Errorf(format string, args ...any)
}

// logifaceLogger adapts a [logiface.Logger] to the [Logger] interface.
type logifaceLogger struct {
	l *logiface.Logger[*stumpy.Event]
}

func (l *logifaceLogger) Debugf(format string, args ...any) {
	l.l.Debug().Logf(format, args...)
}

func (l *logifaceLogger) Errorf(format string, args ...any) {
	l.l.Err().Logf(format, args...)
}

// defaultLogger constructs the runtime's default logger: a stumpy-backed
// logiface logger writing structured lines to stderr, mirroring the
// logging stack used throughout this package's retrieval pack.
func defaultLogger() Logger {
	return &logifaceLogger{
		l: stumpy.L.New(
			stumpy.L.WithStumpy(),
			stumpy.L.WithWriter(logiface.WriterFunc[*stumpy.Event](func(e *stumpy.Event) error {
				_, err := os.Stderr.Write(append(e.Bytes(), '\n'))
				return err
			})),
		),
	}
}

// nopLogger discards everything; useful for tests that don't want log
// output mixed into -v test runs.
type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Errorf(string, ...any) {}

// defaultWorkerThreads mirrors Rust's available_parallelism(), falling
// back to 1 if the platform can't report a usable value.
func defaultWorkerThreads() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}
