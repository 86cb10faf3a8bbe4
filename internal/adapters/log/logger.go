// Package log builds the daemon's logger: zerolog on stderr, optionally
// teed into a size-rotated file for unattended nodes.
package log

import (
	"io"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bft-labs/frameship/internal/ports"
	pkglog "github.com/bft-labs/frameship/pkg/log"
)

// Options configures the daemon logger.
type Options struct {
	Level string
	JSON  bool

	// File enables a rotating log file in addition to stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int

	// Stderr is replaced in tests.
	Stderr io.Writer
}

// New returns a logger and a closer for the rotating file, if any.
func New(opts Options) (ports.Logger, io.Closer) {
	var out io.Writer = os.Stderr
	if opts.Stderr != nil {
		out = opts.Stderr
	}

	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		rot := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		out = io.MultiWriter(out, rot)
		closer = rot
	}

	zl := pkglog.NewZerologLogger(pkglog.Options{Out: out, JSON: opts.JSON, Level: opts.Level})
	return pkglog.NewZerologAdapterWithLogger(zl), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
