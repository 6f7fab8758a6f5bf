// Package rotorlog provides the package-level loggers used throughout
// rotorgo. Every package under internal/baselib/actor, internal/journal and
// internal/uiloop pulls its logger from here rather than constructing its
// own, so a single root btclog.Logger (wired up in cmd/rotorctl via
// internal/build.HandlerSet) can fan every sub-system out to the same set
// of handlers.
package rotorlog

import (
	"io"

	btclog "github.com/btcsuite/btclog/v2"
)

// root is the shared logger every sub-system logger is carved from with
// WithPrefix. It defaults to a handler writing to io.Discard so that
// importing this package never requires a caller to configure logging
// first; SetHandler swaps in a real handler once one is available.
var root btclog.Logger = btclog.NewSLogger(btclog.NewDefaultHandler(io.Discard))

// SetHandler replaces the handler backing every sub-system logger. Call
// this once, early, from cmd/rotorctl (or any other entry point) before
// constructing any supervisors. A HandlerSet fanning out to several
// handlers (console, rotating file, ...) works here same as a single one.
func SetHandler(h btclog.Handler) {
	root = btclog.NewSLogger(h)
}

// GetLogger returns a sub-system logger tagged with subsystem, matching the
// teacher's convention of one btclog.Logger per internal package (the
// teacher calls the equivalent setter UseLogger per package; rotorgo
// centralizes the handler instead so every sub-system shares one root
// without each package needing its own setter).
func GetLogger(subsystem string) btclog.Logger {
	return root.WithPrefix(subsystem)
}
