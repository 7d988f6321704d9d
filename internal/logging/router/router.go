// Package router implements the fan-out dispatch that runs on the primary
// queue's consumer goroutine: for each dequeued record, decide which
// destinations admit it and dispatch to their sinks in a fixed order.
package router

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pilot-net/hydrogen/internal/logging/queue"
	"github.com/pilot-net/hydrogen/internal/logging/record"
	"github.com/pilot-net/hydrogen/internal/logging/severity"
)

// RemoteEnqueuer is the subset of the shipper's public surface the router
// needs. Kept as an interface here (rather than importing the shipper
// package directly) so router and shipper have no dependency on each other;
// pkg/log's Init wires a concrete *shipper.Shipper in. The shipper
// itself attaches its cached environment labels (immutable shipper state,
// not router state) when it builds the outgoing RemoteRecord.
type RemoteEnqueuer interface {
	Enqueue(now time.Time, level severity.Level, subsystem, details string) bool
}

// Config configures line formatting widths and the per-destination filter
// tables. The Remote entry's FilterTable has no caller hint bit (there is no
// LogRemote field); admission for Remote is governed purely by
// FilterTables[severity.Remote], which pkg/log's Init populates from the
// shipper's enabled flag and minimum severity.
type Config struct {
	FilterTables   map[severity.Destination]severity.FilterTable
	LevelWidth     int
	SubsystemWidth int
}

// Router dispatches dequeued primary-queue records to sinks.
type Router struct {
	cfg Config

	console *ConsoleSink
	file    Sink // nil when file logging is disabled
	database Sink
	notify  Sink
	remote  RemoteEnqueuer

	logger *slog.Logger
}

// New returns a Router. Any of file/database/notify/remote may be nil,
// meaning that destination has no backing sink configured; console is
// always present.
func New(cfg Config, console *ConsoleSink, file, database, notify Sink, remote RemoteEnqueuer, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LevelWidth == 0 {
		cfg.LevelWidth = 7 // len("QUIET  ")-ish default, matches longest label "TRACE"/"DEBUG"/etc without truncation
	}
	if cfg.SubsystemWidth == 0 {
		cfg.SubsystemWidth = 16
	}
	return &Router{
		cfg:      cfg,
		console:  console,
		file:     file,
		database: database,
		notify:   notify,
		remote:   remote,
		logger:   logger,
	}
}

// Dispatch parses one dequeued queue entry and fans it out to every
// destination that admits it, in the fixed order Console, File, Remote,
// Database, Notify. Entry.Priority carries the record's severity ordinal,
// stored alongside the payload as a separate integer rather than embedded
// in it.
func (r *Router) Dispatch(e queue.Entry) {
	rec, ok := record.Parse(e.Bytes)
	if !ok {
		fmt.Fprintf(os.Stderr, "hydrogen: dropping malformed log record (%d bytes)\n", e.Size)
		return
	}
	level := severity.Level(e.Priority)
	now := time.Now()

	if r.console != nil && rec.LogConsole && r.admits(severity.Console, rec.Subsystem, level) {
		if !r.console.Suppressed(rec.Subsystem) {
			line := record.FormatLine(now, level, rec.Subsystem, rec.Details, r.cfg.LevelWidth, r.cfg.SubsystemWidth)
			if err := r.console.Accept(line); err != nil {
				fmt.Fprintf(os.Stderr, "hydrogen: console sink error: %v\n", err)
			}
		}
	}

	if r.file != nil && rec.LogFile && r.admits(severity.File, rec.Subsystem, level) {
		line := record.FormatLine(now, level, rec.Subsystem, rec.Details, r.cfg.LevelWidth, r.cfg.SubsystemWidth)
		if err := r.file.Accept(line); err != nil {
			fmt.Fprintf(os.Stderr, "hydrogen: file sink error: %v\n", err)
		}
	}

	if r.remote != nil && r.admits(severity.Remote, rec.Subsystem, level) {
		if !r.remote.Enqueue(now, level, rec.Subsystem, rec.Details) {
			r.logger.Debug("remote shipper ingress full, dropping record", "subsystem", rec.Subsystem)
		}
	}

	if r.database != nil && rec.LogDatabase && r.admits(severity.Database, rec.Subsystem, level) {
		line := record.FormatLine(now, level, rec.Subsystem, rec.Details, r.cfg.LevelWidth, r.cfg.SubsystemWidth)
		if err := r.database.Accept(line); err != nil {
			fmt.Fprintf(os.Stderr, "hydrogen: database sink error: %v\n", err)
		}
	}

	if r.notify != nil && rec.LogNotify && r.admits(severity.Notify, rec.Subsystem, level) {
		line := record.FormatLine(now, level, rec.Subsystem, rec.Details, r.cfg.LevelWidth, r.cfg.SubsystemWidth)
		if err := r.notify.Accept(line); err != nil {
			fmt.Fprintf(os.Stderr, "hydrogen: notify sink error: %v\n", err)
		}
	}
}

func (r *Router) admits(dest severity.Destination, subsystem string, level severity.Level) bool {
	ft, ok := r.cfg.FilterTables[dest]
	if !ok {
		return false
	}
	return ft.Admits(subsystem, level)
}

// Close closes the file, database, and notify sinks (whichever are
// configured), continuing past individual failures so one sink's close
// error cannot prevent the others from releasing their resources.
func (r *Router) Close() error {
	var firstErr error
	for _, s := range []Sink{r.file, r.database, r.notify} {
		if s == nil {
			continue
		}
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
