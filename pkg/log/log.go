package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/pilot-net/hydrogen/internal/logging/lifecycle"
	"github.com/pilot-net/hydrogen/internal/logging/router"
	"github.com/pilot-net/hydrogen/internal/logging/severity"
	"github.com/pilot-net/hydrogen/internal/logging/shipper"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Severity re-exports the severity scale so callers don't need to import
// internal/logging/severity directly.
type Severity = severity.Level

const (
	Trace = severity.Trace
	Debug = severity.Debug
	State = severity.State
	Alert = severity.Alert
	Error = severity.Error
	Fatal = severity.Fatal
	Quiet = severity.Quiet
)

// Hints re-exports the destination-hint bitmask.
type Hints = severity.Hints

const (
	HintConsole  = severity.HintConsole
	HintFile     = severity.HintFile
	HintDatabase = severity.HintDatabase
	HintNotify   = severity.HintNotify
)

var (
	mu         sync.Mutex
	controller *lifecycle.Controller
)

// Options configures Init. DatabaseDSN and NotifyRedisURL/NotifyChannel wire
// the optional Database and Notify sinks; a zero value disables the
// corresponding sink entirely (it is never a fatal error).
type Options struct {
	Config Config

	DatabaseDSN    string
	NotifyRedisURL string
	NotifyChannel  string

	App    string
	Logger *slog.Logger
}

// Init builds and starts the logging core: primary queue, router (and
// whichever sinks Options configures), and shipper (enabled only when
// VICTORIALOGS_URL is set). It returns false and leaves the core
// uninitialized on any unrecoverable construction error; logging-core
// setup failures are reported, never panicked.
func Init(opts Options) bool {
	mu.Lock()
	defer mu.Unlock()

	if controller != nil {
		fmt.Fprintln(os.Stderr, "hydrogen: log.Init called more than once, ignoring")
		return false
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	cfg := opts.Config
	if cfg.LevelWidth == 0 && cfg.SubsystemWidth == 0 {
		cfg = *DefaultConfig()
	}

	console := router.NewConsoleSink(os.Stdout, nil)

	var fileSink *router.FileSink
	if cfg.File.Path != "" {
		fs, err := router.NewFileSink(cfg.File.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hydrogen: failed to open log file %q: %v\n", cfg.File.Path, err)
			return false
		}
		fileSink = fs
	}

	var dbSink *router.DatabaseSink
	if opts.DatabaseDSN != "" {
		pool, err := pgxpool.New(context.Background(), opts.DatabaseDSN)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hydrogen: failed to connect database log sink: %v\n", err)
		} else {
			dbSink = router.NewDatabaseSink(pool, 500)
		}
	}

	var notifySink *router.NotifySink
	if opts.NotifyRedisURL != "" {
		ns, err := router.NewNotifySink(opts.NotifyRedisURL, opts.NotifyChannel)
		if err != nil {
			fmt.Fprintf(os.Stderr, "hydrogen: failed to connect notify log sink: %v\n", err)
		} else {
			notifySink = ns
		}
	}

	var ship *shipper.Shipper
	if shipCfg, ok := shipper.FromEnv(opts.App); ok {
		ship = shipper.NewEnabled(shipCfg, logger)
	} else {
		ship = shipper.New()
	}

	tables := cfg.FilterTables()
	// The Remote destination has no caller hint bit; its filter table is
	// driven entirely by the shipper's own enable flag and minimum
	// severity; the remote section of Config is not used.
	tables[severity.Remote] = severity.FilterTable{
		Enabled: ship.Enabled(),
		Default: ship.Minimum(),
	}

	rtrCfg := router.Config{
		FilterTables:   tables,
		LevelWidth:     cfg.LevelWidth,
		SubsystemWidth: cfg.SubsystemWidth,
	}

	var fileSinkIface, dbSinkIface, notifySinkIface router.Sink
	if fileSink != nil {
		fileSinkIface = fileSink
	}
	if dbSink != nil {
		dbSinkIface = dbSink
	}
	if notifySink != nil {
		notifySinkIface = notifySink
	}

	rtr := router.New(rtrCfg, console, fileSinkIface, dbSinkIface, notifySinkIface, ship, logger)

	controller = lifecycle.New(rtr, ship, logger)
	if !controller.Init() {
		controller = nil
		return false
	}
	return true
}

// Log enqueues subsystem/details at the given severity, offered to every
// destination named in hints (plus Remote, unconditionally subject to its
// own severity threshold). It is the sole public logging call site; it
// never blocks and never returns an error. A call before Init or after
// Shutdown is silently dropped.
func Log(subsystem string, details string, level Severity, hints Hints) {
	mu.Lock()
	c := controller
	mu.Unlock()

	if c == nil {
		return
	}
	c.Enqueue(subsystem, level, details, hints)
}

// Shutdown drains the primary queue, joins the consumer and shipper
// workers, and closes every sink. Idempotent; safe to call even if Init was
// never called or already failed.
func Shutdown() {
	mu.Lock()
	c := controller
	controller = nil
	mu.Unlock()

	if c == nil {
		return
	}
	c.Shutdown()
}

// State reports the logging core's lifecycle state for diagnostics.
func State() lifecycle.State {
	mu.Lock()
	defer mu.Unlock()
	if controller == nil {
		return lifecycle.Uninitialized
	}
	return controller.State()
}
