// Command hydrogend runs the Hydrogen server platform.
//
// # Usage
//
//	hydrogend --config /etc/hydrogen/log.yaml
//
// # Configuration
//
// Logging configuration can be provided via:
// - A YAML config file (--config)
// - Environment variables (HYDROGEN_LOG_*, VICTORIALOGS_*, K8S_*)
//
// hydrogend itself only wires up the logging core and a handful of stand-in
// subsystem goroutines that call log.Log from arbitrary points in the
// process lifetime, to exercise the core the way the platform's real web
// server, WebSocket server, mDNS responder, terminal bridge, database
// abstraction, OIDC client, and print queue would.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	hlog "github.com/pilot-net/hydrogen/pkg/log"
)

// version is stamped at build time in a real deployment; fixed here since
// this binary only exists to demonstrate the logging core.
const version = "0.1.0-dev"

func main() {
	var (
		configFile = flag.String("config", "", "Path to log config file")
		debug      = flag.Bool("debug", false, "Enable debug-level internal diagnostics")
		showVer    = flag.Bool("version", false, "Print version and exit")
		dbDSN      = flag.String("database-dsn", "", "Postgres DSN for the database log sink (optional)")
		notifyURL  = flag.String("notify-redis-url", "", "Redis URL for the notify log sink (optional)")
	)
	flag.Parse()

	if *showVer {
		fmt.Printf("hydrogend %s\n", version)
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg := hlog.DefaultConfig()
	if *configFile != "" {
		fileCfg, err := hlog.LoadFromFile(*configFile)
		if err != nil {
			logger.Error("failed to load log config file", "error", err)
			os.Exit(1)
		}
		cfg = fileCfg
	}
	cfg.ApplyEnvOverrides()

	if !hlog.Init(hlog.Options{
		Config:         *cfg,
		DatabaseDSN:    *dbDSN,
		NotifyRedisURL: *notifyURL,
		NotifyChannel:  "hydrogen.logs",
		App:            "hydrogen",
		Logger:         logger,
	}) {
		logger.Error("failed to initialize logging core")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting hydrogend", "version", version)
	runStandinSubsystems(ctx)

	logger.Info("draining logging core")
	hlog.Shutdown()
	logger.Info("hydrogend shutdown complete")
}

// standinSubsystem names the platform components this repository does not
// implement; each gets one goroutine that calls log.Log after a random
// initial delay and then on a fixed interval, which is the only thing this binary needs from them to
// exercise the logging core end to end.
type standinSubsystem struct {
	name     string
	interval time.Duration
}

var standinSubsystems = []standinSubsystem{
	{"WebServer", 2 * time.Second},
	{"WebSocket", 3 * time.Second},
	{"mDNS", 5 * time.Second},
	{"TerminalBridge", 7 * time.Second},
	{"Database", 4 * time.Second},
	{"OIDC", 11 * time.Second},
	{"PrintQueue", 6 * time.Second},
}

func runStandinSubsystems(ctx context.Context) {
	var wg sync.WaitGroup
	for _, s := range standinSubsystems {
		wg.Add(1)
		go func(s standinSubsystem) {
			defer wg.Done()
			heartbeat(ctx, s.name, s.interval)
		}(s)
	}
	wg.Wait()
}

// heartbeat periodically calls log.Log at a rotating severity, standing in
// for whatever real activity the named subsystem would otherwise log.
func heartbeat(ctx context.Context, subsystem string, interval time.Duration) {
	levels := []hlog.Severity{hlog.Debug, hlog.State, hlog.Alert}
	jitter := time.Duration(rand.Int63n(int64(interval)))

	timer := time.NewTimer(jitter)
	defer timer.Stop()

	n := 0
	for {
		select {
		case <-ctx.Done():
			hlog.Log(subsystem, "shutting down", hlog.State, hlog.HintConsole|hlog.HintFile)
			return
		case <-timer.C:
			level := levels[n%len(levels)]
			hlog.Log(subsystem, fmt.Sprintf("heartbeat #%d", n), level,
				hlog.HintConsole|hlog.HintFile|hlog.HintDatabase|hlog.HintNotify)
			n++
			timer.Reset(interval)
		}
	}
}
