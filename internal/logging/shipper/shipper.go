// Package shipper implements the remote log shipper: a dedicated worker
// with its own ingress channel, a dual-timer batching strategy, an HTTP
// POST transport, and bounded retry. It is the principal algorithmic
// component of the logging core.
package shipper

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/host"
	"golang.org/x/time/rate"

	"github.com/pilot-net/hydrogen/internal/logging/record"
	"github.com/pilot-net/hydrogen/internal/logging/severity"
)

const (
	ingressCapacity = 10000
	batchSizeLimit  = 50

	shortDeadlineInterval = 1 * time.Second
	longDeadlineInterval  = 10 * time.Second
	retryInterval         = 1 * time.Second

	// defaultMaxRetryWindow is used when Config.MaxRetryWindow is zero.
	defaultMaxRetryWindow = 10 * time.Minute
)

// Labels are the app name, the four cached environment labels, and Host
// (which carries the same value as PodName), fixed at initialization and
// immutable afterward.
type Labels struct {
	App           string
	Namespace     string
	PodName       string
	ContainerName string
	NodeName      string
	Host          string
}

// Shipper ships batched remote records to a log-aggregation HTTP endpoint.
// All batch/timer/first-log-sent state is owned exclusively by the worker
// goroutine; the only cross-goroutine channel in is the ingress channel,
// which keeps the worker's internal state free of locking.
type Shipper struct {
	enabled        bool
	minimum        severity.Level
	labels         Labels
	maxRetryWindow time.Duration

	ingress   chan []byte
	transport *transport

	logger  *slog.Logger
	limiter *rate.Limiter

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}

	lastFlushFailed bool

	droppedCount struct {
		sync.Mutex
		staleBatches int
		fullQueue    int
		oversized    int
	}
}

// Config carries everything NewEnabled needs to build a running shipper;
// FromEnv builds one from the process environment, tests build one directly
// to point at an httptest server.
type Config struct {
	URL           string
	Minimum       severity.Level
	Namespace     string
	PodName       string
	ContainerName string
	NodeName      string
	App           string

	// MaxRetryWindow bounds how long a batch is retried before it is
	// dropped as stale. Zero means defaultMaxRetryWindow.
	MaxRetryWindow time.Duration
}

// FromEnv builds a Config from the shipper's environment variables. ok is
// false when VICTORIALOGS_URL is unset or fails to parse as a URL, meaning
// the shipper must run disabled.
func FromEnv(app string) (cfg Config, ok bool) {
	raw := os.Getenv("VICTORIALOGS_URL")
	if raw == "" {
		return Config{}, false
	}
	if _, err := url.Parse(raw); err != nil {
		return Config{}, false
	}

	hostname := resolveHostname()

	cfg = Config{
		URL:           raw,
		Minimum:       severity.Parse(os.Getenv("VICTORIALOGS_LVL"), severity.Debug),
		Namespace:     envOr("K8S_NAMESPACE", "local"),
		PodName:       envOr("K8S_POD_NAME", hostname),
		ContainerName: envOr("K8S_CONTAINER_NAME", "hydrogen"),
		NodeName:      envOr("K8S_NODE_NAME", hostname),
		App:           app,
	}
	return cfg, true
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// resolveHostname uses gopsutil's host info (rather than os.Hostname alone)
// so the fallback behaves consistently across containerized and bare metal
// deployments; falls back to "localhost" when even that fails.
func resolveHostname() string {
	if info, err := host.Info(); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return "localhost"
}

// New builds a disabled Shipper. Use NewEnabled to build one that actually
// ships; callers that only need the RemoteEnqueuer no-op path (VICTORIALOGS_URL
// unset) use this.
func New() *Shipper {
	return &Shipper{enabled: false, stopCh: make(chan struct{})}
}

// NewEnabled builds a Shipper that will POST batches to cfg.URL once Start is
// called.
func NewEnabled(cfg Config, logger *slog.Logger) *Shipper {
	if logger == nil {
		logger = slog.Default()
	}
	maxRetryWindow := cfg.MaxRetryWindow
	if maxRetryWindow <= 0 {
		maxRetryWindow = defaultMaxRetryWindow
	}
	return &Shipper{
		enabled: true,
		minimum: cfg.Minimum,
		labels: Labels{
			App:           cfg.App,
			Namespace:     cfg.Namespace,
			PodName:       cfg.PodName,
			ContainerName: cfg.ContainerName,
			NodeName:      cfg.NodeName,
			Host:          cfg.PodName,
		},
		maxRetryWindow: maxRetryWindow,
		ingress:        make(chan []byte, ingressCapacity),
		transport:      newTransport(cfg.URL),
		logger:         logger,
		limiter:        rate.NewLimiter(rate.Every(retryInterval), 1),
		stopCh:         make(chan struct{}),
	}
}

// Enabled reports whether the shipper will actually ship records, for wiring
// into the router's Remote FilterTable.
func (s *Shipper) Enabled() bool { return s.enabled }

// Minimum returns the configured minimum severity, for the same wiring
// purpose. Meaningless when Enabled() is false.
func (s *Shipper) Minimum() severity.Level { return s.minimum }

// Enqueue hands a candidate record to the shipper's ingress channel. It
// implements router.RemoteEnqueuer. When the shipper is disabled this is a
// silent no-op success; a disabled shipper is not an error condition.
func (s *Shipper) Enqueue(now time.Time, level severity.Level, subsystem, details string) bool {
	if !s.enabled {
		return true
	}
	rec := record.NewRemoteRecord(now, level, subsystem, details,
		s.labels.App, s.labels.Namespace, s.labels.PodName, s.labels.ContainerName, s.labels.NodeName, s.labels.Host)
	line := rec.MarshalJSONLine()
	line = append(line, '\n')

	select {
	case s.ingress <- line:
		return true
	default:
		s.droppedCount.Lock()
		s.droppedCount.fullQueue++
		s.droppedCount.Unlock()
		return false
	}
}

// Stats is a point-in-time snapshot of the shipper's enabled flag, ingress
// depth, and drop counters. pkg/log does not re-export it.
type Stats struct {
	Enabled          bool
	QueueDepth       int
	DroppedFullQueue int
	DroppedStale     int
	DroppedOversized int
}

func (s *Shipper) Stats() Stats {
	if !s.enabled {
		return Stats{Enabled: false}
	}
	s.droppedCount.Lock()
	defer s.droppedCount.Unlock()
	return Stats{
		Enabled:          true,
		QueueDepth:       len(s.ingress),
		DroppedFullQueue: s.droppedCount.fullQueue,
		DroppedStale:     s.droppedCount.staleBatches,
		DroppedOversized: s.droppedCount.oversized,
	}
}

// Start launches the worker goroutine. No-op when the shipper is disabled.
func (s *Shipper) Start() {
	if !s.enabled {
		return
	}
	s.wg.Add(1)
	go s.run()
}

// Shutdown signals the worker to stop, makes a best-effort final flush of
// whatever is left in the batch, and joins the worker goroutine
// unconditionally. Idempotent.
func (s *Shipper) Shutdown() {
	if !s.enabled {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
	s.wg.Wait()
}

// stopTimer disarms t, draining its channel if it had already fired. Safe
// to call on a timer in any state, from the single goroutine that owns it.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}

// resetTimer disarms t (per stopTimer) and rearms it for d.
func resetTimer(t *time.Timer, d time.Duration) {
	stopTimer(t)
	t.Reset(d)
}

// run is the worker loop: drain the ingress channel into the batch, flush
// on a dual-timer schedule, and perform a final flush attempt on shutdown.
// It blocks in select between ticks, never polling.
func (s *Shipper) run() {
	defer s.wg.Done()

	b := newBatch()
	firstRecordSeen := false

	shortTimer := time.NewTimer(shortDeadlineInterval)
	stopTimer(shortTimer)
	defer shortTimer.Stop()

	longTimer := time.NewTimer(longDeadlineInterval)
	defer longTimer.Stop()

	for {
		select {
		case <-s.stopCh:
			s.drainAndFlush(b)
			return

		case line := <-s.ingress:
			now := time.Now()
			isFirst := !firstRecordSeen
			firstRecordSeen = true

			if !b.fits(line) {
				s.flush(b, now)
			}
			if !b.append(line, now) {
				s.droppedCount.Lock()
				s.droppedCount.oversized++
				s.droppedCount.Unlock()
				s.logger.Warn("dropping oversized remote log record", "bytes", len(line))
				continue
			}

			if isFirst {
				// The very first record the shipper ever sees ships
				// immediately, independent of batch_size_limit, to verify
				// end-to-end connectivity as soon as possible.
				if s.flush(b, now) {
					resetTimer(longTimer, longDeadlineInterval)
				} else {
					resetTimer(longTimer, retryInterval)
				}
			} else if b.count >= batchSizeLimit {
				if s.flush(b, now) {
					resetTimer(longTimer, longDeadlineInterval)
				} else {
					resetTimer(longTimer, retryInterval)
				}
			}
			resetTimer(shortTimer, shortDeadlineInterval)

		case <-shortTimer.C:
			if !b.empty() {
				if s.flush(b, time.Now()) {
					resetTimer(longTimer, longDeadlineInterval)
				} else {
					resetTimer(longTimer, retryInterval)
				}
			}

		case <-longTimer.C:
			now := time.Now()
			if !b.empty() && !s.flush(b, now) {
				longTimer.Reset(retryInterval)
			} else {
				longTimer.Reset(longDeadlineInterval)
			}
		}
	}
}

// drainAndFlush consumes whatever is already buffered in the ingress
// channel without blocking, then makes a best-effort final flush. Called
// only on shutdown.
func (s *Shipper) drainAndFlush(b *batch) {
	for {
		select {
		case line := <-s.ingress:
			now := time.Now()
			if !b.fits(line) {
				s.flush(b, now)
			}
			if !b.append(line, now) {
				s.droppedCount.Lock()
				s.droppedCount.oversized++
				s.droppedCount.Unlock()
			}
		default:
			if !b.empty() {
				s.flush(b, time.Now())
			}
			return
		}
	}
}

// flush attempts one HTTP POST of the batch's current contents. On success
// the batch is reset and true is returned. On failure the batch is retained
// for retry unless its age exceeds maxRetryWindow, in which case it is
// dropped as stale, and false is returned either way (a dropped batch still
// counts as "not shipped this attempt").
func (s *Shipper) flush(b *batch, now time.Time) bool {
	if b.empty() {
		return true
	}
	if s.lastFlushFailed && !s.limiter.AllowN(now, 1) {
		// Already retrying a failing endpoint; don't attempt again faster
		// than the retry limiter allows. Healthy-endpoint flushes are never
		// gated here.
		return false
	}

	batchID := uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	body := append([]byte(nil), b.bytes()...)
	err := s.transport.send(ctx, body, batchID)
	if err == nil {
		b.reset()
		s.lastFlushFailed = false
		return true
	}
	s.lastFlushFailed = true

	s.logger.Warn("remote log shipper flush failed", "error", err, "batch_id", batchID, "batch_records", b.count)

	if b.age(now) > s.maxRetryWindow {
		s.droppedCount.Lock()
		s.droppedCount.staleBatches++
		s.droppedCount.Unlock()
		s.logger.Warn("dropping stale log batch past max retry window", "batch_records", b.count, "age", b.age(now))
		b.reset()
		s.lastFlushFailed = false
	}
	return false
}
