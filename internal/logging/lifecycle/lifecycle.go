// Package lifecycle owns the logging core's process-wide state: the
// primary queue, the fan-out router (and the sinks behind it), and the
// remote shipper. It is the single public surface the rest of the process
// calls through.
package lifecycle

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pilot-net/hydrogen/internal/logging/queue"
	"github.com/pilot-net/hydrogen/internal/logging/record"
	"github.com/pilot-net/hydrogen/internal/logging/router"
	"github.com/pilot-net/hydrogen/internal/logging/severity"
	"github.com/pilot-net/hydrogen/internal/logging/shipper"
)

// State is the logging core's coarse lifecycle state machine:
// Uninitialized -> Running -> Draining -> Stopped.
type State int

const (
	Uninitialized State = iota
	Running
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Running:
		return "Running"
	case Draining:
		return "Draining"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// primaryQueueCapacity bounds the consumer's main FIFO. There's no fixed
// number for this queue the way there is for the shipper's ingress queue
// (10000), but an unbounded primary queue would defeat the "never allocates
// an unbounded amount" guarantee, so it gets the same bound.
const primaryQueueCapacity = 10000

// Controller is the logging core's lifecycle controller: it owns the
// primary queue, the router (and therefore every sink), and the shipper,
// and runs the consumer goroutine that drains the primary queue into the
// router.
type Controller struct {
	mu    sync.Mutex
	state State

	primary *queue.Queue
	rtr     *router.Router
	ship    *shipper.Shipper

	logger *slog.Logger

	consumerDone chan struct{}
}

// New constructs a Controller in the Uninitialized state. rtr and ship must
// already be built (their sinks and transport configured); Init starts the
// workers that drive them.
func New(rtr *router.Router, ship *shipper.Shipper, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		state:   Uninitialized,
		primary: queue.New(primaryQueueCapacity),
		rtr:     rtr,
		ship:    ship,
		logger:  logger,
	}
}

// Init starts the consumer worker, then the shipper worker, moving the
// controller to Running. Calling Init more than once is a programming error
// reported as false rather than a panic, since logging-subsystem failures
// must never crash the caller.
func (c *Controller) Init() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Uninitialized {
		fmt.Fprintln(os.Stderr, "hydrogen: lifecycle Init called out of order, ignoring")
		return false
	}

	c.consumerDone = make(chan struct{})
	go c.consume()

	c.ship.Start()

	c.state = Running
	return true
}

// State reports the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Enqueue is the logging API's call site: format the record, enqueue to the
// primary queue, and, if the severity clears the shipper's minimum, also
// hand it to the shipper's ingress queue. Never blocks, never returns an
// error; every failure mode is a silent drop.
func (c *Controller) Enqueue(subsystem string, level severity.Level, details string, hints severity.Hints) {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	if state == Stopped {
		return
	}

	b, ok := record.Serialize(subsystem, details, hints)
	if !ok {
		fmt.Fprintf(os.Stderr, "hydrogen: dropping log record for %q: serialization failed\n", subsystem)
		return
	}
	c.primary.Enqueue(b, int(level))

	if c.ship.Enabled() && level >= c.ship.Minimum() {
		c.ship.Enqueue(time.Now(), level, subsystem, details)
	}
}

// Shutdown moves the controller through Draining to Stopped: it stops
// accepting the guarantee of further processing, lets the primary queue
// drain to the router, joins the consumer, then shuts down the shipper
// (the same order Init started them in, so records the consumer drains
// still reach the shipper before its final flush) and closes the router's
// sinks. Idempotent.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.state == Uninitialized || c.state == Stopped {
		c.mu.Unlock()
		return
	}
	c.state = Draining
	c.mu.Unlock()

	c.primary.Shutdown()
	<-c.consumerDone

	c.ship.Shutdown()

	if err := c.rtr.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "hydrogen: error closing log sinks: %v\n", err)
	}

	c.mu.Lock()
	c.state = Stopped
	c.mu.Unlock()
}

// consume is the dedicated consumer goroutine: drain the primary queue into
// the router until shutdown and the queue is empty.
func (c *Controller) consume() {
	defer close(c.consumerDone)
	for {
		c.primary.WaitNonEmptyOrShutdown()
		e, ok := c.primary.Dequeue()
		if !ok {
			if c.primary.ShuttingDown() {
				return
			}
			continue
		}
		c.rtr.Dispatch(e)
	}
}
