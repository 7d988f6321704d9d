package lifecycle

import (
	"os"
	"testing"
	"time"

	"github.com/pilot-net/hydrogen/internal/logging/router"
	"github.com/pilot-net/hydrogen/internal/logging/severity"
	"github.com/pilot-net/hydrogen/internal/logging/shipper"
)

func newTestController(t *testing.T) (*Controller, *router.ConsoleSink) {
	t.Helper()
	devnull, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open devnull: %v", err)
	}
	t.Cleanup(func() { devnull.Close() })

	console := router.NewConsoleSink(devnull, nil)
	tables := make(map[severity.Destination]severity.FilterTable)
	for _, d := range severity.Destinations {
		tables[d] = severity.FilterTable{Enabled: true, Default: severity.Trace}
	}
	ship := shipper.New()
	rtr := router.New(router.Config{FilterTables: tables}, console, nil, nil, nil, ship, nil)
	c := New(rtr, ship, nil)
	return c, console
}

func TestLifecycleStartsUninitialized(t *testing.T) {
	c, _ := newTestController(t)
	if c.State() != Uninitialized {
		t.Errorf("State() = %v, want Uninitialized", c.State())
	}
}

func TestInitMovesToRunningAndEnqueueDrains(t *testing.T) {
	c, _ := newTestController(t)
	if !c.Init() {
		t.Fatalf("Init() = false, want true")
	}
	if c.State() != Running {
		t.Errorf("State() = %v, want Running", c.State())
	}

	for i := 0; i < 50; i++ {
		c.Enqueue("Test", severity.State, "hello", severity.HintConsole)
	}

	c.Shutdown()
	if c.State() != Stopped {
		t.Errorf("State() after Shutdown = %v, want Stopped", c.State())
	}
	if n := c.primary.Size(); n != 0 {
		t.Errorf("primary queue holds %d records after Shutdown, want 0 (drained)", n)
	}
}

func TestDoubleInitIsRejected(t *testing.T) {
	c, _ := newTestController(t)
	if !c.Init() {
		t.Fatalf("first Init() should succeed")
	}
	if c.Init() {
		t.Errorf("second Init() should fail, not silently re-run")
	}
	c.Shutdown()
}

func TestShutdownIsIdempotent(t *testing.T) {
	c, _ := newTestController(t)
	c.Init()
	c.Shutdown()
	c.Shutdown() // must not deadlock or panic
	if c.State() != Stopped {
		t.Errorf("State() = %v, want Stopped", c.State())
	}
}

func TestEnqueueAfterStoppedIsNoop(t *testing.T) {
	c, _ := newTestController(t)
	c.Init()
	c.Shutdown()

	done := make(chan struct{})
	go func() {
		c.Enqueue("Test", severity.State, "late", severity.HintConsole)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Enqueue after Stopped blocked")
	}
}
