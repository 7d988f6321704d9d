package router

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pilot-net/hydrogen/internal/logging/queue"
	"github.com/pilot-net/hydrogen/internal/logging/record"
	"github.com/pilot-net/hydrogen/internal/logging/severity"
)

type fakeSink struct {
	lines  []string
	closed bool
	failOn string
}

func (f *fakeSink) Accept(line string) error {
	if f.failOn != "" && strings.Contains(line, f.failOn) {
		return errFailSink
	}
	f.lines = append(f.lines, line)
	return nil
}
func (f *fakeSink) Flush() error { return nil }
func (f *fakeSink) Close() error { f.closed = true; return nil }

var errFailSink = &sinkError{"intentional test failure"}

type sinkError struct{ msg string }

func (e *sinkError) Error() string { return e.msg }

type fakeRemote struct {
	calls []string
	admit bool
}

func (f *fakeRemote) Enqueue(now time.Time, level severity.Level, subsystem, details string) bool {
	f.calls = append(f.calls, subsystem+":"+details)
	return f.admit
}

func allEnabledTables() map[severity.Destination]severity.FilterTable {
	m := make(map[severity.Destination]severity.FilterTable)
	for _, d := range severity.Destinations {
		m[d] = severity.FilterTable{Enabled: true, Default: severity.Trace}
	}
	return m
}

func entryFor(t *testing.T, subsystem, details string, hints severity.Hints, level severity.Level) queue.Entry {
	t.Helper()
	b, ok := record.Serialize(subsystem, details, hints)
	if !ok {
		t.Fatalf("Serialize failed")
	}
	return queue.Entry{Bytes: b, Size: len(b), Priority: int(level)}
}

func TestDispatchFanOutNoDoubleDispatch(t *testing.T) {
	console := NewConsoleSink(nullFile(t), nil)
	file := &fakeSink{}
	db := &fakeSink{}
	notify := &fakeSink{}
	remote := &fakeRemote{admit: true}

	r := New(Config{FilterTables: allEnabledTables()}, console, file, db, notify, remote, nil)

	hints := severity.HintConsole | severity.HintFile | severity.HintDatabase | severity.HintNotify
	e := entryFor(t, "WebServer", "hello", hints, severity.State)
	r.Dispatch(e)

	if len(file.lines) != 1 {
		t.Errorf("file sink got %d lines, want 1", len(file.lines))
	}
	if len(db.lines) != 1 {
		t.Errorf("database sink got %d lines, want 1", len(db.lines))
	}
	if len(notify.lines) != 1 {
		t.Errorf("notify sink got %d lines, want 1", len(notify.lines))
	}
	if len(remote.calls) != 1 {
		t.Errorf("remote got %d calls, want 1", len(remote.calls))
	}
}

func TestDispatchHonorsHintBits(t *testing.T) {
	file := &fakeSink{}
	db := &fakeSink{}
	r := New(Config{FilterTables: allEnabledTables()}, NewConsoleSink(nullFile(t), nil), file, db, nil, nil, nil)

	// Only LogFile set; database must not receive it even though its filter
	// table would otherwise admit the record.
	e := entryFor(t, "WS", "msg", severity.HintFile, severity.State)
	r.Dispatch(e)

	if len(file.lines) != 1 {
		t.Errorf("file sink got %d lines, want 1", len(file.lines))
	}
	if len(db.lines) != 0 {
		t.Errorf("database sink got %d lines, want 0 (hint bit unset)", len(db.lines))
	}
}

func TestDispatchSeverityFiltering(t *testing.T) {
	file := &fakeSink{}
	tables := allEnabledTables()
	ft := tables[severity.File]
	ft.Default = severity.Error
	tables[severity.File] = ft

	r := New(Config{FilterTables: tables}, NewConsoleSink(nullFile(t), nil), file, nil, nil, nil, nil)

	low := entryFor(t, "WS", "low", severity.HintFile, severity.Debug)
	high := entryFor(t, "WS", "high", severity.HintFile, severity.Fatal)
	r.Dispatch(low)
	r.Dispatch(high)

	if len(file.lines) != 1 || !strings.Contains(file.lines[0], "high") {
		t.Errorf("file sink lines = %v, want exactly the high-severity line", file.lines)
	}
}

func TestDispatchSinkFailureDoesNotStopOtherDestinations(t *testing.T) {
	file := &fakeSink{failOn: "boom"}
	db := &fakeSink{}

	r := New(Config{FilterTables: allEnabledTables()}, NewConsoleSink(nullFile(t), nil), file, db, nil, nil, nil)

	hints := severity.HintFile | severity.HintDatabase
	e := entryFor(t, "WS", "boom", hints, severity.State)
	r.Dispatch(e)

	if len(db.lines) != 1 {
		t.Errorf("database sink should still receive the record after file sink failure, got %d lines", len(db.lines))
	}
}

func TestDispatchMalformedRecordDropsWithoutPanic(t *testing.T) {
	r := New(Config{FilterTables: allEnabledTables()}, NewConsoleSink(nullFile(t), nil), nil, nil, nil, nil, nil)
	r.Dispatch(queue.Entry{Bytes: []byte("not json"), Size: 8, Priority: int(severity.Error)})
}

func TestFileSinkCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hydrogen.log")
	fs, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	if err := fs.Accept("line one\n"); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "line one") {
		t.Errorf("file contents = %q, want to contain %q", data, "line one")
	}
}

func TestFileSinkAcceptReachesDiskWithoutFlushOrClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hydrogen.log")
	fs, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	defer fs.Close()

	if err := fs.Accept("unflushed line\n"); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "unflushed line") {
		t.Errorf("file contents = %q, want the accepted line visible without calling Flush or Close", data)
	}
}

func nullFile(t *testing.T) *os.File {
	t.Helper()
	f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("open devnull: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}
