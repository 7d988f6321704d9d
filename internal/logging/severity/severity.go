// Package severity defines the log severity scale, the fixed destination
// enumeration, and the per-destination filter tables used to decide which
// sinks an outgoing record is admitted to.
package severity

import "strings"

// Level is a totally ordered severity scale. Comparisons must use the
// ordinal value, never the label.
type Level int

const (
	Trace Level = iota
	Debug
	State
	Alert
	Error
	Fatal
	Quiet
)

var levelLabels = [...]string{"TRACE", "DEBUG", "STATE", "ALERT", "ERROR", "FATAL", "QUIET"}

// String returns the fixed uppercase label for the level.
func (l Level) String() string {
	if l < Trace || l > Quiet {
		return "UNKNOWN"
	}
	return levelLabels[l]
}

// UnmarshalYAML allows filter-table configuration to spell levels as their
// names ("debug", "ALERT", ...) instead of raw ordinals.
func (l *Level) UnmarshalYAML(unmarshal func(any) error) error {
	var text string
	if err := unmarshal(&text); err == nil {
		*l = Parse(text, Debug)
		return nil
	}
	var ordinal int
	if err := unmarshal(&ordinal); err != nil {
		return err
	}
	*l = Level(ordinal)
	return nil
}

// Parse resolves a case-insensitive level name, falling back to def when the
// text does not match one of the seven labels.
func Parse(text string, def Level) Level {
	switch strings.ToUpper(strings.TrimSpace(text)) {
	case "TRACE":
		return Trace
	case "DEBUG":
		return Debug
	case "STATE":
		return State
	case "ALERT":
		return Alert
	case "ERROR":
		return Error
	case "FATAL":
		return Fatal
	case "QUIET":
		return Quiet
	default:
		return def
	}
}

// Destination is one of the fixed log sinks.
type Destination int

const (
	Console Destination = iota
	File
	Remote
	Database
	Notify
)

var destinationNames = [...]string{"Console", "File", "Remote", "Database", "Notify"}

func (d Destination) String() string {
	if d < Console || d > Notify {
		return "Unknown"
	}
	return destinationNames[d]
}

// Destinations enumerates the fixed destination set in router dispatch
// order: Console, File, Remote, Database, Notify.
var Destinations = [...]Destination{Console, File, Remote, Database, Notify}

// Hints is a per-destination bitmask set by the caller at enqueue time,
// recording which destinations a record is a *candidate* for (subject to
// the severity filter below).
type Hints uint8

const (
	HintConsole Hints = 1 << iota
	HintFile
	HintDatabase
	HintNotify
	// HintRemote is implied by severity alone: any record at or above the
	// shipper's configured minimum severity is offered to the shipper
	// regardless of caller hint, so there is no HintRemote bit.
)

// Has reports whether bit is set in h.
func (h Hints) Has(bit Hints) bool {
	return h&bit != 0
}

// FilterTable is the per-destination configuration: an enabled flag, a
// default minimum severity, and per-subsystem overrides.
type FilterTable struct {
	Enabled    bool             `yaml:"enabled"`
	Default    Level            `yaml:"default"`
	Subsystems map[string]Level `yaml:"subsystems,omitempty"`
}

// Threshold returns the configured minimum severity for subsystem, or the
// destination default when no per-subsystem override exists.
func (f FilterTable) Threshold(subsystem string) Level {
	if f.Subsystems != nil {
		if lvl, ok := f.Subsystems[subsystem]; ok {
			return lvl
		}
	}
	return f.Default
}

// Admits reports whether a record at the given subsystem/level is admitted
// to this destination: destination.enabled && s >= threshold(destination,
// subsystem), honoring the Trace ("always") and Quiet ("never") special
// cases.
func (f FilterTable) Admits(subsystem string, level Level) bool {
	if !f.Enabled {
		return false
	}
	th := f.Threshold(subsystem)
	switch th {
	case Trace:
		return true
	case Quiet:
		return false
	default:
		return level >= th
	}
}
