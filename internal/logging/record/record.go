// Package record implements the canonical in-queue log record, the
// consumer-time formatted stream line, and the remote-shipper document.
// None of it calls back into logging: serialization failures fail closed
// and are reported by the caller, never recursed into the queue.
package record

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pilot-net/hydrogen/internal/logging/severity"
)

// QueueRecord is the canonical in-queue JSON form of a log call: the
// destination-hint booleans travel inside the payload, kept deliberately as
// a legacy carry-over (see DESIGN.md).
type QueueRecord struct {
	Subsystem   string `json:"subsystem"`
	Details     string `json:"details"`
	LogConsole  bool   `json:"LogConsole"`
	LogFile     bool   `json:"LogFile"`
	LogDatabase bool   `json:"LogDatabase"`
	LogNotify   bool   `json:"LogNotify"`
}

// Serialize builds the canonical in-queue JSON record. It returns ok=false
// on marshal failure (fail closed); the caller is responsible for dropping
// the record and emitting a diagnostic.
func Serialize(subsystem, details string, hints severity.Hints) (b []byte, ok bool) {
	rec := QueueRecord{
		Subsystem:   subsystem,
		Details:     details,
		LogConsole:  hints.Has(severity.HintConsole),
		LogFile:     hints.Has(severity.HintFile),
		LogDatabase: hints.Has(severity.HintDatabase),
		LogNotify:   hints.Has(severity.HintNotify),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, false
	}
	return data, true
}

// Parse recovers a QueueRecord from its serialized form.
func Parse(b []byte) (QueueRecord, bool) {
	var rec QueueRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return QueueRecord{}, false
	}
	return rec, true
}

// FormatLine builds the on-the-wire console/file text: "YYYY-MM-DD
// HH:MM:SS.mmm  [ LEVEL ]  [ SUBSYSTEM ]  <details>\n", with level and
// subsystem right-padded to the given widths.
func FormatLine(ts time.Time, level severity.Level, subsystem, details string, levelWidth, subsystemWidth int) string {
	var b strings.Builder
	b.WriteString(ts.Format("2006-01-02 15:04:05.000"))
	b.WriteString("  [ ")
	b.WriteString(padRight(level.String(), levelWidth))
	b.WriteString(" ]  [ ")
	b.WriteString(padRight(subsystem, subsystemWidth))
	b.WriteString(" ]  ")
	b.WriteString(details)
	b.WriteByte('\n')
	return b.String()
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// RemoteRecord is the exact document shape shipped to the remote-log
// endpoint. Field declaration order fixes JSON key order, since
// encoding/json preserves struct field order.
type RemoteRecord struct {
	Time                     string `json:"_time"`
	Msg                      string `json:"_msg"`
	Level                    string `json:"level"`
	Subsystem                string `json:"subsystem"`
	App                      string `json:"app"`
	KubernetesNamespace      string `json:"kubernetes_namespace"`
	KubernetesPodName        string `json:"kubernetes_pod_name"`
	KubernetesContainerName  string `json:"kubernetes_container_name"`
	KubernetesNodeName       string `json:"kubernetes_node_name"`
	Host                     string `json:"host"`
}

// NewRemoteRecord builds a RemoteRecord for the given record at the instant
// now, using the shipper's cached environment labels.
func NewRemoteRecord(now time.Time, level severity.Level, subsystem, details, app, namespace, podName, containerName, nodeName, host string) RemoteRecord {
	return RemoteRecord{
		Time:                    now.UTC().Format(time.RFC3339Nano),
		Msg:                     details,
		Level:                   level.String(),
		Subsystem:               subsystem,
		App:                     app,
		KubernetesNamespace:     namespace,
		KubernetesPodName:       podName,
		KubernetesContainerName: containerName,
		KubernetesNodeName:      nodeName,
		Host:                    host,
	}
}

// MarshalJSONLine renders the remote record as a single compact JSON line,
// hand-built into one pre-sized builder. EscapeJSONString is used for every
// string field (each call returns its own escaped string); field order
// matches the struct declaration above.
func (r RemoteRecord) MarshalJSONLine() []byte {
	var b strings.Builder
	b.Grow(len(r.Msg) + len(r.Subsystem) + 192)

	b.WriteString(`{"_time":"`)
	b.WriteString(EscapeJSONString(r.Time))
	b.WriteString(`","_msg":"`)
	b.WriteString(EscapeJSONString(r.Msg))
	b.WriteString(`","level":"`)
	b.WriteString(EscapeJSONString(r.Level))
	b.WriteString(`","subsystem":"`)
	b.WriteString(EscapeJSONString(r.Subsystem))
	b.WriteString(`","app":"`)
	b.WriteString(EscapeJSONString(r.App))
	b.WriteString(`","kubernetes_namespace":"`)
	b.WriteString(EscapeJSONString(r.KubernetesNamespace))
	b.WriteString(`","kubernetes_pod_name":"`)
	b.WriteString(EscapeJSONString(r.KubernetesPodName))
	b.WriteString(`","kubernetes_container_name":"`)
	b.WriteString(EscapeJSONString(r.KubernetesContainerName))
	b.WriteString(`","kubernetes_node_name":"`)
	b.WriteString(EscapeJSONString(r.KubernetesNodeName))
	b.WriteString(`","host":"`)
	b.WriteString(EscapeJSONString(r.Host))
	b.WriteString(`"}`)

	return []byte(b.String())
}

const hexDigits = "0123456789abcdef"

// EscapeJSONString escapes a string for inclusion inside a JSON string
// literal: '"', '\\', and the named control characters \b \f \n \r \t get
// their two-character escapes, any other byte below 0x20 becomes a \u00xx
// escape, and everything else, including multi-byte UTF-8, passes through
// unchanged.
func EscapeJSONString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if c < 0x20 {
				b.WriteString(`\u00`)
				b.WriteByte(hexDigits[c>>4])
				b.WriteByte(hexDigits[c&0xf])
			} else {
				b.WriteByte(c)
			}
		}
	}
	return b.String()
}
