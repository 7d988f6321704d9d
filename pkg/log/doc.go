// Package log is the public entry point to Hydrogen's asynchronous logging
// core: a bounded producer/consumer queue, per-destination severity
// filtering, console/file/database/notify sinks, and a remote HTTP-batch
// shipper. Callers never see any of that machinery: they call Init once at
// process startup, Log from any goroutine at any point afterward, and
// Shutdown once at process exit.
package log
