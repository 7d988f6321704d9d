package shipper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// sendTimeout bounds both the request send and the response read.
const sendTimeout = 5 * time.Second

// maxResponseRead caps how much of the response body we bother reading: the
// only thing that matters is the status code, so one KiB is ample for any
// error message a well-behaved endpoint would return.
const maxResponseRead = 1024

// transport POSTs a single batch to the remote log endpoint. It is a thin
// wrapper over *http.Client, reusing one client across calls for
// connection-pool hygiene. VictoriaLogs-style batch ingest expects the
// connection closed after each request, so Connection: close is set
// explicitly rather than relying on keep-alive.
type transport struct {
	client *http.Client
	url    string
}

func newTransport(url string) *transport {
	return &transport{
		client: &http.Client{Timeout: sendTimeout},
		url:    url,
	}
}

// send POSTs body to the configured URL, tagged with batchID for log
// correlation on the receiving end, and reports whether the remote endpoint
// accepted the batch (HTTP 200 or 204). Any transport-level error or
// non-2xx-success status is returned as an error; the caller (the shipper
// worker loop) decides whether to retry.
func (t *transport) send(ctx context.Context, body []byte, batchID uuid.UUID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/stream+json")
	req.Header.Set("Connection", "close")
	req.Header.Set("X-Batch-Id", batchID.String())
	req.Close = true

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending batch: %w", err)
	}
	defer resp.Body.Close()

	_, _ = io.CopyN(io.Discard, resp.Body, maxResponseRead)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("remote log endpoint returned status %d", resp.StatusCode)
	}
	return nil
}
