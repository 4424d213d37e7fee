package events

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SSEWriter writes events to an HTTP response as Server-Sent Events.
type SSEWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// NewSSEWriter wraps w. Writes are flushed after every event when w
// implements http.Flusher.
func NewSSEWriter(w io.Writer) *SSEWriter {
	f, _ := w.(http.Flusher)
	return &SSEWriter{w: w, flusher: f}
}

// SetHeaders sets the event-stream response headers.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Send writes one frame:
//
//	data: {json}\n\n
func (sw *SSEWriter) Send(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("events: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("events: write event: %w", err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

var _ Sink = (*SSEWriter)(nil)

// Received is one frame read by ReadEvents. Err is set when the frame's
// payload was not a valid event; reading continues after it.
type Received struct {
	Event Event
	Err   error
}

// ReadEvents parses an SSE stream from body. The channel closes when the
// body is exhausted, a read fails, or ctx is done; body is closed then.
//
// Lines starting with ":" are comments. Consecutive data lines are joined
// with newlines and an empty line ends the frame. Other fields are ignored.
func ReadEvents(ctx context.Context, body io.ReadCloser) <-chan Received {
	ch := make(chan Received)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		var buf strings.Builder

		flush := func() bool {
			if buf.Len() == 0 {
				return true
			}
			var r Received
			if err := json.Unmarshal([]byte(buf.String()), &r.Event); err != nil {
				r.Err = fmt.Errorf("events: unmarshal frame: %w", err)
			}
			buf.Reset()
			select {
			case ch <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			line := scanner.Text()
			switch {
			case line == "":
				if !flush() {
					return
				}
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "data:"):
				if buf.Len() > 0 {
					buf.WriteByte('\n')
				}
				buf.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			}
		}
		flush()
	}()
	return ch
}
