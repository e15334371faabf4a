// Package sse writes acquisition events to a client as Server-Sent
// Events.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-scribe/errors"
	"github.com/nijaru/yt-scribe/models"
	"github.com/nijaru/yt-scribe/services/transcript"
)

type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	log     *logrus.Entry
}

// NewWriter prepares w for event streaming. It fails when the
// underlying connection cannot flush. The write deadline is cleared
// because the stream outlives the server's write timeout.
func NewWriter(w http.ResponseWriter, log *logrus.Entry) (*Writer, error) {
	const op = "sse.NewWriter"

	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.Internal(op, nil, "streaming not supported")
	}

	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.WithError(err).Warn("Could not clear write deadline for event stream")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")

	return &Writer{w: w, flusher: flusher, log: log}, nil
}

// Stream forwards events until the channel closes or ctx is
// cancelled. Keepalive comments go out on the given interval so
// proxies do not drop the connection while the pipeline works.
func (sw *Writer) Stream(ctx context.Context, events <-chan transcript.Event, keepAlive time.Duration) error {
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := sw.writeEvent(ev); err != nil {
				return err
			}
		case <-ticker.C:
			if _, err := fmt.Fprintf(sw.w, ": keepalive %d\n\n", time.Now().Unix()); err != nil {
				return err
			}
			sw.flusher.Flush()
		}
	}
}

// writeEvent emits one event as SSE frames. A segments batch becomes
// one frame per segment with a single flush at the end.
func (sw *Writer) writeEvent(ev transcript.Event) error {
	switch ev.Type {
	case transcript.EventSegments:
		for _, seg := range ev.Segments {
			if err := sw.writeFrame("segment", models.NewSegmentEvent(seg)); err != nil {
				return err
			}
		}
	case transcript.EventStatus:
		if err := sw.writeFrame(string(ev.Type), ev.Status); err != nil {
			return err
		}
	case transcript.EventMethod:
		if err := sw.writeFrame(string(ev.Type), ev.Method); err != nil {
			return err
		}
	case transcript.EventProgress:
		if err := sw.writeFrame(string(ev.Type), ev.Progress); err != nil {
			return err
		}
	case transcript.EventDone:
		if err := sw.writeFrame(string(ev.Type), ev.Done); err != nil {
			return err
		}
	case transcript.EventError:
		if err := sw.writeFrame(string(ev.Type), ev.Error); err != nil {
			return err
		}
	default:
		sw.log.WithField("type", ev.Type).Warn("Dropping unknown event type")
		return nil
	}

	sw.flusher.Flush()
	return nil
}

func (sw *Writer) writeFrame(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
