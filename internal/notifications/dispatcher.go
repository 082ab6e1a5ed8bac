package notifications

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"commentservice/internal/observability"
)

// DefaultSinkTimeout bounds each sink's delivery attempt.
const DefaultSinkTimeout = 5 * time.Second

// Sink delivers events to one destination.
type Sink interface {
	Name() string
	Publish(ctx context.Context, evt Event) error
}

// Dispatcher delivers each event to every sink in turn. Delivery is best
// effort: a failing sink is logged and counted, never surfaced to the caller.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
}

// NewDispatcher returns a dispatcher over sinks. A non-positive timeout uses DefaultSinkTimeout.
func NewDispatcher(timeout time.Duration, sinks ...Sink) *Dispatcher {
	if timeout <= 0 {
		timeout = DefaultSinkTimeout
	}
	kept := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &Dispatcher{sinks: kept, timeout: timeout}
}

// Publish sends evt to every sink. The request context's cancellation is
// detached so a client hanging up does not abort delivery.
func (d *Dispatcher) Publish(ctx context.Context, evt Event) {
	if d == nil {
		return
	}
	base := context.WithoutCancel(ctx)
	for _, sink := range d.sinks {
		sctx, cancel := context.WithTimeout(base, d.timeout)
		err := sink.Publish(sctx, evt)
		cancel()
		if err != nil {
			observability.EventPublishFailures.WithLabelValues(sink.Name()).Inc()
			slog.WarnContext(ctx, "comment event delivery failed",
				"sink", sink.Name(), "event", evt.Type, "comment_id", evt.CommentID, "err", err)
		}
	}
}

// Close releases sinks that hold connections.
func (d *Dispatcher) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	for _, sink := range d.sinks {
		if c, ok := sink.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
