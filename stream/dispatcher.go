package stream

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/justapithecus/screener/log"
	"github.com/justapithecus/screener/metrics"
	"github.com/justapithecus/screener/sse"
	"github.com/justapithecus/screener/types"
)

// Handler receives every event in arrival order, including the terminal one.
// It runs synchronously on the reading goroutine.
type Handler func(ev *types.StreamEvent)

// Recorder observes every delivered event. Errors are logged and otherwise ignored.
type Recorder interface {
	WriteEvent(ev *types.StreamEvent) error
}

// Outcome is the result of a stream that ended with a complete event.
type Outcome struct {
	// Terminal is the complete event; callers decode their aggregate from it.
	Terminal *types.StreamEvent
	// Events is the number of events delivered to the handler, terminal included.
	Events int
	// Skipped is the number of malformed records dropped.
	Skipped  int
	Duration time.Duration
}

// Decode unmarshals the terminal payload into v.
func (o *Outcome) Decode(v any) error {
	return o.Terminal.Decode(v)
}

// Dispatcher drives one stream body through the decoder into a handler.
//   - Events are delivered in order
//   - Malformed records are skipped
//   - The first terminal event ends the stream; nothing after it is read
//   - A fatal decode error (over-long line) ends the stream as incomplete
type Dispatcher struct {
	decoder   *sse.Decoder
	handler   Handler
	recorder  Recorder
	logger    *log.Logger
	collector *metrics.Collector
	events    int
	skipped   int
}

// NewDispatcher creates a dispatcher over a response body.
// handler may be nil when the caller only needs the terminal event.
func NewDispatcher(r io.Reader, handler Handler, recorder Recorder, logger *log.Logger, collector *metrics.Collector) *Dispatcher {
	return &Dispatcher{
		decoder:   sse.NewDecoder(r),
		handler:   handler,
		recorder:  recorder,
		logger:    logger,
		collector: collector,
	}
}

// Run reads until a terminal event, end of stream, or cancellation.
// Returns:
//   - *Outcome, nil: a complete event arrived
//   - *StreamError: an error event arrived
//   - *IncompleteStreamError: the stream ended before a terminal event
//   - *CanceledError: ctx was canceled
func (d *Dispatcher) Run(ctx context.Context) (*Outcome, error) {
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return nil, d.canceled(err)
		}

		rec, err := d.decoder.Next()
		if err != nil {
			if sse.IsSkippable(err) {
				d.skipped++
				d.collector.IncMalformedSkipped()
				d.logger.Warn("skipping malformed stream record", map[string]any{
					"error": err.Error(),
				})
				continue
			}

			// A read failure caused by cancellation is not an incomplete stream.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, d.canceled(ctxErr)
			}

			reason := "read failed"
			if errors.Is(err, io.EOF) {
				reason = "eof"
				err = nil
			} else if sse.IsFatalDecodeError(err) {
				reason = "undecodable stream"
			}
			return nil, d.incomplete(reason, err)
		}

		if rec.Done {
			return nil, d.incomplete("done without terminal", nil)
		}

		if err := ctx.Err(); err != nil {
			return nil, d.canceled(err)
		}

		ev := rec.Event
		d.deliver(ev)

		if !ev.Type.IsTerminal() {
			continue
		}

		if ev.Type == types.EventTypeError {
			msg := ev.Message
			if msg == "" {
				msg = DefaultStreamErrorMessage
			}
			d.collector.IncStreamServerError()
			d.logger.Warn("stream ended with error event", map[string]any{
				"message": msg,
				"events":  d.events,
			})
			return nil, &StreamError{Message: msg}
		}

		d.collector.IncStreamCompleted()
		return &Outcome{
			Terminal: ev,
			Events:   d.events,
			Skipped:  d.skipped,
			Duration: time.Since(start),
		}, nil
	}
}

func (d *Dispatcher) deliver(ev *types.StreamEvent) {
	d.events++
	d.collector.IncEventReceived(string(ev.Type))

	if !ev.Type.IsKnown() {
		d.logger.Debug("unknown event type", map[string]any{
			"type": string(ev.Type),
		})
	}

	if d.recorder != nil {
		if err := d.recorder.WriteEvent(ev); err != nil {
			d.logger.Warn("failed to record event", map[string]any{
				"type":  string(ev.Type),
				"error": err.Error(),
			})
		}
	}

	if d.handler != nil {
		d.handler(ev)
	}
}

func (d *Dispatcher) canceled(err error) error {
	d.collector.IncStreamCanceled()
	d.logger.Debug("stream canceled", map[string]any{
		"events": d.events,
	})
	return &CanceledError{Err: err}
}

func (d *Dispatcher) incomplete(reason string, err error) error {
	d.collector.IncStreamIncomplete()
	fields := map[string]any{
		"reason": reason,
		"events": d.events,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	d.logger.Warn("stream ended without terminal event", fields)
	return &IncompleteStreamError{Reason: reason, Events: d.events, Err: err}
}
