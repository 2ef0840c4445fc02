// Package metrics provides per-process counters for streaming calls,
// guarded submissions and the scorecard store.
//
// The Collector is a leaf package with no internal dependencies. All
// increment methods are nil-receiver safe so library code can take an
// optional *Collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Stream lifecycle
	StreamsStarted     int64            `json:"streams_started"`
	StreamsCompleted   int64            `json:"streams_completed"`
	StreamServerErrors int64            `json:"stream_server_errors"`
	StreamsIncomplete  int64            `json:"streams_incomplete"`
	StreamsCanceled    int64            `json:"streams_canceled"`
	TransportFailures  int64            `json:"transport_failures"`
	EventsReceived     int64            `json:"events_received"`
	MalformedSkipped   int64            `json:"malformed_skipped"`
	EventsByType       map[string]int64 `json:"events_by_type"`

	// Submissions
	Submissions      int64 `json:"submissions"`
	Retries          int64 `json:"retries"`
	RetriesExhausted int64 `json:"retries_exhausted"`
	GuardRejections  int64 `json:"guard_rejections"`

	// Scorecard store
	ScorecardWriteSuccess int64 `json:"scorecard_write_success"`
	ScorecardWriteFailure int64 `json:"scorecard_write_failure"`

	// Notifications
	NotifySuccess int64 `json:"notify_success"`
	NotifyFailure int64 `json:"notify_failure"`

	// Dimensions (informational, set at construction)
	Feature        string `json:"feature,omitempty"`
	BackendURL     string `json:"backend_url,omitempty"`
	StorageBackend string `json:"storage_backend,omitempty"`
}

// Collector accumulates counters for the lifetime of a process.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	streamsStarted     int64
	streamsCompleted   int64
	streamServerErrors int64
	streamsIncomplete  int64
	streamsCanceled    int64
	transportFailures  int64
	eventsReceived     int64
	malformedSkipped   int64
	eventsByType       map[string]int64

	submissions      int64
	retries          int64
	retriesExhausted int64
	guardRejections  int64

	scorecardWriteSuccess int64
	scorecardWriteFailure int64

	notifySuccess int64
	notifyFailure int64

	feature        string
	backendURL     string
	storageBackend string
}

// NewCollector creates a Collector with dimension labels. All are optional.
func NewCollector(feature, backendURL, storageBackend string) *Collector {
	return &Collector{
		eventsByType:   make(map[string]int64),
		feature:        feature,
		backendURL:     backendURL,
		storageBackend: storageBackend,
	}
}

func (c *Collector) inc(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// --- Stream lifecycle ---

// IncStreamStarted records a streaming request being issued.
func (c *Collector) IncStreamStarted() {
	if c == nil {
		return
	}
	c.inc(&c.streamsStarted)
}

// IncStreamCompleted records a stream resolved by a complete event.
func (c *Collector) IncStreamCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.streamsCompleted)
}

// IncStreamServerError records a stream terminated by an error event.
func (c *Collector) IncStreamServerError() {
	if c == nil {
		return
	}
	c.inc(&c.streamServerErrors)
}

// IncStreamIncomplete records a stream that ended without a terminal event.
func (c *Collector) IncStreamIncomplete() {
	if c == nil {
		return
	}
	c.inc(&c.streamsIncomplete)
}

// IncStreamCanceled records a stream abandoned by its caller.
func (c *Collector) IncStreamCanceled() {
	if c == nil {
		return
	}
	c.inc(&c.streamsCanceled)
}

// IncTransportFailure records a request that failed before streaming began.
func (c *Collector) IncTransportFailure() {
	if c == nil {
		return
	}
	c.inc(&c.transportFailures)
}

// IncEventReceived records one decoded event, bucketed by type.
func (c *Collector) IncEventReceived(eventType string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsReceived++
	if c.eventsByType == nil {
		c.eventsByType = make(map[string]int64)
	}
	c.eventsByType[eventType]++
	c.mu.Unlock()
}

// IncMalformedSkipped records a record dropped by the decoder.
func (c *Collector) IncMalformedSkipped() {
	if c == nil {
		return
	}
	c.inc(&c.malformedSkipped)
}

// --- Submissions ---

// IncSubmission records a guarded submission that acquired the guard.
func (c *Collector) IncSubmission() {
	if c == nil {
		return
	}
	c.inc(&c.submissions)
}

// IncRetry records one retry attempt (attempt 2 onward).
func (c *Collector) IncRetry() {
	if c == nil {
		return
	}
	c.inc(&c.retries)
}

// IncRetriesExhausted records a submission that failed every attempt.
func (c *Collector) IncRetriesExhausted() {
	if c == nil {
		return
	}
	c.inc(&c.retriesExhausted)
}

// IncGuardRejection records a submission rejected because one was in flight.
func (c *Collector) IncGuardRejection() {
	if c == nil {
		return
	}
	c.inc(&c.guardRejections)
}

// --- Scorecard store ---
// Counted per call, not per record.

// IncScorecardWriteSuccess records a successful scorecard write.
func (c *Collector) IncScorecardWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.scorecardWriteSuccess)
}

// IncScorecardWriteFailure records a failed scorecard write.
func (c *Collector) IncScorecardWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.scorecardWriteFailure)
}

// --- Notifications ---

// IncNotifySuccess records a published notification.
func (c *Collector) IncNotifySuccess() {
	if c == nil {
		return
	}
	c.inc(&c.notifySuccess)
}

// IncNotifyFailure records a notification that could not be delivered.
func (c *Collector) IncNotifyFailure() {
	if c == nil {
		return
	}
	c.inc(&c.notifyFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
// The Collector can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	byType := make(map[string]int64, len(c.eventsByType))
	for k, v := range c.eventsByType {
		byType[k] = v
	}

	return Snapshot{
		StreamsStarted:     c.streamsStarted,
		StreamsCompleted:   c.streamsCompleted,
		StreamServerErrors: c.streamServerErrors,
		StreamsIncomplete:  c.streamsIncomplete,
		StreamsCanceled:    c.streamsCanceled,
		TransportFailures:  c.transportFailures,
		EventsReceived:     c.eventsReceived,
		MalformedSkipped:   c.malformedSkipped,
		EventsByType:       byType,

		Submissions:      c.submissions,
		Retries:          c.retries,
		RetriesExhausted: c.retriesExhausted,
		GuardRejections:  c.guardRejections,

		ScorecardWriteSuccess: c.scorecardWriteSuccess,
		ScorecardWriteFailure: c.scorecardWriteFailure,

		NotifySuccess: c.notifySuccess,
		NotifyFailure: c.notifyFailure,

		Feature:        c.feature,
		BackendURL:     c.backendURL,
		StorageBackend: c.storageBackend,
	}
}
