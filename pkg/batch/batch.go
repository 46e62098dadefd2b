// Package batch queues deferred writes and sends them as one request to the
// batch endpoint.
//
// A flush sends the whole queue in submission order. The server answers with
// one result per processed request and stops at the first failure, so a
// result list shorter than the queue means the last reported request failed.
// That request and everything before it leave the queue, and the remainder
// is flushed again.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/socrata/socrata-sdk-go/model"
	"github.com/socrata/socrata-sdk-go/utils"
)

const (
	// BatchURI is the endpoint accepting batched requests.
	BatchURI = "/batches"

	defaultMaxRetries = 10
)

// Requester performs one round trip against the API.
type Requester interface {
	Request(ctx context.Context, method, uri string, body []byte) (*utils.Envelope, error)
}

// Accumulator is a queue of deferred writes. Enqueue and Flush are
// serialized by one mutex, so a flush always sees a stable queue.
type Accumulator struct {
	requester  Requester
	logger     *slog.Logger
	maxRetries int

	lock  sync.Mutex
	queue []model.BatchRequest
}

type Option func(*Accumulator)

// WithMaxRetries bounds how many times the remainder of the queue is
// re-flushed after partial failures within one Flush call.
func WithMaxRetries(maxRetries int) Option {
	return func(a *Accumulator) {
		a.maxRetries = maxRetries
	}
}

// WithLogger sets the logger used to report flushes and dropped requests.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Accumulator) {
		a.logger = logger
	}
}

// NewAccumulator creates an empty Accumulator sending through requester.
func NewAccumulator(requester Requester, opts ...Option) *Accumulator {
	a := &Accumulator{
		requester:  requester,
		logger:     slog.Default(),
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxRetries < 0 {
		a.maxRetries = 0
	}
	return a
}

// Enqueue appends a request to the tail of the queue.
func (a *Accumulator) Enqueue(method, uri string, body []byte) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.queue = append(a.queue, model.BatchRequest{
		URL:         uri,
		RequestType: method,
		Body:        string(body),
	})
}

// Len returns the number of queued requests.
func (a *Accumulator) Len() int {
	a.lock.Lock()
	defer a.lock.Unlock()
	return len(a.queue)
}

// Pending returns a copy of the queued requests in send order.
func (a *Accumulator) Pending() []model.BatchRequest {
	a.lock.Lock()
	defer a.lock.Unlock()
	return append([]model.BatchRequest(nil), a.queue...)
}

// Discard empties the queue without sending it and returns what was queued.
func (a *Accumulator) Discard() []model.BatchRequest {
	a.lock.Lock()
	defer a.lock.Unlock()
	discarded := a.queue
	a.queue = nil
	return discarded
}

// Flush sends the queue to the batch endpoint.
//
// An empty queue is a no-op. When the response is not a clean result list
// the queue is left untouched and the error is returned. Requests dropped
// after a partial failure are listed in the report and are not an error
// by themselves.
func (a *Accumulator) Flush(ctx context.Context) (*FlushReport, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	report := &FlushReport{}
	if len(a.queue) == 0 {
		a.logger.Debug("batch queue is empty, nothing to flush")
		return report, nil
	}

	for retries := 0; ; retries++ {
		if retries > a.maxRetries {
			return report, &RetryLimitError{Retries: a.maxRetries, Remaining: len(a.queue)}
		}

		pending := a.queue
		results, err := a.send(ctx, pending)
		report.RoundTrips++
		if err != nil {
			a.logger.Error("batch flush failed, queue kept", "queued", len(pending), "error", err)
			return report, err
		}

		if len(results) >= len(pending) {
			if len(results) > len(pending) {
				a.logger.Warn("batch response has more results than requests", "requests", len(pending), "results", len(results))
			}
			report.Acknowledged += len(pending)
			a.queue = nil
			a.logger.Debug("batch flushed", "requests", len(pending), "round_trips", report.RoundTrips)
			return report, nil
		}

		failed := len(results) - 1
		dropped := DroppedItem{
			Request: pending[failed],
			Result:  results[failed],
		}
		a.logger.Error("batch request failed, dropping processed requests",
			"url", dropped.Request.URL,
			"request_type", dropped.Request.RequestType,
			"result", dropped.Result,
			"dropped", failed+1,
			"remaining", len(pending)-failed-1)

		report.Acknowledged += failed
		report.Dropped = append(report.Dropped, dropped)
		// a short result list always leaves at least one request behind
		a.queue = append([]model.BatchRequest(nil), pending[failed+1:]...)
	}
}

// send posts one batch and returns the per-request results.
func (a *Accumulator) send(ctx context.Context, requests []model.BatchRequest) ([]interface{}, error) {
	body, err := json.Marshal(model.BatchPayload{Requests: requests})
	if err != nil {
		return nil, fmt.Errorf("error in marshaling batch payload: %w", err)
	}
	env, err := a.requester.Request(ctx, http.MethodPost, BatchURI, body)
	if err != nil {
		return nil, fmt.Errorf("error while sending batch: %w", err)
	}
	if err := env.Err(); err != nil {
		return nil, fmt.Errorf("error in batch response: %w", err)
	}
	if env.Kind != utils.KindList {
		return nil, fmt.Errorf("error in batch response: expected a result list, got %s", env.Kind)
	}
	if len(env.List) == 0 {
		return nil, fmt.Errorf("error in batch response: no results for %d requests", len(requests))
	}
	return env.List, nil
}

// Run flushes the queue every interval until ctx is done.
func (a *Accumulator) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := a.Flush(ctx)
			if err != nil {
				a.logger.Error("periodic batch flush failed", "error", err)
				continue
			}
			if len(report.Dropped) > 0 {
				a.logger.Warn("periodic batch flush dropped requests", "error", report.Err())
			}
		}
	}
}

// FlushReport describes the outcome of one Flush call.
type FlushReport struct {
	// Acknowledged counts requests the server reported as processed.
	Acknowledged int
	// Dropped lists requests removed from the queue because the server
	// reported them as failed.
	Dropped []DroppedItem
	// RoundTrips counts requests sent to the batch endpoint.
	RoundTrips int
}

// Err combines the failures of the dropped requests, or returns nil when
// nothing was dropped.
func (r *FlushReport) Err() error {
	var err error
	for _, item := range r.Dropped {
		err = multierr.Append(err, item)
	}
	return err
}

// DroppedItem is a queued request the server failed to process.
type DroppedItem struct {
	Request model.BatchRequest
	Result  interface{}
}

func (d DroppedItem) Error() string {
	return fmt.Sprintf("batch request %s %s failed: %v", d.Request.RequestType, d.Request.URL, d.Result)
}

// RetryLimitError is returned when partial failures keep occurring after
// the configured number of re-flushes.
type RetryLimitError struct {
	Retries   int
	Remaining int
}

func (e *RetryLimitError) Error() string {
	return fmt.Sprintf("batch still failing after %d re-flushes, %d requests left in queue", e.Retries, e.Remaining)
}
