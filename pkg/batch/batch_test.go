package batch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/socrata/socrata-sdk-go/model"
	"github.com/socrata/socrata-sdk-go/utils"
)

type reply struct {
	body string
	err  error
}

// scriptedRequester answers each request with the next scripted reply and
// records what it was sent.
type scriptedRequester struct {
	replies  []reply
	payloads []model.BatchPayload
	uris     []string
	methods  []string
}

func (s *scriptedRequester) Request(_ context.Context, method, uri string, body []byte) (*utils.Envelope, error) {
	var payload model.BatchPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	s.payloads = append(s.payloads, payload)
	s.uris = append(s.uris, uri)
	s.methods = append(s.methods, method)

	if len(s.replies) == 0 {
		return nil, errors.New("unexpected request")
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	if next.err != nil {
		return nil, next.err
	}
	return utils.Classify([]byte(next.body)), nil
}

func urls(requests []model.BatchRequest) []string {
	var out []string
	for _, request := range requests {
		out = append(out, request.URL)
	}
	return out
}

func enqueueRows(a *Accumulator, names ...string) {
	for _, name := range names {
		a.Enqueue(http.MethodPost, "/views/abcd-1234/rows.json?row="+name, []byte(fmt.Sprintf(`{"name":%q}`, name)))
	}
}

func TestEnqueuePreservesOrder(t *testing.T) {
	a := NewAccumulator(&scriptedRequester{})
	enqueueRows(a, "A", "B", "C")

	pending := a.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, []string{
		"/views/abcd-1234/rows.json?row=A",
		"/views/abcd-1234/rows.json?row=B",
		"/views/abcd-1234/rows.json?row=C",
	}, urls(pending))
	assert.Equal(t, http.MethodPost, pending[0].RequestType)
	assert.Equal(t, `{"name":"A"}`, pending[0].Body)
}

func TestFlushEmptyQueue(t *testing.T) {
	requester := &scriptedRequester{}
	a := NewAccumulator(requester)

	report, err := a.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.RoundTrips)
	assert.Empty(t, requester.payloads)
}

func TestFlushFullSuccess(t *testing.T) {
	requester := &scriptedRequester{replies: []reply{
		{body: `[{"row":"A"},{"row":"B"},{"row":"C"}]`},
	}}
	a := NewAccumulator(requester)
	enqueueRows(a, "A", "B", "C")

	report, err := a.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 1, report.RoundTrips)
	assert.Equal(t, 3, report.Acknowledged)
	assert.Empty(t, report.Dropped)
	assert.NoError(t, report.Err())

	require.Len(t, requester.payloads, 1)
	assert.Equal(t, BatchURI, requester.uris[0])
	assert.Equal(t, http.MethodPost, requester.methods[0])
	assert.Equal(t, []string{
		"/views/abcd-1234/rows.json?row=A",
		"/views/abcd-1234/rows.json?row=B",
		"/views/abcd-1234/rows.json?row=C",
	}, urls(requester.payloads[0].Requests))
}

func TestFlushTwoRowWrites(t *testing.T) {
	requester := &scriptedRequester{replies: []reply{
		{body: `[{"_id":1},{"_id":2}]`},
	}}
	a := NewAccumulator(requester)
	enqueueRows(a, "A", "B")

	_, err := a.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, a.Len())
	assert.Len(t, requester.payloads, 1)
}

func TestFlushPartialFailureDropsPrefix(t *testing.T) {
	requester := &scriptedRequester{replies: []reply{
		{body: `[{"error":true,"message":"invalid row"}]`},
		{body: `[{"row":"B"},{"row":"C"}]`},
	}}
	a := NewAccumulator(requester)
	enqueueRows(a, "A", "B", "C")

	report, err := a.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, a.Len())
	assert.Equal(t, 2, report.RoundTrips)
	assert.Equal(t, 2, report.Acknowledged)

	require.Len(t, report.Dropped, 1)
	assert.Equal(t, "/views/abcd-1234/rows.json?row=A", report.Dropped[0].Request.URL)
	assert.Error(t, report.Err())

	require.Len(t, requester.payloads, 2)
	assert.Equal(t, []string{
		"/views/abcd-1234/rows.json?row=B",
		"/views/abcd-1234/rows.json?row=C",
	}, urls(requester.payloads[1].Requests))
}

func TestFlushPartialFailureKeepsSuffixWhenReflushFails(t *testing.T) {
	requester := &scriptedRequester{replies: []reply{
		{body: `[{"error":true,"message":"invalid row"}]`},
		{body: `Bad Gateway`},
	}}
	a := NewAccumulator(requester)
	enqueueRows(a, "A", "B", "C")

	report, err := a.Flush(context.Background())
	require.Error(t, err)
	var protocolErr *utils.ProtocolError
	assert.True(t, errors.As(err, &protocolErr))
	assert.Equal(t, 2, report.RoundTrips)
	assert.Len(t, report.Dropped, 1)
	assert.Equal(t, []string{
		"/views/abcd-1234/rows.json?row=B",
		"/views/abcd-1234/rows.json?row=C",
	}, urls(a.Pending()))
}

func TestFlushPartialFailureInTheMiddle(t *testing.T) {
	requester := &scriptedRequester{replies: []reply{
		{body: `[{"row":"A"},{"row":"B"},{"error":true}]`},
		{body: `[{"row":"D"},{"row":"E"}]`},
	}}
	a := NewAccumulator(requester)
	enqueueRows(a, "A", "B", "C", "D", "E")

	report, err := a.Flush(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Acknowledged)
	require.Len(t, report.Dropped, 1)
	assert.Equal(t, "/views/abcd-1234/rows.json?row=C", report.Dropped[0].Request.URL)
	assert.Equal(t, []string{
		"/views/abcd-1234/rows.json?row=D",
		"/views/abcd-1234/rows.json?row=E",
	}, urls(requester.payloads[1].Requests))
}

func TestFlushNotCleanLeavesQueue(t *testing.T) {
	tests := []struct {
		name  string
		reply reply
	}{
		{name: "transport failure", reply: reply{err: &utils.TransportError{Method: http.MethodPost, URL: BatchURI, Err: errors.New("connection refused")}}},
		{name: "unstructured body", reply: reply{body: `<html>Service Unavailable</html>`}},
		{name: "server error object", reply: reply{body: `{"error":true,"message":"batch too large"}`}},
		{name: "object instead of list", reply: reply{body: `{"status":"ok"}`}},
		{name: "empty result list", reply: reply{body: `[]`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requester := &scriptedRequester{replies: []reply{tt.reply}}
			a := NewAccumulator(requester)
			enqueueRows(a, "A", "B", "C")

			report, err := a.Flush(context.Background())
			assert.Error(t, err)
			assert.Equal(t, 1, report.RoundTrips)
			assert.Empty(t, report.Dropped)
			assert.Equal(t, []string{
				"/views/abcd-1234/rows.json?row=A",
				"/views/abcd-1234/rows.json?row=B",
				"/views/abcd-1234/rows.json?row=C",
			}, urls(a.Pending()))
		})
	}
}

func TestFlushRetryLimit(t *testing.T) {
	requester := &scriptedRequester{replies: []reply{
		{body: `[{"error":true}]`},
		{body: `[{"error":true}]`},
	}}
	a := NewAccumulator(requester, WithMaxRetries(1))
	enqueueRows(a, "A", "B", "C", "D")

	report, err := a.Flush(context.Background())
	var limitErr *RetryLimitError
	require.True(t, errors.As(err, &limitErr))
	assert.Equal(t, 2, limitErr.Remaining)
	assert.Equal(t, 2, report.RoundTrips)
	assert.Len(t, report.Dropped, 2)
	assert.Len(t, multierr.Errors(report.Err()), 2)
	assert.Equal(t, []string{
		"/views/abcd-1234/rows.json?row=C",
		"/views/abcd-1234/rows.json?row=D",
	}, urls(a.Pending()))
}

func TestDiscard(t *testing.T) {
	a := NewAccumulator(&scriptedRequester{})
	enqueueRows(a, "A", "B")

	discarded := a.Discard()
	assert.Len(t, discarded, 2)
	assert.Equal(t, 0, a.Len())
}

func TestRunFlushesPeriodically(t *testing.T) {
	requester := &scriptedRequester{replies: []reply{
		{body: `[{"row":"A"}]`},
	}}
	a := NewAccumulator(requester)
	enqueueRows(a, "A")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return a.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	<-done
	assert.Len(t, requester.payloads, 1)
}
