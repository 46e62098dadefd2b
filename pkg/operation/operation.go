// Package operation drives server-side operations that complete
// asynchronously, such as copying or publishing a dataset. The operation is
// re-requested until the server stops reporting it as processing.
package operation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/socrata/socrata-sdk-go/utils"
)

// StatusProcessing is the status reported while an operation is running.
const StatusProcessing = "processing"

const (
	defaultPollInterval = 1 * time.Second
	defaultMaxPolls     = 300
)

// Method selects the publication operation to run.
type Method string

const (
	MethodCopy       Method = "copy"
	MethodCopySchema Method = "copySchema"
	// MethodPublish publishes a working copy; it is sent without a method
	// parameter.
	MethodPublish Method = ""
)

func (m Method) String() string {
	if m == MethodPublish {
		return "publish"
	}
	return string(m)
}

// Requester performs one round trip against the API.
type Requester interface {
	Request(ctx context.Context, method, uri string, body []byte) (*utils.Envelope, error)
}

// Poller runs operations to completion.
type Poller struct {
	requester Requester
	logger    *slog.Logger
	interval  time.Duration
	maxPolls  int
}

type Option func(*Poller)

// WithInterval sets the pause between two polls. Zero polls back to back.
func WithInterval(interval time.Duration) Option {
	return func(p *Poller) {
		p.interval = interval
	}
}

// WithMaxPolls bounds the number of requests issued for one operation.
func WithMaxPolls(maxPolls int) Option {
	return func(p *Poller) {
		p.maxPolls = maxPolls
	}
}

// WithLogger sets the logger used to report progress.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// NewPoller creates a Poller sending through requester.
func NewPoller(requester Requester, opts ...Option) *Poller {
	p := &Poller{
		requester: requester,
		logger:    slog.Default(),
		interval:  defaultPollInterval,
		maxPolls:  defaultMaxPolls,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxPolls <= 0 {
		p.maxPolls = defaultMaxPolls
	}
	return p
}

// URI returns the publication endpoint for method on the dataset id.
func URI(method Method, id string) string {
	uri := "/views/" + url.PathEscape(id) + "/publication"
	if method != MethodPublish {
		uri += "?method=" + url.QueryEscape(string(method))
	}
	return uri
}

// RunUntilComplete starts method on the dataset resourceID and polls until
// the reported status is no longer processing. It returns the id of the
// resulting dataset, which is the new dataset for copies.
//
// Polling stops with a *PollTimeoutError once the poll budget is spent or
// ctx reaches its deadline.
func (p *Poller) RunUntilComplete(ctx context.Context, method Method, resourceID string) (string, error) {
	uri := URI(method, resourceID)
	limiter := p.limiter()

	var env *utils.Envelope
	var err error
	for polls := 1; ; polls++ {
		if err := limiter.Wait(ctx); err != nil {
			return "", p.timeout(method, resourceID, polls-1, err)
		}
		env, err = p.requester.Request(ctx, http.MethodPost, uri, nil)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", p.timeout(method, resourceID, polls, ctxErr)
			}
			return "", fmt.Errorf("error while running %s on %s: %w", method, resourceID, err)
		}
		status := env.Status()
		if status != StatusProcessing {
			p.logger.Debug("operation finished", "operation", method.String(), "id", resourceID, "status", status, "polls", polls)
			break
		}
		if polls >= p.maxPolls {
			return "", p.timeout(method, resourceID, polls, nil)
		}
		p.logger.Debug("operation still processing", "operation", method.String(), "id", resourceID, "polls", polls)
	}

	if err := env.Err(); err != nil {
		return "", fmt.Errorf("error while running %s on %s: %w", method, resourceID, err)
	}
	return env.ID(), nil
}

func (p *Poller) limiter() *rate.Limiter {
	if p.interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(p.interval), 1)
}

func (p *Poller) timeout(method Method, resourceID string, polls int, cause error) error {
	err := &PollTimeoutError{Operation: method, ResourceID: resourceID, Polls: polls, Err: cause}
	p.logger.Error("operation did not complete", "operation", method.String(), "id", resourceID, "polls", polls, "error", cause)
	return err
}

// PollTimeoutError reports an operation still processing when polling had
// to stop.
type PollTimeoutError struct {
	Operation  Method
	ResourceID string
	Polls      int
	Err        error
}

func (e *PollTimeoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s on %s still processing after %d polls: %v", e.Operation, e.ResourceID, e.Polls, e.Err)
	}
	return fmt.Sprintf("%s on %s still processing after %d polls", e.Operation, e.ResourceID, e.Polls)
}

func (e *PollTimeoutError) Unwrap() error {
	return e.Err
}

// IsPollTimeout reports whether err is a *PollTimeoutError.
func IsPollTimeout(err error) bool {
	var timeoutErr *PollTimeoutError
	return errors.As(err, &timeoutErr)
}
