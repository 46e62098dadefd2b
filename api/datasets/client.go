package datasets

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/socrata/socrata-sdk-go/internal/client"
	"github.com/socrata/socrata-sdk-go/model"
	"github.com/socrata/socrata-sdk-go/pkg/batch"
	"github.com/socrata/socrata-sdk-go/pkg/operation"
	rateLimiter "github.com/socrata/socrata-sdk-go/pkg/ratelimiter"
	"github.com/socrata/socrata-sdk-go/utils"
)

const (
	createDatasetURI       = "/views.json"
	userDatasetsURIFormat  = "/users/%s/views.json"
	defaultPollInterval    = 1 * time.Second
	defaultMaxPolls        = 300
	defaultMaxFlushRetries = 10
	defaultTimeout         = 30 * time.Second
)

// Client talks to one Socrata site. Writes queued through any Dataset of
// a Client share one batch queue.
type Client struct {
	client             *http.Client
	url                string
	auth               model.AuthProvider
	appToken           string
	gzip               bool
	timeout            time.Duration
	rateLimiterSetting rateLimiter.RateLimiterSetting
	rateLimiter        rateLimiter.RateLimiter
	logger             *slog.Logger
	pollInterval       time.Duration
	maxPolls           int
	maxFlushRetries    int
	batchInterval      time.Duration

	transport *client.Transport
	batch     *batch.Accumulator
	poller    *operation.Poller
}

// NewClient initializes Client. The rate limiter and, when enabled, the
// background flush stop when ctx is done.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	c := Client{
		auth:               model.DefaultAuthenticator{},
		timeout:            defaultTimeout,
		rateLimiterSetting: rateLimiter.RateLimiterSetting{},
		logger:             slog.Default(),
		pollInterval:       defaultPollInterval,
		maxPolls:           defaultMaxPolls,
		maxFlushRetries:    defaultMaxFlushRetries,
	}

	for _, opt := range opts {
		if err := opt(&c); err != nil {
			return nil, err
		}
	}

	if c.url == "" {
		return nil, fmt.Errorf("missing endpoint: use WithEndpoint or WithConfig")
	}
	if c.client == nil {
		c.client = client.Client()
		c.client.Timeout = c.timeout
	}

	var err error
	c.rateLimiter, err = rateLimiter.New(c.rateLimiterSetting)
	if err != nil {
		return nil, err
	}
	go c.rateLimiter.Run(ctx)

	c.transport, err = client.NewTransport(client.TransportConfig{
		Client:      c.client,
		RateLimiter: c.rateLimiter,
		Logger:      c.logger,
		Url:         c.url,
		Auth:        c.auth,
		AppToken:    c.appToken,
		Gzip:        c.gzip,
	})
	if err != nil {
		return nil, err
	}
	c.batch = batch.NewAccumulator(c.transport,
		batch.WithMaxRetries(c.maxFlushRetries),
		batch.WithLogger(c.logger))
	c.poller = operation.NewPoller(c.transport,
		operation.WithInterval(c.pollInterval),
		operation.WithMaxPolls(c.maxPolls),
		operation.WithLogger(c.logger))

	if c.batchInterval > 0 {
		go c.batch.Run(ctx, c.batchInterval)
	}
	return &c, nil
}

// Dataset returns a handle on the existing dataset id.
func (c *Client) Dataset(id string) *Dataset {
	return &Dataset{client: c, id: id}
}

// CreateDataset creates a new, empty dataset. The name must be unique.
func (c *Client) CreateDataset(ctx context.Context, name, description string) (*Dataset, error) {
	if name == "" {
		return nil, fmt.Errorf("dataset name must not be empty")
	}
	env, err := c.do(ctx, http.MethodPost, createDatasetURI, model.DatasetInput{Name: name, Description: description})
	if err != nil {
		return nil, fmt.Errorf("error while creating dataset %q: %w", name, err)
	}
	id := env.ID()
	if id == "" {
		return nil, fmt.Errorf("error while creating dataset %q: response carries no id", name)
	}
	return c.Dataset(id), nil
}

// UserDatasets returns the publicly accessible datasets owned by username.
func (c *Client) UserDatasets(ctx context.Context, username string) ([]*Dataset, error) {
	uri := fmt.Sprintf(userDatasetsURIFormat, url.PathEscape(username))
	env, err := c.do(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("error while listing datasets of %q: %w", username, err)
	}
	if env.Kind != utils.KindList {
		return nil, fmt.Errorf("error while listing datasets of %q: expected a list, got %s", username, env.Kind)
	}

	var views []struct {
		ID string `json:"id"`
	}
	if err := decode(env, &views); err != nil {
		return nil, fmt.Errorf("error while listing datasets of %q: %w", username, err)
	}
	result := make([]*Dataset, 0, len(views))
	for _, view := range views {
		result = append(result, c.Dataset(view.ID))
	}
	return result, nil
}

// Flush sends every queued write as one batch.
func (c *Client) Flush(ctx context.Context) (*batch.FlushReport, error) {
	return c.batch.Flush(ctx)
}

// PendingWrites returns the number of queued writes.
func (c *Client) PendingWrites() int {
	return c.batch.Len()
}

// Shutdown flushes queued writes and stops the rate limiter.
func (c *Client) Shutdown(ctx context.Context) error {
	defer c.rateLimiter.Shutdown(ctx)
	report, err := c.batch.Flush(ctx)
	if err != nil {
		return err
	}
	return report.Err()
}

// do sends body as JSON and returns the response once it is known to be
// clean.
func (c *Client) do(ctx context.Context, method, uri string, body interface{}) (*utils.Envelope, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("error in marshaling request body: %w", err)
		}
	}
	env, err := c.transport.Request(ctx, method, uri, payload)
	if err != nil {
		return nil, err
	}
	if emptyReply(method, env) {
		return env, nil
	}
	if err := env.Err(); err != nil {
		c.logger.Error("request rejected", "method", method, "uri", uri, "request_id", env.RequestID, "error", err)
		return nil, err
	}
	return env, nil
}

// emptyReply reports a successful answer without a body, which deletes
// are allowed to return.
func emptyReply(method string, env *utils.Envelope) bool {
	if env.Kind != utils.KindMessage || strings.TrimSpace(env.Message) != "" {
		return false
	}
	return method == http.MethodDelete || env.StatusCode == http.StatusNoContent
}

// decode converts the structured payload of env into v.
func decode(env *utils.Envelope, v interface{}) error {
	var payload interface{}
	switch env.Kind {
	case utils.KindObject:
		payload = env.Object
	case utils.KindList:
		payload = env.List
	default:
		return fmt.Errorf("cannot decode %s response", env.Kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
