package datasets

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/socrata/socrata-sdk-go/model"
	"github.com/socrata/socrata-sdk-go/pkg/config"
)

type Option func(*Client) error

// WithConfig applies every setting of a loaded configuration.
func WithConfig(cfg config.Config) Option {
	return func(c *Client) error {
		url, err := cfg.URL()
		if err != nil {
			return err
		}
		c.url = url
		c.auth = model.DefaultAuthenticator{Username: cfg.Username, Password: cfg.Password}
		c.appToken = cfg.AppToken
		c.gzip = cfg.Gzip
		c.rateLimiterSetting.RequestCount = cfg.RequestsPerMinute
		c.pollInterval = cfg.PollInterval
		c.maxPolls = cfg.MaxPolls
		c.maxFlushRetries = cfg.MaxFlushRetries
		if cfg.Timeout > 0 {
			c.timeout = cfg.Timeout
		}
		return nil
	}
}

// WithEndpoint is used to set the base URL of the API, e.g. https://data.example.com/api
func WithEndpoint(endpoint string) Option {
	return func(c *Client) error {
		c.url = endpoint
		return nil
	}
}

// WithCredentials is used for passing the username and password sent with every request.
func WithCredentials(username, password string) Option {
	return func(c *Client) error {
		c.auth = model.DefaultAuthenticator{Username: username, Password: password}
		return nil
	}
}

// WithAuthentication is used for passing a custom authentication provider.
func WithAuthentication(authProvider model.AuthProvider) Option {
	return func(c *Client) error {
		c.auth = authProvider
		return nil
	}
}

// WithAppToken is used for passing the application token.
func WithAppToken(appToken string) Option {
	return func(c *Client) error {
		c.appToken = appToken
		return nil
	}
}

// WithHTTPClient is used to set HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) error {
		c.client = client
		return nil
	}
}

// WithGzipCompression can be used to enable/disable gzip compression of request bodies
// Note: By default, gzip compression is disabled.
func WithGzipCompression(gzip bool) Option {
	return func(c *Client) error {
		c.gzip = gzip
		return nil
	}
}

// WithRateLimit is used to limit the request count per minute
func WithRateLimit(requestCount int) Option {
	return func(c *Client) error {
		c.rateLimiterSetting.RequestCount = requestCount
		return nil
	}
}

// WithPollInterval sets the pause between two status polls of a copy or publish.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) error {
		c.pollInterval = interval
		return nil
	}
}

// WithMaxPolls bounds the number of status polls of a copy or publish.
func WithMaxPolls(maxPolls int) Option {
	return func(c *Client) error {
		c.maxPolls = maxPolls
		return nil
	}
}

// WithMaxFlushRetries bounds the re-flushes after partial batch failures.
func WithMaxFlushRetries(maxRetries int) Option {
	return func(c *Client) error {
		c.maxFlushRetries = maxRetries
		return nil
	}
}

// WithBatchingInterval flushes queued writes in the background every interval.
func WithBatchingInterval(batchingInterval time.Duration) Option {
	return func(c *Client) error {
		c.batchInterval = batchingInterval
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}
