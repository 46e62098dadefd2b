package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/socrata/socrata-sdk-go/model"
	rateLimiter "github.com/socrata/socrata-sdk-go/pkg/ratelimiter"
	"github.com/socrata/socrata-sdk-go/utils"
)

const (
	headerAppToken  = "X-App-Token"
	headerRequestID = "X-Request-Id"
	uploadFormField = "file"
	defaultTimeout  = 30 * time.Second
)

type RequestConfig struct {
	Client      *http.Client
	RateLimiter rateLimiter.RateLimiter
	Logger      *slog.Logger
	Url         string
	Body        []byte
	Uri         string
	Method      string
	Token       string
	AppToken    string
	ContentType string
	Gzip        bool
	Headers     map[string]string
}

// Client returns an http.Client with TLS 1.2 as the minimum version.
func Client() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: false, MinVersion: tls.VersionTLS12}
	return &http.Client{Transport: transport, Timeout: defaultTimeout}
}

// MakeRequest performs one authenticated round trip and classifies the
// response body. Any failure of the round trip itself, including a status
// outside 2xx, is logged and returned as a *utils.TransportError with a nil
// envelope.
func MakeRequest(ctx context.Context, reqConfig RequestConfig) (*utils.Envelope, error) {
	logger := reqConfig.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if !validMethod(reqConfig.Method) {
		return nil, fmt.Errorf("unsupported request method %q", reqConfig.Method)
	}

	payloadBody := reqConfig.Body
	var err error
	if reqConfig.Gzip && len(payloadBody) > 0 {
		payloadBody, err = utils.Gzip(payloadBody)
		if err != nil {
			return nil, fmt.Errorf("error while compressing body: %w", err)
		}
	}
	fullURL := reqConfig.Url + reqConfig.Uri

	var reqBody io.Reader
	if len(payloadBody) > 0 {
		reqBody = bytes.NewReader(payloadBody)
	}
	req, err := http.NewRequestWithContext(ctx, reqConfig.Method, fullURL, reqBody)
	if err != nil {
		return nil, err
	}

	requestID := uuid.New()
	if reqConfig.Token != "" {
		req.Header.Set("Authorization", reqConfig.Token)
	}
	if reqConfig.AppToken != "" {
		req.Header.Set(headerAppToken, reqConfig.AppToken)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", utils.BuildUserAgent())
	req.Header.Set(headerRequestID, requestID.String())
	if len(payloadBody) > 0 {
		contentType := reqConfig.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		req.Header.Set("Content-Type", contentType)
	}
	if reqConfig.Gzip && len(payloadBody) > 0 {
		req.Header.Set("Content-Encoding", "gzip")
	}
	for key, value := range reqConfig.Headers {
		req.Header.Set(key, value)
	}

	if reqConfig.RateLimiter != nil {
		if acquire, err := reqConfig.RateLimiter.Acquire(); !acquire {
			return nil, fmt.Errorf("request to %s not sent: %w", reqConfig.Uri, err)
		}
	}

	httpClient := reqConfig.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger.Debug("sending request", "method", reqConfig.Method, "uri", reqConfig.Uri, "request_id", requestID)
	httpResp, err := httpClient.Do(req)
	if err != nil {
		logger.Error("request failed", "method", reqConfig.Method, "uri", reqConfig.Uri, "request_id", requestID, "error", err)
		return nil, &utils.TransportError{Method: reqConfig.Method, URL: fullURL, Err: err}
	}

	env, err := utils.ConvertHTTPToEnvelope(httpResp, logger)
	if err != nil {
		logger.Error("request failed", "method", reqConfig.Method, "uri", reqConfig.Uri, "request_id", requestID, "error", err)
		return nil, err
	}
	return env, nil
}

// MakeUpload sends content as a multipart file upload. The request follows
// the same contract as MakeRequest.
func MakeUpload(ctx context.Context, reqConfig RequestConfig, fileName string, content io.Reader) (*utils.Envelope, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(uploadFormField, fileName)
	if err != nil {
		return nil, fmt.Errorf("error while creating multipart body: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("error while reading %s: %w", fileName, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("error while creating multipart body: %w", err)
	}

	reqConfig.Method = http.MethodPost
	reqConfig.Body = body.Bytes()
	reqConfig.ContentType = writer.FormDataContentType()
	// multipart bodies are sent as they are
	reqConfig.Gzip = false
	return MakeRequest(ctx, reqConfig)
}

func validMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// Transport binds the endpoint, credentials and HTTP settings shared by
// every request of one SDK client.
type Transport struct {
	client      *http.Client
	rateLimiter rateLimiter.RateLimiter
	logger      *slog.Logger
	url         string
	auth        model.AuthProvider
	appToken    string
	gzip        bool
}

// TransportConfig holds the settings of a Transport.
type TransportConfig struct {
	Client      *http.Client
	RateLimiter rateLimiter.RateLimiter
	Logger      *slog.Logger
	Url         string
	Auth        model.AuthProvider
	AppToken    string
	Gzip        bool
}

// NewTransport creates a Transport. Url is required; missing collaborators
// fall back to defaults.
func NewTransport(cfg TransportConfig) (*Transport, error) {
	if cfg.Url == "" {
		return nil, fmt.Errorf("missing endpoint url")
	}
	t := &Transport{
		client:      cfg.Client,
		rateLimiter: cfg.RateLimiter,
		logger:      cfg.Logger,
		url:         cfg.Url,
		auth:        cfg.Auth,
		appToken:    cfg.AppToken,
		gzip:        cfg.Gzip,
	}
	if t.client == nil {
		t.client = Client()
	}
	if t.rateLimiter == nil {
		t.rateLimiter = &rateLimiter.NoopRateLimiter{}
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.auth == nil {
		t.auth = model.DefaultAuthenticator{}
	}
	return t, nil
}

// URL returns the base endpoint.
func (t *Transport) URL() string {
	return t.url
}

// Request issues method against uri with an optional JSON body.
func (t *Transport) Request(ctx context.Context, method, uri string, body []byte) (*utils.Envelope, error) {
	return MakeRequest(ctx, t.requestConfig(method, uri, body))
}

// Upload sends content as a multipart file upload to uri.
func (t *Transport) Upload(ctx context.Context, uri, fileName string, content io.Reader) (*utils.Envelope, error) {
	return MakeUpload(ctx, t.requestConfig(http.MethodPost, uri, nil), fileName, content)
}

func (t *Transport) requestConfig(method, uri string, body []byte) RequestConfig {
	return RequestConfig{
		Client:      t.client,
		RateLimiter: t.rateLimiter,
		Logger:      t.logger,
		Url:         t.url,
		Body:        body,
		Uri:         uri,
		Method:      method,
		Token:       t.auth.GetCredentials(method, uri, body),
		AppToken:    t.appToken,
		Gzip:        t.gzip,
	}
}
