package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// MaxResponseSize bounds how much of a response body is read.
const MaxResponseSize int64 = 64 << 20

const (
	headerRequestID        = "X-Request-Id"
	headerSocrataRequestID = "X-Socrata-RequestId"
	errorKey               = "error"
	messageKey             = "message"
	codeKey                = "code"
	statusKey              = "status"
	idKey                  = "id"
)

// Kind tells which of the envelope payloads is present.
type Kind int

const (
	KindMessage Kind = iota
	KindObject
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindObject:
		return "object"
	case KindList:
		return "list"
	default:
		return "message"
	}
}

// Envelope holds a response body classified as a JSON object, a JSON list or
// an unstructured message. Exactly one of Object, List and Message is
// meaningful, as reported by Kind.
type Envelope struct {
	Kind    Kind
	Object  map[string]interface{}
	List    []interface{}
	Message string

	StatusCode int
	RequestID  uuid.UUID
}

// Classify builds an Envelope from a raw response body. It never fails: a
// body that is neither a JSON object nor a JSON array is kept verbatim as
// the message.
func Classify(raw []byte) *Envelope {
	return ClassifyWithLogger(raw, slog.Default())
}

// ClassifyWithLogger is Classify reporting parse fallbacks to logger.
func ClassifyWithLogger(raw []byte, logger *slog.Logger) *Envelope {
	trimmed := bytes.TrimSpace(raw)

	var object map[string]interface{}
	if err := json.Unmarshal(trimmed, &object); err == nil && object != nil {
		return &Envelope{Kind: KindObject, Object: object}
	}

	var list []interface{}
	if err := json.Unmarshal(trimmed, &list); err == nil && list != nil {
		return &Envelope{Kind: KindList, List: list}
	}

	if logger != nil {
		logger.Warn("response body is not structured JSON, keeping it as a message", "length", len(raw))
	}
	return &Envelope{Kind: KindMessage, Message: string(raw)}
}

// IsClean reports whether env can be trusted as a successful structured
// response: it must be present, structured and free of an "error" field.
func IsClean(env *Envelope) bool {
	return env.Err() == nil
}

// Err converts the envelope into the error it represents, or nil when the
// envelope is clean.
func (env *Envelope) Err() error {
	if env == nil {
		return ErrAbsentResponse
	}
	switch env.Kind {
	case KindObject:
		if _, ok := env.Object[errorKey]; ok {
			return newServerError(env)
		}
		return nil
	case KindList:
		return nil
	default:
		return &ProtocolError{StatusCode: env.StatusCode, Raw: env.Message}
	}
}

// String returns the string value stored under key in an object envelope.
func (env *Envelope) String(key string) string {
	if env == nil || env.Kind != KindObject {
		return ""
	}
	switch value := env.Object[key].(type) {
	case string:
		return value
	case nil:
		return ""
	default:
		return fmt.Sprint(value)
	}
}

// Status returns the "status" field of an object envelope.
func (env *Envelope) Status() string {
	return env.String(statusKey)
}

// ID returns the "id" field of an object envelope.
func (env *Envelope) ID() string {
	return env.String(idKey)
}

// ConvertHTTPToEnvelope reads the whole response body and classifies it.
// Statuses outside 2xx are returned as a *TransportError carrying the
// classified body; the envelope is nil in that case.
func ConvertHTTPToEnvelope(resp *http.Response, logger *slog.Logger) (*Envelope, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize))
	if err != nil {
		return nil, &TransportError{
			Method:     requestMethod(resp),
			URL:        requestURL(resp),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("reading response body: %w", err),
		}
	}

	env := ClassifyWithLogger(body, logger)
	env.StatusCode = resp.StatusCode
	env.RequestID = responseRequestID(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Method:     requestMethod(resp),
			URL:        requestURL(resp),
			StatusCode: resp.StatusCode,
			Response:   env,
		}
	}
	return env, nil
}

func responseRequestID(resp *http.Response) uuid.UUID {
	if id, err := uuid.Parse(resp.Header.Get(headerSocrataRequestID)); err == nil {
		return id
	}
	if resp.Request != nil {
		if id, err := uuid.Parse(resp.Request.Header.Get(headerRequestID)); err == nil {
			return id
		}
	}
	return uuid.Nil
}

func requestMethod(resp *http.Response) string {
	if resp.Request == nil {
		return ""
	}
	return resp.Request.Method
}

func requestURL(resp *http.Response) string {
	if resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	return resp.Request.URL.String()
}
