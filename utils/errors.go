package utils

import (
	"errors"
	"fmt"
)

// ErrAbsentResponse is reported when a caller inspects a response that was
// never produced.
var ErrAbsentResponse = errors.New("no response received")

// TransportError is a failed round trip: the request could not be sent,
// the body could not be read, or the server answered outside 2xx.
type TransportError struct {
	Method     string
	URL        string
	StatusCode int
	// Response is the classified body of a non-2xx answer, if any.
	Response *Envelope
	Err      error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	case e.Response != nil && e.Response.Kind == KindObject && e.Response.String(messageKey) != "":
		return fmt.Sprintf("%s %s: status code %d, message: %s", e.Method, e.URL, e.StatusCode, e.Response.String(messageKey))
	default:
		return fmt.Sprintf("%s %s: status code %d", e.Method, e.URL, e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is a response body that is not structured JSON.
type ProtocolError struct {
	StatusCode int
	Raw        string
}

func (e *ProtocolError) Error() string {
	const maxShown = 256
	raw := e.Raw
	if len(raw) > maxShown {
		raw = raw[:maxShown] + "..."
	}
	return fmt.Sprintf("unstructured response (status code %d): %q", e.StatusCode, raw)
}

// ServerError is a structured response carrying an "error" field.
type ServerError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("server error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("server error: %s", e.Message)
}

func newServerError(env *Envelope) *ServerError {
	message := env.String(messageKey)
	if message == "" {
		// some endpoints put the text in the error field itself
		if text, ok := env.Object[errorKey].(string); ok {
			message = text
		}
	}
	return &ServerError{
		StatusCode: env.StatusCode,
		Code:       env.String(codeKey),
		Message:    message,
	}
}
