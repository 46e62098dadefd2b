package model

// AuthProvider supplies the Authorization header value for a request.
type AuthProvider interface {
	GetCredentials(method, uri string, body []byte) string
}
