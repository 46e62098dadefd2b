package model

import "github.com/socrata/socrata-sdk-go/utils"

// DefaultAuthenticator implements AuthProvider interface with basic
// authentication. Every request carries the credentials, without waiting to
// be challenged.
type DefaultAuthenticator struct {
	Username string
	Password string
}

func (da DefaultAuthenticator) GetCredentials(method, uri string, body []byte) string {
	if da.Username == "" && da.Password == "" {
		return ""
	}
	return utils.BasicAuth(da.Username, da.Password)
}
