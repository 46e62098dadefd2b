package utils

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const REGEX_HOST = `^[a-zA-Z0-9_.\-:]+$`

var hostPattern = regexp.MustCompile(REGEX_HOST)

// BasicAuth builds the value of an Authorization header for HTTP basic
// authentication.
func BasicAuth(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

// URL turns a configured host into the base endpoint of the API. A bare
// host name such as "data.example.com" becomes "https://data.example.com/api";
// a full URL is used as given, without its trailing slash.
func URL(host string) (string, error) {
	host = strings.TrimSpace(host)
	if host == "" {
		return "", fmt.Errorf("host must be provided")
	}
	if strings.Contains(host, "://") {
		u, err := url.Parse(host)
		if err != nil {
			return "", fmt.Errorf("invalid host %q: %w", host, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return "", fmt.Errorf("invalid host %q: unsupported scheme %q", host, u.Scheme)
		}
		if u.Host == "" {
			return "", fmt.Errorf("invalid host %q: missing host name", host)
		}
		return strings.TrimRight(u.String(), "/"), nil
	}
	if !hostPattern.MatchString(host) {
		return "", fmt.Errorf("invalid host name %q", host)
	}
	return "https://" + host + "/api", nil
}
