package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasicAuth(t *testing.T) {
	assert.Equal(t, "Basic dXNlckBleGFtcGxlLmNvbTpzZWNyZXQ=", BasicAuth("user@example.com", "secret"))
}

func TestURL(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		want    string
		wantErr bool
	}{
		{name: "bare host", host: "data.example.com", want: "https://data.example.com/api"},
		{name: "full url", host: "https://data.example.com/api/", want: "https://data.example.com/api"},
		{name: "local url", host: "http://127.0.0.1:8080", want: "http://127.0.0.1:8080"},
		{name: "empty", host: " ", wantErr: true},
		{name: "bad scheme", host: "ftp://data.example.com", wantErr: true},
		{name: "bad host", host: "data example com", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := URL(tt.host)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
