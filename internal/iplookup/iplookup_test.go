package iplookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "loan-intake/internal/common/errors"
)

func TestClient_PublicIP(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr bool
	}{
		{"ipv4", http.StatusOK, `{"ip":"203.0.113.7"}`, "203.0.113.7", false},
		{"ipv6", http.StatusOK, `{"ip":"2001:db8::1"}`, "2001:db8::1", false},
		{"server error", http.StatusBadGateway, `{}`, "", true},
		{"garbage ip", http.StatusOK, `{"ip":"nope"}`, "", true},
		{"bad json", http.StatusOK, `{`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "json", r.URL.Query().Get("format"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			ip, err := NewClient(srv.URL+"/?format=json", time.Second).PublicIP(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, stderrors.IsCode(err, stderrors.ErrCodeExternalService))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ip)
		})
	}
}

func TestFromRemoteAddr(t *testing.T) {
	assert.Equal(t, "192.0.2.1", FromRemoteAddr("192.0.2.1:5555"))
	assert.Equal(t, "::1", FromRemoteAddr("[::1]:80"))
	assert.Equal(t, "bare", FromRemoteAddr("bare"))
}

func TestStatic(t *testing.T) {
	ip, err := Static("10.0.0.1").PublicIP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", ip)
}
