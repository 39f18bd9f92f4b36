package newsletter

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "direct connection",
			remoteAddr: "203.0.113.9:54321",
			want:       "203.0.113.9",
		},
		{
			name:       "cloudflare header wins",
			remoteAddr: "198.51.100.1:443",
			headers:    map[string]string{"CF-Connecting-IP": "203.0.113.9"},
			want:       "203.0.113.9",
		},
		{
			name:       "x-real-ip trusted behind loopback proxy",
			remoteAddr: "127.0.0.1:8080",
			headers:    map[string]string{"X-Real-IP": "203.0.113.9"},
			want:       "203.0.113.9",
		},
		{
			name:       "x-forwarded-for first hop behind loopback proxy",
			remoteAddr: "127.0.0.1:8080",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9, 198.51.100.1"},
			want:       "203.0.113.9",
		},
		{
			name:       "proxy headers ignored from remote peer",
			remoteAddr: "198.51.100.1:443",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.9"},
			want:       "198.51.100.1",
		},
		{
			name:       "ipv6 collapses to loopback",
			remoteAddr: "[2001:db8::1]:443",
			want:       "127.0.0.1",
		},
		{
			name:       "garbage collapses to loopback",
			remoteAddr: "not-an-address",
			want:       "127.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(r))
		})
	}
}
