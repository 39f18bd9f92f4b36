package newsletter

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the best-effort client IPv4 from a request. Cloudflare's
// header wins outright; the X-Real-IP and X-Forwarded-For headers are only
// trusted when the direct peer is loopback (i.e. a local reverse proxy).
// Anything that does not parse as IPv4 collapses to 127.0.0.1.
func ClientIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return normalizeIPv4(ip)
	}

	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}

	if remote == "127.0.0.1" || remote == "::1" {
		if ip := r.Header.Get("X-Real-IP"); ip != "" {
			return normalizeIPv4(ip)
		}
		if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
			// First hop in the chain is the original client.
			if comma := strings.Index(ip, ","); comma >= 0 {
				ip = ip[:comma]
			}
			return normalizeIPv4(strings.TrimSpace(ip))
		}
	}

	return normalizeIPv4(remote)
}

func normalizeIPv4(ip string) string {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.To4() == nil {
		return "127.0.0.1"
	}
	return parsed.String()
}
