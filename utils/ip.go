package utils

import (
	"net"
	"net/http"
	"strings"
)

// GetClientIP extracts the real client IP address from HTTP request
func GetClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if isValidIP(ip) {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" && isValidIP(xri) {
		return xri
	}

	// Cloudflare
	if cfip := r.Header.Get("CF-Connecting-IP"); cfip != "" && isValidIP(cfip) {
		return cfip
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
