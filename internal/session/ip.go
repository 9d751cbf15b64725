package session

import (
	"net/http"
	"strings"
)

const (
	UnknownIP      = "unknown"
	UnknownCountry = "Unknown"
)

// ClientIP prefers cf-connecting-ip, then the first x-forwarded-for entry.
// Without either header the caller is "unknown".
func ClientIP(h http.Header) string {
	if ip := strings.TrimSpace(h.Get("Cf-Connecting-Ip")); ip != "" {
		return ip
	}
	if xff := h.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return UnknownIP
}

// ClientCountry reads cf-ipcountry.
func ClientCountry(h http.Header) string {
	if c := strings.TrimSpace(h.Get("Cf-Ipcountry")); c != "" {
		return c
	}
	return UnknownCountry
}
