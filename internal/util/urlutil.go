package util

import (
	"fmt"
	"net/url"
	"strings"
)

// ParseServerURL validates the processing server address. A bare host:port
// is taken as http. Only http, https, ws and wss are accepted, and any query
// or fragment is dropped.
func ParseServerURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("server address is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid server address %q", raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported server scheme %q: use http or https", u.Scheme)
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// HTTPBase maps a ws(s) address to its http(s) counterpart for REST calls.
func HTTPBase(u *url.URL) *url.URL {
	out := *u
	switch out.Scheme {
	case "ws":
		out.Scheme = "http"
	case "wss":
		out.Scheme = "https"
	}
	return &out
}
