package realtime

import (
	"fmt"
	"net/url"
	"strings"
)

// EndpointResolver maps logical paths to fully qualified WebSocket URLs.
// The scheme follows the security of the configured base endpoint: an
// https/wss base resolves to wss, an http/ws base resolves to ws.
type EndpointResolver struct {
	base *url.URL
}

// NewEndpointResolver creates a resolver for the given base endpoint.
// The base may use an http(s) or ws(s) scheme; http(s) is rewritten to
// the equivalent WebSocket scheme.
func NewEndpointResolver(baseURL string) (*EndpointResolver, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base endpoint %q: %w", baseURL, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// Already a WebSocket scheme
	default:
		return nil, fmt.Errorf("unsupported scheme %q in base endpoint %q", u.Scheme, baseURL)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("base endpoint %q has no host", baseURL)
	}

	return &EndpointResolver{base: u}, nil
}

// Resolve returns the fully qualified URL for a logical path relative to
// the base endpoint. The path is joined as given, so pre-escaped
// segments pass through untouched.
func (r *EndpointResolver) Resolve(path string) string {
	base := strings.TrimSuffix(r.base.String(), "/")
	return base + "/" + strings.TrimPrefix(path, "/")
}

// ProgressURL returns the connection URL for a task's progress stream.
func (r *EndpointResolver) ProgressURL(taskID string) string {
	return r.Resolve("/progress/" + url.PathEscape(taskID))
}
