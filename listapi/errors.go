package listapi

import (
	"fmt"
	"net/http"
)

const (
	directBodyLimit = 300
	proxyBodyLimit  = 200
)

// ConfigError reports a setup defect detected before any network call.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "list api configuration: " + e.Msg }

// TransportError reports a failed read: an unreachable host, a non-2xx
// status, or a body that could not be parsed.
type TransportError struct {
	Method     string
	URL        string
	Status     int
	StatusText string
	// Body holds the start of the response body for diagnosis.
	Body  string
	Proxy bool
	Err   error
}

func (e *TransportError) Error() string {
	prefix := "REST"
	if e.Proxy {
		prefix = "proxy"
	}
	switch {
	case e.Status == 0:
		return fmt.Sprintf("%s %s %s failed: %v", prefix, e.Method, e.URL, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s %d %s: %v: %s", prefix, e.Status, e.StatusText, e.Err, e.Body)
	case e.Proxy:
		return fmt.Sprintf("proxy error %d: %s", e.Status, e.Body)
	default:
		return fmt.Sprintf("REST %d %s: %s", e.Status, e.StatusText, e.Body)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

func newStatusError(method, url string, status int, body []byte, proxy bool) *TransportError {
	limit := directBodyLimit
	if proxy {
		limit = proxyBodyLimit
	}
	return &TransportError{
		Method:     method,
		URL:        url,
		Status:     status,
		StatusText: http.StatusText(status),
		Body:       truncate(string(body), limit),
		Proxy:      proxy,
	}
}

// truncate keeps at most n characters of s.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
