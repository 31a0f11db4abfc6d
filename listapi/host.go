package listapi

import (
	"fmt"
	"net/url"
	"strings"
)

// PageContext is the context object a hosting page exposes about its site.
type PageContext struct {
	WebAbsoluteURL string
}

// Frame is an embedding parent frame. Reading its context may fail, e.g. when
// the parent is on another origin.
type Frame interface {
	PageContext() (*PageContext, error)
}

// Host describes the environment the board runs in.
type Host struct {
	// Location is the address of the current document. Nil when unknown.
	Location *url.URL
	// PageContext is nil when the host exposes no context object.
	PageContext *PageContext
	// Parent is nil when the board is not embedded.
	Parent Frame
}

// HostFromConfig builds a Host from the configured site and document URLs.
func HostFromConfig(cfg Config) (Host, error) {
	var h Host
	if cfg.DocumentURL != "" {
		u, err := url.Parse(cfg.DocumentURL)
		if err != nil {
			return Host{}, fmt.Errorf("parse document url: %w", err)
		}
		h.Location = u
	}
	if cfg.SiteURL != "" {
		h.PageContext = &PageContext{WebAbsoluteURL: cfg.SiteURL}
	}
	return h, nil
}

// IsNative reports whether the document is served from the list service's own
// domain, where direct queries work without a proxy.
func (h Host) IsNative(suffix string) bool {
	if h.Location == nil || suffix == "" {
		return false
	}
	return strings.Contains(strings.ToLower(h.Location.Hostname()), strings.ToLower(suffix))
}
