package listapi

import (
	"io"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

var sitePathPattern = regexp.MustCompile(`(?i)^(/sites/[^/]+)`)

// probe looks for the site address in one place. The resolver runs probes in
// order and stops at the first hit.
type probe struct {
	name string
	find func(Host) (string, bool)
}

func defaultProbes() []probe {
	return []probe{
		{name: "pageContext", find: probePageContext},
		{name: "pathname", find: probeLocationPath},
		{name: "parent.pageContext", find: probeParentFrame},
	}
}

func probePageContext(h Host) (string, bool) {
	if h.PageContext == nil || h.PageContext.WebAbsoluteURL == "" {
		return "", false
	}
	return h.PageContext.WebAbsoluteURL, true
}

func probeLocationPath(h Host) (string, bool) {
	if h.Location == nil {
		return "", false
	}
	m := sitePathPattern.FindStringSubmatch(h.Location.Path)
	if m == nil {
		return "", false
	}
	return h.Location.Scheme + "://" + h.Location.Host + m[1], true
}

// probeParentFrame treats any failure to read the parent as "not found".
// Cross-origin parents always fail and that is expected.
func probeParentFrame(h Host) (string, bool) {
	if h.Parent == nil {
		return "", false
	}
	ctx, err := h.Parent.PageContext()
	if err != nil || ctx == nil || ctx.WebAbsoluteURL == "" {
		return "", false
	}
	return ctx.WebAbsoluteURL, true
}

// Resolver determines the base address of the list service. The result is
// cached in State until Invalidate is called.
type Resolver struct {
	host     Host
	fallback string
	probes   []probe
	state    *State
	logger   *log.Logger
}

// NewResolver builds a resolver over host with the given static fallback.
func NewResolver(host Host, fallback string, state *State, logger *log.Logger) *Resolver {
	if state == nil {
		state = NewState()
	}
	return &Resolver{
		host:     host,
		fallback: fallback,
		probes:   defaultProbes(),
		state:    state,
		logger:   orDiscard(logger),
	}
}

// Resolve returns the site address without a trailing separator.
func (r *Resolver) Resolve() string {
	r.state.mu.RLock()
	cached := r.state.siteURL
	r.state.mu.RUnlock()
	if cached != "" {
		return cached
	}

	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	if r.state.siteURL != "" {
		return r.state.siteURL
	}

	url, method := r.detect()
	url = strings.TrimSuffix(url, "/")
	r.state.siteURL = url
	r.logger.WithFields(log.Fields{"method": method, "url": url}).Info("site url detected")
	return url
}

// Invalidate drops the cached address so the next Resolve probes again.
func (r *Resolver) Invalidate() {
	r.state.mu.Lock()
	r.state.siteURL = ""
	r.state.mu.Unlock()
}

func (r *Resolver) detect() (string, string) {
	for _, p := range r.probes {
		if url, ok := p.find(r.host); ok {
			return url, p.name
		}
	}
	r.logger.WithField("url", r.fallback).Warn("using fallback site url, detection failed")
	return r.fallback, "fallback"
}

func orDiscard(logger *log.Logger) *log.Logger {
	if logger != nil {
		return logger
	}
	l := log.New()
	l.SetOutput(io.Discard)
	return l
}
