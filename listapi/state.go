package listapi

import (
	"sync"
	"time"
)

// FetchRecord is the address and time of the most recent request.
type FetchRecord struct {
	URL  string    `json:"url"`
	Time time.Time `json:"time"`
}

// ErrorRecord is the most recent request failure.
type ErrorRecord struct {
	URL   string    `json:"url"`
	Error string    `json:"error"`
	Time  time.Time `json:"time"`
}

// State holds the resolved site address and diagnostics shared by the
// resolver and client. Construct one at startup and pass it to both.
type State struct {
	mu        sync.RWMutex
	siteURL   string
	lastFetch *FetchRecord
	lastError *ErrorRecord
	now       func() time.Time
}

// NewState returns an empty State.
func NewState() *State {
	return &State{now: time.Now}
}

func (s *State) recordFetch(url string) {
	s.mu.Lock()
	s.lastFetch = &FetchRecord{URL: url, Time: s.now()}
	s.mu.Unlock()
}

func (s *State) recordError(url string, err error) {
	s.mu.Lock()
	s.lastError = &ErrorRecord{URL: url, Error: err.Error(), Time: s.now()}
	s.mu.Unlock()
}

func (s *State) clearError() {
	s.mu.Lock()
	s.lastError = nil
	s.mu.Unlock()
}

// Status is a read-only diagnostics snapshot. Nothing in the module branches
// on it.
type Status struct {
	SiteURL         string       `json:"webAbsoluteUrl"`
	LastFetch       *FetchRecord `json:"lastFetch"`
	LastError       *ErrorRecord `json:"lastError"`
	UsingProxy      bool         `json:"usingProxy"`
	ProxyConfigured bool         `json:"proxyConfigured"`
	NativeHost      bool         `json:"isNativeHost"`
}

func (s *State) snapshot() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Status{SiteURL: s.siteURL}
	if s.lastFetch != nil {
		f := *s.lastFetch
		st.LastFetch = &f
	}
	if s.lastError != nil {
		e := *s.lastError
		st.LastError = &e
	}
	return st
}
