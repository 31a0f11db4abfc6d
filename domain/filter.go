package domain

import "strings"

// Filter selects which tasks a board view shows.
type Filter string

const (
	FilterAll Filter = "all"
	// FilterOnTrack is computed from status and progress rather than stored.
	FilterOnTrack Filter = "on-track"
)

// ParseFilter normalizes user input into a Filter. Empty input means all.
func ParseFilter(raw string) (Filter, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "", string(FilterAll):
		return FilterAll, true
	case string(FilterOnTrack):
		return FilterOnTrack, true
	}
	for _, s := range Statuses {
		if v == string(s) {
			return Filter(v), true
		}
	}
	return "", false
}
