package listapi

import (
	"errors"
	"net/url"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

type stubFrame struct {
	ctx   *PageContext
	err   error
	calls int
}

func (f *stubFrame) PageContext() (*PageContext, error) {
	f.calls++
	return f.ctx, f.err
}

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func warnEntries(hook *test.Hook) int {
	n := 0
	for _, e := range hook.AllEntries() {
		if e.Level == log.WarnLevel {
			n++
		}
	}
	return n
}

func TestResolverProbeOrder(t *testing.T) {
	parent := &stubFrame{ctx: &PageContext{WebAbsoluteURL: "https://parent.sharepoint.com/sites/Parent"}}
	tests := []struct {
		name string
		host Host
		want string
	}{
		{
			name: "page context wins",
			host: Host{
				PageContext: &PageContext{WebAbsoluteURL: "https://tenant.sharepoint.com/sites/Ctx/"},
				Location:    mustURL(t, "https://tenant.sharepoint.com/sites/Path/SitePages/Board.aspx"),
				Parent:      parent,
			},
			want: "https://tenant.sharepoint.com/sites/Ctx",
		},
		{
			name: "location path",
			host: Host{
				Location: mustURL(t, "https://tenant.sharepoint.com/SITES/Path/SitePages/Board.aspx"),
				Parent:   parent,
			},
			want: "https://tenant.sharepoint.com/SITES/Path",
		},
		{
			name: "parent frame",
			host: Host{Location: mustURL(t, "https://cdn.example.com/board/index.html"), Parent: parent},
			want: "https://parent.sharepoint.com/sites/Parent",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, hook := test.NewNullLogger()
			r := NewResolver(tt.host, "https://fallback.example.com/sites/F", NewState(), logger)
			if got := r.Resolve(); got != tt.want {
				t.Fatalf("Resolve() = %q, want %q", got, tt.want)
			}
			if n := warnEntries(hook); n != 0 {
				t.Fatalf("expected no warnings, got %d", n)
			}
		})
	}
}

func TestResolverParentAccessDeniedFallsThrough(t *testing.T) {
	logger, hook := test.NewNullLogger()
	parent := &stubFrame{err: errors.New("cross-origin frame access denied")}
	r := NewResolver(Host{Parent: parent}, "https://fallback.example.com/sites/F/", NewState(), logger)

	if got := r.Resolve(); got != "https://fallback.example.com/sites/F" {
		t.Fatalf("unexpected url: %q", got)
	}
	if parent.calls != 1 {
		t.Fatalf("expected parent to be probed once, got %d", parent.calls)
	}
	if n := warnEntries(hook); n != 1 {
		t.Fatalf("expected exactly one warning, got %d", n)
	}
}

func TestResolverFallbackEmitsOneWarning(t *testing.T) {
	logger, hook := test.NewNullLogger()
	const fallback = "https://tenant.sharepoint.com/sites/Default"
	r := NewResolver(Host{}, fallback, NewState(), logger)

	if got := r.Resolve(); got != fallback {
		t.Fatalf("Resolve() = %q, want %q", got, fallback)
	}
	if got := r.Resolve(); got != fallback {
		t.Fatalf("cached Resolve() = %q, want %q", got, fallback)
	}
	if n := warnEntries(hook); n != 1 {
		t.Fatalf("expected exactly one warning, got %d", n)
	}
}

func TestResolverMemoizesUntilInvalidated(t *testing.T) {
	state := NewState()
	ctx := &PageContext{WebAbsoluteURL: "https://tenant.sharepoint.com/sites/One"}
	r := NewResolver(Host{PageContext: ctx}, "", state, nil)

	if got := r.Resolve(); got != "https://tenant.sharepoint.com/sites/One" {
		t.Fatalf("unexpected first url: %q", got)
	}
	ctx.WebAbsoluteURL = "https://tenant.sharepoint.com/sites/Two"
	if got := r.Resolve(); got != "https://tenant.sharepoint.com/sites/One" {
		t.Fatalf("expected cached url, got %q", got)
	}
	if state.snapshot().SiteURL != "https://tenant.sharepoint.com/sites/One" {
		t.Fatalf("expected state to hold resolved url")
	}

	r.Invalidate()
	if got := r.Resolve(); got != "https://tenant.sharepoint.com/sites/Two" {
		t.Fatalf("expected fresh url after invalidate, got %q", got)
	}
}

func TestHostIsNative(t *testing.T) {
	if !(Host{Location: mustURL(t, "https://Tenant.SharePoint.com/sites/x")}).IsNative("sharepoint.com") {
		t.Fatal("expected sharepoint host to be native")
	}
	if (Host{Location: mustURL(t, "https://boards.example.com/")}).IsNative("sharepoint.com") {
		t.Fatal("expected external host to be non-native")
	}
	if (Host{}).IsNative("sharepoint.com") {
		t.Fatal("expected unknown location to be non-native")
	}
}
