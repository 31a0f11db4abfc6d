package listapi

import (
	"net/url"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
)

func boolPtr(b bool) *bool { return &b }

func TestShouldUseProxy(t *testing.T) {
	tests := []struct {
		name     string
		override *bool
		proxyURL string
		native   bool
		want     bool
	}{
		{name: "auto external with proxy", proxyURL: "https://proxy", native: false, want: true},
		{name: "auto external without proxy", native: false, want: false},
		{name: "auto native with proxy", proxyURL: "https://proxy", native: true, want: false},
		{name: "forced off", override: boolPtr(false), proxyURL: "https://proxy", native: false, want: false},
		{name: "forced on native", override: boolPtr(true), native: true, want: true},
		{name: "forced on without proxy", override: boolPtr(true), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldUseProxy(tt.override, tt.proxyURL, tt.native); got != tt.want {
				t.Fatalf("ShouldUseProxy() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildDirectQueryRoundTrip(t *testing.T) {
	d := Descriptor{
		List:    "ATL_Project_Plan.v21",
		Select:  []string{"Id", "Title", "DueDate"},
		Expand:  []string{"Owner"},
		Filter:  "Owner eq 'Jason Evenson' and PercentComplete ge 0.5",
		OrderBy: "DueDate asc",
		Top:     25,
	}
	raw := BuildDirectQuery(d)
	if strings.Contains(raw, "+") {
		t.Fatalf("spaces must be percent-encoded, got %s", raw)
	}
	q, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("parse query: %v", err)
	}
	want := map[string]string{
		"$select":  "Id,Title,DueDate",
		"$expand":  "Owner",
		"$filter":  d.Filter,
		"$orderby": "DueDate asc",
		"$top":     "25",
	}
	for k, v := range want {
		if got := q.Get(k); got != v {
			t.Fatalf("%s = %q, want %q", k, got, v)
		}
	}
	if len(q) != len(want) {
		t.Fatalf("unexpected parameters: %v", q)
	}
}

func TestBuildDirectQueryOmitsUnsetFields(t *testing.T) {
	raw := BuildDirectQuery(Descriptor{List: "Tasks"})
	if raw != "$top=500" {
		t.Fatalf("expected only the default row count, got %q", raw)
	}
	q, _ := url.ParseQuery(BuildDirectQuery(Descriptor{List: "Tasks", Filter: "Status eq 'Blocked'"}))
	for _, k := range []string{"$select", "$expand", "$orderby"} {
		if _, ok := q[k]; ok {
			t.Fatalf("unexpected parameter %s in %v", k, q)
		}
	}
	if q.Get("$filter") != "Status eq 'Blocked'" || q.Get("$top") != "500" {
		t.Fatalf("unexpected query: %v", q)
	}
}

func TestBuildDirectQueryParameterOrder(t *testing.T) {
	raw := BuildDirectQuery(Descriptor{Select: []string{"Id"}, Expand: []string{"Owner"}, Filter: "x", OrderBy: "y", Top: 1})
	want := "$select=Id&$expand=Owner&$filter=x&$top=1&$orderby=y"
	if raw != want {
		t.Fatalf("BuildDirectQuery() = %q, want %q", raw, want)
	}
}

func TestBuildProxyPayloadSendsNulls(t *testing.T) {
	body, err := BuildProxyPayload(Descriptor{List: "ATL-SalesData"})
	if err != nil {
		t.Fatalf("build payload: %v", err)
	}
	var got map[string]any
	if err := sonic.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	for _, k := range []string{"select", "filter", "orderby"} {
		v, ok := got[k]
		if !ok {
			t.Fatalf("expected key %s to be present in %s", k, body)
		}
		if v != nil {
			t.Fatalf("expected %s to be null, got %#v", k, v)
		}
	}
	if got["listName"] != "ATL-SalesData" {
		t.Fatalf("unexpected listName: %#v", got["listName"])
	}
	if got["top"] != float64(500) {
		t.Fatalf("unexpected top: %#v", got["top"])
	}
}

func TestBuildProxyPayloadSetFields(t *testing.T) {
	p := NewProxyPayload(Descriptor{List: "L", Select: []string{"Id", "Title"}, Filter: "Id eq 3", OrderBy: "Id desc", Top: 7})
	if p.Select == nil || *p.Select != "Id,Title" {
		t.Fatalf("unexpected select: %v", p.Select)
	}
	if p.Filter == nil || *p.Filter != "Id eq 3" {
		t.Fatalf("unexpected filter: %v", p.Filter)
	}
	if p.OrderBy == nil || *p.OrderBy != "Id desc" {
		t.Fatalf("unexpected orderby: %v", p.OrderBy)
	}
	if p.Top != 7 {
		t.Fatalf("unexpected top: %d", p.Top)
	}
}

func TestItemsPath(t *testing.T) {
	if got := itemsPath("/_api/web", "My List", nil); got != "/_api/web/lists/getbytitle('My%20List')/items" {
		t.Fatalf("unexpected collection path: %s", got)
	}
	id := 42
	if got := itemsPath("/_api/web/", "Tasks", &id); got != "/_api/web/lists/getbytitle('Tasks')/items(42)" {
		t.Fatalf("unexpected item path: %s", got)
	}
}
