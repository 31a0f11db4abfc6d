package listapi

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

// Descriptor describes one read of a list. Build a fresh one per call.
type Descriptor struct {
	List    string
	Select  []string
	Expand  []string
	Filter  string
	OrderBy string
	// Top is the maximum row count. Zero means DefaultTop.
	Top int
}

func (d Descriptor) top() int {
	if d.Top > 0 {
		return d.Top
	}
	return DefaultTop
}

// ShouldUseProxy decides the transport for one call. An explicit override
// wins; otherwise the proxy is used only off the native host and only when a
// proxy address is configured.
func ShouldUseProxy(override *bool, proxyURL string, nativeHost bool) bool {
	if override != nil {
		return *override
	}
	return !nativeHost && proxyURL != ""
}

// BuildDirectQuery renders the OData query string for d. Parameters appear
// only for fields d sets; the row count is always present.
func BuildDirectQuery(d Descriptor) string {
	parts := make([]string, 0, 5)
	if len(d.Select) > 0 {
		parts = append(parts, "$select="+encodeComponent(strings.Join(d.Select, ",")))
	}
	if len(d.Expand) > 0 {
		parts = append(parts, "$expand="+encodeComponent(strings.Join(d.Expand, ",")))
	}
	if d.Filter != "" {
		parts = append(parts, "$filter="+encodeComponent(d.Filter))
	}
	parts = append(parts, "$top="+strconv.Itoa(d.top()))
	if d.OrderBy != "" {
		parts = append(parts, "$orderby="+encodeComponent(d.OrderBy))
	}
	return strings.Join(parts, "&")
}

// ProxyPayload is the fixed-shape body the proxy expects. Unset optional
// fields are sent as null.
type ProxyPayload struct {
	ListName string  `json:"listName"`
	Select   *string `json:"select"`
	Filter   *string `json:"filter"`
	Top      int     `json:"top"`
	OrderBy  *string `json:"orderby"`
}

// NewProxyPayload maps d onto the proxy body shape.
func NewProxyPayload(d Descriptor) ProxyPayload {
	p := ProxyPayload{ListName: d.List, Top: d.top()}
	if len(d.Select) > 0 {
		s := strings.Join(d.Select, ",")
		p.Select = &s
	}
	if d.Filter != "" {
		f := d.Filter
		p.Filter = &f
	}
	if d.OrderBy != "" {
		o := d.OrderBy
		p.OrderBy = &o
	}
	return p
}

// BuildProxyPayload renders the JSON body for a proxied read.
func BuildProxyPayload(d Descriptor) ([]byte, error) {
	return sonic.Marshal(NewProxyPayload(d))
}

// itemsPath is the site-relative path of a list's items, or of one item when
// id is non-nil.
func itemsPath(apiRoot, list string, id *int) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(apiRoot, "/"))
	b.WriteString("/lists/getbytitle('")
	b.WriteString(encodeComponent(list))
	b.WriteString("')/items")
	if id != nil {
		b.WriteString("(")
		b.WriteString(strconv.Itoa(*id))
		b.WriteString(")")
	}
	return b.String()
}

func listPath(apiRoot, list string) string {
	return strings.TrimSuffix(apiRoot, "/") + "/lists/getbytitle('" + encodeComponent(list) + "')"
}

// encodeComponent percent-encodes s for use inside a query value or path
// segment. Spaces become %20, never '+'.
func encodeComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
