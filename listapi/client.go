package listapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"
)

// Record is one undecoded item returned by the list service.
type Record = json.RawMessage

// HTTPDoer issues HTTP requests. *http.Client satisfies it.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(d HTTPDoer) Option {
	return func(c *Client) { c.http = d }
}

// WithHeader adds a header to every direct request, e.g. an Authorization
// header when the board runs outside the browser.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers.Add(key, value) }
}

// Client reads lists from the list service. It only ever issues reads: GET
// requests in direct mode and a single POST query to the proxy in proxy mode.
// It never retries and never applies its own timeout; callers bound calls
// through ctx.
type Client struct {
	cfg      Config
	host     Host
	http     HTTPDoer
	headers  http.Header
	resolver *Resolver
	state    *State
	logger   *log.Logger

	mu       sync.RWMutex
	proxyURL string
}

// NewClient wires a client over the given host. state is shared with any
// other component that reports diagnostics; pass NewState() when unsure.
func NewClient(cfg Config, host Host, state *State, logger *log.Logger, opts ...Option) *Client {
	cfg.fillDefaults()
	if state == nil {
		state = NewState()
	}
	logger = orDiscard(logger)
	c := &Client{
		cfg:      cfg,
		host:     host,
		http:     &http.Client{},
		headers:  make(http.Header),
		resolver: NewResolver(host, cfg.FallbackSiteURL, state, logger),
		state:    state,
		logger:   logger,
		proxyURL: cfg.ProxyURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the client's configuration.
func (c *Client) Config() Config { return c.cfg }

// SiteURL resolves the site address.
func (c *Client) SiteURL() string { return c.resolver.Resolve() }

// ProxyURL returns the configured proxy address, if any.
func (c *Client) ProxyURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.proxyURL
}

// SetProxyURL configures the proxy address at runtime.
func (c *Client) SetProxyURL(u string) {
	c.mu.Lock()
	c.proxyURL = u
	c.mu.Unlock()
	c.logger.Info("proxy url configured")
}

// UsingProxy reports which transport the next call will use.
func (c *Client) UsingProxy() bool {
	use := ShouldUseProxy(c.cfg.UseProxy, c.ProxyURL(), c.NativeHost())
	if use && c.cfg.UseProxy == nil {
		c.logger.Debug("external hosting detected, using proxy")
	}
	return use
}

// NativeHost reports whether the board runs on the list service's domain.
func (c *Client) NativeHost() bool {
	return c.host.IsNative(c.cfg.NativeHostSuffix)
}

// Status returns a diagnostics snapshot.
func (c *Client) Status() Status {
	st := c.state.snapshot()
	st.ProxyConfigured = c.ProxyURL() != ""
	st.NativeHost = c.NativeHost()
	st.UsingProxy = ShouldUseProxy(c.cfg.UseProxy, c.ProxyURL(), st.NativeHost)
	return st
}

// BuildURL turns a site-relative path into an absolute address. Absolute
// addresses pass through.
func (c *Client) BuildURL(path string) string {
	if strings.HasPrefix(path, "http") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.resolver.Resolve() + path
}

// FetchCollection reads the items d describes. A response without an item
// collection yields an empty, non-nil slice.
func (c *Client) FetchCollection(ctx context.Context, d Descriptor) ([]Record, error) {
	if d.Top <= 0 {
		d.Top = c.cfg.DefaultTop
	}
	if c.UsingProxy() {
		return c.queryProxy(ctx, d)
	}

	path := itemsPath(c.cfg.APIRoot, d.List, nil) + "?" + BuildDirectQuery(d)
	var env collectionEnvelope
	count := func() int { return len(env.direct()) }
	if err := c.getJSON(ctx, d.List, path, &env, count); err != nil {
		return nil, err
	}
	c.logger.WithFields(log.Fields{"list": d.List, "items": len(env.direct())}).Debug("list items loaded")
	return env.direct(), nil
}

// ItemOptions narrows a single-item read.
type ItemOptions struct {
	Select []string
	Expand []string
}

// FetchOne reads one item by its numeric list id.
func (c *Client) FetchOne(ctx context.Context, list string, id int, opts ItemOptions) (Record, error) {
	if c.UsingProxy() {
		records, err := c.queryProxy(ctx, Descriptor{
			List:   list,
			Select: opts.Select,
			Filter: fmt.Sprintf("Id eq %d", id),
			Top:    1,
		})
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			err := &TransportError{
				Method:     http.MethodPost,
				URL:        c.ProxyURL(),
				Status:     http.StatusNotFound,
				StatusText: http.StatusText(http.StatusNotFound),
				Body:       fmt.Sprintf("item %d not found in %s", id, list),
				Proxy:      true,
			}
			return nil, c.fail(err.URL, err)
		}
		return records[0], nil
	}

	path := itemsPath(c.cfg.APIRoot, list, &id)
	if q := buildItemQuery(opts); q != "" {
		path += "?" + q
	}
	var rec Record
	if err := c.getJSON(ctx, list, path, &rec, func() int { return 1 }); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get reads an arbitrary site-relative path or absolute address.
func (c *Client) Get(ctx context.Context, pathOrURL string) (Record, error) {
	var rec Record
	if err := c.getJSON(ctx, "", pathOrURL, &rec, nil); err != nil {
		return nil, err
	}
	return rec, nil
}

// Decode unmarshals each record into T.
func Decode[T any](records []Record) ([]T, error) {
	out := make([]T, 0, len(records))
	for i, r := range records {
		var v T
		if err := sonic.Unmarshal(r, &v); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

type collectionEnvelope struct {
	Value []Record `json:"value"`
	Items []Record `json:"items"`
}

func (e collectionEnvelope) direct() []Record {
	return firstNonNil(e.Value, e.Items)
}

func (e collectionEnvelope) proxied() []Record {
	return firstNonNil(e.Items, e.Value)
}

func firstNonNil(a, b []Record) []Record {
	if a != nil {
		return a
	}
	if b != nil {
		return b
	}
	return []Record{}
}

func (c *Client) getJSON(ctx context.Context, list, pathOrURL string, out any, count func() int) (err error) {
	u := c.BuildURL(pathOrURL)
	ctx, m := c.startRequest(ctx, http.MethodGet, u, modeDirect, list)
	status := 0
	defer func() {
		items := -1
		if err == nil && count != nil {
			items = count()
		}
		m.finish(status, items, err)
	}()

	var body []byte
	body, status, err = c.send(ctx, http.MethodGet, u, nil, false)
	if err != nil {
		return err
	}
	if uerr := sonic.Unmarshal(body, out); uerr != nil {
		err = c.fail(u, parseError(http.MethodGet, u, status, body, uerr, false))
		return err
	}
	c.state.clearError()
	return nil
}

func (c *Client) queryProxy(ctx context.Context, d Descriptor) (records []Record, err error) {
	proxyURL := c.ProxyURL()
	if proxyURL == "" {
		cerr := &ConfigError{Msg: "proxy mode selected but no proxy URL is configured; set proxyUrl or LIST_PROXY_URL"}
		c.state.recordError("", cerr)
		c.logger.WithError(cerr).Error("proxy call rejected")
		return nil, cerr
	}
	payload, err := BuildProxyPayload(d)
	if err != nil {
		return nil, fmt.Errorf("encode proxy payload: %w", err)
	}

	ctx, m := c.startRequest(ctx, http.MethodPost, proxyURL, modeProxy, d.List)
	status := 0
	defer func() { m.finish(status, len(records), err) }()

	c.logger.WithField("list", d.List).Debug("calling proxy")
	var body []byte
	body, status, err = c.send(ctx, http.MethodPost, proxyURL, payload, true)
	if err != nil {
		return nil, err
	}
	var env collectionEnvelope
	if uerr := sonic.Unmarshal(body, &env); uerr != nil {
		err = c.fail(proxyURL, parseError(http.MethodPost, proxyURL, status, body, uerr, true))
		return nil, err
	}
	c.state.clearError()
	records = env.proxied()
	c.logger.WithFields(log.Fields{"list": d.List, "items": len(records)}).Info("proxy returned items")
	return records, nil
}

// send issues exactly one request and returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, method, u string, payload []byte, proxy bool) ([]byte, int, error) {
	c.state.recordFetch(u)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, 0, c.fail(u, &TransportError{Method: method, URL: u, Proxy: proxy, Err: err})
	}
	req.Header.Set("Content-Type", "application/json")
	if !proxy {
		req.Header.Set("Accept", "application/json;odata=nometadata")
		for k, vs := range c.headers {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}

	c.logger.WithFields(log.Fields{"method": method, "url": u}).Debug("list api request")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, c.fail(u, &TransportError{Method: method, URL: u, Proxy: proxy, Err: err})
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, c.fail(u, &TransportError{
			Method:     method,
			URL:        u,
			Status:     resp.StatusCode,
			StatusText: http.StatusText(resp.StatusCode),
			Proxy:      proxy,
			Err:        fmt.Errorf("read body: %w", err),
		})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, c.fail(u, newStatusError(method, u, resp.StatusCode, data, proxy))
	}
	return data, resp.StatusCode, nil
}

func (c *Client) fail(u string, err error) error {
	c.state.recordError(u, err)
	c.logger.WithFields(log.Fields{"url": u, "error": err.Error()}).Debug("list api request failed")
	return err
}

func parseError(method, u string, status int, body []byte, err error, proxy bool) *TransportError {
	te := newStatusError(method, u, status, body, proxy)
	te.Err = fmt.Errorf("invalid JSON body: %w", err)
	return te
}

func buildItemQuery(opts ItemOptions) string {
	parts := make([]string, 0, 2)
	if len(opts.Select) > 0 {
		parts = append(parts, "$select="+encodeComponent(strings.Join(opts.Select, ",")))
	}
	if len(opts.Expand) > 0 {
		parts = append(parts, "$expand="+encodeComponent(strings.Join(opts.Expand, ",")))
	}
	return strings.Join(parts, "&")
}
