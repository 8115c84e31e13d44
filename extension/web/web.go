// Package web fetches block content over HTTP.
package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jdbcx/jdbcx-sub006/extension"
	"github.com/jdbcx/jdbcx-sub006/internal/retry"
	"github.com/jdbcx/jdbcx-sub006/query/parser"
)

// Name is the tag the extension is registered under.
const Name = "web"

// Property names understood by the web extension.
const (
	PropURL          = "url"
	PropMethod       = "method"
	PropTimeout      = "timeout"
	PropAttempts     = "retry.attempts"
	PropHeaderPrefix = "header."
)

// maxBody bounds the size of a response the extension accepts.
const maxBody = 16 << 20

// Web performs HTTP requests.
type Web struct {
	Client *http.Client
	// Headers are sent with every request unless a block overrides them.
	Headers map[string]string
}

// New creates the extension with the default HTTP client.
func New() *Web {
	return &Web{Client: http.DefaultClient}
}

// Execute fetches the URL named by the url property, or held in content
// when the property is absent. With a url property a non-empty content is
// sent as the request body.
func (w *Web) Execute(ctx context.Context, props parser.Properties, content string, ec *extension.Context) (string, error) {
	req, err := w.request(props, content)
	if err != nil {
		return "", err
	}
	timeout, err := parseTimeout(props.GetOr(PropTimeout, ""))
	if err != nil {
		return "", err
	}
	attempts := 1
	if v, ok := props.Get(PropAttempts); ok {
		if attempts, err = strconv.Atoi(strings.TrimSpace(v)); err != nil || attempts < 1 {
			return "", fmt.Errorf("invalid %s %q", PropAttempts, v)
		}
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ec.Log().Debug("web request", "method", req.method, "url", req.url)
	return retry.DoWithResult(ctx, func(ctx context.Context) (string, error) {
		return w.do(ctx, req)
	}, retry.WithMaxAttempts(attempts))
}

type request struct {
	method  string
	url     string
	body    string
	headers map[string]string
}

func (w *Web) request(props parser.Properties, content string) (*request, error) {
	r := &request{headers: make(map[string]string)}
	for k, v := range w.Headers {
		r.headers[k] = v
	}
	for k, v := range props.WithPrefix(PropHeaderPrefix).All() {
		r.headers[k] = v
	}

	if u, ok := props.Get(PropURL); ok && strings.TrimSpace(u) != "" {
		r.url = strings.TrimSpace(u)
		r.body = content
	} else {
		r.url = strings.TrimSpace(content)
	}
	if r.url == "" {
		return nil, fmt.Errorf("no url given")
	}
	if parsed, err := url.Parse(r.url); err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid url %q", r.url)
	}

	r.method = http.MethodGet
	if r.body != "" {
		r.method = http.MethodPost
	}
	if m, ok := props.Get(PropMethod); ok && strings.TrimSpace(m) != "" {
		r.method = strings.ToUpper(strings.TrimSpace(m))
	}
	return r, nil
}

func (w *Web) do(ctx context.Context, r *request) (string, error) {
	var body io.Reader
	if r.body != "" {
		body = strings.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return "", retry.Permanent(err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	client := w.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := fmt.Errorf("%s %s: %s", r.method, r.url, resp.Status)
		if resp.StatusCode < 500 {
			return "", retry.Permanent(err)
		}
		return "", err
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// parseTimeout accepts a Go duration or a number of milliseconds.
func parseTimeout(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if ms, err := strconv.Atoi(s); err == nil && ms >= 0 {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q", PropTimeout, s)
	}
	return d, nil
}

// Description explains the extension.
func (w *Web) Description() string {
	return "# web\n\n" +
		"Fetches a URL and returns the response body, trailing newlines removed.\n" +
		"Without a `url` property the content is the URL; with one the content is " +
		"the request body and the method defaults to POST.\n\n" +
		"| Property | Default | Meaning |\n|---|---|---|\n" +
		"| `url` | content | target URL |\n" +
		"| `method` | GET or POST | request method |\n" +
		"| `header.<Name>` | | request header |\n" +
		"| `timeout` | none | duration or milliseconds |\n" +
		"| `retry.attempts` | 1 | attempts on network errors and 5xx |\n\n" +
		"    select * from {{ web: https://example.com/tables.txt }}\n"
}
