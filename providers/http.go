package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brettbedarf/codetree"
	"github.com/brettbedarf/codetree/internal/metrics"
	"github.com/brettbedarf/codetree/internal/util"
)

// HTTPSource contains http-specific source fields. Documents are fetched from
// URL joined with the entry path; listing directories is not supported.
type HTTPSource struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

func (h *HTTPSource) Provider(ctx context.Context) (codetree.StorageProvider, error) {
	base, err := parseBaseURL(h.URL)
	if err != nil {
		return nil, err
	}
	return NewHTTP(http.DefaultClient, base, h.Headers), nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("http source: url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("http source: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("http source: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("http source: missing host in %q", raw)
	}
	if u.User != nil {
		return nil, errors.New("http source: credentials in url are not allowed, use headers")
	}
	return u, nil
}

// HTTPClient is the subset of *http.Client used by [HTTP]
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTP implements [codetree.StorageProvider] for documents served over HTTP.
// Open is a GET, Stat a HEAD and Create a PUT issued on Close.
type HTTP struct {
	client  HTTPClient
	base    *url.URL
	headers map[string]string
}

func NewHTTP(client HTTPClient, base *url.URL, headers map[string]string) *HTTP {
	return &HTTP{client: client, base: base, headers: headers}
}

func (h *HTTP) Root() string {
	return h.base.String()
}

func (h *HTTP) newRequest(ctx context.Context, method, p string, body io.Reader) (*http.Request, error) {
	u := h.base.JoinPath(strings.TrimPrefix(codetree.CleanPath(p), "/"))
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}

	// Add custom headers
	for k, v := range h.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (h *HTTP) do(ctx context.Context, method, p string, body io.Reader) (*http.Response, error) {
	req, err := h.newRequest(ctx, method, p, body)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	ok := err == nil && resp.StatusCode >= 200 && resp.StatusCode < 300
	metrics.RecordStorageOperation(HTTPType, strings.ToLower(method), time.Since(start), ok)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, p, err)
	}
	if !ok {
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%s: %w", p, codetree.ErrNotExist)
		}
		return nil, fmt.Errorf("%s %s: unexpected status %s", method, p, resp.Status)
	}
	return resp, nil
}

// ReadDir always fails; plain HTTP has no directory listing
func (h *HTTP) ReadDir(ctx context.Context, p string) ([]codetree.Entry, error) {
	return nil, fmt.Errorf("read dir %s: %w", p, ErrNotSupported)
}

func (h *HTTP) Stat(ctx context.Context, p string) (codetree.Entry, error) {
	resp, err := h.do(ctx, http.MethodHead, p, nil)
	if err != nil {
		return codetree.Entry{}, err
	}
	defer resp.Body.Close()

	e := codetree.NewEntry(p, codetree.KindFile)
	if resp.ContentLength > 0 {
		e.Size = resp.ContentLength
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			e.ModTime = t
		}
	}
	return e, nil
}

func (h *HTTP) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	resp, err := h.do(ctx, http.MethodGet, p, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (h *HTTP) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &httpWriter{ctx: ctx, h: h, path: p}, nil
}

var _ codetree.StorageProvider = (*HTTP)(nil)

type httpWriter struct {
	ctx    context.Context
	h      *HTTP
	path   string
	buf    bytes.Buffer
	closed bool
}

func (w *httpWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write to closed http writer")
	}
	return w.buf.Write(p)
}

func (w *httpWriter) Close() error {
	logger := util.GetLogger("HTTP.Put")
	if w.closed {
		return nil
	}
	w.closed = true

	resp, err := w.h.do(w.ctx, http.MethodPut, w.path, bytes.NewReader(w.buf.Bytes()))
	if err != nil {
		return err
	}
	resp.Body.Close()
	logger.Debug().Str("path", w.path).Int("size", w.buf.Len()).Msg("Uploaded document")
	return nil
}
