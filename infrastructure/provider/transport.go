package provider

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// HeaderTransport injects fixed headers into every request. Used for the
// OpenAI-Project header, which the client library has no setting for.
type HeaderTransport struct {
	headers map[string]string
	inner   http.RoundTripper
}

// NewHeaderTransport wraps inner (http.DefaultTransport when nil).
func NewHeaderTransport(headers map[string]string, inner http.RoundTripper) *HeaderTransport {
	if inner == nil {
		inner = http.DefaultTransport
	}
	return &HeaderTransport{headers: headers, inner: inner}
}

// RoundTrip implements http.RoundTripper.
func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.inner.RoundTrip(req)
}

// CachingTransport caches POST request/response pairs on disk, keyed by
// SHA-256 of method, URL, and body. Embedding calls are deterministic per
// input, so re-ingestion runs and tests can replay responses without
// hitting the API. Only 2xx responses are cached; cache IO errors fall
// through to the inner transport.
type CachingTransport struct {
	inner http.RoundTripper
	dir   string
}

// NewCachingTransport stores cache files under dir. If inner is nil,
// http.DefaultTransport is used.
func NewCachingTransport(dir string, inner http.RoundTripper) *CachingTransport {
	if inner == nil {
		inner = http.DefaultTransport
	}
	_ = os.MkdirAll(dir, 0o755)
	return &CachingTransport{inner: inner, dir: dir}
}

type cachedResponse struct {
	StatusCode int                 `json:"status_code"`
	Header     map[string][]string `json:"header"`
	Body       string              `json:"body"`
}

// RoundTrip implements http.RoundTripper.
func (t *CachingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Body == nil {
		return t.inner.RoundTrip(req)
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	path := filepath.Join(t.dir, CacheKey(req.Method, req.URL.String(), body)+".json")

	if resp, ok := t.readEntry(path, req); ok {
		return resp, nil
	}

	resp, err := t.inner.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	_ = resp.Body.Close()

	t.writeEntry(path, resp.StatusCode, resp.Header, respBody)

	resp.Body = io.NopCloser(bytes.NewReader(respBody))
	return resp, nil
}

// CacheKey derives the cache file name for one request.
func CacheKey(method, url string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte{'\n'})
	h.Write([]byte(url))
	h.Write([]byte{'\n'})
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func (t *CachingTransport) readEntry(path string, req *http.Request) (*http.Response, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false
	}
	body, err := base64.StdEncoding.DecodeString(cached.Body)
	if err != nil {
		return nil, false
	}

	return &http.Response{
		StatusCode: cached.StatusCode,
		Header:     cached.Header,
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    req,
	}, true
}

func (t *CachingTransport) writeEntry(path string, statusCode int, header http.Header, body []byte) {
	data, err := json.Marshal(cachedResponse{
		StatusCode: statusCode,
		Header:     header,
		Body:       base64.StdEncoding.EncodeToString(body),
	})
	if err != nil {
		return
	}
	_ = os.WriteFile(path, data, 0o644)
}
