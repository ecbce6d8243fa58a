package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/jellydator/ttlcache/v2"
)

type cacheTTLKey struct{}

// withCacheTTL attaches a freshness hint for the caching transport to the
// request context. A zero or negative TTL bypasses the cache entirely.
func withCacheTTL(ctx context.Context, ttl time.Duration) context.Context {
	if ttl <= 0 {
		return ctx
	}
	return context.WithValue(ctx, cacheTTLKey{}, ttl)
}

func cacheTTLFrom(ctx context.Context) time.Duration {
	ttl, _ := ctx.Value(cacheTTLKey{}).(time.Duration)
	return ttl
}

type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

// cachingTransport is a time-bounded revalidation cache in front of the
// upstream API, keyed by URL. It stands in for a CDN-side fetch cache: only
// successful GET responses are stored, for the TTL the caller hinted.
type cachingTransport struct {
	base  http.RoundTripper
	store *ttlcache.Cache
}

func newCachingTransport(base http.RoundTripper) *cachingTransport {
	store := ttlcache.NewCache()
	store.SkipTTLExtensionOnHit(true)
	return &cachingTransport{base: base, store: store}
}

func (t *cachingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ttl := cacheTTLFrom(req.Context())
	if req.Method != http.MethodGet || ttl <= 0 {
		return t.base.RoundTrip(req)
	}

	key := req.URL.String()
	if entry, err := t.store.Get(key); err == nil {
		if cached, ok := entry.(*cachedResponse); ok {
			return cached.response(req), nil
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, err
	}
	cached := &cachedResponse{
		status: resp.StatusCode,
		header: resp.Header.Clone(),
		body:   body,
	}
	_ = t.store.SetWithTTL(key, cached, ttl)

	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}

func (c *cachedResponse) response(req *http.Request) *http.Response {
	return &http.Response{
		StatusCode:    c.status,
		Status:        http.StatusText(c.status),
		Header:        c.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(c.body)),
		ContentLength: int64(len(c.body)),
		Request:       req,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
	}
}
