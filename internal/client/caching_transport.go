package client

import (
	"net/http"

	"github.com/gregjones/httpcache"
)

// NewCachingTransport wraps next with an in-memory HTTP cache that honours
// the backend's Cache-Control headers. It is only used for anonymous reads
// (certificate and institution listings), never for bearer requests, and
// lives as long as the client.
func NewCachingTransport(next http.RoundTripper) http.RoundTripper {
	transport := httpcache.NewTransport(httpcache.NewMemoryCache())
	transport.Transport = next

	return transport
}
