package session

import (
	"context"
	"io"
	"net/http"

	"github.com/certifychain/certifychain/internal/credentials"
	"github.com/certifychain/certifychain/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// TokenSource supplies bearer credentials per request.
type TokenSource interface {
	// AccessToken returns the current access token if it is still valid.
	AccessToken(ctx context.Context) (string, bool)
	// CanRefresh reports whether a refresh exchange could succeed.
	CanRefresh(ctx context.Context) bool
	// Refresh replaces stale with a new access token.
	Refresh(ctx context.Context, stale string) (string, error)
}

type retriedKey struct{}

// WithRetried marks ctx so the Transport performs no refresh for requests
// made with it.
func WithRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

// IsRetried reports whether ctx was marked by WithRetried.
func IsRetried(ctx context.Context) bool {
	retried, _ := ctx.Value(retriedKey{}).(bool)
	return retried
}

// Transport attaches bearer credentials to outgoing requests and recovers
// from a 401 with at most one refresh and one replay per request.
type Transport struct {
	Base   http.RoundTripper
	Source TokenSource
}

var _ http.RoundTripper = (*Transport)(nil)

// NewTransport wraps base. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, source TokenSource) *Transport {
	return &Transport{Base: base, Source: source}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	token, ok := t.Source.AccessToken(ctx)

	// An expired access token is never sent; refresh ahead of the request
	// instead. The request then counts as retried.
	if !ok && !IsRetried(ctx) && t.Source.CanRefresh(ctx) {
		refreshed, err := t.Source.Refresh(ctx, "")
		if err != nil {
			log.Debug().Err(err).Msg("proactive token refresh failed")
		} else {
			token, ok = refreshed, true
		}
		ctx = WithRetried(ctx)
	}

	out := req.Clone(ctx)
	if ok {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}

	resp, err := t.base().RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || IsRetried(ctx) {
		return resp, err
	}

	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		log.Warn().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Msg("request body cannot be replayed, skipping token refresh")
		return resp, nil
	}

	ctx = WithRetried(ctx)

	fresh, err := t.Source.Refresh(ctx, token)
	if err != nil {
		log.Warn().
			Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Msg("token refresh after 401 failed")
		return resp, nil
	}

	replay := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			log.Warn().Err(err).Msg("failed to rewind request body")
			return resp, nil
		}
		replay.Body = body
	}
	replay.Header.Set("Authorization", "Bearer "+fresh)

	drain(resp)

	telemetry.GetMetrics().ReplaysTotal.Add(ctx, 1)

	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("access", credentials.Fingerprint(fresh)).
		Msg("replaying request with refreshed token")

	return t.base().RoundTrip(replay)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
