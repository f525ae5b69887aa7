package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/certifychain/certifychain/internal/logger"
	"github.com/certifychain/certifychain/internal/session"
	"github.com/klauspost/compress/gzhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/publicsuffix"
)

// Default endpoint paths.
const (
	DefaultLoginPath               = "/api/token/"
	DefaultRefreshPath             = "/api/token/refresh/"
	DefaultProfilePath             = "/api/user/profile/"
	DefaultRegisterEmployerPath    = "/api/auth/register/employer/"
	DefaultRegisterInstitutionPath = "/api/auth/register/institution/"

	certificatesPath      = "/api/certificates"
	certificateListPath   = "/api/certificates/list_all_blockchain"
	certificateIssuePath  = "/api/certificates/"
	certificateVerifyPath = "/api/certificates/verify"
	institutionsPath      = "/api/institutions"
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration

	// Debug logs every HTTP exchange, whatever the global log level.
	Debug bool

	LoginPath               string
	RefreshPath             string
	ProfilePath             string
	RegisterEmployerPath    string
	RegisterInstitutionPath string
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL:               "http://127.0.0.1:8000",
		Timeout:                 5 * time.Second,
		LoginPath:               DefaultLoginPath,
		RefreshPath:             DefaultRefreshPath,
		ProfilePath:             DefaultProfilePath,
		RegisterEmployerPath:    DefaultRegisterEmployerPath,
		RegisterInstitutionPath: DefaultRegisterInstitutionPath,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ServerURL == "" {
		c.ServerURL = d.ServerURL
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.LoginPath == "" {
		c.LoginPath = d.LoginPath
	}
	if c.RefreshPath == "" {
		c.RefreshPath = d.RefreshPath
	}
	if c.ProfilePath == "" {
		c.ProfilePath = d.ProfilePath
	}
	if c.RegisterEmployerPath == "" {
		c.RegisterEmployerPath = d.RegisterEmployerPath
	}
	if c.RegisterInstitutionPath == "" {
		c.RegisterInstitutionPath = d.RegisterInstitutionPath
	}
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	return c
}

// baseTransport is the chain shared by every client: request logging over
// gzip-aware transport.
func baseTransport(config Config) http.RoundTripper {
	return logger.NewRoundTripper(
		gzhttp.Transport(http.DefaultTransport),
		requestLogger(config, log.Logger),
	)
}

func requestLogger(config Config, base zerolog.Logger) zerolog.Logger {
	if config.Debug {
		return base.Level(zerolog.DebugLevel)
	}
	return base
}

func newJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}

// Client calls the certificate and institution endpoints. Requests made
// through it carry the session's bearer token and recover from 401s.
type Client struct {
	config Config
	http   *http.Client
	public *http.Client
}

// New creates an API client that authenticates with tokens from source.
func New(config Config, source session.TokenSource) (*Client, error) {
	config = config.withDefaults()

	jar, err := newJar()
	if err != nil {
		return nil, err
	}

	base := baseTransport(config)

	return &Client{
		config: config,
		http: &http.Client{
			Transport: otelhttp.NewTransport(session.NewTransport(base, source)),
			Timeout:   config.Timeout,
			Jar:       jar,
		},
		public: &http.Client{
			Transport: otelhttp.NewTransport(NewCachingTransport(base)),
			Timeout:   config.Timeout,
			Jar:       jar,
		},
	}, nil
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}

// doJSON sends in as a JSON body (when non-nil) and decodes a 2xx response
// into out (when non-nil). Error responses are returned as *APIError.
func doJSON(ctx context.Context, hc *http.Client, method, url string, header http.Header, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, url, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, url, nil)
	}
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
