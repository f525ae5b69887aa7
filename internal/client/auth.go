package client

import (
	"context"
	"net/http"

	"github.com/certifychain/certifychain/internal/models"
	"github.com/certifychain/certifychain/internal/session"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// AuthClient calls the token and profile endpoints. It never attaches
// session credentials on its own, so the refresh exchange cannot recurse
// into the session transport.
type AuthClient struct {
	config Config
	http   *http.Client
}

var (
	_ session.Refresher      = (*AuthClient)(nil)
	_ session.ProfileFetcher = (*AuthClient)(nil)
)

// NewAuthClient creates a client for the authentication endpoints.
func NewAuthClient(config Config) (*AuthClient, error) {
	config = config.withDefaults()

	jar, err := newJar()
	if err != nil {
		return nil, err
	}

	return &AuthClient{
		config: config,
		http: &http.Client{
			Transport: otelhttp.NewTransport(baseTransport(config)),
			Timeout:   config.Timeout,
			Jar:       jar,
		},
	}, nil
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// loginResponse accepts every login shape the backend has used:
// {access, refresh}, {token} and {user, tokens: {access, refresh}}.
type loginResponse struct {
	tokenPair
	Token  string       `json:"token"`
	User   *models.User `json:"user"`
	Tokens *tokenPair   `json:"tokens"`
}

func (r *loginResponse) tokens() *session.Tokens {
	t := &session.Tokens{
		Access:  r.Access,
		Refresh: r.Refresh,
		User:    r.User,
	}
	if r.Tokens != nil {
		if t.Access == "" {
			t.Access = r.Tokens.Access
		}
		if t.Refresh == "" {
			t.Refresh = r.Tokens.Refresh
		}
	}
	if t.Access == "" {
		t.Access = r.Token
	}
	return t
}

// Login exchanges email and password for a token pair.
func (a *AuthClient) Login(ctx context.Context, email, password string) (*session.Tokens, error) {
	var resp loginResponse
	err := doJSON(ctx, a.http, http.MethodPost, a.config.ServerURL+a.config.LoginPath, nil,
		loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}

	tokens := resp.tokens()
	if tokens.Access == "" {
		return nil, ErrNoToken
	}

	return tokens, nil
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access  string       `json:"access"`
	Refresh string       `json:"refresh"`
	User    *models.User `json:"user"`
}

// RefreshToken exchanges a refresh token for a new access token. A rotated
// refresh token is returned when the backend sends one.
func (a *AuthClient) RefreshToken(ctx context.Context, refreshToken string) (*session.Tokens, error) {
	var resp refreshResponse
	err := doJSON(ctx, a.http, http.MethodPost, a.config.ServerURL+a.config.RefreshPath, nil,
		refreshRequest{Refresh: refreshToken}, &resp)
	if err != nil {
		return nil, err
	}

	if resp.Access == "" {
		return nil, ErrNoToken
	}

	return &session.Tokens{Access: resp.Access, Refresh: resp.Refresh, User: resp.User}, nil
}

// FetchProfile loads the profile of the owner of accessToken.
func (a *AuthClient) FetchProfile(ctx context.Context, accessToken string) (*models.User, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+accessToken)

	var user models.User
	if err := doJSON(ctx, a.http, http.MethodGet, a.config.ServerURL+a.config.ProfilePath, header, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
