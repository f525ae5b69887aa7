package session

import "github.com/certifychain/certifychain/internal/models"

// State is the position of a Manager in the session lifecycle.
//
//	Uninitialized -> Loading -> {Authenticated, Unauthenticated}
//	Authenticated -> Unauthenticated (logout, refresh failure)
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// Session is a snapshot of the client-side authentication record.
type Session struct {
	AccessToken   string
	RefreshToken  string
	User          *models.User
	Authenticated bool
	Loading       bool
}

// Tokens is the result of a login or refresh exchange. Refresh and User are
// optional on refresh.
type Tokens struct {
	Access  string
	Refresh string
	User    *models.User
}
