package credentials

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/certifychain/certifychain/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

var (
	// ErrMissingExpiry is returned when a token carries no exp claim.
	ErrMissingExpiry = errors.New("token has no expiry")
)

// Claims is the shape of tokens minted by MintToken. Decoding never
// depends on it: tokens are read as generic claim maps and their signatures
// are never verified client-side.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string       `json:"token_type,omitempty"`
	User      *models.User `json:"user,omitempty"`
}

var parser = jwt.NewParser(jwt.WithoutClaimsValidation())

// ExpiresAt returns the embedded expiry of a token. Only the exp claim is
// read; other claims may hold any JSON.
func ExpiresAt(token string) (time.Time, error) {
	claims, err := parseMap(token)
	if err != nil {
		return time.Time{}, err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read expiry: %w", err)
	}
	if exp == nil {
		return time.Time{}, ErrMissingExpiry
	}
	return exp.Time, nil
}

func parseMap(token string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}

// IsExpired reports whether token's expiry has passed.
func IsExpired(token string) bool {
	return IsExpiredAt(token, time.Now())
}

// IsExpiredAt reports whether token is expired at now. Tokens that fail to
// decode, or that carry no expiry, are expired.
func IsExpiredAt(token string, now time.Time) bool {
	if token == "" {
		return true
	}
	exp, err := ExpiresAt(token)
	if err != nil {
		return true
	}
	return exp.Before(now)
}

// UserFromToken returns the user claim embedded in token, if any. A user
// claim that does not fit models.User counts as absent.
func UserFromToken(token string) (*models.User, bool) {
	claims, err := parseMap(token)
	if err != nil {
		return nil, false
	}
	raw, ok := claims["user"].(map[string]any)
	if !ok {
		return nil, false
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, false
	}
	return &user, true
}

// Fingerprint identifies a token in logs and output without revealing it.
// It is the Base58-encoded SHA256 of the token, truncated to 12 characters.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(token))
	fp := base58.Encode(hash[:])
	if len(fp) > 12 {
		fp = fp[:12]
	}
	return fp
}

// MintToken creates an HS256-signed token carrying claims.
// Used primarily for testing.
func MintToken(key []byte, claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// MintTokenExpiringAt creates a token of tokenType that expires at exp.
// Used primarily for testing.
func MintTokenExpiringAt(tokenType string, exp time.Time, user *models.User) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "certifychain-test",
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		TokenType: tokenType,
		User:      user,
	}
	return MintToken([]byte("certifychain-test-key"), claims)
}
