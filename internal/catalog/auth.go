package catalog

import (
	"crypto/ecdsa"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mkellner/curator/internal/constants"
)

// TokenSource mints and caches ES256 developer tokens. A token is
// reused until it comes within the refresh slack of its expiry, then a
// new one is signed. Safe for concurrent use.
type TokenSource struct {
	teamID string
	keyID  string
	key    *ecdsa.PrivateKey
	maxAge time.Duration

	mu      sync.Mutex
	token   string
	expiry  time.Time
	nowFunc func() time.Time
}

func NewTokenSource(teamID, keyID string, pemKey []byte) (*TokenSource, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return &TokenSource{
		teamID:  teamID,
		keyID:   keyID,
		key:     key,
		maxAge:  constants.TokenMaxAge,
		nowFunc: time.Now,
	}, nil
}

func NewTokenSourceFromFile(teamID, keyID, path string) (*TokenSource, error) {
	pemKey, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key file: %w", err)
	}
	return NewTokenSource(teamID, keyID, pemKey)
}

// Token returns a valid developer token, signing a fresh one when the
// cached token is absent or close to expiry.
func (ts *TokenSource) Token() (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	now := ts.nowFunc()
	if ts.token != "" && now.Before(ts.expiry.Add(-constants.TokenRefreshSlack)) {
		return ts.token, nil
	}

	expiry := now.Add(ts.maxAge)
	claims := jwt.MapClaims{
		"iss": ts.teamID,
		"iat": now.Unix(),
		"exp": expiry.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = ts.keyID

	signed, err := token.SignedString(ts.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign developer token: %w", err)
	}

	ts.token = signed
	ts.expiry = expiry
	return signed, nil
}
