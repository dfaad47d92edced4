package domain

import "time"

// TokenPair is what a successful login, MFA challenge or refresh returns.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string // "Bearer"
	ExpiresIn        time.Duration
	RefreshExpiresAt time.Time
}

// RefreshToken is the stored record of an opaque refresh token. Only the
// fingerprint of the token is persisted.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string // base64url SHA-256
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// LoginMeta is request context recorded alongside auth events.
type LoginMeta struct {
	IP        string
	UserAgent string
}

// LoginResult is either a token pair or an MFA challenge, never both.
type LoginResult struct {
	User         User
	Tokens       *TokenPair
	MFARequired  bool
	MFASessionID string
}
