package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind discriminates access from refresh tokens. The codec embeds it as
// a claim; enforcing it is the caller's job.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenErrorKind tags verification failures so callers branch on a value
// instead of signing-library error types.
type TokenErrorKind int

const (
	// TokenExpired: signature fine, current time at or past embedded expiry.
	TokenExpired TokenErrorKind = iota
	// TokenMalformed: structure or signature invalid, or the wrong kind of
	// token was presented.
	TokenMalformed
	// TokenUnknown: any other decode failure.
	TokenUnknown
)

// TokenError is the kind-tagged failure returned by Codec.Verify.
type TokenError struct {
	Kind  TokenErrorKind
	cause error
}

func (e *TokenError) Error() string {
	switch e.Kind {
	case TokenExpired:
		return "auth: token expired"
	case TokenMalformed:
		return "auth: token malformed or tampered"
	default:
		return "auth: token verification failed"
	}
}

func (e *TokenError) Unwrap() error { return e.cause }

// Claims is the payload carried by every token this service mints.
type Claims struct {
	Email     string    `json:"email,omitempty"`
	TokenType TokenKind `json:"token_type"`
	jwt.RegisteredClaims
}

// Codec signs and verifies compact HS256 tokens under one shared secret.
// Sign computes expiry from the wall clock at call time, so two tokens for
// the same payload validate independently.
type Codec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithIssuer sets the iss claim stamped on and required of every token.
func WithIssuer(issuer string) CodecOption {
	return func(c *Codec) {
		c.issuer = strings.TrimSpace(issuer)
	}
}

// WithCodecClock overrides the time source (useful for expiry tests).
func WithCodecClock(now func() time.Time) CodecOption {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec constructs a Codec. The secret must be non-empty; defaulting to a
// well-known value is a config-layer failure, never a codec fallback.
func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	c := &Codec{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sign mints a token of the given kind. Refresh tokens deliberately omit the
// email claim; they prove identity only to the refresh flow. A non-positive
// ttl mints a token whose expiry is already in the past; Verify reports it
// as expired.
func (c *Codec) Sign(userID, email string, kind TokenKind, ttl time.Duration) (string, time.Time, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", time.Time{}, errors.New("auth: userID is required")
	}

	now := c.now().UTC()
	exp := now.Add(ttl)
	claims := Claims{
		TokenType: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	if kind == TokenKindAccess {
		claims.Email = strings.TrimSpace(strings.ToLower(email))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature and expiry. All failures come back as *TokenError.
func (c *Codec) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, &TokenError{Kind: TokenMalformed, cause: errors.New("empty token")}
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, opts...)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, &TokenError{Kind: TokenUnknown, cause: errors.New("unexpected claims type")}
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, &TokenError{Kind: TokenMalformed, cause: errors.New("subject missing")}
	}
	return claims, nil
}

func classifyTokenError(err error) *TokenError {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return &TokenError{Kind: TokenExpired, cause: err}
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return &TokenError{Kind: TokenMalformed, cause: err}
	default:
		return &TokenError{Kind: TokenUnknown, cause: err}
	}
}
