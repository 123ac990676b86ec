// Package token issues and verifies the signed claims tokens used for admin
// portal sessions and cross-domain API access.
//
// Both token kinds are HS256 JWTs keyed by the process-wide session secret.
// They carry different audiences, so an admin session token is never accepted
// as an API token and vice versa. Verification fails closed: every failure
// wraps ErrInvalidToken and callers must not branch on the cause.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AdminTTL = 8 * time.Hour
	APITTL   = 1 * time.Hour

	AdminAudience = "huddle-admin"
	APIAudience   = "huddle-api"

	// MinSecretLength is the shortest accepted signing secret in bytes.
	MinSecretLength = 32

	apiTokenType = "at+jwt"
)

var ErrInvalidToken = errors.New("invalid token")

// AdminIdentity is the principal an admin session token is issued for.
type AdminIdentity struct {
	UserID   int64
	Username string
}

// AdminClaims are embedded in an admin session token.
type AdminClaims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
	jwt.RegisteredClaims
}

// APIIdentity is the user a cross-domain API token is issued for.
type APIIdentity struct {
	UserID int64
	Email  string
	Name   string
	Role   string
}

// APIClaims are embedded in a cross-domain API token.
type APIClaims struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// Manager signs and verifies tokens. It is safe for concurrent use.
type Manager struct {
	secret []byte
	issuer string
	now    func() time.Time
}

type Option func(*Manager)

// WithClock overrides the time source used for iat/exp.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithIssuer sets the iss claim written to and required from tokens.
func WithIssuer(issuer string) Option {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

// NewManager returns a Manager keyed by secret. The secret is copied.
func NewManager(secret []byte, opts ...Option) (*Manager, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	m := &Manager{
		secret: append([]byte(nil), secret...),
		issuer: "huddle",
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) registered(subject int64, audience string, ttl time.Duration) jwt.RegisteredClaims {
	now := m.now()
	return jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   strconv.FormatInt(subject, 10),
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// IssueAdmin signs an 8-hour admin session token.
func (m *Manager) IssueAdmin(id AdminIdentity) (string, AdminClaims, error) {
	claims := AdminClaims{
		UserID:           id.UserID,
		Username:         id.Username,
		IsAdmin:          true,
		RegisteredClaims: m.registered(id.UserID, AdminAudience, AdminTTL),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", AdminClaims{}, fmt.Errorf("sign admin token: %w", err)
	}
	return signed, claims, nil
}

// IssueAPI signs a 1-hour cross-domain API token.
func (m *Manager) IssueAPI(id APIIdentity) (string, APIClaims, error) {
	claims := APIClaims{
		UserID:           id.UserID,
		Email:            id.Email,
		Name:             id.Name,
		Role:             id.Role,
		RegisteredClaims: m.registered(id.UserID, APIAudience, APITTL),
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tok.Header["typ"] = apiTokenType

	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", APIClaims{}, fmt.Errorf("sign api token: %w", err)
	}
	return signed, claims, nil
}

// VerifyAdmin parses raw and returns its claims if the signature, audience
// and expiry are valid and the token carries the admin flag.
func (m *Manager) VerifyAdmin(raw string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	if err := m.parse(raw, claims, AdminAudience); err != nil {
		return nil, err
	}
	if !claims.IsAdmin {
		return nil, fmt.Errorf("%w: missing admin flag", ErrInvalidToken)
	}
	return claims, nil
}

// VerifyAPI parses raw and returns its claims if the signature, audience,
// token type and expiry are valid.
func (m *Manager) VerifyAPI(raw string) (*APIClaims, error) {
	claims := &APIClaims{}
	if err := m.parse(raw, claims, APIAudience); err != nil {
		return nil, err
	}
	if claims.UserID == 0 {
		return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}
	return claims, nil
}

func (m *Manager) parse(raw string, claims jwt.Claims, audience string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidToken)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithAudience(audience),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)

	tok, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if audience == APIAudience && t.Header["typ"] != apiTokenType {
			return nil, errors.New("unexpected token type")
		}
		return m.secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tok.Valid {
		return ErrInvalidToken
	}
	return nil
}
