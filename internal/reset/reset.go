// Package reset implements the password reset flow: a six-digit code is
// mailed to the account address, exchanged for a short-lived reset token,
// and the token is spent to set a new password.
//
// Flow state is implicit in which verification_tokens rows exist. A plain
// email identifier holds a pending code; "reset:"+email holds a verified
// reset token. Every record is single use and expires after ten minutes.
package reset

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/dukerupert/huddle/internal/model"
	"github.com/dukerupert/huddle/internal/password"
	"github.com/dukerupert/huddle/internal/store"
)

const (
	CodeTTL     = 10 * time.Minute
	ResetTTL    = 10 * time.Minute
	ResetPrefix = "reset:"

	codeLength = 6
)

var (
	ErrInvalidCode       = errors.New("invalid or expired code")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)

// Sender delivers reset codes to users.
type Sender interface {
	SendResetCode(ctx context.Context, toEmail, code string) error
}

type Service struct {
	users    *store.UserStore
	sessions *store.SessionStore
	tokens   *store.VerificationTokenStore
	hasher   *password.Hasher
	sender   Sender
	now      func() time.Time
	logger   *slog.Logger

	dummyOnce   sync.Once
	dummyDigest string
}

type Option func(*Service)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(users *store.UserStore, sessions *store.SessionStore, tokens *store.VerificationTokenStore, hasher *password.Hasher, sender Sender, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		users:    users,
		sessions: sessions,
		tokens:   tokens,
		hasher:   hasher,
		sender:   sender,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// generateCode returns a 6-digit numeric code (100000–999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func generateResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ValidCode reports whether code has the shape of a reset code.
func ValidCode(code string) bool {
	if len(code) != codeLength {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// burn spends one bcrypt comparison so that misses cost about as much as
// hits.
func (s *Service) burn(secret string) {
	s.dummyOnce.Do(func() {
		s.dummyDigest, _ = s.hasher.Hash("huddle-dummy-secret")
	})
	s.hasher.Compare(secret, s.dummyDigest)
}

// RequestReset mails a fresh code to email if an account exists. Only a
// failure to look the account up is returned; the caller answers the same
// way whether or not the account exists.
func (s *Service) RequestReset(ctx context.Context, email string) error {
	email = store.NormalizeEmail(email)

	u, err := s.users.GetByEmail(email)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if u == nil {
		s.burn(email)
		return nil
	}

	code, err := generateCode()
	if err != nil {
		s.logger.Error("reset code not issued", "user_id", u.ID, "error", err)
		return nil
	}
	digest, err := s.hasher.Hash(code)
	if err != nil {
		s.logger.Error("reset code not issued", "user_id", u.ID, "error", err)
		return nil
	}

	// one pending code per email; older codes stop working
	if _, err := s.tokens.Replace(email, digest, s.now().Add(CodeTTL)); err != nil {
		s.logger.Error("store reset code", "user_id", u.ID, "error", err)
		return nil
	}

	if err := s.sender.SendResetCode(ctx, email, code); err != nil {
		s.logger.Error("send reset code", "user_id", u.ID, "error", err)
		return nil
	}
	s.logger.Info("reset code sent", "user_id", u.ID)
	return nil
}

// match returns the first unexpired record whose digest matches secret.
func (s *Service) match(records []model.VerificationToken, secret string) *model.VerificationToken {
	now := s.now()
	compared := false
	for i := range records {
		if records[i].Expired(now) {
			continue
		}
		compared = true
		if s.hasher.Compare(secret, records[i].TokenHash) {
			return &records[i]
		}
	}
	if !compared {
		s.burn(secret)
	}
	return nil
}

// VerifyCode consumes a valid code for email and returns a reset token.
// Any verification failure is ErrInvalidCode.
func (s *Service) VerifyCode(ctx context.Context, email, code string) (string, error) {
	email = store.NormalizeEmail(email)
	if !ValidCode(code) {
		return "", ErrInvalidCode
	}

	records, err := s.tokens.ListByIdentifier(email)
	if err != nil {
		return "", fmt.Errorf("list reset codes: %w", err)
	}
	rec := s.match(records, code)
	if rec == nil {
		s.logger.Debug("reset code rejected", "candidates", len(records))
		return "", ErrInvalidCode
	}

	resetToken, err := generateResetToken()
	if err != nil {
		return "", err
	}
	digest, err := s.hasher.Hash(resetToken)
	if err != nil {
		return "", fmt.Errorf("hash reset token: %w", err)
	}

	err = s.tokens.Exchange(rec.ID, ResetPrefix+email, digest, s.now().Add(ResetTTL))
	if errors.Is(err, store.ErrTokenConsumed) {
		// a concurrent request spent the same code
		return "", ErrInvalidCode
	}
	if err != nil {
		return "", fmt.Errorf("exchange reset code: %w", err)
	}
	return resetToken, nil
}

// ResetPassword spends resetToken to set a new password for email and ends
// all of the user's sessions.
func (s *Service) ResetPassword(ctx context.Context, email, resetToken, newPassword string) error {
	email = store.NormalizeEmail(email)
	if resetToken == "" {
		return ErrInvalidResetToken
	}

	digest, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	records, err := s.tokens.ListByIdentifier(ResetPrefix + email)
	if err != nil {
		return fmt.Errorf("list reset tokens: %w", err)
	}
	rec := s.match(records, resetToken)
	if rec == nil {
		return ErrInvalidResetToken
	}

	deleted, err := s.tokens.Delete(rec.ID)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if !deleted {
		return ErrInvalidResetToken
	}

	u, err := s.users.GetByEmail(email)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if u == nil {
		return ErrInvalidResetToken
	}
	if err := s.users.UpdatePassword(u.ID, digest); err != nil {
		return err
	}
	if err := s.sessions.DeleteByUserID(u.ID); err != nil {
		return err
	}
	s.logger.Info("password reset", "user_id", u.ID)
	return nil
}

// Cleanup deletes expired codes and reset tokens.
func (s *Service) Cleanup() (int64, error) {
	return s.tokens.DeleteExpired(s.now())
}
