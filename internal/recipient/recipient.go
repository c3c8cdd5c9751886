// Package recipient resolves the verified external-network account for a
// user. There is exactly one authoritative record per user; the platform
// operator's revenue recipient is the record stored under the configured
// platform user id, never discovered by scanning.
package recipient

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured indicates the user has no verified payout account. Flows
// that hit this fail fast and terminally; remediation is manual.
var ErrNotConfigured = errors.New("payout recipient not configured")

// Account is a user's payout destination on the external network.
type Account struct {
	UserID    string
	Email     string
	Verified  bool
	UpdatedAt time.Time
}

// Repository persists payout accounts.
type Repository interface {
	Get(ctx context.Context, userID string) (Account, error)
	Upsert(ctx context.Context, account Account) error
}

// Service resolves payout destinations.
type Service struct {
	repo Repository
}

// NewService builds a recipient service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve returns the verified payee email for the user, or ErrNotConfigured
// when the record is absent or unverified.
func (s *Service) Resolve(ctx context.Context, userID string) (string, error) {
	account, err := s.repo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return "", err
		}
		return "", err
	}
	if !account.Verified || account.Email == "" {
		return "", ErrNotConfigured
	}
	return account.Email, nil
}

// Register stores or replaces the payout account for a user.
func (s *Service) Register(ctx context.Context, userID, email string, verified bool) (Account, error) {
	account := Account{UserID: userID, Email: email, Verified: verified, UpdatedAt: time.Now().UTC()}
	if err := s.repo.Upsert(ctx, account); err != nil {
		return Account{}, err
	}
	return account, nil
}
