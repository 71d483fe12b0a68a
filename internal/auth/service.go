package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-admin/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-admin/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: httpx.NewValidator(), now: time.Now}
}

// Authenticate validates email/password credentials. Unknown emails and
// wrong passwords fail the same way.
func (s *Service) Authenticate(ctx context.Context, in Credentials) (*User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := httpx.Validate(s.validate, in); err != nil {
		return nil, err
	}
	user, err := s.repo.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			return nil, failedLogin()
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, failedLogin()
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, ttl time.Duration, ip, ua string) error {
	now := s.now()
	return s.repo.CreateSession(ctx, SessionRecord{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		IP:        ip,
		UserAgent: ua,
	})
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}

func failedLogin() error {
	return errors.Join(shared.ErrInvalidCredentials, httpx.FieldError("email", FailedLoginMessage))
}
