package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/migchat-gateway/internal/store"
)

// ErrUnknownUser is returned when a valid token names a user that no longer exists.
var ErrUnknownUser = errors.New("unknown user")

// UserLookup is the part of the store the authenticator needs.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*store.User, error)
}

// Identity is an authenticated caller.
type Identity struct {
	UserID   string
	Username string
	Role     store.UserRole
}

// Service authenticates bearer tokens issued by the REST API.
type Service struct {
	users     UserLookup
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(users UserLookup, jwtConfig *JWTConfig) *Service {
	return &Service{users: users, jwtConfig: jwtConfig}
}

// Enabled reports whether a secret is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.jwtConfig.Enabled()
}

// Authenticate validates the token and confirms the user still exists.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := ValidateToken(s.jwtConfig, token)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	role := user.Role
	if role == "" {
		role = claims.Role
	}
	return &Identity{UserID: user.ID, Username: user.Username, Role: role}, nil
}

// IssueToken signs a token for an existing user.
func (s *Service) IssueToken(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrUnknownUser
		}
		return "", fmt.Errorf("load user: %w", err)
	}
	return GenerateToken(s.jwtConfig, user.ID, user.Username, user.Role)
}
