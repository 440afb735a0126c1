package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/CMZCoder/CommerzioS-sub000/internal/database"
	"github.com/CMZCoder/CommerzioS-sub000/internal/domain"
	"github.com/CMZCoder/CommerzioS-sub000/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned on a failed login without disclosing
// whether the account exists.
var ErrInvalidCredentials = fmt.Errorf("invalid credentials")

// AuthService handles registration, login and bearer-token sessions.
type AuthService struct {
	users      domain.UserRepository
	sessions   domain.SessionRepository
	sessionTTL time.Duration
	logger     *zerolog.Logger
}

func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository, sessionTTL time.Duration, logger *zerolog.Logger) *AuthService {
	if sessionTTL <= 0 {
		sessionTTL = time.Duration(models.DefaultSessionTTL) * time.Second
	}
	return &AuthService{users: users, sessions: sessions, sessionTTL: sessionTTL, logger: logger}
}

// RegisterInput is a new account request.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
	Phone    string
	Role     string // customer or vendor
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email")
	}
	if len(input.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	if input.Role != models.RoleCustomer && input.Role != models.RoleVendor {
		return nil, fmt.Errorf("invalid role %q", input.Role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(input.Name),
		Phone:        strings.TrimSpace(input.Phone),
		Role:         input.Role,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", user.ID).Str("role", user.Role).Msg("user registered")
	return user, nil
}

// Login verifies credentials and issues a session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.Session, *models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if err == database.ErrNotFound {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if user.Blocked {
		return nil, nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	session := &models.Session{
		Token:     uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.SetSession(ctx, session); err != nil {
		return nil, nil, err
	}
	return session, user, nil
}

// Logout revokes a session token. Unknown tokens are a no-op.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.DeleteSession(ctx, token)
}

// Authenticate resolves a bearer token to its user.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, database.ErrNotFound
	}
	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user.Blocked {
		return nil, database.ErrNotFound
	}
	return user, nil
}

func (s *AuthService) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.users.GetUserByID(ctx, id)
}

// SetBlocked toggles the admin block flag on an account.
func (s *AuthService) SetBlocked(ctx context.Context, userID string, blocked bool) error {
	return s.users.SetUserBlocked(ctx, userID, blocked)
}
