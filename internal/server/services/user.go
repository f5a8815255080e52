package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mkuzmins/homeboard/internal/common"
	"github.com/mkuzmins/homeboard/internal/server/auth"
	"github.com/mkuzmins/homeboard/internal/server/models"
	"github.com/mkuzmins/homeboard/internal/server/repositories/repomanager"
)

// UserService registers principals and issues access tokens. The deployment
// is a trusted home network, so login is by name only; the token exists to
// scope channel subscriptions and API calls to a principal, not to keep
// strangers out.
type UserService struct {
	db            *sql.DB
	repomanager   repomanager.RepositoryManager
	secretKey     []byte
	tokenValidity time.Duration
}

func NewUserService(db *sql.DB, rm repomanager.RepositoryManager, secretKey []byte, tokenValidity time.Duration) *UserService {
	return &UserService{
		db:            db,
		repomanager:   rm,
		secretKey:     secretKey,
		tokenValidity: tokenValidity,
	}
}

// Register creates a principal. Registering an existing login is an error
// from the unique constraint.
func (s *UserService) Register(ctx context.Context, login, displayName string) (*models.User, error) {
	if displayName == "" {
		displayName = login
	}
	return s.repomanager.Users(s.db).Create(ctx, &models.User{Login: login, DisplayName: displayName})
}

// Login resolves the login and issues a signed access token for it.
func (s *UserService) Login(ctx context.Context, login string) (*models.User, string, error) {
	user, err := s.repomanager.Users(s.db).GetByLogin(ctx, login)
	if err != nil {
		return nil, "", err
	}
	token, err := auth.GenerateToken(user.ID, s.secretKey, s.tokenValidity)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Authenticate validates a token and returns the principal it names.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := auth.GetUserIDFromToken(token, s.secretKey)
	if err != nil {
		return nil, common.ErrInvalidToken
	}
	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}
