package services

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/judoassistant/tournament-sync/internal/common"
	"github.com/judoassistant/tournament-sync/internal/logging"
	"github.com/judoassistant/tournament-sync/internal/server/config"
	"github.com/judoassistant/tournament-sync/internal/server/models"
	"github.com/judoassistant/tournament-sync/internal/server/repositories/repomanager"
	"golang.org/x/crypto/bcrypt"
)

// Session is an issued bearer token.
type Session struct {
	UserID     int64
	Token      string
	Expiration time.Time
}

type UserService struct {
	db                    *sql.DB
	repomanager           repomanager.RepositoryManager
	tokenValidityDuration time.Duration
	hashCost              int
	now                   func() time.Time
	logger                logging.Logger
}

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, logger logging.Logger) *UserService {
	return &UserService{
		db:                    db,
		repomanager:           m,
		tokenValidityDuration: cfg.TokenValidityDuration,
		hashCost:              bcrypt.DefaultCost,
		now:                   time.Now,
		logger:                logger.With("module", "users"),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) newToken() ([]byte, time.Time, error) {
	token, err := common.GenerateRandByteArray(common.TokenSize)
	if err != nil {
		return nil, time.Time{}, err
	}
	return token, s.now().UTC().Add(s.tokenValidityDuration), nil
}

// Register creates an account and issues its first token.
func (s *UserService) Register(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", common.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}
	token, expiration, err := s.newToken()
	if err != nil {
		return nil, common.ErrorInternal
	}

	user := &models.User{
		Email:           email,
		PasswordHash:    string(hash),
		Token:           token,
		TokenExpiration: &expiration,
	}

	user, err = s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		if errors.Is(err, common.ErrConstraintViolation) {
			return nil, common.ErrEmailExists
		}
		s.logger.Error(ctx, "create user failed", "error", err)
		return nil, common.ErrorInternal
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return &Session{UserID: user.ID, Token: common.EncodeToken(token), Expiration: expiration}, nil
}

func (s *UserService) authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, common.ErrorUnauthorized
	}
	return user, nil
}

// RequestToken checks the credentials and rotates the user's token.
func (s *UserService) RequestToken(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	token, expiration, err := s.newToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := s.repomanager.Users(s.db).UpdateToken(ctx, user.ID, token, &expiration); err != nil {
		s.logger.Error(ctx, "update token failed", "user_id", user.ID, "error", err)
		return nil, common.ErrorInternal
	}

	return &Session{UserID: user.ID, Token: common.EncodeToken(token), Expiration: expiration}, nil
}

// ValidateToken returns the id of the user owning token.
func (s *UserService) ValidateToken(ctx context.Context, email, token string) (int64, error) {
	raw, err := common.DecodeToken(token)
	if err != nil {
		return 0, err
	}

	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return 0, common.ErrorUnauthorized
		}
		return 0, common.ErrorInternal
	}

	if len(user.Token) != common.TokenSize || subtle.ConstantTimeCompare(user.Token, raw) != 1 {
		return 0, common.ErrorUnauthorized
	}
	if user.TokenExpiration == nil || !s.now().Before(*user.TokenExpiration) {
		return 0, common.ErrTokenExpired
	}
	return user.ID, nil
}

// Logout clears the user's token.
func (s *UserService) Logout(ctx context.Context, userID int64) error {
	if err := s.repomanager.Users(s.db).UpdateToken(ctx, userID, nil, nil); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return common.ErrorInternal
	}
	return nil
}

// Delete removes an account. Accounts that still own tournaments are kept
// and common.ErrConstraintViolation is returned.
func (s *UserService) Delete(ctx context.Context, userID int64) error {
	err := s.repomanager.Users(s.db).Delete(ctx, userID)
	switch {
	case err == nil:
		s.logger.Info(ctx, "user deleted", "user_id", userID)
		return nil
	case errors.Is(err, common.ErrConstraintViolation), errors.Is(err, common.ErrorNotFound):
		return err
	default:
		s.logger.Error(ctx, "delete user failed", "user_id", userID, "error", err)
		return common.ErrorInternal
	}
}
