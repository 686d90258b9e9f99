package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/techblog/techblog/models"
	"github.com/techblog/techblog/utils"
)

// CredentialStore persists users and their bcrypt password hashes.
type CredentialStore struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewCredentialStore creates a CredentialStore over db.
func NewCredentialStore(db *gorm.DB, log *zap.Logger) *CredentialStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &CredentialStore{db: db, log: log.Named("credentials")}
}

// Register creates a user and returns its id.
func (s *CredentialStore) Register(ctx context.Context, username, password string) (uint, error) {
	username = normalizeUsername(username)
	if err := validateCredentials(username, password); err != nil {
		return 0, err
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("store: lookup username: %w", err)
	}
	if count > 0 {
		return 0, ErrDuplicateUsername
	}

	user := models.User{Username: username, Password: password}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		// a concurrent signup can win between the check and the insert
		if isDuplicateEntryError(err) {
			return 0, ErrDuplicateUsername
		}
		return 0, fmt.Errorf("store: create user: %w", err)
	}

	s.log.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", username))
	return user.ID, nil
}

// Verify checks a username/password pair and returns the user's id.
func (s *CredentialStore) Verify(ctx context.Context, username, password string) (uint, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", normalizeUsername(username)).First(&user).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("store: lookup user: %w", err)
		}
		utils.BurnPasswordCheck(password)
		s.log.Debug("login rejected", zap.String("reason", "unknown user"))
		return 0, ErrAuthFailure
	}

	if !utils.CheckPassword(user.PasswordHash, password) {
		s.log.Debug("login rejected", zap.String("reason", "wrong password"), zap.Uint("user_id", user.ID))
		return 0, ErrAuthFailure
	}
	return user.ID, nil
}

// ChangePassword rotates the user's password after confirming the current one.
func (s *CredentialStore) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	if next == "" || len(next) > utils.MaxPasswordBytes {
		return fmt.Errorf("%w: new password must be 1-%d bytes", ErrInvalidInput, utils.MaxPasswordBytes)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.BurnPasswordCheck(current)
			return ErrAuthFailure
		}
		return fmt.Errorf("store: load user: %w", err)
	}
	if !utils.CheckPassword(user.PasswordHash, current) {
		return ErrAuthFailure
	}

	user.Password = next
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return fmt.Errorf("store: save user: %w", err)
	}
	s.log.Info("password changed", zap.Uint("user_id", userID))
	return nil
}

// Get loads a user by id.
func (s *CredentialStore) Get(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: load user: %w", err)
	}
	return &user, nil
}

// normalizeUsername trims and lower-cases so uniqueness and login matching
// behave the same on every database collation.
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateCredentials(username, password string) error {
	switch {
	case username == "":
		return fmt.Errorf("%w: username is required", ErrInvalidInput)
	case len(username) > 64:
		return fmt.Errorf("%w: username is longer than 64 bytes", ErrInvalidInput)
	case password == "":
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	case len(password) > utils.MaxPasswordBytes:
		return fmt.Errorf("%w: password is longer than %d bytes", ErrInvalidInput, utils.MaxPasswordBytes)
	}
	return nil
}
