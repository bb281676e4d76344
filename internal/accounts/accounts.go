// Package accounts registers users and authenticates them.
// Registration also creates the user's profile so that every account owns exactly one.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"socialprofiles/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountExists      = errors.New("username or email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidUsername    = errors.New("username must not be blank")
)

// reservedSlugs are static segments under /profiles that a slug would be shadowed by.
var reservedSlugs = map[string]bool{
	"me":        true,
	"search":    true,
	"to-invite": true,
}

// RegisterInput holds what is needed to open an account.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Service creates and authenticates accounts.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
	cost   int
}

// NewService creates a Service hashing passwords with bcrypt.DefaultCost.
func NewService(db *gorm.DB, logger *zap.Logger) *Service {
	return &Service{db: db, logger: logger, cost: bcrypt.DefaultCost}
}

// WithHashCost returns a copy of s using cost for new password hashes.
func (s *Service) WithHashCost(cost int) *Service {
	c := *s
	c.cost = cost
	return &c
}

// Register creates a user and its profile in one transaction.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*models.User, *models.Profile, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if username == "" {
		return nil, nil, ErrInvalidUsername
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.cost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	var profile models.Profile

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).
			Where("LOWER(username) = LOWER(?) OR email = ?", username, email).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrAccountExists
		}

		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		profileSlug, err := uniqueSlug(tx, username)
		if err != nil {
			return err
		}
		profile = models.Profile{
			UserID:    user.ID,
			FirstName: strings.TrimSpace(input.FirstName),
			LastName:  strings.TrimSpace(input.LastName),
			Slug:      profileSlug,
		}
		return tx.Omit(clause.Associations).Create(&profile).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, nil, ErrAccountExists
	}
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("register: %w", err)
	}

	profile.User = user
	s.logger.Info("account registered", zap.Uint("user_id", user.ID), zap.String("slug", profile.Slug))
	return &user, &profile, nil
}

// Authenticate finds the user by username or email and checks the password.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*models.User, error) {
	login = strings.TrimSpace(login)

	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", login, strings.ToLower(login)).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// uniqueSlug derives a slug from base, adding a short random suffix when it is taken or reserved.
func uniqueSlug(tx *gorm.DB, base string) (string, error) {
	root := slug.Make(base)
	if root == "" {
		root = "profile"
	}

	candidate := root
	for i := 0; i < 5; i++ {
		if reservedSlugs[candidate] {
			candidate = root + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
			continue
		}
		var count int64
		if err := tx.Unscoped().Model(&models.Profile{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = root + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	return "", fmt.Errorf("could not find a free slug for %q", base)
}
