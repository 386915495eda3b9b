package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/suraksha-labs/suraksha/backend/internal/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrDuplicateEmail indicates an account already exists for the address.
	ErrDuplicateEmail = errors.New("users: email already registered")
	// ErrInvalidCredentials is returned uniformly for unknown addresses and
	// wrong passwords so login failures do not reveal which one it was.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrNotFound indicates the referenced user no longer exists.
	ErrNotFound = errors.New("users: not found")
	// ErrMissingField indicates a required signup field was empty.
	ErrMissingField = errors.New("users: missing required field")

	errMissingDatabase = errors.New("users: database handle is required")
	errMissingHasher   = errors.New("users: password hasher is required")
	errMissingIDs      = errors.New("users: id provider is required")
)

// ServiceConfig describes the dependencies of the account service.
type ServiceConfig struct {
	Database   *gorm.DB
	Hasher     *auth.PasswordHasher
	IDProvider IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service manages account creation and credential checks.
type Service struct {
	db     *gorm.DB
	hasher *auth.PasswordHasher
	ids    IDProvider
	clock  func() time.Time
	logger *zap.Logger
}

// NewService validates the configuration and constructs the service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Hasher == nil {
		return nil, errMissingHasher
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDs
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:     cfg.Database,
		hasher: cfg.Hasher,
		ids:    cfg.IDProvider,
		clock:  clock,
		logger: logger,
	}, nil
}

// SignupRequest carries the fields collected at registration.
type SignupRequest struct {
	Name        string
	Gender      string
	Email       string
	Phone       string
	Demographic string
	Password    string
}

// Signup registers a new account. The email address is unique; registering an
// address twice fails with ErrDuplicateEmail.
func (s *Service) Signup(ctx context.Context, request SignupRequest) (*User, error) {
	name := strings.TrimSpace(request.Name)
	email := normalizeEmail(request.Email)
	if name == "" || email == "" || request.Password == "" {
		return nil, fmt.Errorf("%w: name, email and password are required", ErrMissingField)
	}

	var existing User
	err := s.db.WithContext(ctx).Where("email = ?", email).Take(&existing).Error
	if err == nil {
		return nil, ErrDuplicateEmail
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("users: email lookup: %w", err)
	}

	hash, err := s.hasher.Hash(request.Password)
	if err != nil {
		return nil, err
	}
	id, err := s.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("users: id generation: %w", err)
	}

	account := User{
		ID:           id,
		Name:         name,
		Gender:       strings.TrimSpace(request.Gender),
		Email:        email,
		Phone:        strings.TrimSpace(request.Phone),
		Demographic:  strings.TrimSpace(request.Demographic),
		PasswordHash: hash,
		CreatedAt:    s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&account).Error; err != nil {
		// The unique index is the final arbiter against concurrent signups.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrDuplicateEmail
		}
		s.logger.Error("user insert failed", zap.Error(err))
		return nil, fmt.Errorf("users: create: %w", err)
	}

	return &account, nil
}

// Login checks the credentials and returns the account on success.
func (s *Service) Login(ctx context.Context, email, password string) (*User, error) {
	var account User
	err := s.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("users: login lookup: %w", err)
	}
	if err := s.hasher.Verify(account.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return &account, nil
}

// Profile fetches the account for a validated token subject.
func (s *Service) Profile(ctx context.Context, id string) (*User, error) {
	var account User
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("users: profile lookup: %w", err)
	}
	return &account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
