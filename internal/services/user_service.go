package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/JvSe/deep-logs/internal/database/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUserNotFound indicates the user was not found
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists indicates the email is already registered
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrInvalidCredentials indicates invalid login credentials
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserInactive indicates the account has been disabled
	ErrUserInactive = errors.New("user inactive")
	// ErrPasswordTooShort indicates the password is too short
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	// ErrInvalidEmail indicates a malformed email address
	ErrInvalidEmail = errors.New("invalid email")
	// ErrInvalidRole indicates an unknown role
	ErrInvalidRole = errors.New("invalid role")
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 6

// UserService handles user-related business logic
type UserService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewUserService creates a new UserService instance
func NewUserService(db *gorm.DB) *UserService {
	return &UserService{
		db:  db,
		now: time.Now,
	}
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser creates a new user with a hashed password
func (s *UserService) CreateUser(ctx context.Context, email, password, name string, role models.UserRole) (*models.User, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}
	if role == "" {
		role = models.UserRoleViewer
	}
	if role != models.UserRoleAdmin && role != models.UserRoleViewer {
		return nil, ErrInvalidRole
	}

	db := s.db.WithContext(ctx)

	// Check if email already exists
	var existingUser models.User
	if err := db.Where("email = ?", email).First(&existingUser).Error; err == nil {
		return nil, ErrUserAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	newUser := &models.User{
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         name,
		Role:         role,
		IsActive:     true,
	}

	if err := db.Create(newUser).Error; err != nil {
		return nil, err
	}

	return newUser, nil
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var foundUser models.User
	if err := s.db.WithContext(ctx).First(&foundUser, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &foundUser, nil
}

// GetUserByEmail retrieves a user by email
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var foundUser models.User
	if err := s.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&foundUser).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &foundUser, nil
}

// ListUsers returns all users
func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Authenticate verifies credentials and records the login time
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	foundUser, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !foundUser.IsActive {
		return nil, ErrUserInactive
	}

	if !ComparePassword(foundUser.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(foundUser).Update("last_login", now).Error; err != nil {
		return nil, err
	}
	foundUser.LastLogin = &now

	return foundUser, nil
}

// ResetPassword resets a user's password (admin operation)
func (s *UserService) ResetPassword(ctx context.Context, id uint, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	foundUser, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}

	hashedPassword, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Model(foundUser).Update("password_hash", hashedPassword).Error
}

// SetActive enables or disables a user's login
func (s *UserService) SetActive(ctx context.Context, id uint, active bool) error {
	foundUser, err := s.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(foundUser).Update("is_active", active).Error
}

// PasswordHashCost is the bcrypt cost used by HashPassword. Tests lower it
// to bcrypt.MinCost.
var PasswordHashCost = bcrypt.DefaultCost

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), PasswordHashCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// ComparePassword compares a password with a hash
func ComparePassword(hashedPassword, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	return err == nil
}

// IsPasswordHashed checks if a string looks like a bcrypt hash
func IsPasswordHashed(password string) bool {
	// bcrypt hashes start with $2a$, $2b$, or $2y$
	if len(password) < 4 {
		return false
	}
	return password[:4] == "$2a$" || password[:4] == "$2b$" || password[:4] == "$2y$"
}
