package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/JvSe/deep-logs/internal/database/models"
	"gorm.io/gorm"
)

var (
	// ErrDeviceKeyNotFound indicates no key matches the name or secret
	ErrDeviceKeyNotFound = errors.New("device key not found")
	// ErrDeviceKeyExists indicates the key name is taken
	ErrDeviceKeyExists = errors.New("device key already exists")
	// ErrDeviceKeyRevoked indicates the key was revoked
	ErrDeviceKeyRevoked = errors.New("device key revoked")
	// ErrInvalidKeyName indicates a key name outside [A-Za-z0-9._-]{1,100}
	ErrInvalidKeyName = errors.New("invalid device key name")
)

const (
	// DefaultDeviceKeyName names the key created on first start
	DefaultDeviceKeyName = "default"
	// LegacyDeviceKeyFile is the single-key file older installs kept in the data dir
	LegacyDeviceKeyFile = "device_api_key.txt"

	deviceKeyBytes = 32
	// LastUsedAt is only rewritten when older than this
	lastUsedResolution = time.Minute
)

var keyNamePattern = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)

// DeviceKeyService manages the keys devices authenticate ingestion with
type DeviceKeyService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDeviceKeyService creates a new DeviceKeyService instance
func NewDeviceKeyService(db *gorm.DB) *DeviceKeyService {
	return &DeviceKeyService{
		db:  db,
		now: time.Now,
	}
}

// GenerateDeviceKey returns a random 64 character hex secret
func GenerateDeviceKey() (string, error) {
	b := make([]byte, deviceKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Create adds a key with a fresh secret
func (s *DeviceKeyService) Create(ctx context.Context, name string) (*models.DeviceKey, error) {
	secret, err := GenerateDeviceKey()
	if err != nil {
		return nil, err
	}
	return s.create(ctx, name, secret)
}

func (s *DeviceKeyService) create(ctx context.Context, name, secret string) (*models.DeviceKey, error) {
	if !keyNamePattern.MatchString(name) {
		return nil, ErrInvalidKeyName
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.DeviceKey{}).Where("name = ?", name).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrDeviceKeyExists
	}

	key := &models.DeviceKey{Name: name, Secret: secret}
	if err := s.db.WithContext(ctx).Create(key).Error; err != nil {
		return nil, fmt.Errorf("create device key %s: %w", name, err)
	}
	return key, nil
}

// Get returns the key with the given name, revoked or not
func (s *DeviceKeyService) Get(ctx context.Context, name string) (*models.DeviceKey, error) {
	var key models.DeviceKey
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceKeyNotFound
		}
		return nil, err
	}
	return &key, nil
}

// List returns every key ordered by name
func (s *DeviceKeyService) List(ctx context.Context) ([]models.DeviceKey, error) {
	keys := []models.DeviceKey{}
	if err := s.db.WithContext(ctx).Order("name").Find(&keys).Error; err != nil {
		return nil, err
	}
	return keys, nil
}

// Reset gives the key a new secret. A revoked key becomes active again.
func (s *DeviceKeyService) Reset(ctx context.Context, name string) (*models.DeviceKey, error) {
	key, err := s.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	secret, err := GenerateDeviceKey()
	if err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(key).Updates(map[string]interface{}{
		"secret":     secret,
		"revoked_at": nil,
	}).Error; err != nil {
		return nil, err
	}
	key.Secret = secret
	key.RevokedAt = nil
	return key, nil
}

// Revoke stops the key from being accepted
func (s *DeviceKeyService) Revoke(ctx context.Context, name string) error {
	key, err := s.Get(ctx, name)
	if err != nil {
		return err
	}
	if !key.Active() {
		return nil
	}
	return s.db.WithContext(ctx).Model(key).Update("revoked_at", s.now().UTC()).Error
}

// Authenticate resolves the secret a device sent and records when the key
// was last used.
func (s *DeviceKeyService) Authenticate(ctx context.Context, secret string) (*models.DeviceKey, error) {
	if secret == "" {
		return nil, ErrDeviceKeyNotFound
	}

	var key models.DeviceKey
	if err := s.db.WithContext(ctx).Where("secret = ?", secret).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceKeyNotFound
		}
		return nil, err
	}
	if !key.Active() {
		return nil, ErrDeviceKeyRevoked
	}

	now := s.now().UTC()
	if key.LastUsedAt == nil || now.Sub(*key.LastUsedAt) >= lastUsedResolution {
		if err := s.db.WithContext(ctx).Model(&key).UpdateColumn("last_used_at", now).Error; err != nil {
			return nil, err
		}
		key.LastUsedAt = &now
	}
	return &key, nil
}

// EnsureDefault creates the default key when no key exists yet, taking its
// secret from legacyFile if an older install left one there. It returns the
// default key if there is one.
func (s *DeviceKeyService) EnsureDefault(ctx context.Context, legacyFile string) (*models.DeviceKey, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.DeviceKey{}).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		key, err := s.Get(ctx, DefaultDeviceKeyName)
		if errors.Is(err, ErrDeviceKeyNotFound) {
			return nil, nil
		}
		return key, err
	}

	if legacyFile != "" {
		if data, err := os.ReadFile(legacyFile); err == nil {
			if secret := strings.TrimSpace(string(data)); secret != "" {
				key, err := s.create(ctx, DefaultDeviceKeyName, secret)
				if err != nil {
					return nil, err
				}
				log.Printf("[Migration] Imported device key from %s as %q", legacyFile, DefaultDeviceKeyName)
				return key, nil
			}
		}
	}

	return s.Create(ctx, DefaultDeviceKeyName)
}
