package models

import (
	"time"
)

// DeviceKey is a named credential devices send when submitting logs.
// A fleet can hold several keys so one can be rotated or revoked without
// touching the others.
type DeviceKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Name       string     `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Secret     string     `gorm:"uniqueIndex;size:128;not null" json:"-"`
	LastUsedAt *time.Time `json:"lastUsedAt"`
	RevokedAt  *time.Time `json:"revokedAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// Active reports whether the key is still accepted
func (k *DeviceKey) Active() bool {
	return k.RevokedAt == nil
}

// Hint returns the first characters of the secret for display
func (k *DeviceKey) Hint() string {
	if len(k.Secret) <= 8 {
		return k.Secret
	}
	return k.Secret[:8] + "..."
}
