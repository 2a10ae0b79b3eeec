package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UnknownDeviceID is stored when a device does not identify itself
const UnknownDeviceID = "unknown"

// Log represents a single event submitted by a client device
type Log struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Level       LogLevel  `gorm:"size:20;index;not null" json:"level"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	Details     *string   `gorm:"type:text" json:"details"` // opaque, usually serialized JSON
	DeviceID    string    `gorm:"size:255;index;default:'unknown'" json:"deviceId"`
	DeviceModel *string   `gorm:"size:255" json:"deviceModel"`
	OSVersion   *string   `gorm:"size:100" json:"osVersion"`
	AppVersion  *string   `gorm:"size:100" json:"appVersion"`
	Latitude    *float64  `json:"latitude"`
	Longitude   *float64  `json:"longitude"`
	UserID      *string   `gorm:"size:255;index" json:"userId"`
	NameUser    *string   `gorm:"size:255;index" json:"nameUser"`
	Source      *string   `gorm:"size:100;index" json:"source"` // name of the device key that submitted it
	Timestamp   time.Time `gorm:"index;not null" json:"timestamp"`
	CreatedAt   time.Time `json:"createdAt"`
}

// BeforeCreate assigns a random identifier to new rows
func (l *Log) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.DeviceID == "" {
		l.DeviceID = UnknownDeviceID
	}
	return nil
}

// LogLevel represents the severity of a device log event
type LogLevel string

const (
	LogLevelInfo     LogLevel = "INFO"
	LogLevelWarning  LogLevel = "WARNING"
	LogLevelError    LogLevel = "ERROR"
	LogLevelDebug    LogLevel = "DEBUG"
	LogLevelCritical LogLevel = "CRITICAL"
)

// LogLevels lists every accepted level in display order
var LogLevels = []LogLevel{
	LogLevelInfo,
	LogLevelWarning,
	LogLevelError,
	LogLevelDebug,
	LogLevelCritical,
}

// IsValid reports whether the level belongs to the closed enumeration.
// Comparison is case-sensitive.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelInfo, LogLevelWarning, LogLevelError, LogLevelDebug, LogLevelCritical:
		return true
	}
	return false
}

// DayOf truncates t to midnight of its UTC calendar day
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
