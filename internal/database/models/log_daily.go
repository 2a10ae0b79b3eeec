package models

import (
	"errors"
	"time"
)

// ErrUnknownLevel is returned when a level has no counter column
var ErrUnknownLevel = errors.New("unknown log level")

// LogDaily holds the per-day counters derived from Log rows.
// Total always equals the sum of the five level counters.
type LogDaily struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Date      time.Time `gorm:"uniqueIndex;not null" json:"date"` // UTC midnight
	Info      int64     `gorm:"not null;default:0" json:"info"`
	Warning   int64     `gorm:"not null;default:0" json:"warning"`
	Error     int64     `gorm:"not null;default:0" json:"error"`
	Debug     int64     `gorm:"not null;default:0" json:"debug"`
	Critical  int64     `gorm:"not null;default:0" json:"critical"`
	Total     int64     `gorm:"not null;default:0" json:"total"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName returns the database table name
func (LogDaily) TableName() string {
	return "log_daily"
}

// counter returns the field that tracks level, or nil for a level outside
// the enumeration.
func (d *LogDaily) counter(level LogLevel) *int64 {
	switch level {
	case LogLevelInfo:
		return &d.Info
	case LogLevelWarning:
		return &d.Warning
	case LogLevelError:
		return &d.Error
	case LogLevelDebug:
		return &d.Debug
	case LogLevelCritical:
		return &d.Critical
	}
	return nil
}

// Add increments the level counter and the total by n
func (d *LogDaily) Add(level LogLevel, n int64) error {
	c := d.counter(level)
	if c == nil {
		return ErrUnknownLevel
	}
	*c += n
	d.Total += n
	return nil
}

// Count returns the counter for level
func (d *LogDaily) Count(level LogLevel) int64 {
	if c := d.counter(level); c != nil {
		return *c
	}
	return 0
}

// Sum adds up the five level counters
func (d *LogDaily) Sum() int64 {
	return d.Info + d.Warning + d.Error + d.Debug + d.Critical
}

// NewLogDaily builds the row for the first event of a day
func NewLogDaily(day time.Time, level LogLevel) (*LogDaily, error) {
	d := &LogDaily{Date: DayOf(day)}
	if err := d.Add(level, 1); err != nil {
		return nil, err
	}
	return d, nil
}
