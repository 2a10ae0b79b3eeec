package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/JvSe/deep-logs/internal/database/models"
	"github.com/JvSe/deep-logs/internal/metrics"
	"gorm.io/gorm"
)

var (
	// ErrLogNotFound indicates the log was not found
	ErrLogNotFound = errors.New("log not found")
	// ErrSummaryUpdate indicates the event was stored but its daily summary was not updated
	ErrSummaryUpdate = errors.New("daily summary update failed")
)

// Validation messages returned to clients
const (
	msgInvalidLevel     = "level must be one of INFO, WARNING, ERROR, DEBUG, CRITICAL"
	msgMessageRequired  = "message is required"
	msgInvalidLatitude  = "latitude must be between -90 and 90"
	msgInvalidLongitude = "longitude must be between -180 and 180"
	msgInvalidTimestamp = "timestamp must be an ISO 8601 date-time"
)

// Pagination defaults for log listing
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// LogInput is a single event as submitted by a device.
// Pointer fields distinguish an absent value from a zero value.
type LogInput struct {
	Level       string   `json:"level"`
	Message     string   `json:"message"`
	Details     *string  `json:"details"`
	DeviceID    *string  `json:"deviceId"`
	DeviceModel *string  `json:"deviceModel"`
	OSVersion   *string  `json:"osVersion"`
	AppVersion  *string  `json:"appVersion"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	UserID      *string  `json:"userId"`
	NameUser    *string  `json:"nameUser"`
	Timestamp   *string  `json:"timestamp"`

	// Source names the device key the event arrived with; never read from the body
	Source *string `json:"-"`

	// set by UnmarshalJSON for fields whose JSON type was wrong
	typeErrors map[string]string
}

// IngestResult is the stored event and the summary row it updated
type IngestResult struct {
	Log     *models.Log      `json:"log"`
	Summary *models.LogDaily `json:"summary"`
}

// LogService handles ingestion and querying of device logs
type LogService struct {
	db        *gorm.DB
	summaries *SummaryService
	metrics   *metrics.IngestMetrics
	now       func() time.Time
}

// NewLogService creates a new LogService instance
func NewLogService(db *gorm.DB, summaries *SummaryService, m *metrics.IngestMetrics) *LogService {
	return &LogService{
		db:        db,
		summaries: summaries,
		metrics:   m,
		now:       time.Now,
	}
}

// Validate checks input and builds the Log that would be stored.
// now is used when the input carries no timestamp.
func Validate(input LogInput, now time.Time) (*models.Log, error) {
	verr := &ValidationError{}
	level := models.LogLevel(input.Level)
	timestamp := now.UTC()

	for _, field := range logInputFields {
		if msg, ok := input.typeErrors[field.name]; ok {
			verr.add(field.name, msg)
			continue
		}

		switch field.name {
		case "level":
			if !level.IsValid() {
				verr.add("level", msgInvalidLevel)
			}
		case "message":
			if input.Message == "" {
				verr.add("message", msgMessageRequired)
			}
		case "latitude":
			if input.Latitude != nil && (math.IsNaN(*input.Latitude) || *input.Latitude < -90 || *input.Latitude > 90) {
				verr.add("latitude", msgInvalidLatitude)
			}
		case "longitude":
			if input.Longitude != nil && (math.IsNaN(*input.Longitude) || *input.Longitude < -180 || *input.Longitude > 180) {
				verr.add("longitude", msgInvalidLongitude)
			}
		case "timestamp":
			if input.Timestamp != nil {
				t, err := time.Parse(time.RFC3339Nano, *input.Timestamp)
				if err != nil {
					verr.add("timestamp", msgInvalidTimestamp)
				} else {
					timestamp = t.UTC()
				}
			}
		}
	}

	if err := verr.err(); err != nil {
		return nil, err
	}

	deviceID := models.UnknownDeviceID
	if input.DeviceID != nil && *input.DeviceID != "" {
		deviceID = *input.DeviceID
	}

	return &models.Log{
		Level:       level,
		Message:     input.Message,
		Details:     input.Details,
		DeviceID:    deviceID,
		DeviceModel: input.DeviceModel,
		OSVersion:   input.OSVersion,
		AppVersion:  input.AppVersion,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		UserID:      input.UserID,
		NameUser:    input.NameUser,
		Source:      input.Source,
		Timestamp:   timestamp,
	}, nil
}

// Ingest validates and stores one event, then adds it to its daily summary.
//
// The event is stored before the summary is touched. When the summary update
// fails the event stays stored, the result carries the log without a summary
// and the error wraps ErrSummaryUpdate; Rebuild repairs the counters later.
func (s *LogService) Ingest(ctx context.Context, input LogInput) (*IngestResult, error) {
	entry, err := Validate(input, s.now())
	if err != nil {
		s.metrics.Event(metrics.StatusInvalid)
		return nil, err
	}

	release := s.summaries.Pin()
	defer release()

	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		s.metrics.Event(metrics.StatusStoreError)
		return nil, fmt.Errorf("create log: %w", err)
	}
	s.metrics.Level(string(entry.Level))

	summary, err := s.summaries.Upsert(ctx, entry.Timestamp, entry.Level)
	if err != nil {
		s.metrics.Event(metrics.StatusSummaryError)
		log.Printf("[Ingest] Log %s stored but summary for %s/%s not updated: %v",
			entry.ID, models.DayOf(entry.Timestamp).Format(dayKeyLayout), entry.Level, err)
		return &IngestResult{Log: entry}, fmt.Errorf("%w: %v", ErrSummaryUpdate, err)
	}

	s.metrics.Event(metrics.StatusAccepted)
	return &IngestResult{Log: entry, Summary: summary}, nil
}

// ===== Log Query Methods =====

// LogQuery represents query parameters for log retrieval
type LogQuery struct {
	Page      int
	PageSize  int
	NameUser  string
	StartDate *time.Time
	EndDate   *time.Time
}

// Pagination describes the page returned by QueryLogs
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// LogPage represents the result of a log query
type LogPage struct {
	Data       []models.Log `json:"data"`
	Pagination Pagination   `json:"pagination"`
}

// ParseLogQuery builds a LogQuery from raw query string values.
// Empty values fall back to defaults.
func ParseLogQuery(page, pageSize, nameUser, startDate, endDate string) (LogQuery, error) {
	verr := &ValidationError{}
	query := LogQuery{
		Page:     1,
		PageSize: DefaultPageSize,
		NameUser: strings.TrimSpace(nameUser),
	}

	if page != "" {
		n, err := strconv.Atoi(page)
		if err != nil || n < 1 {
			verr.add("page", "page must be a positive integer")
		} else {
			query.Page = n
		}
	}
	if pageSize != "" {
		n, err := strconv.Atoi(pageSize)
		switch {
		case err != nil:
			verr.add("pageSize", "pageSize must be an integer")
		case n < 1:
			query.PageSize = 1
		case n > MaxPageSize:
			query.PageSize = MaxPageSize
		default:
			query.PageSize = n
		}
	}
	if startDate != "" {
		t, _, err := parseQueryTime(startDate)
		if err != nil {
			verr.add("startDate", "startDate must be a date (YYYY-MM-DD) or an ISO 8601 date-time")
		} else {
			query.StartDate = &t
		}
	}
	if endDate != "" {
		t, dateOnly, err := parseQueryTime(endDate)
		if err != nil {
			verr.add("endDate", "endDate must be a date (YYYY-MM-DD) or an ISO 8601 date-time")
		} else {
			if dateOnly {
				// a bare date covers the whole day
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			query.EndDate = &t
		}
	}
	if query.StartDate != nil && query.EndDate != nil && query.EndDate.Before(*query.StartDate) {
		verr.add("endDate", "endDate must not be before startDate")
	}

	if err := verr.err(); err != nil {
		return LogQuery{}, err
	}
	return query, nil
}

// parseQueryTime accepts YYYY-MM-DD (UTC midnight) or RFC 3339
func parseQueryTime(value string) (time.Time, bool, error) {
	if t, err := time.Parse(time.DateOnly, value); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

// QueryLogs retrieves one page of logs, newest first
func (s *LogService) QueryLogs(ctx context.Context, query LogQuery) (*LogPage, error) {
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = DefaultPageSize
	}
	if query.PageSize > MaxPageSize {
		query.PageSize = MaxPageSize
	}

	db := s.db.WithContext(ctx).Model(&models.Log{})

	if query.NameUser != "" {
		db = db.Where(`name_user LIKE ? ESCAPE '\'`, "%"+escapeLike(query.NameUser)+"%")
	}
	if query.StartDate != nil {
		db = db.Where("timestamp >= ?", query.StartDate.UTC())
	}
	if query.EndDate != nil {
		db = db.Where("timestamp <= ?", query.EndDate.UTC())
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (query.Page - 1) * query.PageSize

	logs := []models.Log{}
	if err := db.Order("timestamp DESC").Order("id").Offset(offset).Limit(query.PageSize).Find(&logs).Error; err != nil {
		return nil, err
	}

	return &LogPage{
		Data: logs,
		Pagination: Pagination{
			Page:       query.Page,
			PageSize:   query.PageSize,
			Total:      total,
			TotalPages: int((total + int64(query.PageSize) - 1) / int64(query.PageSize)),
		},
	}, nil
}

// likeEscaper makes user input match literally inside a LIKE pattern
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// GetLogByID retrieves a single log entry by ID
func (s *LogService) GetLogByID(ctx context.Context, id string) (*models.Log, error) {
	var entry models.Log
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLogNotFound
		}
		return nil, err
	}
	return &entry, nil
}
