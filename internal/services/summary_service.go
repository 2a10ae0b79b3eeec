package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/JvSe/deep-logs/internal/database/models"
	"github.com/JvSe/deep-logs/internal/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidLevel indicates a level outside the closed enumeration
	ErrInvalidLevel = errors.New("invalid log level")
	// ErrSummaryNotFound indicates no summary row exists for a day
	ErrSummaryNotFound = errors.New("daily summary not found")
)

const dayKeyLayout = "2006-01-02"

// rebuildBatchSize bounds how many logs are loaded at once by Rebuild
const rebuildBatchSize = 1000

// SummaryService maintains the per-day LogDaily counters
type SummaryService struct {
	db      *gorm.DB
	metrics *metrics.IngestMetrics
	days    *keyedMutex
	// rebuild excludes in-flight ingestions while counters are recomputed
	rebuild sync.RWMutex
}

// NewSummaryService creates a new SummaryService instance
func NewSummaryService(db *gorm.DB, m *metrics.IngestMetrics) *SummaryService {
	return &SummaryService{
		db:      db,
		metrics: m,
		days:    newKeyedMutex(),
	}
}

// Pin keeps Rebuild from running until the returned func is called.
// Ingestion holds it from the event insert through the summary upsert so
// a rebuild never observes an event whose increment is still pending.
func (s *SummaryService) Pin() func() {
	s.rebuild.RLock()
	return s.rebuild.RUnlock
}

// Upsert adds one event of level to the summary of the UTC day containing
// day, creating the row on the first event of that day.
//
// The insert-or-increment is a single ON CONFLICT statement, so concurrent
// calls for the same day never lose an increment.
func (s *SummaryService) Upsert(ctx context.Context, day time.Time, level models.LogLevel) (*models.LogDaily, error) {
	row, err := models.NewLogDaily(day, level)
	if err != nil {
		return nil, ErrInvalidLevel
	}

	started := time.Now()
	defer s.metrics.ObserveUpsert(started)

	unlock := s.days.Lock(row.Date.Format(dayKeyLayout))
	defer unlock()

	var summary models.LogDaily
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := upsertDailyRow(tx, row, incrementAssignments()); err != nil {
			return err
		}
		return tx.Where("date = ?", row.Date).First(&summary).Error
	})
	if err != nil {
		return nil, fmt.Errorf("upsert daily summary %s: %w", row.Date.Format(dayKeyLayout), err)
	}

	return &summary, nil
}

// upsertDailyRow inserts row, or applies assign to the existing row of the
// same date in the same statement.
func upsertDailyRow(tx *gorm.DB, row *models.LogDaily, assign map[string]interface{}) error {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.Assignments(assign),
	}).Create(row).Error
}

// incrementAssignments adds the inserted row's counters onto the existing row
func incrementAssignments() map[string]interface{} {
	table := models.LogDaily{}.TableName()
	assign := map[string]interface{}{
		"updated_at": gorm.Expr("excluded.updated_at"),
	}
	for _, col := range counterColumns {
		assign[col] = gorm.Expr(fmt.Sprintf("%s.%s + excluded.%s", table, col, col))
	}
	return assign
}

// overwriteAssignments replaces the existing row's counters with the inserted ones
func overwriteAssignments() map[string]interface{} {
	assign := map[string]interface{}{
		"updated_at": gorm.Expr("excluded.updated_at"),
	}
	for _, col := range counterColumns {
		assign[col] = gorm.Expr("excluded." + col)
	}
	return assign
}

var counterColumns = []string{"info", "warning", "error", "debug", "critical", "total"}

// GetSummary returns the summary of the UTC day containing day
func (s *SummaryService) GetSummary(ctx context.Context, day time.Time) (*models.LogDaily, error) {
	var summary models.LogDaily
	if err := s.db.WithContext(ctx).Where("date = ?", models.DayOf(day)).First(&summary).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSummaryNotFound
		}
		return nil, err
	}
	return &summary, nil
}

// ListSummaries returns every summary row ordered by date ascending
func (s *SummaryService) ListSummaries(ctx context.Context) ([]models.LogDaily, error) {
	summaries := []models.LogDaily{}
	if err := s.db.WithContext(ctx).Order("date ASC").Find(&summaries).Error; err != nil {
		return nil, err
	}
	return summaries, nil
}

// RebuildResult describes the outcome of a Rebuild
type RebuildResult struct {
	LogsScanned int64 `json:"logsScanned"`
	Days        int   `json:"days"`
	Corrected   int   `json:"corrected"` // rows whose stored counters differed
}

// Rebuild recomputes every summary row from the stored logs.
// Days that no longer have logs keep their row with all counters at zero.
func (s *SummaryService) Rebuild(ctx context.Context) (*RebuildResult, error) {
	s.rebuild.Lock()
	defer s.rebuild.Unlock()

	result := &RebuildResult{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		computed := make(map[string]*models.LogDaily)

		var batch []models.Log
		res := tx.Select("id", "level", "timestamp").
			FindInBatches(&batch, rebuildBatchSize, func(_ *gorm.DB, _ int) error {
				for _, l := range batch {
					day := models.DayOf(l.Timestamp)
					key := day.Format(dayKeyLayout)
					row, ok := computed[key]
					if !ok {
						row = &models.LogDaily{Date: day}
						computed[key] = row
					}
					if err := row.Add(l.Level, 1); err != nil {
						log.Printf("[Reconcile] Skipping log %s with unknown level %q", l.ID, l.Level)
						continue
					}
					result.LogsScanned++
				}
				return nil
			})
		if res.Error != nil {
			return res.Error
		}

		var existing []models.LogDaily
		if err := tx.Find(&existing).Error; err != nil {
			return err
		}
		stored := make(map[string]bool, len(existing))
		for i := range existing {
			key := models.DayOf(existing[i].Date).Format(dayKeyLayout)
			stored[key] = true
			want, ok := computed[key]
			if !ok {
				want = &models.LogDaily{Date: models.DayOf(existing[i].Date)}
				computed[key] = want
			}
			if !sameCounters(&existing[i], want) {
				result.Corrected++
			}
		}

		keys := make([]string, 0, len(computed))
		for k := range computed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if !stored[k] {
				result.Corrected++
			}
		}

		for _, k := range keys {
			if err := upsertDailyRow(tx, computed[k], overwriteAssignments()); err != nil {
				return err
			}
		}
		result.Days = len(keys)
		return nil
	})
	s.metrics.Reconcile(err)
	if err != nil {
		return nil, fmt.Errorf("rebuild daily summaries: %w", err)
	}
	return result, nil
}

func sameCounters(a, b *models.LogDaily) bool {
	return a.Info == b.Info &&
		a.Warning == b.Warning &&
		a.Error == b.Error &&
		a.Debug == b.Debug &&
		a.Critical == b.Critical &&
		a.Total == b.Total
}
