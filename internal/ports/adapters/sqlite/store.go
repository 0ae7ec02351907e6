package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/forPelevin/tapalign/internal/types"
)

const errStoreNil = "annotation store is nil"

// AnnotationRow mirrors one line of the CSV table. Optional values stay NULL
// so "no match" is distinguishable from any stored action.
type AnnotationRow struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	RunID       string `gorm:"type:varchar(36);uniqueIndex:idx_run_seq,priority:1"`
	Seq         int    `gorm:"uniqueIndex:idx_run_seq,priority:2"`
	Identifier  string `gorm:"index:idx_identifier"`
	Timestamp   *float64
	Explanation string
	Label       string `gorm:"index:idx_label"`
	StartTime   *float64
	EndTime     *float64
	Action      *string
	MatchTier   string `gorm:"index:idx_tier"`
	CreatedAt   time.Time
}

type Store struct {
	DB *gorm.DB
}

func Open(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	if err := db.AutoMigrate(&AnnotationRow{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveRows replaces the rows of runID in one transaction.
func (s *Store) SaveRows(ctx context.Context, runID string, rows []types.AnnotationRow) error {
	if s == nil || s.DB == nil {
		return errors.New(errStoreNil)
	}
	entries := make([]AnnotationRow, 0, len(rows))
	for i, r := range rows {
		entries = append(entries, AnnotationRow{
			RunID:       runID,
			Seq:         i,
			Identifier:  r.Identifier,
			Timestamp:   r.Timestamp,
			Explanation: r.Explanation,
			Label:       string(r.Label),
			StartTime:   r.Start,
			EndTime:     r.End,
			Action:      r.Action,
			MatchTier:   string(r.Tier),
		})
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&AnnotationRow{}).Error; err != nil {
			return fmt.Errorf("clearing run %s: %w", runID, err)
		}
		if len(entries) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(entries, 500).Error; err != nil {
			return fmt.Errorf("batch insert annotation rows: %w", err)
		}
		return nil
	})
}

// Rows returns the rows of runID in observation order.
func (s *Store) Rows(ctx context.Context, runID string) ([]types.AnnotationRow, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}
	var found []AnnotationRow
	if err := s.DB.WithContext(ctx).Where("run_id = ?", runID).Order("seq").Find(&found).Error; err != nil {
		return nil, fmt.Errorf("querying annotation rows: %w", err)
	}
	out := make([]types.AnnotationRow, 0, len(found))
	for _, r := range found {
		out = append(out, types.AnnotationRow{
			Identifier:  r.Identifier,
			Timestamp:   r.Timestamp,
			Explanation: r.Explanation,
			Label:       types.Label(r.Label),
			Start:       r.StartTime,
			End:         r.EndTime,
			Action:      r.Action,
			Tier:        types.MatchTier(r.MatchTier),
		})
	}
	return out, nil
}

// TierCounts summarizes how rows of runID were matched.
func (s *Store) TierCounts(ctx context.Context, runID string) (map[types.MatchTier]int, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New(errStoreNil)
	}
	var res []struct {
		MatchTier string
		N         int
	}
	err := s.DB.WithContext(ctx).Model(&AnnotationRow{}).
		Select("match_tier, count(*) as n").
		Where("run_id = ?", runID).
		Group("match_tier").
		Scan(&res).Error
	if err != nil {
		return nil, fmt.Errorf("counting tiers: %w", err)
	}
	out := make(map[types.MatchTier]int, len(res))
	for _, r := range res {
		out[types.MatchTier(r.MatchTier)] = r.N
	}
	return out, nil
}
