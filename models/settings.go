package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/mmdatafocus/pipeworks_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const settingsRowId = 1

// Settings holds the company month definition. A company month starts on
// StartDay and runs until the day before the next StartDay; EndDay 0 means
// the calendar month end.
type Settings struct {
	ID        int       `gorm:"primary_key" json:"-"`
	StartDay  int       `gorm:"not null;default:1" json:"startDay"`
	EndDay    int       `gorm:"not null;default:0" json:"endDay"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewSettings struct {
	StartDay int `json:"startDay" binding:"required,min=1,max=28"`
	EndDay   int `json:"endDay" binding:"min=0,max=31"`
}

func DefaultSettings() Settings {
	return Settings{ID: settingsRowId, StartDay: 1, EndDay: 0}
}

// CompanyMonthKey returns the YYYY-MM key of the company month containing t.
// Only StartDay is read: validate() pins EndDay to StartDay-1 or the month
// end, so it never moves the boundary.
func (s Settings) CompanyMonthKey(t time.Time) string {
	start := s.StartDay
	if start < 1 {
		start = 1
	}
	if t.Day() >= start {
		return utils.MonthKeyOf(t)
	}
	return utils.MonthKeyOf(time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, -1, 0))
}

// CompanyMonthRange returns [from, to) for a company month key.
func (s Settings) CompanyMonthRange(key string) (time.Time, time.Time, error) {
	first, err := utils.ParseMonthKey(key)
	if err != nil {
		return time.Time{}, time.Time{}, validationErrorf("%v", err)
	}
	start := s.StartDay
	if start < 1 {
		start = 1
	}
	from := first.AddDate(0, 0, start-1)
	return from, from.AddDate(0, 1, 0), nil
}

func (input NewSettings) validate() error {
	if input.StartDay < 1 || input.StartDay > 28 {
		return validationErrorf("startDay must be between 1 and 28")
	}
	if input.EndDay < 0 || input.EndDay > 31 {
		return validationErrorf("endDay must be between 0 and 31")
	}
	if input.StartDay > 1 && input.EndDay != 0 && input.EndDay != input.StartDay-1 {
		return validationErrorf("endDay must be the day before startDay")
	}
	if input.StartDay == 1 && input.EndDay != 0 && input.EndDay < 28 {
		return validationErrorf("endDay must be 0 (month end) when startDay is 1")
	}
	return nil
}

/*
caches:
	Settings
*/

func GetSettings(ctx context.Context) (*Settings, error) {
	cached, err := utils.RetrieveRedis[Settings]()
	if err != nil {
		config.LogError(config.GetLogger(), "settings", "GetSettings", "redis read", nil, err)
	}
	if cached != nil {
		return cached, nil
	}
	settings, err := loadSettings(config.GetDB().WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if err := utils.StoreRedis(settings); err != nil {
		config.LogError(config.GetLogger(), "settings", "GetSettings", "redis write", nil, err)
	}
	return settings, nil
}

func loadSettings(tx *gorm.DB) (*Settings, error) {
	var rows []Settings
	if err := tx.Where("id = ?", settingsRowId).Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		s := DefaultSettings()
		return &s, nil
	}
	return &rows[0], nil
}

func SaveSettings(ctx context.Context, input *NewSettings) (*Settings, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	settings := Settings{ID: settingsRowId, StartDay: input.StartDay, EndDay: input.EndDay}
	err := config.GetDB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"start_day", "end_day", "updated_at"}),
	}).Create(&settings).Error
	if err != nil {
		return nil, err
	}
	if err := utils.RemoveRedis[Settings](); err != nil {
		config.LogError(config.GetLogger(), "settings", "SaveSettings", "redis invalidate", nil, err)
	}
	return &settings, nil
}
