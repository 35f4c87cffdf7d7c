package models

import "time"

// CycleWatermark is the persisted "last period processed" marker for the
// periodic cycle sweep. It replaces an in-memory counter so a restarted
// instance neither re-runs nor skips a billing month.
type CycleWatermark struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:50;uniqueIndex;not null" json:"name"`
	Month     int       `gorm:"not null" json:"month"`
	Year      int       `gorm:"not null" json:"year"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

const CycleSweepWatermark = "cycle_sweep"

// Before reports whether the watermark period is earlier than (month, year).
func (w *CycleWatermark) Before(month, year int) bool {
	if w.Year != year {
		return w.Year < year
	}
	return w.Month < month
}
