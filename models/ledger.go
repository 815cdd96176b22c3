package models

import (
	"fmt"
	"math"
	"time"

	"gorm.io/gorm"
)

// LedgerEntry is the canonical consumption event: one row per food item
// logged, regardless of how the entry was created. Facts are absolute for
// PortionGrams (already scaled from per-100g), rounded to one decimal.
type LedgerEntry struct {
	gorm.Model
	RecordID         string           `gorm:"type:varchar(36);uniqueIndex;not null"`
	UserID           uint             `gorm:"index:idx_ledger_user_date;not null"`
	MealCategory     MealCategory     `gorm:"type:varchar(20);not null"`
	FoodDescription  string           `gorm:"type:varchar(255);not null"`
	PortionGrams     float64          `gorm:"not null"`
	PreparationState PreparationState `gorm:"type:varchar(10);not null"`
	Facts            NutritionFacts   `gorm:"embedded"`
	EntryOrigin      EntryOrigin      `gorm:"type:varchar(20);not null"`
	Confidence       float64
	OccurredAt       time.Time `gorm:"index:idx_ledger_user_date"`
}

// Validate checks caller-supplied fields before an append.
func (e LedgerEntry) Validate() error {
	if e.UserID == 0 {
		return fmt.Errorf("ledger entry: user id is required")
	}
	if e.FoodDescription == "" {
		return fmt.Errorf("ledger entry: food description is required")
	}
	if e.PortionGrams <= 0 {
		return fmt.Errorf("ledger entry: portion must be positive, got %v", e.PortionGrams)
	}
	return e.Facts.Validate()
}

// NaturalKey is the derived identity used to decide whether two records
// describe the same real-world consumption event. It deliberately ignores
// the record's own id so re-running migration never duplicates rows.
type NaturalKey struct {
	UserID          uint
	OccurredAt      time.Time
	FoodDescription string
	RoundedCalories int
}

// NaturalKey derives the entry's migration identity. Timestamps are
// truncated to the second and calories to the nearest integer so the same
// event read from two stores with different precision still collides.
func (e LedgerEntry) NaturalKey() NaturalKey {
	return NaturalKey{
		UserID:          e.UserID,
		OccurredAt:      e.OccurredAt.UTC().Truncate(time.Second),
		FoodDescription: e.FoodDescription,
		RoundedCalories: int(math.Round(e.Facts.Calories)),
	}
}
