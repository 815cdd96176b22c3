package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Two historical stores wrote consumption events before the ledger became
// canonical: photo-analysis results and manually typed meals. Each legacy
// shape gets its own type and an explicit mapping into LedgerEntry, so the
// migrator never does field-presence sniffing on loosely shaped rows.

// LegacyAiAnalysis is a photo-analysis result. Macro and micro values are
// absolute for ServingSize grams, not per 100 g.
type LegacyAiAnalysis struct {
	gorm.Model
	UserID      uint   `gorm:"index;not null"`
	FoodName    string `gorm:"type:varchar(255)"`
	Calories    float64
	Protein     float64
	Carbs       float64
	Fat         float64
	VitaminA    float64
	VitaminC    float64
	Calcium     float64
	Iron        float64
	ServingSize float64 // grams; historical rows sometimes left this zero
	Confidence  float64
	AnalyzedAt  time.Time
}

func (LegacyAiAnalysis) TableName() string { return "legacy_ai_analyses" }

// ToLedgerEntry maps the analysis into the canonical shape, tagged ai-photo.
func (a LegacyAiAnalysis) ToLedgerEntry() (LedgerEntry, error) {
	if a.UserID == 0 || a.FoodName == "" {
		return LedgerEntry{}, fmt.Errorf("legacy ai analysis %d: missing user or food name", a.ID)
	}
	portion := a.ServingSize
	if portion <= 0 {
		portion = 100
	}
	occurred := a.AnalyzedAt
	if occurred.IsZero() {
		occurred = a.CreatedAt
	}
	entry := LedgerEntry{
		UserID:           a.UserID,
		MealCategory:     MealSnack, // the analysis store never recorded a meal slot
		FoodDescription:  a.FoodName,
		PortionGrams:     portion,
		PreparationState: StateCooked,
		Facts: NutritionFacts{
			Calories: a.Calories,
			Protein:  a.Protein,
			Carbs:    a.Carbs,
			Fat:      a.Fat,
			Micronutrients: Micronutrients{
				VitaminA: a.VitaminA,
				VitaminC: a.VitaminC,
				Calcium:  a.Calcium,
				Iron:     a.Iron,
			},
			Category: CategoryOther,
		}.Rounded(),
		EntryOrigin: OriginAiPhoto,
		Confidence:  a.Confidence,
		OccurredAt:  occurred,
	}
	if err := entry.Validate(); err != nil {
		return LedgerEntry{}, fmt.Errorf("legacy ai analysis %d: %w", a.ID, err)
	}
	return entry, nil
}

// LegacyManualMeal is a manually typed meal. It never carried micronutrients
// and its macros are absolute for Portion grams.
type LegacyManualMeal struct {
	gorm.Model
	UserID      uint   `gorm:"index;not null"`
	MealType    string `gorm:"type:varchar(20)"`
	Description string `gorm:"type:varchar(255)"`
	Portion     float64
	Calories    float64
	Protein     float64
	Carbs       float64
	Fat         float64
	EatenAt     time.Time
}

func (LegacyManualMeal) TableName() string { return "legacy_manual_meals" }

// ToLedgerEntry maps the meal into the canonical shape, tagged manual.
// Manual entries carry full confidence: the user typed the numbers.
func (m LegacyManualMeal) ToLedgerEntry() (LedgerEntry, error) {
	if m.UserID == 0 || m.Description == "" {
		return LedgerEntry{}, fmt.Errorf("legacy manual meal %d: missing user or description", m.ID)
	}
	portion := m.Portion
	if portion <= 0 {
		portion = 100
	}
	occurred := m.EatenAt
	if occurred.IsZero() {
		occurred = m.CreatedAt
	}
	meal := MealCategory(m.MealType)
	switch meal {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
	default:
		meal = MealSnack
	}
	entry := LedgerEntry{
		UserID:           m.UserID,
		MealCategory:     meal,
		FoodDescription:  m.Description,
		PortionGrams:     portion,
		PreparationState: StateCooked,
		Facts: NutritionFacts{
			Calories: m.Calories,
			Protein:  m.Protein,
			Carbs:    m.Carbs,
			Fat:      m.Fat,
			Category: CategoryOther,
		}.Rounded(),
		EntryOrigin: OriginManual,
		Confidence:  1.0,
		OccurredAt:  occurred,
	}
	if err := entry.Validate(); err != nil {
		return LedgerEntry{}, fmt.Errorf("legacy manual meal %d: %w", m.ID, err)
	}
	return entry, nil
}
