package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound reports a ledger record that does not exist (or does not
// belong to the user asking for it).
var ErrNotFound = errors.New("record not found")

// LedgerService owns the canonical consumption ledger: one row per food item
// logged, whatever the entry mechanism was.
type LedgerService struct {
	db       *gorm.DB
	resolver *Resolver
}

func NewLedgerService(db *gorm.DB, resolver *Resolver) *LedgerService {
	return &LedgerService{db: db, resolver: resolver}
}

// Append persists a consumption event and returns its record id. A missing
// record id or timestamp is filled in.
func (s *LedgerService) Append(ctx context.Context, entry models.LedgerEntry) (string, error) {
	if entry.RecordID == "" {
		entry.RecordID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now()
	}
	if err := entry.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return "", err
	}
	return entry.RecordID, nil
}

// LedgerPatch is a partial update; nil fields are left alone.
type LedgerPatch struct {
	MealCategory     *models.MealCategory
	FoodDescription  *string
	PortionGrams     *float64
	PreparationState *models.PreparationState
	OccurredAt       *time.Time
}

// Update edits a user's entry. Changing the description, portion or
// preparation state re-invokes the resolver and rescales the stored facts,
// the same way the entry was priced when first logged.
func (s *LedgerService) Update(ctx context.Context, userID uint, recordID string, patch LedgerPatch) (*models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("record_id = ? AND user_id = ?", recordID, userID).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	reprice := false
	if patch.MealCategory != nil {
		entry.MealCategory = *patch.MealCategory
	}
	if patch.OccurredAt != nil {
		entry.OccurredAt = *patch.OccurredAt
	}
	if patch.FoodDescription != nil && *patch.FoodDescription != entry.FoodDescription {
		entry.FoodDescription = *patch.FoodDescription
		reprice = true
	}
	if patch.PortionGrams != nil && *patch.PortionGrams != entry.PortionGrams {
		entry.PortionGrams = *patch.PortionGrams
		reprice = true
	}
	if patch.PreparationState != nil && *patch.PreparationState != entry.PreparationState {
		entry.PreparationState = *patch.PreparationState
		reprice = true
	}

	if reprice {
		res, err := s.resolver.Resolve(ctx, entry.FoodDescription, entry.PortionGrams, entry.PreparationState)
		if err != nil {
			return nil, err
		}
		entry.Facts = res.Facts.Scale(entry.PortionGrams)
		entry.Confidence = res.Confidence
	}

	if err := entry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.db.WithContext(ctx).Save(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// Delete removes a user's entry.
func (s *LedgerService) Delete(ctx context.Context, userID uint, recordID string) error {
	res := s.db.WithContext(ctx).
		Where("record_id = ? AND user_id = ?", recordID, userID).
		Delete(&models.LedgerEntry{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// QueryByUserAndDateRange lists a user's entries in [start, end), newest
// first.
func (s *LedgerService) QueryByUserAndDateRange(ctx context.Context, userID uint, start, end time.Time) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND occurred_at >= ? AND occurred_at < ?", userID, start, end).
		Order("occurred_at DESC").
		Find(&entries).Error
	return entries, err
}

// AggregateTotals sums absolute facts across every entry in range,
// independent of entry origin, rounded to one decimal. The entry count rides
// along for "N items logged" displays.
func (s *LedgerService) AggregateTotals(ctx context.Context, userID uint, start, end time.Time) (models.NutritionFacts, int64, error) {
	entries, err := s.QueryByUserAndDateRange(ctx, userID, start, end)
	if err != nil {
		return models.NutritionFacts{}, 0, err
	}
	total := models.NutritionFacts{Category: models.CategoryOther}
	for _, e := range entries {
		total = total.Add(e.Facts)
	}
	return total.Rounded(), int64(len(entries)), nil
}

// DailyCalories buckets a week of calories by day for the weekly chart.
// Keys are yyyy-mm-dd for the seven days starting at weekStart; days with no
// entries are present with zero.
func (s *LedgerService) DailyCalories(ctx context.Context, userID uint, weekStart time.Time) (map[string]float64, error) {
	start := time.Date(weekStart.Year(), weekStart.Month(), weekStart.Day(), 0, 0, 0, 0, weekStart.Location())
	end := start.AddDate(0, 0, 7)

	entries, err := s.QueryByUserAndDateRange(ctx, userID, start, end)
	if err != nil {
		return nil, err
	}

	stats := make(map[string]float64, 7)
	for i := 0; i < 7; i++ {
		stats[start.AddDate(0, 0, i).Format("2006-01-02")] = 0
	}
	for _, e := range entries {
		day := e.OccurredAt.In(start.Location()).Format("2006-01-02")
		if _, ok := stats[day]; ok {
			stats[day] += e.Facts.Calories
		}
	}
	for day, cal := range stats {
		stats[day] = models.Round1(cal)
	}
	return stats, nil
}
