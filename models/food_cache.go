package models

import (
	"time"

	"gorm.io/gorm"
)

// FoodCacheRecord is a previously resolved (non knowledge-base) food. Facts
// are always stored per 100 g so scaling stays consistent regardless of the
// portion the food was first observed at.
type FoodCacheRecord struct {
	gorm.Model
	NormalizedName string         `gorm:"type:varchar(255);uniqueIndex;not null"`
	Facts          NutritionFacts `gorm:"embedded"`
	// DetectedName is what the estimation service called the food. Lookups
	// are keyed by NormalizedName only; this is kept for inspection.
	DetectedName      string `gorm:"type:varchar(255)"`
	HitCount          int    `gorm:"not null;default:1"`
	AverageConfidence float64
	LastResolvedAt    time.Time
	ExpiresAt         time.Time `gorm:"index"`
}

// Expired reports whether the record must no longer be served.
func (r FoodCacheRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// WithHit returns a copy with the hit accounted for: hit count incremented
// and the expiry slid forward. The durable write is the caller's problem.
func (r FoodCacheRecord) WithHit(now time.Time, ttl time.Duration) FoodCacheRecord {
	r.HitCount++
	r.LastResolvedAt = now
	r.ExpiresAt = now.Add(ttl)
	return r
}

// WithObservation merges a fresh resolution into the record: a hit plus a
// running-mean update of the confidence with the new observation.
func (r FoodCacheRecord) WithObservation(now time.Time, ttl time.Duration, facts NutritionFacts, confidence float64) FoodCacheRecord {
	prior := float64(r.HitCount)
	r = r.WithHit(now, ttl)
	r.AverageConfidence = (r.AverageConfidence*prior + confidence) / (prior + 1)
	r.Facts = facts
	return r
}

// NewFoodCacheRecord builds the initial record for a food admitted to the
// cache for the first time.
func NewFoodCacheRecord(normalizedName string, facts NutritionFacts, confidence float64, detectedName string, now time.Time, ttl time.Duration) FoodCacheRecord {
	return FoodCacheRecord{
		NormalizedName:    normalizedName,
		Facts:             facts,
		DetectedName:      detectedName,
		HitCount:          1,
		AverageConfidence: confidence,
		LastResolvedAt:    now,
		ExpiresAt:         now.Add(ttl),
	}
}
