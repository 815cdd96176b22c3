package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"backend/models"
	"backend/utils"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"gorm.io/gorm"
)

// similarCandidateLimit bounds how many live rows a fuzzy lookup will score.
const similarCandidateLimit = 500

// keyedMutex serializes operations per normalized name so concurrent hit
// accounting on the same food is never lost, while different foods proceed
// without contention. Entries are refcounted and dropped once the last
// holder releases, so the map tracks only names currently in flight.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// FoodCacheService is the self-populating middle tier of resolution: foods
// the estimation service has already priced, kept warm by use (sliding TTL)
// and evicted by disuse.
type FoodCacheService struct {
	db                  *gorm.DB
	ttl                 time.Duration
	similarityThreshold float64
	sim                 *metrics.SorensenDice
	keys                keyedMutex
	now                 func() time.Time
}

func NewFoodCacheService(db *gorm.DB, ttl time.Duration, similarityThreshold float64) *FoodCacheService {
	return &FoodCacheService{
		db:                  db,
		ttl:                 ttl,
		similarityThreshold: similarityThreshold,
		sim:                 metrics.NewSorensenDice(),
		now:                 time.Now,
	}
}

// Get does an exact lookup by normalized name. Expired records are treated
// as absent; they are not mutated or purged here.
func (s *FoodCacheService) Get(ctx context.Context, normalizedName string) (*models.FoodCacheRecord, bool, error) {
	var rec models.FoodCacheRecord
	err := s.db.WithContext(ctx).
		Where("normalized_name = ?", normalizedName).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if rec.Expired(s.now()) {
		return nil, false, nil
	}
	return &rec, true, nil
}

// FindSimilar ranks live records by text similarity to the normalized name
// and returns the single best match if it clears the threshold. Ties go to
// the record with more hits.
func (s *FoodCacheService) FindSimilar(ctx context.Context, normalizedName string) (*models.FoodCacheRecord, bool, error) {
	var candidates []models.FoodCacheRecord
	err := s.db.WithContext(ctx).
		Where("expires_at > ?", s.now()).
		Limit(similarCandidateLimit).
		Find(&candidates).Error
	if err != nil {
		return nil, false, err
	}

	query := utils.Spaced(normalizedName)
	var best *models.FoodCacheRecord
	bestScore := 0.0
	for i := range candidates {
		score := strutil.Similarity(query, utils.Spaced(candidates[i].NormalizedName), s.sim)
		if score > bestScore || (score == bestScore && best != nil && candidates[i].HitCount > best.HitCount) {
			best = &candidates[i]
			bestScore = score
		}
	}
	if best == nil || bestScore < s.similarityThreshold {
		return nil, false, nil
	}
	return best, true, nil
}

// RecordHit accounts a successful cache hit: hit count +1 and the expiry
// slid forward to now+TTL. Serialized per key.
func (s *FoodCacheService) RecordHit(ctx context.Context, normalizedName string) error {
	unlock := s.keys.lock(normalizedName)
	defer unlock()

	var rec models.FoodCacheRecord
	if err := s.db.WithContext(ctx).
		Where("normalized_name = ?", normalizedName).
		First(&rec).Error; err != nil {
		return err
	}
	updated := rec.WithHit(s.now(), s.ttl)
	return s.db.WithContext(ctx).Save(&updated).Error
}

// Put admits a freshly resolved food. A first observation creates the record
// with hit count 1; a repeat observation merges like RecordHit plus a
// running-mean confidence update. Serialized per key.
func (s *FoodCacheService) Put(ctx context.Context, normalizedName string, facts models.NutritionFacts, confidence float64, detectedName string) error {
	unlock := s.keys.lock(normalizedName)
	defer unlock()

	now := s.now()
	var rec models.FoodCacheRecord
	err := s.db.WithContext(ctx).
		Where("normalized_name = ?", normalizedName).
		First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		fresh := models.NewFoodCacheRecord(normalizedName, facts, confidence, detectedName, now, s.ttl)
		return s.db.WithContext(ctx).Create(&fresh).Error
	case err != nil:
		return err
	default:
		updated := rec.WithObservation(now, s.ttl, facts, confidence)
		return s.db.WithContext(ctx).Save(&updated).Error
	}
}

// SweepExpired physically deletes records whose expiry has passed. Reads
// already refuse to serve them; this just reclaims the rows.
func (s *FoodCacheService) SweepExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Unscoped().
		Where("expires_at <= ?", s.now()).
		Delete(&models.FoodCacheRecord{})
	return res.RowsAffected, res.Error
}
