package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend/models"
	"backend/utils"

	"github.com/rs/zerolog/log"
)

// ErrInvalidInput marks caller mistakes (empty description, non-positive
// portion). Everything else the resolver recovers from internally.
var ErrInvalidInput = errors.New("invalid input")

type ResolutionSource string

const (
	SourceKnowledgeBase   ResolutionSource = "knowledge_base"
	SourceCache           ResolutionSource = "cache"
	SourceOracle          ResolutionSource = "oracle"
	SourceFallbackDefault ResolutionSource = "fallback_default"
)

// ResolutionResult carries per-100g facts; callers scale by portion/100 for
// ledger entries.
type ResolutionResult struct {
	Facts      models.NutritionFacts `json:"facts"`
	Source     ResolutionSource      `json:"source"`
	Confidence float64               `json:"confidence"`
}

// ImageResolution is the photo flow's result: per-100g facts plus what the
// estimation service saw and how heavy it judged the dish.
type ImageResolution struct {
	Description          string                `json:"description"`
	EstimatedWeightGrams float64               `json:"estimated_weight_grams"`
	Facts                models.NutritionFacts `json:"facts"`
	Confidence           float64               `json:"confidence"`
}

// fallbackConfidence is what a resolution earns when the estimation service
// is unreachable and generic values are substituted.
const fallbackConfidence = 0.0

// Resolver orchestrates the tiered lookup: knowledge base, then cache, then
// the estimation oracle, cheapest reliable source first.
type Resolver struct {
	kb            *KnowledgeBase
	cache         *FoodCacheService
	oracle        EstimationOracle
	minConfidence float64
	oracleTimeout time.Duration
}

func NewResolver(kb *KnowledgeBase, cache *FoodCacheService, oracle EstimationOracle, minConfidence float64, oracleTimeout time.Duration) *Resolver {
	return &Resolver{
		kb:            kb,
		cache:         cache,
		oracle:        oracle,
		minConfidence: minConfidence,
		oracleTimeout: oracleTimeout,
	}
}

// Resolve produces per-100g nutrition facts for a food description. It never
// fails because the estimation service is down; only invalid input is an
// error.
func (r *Resolver) Resolve(ctx context.Context, description string, portionGrams float64, state models.PreparationState) (ResolutionResult, error) {
	normalized := utils.NormalizeDescription(description)
	if normalized == "" {
		return ResolutionResult{}, fmt.Errorf("%w: empty description", ErrInvalidInput)
	}
	if portionGrams <= 0 {
		return ResolutionResult{}, fmt.Errorf("%w: portion must be positive, got %v", ErrInvalidInput, portionGrams)
	}

	if entry, ok := r.kb.Lookup(normalized); ok {
		return ResolutionResult{Facts: entry.Facts, Source: SourceKnowledgeBase, Confidence: 1.0}, nil
	}

	if res, ok := r.cacheLookup(ctx, normalized); ok {
		return res, nil
	}

	est, err := r.callOracle(ctx, normalized, portionGrams, state)
	if err != nil {
		log.Warn().Err(err).Str("food", normalized).Msg("estimation oracle unavailable, using fallback facts")
		return ResolutionResult{Facts: fallbackFacts(), Source: SourceFallbackDefault, Confidence: fallbackConfidence}, nil
	}

	per100 := est.Facts.PerHundredGrams(portionGrams)
	r.admit(ctx, normalized, per100, est.Confidence, est.FoodName)
	return ResolutionResult{Facts: per100, Source: SourceOracle, Confidence: est.Confidence}, nil
}

// ResolveImage runs the photo flow: the oracle identifies the dish and
// estimates its weight, and a confident result is admitted to the cache
// under the detected name. Unlike Resolve there is no fallback; without a
// description a generic guess would be meaningless.
func (r *Resolver) ResolveImage(ctx context.Context, imageBytes []byte, mimeType string) (ImageResolution, error) {
	if len(imageBytes) == 0 || mimeType == "" {
		return ImageResolution{}, fmt.Errorf("%w: image bytes and mime type are required", ErrInvalidInput)
	}

	octx, cancel := context.WithTimeout(ctx, r.oracleTimeout)
	defer cancel()
	est, err := r.oracle.EstimateFromImage(octx, imageBytes, mimeType)
	if err != nil {
		return ImageResolution{}, err
	}

	normalized := utils.NormalizeDescription(est.FoodName)
	per100 := est.Facts.PerHundredGrams(est.EstimatedWeightGrams)
	r.admit(ctx, normalized, per100, est.Confidence, est.FoodName)
	return ImageResolution{
		Description:          est.FoodName,
		EstimatedWeightGrams: est.EstimatedWeightGrams,
		Facts:                per100,
		Confidence:           est.Confidence,
	}, nil
}

func (r *Resolver) cacheLookup(ctx context.Context, normalized string) (ResolutionResult, bool) {
	rec, found, err := r.cache.Get(ctx, normalized)
	if err != nil {
		log.Warn().Err(err).Str("food", normalized).Msg("cache lookup failed")
		return ResolutionResult{}, false
	}
	if !found {
		rec, found, err = r.cache.FindSimilar(ctx, normalized)
		if err != nil {
			log.Warn().Err(err).Str("food", normalized).Msg("cache similarity lookup failed")
			return ResolutionResult{}, false
		}
	}
	if !found {
		return ResolutionResult{}, false
	}
	if err := r.cache.RecordHit(ctx, rec.NormalizedName); err != nil {
		log.Warn().Err(err).Str("food", rec.NormalizedName).Msg("cache hit accounting failed")
	}
	return ResolutionResult{Facts: rec.Facts, Source: SourceCache, Confidence: rec.AverageConfidence}, true
}

func (r *Resolver) callOracle(ctx context.Context, normalized string, portionGrams float64, state models.PreparationState) (OracleEstimate, error) {
	// The oracle is asked about the full portion, never a 100 g reference;
	// composite dishes are misrepresented at fixed weights. The result is
	// normalized back to per-100g afterwards.
	octx, cancel := context.WithTimeout(ctx, r.oracleTimeout)
	defer cancel()
	return r.oracle.EstimateFromText(octx, normalized, portionGrams, state)
}

// admit writes a confident oracle result into the cache. Failures are logged
// and swallowed: the resolution is already computed and a broken cache must
// not block logging.
func (r *Resolver) admit(ctx context.Context, normalized string, per100 models.NutritionFacts, confidence float64, detectedName string) {
	if normalized == "" || confidence < r.minConfidence {
		return
	}
	if err := r.cache.Put(ctx, normalized, per100, confidence, detectedName); err != nil {
		log.Warn().Err(err).Str("food", normalized).Msg("cache admission failed")
	}
}

// fallbackFacts are conservative generic per-100g values used when the
// estimation service cannot be reached.
func fallbackFacts() models.NutritionFacts {
	return models.NutritionFacts{
		Calories: 100,
		Protein:  5,
		Carbs:    15,
		Fat:      3,
		Category: models.CategoryOther,
	}
}
