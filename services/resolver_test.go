package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOracle struct {
	textFn  func(ctx context.Context, description string, portionGrams float64, state models.PreparationState) (OracleEstimate, error)
	imageFn func(ctx context.Context, imageBytes []byte, mimeType string) (OracleEstimate, error)
	calls   int
}

func (f *fakeOracle) EstimateFromText(ctx context.Context, description string, portionGrams float64, state models.PreparationState) (OracleEstimate, error) {
	f.calls++
	if f.textFn == nil {
		return OracleEstimate{}, errors.New("no text stub")
	}
	return f.textFn(ctx, description, portionGrams, state)
}

func (f *fakeOracle) EstimateFromImage(ctx context.Context, imageBytes []byte, mimeType string) (OracleEstimate, error) {
	f.calls++
	if f.imageFn == nil {
		return OracleEstimate{}, errors.New("no image stub")
	}
	return f.imageFn(ctx, imageBytes, mimeType)
}

func estimate(name string, calories, weight, confidence float64) OracleEstimate {
	return OracleEstimate{
		FoodName:             name,
		Facts:                models.NutritionFacts{Calories: calories, Protein: 5, Carbs: 10, Fat: 2, Category: models.CategoryOther},
		EstimatedWeightGrams: weight,
		Confidence:           confidence,
	}
}

func newTestResolver(t *testing.T, oracle EstimationOracle) (*Resolver, *FoodCacheService) {
	t.Helper()
	cache, _ := newTestCache(t)
	return NewResolver(NewKnowledgeBase(), cache, oracle, 0.7, 2*time.Second), cache
}

func TestKnowledgeBasePrecedence(t *testing.T) {
	oracle := &fakeOracle{}
	r, cache := newTestResolver(t, oracle)
	ctx := context.Background()

	// a conflicting cache record must not shadow the knowledge base
	require.NoError(t, cache.Put(ctx, "apple", cacheFacts(999), 0.95, "apple"))

	res, err := r.Resolve(ctx, "Apple", 182, models.StateCooked)
	require.NoError(t, err)
	assert.Equal(t, SourceKnowledgeBase, res.Source)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, 52.0, res.Facts.Calories)
	assert.Zero(t, oracle.calls)

	// scaling to the requested portion happens at the caller
	scaled := res.Facts.Scale(182)
	assert.Equal(t, 94.6, scaled.Calories)
	assert.Equal(t, 0.5, scaled.Protein)
}

func TestCompoundDescriptionSkipsGenericKey(t *testing.T) {
	oracle := &fakeOracle{
		textFn: func(_ context.Context, _ string, portion float64, _ models.PreparationState) (OracleEstimate, error) {
			return estimate("rice cake", 120, portion, 0.9), nil
		},
	}
	r, _ := newTestResolver(t, oracle)

	res, err := r.Resolve(context.Background(), "rice cake", 30, models.StateCooked)
	require.NoError(t, err)
	assert.NotEqual(t, SourceKnowledgeBase, res.Source, `"rice cake" must not match the generic "rice" key`)
	assert.Equal(t, SourceOracle, res.Source)
	assert.Equal(t, 1, oracle.calls)
}

func TestOracleResolutionThenCacheHit(t *testing.T) {
	oracle := &fakeOracle{
		textFn: func(_ context.Context, _ string, portion float64, _ models.PreparationState) (OracleEstimate, error) {
			return estimate("aple", 95, portion, 0.9), nil
		},
	}
	r, cache := newTestResolver(t, oracle)
	ctx := context.Background()

	res, err := r.Resolve(ctx, "aple", 100, models.StateRaw)
	require.NoError(t, err)
	assert.Equal(t, SourceOracle, res.Source)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Equal(t, 95.0, res.Facts.Calories)

	// the result was admitted under the normalized input
	rec, found, err := cache.Get(ctx, "aple")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, rec.HitCount)

	// an identical second call is served from the cache and recorded
	res, err = r.Resolve(ctx, "aple", 100, models.StateRaw)
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, 1, oracle.calls, "no second oracle call")

	rec, found, err = cache.Get(ctx, "aple")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, rec.HitCount)
}

func TestOraclePortionIsNormalizedPer100g(t *testing.T) {
	oracle := &fakeOracle{
		textFn: func(_ context.Context, _ string, portion float64, _ models.PreparationState) (OracleEstimate, error) {
			// 600 kcal for the whole 250 g dish
			return estimate("lasagna", 600, portion, 0.8), nil
		},
	}
	r, _ := newTestResolver(t, oracle)

	res, err := r.Resolve(context.Background(), "lasagna", 250, models.StateCooked)
	require.NoError(t, err)
	assert.Equal(t, 240.0, res.Facts.Calories, "600 kcal / 250 g = 240 per 100 g")
	assert.Equal(t, 600.0, res.Facts.Scale(250).Calories)
}

func TestLowConfidenceIsNeverAdmitted(t *testing.T) {
	oracle := &fakeOracle{
		textFn: func(_ context.Context, _ string, portion float64, _ models.PreparationState) (OracleEstimate, error) {
			return estimate("mystery stew", 200, portion, 0.5), nil
		},
	}
	r, cache := newTestResolver(t, oracle)
	ctx := context.Background()

	res, err := r.Resolve(ctx, "mystery stew", 300, models.StateCooked)
	require.NoError(t, err)
	assert.Equal(t, SourceOracle, res.Source)

	_, found, err := cache.Get(ctx, "mystery_stew")
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = cache.FindSimilar(ctx, "mystery_stew")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBrokenCacheDoesNotBlockResolution(t *testing.T) {
	oracle := &fakeOracle{
		textFn: func(_ context.Context, _ string, portion float64, _ models.PreparationState) (OracleEstimate, error) {
			return estimate("paneer tikka", 280, portion, 0.9), nil
		},
	}
	r, cache := newTestResolver(t, oracle)
	ctx := context.Background()

	// every cache read and write against a dropped table errors out
	require.NoError(t, cache.db.Migrator().DropTable(&models.FoodCacheRecord{}))

	res, err := r.Resolve(ctx, "paneer tikka", 150, models.StateCooked)
	require.NoError(t, err, "a broken cache must not fail the resolution")
	assert.Equal(t, SourceOracle, res.Source)
	assert.Equal(t, 0.9, res.Confidence)
	assert.Equal(t, 1, oracle.calls)
}

func TestOracleFailureFallsBack(t *testing.T) {
	oracle := &fakeOracle{
		textFn: func(context.Context, string, float64, models.PreparationState) (OracleEstimate, error) {
			return OracleEstimate{}, errors.New("upstream down")
		},
	}
	r, _ := newTestResolver(t, oracle)

	res, err := r.Resolve(context.Background(), "dragonfruit smoothie", 350, models.StateRaw)
	require.NoError(t, err, "an unreachable oracle must never fail the resolution")
	assert.Equal(t, SourceFallbackDefault, res.Source)
	assert.Equal(t, 0.0, res.Confidence)
	assert.Equal(t, 100.0, res.Facts.Calories)
}

func TestInvalidInput(t *testing.T) {
	r, _ := newTestResolver(t, &fakeOracle{})
	ctx := context.Background()

	_, err := r.Resolve(ctx, "   ", 100, models.StateRaw)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.Resolve(ctx, "apple", 0, models.StateRaw)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.Resolve(ctx, "apple", -5, models.StateRaw)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.ResolveImage(ctx, nil, "image/jpeg")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestResolveImage(t *testing.T) {
	oracle := &fakeOracle{
		imageFn: func(_ context.Context, _ []byte, _ string) (OracleEstimate, error) {
			// 380 kcal for an estimated 200 g plate
			return estimate("Chicken Biryani", 380, 200, 0.88), nil
		},
	}
	r, cache := newTestResolver(t, oracle)
	ctx := context.Background()

	res, err := r.ResolveImage(ctx, []byte{0xFF, 0xD8}, "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "Chicken Biryani", res.Description)
	assert.Equal(t, 200.0, res.EstimatedWeightGrams)
	assert.Equal(t, 190.0, res.Facts.Calories)
	assert.Equal(t, 0.88, res.Confidence)

	rec, found, err := cache.Get(ctx, "chicken_biryani")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 190.0, rec.Facts.Calories)
}
