package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEstimate(t *testing.T) {
	reply := "Here is the analysis:\n```json\n" + `{
  "foodName": "chicken biryani",
  "calories": 380,
  "protein": 18,
  "carbs": 45,
  "fat": 12,
  "servingSize": 200,
  "micronutrients": {"vitaminA": 90, "vitaminC": 4, "calcium": 60, "iron": 2.5},
  "confidence": 0.88
}` + "\n```"

	est, err := parseEstimate(reply, 0)
	require.NoError(t, err)
	assert.Equal(t, "chicken biryani", est.FoodName)
	assert.Equal(t, 380.0, est.Facts.Calories)
	assert.Equal(t, 200.0, est.EstimatedWeightGrams)
	assert.Equal(t, 2.5, est.Facts.Micronutrients.Iron)
	assert.Equal(t, 0.88, est.Confidence)
}

func TestParseEstimateMissingConfidenceIsZero(t *testing.T) {
	est, err := parseEstimate(`{"foodName": "soup", "calories": 90}`, 150)
	require.NoError(t, err)
	assert.Equal(t, 0.0, est.Confidence, "missing confidence must gate admission")
	assert.Equal(t, 150.0, est.EstimatedWeightGrams, "caller-supplied portion backfills the weight")
}

func TestParseEstimateOutOfRangeConfidenceIsZero(t *testing.T) {
	est, err := parseEstimate(`{"foodName": "soup", "calories": 90, "confidence": 1.7}`, 100)
	require.NoError(t, err)
	assert.Equal(t, 0.0, est.Confidence)
}

func TestParseEstimateMalformed(t *testing.T) {
	_, err := parseEstimate("I could not identify the food.", 100)
	assert.Error(t, err)

	_, err = parseEstimate(`{"calories": "lots"}`, 100)
	assert.Error(t, err)

	_, err = parseEstimate(`{"foodName": "soup", "calories": -5}`, 100)
	assert.Error(t, err, "negative facts are malformed")
}
