package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"backend/models"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker/v2"
)

// OracleEstimate is what the estimation service returns for one food. Facts
// are absolute for EstimatedWeightGrams, not per 100 g: the service reasons
// about realistic dish sizes, so a "sandwich" is estimated as a sandwich.
type OracleEstimate struct {
	FoodName             string
	Facts                models.NutritionFacts
	EstimatedWeightGrams float64
	Confidence           float64
}

// EstimationOracle is the external AI boundary. Both calls are slow
// (hundreds of milliseconds to seconds), fallible and costly; the knowledge
// base and cache tiers exist to avoid them. Injected so tests can substitute
// a deterministic stub.
type EstimationOracle interface {
	EstimateFromText(ctx context.Context, description string, portionGrams float64, state models.PreparationState) (OracleEstimate, error)
	EstimateFromImage(ctx context.Context, imageBytes []byte, mimeType string) (OracleEstimate, error)
}

const nutritionSystemPrompt = `You are a nutrition analysis AI. Analyze the food and return nutritional information in this exact JSON format:
{
  "foodName": "name of the food",
  "calories": number,
  "protein": number (grams),
  "carbs": number (grams),
  "fat": number (grams),
  "servingSize": number (grams),
  "micronutrients": {
    "vitaminA": number (mcg),
    "vitaminC": number (mg),
    "calcium": number (mg),
    "iron": number (mg)
  },
  "confidence": number (0-1)
}
Be accurate and only analyze what you can clearly identify.`

// OpenAIOracle implements EstimationOracle against an OpenAI-compatible chat
// completion API. A circuit breaker fails fast when the upstream is flapping
// instead of burning the request timeout on every call.
type OpenAIOracle struct {
	client  *openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker[OracleEstimate]
}

func NewOpenAIOracle(apiKey, baseURL, model string) *OpenAIOracle {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIOracle{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		breaker: gobreaker.NewCircuitBreaker[OracleEstimate](gobreaker.Settings{Name: "estimation-oracle"}),
	}
}

func (o *OpenAIOracle) EstimateFromText(ctx context.Context, description string, portionGrams float64, state models.PreparationState) (OracleEstimate, error) {
	prompt := fmt.Sprintf(
		`Analyze this food description: %q (%s) for a portion of %.0fg. Provide complete nutritional breakdown for that portion. Return only the JSON object with "servingSize" set to %.0f.`,
		description, state, portionGrams, portionGrams,
	)
	return o.breaker.Execute(func() (OracleEstimate, error) {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: nutritionSystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			MaxTokens:   500,
			Temperature: 0.1, // low temperature keeps the JSON stable
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		})
		if err != nil {
			return OracleEstimate{}, fmt.Errorf("estimation oracle text call: %w", err)
		}
		if len(resp.Choices) == 0 {
			return OracleEstimate{}, fmt.Errorf("estimation oracle text call: empty response")
		}
		est, err := parseEstimate(resp.Choices[0].Message.Content, portionGrams)
		if err != nil {
			return OracleEstimate{}, err
		}
		if est.FoodName == "" {
			est.FoodName = description
		}
		return est, nil
	})
}

func (o *OpenAIOracle) EstimateFromImage(ctx context.Context, imageBytes []byte, mimeType string) (OracleEstimate, error) {
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageBytes))
	return o.breaker.Execute(func() (OracleEstimate, error) {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: nutritionSystemPrompt},
				{
					Role: openai.ChatMessageRoleUser,
					MultiContent: []openai.ChatMessagePart{
						{
							Type: openai.ChatMessagePartTypeText,
							Text: "Analyze this food image and provide complete nutritional breakdown. Return only the JSON object.",
						},
						{
							Type:     openai.ChatMessagePartTypeImageURL,
							ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
						},
					},
				},
			},
			MaxTokens:   500,
			Temperature: 0.1,
		})
		if err != nil {
			return OracleEstimate{}, fmt.Errorf("estimation oracle image call: %w", err)
		}
		if len(resp.Choices) == 0 {
			return OracleEstimate{}, fmt.Errorf("estimation oracle image call: empty response")
		}
		est, err := parseEstimate(resp.Choices[0].Message.Content, 0)
		if err != nil {
			return OracleEstimate{}, err
		}
		if est.FoodName == "" {
			return OracleEstimate{}, fmt.Errorf("estimation oracle image call: no food identified")
		}
		return est, nil
	})
}

type estimatePayload struct {
	FoodName       string  `json:"foodName"`
	Calories       float64 `json:"calories"`
	Protein        float64 `json:"protein"`
	Carbs          float64 `json:"carbs"`
	Fat            float64 `json:"fat"`
	ServingSize    float64 `json:"servingSize"`
	Micronutrients struct {
		VitaminA float64 `json:"vitaminA"`
		VitaminC float64 `json:"vitaminC"`
		Calcium  float64 `json:"calcium"`
		Iron     float64 `json:"iron"`
	} `json:"micronutrients"`
	Confidence float64 `json:"confidence"`
}

// parseEstimate extracts the JSON object from the model's reply, tolerating
// surrounding prose or markdown fences. Missing or out-of-range confidence
// is treated as 0 so the result is never admitted to the cache.
func parseEstimate(text string, defaultWeight float64) (OracleEstimate, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return OracleEstimate{}, fmt.Errorf("estimation oracle: no JSON object in response")
	}
	var p estimatePayload
	if err := json.Unmarshal([]byte(text[start:end+1]), &p); err != nil {
		return OracleEstimate{}, fmt.Errorf("estimation oracle: malformed JSON response: %w", err)
	}

	weight := p.ServingSize
	if weight <= 0 {
		weight = defaultWeight
	}
	if weight <= 0 {
		weight = 100
	}
	confidence := p.Confidence
	if confidence < 0 || confidence > 1 {
		confidence = 0
	}
	facts := models.NutritionFacts{
		Calories: p.Calories,
		Protein:  p.Protein,
		Carbs:    p.Carbs,
		Fat:      p.Fat,
		Micronutrients: models.Micronutrients{
			VitaminA: p.Micronutrients.VitaminA,
			VitaminC: p.Micronutrients.VitaminC,
			Calcium:  p.Micronutrients.Calcium,
			Iron:     p.Micronutrients.Iron,
		},
		Category: models.CategoryOther,
	}
	if err := facts.Validate(); err != nil {
		return OracleEstimate{}, fmt.Errorf("estimation oracle: %w", err)
	}
	return OracleEstimate{
		FoodName:             strings.TrimSpace(p.FoodName),
		Facts:                facts,
		EstimatedWeightGrams: weight,
		Confidence:           confidence,
	}, nil
}
