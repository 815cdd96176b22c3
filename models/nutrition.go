package models

import (
	"fmt"
	"math"
)

type FoodCategory string

const (
	CategoryFruit     FoodCategory = "fruit"
	CategoryVegetable FoodCategory = "vegetable"
	CategoryProtein   FoodCategory = "protein"
	CategoryGrain     FoodCategory = "grain"
	CategoryDairy     FoodCategory = "dairy"
	CategorySnack     FoodCategory = "snack"
	CategoryBeverage  FoodCategory = "beverage"
	CategoryDessert   FoodCategory = "dessert"
	CategoryOther     FoodCategory = "other"
)

type PreparationState string

const (
	StateRaw    PreparationState = "raw"
	StateCooked PreparationState = "cooked"
)

type MealCategory string

const (
	MealBreakfast MealCategory = "breakfast"
	MealLunch     MealCategory = "lunch"
	MealDinner    MealCategory = "dinner"
	MealSnack     MealCategory = "snack"
)

// EntryOrigin records the mechanism that created a ledger entry.
type EntryOrigin string

const (
	OriginManual  EntryOrigin = "manual"
	OriginAiPhoto EntryOrigin = "ai-photo"
	OriginSearch  EntryOrigin = "search"
)

// Micronutrients tracked per food: vitamin A (mcg), vitamin C (mg),
// calcium (mg), iron (mg).
type Micronutrients struct {
	VitaminA float64 `json:"vitamin_a"`
	VitaminC float64 `json:"vitamin_c"`
	Calcium  float64 `json:"calcium"`
	Iron     float64 `json:"iron"`
}

// NutritionFacts is a value type. Depending on context the numbers are either
// per 100 g (knowledge base, cache, resolution results) or absolute for a
// portion (ledger entries); the two never mix inside one struct instance.
type NutritionFacts struct {
	Calories       float64        `json:"calories"`
	Protein        float64        `json:"protein"`
	Carbs          float64        `json:"carbs"`
	Fat            float64        `json:"fat"`
	Micronutrients Micronutrients `json:"micronutrients" gorm:"embedded"`
	Category       FoodCategory   `json:"category" gorm:"type:varchar(20)"`
}

// Round1 rounds to one decimal place, the precision every stored nutrition
// number uses.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Validate rejects facts with negative numeric fields.
func (n NutritionFacts) Validate() error {
	for name, v := range map[string]float64{
		"calories":  n.Calories,
		"protein":   n.Protein,
		"carbs":     n.Carbs,
		"fat":       n.Fat,
		"vitamin_a": n.Micronutrients.VitaminA,
		"vitamin_c": n.Micronutrients.VitaminC,
		"calcium":   n.Micronutrients.Calcium,
		"iron":      n.Micronutrients.Iron,
	} {
		if v < 0 {
			return fmt.Errorf("nutrition facts: %s must be >= 0, got %v", name, v)
		}
	}
	return nil
}

// Scale converts per-100g facts into absolute facts for the given portion,
// rounding every field to one decimal.
func (n NutritionFacts) Scale(portionGrams float64) NutritionFacts {
	m := portionGrams / 100.0
	return n.scaleBy(m)
}

// PerHundredGrams converts absolute facts observed at the given portion back
// to the per-100g reference, rounding every field to one decimal.
func (n NutritionFacts) PerHundredGrams(portionGrams float64) NutritionFacts {
	if portionGrams <= 0 {
		return n
	}
	return n.scaleBy(100.0 / portionGrams)
}

func (n NutritionFacts) scaleBy(m float64) NutritionFacts {
	return NutritionFacts{
		Calories: Round1(n.Calories * m),
		Protein:  Round1(n.Protein * m),
		Carbs:    Round1(n.Carbs * m),
		Fat:      Round1(n.Fat * m),
		Micronutrients: Micronutrients{
			VitaminA: Round1(n.Micronutrients.VitaminA * m),
			VitaminC: Round1(n.Micronutrients.VitaminC * m),
			Calcium:  Round1(n.Micronutrients.Calcium * m),
			Iron:     Round1(n.Micronutrients.Iron * m),
		},
		Category: n.Category,
	}
}

// Add sums absolute facts field by field. Category is not meaningful on a
// total and is left as-is on the receiver.
func (n NutritionFacts) Add(other NutritionFacts) NutritionFacts {
	n.Calories += other.Calories
	n.Protein += other.Protein
	n.Carbs += other.Carbs
	n.Fat += other.Fat
	n.Micronutrients.VitaminA += other.Micronutrients.VitaminA
	n.Micronutrients.VitaminC += other.Micronutrients.VitaminC
	n.Micronutrients.Calcium += other.Micronutrients.Calcium
	n.Micronutrients.Iron += other.Micronutrients.Iron
	return n
}

// Rounded returns the facts with every field rounded to one decimal.
func (n NutritionFacts) Rounded() NutritionFacts {
	return n.scaleBy(1)
}
