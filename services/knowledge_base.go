package services

import (
	"sort"
	"strings"

	"backend/models"
)

// KnowledgeBaseEntry is a curated food with per-100g facts and the portion
// weight assumed when the caller supplies none.
type KnowledgeBaseEntry struct {
	CanonicalKey    string
	Facts           models.NutritionFacts
	BaseWeightGrams float64
}

// KnowledgeBase is the static tier of resolution: a small curated table of
// common foods. Loaded once, never mutated, safe for concurrent reads.
type KnowledgeBase struct {
	entries map[string]KnowledgeBaseEntry
	// keys sorted longest-first so the most specific key wins a substring scan
	orderedKeys []string
}

func kbFacts(cal, protein, carbs, fat float64, cat models.FoodCategory) models.NutritionFacts {
	return models.NutritionFacts{Calories: cal, Protein: protein, Carbs: carbs, Fat: fat, Category: cat}
}

// NewKnowledgeBase loads the curated table. Values are per 100 g.
func NewKnowledgeBase() *KnowledgeBase {
	type row struct {
		facts      models.NutritionFacts
		baseWeight float64
	}
	table := map[string]row{
		"apple":          {kbFacts(52, 0.3, 14, 0.2, models.CategoryFruit), 182},
		"banana":         {kbFacts(89, 1.1, 23, 0.3, models.CategoryFruit), 118},
		"orange":         {kbFacts(47, 0.9, 12, 0.1, models.CategoryFruit), 154},
		"chicken_breast": {kbFacts(165, 31, 0, 3.6, models.CategoryProtein), 100},
		"chicken_thigh":  {kbFacts(209, 26, 0, 10, models.CategoryProtein), 100},
		"rice":           {kbFacts(130, 2.7, 28, 0.3, models.CategoryGrain), 100},
		"bread":          {kbFacts(265, 9, 49, 3.2, models.CategoryGrain), 25},
		"egg":            {kbFacts(155, 13, 1.1, 11, models.CategoryProtein), 50},
		"milk":           {kbFacts(42, 3.4, 5, 1, models.CategoryDairy), 100},
		"yogurt":         {kbFacts(59, 10, 3.6, 0.4, models.CategoryDairy), 100},
		"salmon":         {kbFacts(208, 20, 0, 12, models.CategoryProtein), 100},
		"broccoli":       {kbFacts(34, 2.8, 7, 0.4, models.CategoryVegetable), 100},
		"pasta":          {kbFacts(131, 5, 25, 1.1, models.CategoryGrain), 100},
		"potato":         {kbFacts(77, 2, 17, 0.1, models.CategoryVegetable), 173},
		"carrot":         {kbFacts(41, 0.9, 10, 0.2, models.CategoryVegetable), 61},
		"tomato":         {kbFacts(18, 0.9, 3.9, 0.2, models.CategoryVegetable), 123},
		"spinach":        {kbFacts(23, 2.9, 3.6, 0.4, models.CategoryVegetable), 100},
		"beef":           {kbFacts(250, 26, 0, 17, models.CategoryProtein), 100},
		"pork":           {kbFacts(242, 27, 0, 14, models.CategoryProtein), 100},
		"fish":           {kbFacts(206, 22, 0, 12, models.CategoryProtein), 100},
	}

	kb := &KnowledgeBase{entries: make(map[string]KnowledgeBaseEntry, len(table))}
	for key, r := range table {
		kb.entries[key] = KnowledgeBaseEntry{CanonicalKey: key, Facts: r.facts, BaseWeightGrams: r.baseWeight}
		kb.orderedKeys = append(kb.orderedKeys, key)
	}
	sort.Slice(kb.orderedKeys, func(i, j int) bool {
		if len(kb.orderedKeys[i]) != len(kb.orderedKeys[j]) {
			return len(kb.orderedKeys[i]) > len(kb.orderedKeys[j])
		}
		return kb.orderedKeys[i] < kb.orderedKeys[j]
	})
	return kb
}

// Lookup resolves an already-normalized description against the table.
// Exact keys win; otherwise keys are scanned most-specific-first with the
// asymmetric policy in matchKey.
func (kb *KnowledgeBase) Lookup(normalized string) (KnowledgeBaseEntry, bool) {
	if e, ok := kb.entries[normalized]; ok {
		return e, true
	}
	for _, key := range kb.orderedKeys {
		if matchKey(normalized, key) {
			return kb.entries[key], true
		}
	}
	return KnowledgeBaseEntry{}, false
}

// matchKey decides whether a normalized description resolves to a canonical
// key. Multi-word keys match by containment in either direction, so
// "grilled_chicken_breast" finds "chicken_breast" and the shorthand
// "chicken" finds it too. Single-word keys are generic terms and only match
// single-word descriptions that contain the key, so a compound phrase like
// "rice_cake" never degrades to "rice" and a fragment like "ric" falls
// through to the next tier.
func matchKey(normalized, key string) bool {
	if normalized == key {
		return true
	}
	if strings.Contains(key, "_") {
		return strings.Contains(normalized, key) || strings.Contains(key, normalized)
	}
	if strings.Contains(normalized, "_") {
		return false
	}
	return strings.Contains(normalized, key)
}

// BaseWeight returns the default portion for a food, 100 g when unknown.
func (kb *KnowledgeBase) BaseWeight(normalized string) float64 {
	if e, ok := kb.Lookup(normalized); ok {
		return e.BaseWeightGrams
	}
	return 100
}

// Keys lists every canonical food name, alphabetically.
func (kb *KnowledgeBase) Keys() []string {
	keys := make([]string, 0, len(kb.entries))
	for k := range kb.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
