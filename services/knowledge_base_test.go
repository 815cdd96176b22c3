package services

import (
	"testing"

	"backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnowledgeBaseExactLookup(t *testing.T) {
	kb := NewKnowledgeBase()

	entry, ok := kb.Lookup("apple")
	require.True(t, ok)
	assert.Equal(t, "apple", entry.CanonicalKey)
	assert.Equal(t, 52.0, entry.Facts.Calories)
	assert.Equal(t, models.CategoryFruit, entry.Facts.Category)
	assert.Equal(t, 182.0, entry.BaseWeightGrams)
}

func TestKnowledgeBaseMatchingPolicy(t *testing.T) {
	kb := NewKnowledgeBase()

	// compound descriptions reach multi-word keys in either direction
	entry, ok := kb.Lookup("grilled_chicken_breast")
	require.True(t, ok)
	assert.Equal(t, "chicken_breast", entry.CanonicalKey)

	entry, ok = kb.Lookup("chicken")
	require.True(t, ok)
	assert.Equal(t, "chicken_breast", entry.CanonicalKey, "shorthand resolves to the most specific key")

	// single-word descriptions may still reach single-word keys
	entry, ok = kb.Lookup("apples")
	require.True(t, ok)
	assert.Equal(t, "apple", entry.CanonicalKey)

	// a compound phrase must never degrade to a generic single-word key
	_, ok = kb.Lookup("rice_cake")
	assert.False(t, ok, `"rice cake" must not resolve to "rice"`)

	_, ok = kb.Lookup("banana_bread_muffin")
	assert.False(t, ok)

	_, ok = kb.Lookup("quinoa")
	assert.False(t, ok)

	// fragments of a generic key fall through to the next tier
	_, ok = kb.Lookup("ice")
	assert.False(t, ok, `"ice" must not resolve to "rice"`)

	_, ok = kb.Lookup("ric")
	assert.False(t, ok)
}

func TestMatchKey(t *testing.T) {
	cases := []struct {
		desc, key string
		want      bool
	}{
		{"rice", "rice", true},
		{"rice_cake", "rice", false},
		{"fried_rice", "rice", false},
		{"steamed_rice_bowl", "rice", false},
		{"grilled_chicken_breast", "chicken_breast", true},
		{"chicken", "chicken_breast", true},
		{"apples", "apple", true},
		{"pineapple", "apple", true}, // known looseness of single-word containment
		{"ice", "rice", false},
		{"ric", "rice", false},
		{"beefsteak_tomato_salad", "beef", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, matchKey(c.desc, c.key), "matchKey(%q, %q)", c.desc, c.key)
	}
}

func TestBaseWeight(t *testing.T) {
	kb := NewKnowledgeBase()
	assert.Equal(t, 118.0, kb.BaseWeight("banana"))
	assert.Equal(t, 100.0, kb.BaseWeight("mystery_stew"))
}

func TestKeysSortedAndComplete(t *testing.T) {
	kb := NewKnowledgeBase()
	keys := kb.Keys()
	require.Len(t, keys, 20)
	assert.Equal(t, "apple", keys[0])
	for i := 1; i < len(keys); i++ {
		assert.Less(t, keys[i-1], keys[i])
	}
}
