package utils

import "strings"

// NormalizeDescription canonicalizes a free-text food description the way
// knowledge-base and cache keys are stored: lowercase, trimmed, internal
// whitespace collapsed to single underscores.
func NormalizeDescription(s string) string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))
	return strings.Join(fields, "_")
}

// Spaced undoes the underscore joining for display and text-similarity
// scoring, where word boundaries matter.
func Spaced(normalized string) string {
	return strings.ReplaceAll(normalized, "_", " ")
}
