package services

import (
	"strconv"
	"strings"

	"github.com/studymaterials/backend/internal/models"
)

// ValidateFilterKey checks that the key names a known category and kind,
// and that the class, when present, is permitted for the category
func ValidateFilterKey(key models.FilterKey) error {
	if !key.Category.IsValid() {
		return newValidationError("category", "unknown category %q", key.Category)
	}
	if !key.Kind.IsValid() {
		return newValidationError("type", "unknown material type %q", key.Kind)
	}
	if key.Class != nil && !key.Category.AllowsClass(*key.Class) {
		return newValidationError("class", "class %d is not available for %s", *key.Class, key.Category)
	}
	return nil
}

// ParseFilterKey builds a validated filter key from raw query values.
// An empty class means no class filter.
func ParseFilterKey(category, kind, class string) (models.FilterKey, error) {
	key := models.FilterKey{
		Category: models.Category(strings.ToLower(strings.TrimSpace(category))),
		Kind:     models.MaterialKind(strings.ToLower(strings.TrimSpace(kind))),
	}

	if class = strings.TrimSpace(class); class != "" {
		n, err := strconv.Atoi(class)
		if err != nil {
			return models.FilterKey{}, newValidationError("class", "class must be a number")
		}
		key.Class = &n
	}

	if err := ValidateFilterKey(key); err != nil {
		return models.FilterKey{}, err
	}
	return key, nil
}

// parseOptionalPositive parses an optional positive integer form field
func parseOptionalPositive(field, value string) (*int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return nil, newValidationError(field, "%s must be a positive number", field)
	}
	return &n, nil
}
