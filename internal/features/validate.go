package features

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const (
	maxCategoryLength = 100
	maxNameLength     = 255
)

// Validate normalizes text fields to NFC and checks the field constraints.
// It returns the normalized copy that should be persisted.
func (n NewFeature) Validate() (NewFeature, error) {
	return n.validate(-1)
}

func (n NewFeature) validate(index int) (NewFeature, error) {
	out := NewFeature{
		Category:    norm.NFC.String(n.Category),
		Name:        norm.NFC.String(n.Name),
		Description: norm.NFC.String(n.Description),
	}
	fail := func(field, reason string) (NewFeature, error) {
		return NewFeature{}, &ValidationError{Index: index, Field: field, Reason: reason}
	}

	if blank(out.Category) {
		return fail("category", "must not be empty")
	}
	if utf8.RuneCountInString(out.Category) > maxCategoryLength {
		return fail("category", "must be at most 100 characters")
	}
	if blank(out.Name) {
		return fail("name", "must not be empty")
	}
	if utf8.RuneCountInString(out.Name) > maxNameLength {
		return fail("name", "must be at most 255 characters")
	}
	if blank(out.Description) {
		return fail("description", "must not be empty")
	}
	if len(n.Steps) == 0 {
		return fail("steps", "must contain at least one step")
	}
	out.Steps = make([]string, len(n.Steps))
	for i, step := range n.Steps {
		step = norm.NFC.String(step)
		if blank(step) {
			return fail("steps", "step "+strconv.Itoa(i)+" must not be empty")
		}
		out.Steps[i] = step
	}
	return out, nil
}

func validateAll(items []NewFeature) ([]NewFeature, error) {
	if len(items) == 0 {
		return nil, &ValidationError{Index: -1, Field: "features", Reason: "must contain at least one feature"}
	}
	out := make([]NewFeature, len(items))
	for i, item := range items {
		normalized, err := item.validate(i)
		if err != nil {
			return nil, err
		}
		out[i] = normalized
	}
	return out, nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
