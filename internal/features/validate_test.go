package features_test

import (
	"errors"
	"strings"
	"testing"

	"backlog/internal/features"
)

func TestValidateRejectsBadInput(t *testing.T) {
	valid := features.NewFeature{Category: "c", Name: "n", Description: "d", Steps: []string{"s"}}

	cases := []struct {
		name   string
		mutate func(*features.NewFeature)
		field  string
	}{
		{"empty category", func(f *features.NewFeature) { f.Category = "" }, "category"},
		{"blank name", func(f *features.NewFeature) { f.Name = "   " }, "name"},
		{"long category", func(f *features.NewFeature) { f.Category = strings.Repeat("a", 101) }, "category"},
		{"long name", func(f *features.NewFeature) { f.Name = strings.Repeat("b", 256) }, "name"},
		{"empty description", func(f *features.NewFeature) { f.Description = "" }, "description"},
		{"no steps", func(f *features.NewFeature) { f.Steps = nil }, "steps"},
		{"empty step", func(f *features.NewFeature) { f.Steps = []string{"ok", ""} }, "steps"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := valid
			input.Steps = append([]string(nil), valid.Steps...)
			tc.mutate(&input)
			_, err := input.Validate()
			if !errors.Is(err, features.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			var verr *features.ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field || verr.Index != -1 {
				t.Fatalf("unexpected validation error: %#v", verr)
			}
		})
	}
}

func TestValidateCountsCharactersAfterNFC(t *testing.T) {
	// "e" followed by a combining acute accent composes to one rune.
	decomposed := strings.Repeat("e\u0301", 100)
	input := features.NewFeature{Category: decomposed, Name: "n", Description: "d", Steps: []string{"s"}}
	out, err := input.Validate()
	if err != nil {
		t.Fatalf("expected 100 composed characters to pass, got %v", err)
	}
	if out.Category != strings.Repeat("\u00e9", 100) {
		t.Fatal("expected category normalized to NFC")
	}

	input.Name = strings.Repeat("\u00e9", 255)
	if _, err := input.Validate(); err != nil {
		t.Fatalf("255 multibyte characters should pass: %v", err)
	}
	input.Name = strings.Repeat("\u00e9", 256)
	if _, err := input.Validate(); err == nil {
		t.Fatal("256 characters should fail")
	}
}

func TestValidationErrorMessageNamesIndex(t *testing.T) {
	err := &features.ValidationError{Index: 3, Field: "name", Reason: "must not be empty"}
	if err.Error() != "features[3].name: must not be empty" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}
