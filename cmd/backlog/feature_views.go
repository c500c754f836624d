package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"backlog/internal/api"
	"backlog/internal/features"
)

func renderFeaturePage(page features.ListPage) string {
	if len(page.Features) == 0 {
		return "No features found\n"
	}
	rows := make([][]string, 0, len(page.Features))
	for _, f := range page.Features {
		rows = append(rows, []string{
			strconv.FormatInt(f.ID, 10),
			strconv.FormatInt(f.Priority, 10),
			f.Category,
			f.Name,
			passLabel(f.Passes),
		})
	}
	var b strings.Builder
	b.WriteString(renderTable([]tableColumn{
		{header: "ID", align: alignRight},
		{header: "Priority", align: alignRight},
		{header: "Category"},
		{header: "Name", maxWidth: 48},
		{header: "Status"},
	}, rows))
	fmt.Fprintf(&b, "Showing %d of %d (offset %d)\n", len(page.Features), page.Total, page.Offset)
	return b.String()
}

func renderFeatureDetail(f *features.Feature) string {
	if f == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Feature %d: %s\n", f.ID, f.Name)
	fmt.Fprintf(&b, "  Category:    %s\n", f.Category)
	fmt.Fprintf(&b, "  Priority:    %d\n", f.Priority)
	fmt.Fprintf(&b, "  Status:      %s\n", passLabel(f.Passes))
	fmt.Fprintf(&b, "  Description: %s\n", f.Description)
	if len(f.Steps) > 0 {
		b.WriteString("  Steps:\n")
		for i, step := range f.Steps {
			fmt.Fprintf(&b, "    %d. %s\n", i+1, step)
		}
	}
	if !f.UpdatedAt.IsZero() {
		fmt.Fprintf(&b, "  Updated:     %s\n", f.UpdatedAt.Local().Format(time.DateTime))
	}
	return b.String()
}

func passLabel(passes bool) string {
	if passes {
		return "passing"
	}
	return "pending"
}

// parseImport accepts a bare array of features or a bulk request document and
// validates every entry before anything is sent.
func parseImport(data []byte) ([]features.NewFeature, error) {
	validator, err := api.NewValidator()
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal([]byte(trimmed), &items); err != nil {
			return nil, fmt.Errorf("parse import file: %w", err)
		}
		wrapped, err := json.Marshal(map[string]any{"features": items})
		if err != nil {
			return nil, err
		}
		data = wrapped
	}
	var req api.BulkCreateRequest
	if err := validator.Decode(api.SchemaBulkCreate, data, &req); err != nil {
		return nil, err
	}
	inputs := api.ToNewFeatures(req)
	for i := range inputs {
		if _, err := inputs[i].Validate(); err != nil {
			var ve *features.ValidationError
			if errors.As(err, &ve) {
				ve.Index = i
			}
			return nil, err
		}
	}
	return inputs, nil
}
