package api

import (
	"fmt"

	"backlog/internal/features"
	"backlog/internal/progress"
)

// FromFeature converts a domain feature to its API representation.
func FromFeature(f *features.Feature) Feature {
	if f == nil {
		return Feature{}
	}
	steps := f.Steps
	if steps == nil {
		steps = []string{}
	}
	dto := Feature{
		ID:          f.ID,
		Priority:    f.Priority,
		Category:    f.Category,
		Name:        f.Name,
		Description: f.Description,
		Steps:       steps,
		Passes:      f.Passes,
	}
	if !f.CreatedAt.IsZero() {
		dto.CreatedAt = f.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !f.UpdatedAt.IsZero() {
		dto.UpdatedAt = f.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromFeatures converts a slice of features. The result is never nil so it
// encodes as [].
func FromFeatures(items []features.Feature) []Feature {
	out := make([]Feature, 0, len(items))
	for i := range items {
		out = append(out, FromFeature(&items[i]))
	}
	return out
}

// FromListPage converts a page of List results.
func FromListPage(page features.ListPage) FeatureListResponse {
	return FeatureListResponse{
		Features: FromFeatures(page.Features),
		Total:    page.Total,
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
}

// ToFeature converts an API feature back into the domain type. Timestamps
// that fail to parse are left zero.
func ToFeature(dto Feature) *features.Feature {
	f := &features.Feature{
		ID:          dto.ID,
		Priority:    dto.Priority,
		Category:    dto.Category,
		Name:        dto.Name,
		Description: dto.Description,
		Steps:       dto.Steps,
		Passes:      dto.Passes,
	}
	f.CreatedAt = parseTimestamp(dto.CreatedAt)
	f.UpdatedAt = parseTimestamp(dto.UpdatedAt)
	return f
}

// ToNewFeature converts a create request into the domain input.
func ToNewFeature(req FeatureCreate) features.NewFeature {
	return features.NewFeature{
		Category:    req.Category,
		Name:        req.Name,
		Description: req.Description,
		Steps:       req.Steps,
	}
}

// ToNewFeatures converts a bulk request.
func ToNewFeatures(req BulkCreateRequest) []features.NewFeature {
	out := make([]features.NewFeature, 0, len(req.Features))
	for _, item := range req.Features {
		out = append(out, ToNewFeature(item))
	}
	return out
}

// FromNewFeature builds a create request from domain input.
func FromNewFeature(in features.NewFeature) FeatureCreate {
	return FeatureCreate{
		Category:    in.Category,
		Name:        in.Name,
		Description: in.Description,
		Steps:       in.Steps,
	}
}

// FromStats converts completion stats.
func FromStats(s features.Stats) StatsResponse {
	return StatsResponse{Passing: s.Passing, Total: s.Total, Percentage: s.Percentage}
}

// FromPassingSet converts the passing projection.
func FromPassingSet(items []features.PassingFeature) AllPassingResponse {
	out := make([]PassingFeature, 0, len(items))
	for _, p := range items {
		out = append(out, PassingFeature{ID: p.ID, Category: p.Category, Name: p.Name})
	}
	return AllPassingResponse{Features: out, Count: len(out)}
}

// ToPassingSet converts the passing projection back into domain values.
func ToPassingSet(resp AllPassingResponse) []features.PassingFeature {
	out := make([]features.PassingFeature, 0, len(resp.Features))
	for _, p := range resp.Features {
		out = append(out, features.PassingFeature{ID: p.ID, Category: p.Category, Name: p.Name})
	}
	return out
}

// FromSkipResult converts a skip outcome and renders its message.
func FromSkipResult(r features.SkipResult) SkipResponse {
	return SkipResponse{
		ID:          r.ID,
		Name:        r.Name,
		OldPriority: r.OldPriority,
		NewPriority: r.NewPriority,
		Message:     fmt.Sprintf("Feature '%s' moved to end of queue", r.Name),
	}
}

// FromProgressResult converts a progress cycle result.
func FromProgressResult(r progress.Result) ProgressCheckResponse {
	ids := r.NewIDs
	if ids == nil {
		ids = []int64{}
	}
	return ProgressCheckResponse{
		Outcome:         string(r.Outcome),
		Passing:         r.Passing,
		Total:           r.Total,
		PreviousPassing: r.Previous,
		NewIDs:          ids,
	}
}
