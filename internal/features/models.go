package features

import (
	"math"
	"time"
)

// MaxListLimit caps the page size returned by List.
const MaxListLimit = 5

// Feature is one unit of work in the backlog.
type Feature struct {
	ID          int64
	Priority    int64
	Category    string
	Name        string
	Description string
	Steps       []string
	Passes      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Label renders the feature the way notifications list completed work.
func (f Feature) Label() string {
	return Label(f.Category, f.Name)
}

// NewFeature is the caller-supplied part of a feature.
type NewFeature struct {
	Category    string
	Name        string
	Description string
	Steps       []string
}

// PassingFeature is the minimal projection returned by PassingSet.
type PassingFeature struct {
	ID       int64
	Category string
	Name     string
}

// Label renders "category name", or just the name when category is empty.
func (p PassingFeature) Label() string {
	return Label(p.Category, p.Name)
}

// Label joins category and name for display.
func Label(category, name string) string {
	if category == "" {
		return name
	}
	return category + " " + name
}

// Stats summarizes completion.
type Stats struct {
	Passing    int
	Total      int
	Percentage float64
}

// NewStats computes the percentage rounded to one decimal place.
func NewStats(passing, total int) Stats {
	return Stats{Passing: passing, Total: total, Percentage: Percentage(passing, total)}
}

// Percentage returns 100*passing/total rounded to one decimal place, halves
// to even, or 0 when total is 0.
func Percentage(passing, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.RoundToEven(float64(passing)*1000/float64(total)) / 10
}

// ListQuery filters and pages List results. Zero values mean "no filter".
type ListQuery struct {
	Passes   *bool
	Category string
	Limit    int
	Offset   int
	Random   bool
}

// ListPage is one page of List results. Limit and Offset echo the values
// actually applied after clamping.
type ListPage struct {
	Features []Feature
	Total    int
	Limit    int
	Offset   int
}

// SkipResult reports a priority move.
type SkipResult struct {
	ID          int64
	Name        string
	OldPriority int64
	NewPriority int64
}
