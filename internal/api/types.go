package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Feature describes a backlog entry in a transport-friendly format.
type Feature struct {
	ID          int64    `json:"id"`
	Priority    int64    `json:"priority"`
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
	Passes      bool     `json:"passes"`
	CreatedAt   string   `json:"created_at,omitempty"`
	UpdatedAt   string   `json:"updated_at,omitempty"`
}

// FeatureCreate is the body of POST /features.
type FeatureCreate struct {
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
}

// BulkCreateRequest is the body of POST /features/bulk.
type BulkCreateRequest struct {
	Features []FeatureCreate `json:"features"`
}

// BulkCreateResponse reports how many features a bulk create inserted.
type BulkCreateResponse struct {
	Created int `json:"created"`
}

// StatusUpdate is the body of PATCH /features/{id}.
type StatusUpdate struct {
	Passes bool `json:"passes"`
}

// FeatureListResponse is one page of features.
type FeatureListResponse struct {
	Features []Feature `json:"features"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// StatsResponse summarizes completion.
type StatsResponse struct {
	Passing    int     `json:"passing"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// PassingFeature is the minimal projection of a passing feature.
type PassingFeature struct {
	ID       int64  `json:"id"`
	Category string `json:"category"`
	Name     string `json:"name"`
}

// AllPassingResponse lists every passing feature.
type AllPassingResponse struct {
	Features []PassingFeature `json:"features"`
	Count    int              `json:"count"`
}

// SkipResponse reports a skip.
type SkipResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	OldPriority int64  `json:"old_priority"`
	NewPriority int64  `json:"new_priority"`
	Message     string `json:"message"`
}

// HealthResponse reports daemon and database health.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// ProgressCheckResponse reports one progress cycle.
type ProgressCheckResponse struct {
	Outcome         string  `json:"outcome"`
	Passing         int     `json:"passing"`
	Total           int     `json:"total"`
	PreviousPassing int     `json:"previous_passing"`
	NewIDs          []int64 `json:"new_ids"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
