// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// CommitRecord is a single normalized commit from an upstream repository.
// It is immutable once constructed from upstream data; SHA plus Repo form
// its natural identity.
type CommitRecord struct {
	SHA            string    `json:"sha"`
	Repo           string    `json:"repo"`
	HTMLURL        string    `json:"htmlUrl"`
	CommittedAt    time.Time `json:"committedAt"`
	MessageSubject string    `json:"messageSubject"`
	MessageBody    string    `json:"messageBody"`
}

// FetchOutcome is the result of paginating one repository's commit list.
// Truncated means the page budget ran out while more commits likely
// remained upstream; it is an approximation flag, not an error.
type FetchOutcome struct {
	Commits   []CommitRecord
	Truncated bool
}

// RepoFailure records a non-fatal per-repository fetch failure during an
// "all projects" aggregation. Status is zero when the failure was not an
// upstream HTTP error.
type RepoFailure struct {
	Repo    string `json:"repo"`
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
}

// DayRepoCount is one repository's commit count within a single day bucket.
type DayRepoCount struct {
	Repo  string `json:"repo"`
	Count int    `json:"count"`
}

// DailySummary buckets commits onto a viewer-local calendar day. TopRepos
// holds the top two contributing repositories by count and is empty when a
// single repository was selected.
type DailySummary struct {
	DayKey   string         `json:"dayKey"`
	Count    int            `json:"count"`
	TopRepos []DayRepoCount `json:"topRepos"`
}

// HeatmapScale carries intensity thresholds for the heatmap view, computed
// over the nonzero daily counts of the requested range.
type HeatmapScale struct {
	Q1         float64 `json:"q1"`
	Q2         float64 `json:"q2"`
	Q3         float64 `json:"q3"`
	MeanPerDay float64 `json:"meanPerDay"`
	MaxCount   int     `json:"maxCount"`
	BestDay    string  `json:"bestDay"`
}

// AggregatedResponse is the JSON payload for one aggregation request.
// Failures, Truncated and Authenticated are advisory out-of-band signals
// surfaced as response headers rather than body fields.
type AggregatedResponse struct {
	Commits        []CommitRecord `json:"commits"`
	TotalCommits   int            `json:"totalCommits"`
	DailySummaries []DailySummary `json:"dailySummaries"`
	HeatmapScale   *HeatmapScale  `json:"heatmapScale,omitempty"`
	Page           int            `json:"page"`
	PageSize       int            `json:"pageSize"`
	TotalPages     int            `json:"totalPages"`

	Failures      []RepoFailure `json:"-"`
	Truncated     bool          `json:"-"`
	Authenticated bool          `json:"-"`
}
