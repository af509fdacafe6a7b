package models

// RunSummary aggregates the outcome of one pipeline run.
type RunSummary struct {
	RunID          string `json:"run_id"`
	Estimate       int    `json:"estimate"`
	ProcessedCount int    `json:"processed_count"`
	InsertedCount  int    `json:"inserted_count"`
	FallbackCount  int    `json:"fallback_count"`
	SkippedCount   int    `json:"skipped_count"`
	Batches        int    `json:"batches"`
	LastPageToken  string `json:"last_page_token,omitempty"`
}
