package models

import (
	"strings"
	"time"
)

// Category is the sub-classification of a job-related email.
type Category string

const (
	CategoryRejection   Category = "rejection"
	CategoryInterview   Category = "interview"
	CategoryApplication Category = "application"
	CategoryOffer       Category = "offer"
	CategoryFollowup    Category = "followup"
	CategoryAlert       Category = "alert"
	CategoryOther       Category = "other"
)

// Categories lists every valid category.
var Categories = []Category{
	CategoryRejection,
	CategoryInterview,
	CategoryApplication,
	CategoryOffer,
	CategoryFollowup,
	CategoryAlert,
	CategoryOther,
}

// ParseCategory maps free text onto the closed category set.
// Anything unrecognised becomes CategoryOther.
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if c.Valid() {
		return c
	}
	return CategoryOther
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ClassificationResult is the analysis of a single email and the unit stored
// in the job_emails table.
type ClassificationResult struct {
	MessageID       string    `json:"message_id"`
	IsJobRelated    bool      `json:"is_related_to_job"`
	IsAutomated     bool      `json:"is_automated"`
	Snippet         *string   `json:"snippet"`
	Category        Category  `json:"category"`
	SourcePlatform  *string   `json:"source_platform"`
	JobTitle        *string   `json:"job_title"`
	Company         *string   `json:"company"`
	Location        *string   `json:"location"`
	IsInternational bool      `json:"is_international"`
	ReceivedOn      time.Time `json:"mail_received_on"`

	// Fallback is set when the keyword heuristic produced the result.
	Fallback bool `json:"-"`
}

// ReceivedDate renders ReceivedOn as a calendar date, or nil when unknown.
func (r ClassificationResult) ReceivedDate() *string {
	if r.ReceivedOn.IsZero() {
		return nil
	}
	d := r.ReceivedOn.UTC().Format(time.DateOnly)
	return &d
}
