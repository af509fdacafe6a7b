package models

import "time"

// MessageContent is what the classifier needs to know about an email.
type MessageContent struct {
	From       string
	Subject    string
	Body       string
	ReceivedOn time.Time
}

// BatchPage is one page of message IDs from the mail provider.
// An empty NextPageToken marks the last page.
type BatchPage struct {
	MessageIDs    []string
	NextPageToken string
}

// Last reports whether no further pages follow this one.
func (p BatchPage) Last() bool {
	return p.NextPageToken == ""
}
