package gmail

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	"github.com/xaenox/jobmail/internal/models"
	"golang.org/x/net/html"
	gm "google.golang.org/api/gmail/v1"
)

const (
	defaultSubject = "No Subject"
	defaultSender  = "Unknown Sender"
)

// Extract derives sender, subject, date and a plain-text body from a message
// fetched with format=full. It never fails: whatever cannot be read falls back
// to the placeholders or the provider snippet.
func Extract(msg *gm.Message) models.MessageContent {
	content := models.MessageContent{
		From:    defaultSender,
		Subject: defaultSubject,
	}
	if msg == nil {
		return content
	}

	var dateHeader string
	if msg.Payload != nil {
		content.Subject = headerValue(msg.Payload.Headers, "Subject", defaultSubject)
		content.From = headerValue(msg.Payload.Headers, "From", defaultSender)
		dateHeader = headerValue(msg.Payload.Headers, "Date", "")
		content.Body = bodyText(msg.Payload)
	}
	if content.Body == "" {
		content.Body = msg.Snippet
	}
	content.ReceivedOn = receivedOn(msg.InternalDate, dateHeader)

	return content
}

// headerValue returns the first header whose name matches exactly.
func headerValue(headers []*gm.MessagePartHeader, name, fallback string) string {
	for _, h := range headers {
		if h != nil && h.Name == name {
			return h.Value
		}
	}
	return fallback
}

func receivedOn(internalDate int64, dateHeader string) time.Time {
	if internalDate > 0 {
		return time.UnixMilli(internalDate).UTC()
	}
	if dateHeader != "" {
		if t, err := mail.ParseDate(dateHeader); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// bodyText prefers a plain-text part anywhere in the tree and only then
// falls back to the first HTML part with its markup removed. A message that
// is a single text/html payload is stripped too rather than left to the
// snippet, since the snippet is truncated by Gmail.
func bodyText(payload *gm.MessagePart) string {
	if text, ok := findPart(payload, "text/plain"); ok {
		return text
	}
	if markup, ok := findPart(payload, "text/html"); ok {
		return stripTags(markup)
	}
	return ""
}

// findPart walks the MIME tree depth-first and returns the decoded data of
// the first part with the given type.
func findPart(part *gm.MessagePart, mimeType string) (string, bool) {
	if part == nil {
		return "", false
	}
	if strings.EqualFold(part.MimeType, mimeType) {
		if data, ok := decodeBody(part.Body); ok {
			return data, true
		}
	}
	if !strings.HasPrefix(strings.ToLower(part.MimeType), "multipart/") {
		return "", false
	}
	for _, sub := range part.Parts {
		if data, ok := findPart(sub, mimeType); ok {
			return data, true
		}
	}
	return "", false
}

func decodeBody(body *gm.MessagePartBody) (string, bool) {
	if body == nil || body.Data == "" {
		return "", false
	}
	for _, enc := range []*base64.Encoding{base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(body.Data); err == nil {
			return string(data), true
		}
	}
	return "", false
}

// stripTags keeps only the visible text of an HTML document. Script and
// style contents are dropped.
func stripTags(markup string) string {
	z := html.NewTokenizer(strings.NewReader(markup))
	var b strings.Builder
	hidden := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or malformed input; either way the text so far is all there is.
			return b.String()
		case html.StartTagToken:
			if isHiddenTag(z) {
				hidden++
			}
		case html.EndTagToken:
			if isHiddenTag(z) && hidden > 0 {
				hidden--
			}
		case html.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}
		}
	}
}

func isHiddenTag(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style":
		return true
	}
	return false
}
