package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xaenox/jobmail/internal/models"
)

var (
	ErrEmptyResponse    = errors.New("empty model response")
	ErrMalformedVerdict = errors.New("malformed classification")
)

// An object with none of the verdict fields, "{}" included, is malformed and
// goes to the keyword fallback; it is not read as "not job related".

var verdictFields = []string{
	"is_related_to_job", "is_automated", "snippet", "category", "source_platform",
	"job_title", "company", "location", "is_international",
}

// Verdict is a validated model answer.
type Verdict struct {
	IsJobRelated    bool
	IsAutomated     bool
	Snippet         *string
	Category        models.Category
	SourcePlatform  *string
	JobTitle        *string
	Company         *string
	Location        *string
	IsInternational bool
}

// ParseVerdict decodes the model reply. The reply is untrusted: every field
// is coerced onto the expected shape and unknown categories become "other".
// snippetMax limits the snippet length in runes; zero means no limit.
func ParseVerdict(reply string, snippetMax int) (Verdict, error) {
	cleaned := stripCodeFence(reply)
	if cleaned == "" {
		return Verdict{}, ErrEmptyResponse
	}

	var raw any
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	fields, ok := raw.(map[string]any)
	if !ok {
		return Verdict{}, fmt.Errorf("%w: expected a JSON object, got %T", ErrMalformedVerdict, raw)
	}
	if !hasAnyField(fields) {
		return Verdict{}, fmt.Errorf("%w: no classification fields", ErrMalformedVerdict)
	}

	category, _ := fields["category"].(string)
	return Verdict{
		IsJobRelated:    truthy(fields["is_related_to_job"]),
		IsAutomated:     truthy(fields["is_automated"]),
		Snippet:         truncate(optionalString(fields["snippet"]), snippetMax),
		Category:        models.ParseCategory(category),
		SourcePlatform:  optionalString(fields["source_platform"]),
		JobTitle:        optionalString(fields["job_title"]),
		Company:         optionalString(fields["company"]),
		Location:        optionalString(fields["location"]),
		IsInternational: truthy(fields["is_international"]),
	}, nil
}

// Result stamps the verdict with its message identity.
func (v Verdict) Result(messageID string, receivedOn time.Time) models.ClassificationResult {
	return models.ClassificationResult{
		MessageID:       messageID,
		IsJobRelated:    v.IsJobRelated,
		IsAutomated:     v.IsAutomated,
		Snippet:         v.Snippet,
		Category:        v.Category,
		SourcePlatform:  v.SourcePlatform,
		JobTitle:        v.JobTitle,
		Company:         v.Company,
		Location:        v.Location,
		IsInternational: v.IsInternational,
		ReceivedOn:      receivedOn,
	}
}

func hasAnyField(fields map[string]any) bool {
	for _, name := range verdictFields {
		if _, ok := fields[name]; ok {
			return true
		}
	}
	return false
}

// stripCodeFence removes a surrounding Markdown code fence such as ```json ... ```.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[\"") {
		s = s[i+1:]
	} else if i < 0 {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// truthy follows the loose boolean rules models tend to need: false, 0, "",
// null are false and everything else is true.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}

func optionalString(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case float64:
		if t == 0 {
			return nil
		}
		s = fmt.Sprint(t)
	default:
		return nil
	}
	if s == "" {
		return nil
	}
	return &s
}

func truncate(s *string, max int) *string {
	if s == nil || max <= 0 {
		return s
	}
	out := truncateRunes(*s, max)
	return &out
}
