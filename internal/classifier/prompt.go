package classifier

import (
	"fmt"

	"github.com/xaenox/jobmail/internal/models"
)

const systemPromptTemplate = `You are an AI email classifier.

Analyze the email and respond ONLY with a JSON object in this format:
{
  "is_related_to_job": boolean,
  "is_automated": boolean,
  "snippet": string|null,
  "category": "rejection" | "interview" | "application" | "offer" | "followup" | "alert" | "other",
  "source_platform": string|null,
  "job_title": string|null,
  "company": string|null,
  "location": string|null,
  "is_international": boolean
}

Rules:
- Categories:
   - alert = multiple job listings, recommendations, alerts (LinkedIn, Indeed, etc.)
   - application = confirmation of YOUR submitted application
   - rejection = not moving forward, regret, unfortunately
   - interview = interview invite/schedule
   - offer = job offer or selection
   - followup = checking status, asking for info
   - other = everything else
- is_automated = noreply@, bulk alerts, system notifications
- source_platform = LinkedIn, Indeed, ZipRecruiter, or company domain
- is_international = true if company/job is outside %s
- snippet = one short sentence summary
- If info not found, set field to null
- No extra text, Markdown, or explanation. JSON only`

func systemPrompt(homeRegion string) string {
	return fmt.Sprintf(systemPromptTemplate, homeRegion)
}

func userPrompt(content models.MessageContent, maxBody int) string {
	return fmt.Sprintf("FROM: %s\nSUBJECT: %s\nCONTENT: %q", content.From, content.Subject, truncateRunes(content.Body, maxBody))
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
