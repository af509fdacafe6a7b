package gmail

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	gm "google.golang.org/api/gmail/v1"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func headers(kv ...string) []*gm.MessagePartHeader {
	var hs []*gm.MessagePartHeader
	for i := 0; i+1 < len(kv); i += 2 {
		hs = append(hs, &gm.MessagePartHeader{Name: kv[i], Value: kv[i+1]})
	}
	return hs
}

func TestExtractHeaders(t *testing.T) {
	t.Run("reads subject and from", func(t *testing.T) {
		msg := &gm.Message{Payload: &gm.MessagePart{
			MimeType: "text/plain",
			Headers:  headers("From", "Acme Careers <careers@acme.io>", "Subject", "Your application"),
			Body:     &gm.MessagePartBody{Data: b64("hello")},
		}}

		content := Extract(msg)
		assert.Equal(t, "Acme Careers <careers@acme.io>", content.From)
		assert.Equal(t, "Your application", content.Subject)
	})

	t.Run("defaults when headers are missing", func(t *testing.T) {
		content := Extract(&gm.Message{Snippet: "snip", Payload: &gm.MessagePart{MimeType: "text/plain"}})
		assert.Equal(t, "Unknown Sender", content.From)
		assert.Equal(t, "No Subject", content.Subject)
	})

	t.Run("header names are case sensitive", func(t *testing.T) {
		msg := &gm.Message{Payload: &gm.MessagePart{Headers: headers("subject", "lower", "FROM", "upper")}}
		content := Extract(msg)
		assert.Equal(t, "No Subject", content.Subject)
		assert.Equal(t, "Unknown Sender", content.From)
	})

	t.Run("nil message", func(t *testing.T) {
		content := Extract(nil)
		assert.Equal(t, "Unknown Sender", content.From)
		assert.Equal(t, "", content.Body)
	})
}

func TestExtractBody(t *testing.T) {
	tests := []struct {
		name string
		msg  *gm.Message
		want string
	}{
		{
			name: "singular plain text",
			msg: &gm.Message{Payload: &gm.MessagePart{
				MimeType: "text/plain",
				Body:     &gm.MessagePartBody{Data: b64("We regret to inform you")},
			}},
			want: "We regret to inform you",
		},
		{
			name: "unpadded base64",
			msg: &gm.Message{Payload: &gm.MessagePart{
				MimeType: "text/plain",
				Body:     &gm.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("ab"))},
			}},
			want: "ab",
		},
		{
			name: "multipart prefers plain text",
			msg: &gm.Message{Payload: &gm.MessagePart{
				MimeType: "multipart/alternative",
				Parts: []*gm.MessagePart{
					{MimeType: "text/html", Body: &gm.MessagePartBody{Data: b64("<p>html</p>")}},
					{MimeType: "text/plain", Body: &gm.MessagePartBody{Data: b64("plain")}},
				},
			}},
			want: "plain",
		},
		{
			name: "multipart html only is stripped",
			msg: &gm.Message{Payload: &gm.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gm.MessagePart{
					{MimeType: "text/html", Body: &gm.MessagePartBody{Data: b64(`<div class="x"><b>Interview</b> on <i>Monday</i></div>`)}},
				},
			}},
			want: "Interview on Monday",
		},
		{
			name: "singular html payload is stripped instead of using snippet",
			msg: &gm.Message{Snippet: "short snippet", Payload: &gm.MessagePart{
				MimeType: "text/html",
				Body:     &gm.MessagePartBody{Data: b64("<p>Offer letter attached</p>")},
			}},
			want: "Offer letter attached",
		},
		{
			name: "nested multipart",
			msg: &gm.Message{Payload: &gm.MessagePart{
				MimeType: "multipart/mixed",
				Parts: []*gm.MessagePart{
					{MimeType: "multipart/alternative", Parts: []*gm.MessagePart{
						{MimeType: "text/plain", Body: &gm.MessagePartBody{Data: b64("nested plain")}},
					}},
					{MimeType: "application/pdf", Filename: "cv.pdf", Body: &gm.MessagePartBody{AttachmentId: "att"}},
				},
			}},
			want: "nested plain",
		},
		{
			name: "falls back to snippet without parts",
			msg: &gm.Message{Snippet: "short snippet", Payload: &gm.MessagePart{
				MimeType: "multipart/alternative",
			}},
			want: "short snippet",
		},
		{
			name: "falls back to snippet on undecodable data",
			msg: &gm.Message{Snippet: "short snippet", Payload: &gm.MessagePart{
				MimeType: "text/plain",
				Body:     &gm.MessagePartBody{Data: "!!!not base64!!!"},
			}},
			want: "short snippet",
		},
		{
			name: "falls back to snippet without payload",
			msg:  &gm.Message{Snippet: "only snippet"},
			want: "only snippet",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.msg).Body)
		})
	}
}

func TestExtractReceivedOn(t *testing.T) {
	t.Run("uses internal date", func(t *testing.T) {
		ts := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
		content := Extract(&gm.Message{InternalDate: ts.UnixMilli()})
		assert.True(t, ts.Equal(content.ReceivedOn))
	})

	t.Run("falls back to date header", func(t *testing.T) {
		msg := &gm.Message{Payload: &gm.MessagePart{Headers: headers("Date", "Tue, 4 Feb 2025 09:30:00 +0000")}}
		content := Extract(msg)
		assert.Equal(t, time.Date(2025, 2, 4, 9, 30, 0, 0, time.UTC), content.ReceivedOn)
	})

	t.Run("zero when unknown", func(t *testing.T) {
		assert.True(t, Extract(&gm.Message{}).ReceivedOn.IsZero())
	})
}

func TestStripTags(t *testing.T) {
	assert.Equal(t, "Hello world", stripTags("<html><body><p>Hello <a href='x'>world</a></p></body></html>"))
	assert.Equal(t, "Hi there", stripTags(`<html><head><style>p { color: red; }</style>`+
		`<script type="text/javascript">var x = "<b>no</b>";</script></head>`+
		`<body><p>Hi <b>there</b></p></body></html>`))
	assert.Equal(t, "no markup", stripTags("no markup"))
	assert.Equal(t, "", stripTags(""))
}
