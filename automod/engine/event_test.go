package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	evt := &ContentEvent{
		Text: "check this out",
		Embeds: []Embed{
			{
				Title:       "Big Announcement",
				Description: "details inside",
				Fields: []EmbedField{
					{Name: "when", Value: "tomorrow"},
				},
				FooterText: "posted by a fan",
				AuthorName: "someone",
			},
		},
	}

	text := evt.ExtractText()
	assert.Equal(t, "check this out\nBig Announcement\ndetails inside\nwhen\ntomorrow\nposted by a fan\nsomeone", text)
}

func TestExtractTextBodyOnly(t *testing.T) {
	evt := &ContentEvent{Text: "just words"}
	assert.Equal(t, "just words", evt.ExtractText())
}

func TestExtractImageURLs(t *testing.T) {
	evt := &ContentEvent{
		Attachments: []Attachment{
			{URL: "https://cdn.example.com/a.png", ContentType: "image/png"},
			{URL: "https://cdn.example.com/doc.pdf", ContentType: "application/pdf"},
			{URL: "https://cdn.example.com/b.jpg", ContentType: "image/jpeg"},
		},
		Embeds: []Embed{
			{ImageURL: "https://cdn.example.com/a.png", ThumbnailURL: "https://cdn.example.com/thumb.png"},
		},
	}

	urls := evt.ExtractImageURLs()
	assert.Equal(t, []string{
		"https://cdn.example.com/a.png",
		"https://cdn.example.com/b.jpg",
		"https://cdn.example.com/thumb.png",
	}, urls)
}

func TestExtractImageURLsEmpty(t *testing.T) {
	evt := &ContentEvent{Text: "no media here"}
	assert.Empty(t, evt.ExtractImageURLs())
}

func TestFormatViolationReasons(t *testing.T) {
	out := FormatViolationReasons(map[string]float64{
		"harassment": 0.95,
		"hate":       0.821,
	})
	assert.Equal(t, "harassment (95.0%); hate (82.1%)", out)

	assert.Equal(t, "", FormatViolationReasons(nil))
}
