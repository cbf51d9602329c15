package engine

import (
	"strings"

	"github.com/watchtower-eng/watchtower/automod/helpers"
)

// MessageRef identifies one message for enforcement purposes.
type MessageRef struct {
	GuildID   string `json:"guildId"`
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
}

type EmbedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Embed struct {
	Title        string       `json:"title,omitempty"`
	Description  string       `json:"description,omitempty"`
	Fields       []EmbedField `json:"fields,omitempty"`
	FooterText   string       `json:"footerText,omitempty"`
	AuthorName   string       `json:"authorName,omitempty"`
	ImageURL     string       `json:"imageUrl,omitempty"`
	ThumbnailURL string       `json:"thumbnailUrl,omitempty"`
}

type Attachment struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
}

// ThreadMeta is present when the message started or lives in a thread.
type ThreadMeta struct {
	ThreadID string `json:"threadId"`
	// true when the thread is a forum post and this message is its starter
	IsForumStarter bool `json:"isForumStarter,omitempty"`
	// milliseconds between thread creation and this message
	AgeAtMessageMS int64 `json:"ageAtMessageMs,omitempty"`
}

// ContentEvent is one user-authored message to be evaluated.
type ContentEvent struct {
	Ref          MessageRef   `json:"ref"`
	ActorID      string       `json:"actorId"`
	RoleIDs      []string     `json:"roleIds,omitempty"`
	Text         string       `json:"text"`
	Embeds       []Embed      `json:"embeds,omitempty"`
	Attachments  []Attachment `json:"attachments,omitempty"`
	IsBot        bool         `json:"isBot,omitempty"`
	IsWebhook    bool         `json:"isWebhook,omitempty"`
	ActorIsAdmin bool         `json:"actorIsAdmin,omitempty"`
	Thread       *ThreadMeta  `json:"thread,omitempty"`
}

// ExtractText concatenates the message body with all embedded text: title,
// description, field names and values, footer, and author.
func (evt *ContentEvent) ExtractText() string {
	var b strings.Builder
	b.WriteString(evt.Text)
	for _, embed := range evt.Embeds {
		if embed.Title != "" {
			b.WriteString("\n")
			b.WriteString(embed.Title)
		}
		if embed.Description != "" {
			b.WriteString("\n")
			b.WriteString(embed.Description)
		}
		for _, f := range embed.Fields {
			b.WriteString("\n")
			b.WriteString(f.Name)
			b.WriteString("\n")
			b.WriteString(f.Value)
		}
		if embed.FooterText != "" {
			b.WriteString("\n")
			b.WriteString(embed.FooterText)
		}
		if embed.AuthorName != "" {
			b.WriteString("\n")
			b.WriteString(embed.AuthorName)
		}
	}
	return b.String()
}

// ExtractImageURLs pulls attachment URLs with an image content type plus
// embed image and thumbnail URLs, de-duplicated in encounter order.
func (evt *ContentEvent) ExtractImageURLs() []string {
	var urls []string
	for _, att := range evt.Attachments {
		if att.URL != "" && strings.HasPrefix(att.ContentType, "image/") {
			urls = append(urls, att.URL)
		}
	}
	for _, embed := range evt.Embeds {
		if embed.ImageURL != "" {
			urls = append(urls, embed.ImageURL)
		}
		if embed.ThumbnailURL != "" {
			urls = append(urls, embed.ThumbnailURL)
		}
	}
	return helpers.DedupeStrings(urls)
}

// NicknameEvent is a member nickname change to be evaluated.
type NicknameEvent struct {
	GuildID      string   `json:"guildId"`
	ActorID      string   `json:"actorId"`
	Nickname     string   `json:"nickname"`
	RoleIDs      []string `json:"roleIds,omitempty"`
	ActorIsAdmin bool     `json:"actorIsAdmin,omitempty"`
}

// ThreadEvent is a newly created thread to be evaluated by title.
type ThreadEvent struct {
	GuildID  string `json:"guildId"`
	ThreadID string `json:"threadId"`
	OwnerID  string `json:"ownerId"`
	Title    string `json:"title"`
}
