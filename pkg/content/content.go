// Package content turns Discord messages into plain text for prompts.
package content

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// EmptyPlaceholder stands in for a message with nothing readable in it.
const EmptyPlaceholder = "[message with no readable content]"

var userMentionRe = regexp.MustCompile(`<@!?(\d+)>`)

// StripMention removes every <@id> and <@!id> token for userID.
func StripMention(text, userID string) string {
	if userID == "" {
		return strings.TrimSpace(text)
	}
	text = strings.ReplaceAll(text, "<@"+userID+">", "")
	text = strings.ReplaceAll(text, "<@!"+userID+">", "")
	return strings.TrimSpace(text)
}

// MentionedIDs returns the distinct user IDs mentioned in text, in order of
// first appearance.
func MentionedIDs(text string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, match := range userMentionRe.FindAllStringSubmatch(text, -1) {
		id := match[1]
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// HasMedia reports whether the message carries attachments or embeds.
func HasMedia(m *discordgo.Message) bool {
	return m != nil && (len(m.Attachments) > 0 || len(m.Embeds) > 0)
}

func IsImageAttachment(a *discordgo.MessageAttachment) bool {
	if a == nil {
		return false
	}
	if strings.HasPrefix(a.ContentType, "image/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(a.Filename)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

// ImageURLs lists image attachment URLs followed by embed image URLs.
func ImageURLs(m *discordgo.Message) []string {
	var urls []string
	for _, a := range m.Attachments {
		if IsImageAttachment(a) {
			urls = append(urls, a.URL)
		}
	}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		if e.Image != nil && e.Image.URL != "" {
			urls = append(urls, e.Image.URL)
		} else if e.Type == discordgo.EmbedTypeImage && e.URL != "" {
			urls = append(urls, e.URL)
		}
	}
	return urls
}

// Summarize flattens a message, including its rich parts, into text.
// It returns EmptyPlaceholder when nothing readable is found.
func Summarize(m *discordgo.Message) string {
	if m == nil {
		return EmptyPlaceholder
	}
	var parts []string
	add := func(format string, args ...any) {
		s := strings.TrimSpace(fmt.Sprintf(format, args...))
		if s != "" {
			parts = append(parts, s)
		}
	}

	if text := strings.TrimSpace(m.Content); text != "" {
		parts = append(parts, text)
	}

	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		if e.Author != nil && e.Author.Name != "" {
			add("Embed author: %s", e.Author.Name)
		}
		if e.Title != "" {
			add("Embed title: %s", e.Title)
		}
		if e.Description != "" {
			add("Embed description: %s", e.Description)
		}
		for _, f := range e.Fields {
			if f == nil {
				continue
			}
			add("%s: %s", f.Name, f.Value)
		}
		if e.Footer != nil && e.Footer.Text != "" {
			add("Embed footer: %s", e.Footer.Text)
		}
		if e.URL != "" {
			add("Embed URL: %s", e.URL)
		}
		if e.Image != nil && e.Image.URL != "" {
			add("Embed image: %s", e.Image.URL)
		}
	}

	for _, a := range m.Attachments {
		if a == nil {
			continue
		}
		if IsImageAttachment(a) {
			add("Image attachment: %s", a.Filename)
		} else {
			add("File attachment: %s", a.Filename)
		}
	}

	for _, label := range componentLabels(m.Components) {
		add("Component: %s", label)
	}

	for _, s := range m.StickerItems {
		if s != nil && s.Name != "" {
			add("Sticker: %s", s.Name)
		}
	}

	if len(parts) == 0 {
		return EmptyPlaceholder
	}
	return strings.Join(parts, "\n")
}

func componentLabels(components []discordgo.MessageComponent) []string {
	var labels []string
	for _, c := range components {
		switch v := c.(type) {
		case *discordgo.ActionsRow:
			labels = append(labels, componentLabels(v.Components)...)
		case *discordgo.Button:
			if v.Label != "" {
				labels = append(labels, v.Label)
			}
		case *discordgo.SelectMenu:
			if v.Placeholder != "" {
				labels = append(labels, v.Placeholder)
			}
		}
	}
	return labels
}
