package conversation

import (
	"bytes"
	"encoding/json"

	"github.com/go-go-golems/basilisk/pkg/attachment"
)

// Equal compares two conversations by content. Attachments compare by kind,
// name and, for URL attachments, location; stored bytes are not read.
func Equal(a, b *Conversation) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Version != b.Version || !equalStringPtr(a.Title, b.Title) {
		return false
	}
	if len(a.Systems) != len(b.Systems) || len(a.Messages) != len(b.Messages) {
		return false
	}
	for i := range a.Systems {
		if a.Systems[i].Content != b.Systems[i].Content {
			return false
		}
	}
	for i := range a.Messages {
		if !equalBlock(a.Messages[i], b.Messages[i]) {
			return false
		}
	}
	return true
}

func equalBlock(a, b *MessageBlock) bool {
	if a.Model != b.Model || a.Stream != b.Stream {
		return false
	}
	if !equalIntPtr(a.SystemIndex, b.SystemIndex) || !equalIntPtr(a.MaxTokens, b.MaxTokens) {
		return false
	}
	if !equalFloatPtr(a.Temperature, b.Temperature) || !equalFloatPtr(a.TopP, b.TopP) {
		return false
	}
	return equalMessage(a.Request, b.Request) && equalMessage(a.Response, b.Response)
}

func equalMessage(a, b *Message) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Role != b.Role || a.Content != b.Content {
		return false
	}
	if len(a.Attachments) != len(b.Attachments) {
		return false
	}
	for i := range a.Attachments {
		if !equalAttachment(a.Attachments[i], b.Attachments[i]) {
			return false
		}
	}
	return equalCitations(a.Citations, b.Citations)
}

func equalAttachment(a, b *attachment.Attachment) bool {
	if a.Kind != b.Kind || a.Name != b.Name || a.Description != b.Description {
		return false
	}
	if a.Kind == attachment.KindURL {
		return a.Location == b.Location
	}
	return true
}

// citations compare through their JSON form since decoding turns every
// number into a float64.
func equalCitations(a, b []Citation) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
