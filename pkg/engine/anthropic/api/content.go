package api

import (
	"github.com/rs/zerolog"
)

type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeImage    ContentType = "image"
	ContentTypeDocument ContentType = "document"
)

type Content interface {
	Type() ContentType
}

type BaseContent struct {
	Type_ ContentType `json:"type"`
}

type TextContent struct {
	BaseContent
	Text string `json:"text"`
}

func (t TextContent) Type() ContentType {
	return ContentTypeText
}

// Source is where image or document bytes come from: inline base64, inline
// text or a URL.
type Source struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`
	URL       string `json:"url,omitempty"`
}

const (
	SourceBase64 = "base64"
	SourceText   = "text"
	SourceURL    = "url"
)

type ImageContent struct {
	BaseContent
	Source Source `json:"source"`
}

func (i ImageContent) Type() ContentType {
	return ContentTypeImage
}

type CitationsConfig struct {
	Enabled bool `json:"enabled"`
}

type DocumentContent struct {
	BaseContent
	Source    Source           `json:"source"`
	Title     string           `json:"title,omitempty"`
	Context   string           `json:"context,omitempty"`
	Citations *CitationsConfig `json:"citations,omitempty"`
}

func (d DocumentContent) Type() ContentType {
	return ContentTypeDocument
}

func NewTextContent(text string) Content {
	return TextContent{BaseContent: BaseContent{Type_: ContentTypeText}, Text: text}
}

func NewImageContent(source Source) Content {
	return ImageContent{BaseContent: BaseContent{Type_: ContentTypeImage}, Source: source}
}

func NewDocumentContent(source Source, title string, citations bool) Content {
	d := DocumentContent{
		BaseContent: BaseContent{Type_: ContentTypeDocument},
		Source:      source,
		Title:       title,
	}
	if citations {
		d.Citations = &CitationsConfig{Enabled: true}
	}
	return d
}

type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

// ResponseContent is a content block of an answer. Citations are kept as
// decoded JSON.
type ResponseContent struct {
	Type      ContentType              `json:"type"`
	Text      string                   `json:"text,omitempty"`
	Citations []map[string]interface{} `json:"citations,omitempty"`
}

func (c ResponseContent) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", string(c.Type))
	if c.Text != "" {
		e.Int("text_length", len(c.Text))
	}
	if len(c.Citations) > 0 {
		e.Int("citations", len(c.Citations))
	}
}
