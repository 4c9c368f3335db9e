package conversation

import (
	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/rs/zerolog"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant:
		return Role(s), nil
	default:
		return "", invalid("role", "unknown role %q", s)
	}
}

// Citation is an opaque provider citation record, kept as decoded JSON.
type Citation map[string]interface{}

// Message is a single chat message. A nil Citations slice means the
// provider returned no citation data.
type Message struct {
	Role        Role
	Content     string
	Attachments []*attachment.Attachment
	Citations   []Citation
}

type MessageOption func(*Message)

func WithAttachments(attachments ...*attachment.Attachment) MessageOption {
	return func(m *Message) {
		m.Attachments = append(m.Attachments, attachments...)
	}
}

func WithCitations(citations ...Citation) MessageOption {
	return func(m *Message) {
		if citations == nil {
			return
		}
		if m.Citations == nil {
			m.Citations = make([]Citation, 0, len(citations))
		}
		m.Citations = append(m.Citations, citations...)
	}
}

func NewMessage(role Role, content string, options ...MessageOption) (*Message, error) {
	m := &Message{Role: role, Content: content}
	for _, option := range options {
		option(m)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Message) Validate() error {
	if _, err := ParseRole(string(m.Role)); err != nil {
		return err
	}
	for i, a := range m.Attachments {
		if a == nil {
			return invalid("attachments", "attachment %d is nil", i)
		}
		if a.Location == "" {
			return invalid("attachments", "attachment %d has no location", i)
		}
	}
	return nil
}

func (m *Message) MarshalZerologObject(e *zerolog.Event) {
	e.Str("role", string(m.Role))
	e.Int("content_length", len(m.Content))
	if len(m.Attachments) > 0 {
		e.Int("attachments", len(m.Attachments))
	}
	if m.Citations != nil {
		e.Int("citations", len(m.Citations))
	}
}

// SystemMessage is a message with the system role and no attachments.
type SystemMessage struct {
	Message
}

func NewSystemMessage(content string) *SystemMessage {
	return &SystemMessage{Message: Message{Role: RoleSystem, Content: content}}
}

func (s *SystemMessage) Validate() error {
	if s.Role != RoleSystem {
		return invalid("system.role", "expected %q, got %q", RoleSystem, s.Role)
	}
	if len(s.Attachments) > 0 {
		return invalid("system.attachments", "system messages cannot carry attachments")
	}
	return nil
}
