package conversation

import (
	"github.com/rs/zerolog/log"
)

const (
	CurrentVersion      = 2
	MinSupportedVersion = 0
)

// TitlePrompt is the request used to ask a model for a conversation title.
const TitlePrompt = "Generate a concise, relevant title in the conversation's main language based on the topics and context. Max 70 characters. Do not surround the text with quotation marks."

// Conversation is an ordered list of message blocks plus the deduplicated
// system prompts they reference. It is not safe for concurrent mutation.
type Conversation struct {
	Messages []*MessageBlock
	Systems  []*SystemMessage
	Title    *string
	Version  int
}

func New() *Conversation {
	return &Conversation{
		Messages: []*MessageBlock{},
		Systems:  []*SystemMessage{},
		Version:  CurrentVersion,
	}
}

func (c *Conversation) SetTitle(title string) {
	c.Title = &title
}

// AddBlock appends block, registering system unless a system with the same
// content is already present.
func (c *Conversation) AddBlock(block *MessageBlock, system *SystemMessage) error {
	if block == nil {
		return invalid("block", "block is nil")
	}
	if err := block.Validate(); err != nil {
		return err
	}

	block.SystemIndex = nil
	if system != nil {
		if err := system.Validate(); err != nil {
			return err
		}
		idx := c.systemIndexOf(system.Content)
		if idx < 0 {
			c.Systems = append(c.Systems, system)
			idx = len(c.Systems) - 1
		}
		block.SystemIndex = &idx
	}

	c.Messages = append(c.Messages, block)
	log.Trace().Object("block", block).Int("blocks", len(c.Messages)).Msg("added block")
	return nil
}

// RemoveBlock removes block (by identity). A system no other block refers to
// is dropped and the indices above it are shifted down by one.
func (c *Conversation) RemoveBlock(block *MessageBlock) error {
	pos := -1
	for i, b := range c.Messages {
		if b == block {
			pos = i
			break
		}
	}
	if pos < 0 {
		return ErrBlockNotFound
	}
	if idx := block.SystemIndex; idx != nil && (*idx < 0 || *idx >= len(c.Systems)) {
		return invalid("system_index", "index %d out of range", *idx)
	}
	c.Messages = append(c.Messages[:pos], c.Messages[pos+1:]...)

	if block.SystemIndex == nil {
		return nil
	}
	removed := *block.SystemIndex
	for _, b := range c.Messages {
		if b.SystemIndex != nil && *b.SystemIndex == removed {
			return nil
		}
	}

	c.Systems = append(c.Systems[:removed], c.Systems[removed+1:]...)
	for _, b := range c.Messages {
		if b.SystemIndex != nil && *b.SystemIndex > removed {
			idx := *b.SystemIndex - 1
			b.SystemIndex = &idx
		}
	}
	log.Trace().Int("system_index", removed).Int("systems", len(c.Systems)).Msg("dropped orphan system")
	return nil
}

// SystemFor returns the system message a block refers to, if any.
func (c *Conversation) SystemFor(block *MessageBlock) *SystemMessage {
	if block == nil || block.SystemIndex == nil {
		return nil
	}
	idx := *block.SystemIndex
	if idx < 0 || idx >= len(c.Systems) {
		return nil
	}
	return c.Systems[idx]
}

// LastSystem is the system of the most recent block, used as the default
// for the next request.
func (c *Conversation) LastSystem() *SystemMessage {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if s := c.SystemFor(c.Messages[i]); s != nil {
			return s
		}
	}
	return nil
}

// Validate checks every conversation invariant.
func (c *Conversation) Validate() error {
	if c.Version < MinSupportedVersion || c.Version > CurrentVersion {
		return invalid("version", "%d not within [%d, %d]", c.Version, MinSupportedVersion, CurrentVersion)
	}

	seen := map[string]int{}
	for i, s := range c.Systems {
		if s == nil {
			return invalid("systems", "system %d is nil", i)
		}
		if err := s.Validate(); err != nil {
			return err
		}
		if j, ok := seen[s.Content]; ok {
			return invalid("systems", "systems %d and %d have the same content", j, i)
		}
		seen[s.Content] = i
	}

	referenced := make([]bool, len(c.Systems))
	for i, b := range c.Messages {
		if b == nil {
			return invalid("messages", "block %d is nil", i)
		}
		if err := b.Validate(); err != nil {
			return err
		}
		if b.SystemIndex != nil {
			idx := *b.SystemIndex
			if idx >= len(c.Systems) {
				return invalid("system_index", "block %d refers to system %d, only %d systems", i, idx, len(c.Systems))
			}
			referenced[idx] = true
		}
	}
	for i, ok := range referenced {
		if !ok {
			return invalid("systems", "system %d is not referenced by any block", i)
		}
	}
	return nil
}

func (c *Conversation) systemIndexOf(content string) int {
	for i, s := range c.Systems {
		if s.Content == content {
			return i
		}
	}
	return -1
}
