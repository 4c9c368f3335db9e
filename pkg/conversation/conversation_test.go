package conversation

import (
	"math/rand"
	"testing"

	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testModel = AIModelInfo{ProviderID: "openai", ModelID: "gpt-4o-mini"}

func newBlock(t *testing.T, text string) *MessageBlock {
	t.Helper()
	req, err := NewMessage(RoleUser, text)
	require.NoError(t, err)
	b, err := NewMessageBlock(req, testModel)
	require.NoError(t, err)
	return b
}

func systemIndex(b *MessageBlock) int {
	if b.SystemIndex == nil {
		return -1
	}
	return *b.SystemIndex
}

func TestNewConversationIsEmpty(t *testing.T) {
	c := New()
	assert.Empty(t, c.Messages)
	assert.Empty(t, c.Systems)
	assert.Nil(t, c.Title)
	assert.Equal(t, CurrentVersion, c.Version)
	require.NoError(t, c.Validate())
}

func TestAddBlockWithoutSystem(t *testing.T) {
	c := New()
	b := newBlock(t, "hello")
	require.NoError(t, c.AddBlock(b, nil))

	assert.Len(t, c.Messages, 1)
	assert.Empty(t, c.Systems)
	assert.Nil(t, b.SystemIndex)
}

func TestSharedSystemIsDeduplicated(t *testing.T) {
	c := New()
	b1 := newBlock(t, "first")
	b2 := newBlock(t, "second")

	require.NoError(t, c.AddBlock(b1, NewSystemMessage("S1")))
	require.NoError(t, c.AddBlock(b2, NewSystemMessage("S1")))

	require.Len(t, c.Systems, 1)
	assert.Equal(t, "S1", c.Systems[0].Content)
	assert.Equal(t, 0, systemIndex(b1))
	assert.Equal(t, 0, systemIndex(b2))

	require.NoError(t, c.RemoveBlock(b1))
	require.Len(t, c.Systems, 1)
	assert.Equal(t, []*MessageBlock{b2}, c.Messages)
	assert.Equal(t, 0, systemIndex(b2))
	require.NoError(t, c.Validate())
}

func TestRemoveLastReferenceCompactsIndices(t *testing.T) {
	c := New()
	b1 := newBlock(t, "one")
	b2 := newBlock(t, "two")
	b3 := newBlock(t, "three")
	b4 := newBlock(t, "four")

	require.NoError(t, c.AddBlock(b1, NewSystemMessage("A")))
	require.NoError(t, c.AddBlock(b2, NewSystemMessage("B")))
	require.NoError(t, c.AddBlock(b3, NewSystemMessage("C")))
	require.NoError(t, c.AddBlock(b4, NewSystemMessage("A")))
	require.Len(t, c.Systems, 3)

	require.NoError(t, c.RemoveBlock(b2))

	require.Len(t, c.Systems, 2)
	assert.Equal(t, "A", c.Systems[0].Content)
	assert.Equal(t, "C", c.Systems[1].Content)
	assert.Equal(t, 0, systemIndex(b1))
	assert.Equal(t, 1, systemIndex(b3))
	assert.Equal(t, 0, systemIndex(b4))
	require.NoError(t, c.Validate())
	assert.Equal(t, "C", c.SystemFor(b3).Content)
}

func TestRemoveUnknownBlock(t *testing.T) {
	c := New()
	require.NoError(t, c.AddBlock(newBlock(t, "a"), nil))

	err := c.RemoveBlock(newBlock(t, "a"))
	assert.True(t, errors.Is(err, ErrBlockNotFound))
	assert.Len(t, c.Messages, 1)
}

func TestSystemCountMatchesReferencedContents(t *testing.T) {
	c := New()
	contents := []string{"A", "B", "A", "C", "B", "A"}
	var blocks []*MessageBlock
	for i, s := range contents {
		b := newBlock(t, contents[i])
		blocks = append(blocks, b)
		require.NoError(t, c.AddBlock(b, NewSystemMessage(s)))
	}

	for _, idx := range []int{3, 0, 4, 1} {
		require.NoError(t, c.RemoveBlock(blocks[idx]))
		require.NoError(t, c.Validate())

		distinct := map[string]bool{}
		for _, b := range c.Messages {
			distinct[c.SystemFor(b).Content] = true
		}
		assert.Len(t, c.Systems, len(distinct))
	}
}

func TestRandomAddRemoveKeepsSystemsDense(t *testing.T) {
	contents := []string{"", "A", "B", "C", "D"}
	for seed := int64(1); seed <= 200; seed++ {
		rng := rand.New(rand.NewSource(seed))
		c := New()
		want := map[*MessageBlock]string{}

		for step := 0; step < 40; step++ {
			if len(c.Messages) > 0 && rng.Intn(3) == 0 {
				b := c.Messages[rng.Intn(len(c.Messages))]
				require.NoError(t, c.RemoveBlock(b), "seed %d step %d", seed, step)
				delete(want, b)
			} else {
				b := newBlock(t, "q")
				var sys *SystemMessage
				if content := contents[rng.Intn(len(contents))]; content != "" {
					sys = NewSystemMessage(content)
				}
				require.NoError(t, c.AddBlock(b, sys))
				if sys != nil {
					want[b] = sys.Content
				} else {
					want[b] = ""
				}
			}

			require.NoError(t, c.Validate(), "seed %d step %d", seed, step)
			referenced := map[string]bool{}
			for _, b := range c.Messages {
				got := ""
				if s := c.SystemFor(b); s != nil {
					got = s.Content
					referenced[got] = true
				}
				require.Equal(t, want[b], got, "seed %d step %d", seed, step)
			}
			require.Len(t, c.Systems, len(referenced), "seed %d step %d", seed, step)
		}
	}
}

func TestRemoveBlockWithBrokenIndexLeavesConversationUntouched(t *testing.T) {
	c := New()
	b := newBlock(t, "a")
	require.NoError(t, c.AddBlock(b, NewSystemMessage("S")))
	broken := 3
	b.SystemIndex = &broken

	err := c.RemoveBlock(b)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Len(t, c.Messages, 1)
	assert.Len(t, c.Systems, 1)
}

func TestLastSystem(t *testing.T) {
	c := New()
	assert.Nil(t, c.LastSystem())
	require.NoError(t, c.AddBlock(newBlock(t, "a"), NewSystemMessage("S")))
	require.NoError(t, c.AddBlock(newBlock(t, "b"), nil))
	require.NotNil(t, c.LastSystem())
	assert.Equal(t, "S", c.LastSystem().Content)
}

func TestBlockValidation(t *testing.T) {
	user, err := NewMessage(RoleUser, "hi")
	require.NoError(t, err)
	assistant, err := NewMessage(RoleAssistant, "hello")
	require.NoError(t, err)

	_, err = NewMessageBlock(assistant, testModel)
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = NewMessageBlock(user, testModel, WithResponse(user))
	assert.True(t, errors.Is(err, ErrValidation))

	withAttachment, err := NewMessage(RoleAssistant, "look", WithAttachments(attachment.NewURL("https://example.com/a.png")))
	require.NoError(t, err)
	_, err = NewMessageBlock(user, testModel, WithResponse(withAttachment))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "response.attachments", verr.Field)

	_, err = NewMessageBlock(user, AIModelInfo{ModelID: "x"})
	assert.True(t, errors.Is(err, ErrValidation))

	_, err = NewMessageBlock(user, testModel, WithTopP(1.5))
	assert.True(t, errors.Is(err, ErrValidation))

	b, err := NewMessageBlock(user, testModel, WithResponse(assistant), WithTemperature(0.3), WithMaxTokens(100), WithStream(true))
	require.NoError(t, err)
	assert.Equal(t, 0.3, *b.Temperature)
	assert.True(t, b.Stream)
}

func TestMessageRoleValidation(t *testing.T) {
	_, err := NewMessage(Role("tool"), "x")
	assert.True(t, errors.Is(err, ErrValidation))

	s := NewSystemMessage("S")
	s.Attachments = append(s.Attachments, attachment.NewURL("https://example.com/x.png"))
	assert.True(t, errors.Is(s.Validate(), ErrValidation))
}

func TestVersionBounds(t *testing.T) {
	c := New()
	c.Version = CurrentVersion + 1
	assert.True(t, errors.Is(c.Validate(), ErrValidation))
	c.Version = MinSupportedVersion - 1
	assert.True(t, errors.Is(c.Validate(), ErrValidation))
	c.Version = MinSupportedVersion
	assert.NoError(t, c.Validate())
}

func TestValidateRejectsBrokenIndices(t *testing.T) {
	c := New()
	b := newBlock(t, "a")
	require.NoError(t, c.AddBlock(b, NewSystemMessage("S")))

	idx := 3
	b.SystemIndex = &idx
	assert.True(t, errors.Is(c.Validate(), ErrValidation))

	zero := 0
	b.SystemIndex = &zero
	c.Systems = append(c.Systems, NewSystemMessage("orphan"))
	assert.True(t, errors.Is(c.Validate(), ErrValidation))

	c.Systems = []*SystemMessage{NewSystemMessage("S"), NewSystemMessage("S")}
	assert.True(t, errors.Is(c.Validate(), ErrValidation))
}

func TestEqualNormalizesCitationNumbers(t *testing.T) {
	mk := func(page interface{}) *Conversation {
		c := New()
		req, err := NewMessage(RoleUser, "q")
		require.NoError(t, err)
		resp, err := NewMessage(RoleAssistant, "a", WithCitations(Citation{"page": page, "text": "quote"}))
		require.NoError(t, err)
		b, err := NewMessageBlock(req, testModel, WithResponse(resp))
		require.NoError(t, err)
		require.NoError(t, c.AddBlock(b, nil))
		return c
	}
	assert.True(t, Equal(mk(42), mk(float64(42))))
	assert.False(t, Equal(mk(42), mk(43)))
}

func TestEmptyCitationsAreNotNil(t *testing.T) {
	m, err := NewMessage(RoleAssistant, "a", WithCitations([]Citation{}...))
	require.NoError(t, err)
	assert.NotNil(t, m.Citations)
	assert.Empty(t, m.Citations)

	m, err = NewMessage(RoleAssistant, "a")
	require.NoError(t, err)
	assert.Nil(t, m.Citations)
}
