package api

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/engine/sse"
)

type StreamingEventType string

const (
	PingType              StreamingEventType = "ping"
	MessageStartType      StreamingEventType = "message_start"
	ContentBlockStartType StreamingEventType = "content_block_start"
	ContentBlockDeltaType StreamingEventType = "content_block_delta"
	ContentBlockStopType  StreamingEventType = "content_block_stop"
	MessageDeltaType      StreamingEventType = "message_delta"
	MessageStopType       StreamingEventType = "message_stop"
	ErrorType             StreamingEventType = "error"
)

type StreamingDeltaType string

const (
	TextDeltaType      StreamingDeltaType = "text_delta"
	CitationsDeltaType StreamingDeltaType = "citations_delta"
)

type StreamingEvent struct {
	Type         StreamingEventType `json:"type"`
	Message      *MessageResponse   `json:"message,omitempty"`
	Delta        *Delta             `json:"delta,omitempty"`
	Error        *Error             `json:"error,omitempty"`
	Index        int                `json:"index,omitempty"`
	Usage        *Usage             `json:"usage,omitempty"`
	ContentBlock *ResponseContent   `json:"content_block,omitempty"`
}

func (s StreamingEvent) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", string(s.Type))
	if s.Message != nil {
		e.Object("message", s.Message)
	}
	if s.Delta != nil {
		e.Object("delta", s.Delta)
	}
	if s.Error != nil {
		e.Object("error", s.Error)
	}
	if s.Index != 0 {
		e.Int("index", s.Index)
	}
	if s.ContentBlock != nil {
		e.Object("content_block", s.ContentBlock)
	}
}

var _ zerolog.LogObjectMarshaler = StreamingEvent{}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (err Error) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", err.Type)
	e.Str("message", err.Message)
}

type Delta struct {
	Type       StreamingDeltaType     `json:"type"`
	Text       string                 `json:"text,omitempty"`
	Citation   map[string]interface{} `json:"citation,omitempty"`
	StopReason string                 `json:"stop_reason,omitempty"`
}

func (d Delta) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", string(d.Type))
	if d.Text != "" {
		e.Str("text", d.Text)
	}
	if d.StopReason != "" {
		e.Str("stop_reason", d.StopReason)
	}
}

// MessageStream reads streaming events off a response body.
type MessageStream struct {
	body      io.ReadCloser
	reader    *sse.Reader
	closeOnce sync.Once
	count     int
}

// Recv returns the next event; io.EOF after message_stop or at the end of
// the body. An error event is returned as a *engine.ProviderError.
func (s *MessageStream) Recv() (*StreamingEvent, error) {
	for {
		ev, err := s.reader.Next()
		if err != nil {
			return nil, err
		}
		var event StreamingEvent
		if err := json.Unmarshal([]byte(ev.Data), &event); err != nil {
			log.Debug().Err(err).Str("event", ev.Event).Msg("skipping unparsable anthropic event")
			continue
		}
		s.count++
		log.Trace().Int("event_number", s.count).Object("event", event).Msg("anthropic stream event")

		switch event.Type {
		case PingType:
			continue
		case MessageStopType:
			return nil, io.EOF
		case ErrorType:
			pe := &engine.ProviderError{Provider: providerName, StatusCode: 200}
			if event.Error != nil {
				pe.Type, pe.Message = event.Error.Type, event.Error.Message
			}
			return nil, pe
		}
		return &event, nil
	}
}

func (s *MessageStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}
