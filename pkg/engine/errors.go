package engine

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrAbstractEngine  = errors.New("base engine cannot serve requests on its own")
	ErrNotStreaming    = errors.New("completion is not a stream")
	ErrStreaming       = errors.New("completion is a stream")
	ErrUnknownProvider = errors.New("no provider found")
)

// ProviderError is a non-2xx answer from a provider API.
type ProviderError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s: %d %s: %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s: %d: %s", e.Provider, e.StatusCode, e.Message)
}

// NewProviderError reads an error response body. It understands the usual
// {"error": {"type", "message"}} envelope and a few flatter variants.
func NewProviderError(provider string, resp *http.Response) *ProviderError {
	e := &ProviderError{Provider: provider, StatusCode: resp.StatusCode}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	e.parse(body)
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

// NewProviderErrorFromBody builds an error from an in-band error payload,
// for example an SSE error event.
func NewProviderErrorFromBody(provider string, statusCode int, body []byte) *ProviderError {
	e := &ProviderError{Provider: provider, StatusCode: statusCode}
	e.parse(body)
	return e
}

func (e *ProviderError) parse(body []byte) {
	var envelope struct {
		Type    string          `json:"type"`
		Message json.RawMessage `json:"message"`
		Detail  json.RawMessage `json:"detail"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		e.Message = string(body)
		return
	}

	if len(envelope.Error) > 0 {
		var inner struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &inner); err == nil {
			e.Type, e.Message = inner.Type, inner.Message
			return
		}
		var s string
		if err := json.Unmarshal(envelope.Error, &s); err == nil {
			e.Message = s
			return
		}
	}

	e.Type = envelope.Type
	for _, raw := range []json.RawMessage{envelope.Message, envelope.Detail} {
		if len(raw) == 0 {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			e.Message = s
		} else {
			e.Message = string(raw)
		}
		return
	}
	e.Message = string(body)
}
