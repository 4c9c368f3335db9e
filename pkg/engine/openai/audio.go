package openai

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/storage"
)

const (
	TranscriptionModel = go_openai.Whisper1
	SpeechModel        = "tts-1"
	DefaultVoice       = "alloy"
)

// Transcribe turns a stored audio attachment into text.
func (e *Engine) Transcribe(ctx context.Context, a *attachment.Attachment, language string) (string, error) {
	if !e.Capabilities().Has(engine.CapabilitySTT) {
		return "", errors.Wrapf(attachment.ErrCapability, "%s has no speech to text", e.ProviderID())
	}
	if a.Kind == attachment.KindURL {
		return "", errors.Errorf("cannot transcribe remote attachment %s", a.Location)
	}
	client, err := e.Client(ctx)
	if err != nil {
		return "", err
	}

	r, err := a.Open(ctx)
	if err != nil {
		return "", err
	}
	defer func(r io.ReadCloser) {
		_ = r.Close()
	}(r)

	log.Debug().Str("provider", e.ProviderID()).Str("file", a.Name).Msg("transcribing")
	resp, err := client.CreateTranscription(ctx, go_openai.AudioRequest{
		Model:    TranscriptionModel,
		FilePath: a.Name,
		Reader:   r,
		Language: language,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// Speak renders text to speech and stores the mp3 as name in dst.
func (e *Engine) Speak(ctx context.Context, text string, voice string, dst storage.Storage, name string) (*attachment.Attachment, error) {
	if !e.Capabilities().Has(engine.CapabilityTTS) {
		return nil, errors.Wrapf(attachment.ErrCapability, "%s has no text to speech", e.ProviderID())
	}
	if voice == "" {
		voice = DefaultVoice
	}
	client, err := e.Client(ctx)
	if err != nil {
		return nil, err
	}

	body, err := client.CreateSpeech(ctx, go_openai.CreateSpeechRequest{
		Model: go_openai.SpeechModel(SpeechModel),
		Input: text,
		Voice: go_openai.SpeechVoice(voice),
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = body.Close()
	}()

	w, err := dst.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(w, body); err != nil {
		_ = storage.Abort(w, err)
		return nil, errors.Wrap(err, "could not store speech")
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	a := attachment.NewFile(dst, name)
	a.SetMimeType("audio/mpeg")
	return a, nil
}
