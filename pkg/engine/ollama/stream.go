package ollama

import (
	"context"
	"io"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/go-go-golems/basilisk/pkg/engine"
)

// chunkStream turns the callback based langchaingo streaming into a pull
// based stream. The generation runs in its own goroutine until the reply
// is done or Close cancels it.
type chunkStream struct {
	chunks chan string
	done   chan struct{}
	cancel context.CancelFunc
	err    error
	once   sync.Once
}

func startStream(ctx context.Context, model llms.Model, messages []llms.MessageContent, opts []llms.CallOption) *chunkStream {
	ctx, cancel := context.WithCancel(ctx)
	s := &chunkStream{
		chunks: make(chan string),
		done:   make(chan struct{}),
		cancel: cancel,
	}

	opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
		if len(chunk) == 0 {
			return nil
		}
		select {
		case s.chunks <- string(chunk):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}))

	go func() {
		defer close(s.done)
		defer close(s.chunks)
		_, s.err = model.GenerateContent(ctx, messages, opts...)
	}()
	return s
}

func (s *chunkStream) Recv() (engine.Fragment, error) {
	chunk, ok := <-s.chunks
	if ok {
		return engine.Fragment{Text: chunk}, nil
	}
	<-s.done
	if s.err != nil {
		return engine.Fragment{}, s.err
	}
	return engine.Fragment{}, io.EOF
}

func (s *chunkStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		for range s.chunks {
		}
		<-s.done
	})
	return nil
}
