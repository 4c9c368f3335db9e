package cmds

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/go-go-golems/basilisk/pkg/conversation"
	"github.com/go-go-golems/basilisk/pkg/conversation/archive"
	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/engine/providers"
	"github.com/go-go-golems/basilisk/pkg/settings"
	"github.com/go-go-golems/basilisk/pkg/storage"
)

func loadSettings() (*settings.Settings, error) {
	v, err := settings.NewViper(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	return settings.Load(v)
}

// archivePath turns a user supplied path into the absolute archive file
// name, adding the archive extension when the path has none.
func archivePath(path string) (string, error) {
	if filepath.Ext(path) == "" {
		path += archive.Extension
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "could not resolve %s", path)
	}
	return abs, nil
}

// openConversation reads an archive, extracting attachments to the
// configured storage.
func openConversation(ctx context.Context, s *settings.Settings, path string) (*conversation.Conversation, error) {
	abs, err := archivePath(path)
	if err != nil {
		return nil, err
	}
	dst, err := s.OpenStorage(ctx)
	if err != nil {
		return nil, err
	}
	return archive.OpenFile(ctx, storage.NewLocal(), abs, dst, "")
}

// openOrNewConversation opens path, or starts an empty conversation when the
// file does not exist yet.
func openOrNewConversation(ctx context.Context, s *settings.Settings, path string) (*conversation.Conversation, error) {
	abs, err := archivePath(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); os.IsNotExist(err) {
		return conversation.New(), nil
	}
	return openConversation(ctx, s, abs)
}

func saveConversation(ctx context.Context, conv *conversation.Conversation, path string) error {
	abs, err := archivePath(path)
	if err != nil {
		return err
	}
	return archive.SaveFile(ctx, conv, storage.NewLocal(), abs)
}

func resolveAttachments(ctx context.Context, refs []string) ([]*attachment.Attachment, error) {
	ret := make([]*attachment.Attachment, 0, len(refs))
	for _, ref := range refs {
		a, err := attachment.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		ret = append(ret, a)
	}
	return ret, nil
}

func newEngine(s *settings.Settings, accountName string) (engine.Engine, error) {
	account, err := s.Account(accountName)
	if err != nil {
		return nil, err
	}
	return providers.NewEngine(account, s.EngineOptions()...)
}
