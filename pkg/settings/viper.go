package settings

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const EnvPrefix = "basilisk"

// NewViper prepares a viper instance reading configPath, or config.yaml from
// the usual places when configPath is empty. A missing config file is not
// an error.
func NewViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.basilisk")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "basilisk"))
		}
	}

	err := v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		log.Debug().Msg("no basilisk config file found")
	} else if err != nil {
		return nil, errors.Wrap(err, "could not read config")
	} else {
		log.Debug().Str("config", v.ConfigFileUsed()).Msg("loaded configuration")
	}
	return v, nil
}

// setDefaults registers every scalar key so environment overrides are seen
// even without a config file.
func setDefaults(v *viper.Viper) {
	d := New()
	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("storage.dir", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("images.resize_enabled", d.Images.ResizeEnabled)
	v.SetDefault("images.max_width", d.Images.MaxWidth)
	v.SetDefault("images.max_height", d.Images.MaxHeight)
	v.SetDefault("images.quality", d.Images.Quality)
	v.SetDefault("conversation.default_account", "")
	v.SetDefault("conversation.default_model", "")
	v.SetDefault("conversation.system_prompt", "")
	v.SetDefault("conversation.stream", d.Conversation.Stream)
}
