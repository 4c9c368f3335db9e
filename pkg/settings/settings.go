package settings

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/basilisk/pkg/attachment"
	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/storage"
)

const (
	StorageLocal  = "local"
	StorageMemory = "memory"
	StorageS3     = "s3"
)

type StorageSettings struct {
	Type     string `yaml:"type"`
	Dir      string `yaml:"dir,omitempty"`
	Bucket   string `yaml:"bucket,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"`
}

type AccountSettings struct {
	ID       string `yaml:"id,omitempty"`
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key,omitempty"`
	// APIKeyEnv names the variable holding the key. Defaults to
	// <PROVIDER>_API_KEY.
	APIKeyEnv    string `yaml:"api_key_env,omitempty"`
	BaseURL      string `yaml:"base_url,omitempty"`
	Organization string `yaml:"organization,omitempty"`
}

type ImageSettings struct {
	ResizeEnabled bool `yaml:"resize_enabled"`
	MaxWidth      int  `yaml:"max_width,omitempty"`
	MaxHeight     int  `yaml:"max_height,omitempty"`
	Quality       int  `yaml:"quality,omitempty"`
}

type ConversationSettings struct {
	DefaultAccount string   `yaml:"default_account,omitempty"`
	DefaultModel   string   `yaml:"default_model,omitempty"`
	SystemPrompt   string   `yaml:"system_prompt,omitempty"`
	Stream         bool     `yaml:"stream"`
	Temperature    *float64 `yaml:"temperature,omitempty"`
	TopP           *float64 `yaml:"top_p,omitempty"`
	MaxTokens      *int     `yaml:"max_tokens,omitempty"`
}

type Settings struct {
	Storage      StorageSettings      `yaml:"storage"`
	Accounts     []AccountSettings    `yaml:"accounts,omitempty"`
	Images       ImageSettings        `yaml:"images"`
	Conversation ConversationSettings `yaml:"conversation"`
}

func New() *Settings {
	return &Settings{
		Storage:  StorageSettings{Type: StorageLocal},
		Accounts: []AccountSettings{},
		Images: ImageSettings{
			MaxWidth:  1024,
			MaxHeight: 1024,
			Quality:   85,
		},
		Conversation: ConversationSettings{Stream: true},
	}
}

func (s *Settings) Clone() *Settings {
	return clone.Clone(s).(*Settings)
}

// Parse reads YAML settings on top of the defaults.
func Parse(data []byte) (*Settings, error) {
	s := New()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, errors.Wrap(err, "could not parse settings")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func LoadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read settings %s", path)
	}
	return Parse(data)
}

// Load reads the settings viper knows about, config file and environment
// included. Scalars go through viper's typed getters so that environment
// strings are converted.
func Load(v *viper.Viper) (*Settings, error) {
	s := New()
	if v.IsSet("accounts") {
		data, err := yaml.Marshal(v.Get("accounts"))
		if err != nil {
			return nil, errors.Wrap(err, "could not serialize accounts")
		}
		if err := yaml.Unmarshal(data, &s.Accounts); err != nil {
			return nil, errors.Wrap(err, "could not parse accounts")
		}
	}

	s.Storage = StorageSettings{
		Type:     v.GetString("storage.type"),
		Dir:      v.GetString("storage.dir"),
		Bucket:   v.GetString("storage.bucket"),
		Prefix:   v.GetString("storage.prefix"),
		Region:   v.GetString("storage.region"),
		Endpoint: v.GetString("storage.endpoint"),
	}
	s.Images = ImageSettings{
		ResizeEnabled: v.GetBool("images.resize_enabled"),
		MaxWidth:      v.GetInt("images.max_width"),
		MaxHeight:     v.GetInt("images.max_height"),
		Quality:       v.GetInt("images.quality"),
	}
	s.Conversation = ConversationSettings{
		DefaultAccount: v.GetString("conversation.default_account"),
		DefaultModel:   v.GetString("conversation.default_model"),
		SystemPrompt:   v.GetString("conversation.system_prompt"),
		Stream:         v.GetBool("conversation.stream"),
	}
	if v.IsSet("conversation.temperature") {
		t := v.GetFloat64("conversation.temperature")
		s.Conversation.Temperature = &t
	}
	if v.IsSet("conversation.top_p") {
		p := v.GetFloat64("conversation.top_p")
		s.Conversation.TopP = &p
	}
	if v.IsSet("conversation.max_tokens") {
		n := v.GetInt("conversation.max_tokens")
		s.Conversation.MaxTokens = &n
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) Validate() error {
	switch s.Storage.Type {
	case StorageLocal, StorageMemory:
	case StorageS3:
		if s.Storage.Bucket == "" {
			return errors.New("storage: s3 needs a bucket")
		}
	default:
		return errors.Errorf("storage: unknown type %q", s.Storage.Type)
	}

	seen := map[string]bool{}
	for i, a := range s.Accounts {
		if a.Name == "" {
			return errors.Errorf("accounts[%d]: name is required", i)
		}
		if seen[a.Name] {
			return errors.Errorf("accounts[%d]: duplicate account %q", i, a.Name)
		}
		seen[a.Name] = true
		if _, ok := engine.GetProvider(a.Provider); !ok {
			return errors.Wrapf(engine.ErrUnknownProvider, "accounts[%d]: provider %q", i, a.Provider)
		}
	}
	if s.Conversation.DefaultAccount != "" && !seen[s.Conversation.DefaultAccount] {
		return errors.Errorf("conversation: default account %q is not configured", s.Conversation.DefaultAccount)
	}

	if s.Images.ResizeEnabled {
		if s.Images.MaxWidth <= 0 || s.Images.MaxHeight <= 0 {
			return errors.New("images: max_width and max_height must be positive")
		}
		if s.Images.Quality < 1 || s.Images.Quality > 100 {
			return errors.Errorf("images: quality %d out of range", s.Images.Quality)
		}
	}
	return nil
}

// ToAccount resolves the API key and builds the engine account. The id is
// derived from provider and name when not set so it is stable across runs.
func (a AccountSettings) ToAccount() (*engine.Account, error) {
	key := a.APIKey
	if key == "" {
		env := a.APIKeyEnv
		if env == "" {
			env = strings.ToUpper(a.Provider) + "_API_KEY"
		}
		key = os.Getenv(env)
	}

	ret := engine.NewAccount(a.Name, a.Provider, key)
	ret.BaseURL = a.BaseURL
	ret.Organization = a.Organization
	if a.ID != "" {
		id, err := uuid.Parse(a.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "account %q: invalid id", a.Name)
		}
		ret.ID = id
	} else {
		ret.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte(a.Provider+"/"+a.Name))
	}
	return ret, nil
}

// Account finds an account by name. An empty name picks the default
// account, then the first one configured.
func (s *Settings) Account(name string) (*engine.Account, error) {
	if name == "" {
		name = s.Conversation.DefaultAccount
	}
	for _, a := range s.Accounts {
		if name == "" || a.Name == name {
			return a.ToAccount()
		}
	}
	if name == "" {
		return nil, errors.New("no account configured")
	}
	return nil, errors.Errorf("no account named %q", name)
}

func (s *Settings) EngineOptions() []engine.Option {
	var ret []engine.Option
	if s.Images.ResizeEnabled {
		ret = append(ret, engine.WithImageResize(attachment.ResizeOptions{
			MaxWidth:  s.Images.MaxWidth,
			MaxHeight: s.Images.MaxHeight,
			Quality:   s.Images.Quality,
		}))
	}
	return ret
}

// OpenStorage builds the storage opened archives extract attachments to.
// Local storage without a directory lives under the temp dir.
func (s *Settings) OpenStorage(ctx context.Context) (storage.Storage, error) {
	st := s.Storage
	switch st.Type {
	case StorageLocal:
		dir := st.Dir
		if dir == "" {
			dir = filepath.Join(os.TempDir(), "basilisk")
		}
		return storage.NewLocalDir(dir), nil
	case StorageMemory:
		return storage.NewMemory("basilisk"), nil
	case StorageS3:
		return storage.NewS3FromConfig(ctx, st.Region, st.Endpoint, st.Bucket, st.Prefix)
	}
	return nil, errors.Errorf("storage: unknown type %q", st.Type)
}
