package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hush-cli/internal/model"

	"gopkg.in/yaml.v3"
)

// Config is the global, per-user configuration (~/.hush/config.yaml).
type Config struct {
	// Me is the local user's id; messages with From == Me are "mine".
	Me string `yaml:"me,omitempty"`

	// Contacts are the known peers. One conversation exists per contact.
	Contacts []model.Contact `yaml:"contacts,omitempty"`

	// Secret is the application secret mixed into per-conversation key derivation.
	Secret string `yaml:"secret,omitempty"`

	PageSize        int           `yaml:"pageSize,omitempty"`
	UndoWindow      time.Duration `yaml:"undoWindow,omitempty"`
	TypingDebounce  time.Duration `yaml:"typingDebounce,omitempty"`
	DeliveredDelay  time.Duration `yaml:"deliveredDelay,omitempty"`
	DuplicateWindow time.Duration `yaml:"duplicateWindow,omitempty"`
	ReplyDelayMin   time.Duration `yaml:"replyDelayMin,omitempty"`
	ReplyDelayMax   time.Duration `yaml:"replyDelayMax,omitempty"`
}

func DefaultContacts() []model.Contact {
	return []model.Contact{
		{ID: "alice", Name: "Alice"},
		{ID: "bob", Name: "Bob"},
		{ID: "sam", Name: "Sam"},
	}
}

// WithDefaults fills every unset field.
func (c Config) WithDefaults() Config {
	if strings.TrimSpace(c.Me) == "" {
		c.Me = "me"
	}
	if len(c.Contacts) == 0 {
		c.Contacts = DefaultContacts()
	}
	if c.PageSize <= 0 {
		c.PageSize = 20
	}
	if c.UndoWindow <= 0 {
		c.UndoWindow = 6 * time.Second
	}
	if c.TypingDebounce <= 0 {
		c.TypingDebounce = 800 * time.Millisecond
	}
	if c.DeliveredDelay <= 0 {
		c.DeliveredDelay = 700 * time.Millisecond
	}
	if c.DuplicateWindow <= 0 {
		c.DuplicateWindow = 600 * time.Millisecond
	}
	if c.ReplyDelayMin <= 0 {
		c.ReplyDelayMin = 900 * time.Millisecond
	}
	if c.ReplyDelayMax < c.ReplyDelayMin {
		c.ReplyDelayMax = c.ReplyDelayMin + 700*time.Millisecond
	}
	return c
}

// FindContact matches by id or (case-insensitively) by display name.
func (c Config) FindContact(s string) (model.Contact, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "conv-")
	s = strings.TrimPrefix(s, "@")
	for _, ct := range c.Contacts {
		if ct.ID == s || strings.EqualFold(ct.Name, s) {
			return ct, true
		}
	}
	return model.Contact{}, false
}

func ConfigDir() (string, error) {
	// Test/advanced override (keeps unit tests from touching ~/.hush).
	if v := strings.TrimSpace(os.Getenv("HUSH_CONFIG_DIR")); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".hush"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// DefaultDir is the store directory used when --dir is not given.
func DefaultDir() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "store"), nil
}

// LoadConfig returns the config with defaults applied. A missing file is not an error.
func LoadConfig() (Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return Config{}, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Config{}.WithDefaults(), nil
		}
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	return cfg.WithDefaults(), nil
}

func SaveConfig(cfg Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	// Unique temp name + rename so a TUI and a CLI writing at once never interleave bytes.
	return atomicWriteFile(dir, "config.yaml.*.tmp", path, b, 0o600)
}

func atomicWriteFile(dir, tmpPattern, path string, b []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(dir, tmpPattern)
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	_ = os.Chmod(tmp, perm)
	return os.Rename(tmp, path)
}
