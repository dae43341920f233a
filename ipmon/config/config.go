// Package config provides the configuration store of ipmon: a single YAML
// file, read on startup and written back whenever a configuration is applied.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"git.unix.lgbt/diamondburned/ipmon/ipmon"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultURL is the page fetched for the public address by default.
const DefaultURL = "https://checkip.amazonaws.com"

// Config is the configuration of ipmon.
type Config struct {
	IntervalSeconds     int       `yaml:"interval_seconds"`
	URL                 string    `yaml:"url"`
	FetchTimeoutSeconds int       `yaml:"fetch_timeout_seconds"`
	JournalFile         string    `yaml:"journal_file"`
	ScriptsDir          string    `yaml:"scripts_dir"`
	Notifiers           Notifiers `yaml:"notifiers"`
}

// Notifiers holds the configuration of every notifier. A notifier is only
// registered if it is enabled.
type Notifiers struct {
	Command Command `yaml:"command"`
	Mail    Mail    `yaml:"mail"`
	Log     Log     `yaml:"log"`
}

// Command configures the command notifier. Each argument may contain {old}
// and {new}, which are replaced with the addresses.
type Command struct {
	Enabled        bool     `yaml:"enabled"`
	Path           string   `yaml:"path"`
	Args           []string `yaml:"args"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Mail configures the mail notifier. TimeoutSeconds bounds a whole send, from
// dialing the server to quitting.
type Mail struct {
	Enabled        bool     `yaml:"enabled"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	From           string   `yaml:"from"`
	To             []string `yaml:"to"`
	Subject        string   `yaml:"subject"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
}

// Log configures the log notifier.
type Log struct {
	Enabled bool `yaml:"enabled"`
}

// Interval returns the polling interval.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// FetchTimeout returns the timeout of a single fetch.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// Default returns the configuration used when there is no file.
func Default() Config {
	journalFile := "journal.json"
	if dir, err := os.UserConfigDir(); err == nil {
		journalFile = filepath.Join(dir, "ipmon", "journal.json")
	}

	return Config{
		IntervalSeconds:     int(ipmon.DefaultInterval / time.Second),
		URL:                 DefaultURL,
		FetchTimeoutSeconds: int(ipmon.DefaultFetchTimeout / time.Second),
		JournalFile:         journalFile,
		Notifiers: Notifiers{
			Log: Log{Enabled: true},
			Mail: Mail{
				Port:           25,
				Subject:        "Public IP address changed",
				TimeoutSeconds: 30,
			},
		},
	}
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "ipmon.yaml"
	}
	return filepath.Join(dir, "ipmon", "config.yaml")
}

// Load reads the configuration from the YAML file. A missing file is the
// default configuration. The returned configuration is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, errors.Wrap(err, "failed to read config")
	}

	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, errors.Wrap(err, "failed to parse config")
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Save writes the configuration to the YAML file atomically.
func Save(path string, cfg Config) error {
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to encode config")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, b, 0600); err != nil {
		return errors.Wrap(err, "failed to write temp config")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "failed to replace config")
	}

	return nil
}

// Validate checks the configuration. Intervals below ipmon.MinInterval are
// rejected with an *ipmon.InvalidIntervalError.
func Validate(cfg Config) error {
	if cfg.Interval() < ipmon.MinInterval {
		return &ipmon.InvalidIntervalError{
			Interval: cfg.Interval(),
			Minimum:  ipmon.MinInterval,
		}
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return errors.Wrap(err, "invalid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("invalid url %q, use something like http://www.server.com", cfg.URL)
	}

	if cfg.FetchTimeoutSeconds < 0 {
		return errors.New("fetch_timeout_seconds must not be negative")
	}

	if cfg.Notifiers.Command.Enabled && cfg.Notifiers.Command.Path == "" {
		return errors.New("command notifier is enabled but has no path")
	}

	if m := cfg.Notifiers.Mail; m.Enabled {
		switch {
		case m.Host == "":
			return errors.New("mail notifier is enabled but has no host")
		case m.From == "":
			return errors.New("mail notifier is enabled but has no sender")
		case len(m.To) == 0:
			return errors.New("mail notifier is enabled but has no recipients")
		case m.TimeoutSeconds < 0:
			return errors.New("mail timeout_seconds must not be negative")
		}
	}

	return nil
}

// Hook is called with the new configuration whenever one is applied.
type Hook func(Config) error

// Store holds the current configuration and its file.
type Store struct {
	path string

	mutex sync.Mutex
	cfg   Config
	hooks []Hook
}

// Open loads the configuration at path into a new store.
func Open(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	return &Store{path: path, cfg: cfg}, nil
}

// Path returns the path of the configuration file.
func (s *Store) Path() string { return s.path }

// Current returns the current configuration.
func (s *Store) Current() Config {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.cfg
}

// OnApply adds a hook called on every applied configuration.
func (s *Store) OnApply(hook Hook) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.hooks = append(s.hooks, hook)
}

// Apply validates, saves and applies the configuration. Nothing is changed if
// it is invalid. Every hook is called even if an earlier one fails; the first
// error is returned.
func (s *Store) Apply(cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	if err := Save(s.path, cfg); err != nil {
		return err
	}

	return s.apply(cfg)
}

// Reload reads the file again and applies it without writing it back.
func (s *Store) Reload() error {
	cfg, err := Load(s.path)
	if err != nil {
		return err
	}

	return s.apply(cfg)
}

func (s *Store) apply(cfg Config) error {
	s.mutex.Lock()
	s.cfg = cfg
	hooks := append([]Hook(nil), s.hooks...)
	s.mutex.Unlock()

	var firstErr error
	for _, hook := range hooks {
		if err := hook(cfg); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
