package configs

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings are the client defaults loaded from a YAML file.
type Settings struct {
	Port           int           `yaml:"port"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	// DefaultPty is requested when a shell write has to open the shell itself.
	DefaultPty string `yaml:"default_pty"`
	// Workers bounds concurrent operations per client.
	Workers        int           `yaml:"workers"`
	ProgressBar    bool          `yaml:"progress_bar"`
	ShellFirstByte time.Duration `yaml:"shell_first_byte"`
	ShellSettle    time.Duration `yaml:"shell_settle"`
	// KnownHosts is an OpenSSH known_hosts file; empty disables host key checks.
	KnownHosts string      `yaml:"known_hosts"`
	Log        LogSettings `yaml:"log"`
}

type LogSettings struct {
	Level      string `yaml:"level"`
	Filename   string `yaml:"filename"`
	MaxSize    int    `yaml:"max_size"`
	MaxAge     int    `yaml:"max_age"`
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

func DefaultSettings() Settings {
	return Settings{
		Port:           22,
		ConnectTimeout: 10 * time.Second,
		DefaultPty:     "vanilla",
		Workers:        32,
		ShellFirstByte: 2 * time.Second,
		ShellSettle:    150 * time.Millisecond,
		Log: LogSettings{
			Level:      "info",
			MaxSize:    10,
			MaxAge:     7,
			MaxBackups: 3,
		},
	}
}

func (s Settings) Validate() error {
	switch {
	case s.Port <= 0 || s.Port > 65535:
		return fmt.Errorf("port %d out of range", s.Port)
	case s.Workers <= 0:
		return fmt.Errorf("workers must be positive, got %d", s.Workers)
	case s.ConnectTimeout < 0:
		return fmt.Errorf("connect_timeout must not be negative")
	case s.ShellSettle <= 0 || s.ShellFirstByte <= 0:
		return fmt.Errorf("shell_settle and shell_first_byte must be positive")
	}
	return nil
}

// Load reads path on top of DefaultSettings, so a file only lists overrides.
func Load(path string) (Settings, error) {
	settings := DefaultSettings()
	content, err := os.ReadFile(path)
	if err != nil {
		return settings, fmt.Errorf("read settings %s: %w", path, err)
	}
	if err := yaml.Unmarshal(content, &settings); err != nil {
		return settings, fmt.Errorf("parse settings %s: %w", path, err)
	}
	if err := settings.Validate(); err != nil {
		return settings, fmt.Errorf("settings %s: %w", path, err)
	}
	return settings, nil
}

// SettingsFile is a Read[Settings] for NewFileManager.
type SettingsFile string

func (f SettingsFile) FilePath() string {
	return string(f)
}

func (f SettingsFile) ReadConfig() (Settings, error) {
	return Load(string(f))
}
