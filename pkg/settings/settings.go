// Package settings manages persistent user settings for the sessioncheck CLI.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Settings holds persistent user preferences
type Settings struct {
	// DefaultSnapshot is the snapshot file to use when --snapshot is not specified
	DefaultSnapshot string `json:"default_snapshot,omitempty"`

	// DefaultQuestion is the question file to use when --question is not specified
	DefaultQuestion string `json:"default_question,omitempty"`

	// Workers overrides the default parallelism of a check run
	Workers int `json:"workers,omitempty"`

	// RedisPort is the CONFIG_DB port used by collect
	RedisPort int `json:"redis_port,omitempty"`

	// AuditLog is the run log appended to by check; empty disables it
	AuditLog string `json:"audit_log,omitempty"`
}

// DefaultRedisPort is the SONiC CONFIG_DB port
const DefaultRedisPort = 6379

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "sessioncheck_settings.json"
	}
	return filepath.Join(home, ".sessioncheck", "settings.json")
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, err
	}

	return s, nil
}

// SaveTo writes settings to a specific path
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// GetRedisPort returns the CONFIG_DB port (with fallback)
func (s *Settings) GetRedisPort() int {
	if s.RedisPort > 0 {
		return s.RedisPort
	}
	return DefaultRedisPort
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
