package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/contre95/dropsort/src/triage"
	"gopkg.in/yaml.v3"
)

// Manager holds the application configuration and provides thread-safe access to it.
type Manager struct {
	mu     sync.RWMutex
	config *Config
}

// NewManager creates a new ConfigManager.
func NewManager(config *Config) *Manager {
	return &Manager{config: config}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Update updates the configuration.
// Components built from the previous value keep their snapshot of the rules.
func (m *Manager) Update(config *Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	oldConfig := m.config
	m.config = config

	if oldConfig != nil {
		slog.Debug("Configuration updated",
			"root_changed", oldConfig.Root != config.Root,
			"rules_changed", len(oldConfig.Rules) != len(config.Rules),
			"projects_changed", len(oldConfig.Projects) != len(config.Projects),
			"telegram_enabled_changed", oldConfig.Telegram.Enabled != config.Telegram.Enabled,
		)
	}
}

// Save writes the current configuration to the specified file path.
func (m *Manager) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := saveConfig(path, m.config); err != nil {
		slog.Error("failed to save config", "path", path, "error", err)
		return err
	}
	return nil
}

// EnsureDirectories creates the watched root and the job log directory if they don't exist.
func (m *Manager) EnsureDirectories() error {
	m.mu.RLock()
	cfg := m.config
	m.mu.RUnlock()

	if err := os.MkdirAll(cfg.Root, 0755); err != nil {
		return fmt.Errorf("failed to create root directory %s: %w", cfg.Root, err)
	}

	if cfg.Jobs.Log {
		if err := os.MkdirAll(cfg.Jobs.LogPath, 0755); err != nil {
			return fmt.Errorf("failed to create job log directory %s: %w", cfg.Jobs.LogPath, err)
		}
	}

	slog.Info("Required directories created/verified", "root", cfg.Root, "job_logs", cfg.Jobs.LogPath)
	return nil
}

// Root returns the absolute path of the watched root.
func (m *Manager) Root() (string, error) {
	return filepath.Abs(m.Get().Root)
}

// LockDir returns the absolute directory holding the advisory lock files.
// An empty lock_dir resolves to DefaultLockDir.
func (m *Manager) LockDir() (string, error) {
	dir := m.Get().LockDir
	if dir == "" {
		return DefaultLockDir(), nil
	}
	return filepath.Abs(dir)
}

// DefaultLockDir is a per-user directory for lock files: the user cache
// directory when there is one, else a uid-suffixed folder in the temp directory.
func DefaultLockDir() string {
	if cache, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cache, "dropsort", "locks")
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("dropsort-locks-%d", os.Getuid()))
}

// Rules builds the immutable classification policy from the current configuration.
func (m *Manager) Rules() *triage.Rules {
	cfg := m.Get()
	rules := &triage.Rules{
		TypeRules:     make([]triage.TypeRule, 0, len(cfg.Rules)),
		Keywords:      append([]string(nil), cfg.Projects...),
		MetadataNames: append([]string(nil), cfg.Exclude.MetadataNames...),
		TempSuffixes:  append([]string(nil), cfg.Watcher.IgnoreSuffixes...),
	}
	for _, r := range cfg.Rules {
		rules.TypeRules = append(rules.TypeRules, triage.TypeRule{Prefix: r.Type, Category: r.Category})
	}
	return rules
}

// redactedCfg gets a redacted copy of the Config
func (m *Manager) redactedCfg() Config {
	var cfgCpy = *m.config
	if cfgCpy.Telegram.Token != "" {
		cfgCpy.Telegram.Token = "<redacted>"
	}
	return cfgCpy
}

// GetJSON returns the current configuration as a JSON string.
func (m *Manager) GetJSON() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jsonBytes, err := json.Marshal(m.redactedCfg())
	if err != nil {
		slog.Error("failed to marshal config to JSON", "error", err)
		return err.Error()
	}
	return string(jsonBytes)
}

func (m *Manager) GetYAML() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	yamlBytes, err := yaml.Marshal(m.redactedCfg())
	if err != nil {
		slog.Error("failed to marshal config to YAML", "error", err)
		return err.Error()
	}
	return string(yamlBytes)
}
