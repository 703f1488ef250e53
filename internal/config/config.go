// internal/config/config.go
//
// This package handles configuration and the .apptree directory structure.
// Every project that uses apptree gets a .apptree/ folder in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// ProjectDirName is the name of the directory we create in each project
	ProjectDirName = ".apptree"

	// DefaultRootID is the extension id used as the tree root when none is configured.
	DefaultRootID = "app"

	defaultExtensionsDir = "extensions"
	defaultLogLevel      = "info"
)

const defaultProjectConfigYAML = `# apptree project configuration
version: 1

# Extension id the attachment tree is rooted at.
root: app

extensions:
  # Directories (relative to .apptree) scanned for *.yaml, *.hcl and *.go declarations.
  dirs:
    - extensions
  # Extra glob patterns relative to the project root, e.g. "packages/**/extensions/*.yaml".
  include: []
  # Extension ids to mark as disabled. Disabled extensions still take part in the tree.
  disabled: []

# Local HTTP endpoint serving the rendered tree.
inspect:
  enabled: true
  host: 127.0.0.1
  port: 8766
  # Rendered subtrees kept in memory between requests.
  cache_size: 256

log:
  level: info
`

// ExtensionsConfig declares where extension declarations are discovered.
type ExtensionsConfig struct {
	Dirs     []string `yaml:"dirs"`
	Include  []string `yaml:"include,omitempty"`
	Disabled []string `yaml:"disabled,omitempty"`
}

func (e ExtensionsConfig) clone() ExtensionsConfig {
	return ExtensionsConfig{
		Dirs:     cloneStrings(e.Dirs),
		Include:  cloneStrings(e.Include),
		Disabled: cloneStrings(e.Disabled),
	}
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}

// InspectConfig captures the inspection server preferences.
type InspectConfig struct {
	Enabled   *bool  `yaml:"enabled,omitempty"`
	Host      string `yaml:"host,omitempty"`
	Port      int    `yaml:"port,omitempty"`
	CacheSize int    `yaml:"cache_size,omitempty"`
}

// LogConfig controls the project log file.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
}

// ProjectConfig models .apptree/config.yaml.
type ProjectConfig struct {
	Version    int              `yaml:"version"`
	Root       string           `yaml:"root"`
	Extensions ExtensionsConfig `yaml:"extensions"`
	Inspect    InspectConfig    `yaml:"inspect"`
	Log        LogConfig        `yaml:"log"`
}

// Config holds the runtime configuration for apptree.
type Config struct {
	// ProjectDir is the directory apptree was pointed at
	ProjectDir string

	// TreeDir is ProjectDir/.apptree
	TreeDir string

	// Project is the effective configuration: config.yaml with .env and
	// environment overrides applied.
	Project ProjectConfig

	// file is config.yaml as read from disk, without overrides. It is what
	// saveProjectConfig writes back.
	file ProjectConfig
}

// InitDir creates the .apptree directory structure in the given project directory.
//
// Structure created:
// .apptree/
// ├── config.yaml
// ├── extensions/   <- Declaration files (*.yaml, *.hcl, *.go)
// ├── logs/         <- apptree.log and the resolution journal
// └── snapshots/    <- Captured tree snapshots
func InitDir(projectDir string) error {
	treeDir := filepath.Join(projectDir, ProjectDirName)

	dirs := []string{
		filepath.Join(treeDir, defaultExtensionsDir),
		filepath.Join(treeDir, "logs"),
		filepath.Join(treeDir, "snapshots"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return ensureProjectConfig(filepath.Join(treeDir, "config.yaml"))
}

// NewConfig creates a new Config instance populated with project settings.
//
// Values are layered: built-in defaults, then .apptree/config.yaml, then
// .apptree/.env, then the process environment.
func NewConfig(projectDir string) (*Config, error) {
	abs, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("config: resolve project dir: %w", err)
	}
	cfg := &Config{
		ProjectDir: abs,
		TreeDir:    filepath.Join(abs, ProjectDirName),
		Project:    defaultProjectConfig(),
		file:       defaultProjectConfig(),
	}

	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	if err := cfg.loadEnvFile(); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	return cfg, nil
}

// ExtensionDirs returns the absolute directories scanned for declarations.
func (c *Config) ExtensionDirs() []string {
	dirs := make([]string, 0, len(c.Project.Extensions.Dirs))
	for _, dir := range c.Project.Extensions.Dirs {
		if resolved := resolvePath(c.TreeDir, dir); resolved != "" {
			dirs = append(dirs, resolved)
		}
	}
	return dirs
}

// IncludePatterns returns the glob patterns evaluated against ProjectDir.
func (c *Config) IncludePatterns() []string {
	return c.Project.Extensions.Include
}

// DisabledIDs returns the extension ids the project marks as disabled.
func (c *Config) DisabledIDs() []string {
	return c.Project.Extensions.Disabled
}

// RootID returns the configured root extension id.
func (c *Config) RootID() string {
	return c.Project.Root
}

// LogLevel returns the configured log level.
func (c *Config) LogLevel() string {
	return c.Project.Log.Level
}

// LogsDir returns the path to the logs directory
func (c *Config) LogsDir() string {
	return filepath.Join(c.TreeDir, "logs")
}

// SnapshotsDir returns the directory holding captured snapshots
func (c *Config) SnapshotsDir() string {
	return filepath.Join(c.TreeDir, "snapshots")
}

// JournalPath returns the resolution journal file.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "journal.log")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.TreeDir, "config.yaml")
}

// SetRoot updates the root extension id and persists it to .apptree/config.yaml.
// Only the root changes on disk; values that came from .env or the
// environment are not written.
func (c *Config) SetRoot(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("config: root id is required")
	}
	c.file.Root = id
	if err := c.saveProjectConfig(); err != nil {
		return err
	}
	c.Project.Root = id
	return nil
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.file = c.Project
			c.file.Extensions = c.Project.Extensions.clone()
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var parsed ProjectConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize()
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	c.file = parsed
	c.file.Extensions = parsed.Extensions.clone()
	return nil
}

// loadEnvFile reads .apptree/.env without clobbering variables that are
// already set in the process environment.
func (c *Config) loadEnvFile() error {
	path := filepath.Join(c.TreeDir, ".env")
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: stat %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if root := strings.TrimSpace(os.Getenv("APPTREE_ROOT")); root != "" {
		c.Project.Root = root
	}
	if level := strings.TrimSpace(os.Getenv("APPTREE_LOG_LEVEL")); level != "" {
		if validLogLevel(strings.ToLower(level)) {
			c.Project.Log.Level = strings.ToLower(level)
		}
	}
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Root:    DefaultRootID,
		Extensions: ExtensionsConfig{
			Dirs: []string{defaultExtensionsDir},
		},
		Log: LogConfig{Level: defaultLogLevel},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	if pc.Version == 0 {
		pc.Version = 1
	}
	if strings.TrimSpace(pc.Root) == "" {
		pc.Root = DefaultRootID
	}
	if pc.Extensions.Dirs == nil {
		pc.Extensions.Dirs = []string{defaultExtensionsDir}
	}
	if strings.TrimSpace(pc.Log.Level) == "" {
		pc.Log.Level = defaultLogLevel
	}
}

func (pc *ProjectConfig) normalize() {
	pc.Root = strings.TrimSpace(pc.Root)
	pc.Extensions.Dirs = trimAll(pc.Extensions.Dirs)
	pc.Extensions.Include = trimAll(pc.Extensions.Include)
	pc.Extensions.Disabled = trimAll(pc.Extensions.Disabled)
	pc.Inspect.Host = strings.TrimSpace(pc.Inspect.Host)
	pc.Log.Level = strings.ToLower(strings.TrimSpace(pc.Log.Level))
}

func (pc *ProjectConfig) validate() error {
	if pc.Version < 1 {
		return fmt.Errorf("config version must be >= 1")
	}
	if strings.ContainsAny(pc.Root, " \t\r\n") {
		return fmt.Errorf("root %q must not contain whitespace", pc.Root)
	}
	if pc.Inspect.Port < 0 || pc.Inspect.Port > 65535 {
		return fmt.Errorf("inspect.port must be between 0 and 65535")
	}
	if pc.Inspect.CacheSize < 0 {
		return fmt.Errorf("inspect.cache_size must not be negative")
	}
	if !validLogLevel(pc.Log.Level) {
		return fmt.Errorf("log.level must be one of debug, info, warn, error")
	}
	return nil
}

func validLogLevel(level string) bool {
	switch level {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func trimAll(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.WriteFile(path, []byte(defaultProjectConfigYAML), 0644)
}

func (c *Config) saveProjectConfig() error {
	if c == nil {
		return fmt.Errorf("config: nil receiver")
	}
	c.file.applyDefaults()
	c.file.normalize()
	if err := c.file.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(c.TreeDir, 0o755); err != nil {
		return fmt.Errorf("config: ensure %s dir: %w", ProjectDirName, err)
	}
	data, err := yaml.Marshal(c.file)
	if err != nil {
		return fmt.Errorf("config: encode config: %w", err)
	}
	if err := os.WriteFile(c.ProjectConfigPath(), data, 0644); err != nil {
		return fmt.Errorf("config: write project config: %w", err)
	}
	return nil
}
