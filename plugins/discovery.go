package plugins

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kingrea/apptree/internal/config"
)

// LoadDir scans a directory for *.yaml, *.yml, *.hcl and *.go declarations.
// Files are read in name order and subdirectories are ignored.
// Missing directories are treated as "no extensions" to simplify startup.
func LoadDir(dir string) ([]DeclarationFile, error) {
	return newCollector().dir(dir)
}

// Glob loads every declaration file under root matching one of patterns.
// Patterns use doublestar syntax ("**" spans directories) and are relative to
// root. Matches are loaded pattern by pattern, each pattern in lexical order;
// files matched by more than one pattern are only loaded once.
func Glob(root string, patterns []string) ([]DeclarationFile, error) {
	return newCollector().glob(root, patterns)
}

// Discover loads the declarations a project configures: every extension
// directory first, then the include globs. Files reached twice are loaded once.
// Ids listed under extensions.disabled are marked Disabled.
func Discover(cfg *config.Config) ([]DeclarationFile, error) {
	if cfg == nil {
		return nil, fmt.Errorf("plugin: nil config")
	}
	c := newCollector()
	var files []DeclarationFile
	for _, dir := range cfg.ExtensionDirs() {
		loaded, err := c.dir(dir)
		if err != nil {
			return nil, err
		}
		files = append(files, loaded...)
	}
	globbed, err := c.glob(cfg.ProjectDir, cfg.IncludePatterns())
	if err != nil {
		return nil, err
	}
	files = append(files, globbed...)
	return ApplyDisabled(files, cfg.DisabledIDs()), nil
}

// ApplyDisabled marks the declarations whose id appears in ids as disabled.
// Unknown ids are ignored.
func ApplyDisabled(files []DeclarationFile, ids []string) []DeclarationFile {
	if len(ids) == 0 {
		return files
	}
	disabled := make(map[string]bool, len(ids))
	for _, id := range ids {
		disabled[strings.TrimSpace(id)] = true
	}
	for i := range files {
		if disabled[files[i].Declaration.ID] {
			files[i].Declaration.Disabled = true
		}
	}
	return files
}

// collector remembers which files it has already loaded.
type collector struct {
	seen map[string]bool
}

func newCollector() *collector {
	return &collector{seen: make(map[string]bool)}
}

func (c *collector) dir(dir string) ([]DeclarationFile, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("plugin: read %s: %w", trimmed, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsDeclarationFile(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	var files []DeclarationFile
	for _, name := range names {
		loaded, err := c.file(filepath.Join(trimmed, name))
		if err != nil {
			return nil, err
		}
		files = append(files, loaded...)
	}
	return files, nil
}

func (c *collector) glob(root string, patterns []string) ([]DeclarationFile, error) {
	if len(patterns) == 0 {
		return nil, nil
	}
	fsys := os.DirFS(root)
	var files []DeclarationFile
	for _, pattern := range patterns {
		pattern = filepath.ToSlash(strings.TrimSpace(pattern))
		if pattern == "" {
			continue
		}
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("plugin: invalid include pattern %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("plugin: glob %q: %w", pattern, err)
		}
		sort.Strings(matches)
		for _, match := range matches {
			if !IsDeclarationFile(match) {
				continue
			}
			loaded, err := c.file(filepath.Join(root, filepath.FromSlash(match)))
			if err != nil {
				return nil, err
			}
			files = append(files, loaded...)
		}
	}
	return files, nil
}

func (c *collector) file(path string) ([]DeclarationFile, error) {
	key := filepath.Clean(path)
	if abs, err := filepath.Abs(key); err == nil {
		key = abs
	}
	if c.seen[key] {
		return nil, nil
	}
	c.seen[key] = true
	return LoadPath(path)
}
