package plugins

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kingrea/apptree/internal/extension"
)

// DeclarationFile pairs a parsed declaration with its on-disk source.
//
// Path is the file the declaration came from. Files holding more than one
// declaration suffix it with "#n", counting from 1.
type DeclarationFile struct {
	Declaration extension.Declaration
	Path        string
}

// Declarations strips the source information, keeping discovery order.
func Declarations(files []DeclarationFile) []extension.Declaration {
	if len(files) == 0 {
		return nil
	}
	out := make([]extension.Declaration, len(files))
	for i, file := range files {
		out[i] = file.Declaration
	}
	return out
}

// FileOf returns the file part of a declaration path, dropping any "#n" suffix.
func FileOf(path string) string {
	if idx := strings.LastIndex(path, "#"); idx >= 0 {
		return path[:idx]
	}
	return path
}

// loaderFunc reads every declaration stored in a single file.
type loaderFunc func(path string) ([]DeclarationFile, error)

func loaderFor(name string) loaderFunc {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch {
	case isYAMLFile(lower):
		return LoadFile
	case strings.HasSuffix(lower, ".hcl"):
		return LoadHCLFile
	case strings.HasSuffix(lower, ".go") && !strings.HasSuffix(lower, "_test.go"):
		return LoadGoFile
	}
	return nil
}

// LoadPath loads a single declaration file, picking the loader from its extension.
func LoadPath(path string) ([]DeclarationFile, error) {
	load := loaderFor(filepath.Base(path))
	if load == nil {
		return nil, fmt.Errorf("plugin: %s is not a declaration file (want .yaml, .yml, .hcl or .go)", path)
	}
	return load(path)
}

// IsDeclarationFile reports whether name has an extension one of the loaders understands.
func IsDeclarationFile(name string) bool {
	return loaderFor(name) != nil
}

// finish validates and normalizes parsed declarations and stamps their sources.
func finish(path string, decls []extension.Declaration) ([]DeclarationFile, error) {
	clean := filepath.Clean(path)
	files := make([]DeclarationFile, 0, len(decls))
	for idx, decl := range decls {
		source := clean
		if len(decls) > 1 {
			source = fmt.Sprintf("%s#%d", clean, idx+1)
		}
		if err := decl.Validate(); err != nil {
			return nil, fmt.Errorf("plugin: %s: %w", source, err)
		}
		normalized := decl.Normalized()
		normalized.Source = source
		files = append(files, DeclarationFile{Declaration: normalized, Path: source})
	}
	return files, nil
}
