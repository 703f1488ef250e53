package plugins

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kingrea/apptree/internal/extension"
)

// extensionList is the wrapper form: a document holding an "extensions" sequence.
type extensionList struct {
	Extensions []extension.Declaration `yaml:"extensions"`
}

// ParseDeclarationsYAML decodes every declaration in a YAML payload.
//
// Each document is either a single declaration or a mapping with an
// "extensions" list. Multi-document streams are read in order and empty
// documents are skipped. Declarations are returned as written; callers
// validate them.
func ParseDeclarationsYAML(data []byte) ([]extension.Declaration, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("plugin: declaration payload is empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var decls []extension.Declaration
	for doc := 1; ; doc++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("plugin: decode document %d: %w", doc, err)
		}
		parsed, err := decodeDocument(&node)
		if err != nil {
			return nil, fmt.Errorf("plugin: decode document %d: %w", doc, err)
		}
		decls = append(decls, parsed...)
	}
	if len(decls) == 0 {
		return nil, fmt.Errorf("plugin: payload declares no extensions")
	}
	return decls, nil
}

func decodeDocument(node *yaml.Node) ([]extension.Declaration, error) {
	body := node
	if body.Kind == yaml.DocumentNode {
		if len(body.Content) == 0 {
			return nil, nil
		}
		body = body.Content[0]
	}
	switch body.Kind {
	case yaml.ScalarNode:
		if body.Tag == "!!null" {
			return nil, nil
		}
		return nil, fmt.Errorf("expected a mapping, got scalar %q", body.Value)
	case yaml.MappingNode:
	default:
		return nil, fmt.Errorf("expected a mapping at line %d", body.Line)
	}
	if hasKey(body, "extensions") {
		var list extensionList
		if err := body.Decode(&list); err != nil {
			return nil, err
		}
		return list.Extensions, nil
	}
	var decl extension.Declaration
	if err := body.Decode(&decl); err != nil {
		return nil, err
	}
	return []extension.Declaration{decl}, nil
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}

// LoadFile reads a YAML file from disk and returns its validated declarations.
func LoadFile(path string) ([]DeclarationFile, error) {
	data, err := readDeclarationFile(path)
	if err != nil {
		return nil, err
	}
	decls, err := ParseDeclarationsYAML(data)
	if err != nil {
		return nil, fmt.Errorf("plugin: %s: %w", path, err)
	}
	return finish(path, decls)
}

func readDeclarationFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("plugin: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("plugin: read %s: %w", path, err)
	}
	return data, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}
