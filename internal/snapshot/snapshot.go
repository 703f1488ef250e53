// Package snapshot records a rendered tree on disk so later resolutions can
// be checked against it.
package snapshot

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"

	"github.com/kingrea/apptree/internal/graph"
)

// DefaultName is the snapshot written when no name is given.
const DefaultName = "tree"

// ErrNotFound is returned by Read when the snapshot file does not exist.
var ErrNotFound = errors.New("snapshot: not found")

// Snapshot is the persisted form of a resolved graph.
type Snapshot struct {
	Root        string   `yaml:"root"`
	Fingerprint string   `yaml:"fingerprint"`
	Nodes       int      `yaml:"nodes"`
	Tree        string   `yaml:"tree"`
	Orphans     []string `yaml:"orphans,omitempty"`
}

// Capture renders g and fingerprints the result.
func Capture(g *graph.Graph) Snapshot {
	s := Snapshot{
		Root:  g.Root().ID(),
		Nodes: g.Len(),
		Tree:  graph.Render(g.Root()),
	}
	for _, n := range g.Orphans() {
		s.Orphans = append(s.Orphans, graph.Render(n))
	}
	s.Fingerprint = fingerprint(s.Tree, s.Orphans)
	return s
}

// fingerprint hashes the tree and orphans with blake3. A NUL byte separates
// the parts since rendered trees never contain one.
func fingerprint(tree string, orphans []string) string {
	h := blake3.New(32, nil)
	h.Write([]byte(tree))
	for _, o := range orphans {
		h.Write([]byte{0})
		h.Write([]byte(o))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// PathFor returns the file used for the snapshot called name inside dir.
func PathFor(dir, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultName
	}
	if !strings.HasSuffix(name, ".yaml") {
		name += ".yaml"
	}
	return filepath.Join(dir, name)
}

// Write stores s at path, creating parent directories as needed.
func Write(path string, s Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("snapshot: ensure dir: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("snapshot: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", path, err)
	}
	return nil
}

// Read loads the snapshot stored at path.
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return Snapshot{}, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	var s Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("snapshot: decode %s: %w", path, err)
	}
	if s.Fingerprint == "" {
		return Snapshot{}, fmt.Errorf("snapshot: %s has no fingerprint", path)
	}
	return s, nil
}

// Compare reports whether got matches want. When it does not, the returned
// diff lists changed lines, "-" for want and "+" for got.
func Compare(want, got Snapshot) (string, bool) {
	if want.Fingerprint == got.Fingerprint && want.Root == got.Root {
		return "", true
	}
	return cmp.Diff(lines(want), lines(got)), false
}

func lines(s Snapshot) []string {
	out := []string{"root: " + s.Root}
	out = append(out, strings.Split(s.Tree, "\n")...)
	if len(s.Orphans) > 0 {
		out = append(out, "orphans:")
		for _, o := range s.Orphans {
			out = append(out, strings.Split(o, "\n")...)
		}
	}
	return out
}
