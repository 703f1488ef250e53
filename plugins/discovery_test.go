package plugins

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kingrea/apptree/internal/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func ids(files []DeclarationFile) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Declaration.ID)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLoadDirMixedFormats(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b-nav.hcl"), sampleHCL)
	writeFile(t, filepath.Join(dir, "a-pages.yaml"), sampleList)
	writeFile(t, filepath.Join(dir, "c-more.go"), goExtensionSource)
	writeFile(t, filepath.Join(dir, "README.md"), "# not a declaration\n")
	writeFile(t, filepath.Join(dir, "nested", "skip.yaml"), "id: nested\n")

	files, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	want := []string{"page-home", "page-settings", "nav", "legacy-nav", "app", "page-home", "page-settings"}
	if got := ids(files); !equalStrings(got, want) {
		t.Fatalf("unexpected ids: %v", got)
	}
}

func TestLoadDirMissing(t *testing.T) {
	files, err := LoadDir(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("expected missing dir to be ignored, got %v", err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %d", len(files))
	}
}

func TestLoadDirPropagatesErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.yaml"), "id: [\n")
	if _, err := LoadDir(dir); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestGlobDeduplicates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "packages", "nav", "extensions", "nav.yaml"), sampleDeclaration)
	writeFile(t, filepath.Join(root, "packages", "pages", "extensions", "pages.yaml"), sampleList)
	writeFile(t, filepath.Join(root, "packages", "pages", "notes.txt"), "ignored")

	files, err := Glob(root, []string{"packages/**/extensions/*.yaml", "packages/nav/**/*.yaml", "packages/**/*.txt"})
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if got := ids(files); !equalStrings(got, []string{"nav", "page-home", "page-settings"}) {
		t.Fatalf("unexpected ids: %v", got)
	}

	if _, err := Glob(root, []string{"packages/[unclosed"}); err == nil {
		t.Fatalf("expected invalid pattern error")
	}
}

func TestDiscoverAppliesConfig(t *testing.T) {
	root := t.TempDir()
	if err := config.InitDir(root); err != nil {
		t.Fatalf("init: %v", err)
	}
	extDir := filepath.Join(root, config.ProjectDirName, "extensions")
	writeFile(t, filepath.Join(extDir, "app.yaml"), "id: app\n")
	writeFile(t, filepath.Join(extDir, "nav.hcl"), sampleHCL[:len(sampleHCL)-len("\nextension \"app\" {}\n")])
	writeFile(t, filepath.Join(root, "packages", "pages", "pages.yaml"), sampleList)

	cfg := &config.Config{
		ProjectDir: root,
		TreeDir:    filepath.Join(root, config.ProjectDirName),
		Project: config.ProjectConfig{
			Version: 1,
			Root:    "app",
			Extensions: config.ExtensionsConfig{
				Dirs:     []string{"extensions"},
				Include:  []string{"packages/**/*.yaml", ".apptree/extensions/*.yaml"},
				Disabled: []string{"page-home"},
			},
		},
	}
	files, err := Discover(cfg)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	want := []string{"app", "nav", "legacy-nav", "page-home", "page-settings"}
	if got := ids(files); !equalStrings(got, want) {
		t.Fatalf("unexpected ids: %v", got)
	}
	if !files[3].Declaration.Disabled || !files[2].Declaration.Disabled || files[1].Declaration.Disabled {
		t.Fatalf("unexpected disabled flags: %+v", files)
	}
	decls := Declarations(files)
	if len(decls) != len(files) || decls[0].Source == "" {
		t.Fatalf("unexpected declarations: %+v", decls)
	}
}
