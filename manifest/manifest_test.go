package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "test-app"
version = "0.1.0"

[source]
dirs = ["src", "lib"]
entry = "src/main.paxy"

[build]
cache-dir = "build/units"
cache-db = "build/units.db"
debug = true
debug-out = "/tmp/paxy.debug"

[run]
timeout = "1m30s"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if len(m.Source.Dirs) != 2 {
		t.Errorf("source dirs count = %d, want 2", len(m.Source.Dirs))
	}
	if want := filepath.Join(m.Dir, "src", "main.paxy"); m.EntryPath() != want {
		t.Errorf("entry = %q, want %q", m.EntryPath(), want)
	}
	if want := filepath.Join(m.Dir, "build", "units"); m.CacheDir() != want {
		t.Errorf("cache dir = %q, want %q", m.CacheDir(), want)
	}
	if want := filepath.Join(m.Dir, "build", "units.db"); m.CacheDB() != want {
		t.Errorf("cache db = %q, want %q", m.CacheDB(), want)
	}
	if !m.Build.Debug {
		t.Error("build debug = false, want true")
	}
	if m.DebugOut() != "/tmp/paxy.debug" {
		t.Errorf("absolute debug-out changed to %q", m.DebugOut())
	}
	if m.Timeout() != 90*time.Second {
		t.Errorf("timeout = %v, want 1m30s", m.Timeout())
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "[project]\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != "." {
		t.Errorf("default source dirs = %v, want [.]", m.Source.Dirs)
	}
	if m.Project.Name != filepath.Base(dir) {
		t.Errorf("default name = %q, want the directory name", m.Project.Name)
	}
	if m.EntryPath() != "" || m.CacheDir() != "" || m.CacheDB() != "" || m.DebugOut() != "" {
		t.Error("unset paths should stay empty")
	}
	if m.Timeout() != 0 {
		t.Errorf("default timeout = %v", m.Timeout())
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[project\n", "parse error"},
		{"unknown key", "[build]\ncache = \"x\"\n", "unknown keys: build.cache"},
		{"bad timeout", "[run]\ntimeout = \"soon\"\n", "run.timeout"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tc.content)
			_, err := Load(dir)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("Load err = %v, want one containing %q", err, tc.want)
			}
		})
	}
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load without a manifest should fail")
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, "[project]\nname = \"found-project\"\n")

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no paxy.toml exists")
	}
}

func TestSourceDirPaths(t *testing.T) {
	m := &Manifest{
		Dir: "/app",
		Source: Source{
			Dirs: []string{"src", "/opt/lib"},
		},
	}

	paths := m.SourceDirPaths()
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0] != "/app/src" {
		t.Errorf("paths[0] = %q, want /app/src", paths[0])
	}
	if paths[1] != "/opt/lib" {
		t.Errorf("paths[1] = %q, want /opt/lib", paths[1])
	}
}

func TestSourceFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.paxy", "a.paxy", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.paxy"), 0755); err != nil {
		t.Fatal(err)
	}

	m := &Manifest{Dir: dir, Source: Source{Dirs: []string{"."}}}
	files, err := m.SourceFiles()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 || filepath.Base(files[0]) != "a.paxy" || filepath.Base(files[1]) != "b.paxy" {
		t.Errorf("SourceFiles = %v", files)
	}

	m.Source.Dirs = []string{"missing"}
	if _, err := m.SourceFiles(); err == nil {
		t.Error("a missing source directory should be reported")
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := &Manifest{
		Project: Project{Name: "demo", Version: "0.0.1"},
		Source:  Source{Dirs: []string{"src"}, Entry: "src/main.paxy"},
		Run:     Run{Timeout: "5s"},
	}
	if err := Write(dir, m); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := Write(dir, m); err == nil {
		t.Error("Write should refuse to overwrite a manifest")
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Project != m.Project || loaded.Source.Entry != m.Source.Entry || loaded.Timeout() != 5*time.Second {
		t.Errorf("round trip = %+v", loaded)
	}
}
