package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "stitch.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write stitch.toml: %v", err)
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeManifest(t, `
[project]
name = "demo"
version = "0.1.0"

[optimizer]
parallel = true
workers = 4

[cache]
enabled = true
path = "build/opt.db"

[log]
verbosity = 2
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Project.Name != "demo" || m.Project.Version != "0.1.0" {
		t.Errorf("project = %+v", m.Project)
	}
	if !m.Optimizer.Parallel || m.Optimizer.Workers != 4 {
		t.Errorf("optimizer = %+v", m.Optimizer)
	}
	if !m.Cache.Enabled || m.Cache.Path != "build/opt.db" {
		t.Errorf("cache = %+v", m.Cache)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("log = %+v", m.Log)
	}
	if m.Dir == "" {
		t.Error("Dir should be set at load time")
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := writeManifest(t, `
[project]
name = "demo"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.Cache.Path == "" {
		t.Error("cache path default not applied")
	}
	if m.Optimizer.Parallel {
		t.Error("parallel should default to false")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load should fail when stitch.toml is missing")
	}
}

func TestLoadBadToml(t *testing.T) {
	dir := writeManifest(t, `[project`)

	_, err := Load(dir)
	if err == nil {
		t.Fatal("Load should fail on malformed TOML")
	}
	if !strings.Contains(err.Error(), "stitch.toml") {
		t.Errorf("error should name the file: %v", err)
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	if m.Cache.Path == "" {
		t.Error("Default should fill in the cache path")
	}
}
