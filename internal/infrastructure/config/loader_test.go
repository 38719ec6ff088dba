package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/felixgeelhaar/grcov/internal/application"
)

func TestLoadConfig(t *testing.T) {
	content := "roots:\n  - coverage/\nbranch: true\nignore:\n  - internal/generated/*\noutput_types:\n  - text\n  - json\n"
	tmp := t.TempDir()
	path := filepath.Join(tmp, ".grcov.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Loader{}.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Branch {
		t.Fatalf("expected branch: true")
	}
	if len(cfg.Roots) != 1 || cfg.Roots[0] != "coverage/" {
		t.Fatalf("expected roots [coverage/], got %v", cfg.Roots)
	}
	if len(cfg.OutputTypes) != 2 {
		t.Fatalf("expected 2 output types")
	}
}

func TestLoadConfigExtends(t *testing.T) {
	tmp := t.TempDir()
	parentPath := filepath.Join(tmp, "base.yaml")
	parent := "roots:\n  - base/\nprecision: 2\nthreads: 4\n"
	if err := os.WriteFile(parentPath, []byte(parent), 0o644); err != nil {
		t.Fatalf("write parent: %v", err)
	}

	childPath := filepath.Join(tmp, ".grcov.yaml")
	child := "extends: base.yaml\nroots:\n  - child/\nbranch: true\n"
	if err := os.WriteFile(childPath, []byte(child), 0o644); err != nil {
		t.Fatalf("write child: %v", err)
	}

	cfg, err := Loader{}.Load(childPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Precision != 2 || cfg.Threads != 4 {
		t.Fatalf("expected inherited precision/threads, got %+v", cfg)
	}
	if !cfg.Branch {
		t.Fatalf("expected child branch override")
	}
	if len(cfg.Roots) != 2 {
		t.Fatalf("expected roots to append across extends, got %v", cfg.Roots)
	}
}

func TestLoadConfigExtendsCycle(t *testing.T) {
	tmp := t.TempDir()
	aPath := filepath.Join(tmp, "a.yaml")
	bPath := filepath.Join(tmp, "b.yaml")
	if err := os.WriteFile(aPath, []byte("extends: b.yaml\n"), 0o644); err != nil {
		t.Fatalf("write a: %v", err)
	}
	if err := os.WriteFile(bPath, []byte("extends: a.yaml\n"), 0o644); err != nil {
		t.Fatalf("write b: %v", err)
	}

	if _, err := (Loader{}).Load(aPath); err == nil {
		t.Fatalf("expected circular inheritance error")
	}
}

func TestWriteConfig(t *testing.T) {
	cfg := dummyConfig()
	var buf bytes.Buffer
	if err := Write(&buf, cfg); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(buf.String(), "roots:") {
		t.Fatalf("expected roots block, got %s", buf.String())
	}
}

func dummyConfig() application.Config {
	return application.Config{
		Roots:   []string{"coverage/"},
		Branch:  true,
		Ignore:  []string{"internal/generated/*"},
		Threads: 4,
	}
}

func TestExistsMissing(t *testing.T) {
	ok, err := (Loader{}).Exists(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if ok {
		t.Fatalf("expected missing to be false")
	}
}

func TestExistsPresent(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "config.yaml")
	if err := os.WriteFile(path, []byte("roots: []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ok, err := (Loader{}).Exists(path)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !ok {
		t.Fatalf("expected exists to be true")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, ".grcov.yaml")
	if err := os.WriteFile(path, []byte(":bad"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := (Loader{}).Load(path); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFindConfigFromNotFound(t *testing.T) {
	tmp := t.TempDir()
	if _, err := FindConfigFrom(tmp); err == nil {
		t.Fatalf("expected config-not-found error")
	}
}

func TestFindConfigFromFound(t *testing.T) {
	tmp := t.TempDir()
	sub := filepath.Join(tmp, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(tmp, ".grcov.yaml")
	if err := os.WriteFile(cfgPath, []byte("roots: []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	found, err := FindConfigFrom(sub)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found != cfgPath {
		t.Fatalf("expected %s, got %s", cfgPath, found)
	}
}
