package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	// Point the search path at an empty directory so no config file is found.
	wd, _ := os.Getwd()
	tmp := t.TempDir()
	if err := os.Chdir(tmp); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("database.driver = %s, want sqlite", cfg.Database.Driver)
	}
	if cfg.Thumbs.Width != 480 {
		t.Errorf("thumbs.width = %d, want 480", cfg.Thumbs.Width)
	}
	if cfg.Thumbs.Concurrency != 2 {
		t.Errorf("thumbs.concurrency = %d, want 2", cfg.Thumbs.Concurrency)
	}
	if !cfg.Semantic.Enabled {
		t.Error("semantic.enabled should default to true")
	}
	if cfg.Semantic.Dimensions != 256 {
		t.Errorf("semantic.dimensions = %d, want 256", cfg.Semantic.Dimensions)
	}
	if cfg.Semantic.Threshold != 0.35 {
		t.Errorf("semantic.threshold = %v, want 0.35", cfg.Semantic.Threshold)
	}
	if cfg.Archive.Enabled {
		t.Error("archive.enabled should default to false")
	}
	if got := cfg.Library.Budget(); got != 20*1024*1024*1024 {
		t.Errorf("default budget = %d, want 20 GiB", got)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 9090
library:
  root: /srv/media
  budget_gb: 5
thumbs:
  async: false
  width: 320
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Library.Root != "/srv/media" {
		t.Errorf("library.root = %s", cfg.Library.Root)
	}
	if cfg.Thumbs.Async {
		t.Error("thumbs.async should be false")
	}
	if cfg.Thumbs.Width != 320 {
		t.Errorf("thumbs.width = %d, want 320", cfg.Thumbs.Width)
	}
}

func TestBudgetResolution(t *testing.T) {
	testCases := []struct {
		name string
		cfg  LibraryConfig
		want int64
	}{
		{name: "bytes wins over gb", cfg: LibraryConfig{BudgetBytes: 1000, BudgetGB: 2}, want: 1000},
		{name: "gb form converted", cfg: LibraryConfig{BudgetGB: 2}, want: 2 * 1024 * 1024 * 1024},
		{name: "fractional gb", cfg: LibraryConfig{BudgetGB: 0.5}, want: 512 * 1024 * 1024},
		{name: "unset means unlimited", cfg: LibraryConfig{}, want: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.Budget(); got != tc.want {
				t.Errorf("Budget() = %d, want %d", got, tc.want)
			}
		})
	}
}
