package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ShayCichocki/digestflow/internal/digest"
	"github.com/ShayCichocki/digestflow/internal/executor"
	"github.com/ShayCichocki/digestflow/internal/state"
)

func writeConfig(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Digest.Enzyme != "trypsin" {
		t.Errorf("expected default enzyme 'trypsin', got %q", cfg.Digest.Enzyme)
	}
	if cfg.Digest.MissedCleavages != 0 || cfg.Digest.MinLength != 4 || cfg.Digest.MaxLength != 75 {
		t.Errorf("unexpected digest defaults %+v", cfg.Digest)
	}
	if cfg.Count.AminoAcid != "C" {
		t.Errorf("expected amino acid 'C', got %q", cfg.Count.AminoAcid)
	}
	if cfg.Executor.Name != executor.NameDefault {
		t.Errorf("expected executor %q, got %q", executor.NameDefault, cfg.Executor.Name)
	}
	if cfg.Executor.RetryBackoff != time.Second {
		t.Errorf("expected retry backoff 1s, got %v", cfg.Executor.RetryBackoff)
	}
	if cfg.Paths.DataDir != "data" {
		t.Errorf("expected data dir 'data', got %q", cfg.Paths.DataDir)
	}
	if !cfg.Cache.Enabled || cfg.Cache.Driver != state.DriverPureGo {
		t.Errorf("unexpected cache defaults %+v", cfg.Cache)
	}
	if cfg.Watch.Debounce != 500*time.Millisecond {
		t.Errorf("expected debounce 500ms, got %v", cfg.Watch.Debounce)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	writeConfig(t, configPath, `
digest:
  enzyme: Lys-C
  missed_cleavages: 2
count:
  amino_acid: M
executor:
  name: threads
  workers: 3
  retries: 2
  retry_backoff: 250ms
paths:
  data_dir: out
cache:
  enabled: false
  driver: sqlite3
watch:
  debounce: 2s
`)

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.Digest.Enzyme != "Lys-C" || cfg.Digest.MissedCleavages != 2 {
		t.Errorf("unexpected digest config %+v", cfg.Digest)
	}
	if cfg.Digest.MinLength != 4 || cfg.Digest.MaxLength != 75 {
		t.Errorf("unset keys should keep defaults, got %+v", cfg.Digest)
	}
	if cfg.Count.AminoAcid != "M" {
		t.Errorf("expected amino acid 'M', got %q", cfg.Count.AminoAcid)
	}
	if cfg.Executor.Name != "threads" || cfg.Executor.Workers != 3 || cfg.Executor.Retries != 2 {
		t.Errorf("unexpected executor config %+v", cfg.Executor)
	}
	if cfg.Executor.RetryBackoff != 250*time.Millisecond {
		t.Errorf("expected backoff 250ms, got %v", cfg.Executor.RetryBackoff)
	}
	if cfg.Paths.DataDir != "out" {
		t.Errorf("expected data dir 'out', got %q", cfg.Paths.DataDir)
	}
	if cfg.Cache.Enabled || cfg.Cache.Driver != state.DriverCgo {
		t.Errorf("unexpected cache config %+v", cfg.Cache)
	}
	if cfg.Watch.Debounce != 2*time.Second {
		t.Errorf("expected debounce 2s, got %v", cfg.Watch.Debounce)
	}

	p := cfg.Params()
	if p.Enzyme != "Lys-C" || p.MissedCleavages != 2 || p.AminoAcid != "M" {
		t.Errorf("unexpected params %+v", p)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"unknown executor", "executor:\n  name: batch\n", executor.ErrUnknownExecutor},
		{"unknown driver", "cache:\n  driver: postgres\n", state.ErrUnknownDriver},
		{"bad range", "digest:\n  min_length: 80\n", digest.ErrInvalidRange},
		{"bad pattern", "digest:\n  enzyme: \"[KR\"\n", digest.ErrInvalidPattern},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			writeConfig(t, path, tt.content)
			if _, err := LoadFromPath(path); !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestLoad_Precedence(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	writeConfig(t, filepath.Join(xdg, "digestflow", "config.yaml"), `
digest:
  enzyme: Glu-C
  missed_cleavages: 1
count:
  amino_acid: W
`)

	project := t.TempDir()
	writeConfig(t, filepath.Join(project, ProjectFile), `
digest:
  missed_cleavages: 3
`)
	nested := filepath.Join(project, "sub", "dir")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	chdir(t, nested)
	t.Setenv("DIGESTFLOW_COUNT_AMINO_ACID", "Y")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Digest.Enzyme != "Glu-C" {
		t.Errorf("user config enzyme lost, got %q", cfg.Digest.Enzyme)
	}
	if cfg.Digest.MissedCleavages != 3 {
		t.Errorf("project config should override user config, got %d", cfg.Digest.MissedCleavages)
	}
	if cfg.Count.AminoAcid != "Y" {
		t.Errorf("environment should override files, got %q", cfg.Count.AminoAcid)
	}

	got, _ := filepath.EvalSymlinks(GetProjectConfigPath())
	want, _ := filepath.EvalSymlinks(filepath.Join(project, ProjectFile))
	if got != want {
		t.Errorf("GetProjectConfigPath() = %q, want %q", got, want)
	}
}

func TestLoad_NoFiles(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Digest.Enzyme != Default().Digest.Enzyme || cfg.Executor.Name != executor.NameDefault {
		t.Errorf("expected defaults, got %+v", cfg)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")

	dir := getUserConfigDir()
	expected := "/custom/config/digestflow"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
	if got := GetUserConfigPath(); got != filepath.Join(expected, "config.yaml") {
		t.Errorf("GetUserConfigPath() = %q", got)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Digest.Enzyme = "chymotrypsin"
	cfg.Executor.Name = executor.NameProcess
	cfg.Executor.RetryBackoff = 3 * time.Second
	cfg.Cache.Enabled = false

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("reloaded config = %+v, want %+v", loaded, cfg)
	}
}

func TestStatePath(t *testing.T) {
	cfg := Default()
	if got := cfg.StatePath("/proj"); got != state.ProjectDBPath("/proj") {
		t.Errorf("StatePath = %q", got)
	}
	cfg.Cache.Path = "/var/cache/df.db"
	if got := cfg.StatePath("/proj"); got != "/var/cache/df.db" {
		t.Errorf("StatePath with override = %q", got)
	}
}

// chdir changes the working directory for the duration of the test,
// mirroring testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
