package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/goleak"

	"github.com/unbound-ml/unbound/internal/capmode"
)

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	if err != nil {
		t.Fatalf("LoadWithViper() failed: %v", err)
	}

	if cfg.Dispatch.Mode != "structural" {
		t.Errorf("expected default mode 'structural', got %q", cfg.Dispatch.Mode)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default level 'info', got %q", cfg.Logging.Level)
	}
	if cfg.Parallel.MinChunkSize != 1024 {
		t.Errorf("expected default min_chunk_size 1024, got %d", cfg.Parallel.MinChunkSize)
	}
	if cfg.Parallel.Workers != 0 {
		t.Errorf("expected default workers 0, got %d", cfg.Parallel.Workers)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "unbound.toml")
	content := "[dispatch]\nmode = \"explicit\"\n\n[logging]\nlevel = \"debug\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}

	if cfg.Dispatch.Mode != "explicit" {
		t.Errorf("expected mode 'explicit', got %q", cfg.Dispatch.Mode)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected level 'debug', got %q", cfg.Logging.Level)
	}
	// Unset sections keep their defaults.
	if cfg.Parallel.MinChunkSize != 1024 {
		t.Errorf("expected default min_chunk_size 1024, got %d", cfg.Parallel.MinChunkSize)
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "defaults are valid",
			config: Config{
				Dispatch: DispatchConfig{Mode: "structural"},
				Logging:  LoggingConfig{Level: "info"},
			},
			wantErr: false,
		},
		{
			name: "unknown mode",
			config: Config{
				Dispatch: DispatchConfig{Mode: "lenient"},
				Logging:  LoggingConfig{Level: "info"},
			},
			wantErr: true,
		},
		{
			name: "bad logging level",
			config: Config{
				Dispatch: DispatchConfig{Mode: "structural"},
				Logging:  LoggingConfig{Level: "loud"},
			},
			wantErr: true,
		},
		{
			name: "negative workers",
			config: Config{
				Dispatch: DispatchConfig{Mode: "structural"},
				Logging:  LoggingConfig{Level: "info"},
				Parallel: ParallelConfig{Workers: -1},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplySetsCapabilityMode(t *testing.T) {
	defer capmode.Set(capmode.Structural)

	cfg := &Config{Dispatch: DispatchConfig{Mode: "explicit"}}
	if err := Apply(cfg); err != nil {
		t.Fatalf("Apply() failed: %v", err)
	}
	if capmode.Get() != capmode.Explicit {
		t.Errorf("expected Explicit mode after Apply, got %v", capmode.Get())
	}

	bad := &Config{Dispatch: DispatchConfig{Mode: "whatever"}}
	if err := Apply(bad); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestParallelConfigTranslation(t *testing.T) {
	cfg := &Config{Parallel: ParallelConfig{Workers: 2, MinChunkSize: 64}}
	p := cfg.ParallelConfig()
	if p.NumWorkers != 2 || p.MinChunkSize != 64 || !p.Enabled {
		t.Errorf("unexpected parallel config: %+v", p)
	}

	single := &Config{Parallel: ParallelConfig{Workers: 1}}
	if single.ParallelConfig().Enabled {
		t.Error("one worker should disable parallelism")
	}

	// Zero values fall back to CPU-count defaults.
	auto := &Config{}
	p = auto.ParallelConfig()
	if p.NumWorkers < 1 || p.MinChunkSize != 1024 {
		t.Errorf("unexpected auto parallel config: %+v", p)
	}
}

func TestUpdateModePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := UpdateMode(path, capmode.Explicit); err != nil {
		t.Fatalf("UpdateMode() failed: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}
	if cfg.Dispatch.Mode != "explicit" {
		t.Errorf("expected persisted mode 'explicit', got %q", cfg.Dispatch.Mode)
	}
}

func TestUpdateModeKeepsOtherSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "[logging]\nlevel = \"debug\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := UpdateMode(path, capmode.Explicit); err != nil {
		t.Fatalf("UpdateMode() failed: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level not preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Dispatch.Mode != "explicit" {
		t.Errorf("expected mode 'explicit', got %q", cfg.Dispatch.Mode)
	}

	// The original file was rotated into a backup.
	if _, err := os.Stat(path + ".back1"); err != nil {
		t.Errorf("expected .back1 after save: %v", err)
	}
}

func TestBackupRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	modes := []capmode.Mode{capmode.Explicit, capmode.Structural, capmode.Explicit, capmode.Structural}
	for _, m := range modes {
		if err := UpdateMode(path, m); err != nil {
			t.Fatalf("UpdateMode() failed: %v", err)
		}
	}

	for _, suffix := range []string{".back1", ".back2", ".back3"} {
		if _, err := os.Stat(path + suffix); err != nil {
			t.Errorf("expected backup %s: %v", suffix, err)
		}
	}
}

func TestIsBackupFile(t *testing.T) {
	if !isBackupFile("/home/x/.unbound/config.toml.back2") {
		t.Error("expected .back2 to be a backup file")
	}
	if isBackupFile("/home/x/.unbound/config.toml") {
		t.Error("config.toml is not a backup file")
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[dispatch]\nmode = \"structural\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	w.debouncePeriod = 20 * time.Millisecond

	modes := make(chan string, 4)
	w.OnReload(func(cfg *Config) error {
		modes <- cfg.Dispatch.Mode
		return nil
	})
	w.Start()

	if err := os.WriteFile(path, []byte("[dispatch]\nmode = \"explicit\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case mode := <-modes:
		if mode != "explicit" {
			t.Errorf("expected reloaded mode 'explicit', got %q", mode)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}

func TestWatcherIgnoresOwnWrite(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[dispatch]\nmode = \"structural\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(path)
	if err != nil {
		t.Fatalf("NewWatcher() failed: %v", err)
	}
	w.debouncePeriod = 20 * time.Millisecond

	modes := make(chan string, 4)
	w.OnReload(func(cfg *Config) error {
		modes <- cfg.Dispatch.Mode
		return nil
	})
	w.Start()

	w.MarkOwnWrite()
	if err := os.WriteFile(path, []byte("[dispatch]\nmode = \"explicit\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case mode := <-modes:
		t.Errorf("own write should not trigger reload, got %q", mode)
	case <-time.After(300 * time.Millisecond):
	}

	// The next external write reloads normally.
	if err := os.WriteFile(path, []byte("[dispatch]\nmode = \"structural\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case mode := <-modes:
		if mode != "structural" {
			t.Errorf("expected reloaded mode 'structural', got %q", mode)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload callback")
	}

	if err := w.Stop(); err != nil {
		t.Errorf("Stop() failed: %v", err)
	}
}
