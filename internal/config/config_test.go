package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "winpatch.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected defaults, got error: %v", err)
	}

	def := Default()
	if cfg.AgeThreshold != def.AgeThreshold {
		t.Fatalf("expected default age threshold %d, got %d", def.AgeThreshold, cfg.AgeThreshold)
	}
	if cfg.CabDownloadUri != DefaultCabURL {
		t.Fatalf("expected default cab URL, got %q", cfg.CabDownloadUri)
	}
	if cfg.CanReboot {
		t.Fatal("expected CanReboot to default to false")
	}
}

func TestLoadExplicitMissingPathFails(t *testing.T) {
	viper.Reset()

	if _, err := Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing explicit config path")
	}
}

func TestLoadMalformedConfigFails(t *testing.T) {
	viper.Reset()

	path := writeConfig(t, `{"AgeThreshold": `)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	viper.Reset()

	path := writeConfig(t, `{
		"UpdateCab": false,
		"UseOfflineScan": true,
		"LogFile": "C:\\Patching\\run.log",
		"AgeThreshold": 30,
		"CanReboot": true,
		"OfflineServiceName": "Cab Scan",
		"CabDownloadUri": "http://updates.example.com/wsusscn2.cab",
		"FreeSpaceMinMB": 4096,
		"RebootDelaySec": 60
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.UpdateCab {
		t.Fatal("expected UpdateCab false")
	}
	if !cfg.UseOfflineScan {
		t.Fatal("expected UseOfflineScan true")
	}
	if cfg.LogFile != `C:\Patching\run.log` {
		t.Fatalf("unexpected LogFile: %q", cfg.LogFile)
	}
	if cfg.AgeThreshold != 30 {
		t.Fatalf("expected AgeThreshold 30, got %d", cfg.AgeThreshold)
	}
	if !cfg.CanReboot {
		t.Fatal("expected CanReboot true")
	}
	if cfg.OfflineServiceName != "Cab Scan" {
		t.Fatalf("unexpected OfflineServiceName: %q", cfg.OfflineServiceName)
	}
	if cfg.FreeSpaceMinMB != 4096 {
		t.Fatalf("expected FreeSpaceMinMB 4096, got %d", cfg.FreeSpaceMinMB)
	}
	if cfg.RebootDelaySec != 60 {
		t.Fatalf("expected RebootDelaySec 60, got %d", cfg.RebootDelaySec)
	}
	// Unset keys keep their defaults.
	if cfg.PatchDir != Default().PatchDir {
		t.Fatalf("expected default PatchDir, got %q", cfg.PatchDir)
	}
}

func TestCabPathJoinsPatchDir(t *testing.T) {
	cfg := &Config{PatchDir: filepath.Join("some", "dir")}
	want := filepath.Join("some", "dir", "wsusscn2.cab")
	if got := cfg.CabPath(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if !strings.HasSuffix(cfg.CabPath(), "wsusscn2.cab") {
		t.Fatal("cab path must end in wsusscn2.cab")
	}
}
