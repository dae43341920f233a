package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()

	yaml := "interval_seconds: 1200\njournal_file: /var/lib/ipmon/journal.json\n"
	path := filepath.Join(dir, "config.yml")
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal("failed to write config:", err)
	}

	withFlags(t, path, filepath.Join(dir, "journal.json"), dir)

	store, cfg, err := loadConfig()
	if err != nil {
		t.Fatal("unexpected error:", err)
	}

	if cfg.JournalFile != filepath.Join(dir, "journal.json") {
		t.Errorf("journal override ignored, got %q", cfg.JournalFile)
	}
	if cfg.ScriptsDir != dir {
		t.Errorf("scripts override ignored, got %q", cfg.ScriptsDir)
	}
	if cfg.IntervalSeconds != 1200 {
		t.Errorf("unexpected interval %d", cfg.IntervalSeconds)
	}

	if stored := store.Current().JournalFile; stored != "/var/lib/ipmon/journal.json" {
		t.Errorf("override leaked into the store: %q", stored)
	}
}

func TestLoadConfigScriptsNotDir(t *testing.T) {
	dir := t.TempDir()

	file := filepath.Join(dir, "scripts")
	if err := os.WriteFile(file, nil, 0600); err != nil {
		t.Fatal("failed to write file:", err)
	}

	withFlags(t, filepath.Join(dir, "config.yml"), "", file)

	if _, _, err := loadConfig(); err == nil {
		t.Fatal("expected error for scripts path that is a file")
	}
}

func withFlags(t *testing.T, config, journal, scripts string) {
	t.Helper()

	oldConfig, oldJournal, oldScripts := configFile, journalFile, scriptsDir
	t.Cleanup(func() {
		configFile, journalFile, scriptsDir = oldConfig, oldJournal, oldScripts
	})

	configFile, journalFile, scriptsDir = config, journal, scripts
}

func TestParseArgs(t *testing.T) {
	withFlags(t, "", "", "")

	oldWait := lockWait
	t.Cleanup(func() { lockWait = oldWait })

	args := []string{"run", "--config", `C:\ProgramData\ipmon\config.yml`, "--wait", "5s"}
	if err := parseArgs(args); err != nil {
		t.Fatal("failed to parse:", err)
	}

	if configFile != `C:\ProgramData\ipmon\config.yml` {
		t.Errorf("config flag not parsed, got %q", configFile)
	}
	if lockWait != 5*time.Second {
		t.Errorf("wait flag not parsed, got %v", lockWait)
	}
}
