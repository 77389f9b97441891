package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mickamy/planlens/test"
)

func TestApplyDefaultAndFile(t *testing.T) {
	Use(Default())
	t.Cleanup(func() { Use(Default()) })

	if Active().Scores.MinThreshold != 0.01 {
		t.Fatalf("expected default min threshold 0.01, got %v", Active().Scores.MinThreshold)
	}

	root := test.RootPath(t)
	if err := Apply(filepath.Join(root, "samples", "config.example.yaml")); err != nil {
		t.Fatalf("apply config: %v", err)
	}

	cfg := Active()
	if cfg.Scores.MinThreshold != 0.02 {
		t.Fatalf("expected min threshold from sample config, got %v", cfg.Scores.MinThreshold)
	}
	if cfg.Bar.Width != 480 {
		t.Fatalf("expected bar width from sample config, got %v", cfg.Bar.Width)
	}
	if cfg.Diff.MaxItems != 12 {
		t.Fatalf("expected diff max items from sample config, got %v", cfg.Diff.MaxItems)
	}
	if cfg.Heat.LegendSteps != 10 {
		t.Fatalf("expected unset keys to keep defaults, got %v", cfg.Heat.LegendSteps)
	}

	if err := Apply(""); err != nil {
		t.Fatalf("reset config: %v", err)
	}
	if Active().Diff.MaxItems != Default().Diff.MaxItems {
		t.Fatalf("expected defaults restored")
	}
}

func TestApplyJSON(t *testing.T) {
	t.Cleanup(func() { Use(Default()) })

	if err := Apply(filepath.Join(test.RootPath(t), "samples", "config.example.json")); err != nil {
		t.Fatalf("apply config: %v", err)
	}
	cfg := Active()
	if cfg.Ranking.Limit != -1 {
		t.Fatalf("expected ranking limit -1, got %d", cfg.Ranking.Limit)
	}
	if cfg.Graph.Mode != "nodeTypes" {
		t.Fatalf("expected graph mode from json, got %q", cfg.Graph.Mode)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("PLANLENS_BAR_WIDTH", "320")
	t.Setenv("PLANLENS_HEAT_BREAKPOINT", "0.5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Bar.Width != 320 {
		t.Fatalf("expected env bar width, got %d", cfg.Bar.Width)
	}
	if cfg.Heat.Breakpoint != 0.5 {
		t.Fatalf("expected env breakpoint, got %v", cfg.Heat.Breakpoint)
	}
}

func TestApplyMissingFile(t *testing.T) {
	if err := Apply(filepath.Join(os.TempDir(), "does-not-exist.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestApplyInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("bar: [unclosed"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := Apply(path); err == nil {
		t.Fatalf("expected parse error")
	}
}
