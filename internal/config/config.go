package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. PLANLENS_BAR_WIDTH.
const EnvPrefix = "PLANLENS"

// Config holds tunable thresholds for scoring, rendering and reports.
type Config struct {
	Scores   ScoreConfig   `json:"scores" yaml:"scores" mapstructure:"scores"`
	Heat     HeatConfig    `json:"heat" yaml:"heat" mapstructure:"heat"`
	Bar      BarConfig     `json:"bar" yaml:"bar" mapstructure:"bar"`
	Ranking  RankingConfig `json:"ranking" yaml:"ranking" mapstructure:"ranking"`
	Graph    GraphConfig   `json:"graph" yaml:"graph" mapstructure:"graph"`
	Insights InsightConfig `json:"insights" yaml:"insights" mapstructure:"insights"`
	Diff     DiffConfig    `json:"diff" yaml:"diff" mapstructure:"diff"`
	Log      LogConfig     `json:"log" yaml:"log" mapstructure:"log"`
}

// ScoreConfig controls score filtering.
type ScoreConfig struct {
	MinThreshold float64 `json:"min_threshold" yaml:"min_threshold" mapstructure:"min_threshold"`
}

// HeatConfig controls the continuous heat scale.
type HeatConfig struct {
	Breakpoint  float64 `json:"breakpoint" yaml:"breakpoint" mapstructure:"breakpoint"`
	LegendSteps int     `json:"legend_steps" yaml:"legend_steps" mapstructure:"legend_steps"`
}

// BarConfig controls bar geometry and colours.
type BarConfig struct {
	Width         int      `json:"width" yaml:"width" mapstructure:"width"`
	Height        int      `json:"height" yaml:"height" mapstructure:"height"`
	LabelMinWidth int      `json:"label_min_width" yaml:"label_min_width" mapstructure:"label_min_width"`
	Palette       []string `json:"palette" yaml:"palette" mapstructure:"palette"`
}

// RankingConfig controls the explanation table. A negative limit shows every row.
type RankingConfig struct {
	Limit int `json:"limit" yaml:"limit" mapstructure:"limit"`
}

// GraphConfig selects the plan graph fill mode.
type GraphConfig struct {
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`
}

// InsightConfig defines thresholds for insight generation.
type InsightConfig struct {
	QErrorWarning      float64 `json:"qerror_warning" yaml:"qerror_warning" mapstructure:"qerror_warning"`
	QErrorCritical     float64 `json:"qerror_critical" yaml:"qerror_critical" mapstructure:"qerror_critical"`
	FidelityWarning    float64 `json:"fidelity_warning" yaml:"fidelity_warning" mapstructure:"fidelity_warning"`
	DominantShare      float64 `json:"dominant_share" yaml:"dominant_share" mapstructure:"dominant_share"`
	CorrelationWarning float64 `json:"correlation_warning" yaml:"correlation_warning" mapstructure:"correlation_warning"`
}

// DiffConfig defines thresholds for explainer comparisons.
type DiffConfig struct {
	MinRankShift  int     `json:"min_rank_shift" yaml:"min_rank_shift" mapstructure:"min_rank_shift"`
	MinScoreDelta float64 `json:"min_score_delta" yaml:"min_score_delta" mapstructure:"min_score_delta"`
	MaxItems      int     `json:"max_items" yaml:"max_items" mapstructure:"max_items"`
	TopK          int     `json:"top_k" yaml:"top_k" mapstructure:"top_k"`
}

// LogConfig sets the default log level.
type LogConfig struct {
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}

var (
	mu     sync.RWMutex
	active = Default()
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Scores: ScoreConfig{
			MinThreshold: 0.01,
		},
		Heat: HeatConfig{
			Breakpoint:  0.33,
			LegendSteps: 10,
		},
		Bar: BarConfig{
			Width:         600,
			Height:        28,
			LabelMinWidth: 30,
		},
		Ranking: RankingConfig{
			Limit: 5,
		},
		Graph: GraphConfig{
			Mode: "nodeImportance",
		},
		Insights: InsightConfig{
			QErrorWarning:      2.0,
			QErrorCritical:     10.0,
			FidelityWarning:    0.3,
			DominantShare:      0.5,
			CorrelationWarning: 0.5,
		},
		Diff: DiffConfig{
			MinRankShift:  1,
			MinScoreDelta: 0.05,
			MaxItems:      8,
			TopK:          5,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Active returns the currently applied configuration.
func Active() Config {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// Use replaces the active configuration.
func Use(cfg Config) {
	mu.Lock()
	active = cfg
	mu.Unlock()
}

// Load reads configuration from path (JSON, YAML or TOML) on top of the
// defaults and applies PLANLENS_* environment overrides. Empty path skips the file.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Apply loads configuration from path and makes it active. Empty path resets to default.
func Apply(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	Use(cfg)
	return nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("scores.min_threshold", cfg.Scores.MinThreshold)
	v.SetDefault("heat.breakpoint", cfg.Heat.Breakpoint)
	v.SetDefault("heat.legend_steps", cfg.Heat.LegendSteps)
	v.SetDefault("bar.width", cfg.Bar.Width)
	v.SetDefault("bar.height", cfg.Bar.Height)
	v.SetDefault("bar.label_min_width", cfg.Bar.LabelMinWidth)
	v.SetDefault("bar.palette", cfg.Bar.Palette)
	v.SetDefault("ranking.limit", cfg.Ranking.Limit)
	v.SetDefault("graph.mode", cfg.Graph.Mode)
	v.SetDefault("insights.qerror_warning", cfg.Insights.QErrorWarning)
	v.SetDefault("insights.qerror_critical", cfg.Insights.QErrorCritical)
	v.SetDefault("insights.fidelity_warning", cfg.Insights.FidelityWarning)
	v.SetDefault("insights.dominant_share", cfg.Insights.DominantShare)
	v.SetDefault("insights.correlation_warning", cfg.Insights.CorrelationWarning)
	v.SetDefault("diff.min_rank_shift", cfg.Diff.MinRankShift)
	v.SetDefault("diff.min_score_delta", cfg.Diff.MinScoreDelta)
	v.SetDefault("diff.max_items", cfg.Diff.MaxItems)
	v.SetDefault("diff.top_k", cfg.Diff.TopK)
	v.SetDefault("log.level", cfg.Log.Level)
}
