package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/mlowicki/chartwell/internal/chart"
)

type UIConfig struct {
	RefreshIntervalSeconds int    `json:"refresh_interval_seconds"`
	DefaultPeriod          string `json:"default_period"`
}

type Config struct {
	PatientID            string   `json:"patient_id"`
	StorePath            string   `json:"store_path"`
	ExportDir            string   `json:"export_dir"`
	Theme                string   `json:"theme"`
	UI                   UIConfig `json:"ui"`
	PreferPreciseAverage *bool    `json:"prefer_precise_average,omitempty"`
	Metrics              []Metric `json:"metrics"`
}

// Metric binds a raw field to the aggregate metric charted for it.
type Metric struct {
	FieldID    string `json:"field_id"`
	MetricID   string `json:"metric_id"`
	SampleType string `json:"sample_type"`
	Label      string `json:"label"`
}

// PrecisePreferred reports whether six-month and year views should use the
// daily-sum average path instead of rollup means. Defaults to true.
func (c Config) PrecisePreferred() bool {
	if c.PreferPreciseAverage == nil {
		return true
	}
	return *c.PreferPreciseAverage
}

func DefaultConfig() Config {
	return Config{
		PatientID: "local",
		StorePath: filepath.Join(ConfigDir(), "chartwell.db"),
		ExportDir: filepath.Join(ConfigDir(), "exports"),
		Theme:     "Catppuccin Mocha",
		UI: UIConfig{
			RefreshIntervalSeconds: 30,
			DefaultPeriod:          string(chart.PeriodWeek),
		},
		Metrics: []Metric{
			{FieldID: "DEF_STEPS", MetricID: "AGG_STEPS", SampleType: "steps", Label: "Steps"},
			{FieldID: "DEF_HEART_RATE", MetricID: "AGG_HEART_RATE", SampleType: "heart_rate", Label: "Heart Rate"},
		},
	}
}

func ConfigDir() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "chartwell")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "chartwell")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "settings.json")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}

	def := DefaultConfig()
	if cfg.PatientID == "" {
		cfg.PatientID = def.PatientID
	}
	if cfg.StorePath == "" {
		cfg.StorePath = def.StorePath
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = def.ExportDir
	}
	if cfg.Theme == "" {
		cfg.Theme = def.Theme
	}
	if cfg.UI.RefreshIntervalSeconds <= 0 {
		cfg.UI.RefreshIntervalSeconds = def.UI.RefreshIntervalSeconds
	}
	if string(chart.ParsePeriod(cfg.UI.DefaultPeriod)) != cfg.UI.DefaultPeriod {
		cfg.UI.DefaultPeriod = def.UI.DefaultPeriod
	}
	if len(cfg.Metrics) == 0 {
		cfg.Metrics = def.Metrics
	}

	return cfg, nil
}

// saveMu guards read-modify-write cycles on the config file.
var saveMu sync.Mutex

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SaveTheme persists a theme name into the config file (read-modify-write).
func SaveTheme(theme string) error {
	return SaveThemeTo(ConfigPath(), theme)
}

func SaveThemeTo(path string, theme string) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	cfg, err := LoadFrom(path)
	if err != nil {
		cfg = DefaultConfig()
	}
	cfg.Theme = theme
	return SaveTo(path, cfg)
}
