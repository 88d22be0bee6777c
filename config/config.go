package config

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. TETRIS_STATS_DB.
const EnvPrefix = "TETRIS"

// Capture backends.
const (
	BackendGDI        = "gdi"
	BackendScreenshot = "screenshot"
	BackendDisplay    = "display"
)

// Evaluator kinds.
const (
	EvaluatorHeuristic = "heuristic"
	EvaluatorLearned   = "learned"
)

// Config holds runtime configuration for capture, extraction, search and
// output. Values come from defaults, then an optional JSON/YAML file, then
// environment variables.
type Config struct {
	Debug bool `json:"debug" mapstructure:"debug"`

	// Capture
	CaptureBackend      string `json:"capture_backend" mapstructure:"capture_backend"`
	CaptureWindow       string `json:"capture_window" mapstructure:"capture_window"`
	TargetFPS           int    `json:"target_fps" mapstructure:"target_fps"`
	PoolSize            int    `json:"pool_size" mapstructure:"pool_size"`
	AcquireTimeoutMS    int    `json:"acquire_timeout_ms" mapstructure:"acquire_timeout_ms"`
	MaxRecoveryFailures int    `json:"max_recovery_failures" mapstructure:"max_recovery_failures"`
	IdleSleepMS         int    `json:"idle_sleep_ms" mapstructure:"idle_sleep_ms"`

	// Board extraction
	CalibrationPath string `json:"calibration_path" mapstructure:"calibration_path"`
	SatMin          int    `json:"sat_min" mapstructure:"sat_min"`
	ValMin          int    `json:"val_min" mapstructure:"val_min"`
	CellThreshold   int    `json:"cell_threshold" mapstructure:"cell_threshold"`

	// Active piece: a fixed piece, or colour detection inside the preview rectangle
	// when its width and height are set.
	Piece  string `json:"piece" mapstructure:"piece"`
	PieceX int    `json:"piece_x" mapstructure:"piece_x"`
	PieceY int    `json:"piece_y" mapstructure:"piece_y"`
	PieceW int    `json:"piece_w" mapstructure:"piece_w"`
	PieceH int    `json:"piece_h" mapstructure:"piece_h"`

	// Search
	Evaluator       string  `json:"evaluator" mapstructure:"evaluator"`
	ModelPath       string  `json:"model_path" mapstructure:"model_path"`
	WeightLines     float64 `json:"weight_lines" mapstructure:"weight_lines"`
	WeightHeight    float64 `json:"weight_height" mapstructure:"weight_height"`
	WeightHoles     float64 `json:"weight_holes" mapstructure:"weight_holes"`
	WeightBumpiness float64 `json:"weight_bumpiness" mapstructure:"weight_bumpiness"`

	// Output
	Overlay          bool   `json:"overlay" mapstructure:"overlay"`
	RenderIntervalMS int    `json:"render_interval_ms" mapstructure:"render_interval_ms"`
	Hotkeys          bool   `json:"hotkeys" mapstructure:"hotkeys"`
	StatsDB          string `json:"stats_db" mapstructure:"stats_db"`
	// DashboardAddr enables the stats dashboard, e.g. "127.0.0.1:8765".
	DashboardAddr string `json:"dashboard_addr" mapstructure:"dashboard_addr"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	backend := BackendScreenshot
	if runtime.GOOS == "windows" {
		backend = BackendGDI
	}
	return &Config{
		Debug:               false,
		CaptureBackend:      backend,
		CaptureWindow:       "",
		TargetFPS:           60,
		PoolSize:            3,
		AcquireTimeoutMS:    500,
		MaxRecoveryFailures: 5,
		IdleSleepMS:         1,
		CalibrationPath:     "calibration.json",
		SatMin:              50,
		ValMin:              50,
		CellThreshold:       30,
		Piece:               "T",
		Evaluator:           EvaluatorHeuristic,
		ModelPath:           "tetris_cnn.onnx",
		WeightLines:         0.760666,
		WeightHeight:        -0.510066,
		WeightHoles:         -0.35663,
		WeightBumpiness:     -0.184483,
		Overlay:             true,
		RenderIntervalMS:    16,
		Hotkeys:             true,
		StatsDB:             "stats.db",
		DashboardAddr:       "",
	}
}

// Validate clamps/normalizes values to safe ranges. It never fails; unknown
// backend or evaluator names are rejected where they are resolved.
func (c *Config) Validate() error {
	d := DefaultConfig()
	if c.TargetFPS <= 0 {
		c.TargetFPS = d.TargetFPS
	}
	if c.PoolSize <= 0 {
		c.PoolSize = d.PoolSize
	}
	if c.AcquireTimeoutMS <= 0 {
		c.AcquireTimeoutMS = d.AcquireTimeoutMS
	}
	if c.MaxRecoveryFailures <= 0 {
		c.MaxRecoveryFailures = d.MaxRecoveryFailures
	}
	if c.IdleSleepMS < 0 {
		c.IdleSleepMS = d.IdleSleepMS
	}
	if c.SatMin < 0 || c.SatMin > 255 {
		c.SatMin = d.SatMin
	}
	if c.ValMin < 0 || c.ValMin > 255 {
		c.ValMin = d.ValMin
	}
	if c.CellThreshold < 0 || c.CellThreshold > 255 {
		c.CellThreshold = d.CellThreshold
	}
	if c.RenderIntervalMS <= 0 {
		c.RenderIntervalMS = d.RenderIntervalMS
	}
	if c.CaptureBackend == "" {
		c.CaptureBackend = d.CaptureBackend
	}
	if c.Evaluator == "" {
		c.Evaluator = d.Evaluator
	}
	c.CaptureBackend = strings.ToLower(c.CaptureBackend)
	c.Evaluator = strings.ToLower(c.Evaluator)
	return nil
}

// defaults flattens DefaultConfig into viper keys so that environment
// variables can override every field.
func defaults() map[string]any {
	d := DefaultConfig()
	raw, _ := json.Marshal(d)
	out := map[string]any{}
	_ = json.Unmarshal(raw, &out)
	return out
}

// Load reads configuration from path (JSON or YAML by extension) layered over
// the defaults, then applies environment overrides. A missing file is not an
// error. TETRIS_TARGET_FPS/DXGI_TARGET_FPS and TETRIS_POOL_SIZE/DXGI_POOL_SIZE
// set the capture pacing and pool size.
func Load(path string) (*Config, error) {
	v := viper.New()
	for k, val := range defaults() {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	_ = v.BindEnv("target_fps", EnvPrefix+"_TARGET_FPS", "DXGI_TARGET_FPS")
	_ = v.BindEnv("pool_size", EnvPrefix+"_POOL_SIZE", "DXGI_POOL_SIZE")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return DefaultConfig(), err
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return DefaultConfig(), err
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return DefaultConfig(), err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
