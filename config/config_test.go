package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	d := DefaultConfig()
	if cfg.TargetFPS != d.TargetFPS || cfg.PoolSize != d.PoolSize || cfg.Evaluator != d.Evaluator {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	if err := os.WriteFile(path, []byte(`{"target_fps": 30, "piece": "L", "overlay": false}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TargetFPS != 30 || cfg.Piece != "L" || cfg.Overlay {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.PoolSize != 3 {
		t.Fatalf("unset field lost its default: pool=%d", cfg.PoolSize)
	}
}

func TestLoad_OutputSurfaces(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Hotkeys || cfg.DashboardAddr != "" {
		t.Fatalf("defaults: hotkeys=%v dashboard=%q", cfg.Hotkeys, cfg.DashboardAddr)
	}
	t.Setenv("TETRIS_DASHBOARD_ADDR", "127.0.0.1:8765")
	t.Setenv("TETRIS_HOTKEYS", "false")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Hotkeys || cfg.DashboardAddr != "127.0.0.1:8765" {
		t.Fatalf("env not applied: hotkeys=%v dashboard=%q", cfg.Hotkeys, cfg.DashboardAddr)
	}
}

func TestLoad_EnvironmentAliases(t *testing.T) {
	t.Setenv("DXGI_TARGET_FPS", "120")
	t.Setenv("DXGI_POOL_SIZE", "5")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.TargetFPS != 120 || cfg.PoolSize != 5 {
		t.Fatalf("env not applied: fps=%d pool=%d", cfg.TargetFPS, cfg.PoolSize)
	}
}

func TestLoad_PrefixedEnvironment(t *testing.T) {
	t.Setenv("TETRIS_EVALUATOR", "LEARNED")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Evaluator != EvaluatorLearned {
		t.Fatalf("evaluator %q", cfg.Evaluator)
	}
}

func TestValidate_ClampsInvalid(t *testing.T) {
	cfg := &Config{TargetFPS: -1, PoolSize: 0, CellThreshold: 999}
	_ = cfg.Validate()
	if cfg.TargetFPS != 60 || cfg.PoolSize != 3 || cfg.CellThreshold != 30 {
		t.Fatalf("validate did not clamp: %+v", cfg)
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	cfg := DefaultConfig()
	cfg.ModelPath = "models/x.onnx"
	cfg.WeightHoles = -1.5
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ModelPath != "models/x.onnx" || got.WeightHoles != -1.5 {
		t.Fatalf("round trip lost values: %+v", got)
	}
}

func TestCalibration_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.json")
	if err := os.WriteFile(path, []byte(`{"x": 10, "y": 20, "w": 300, "h": 600}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cal, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cal != (Calibration{X: 10, Y: 20, W: 300, H: 600}) {
		t.Fatalf("unexpected %+v", cal)
	}
	if r := cal.Rect(); r.Dx() != 300 || r.Dy() != 600 || r.Min.X != 10 {
		t.Fatalf("rect %v", r)
	}
}

func TestCalibration_MissingField(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "c.json")
	_ = os.WriteFile(jsonPath, []byte(`{"x": 10, "y": 20, "w": 300}`), 0o644)
	if _, err := LoadCalibration(jsonPath); !errors.Is(err, ErrNotCalibrated) {
		t.Fatalf("expected ErrNotCalibrated, got %v", err)
	}
	iniPath := filepath.Join(dir, "c.ini")
	_ = os.WriteFile(iniPath, []byte("x = 1\ny = 2\nh = 4\n"), 0o644)
	if _, err := LoadCalibration(iniPath); !errors.Is(err, ErrNotCalibrated) {
		t.Fatalf("expected ErrNotCalibrated, got %v", err)
	}
}

func TestCalibration_MissingFile(t *testing.T) {
	for _, name := range []string{"none.json", "none.ini"} {
		if _, err := LoadCalibration(filepath.Join(t.TempDir(), name)); !errors.Is(err, ErrNotCalibrated) {
			t.Fatalf("%s: expected ErrNotCalibrated, got %v", name, err)
		}
	}
}

func TestCalibration_SaveRoundTrip(t *testing.T) {
	want := Calibration{X: 5, Y: 6, W: 200, H: 400}
	for _, name := range []string{"cal.json", "cal.ini"} {
		path := filepath.Join(t.TempDir(), name)
		if err := SaveCalibration(path, want); err != nil {
			t.Fatalf("%s save: %v", name, err)
		}
		got, err := LoadCalibration(path)
		if err != nil {
			t.Fatalf("%s load: %v", name, err)
		}
		if got != want {
			t.Fatalf("%s: got %+v", name, got)
		}
	}
}

func TestCalibration_RejectsEmpty(t *testing.T) {
	if err := SaveCalibration(filepath.Join(t.TempDir(), "c.ini"), Calibration{W: 0, H: 10}); err == nil {
		t.Fatalf("expected error for empty rectangle")
	}
}

func TestParseGeometry(t *testing.T) {
	cases := []struct {
		in      string
		want    Calibration
		wantErr bool
	}{
		{in: "300x600+100+50", want: Calibration{X: 100, Y: 50, W: 300, H: 600}},
		{in: " 10x20+0+0\n", want: Calibration{W: 10, H: 20}},
		{in: "300x600+-5+50", wantErr: true},
		{in: "0x600+1+1", wantErr: true},
		{in: "garbage", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseGeometry(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %+v, %v", tc.in, got, err)
		}
		if got.Geometry() != strings.TrimSpace(tc.in) {
			t.Fatalf("%q: geometry round trip %q", tc.in, got.Geometry())
		}
	}
}
