package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// ErrNotCalibrated reports a missing or incomplete calibration file.
var ErrNotCalibrated = errors.New("config: board not calibrated")

// calibrationKeys are the four required fields, in file order.
var calibrationKeys = []string{"x", "y", "w", "h"}

// Calibration is the board rectangle in captured-frame pixel coordinates.
type Calibration struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Rect returns the calibration as an image rectangle.
func (c Calibration) Rect() image.Rectangle {
	return image.Rect(c.X, c.Y, c.X+c.W, c.Y+c.H)
}

// Validate rejects empty rectangles and negative origins.
func (c Calibration) Validate() error {
	if c.W <= 0 || c.H <= 0 {
		return fmt.Errorf("%w: empty rectangle %dx%d", ErrNotCalibrated, c.W, c.H)
	}
	if c.X < 0 || c.Y < 0 {
		return fmt.Errorf("%w: negative origin %d,%d", ErrNotCalibrated, c.X, c.Y)
	}
	return nil
}

// Geometry formats the rectangle as a Tk geometry string "WxH+X+Y".
func (c Calibration) Geometry() string {
	return fmt.Sprintf("%dx%d+%d+%d", c.W, c.H, c.X, c.Y)
}

// geomRe matches window geometry strings in the format "WIDTHxHEIGHT+X+Y"
var geomRe = regexp.MustCompile(`^(\d+)x(\d+)\+(-?\d+)\+(-?\d+)$`)

// ParseGeometry converts a Tk geometry string into a calibration.
func ParseGeometry(g string) (Calibration, error) {
	m := geomRe.FindStringSubmatch(strings.TrimSpace(g))
	if len(m) != 5 {
		return Calibration{}, fmt.Errorf("config: bad geometry %q", g)
	}
	w, _ := strconv.Atoi(m[1])
	h, _ := strconv.Atoi(m[2])
	x, _ := strconv.Atoi(m[3])
	y, _ := strconv.Atoi(m[4])
	c := Calibration{X: x, Y: y, W: w, H: h}
	return c, c.Validate()
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

// LoadCalibration reads a calibration file. Files ending in .json hold a flat
// object {"x":..,"y":..,"w":..,"h":..}; anything else is read as key = value
// lines. A missing file or field wraps ErrNotCalibrated.
func LoadCalibration(path string) (Calibration, error) {
	var values map[string]int
	var err error
	if isJSON(path) {
		values, err = readCalibrationJSON(path)
	} else {
		values, err = readCalibrationINI(path)
	}
	if err != nil {
		return Calibration{}, err
	}
	cal := Calibration{X: values["x"], Y: values["y"], W: values["w"], H: values["h"]}
	if err := cal.Validate(); err != nil {
		return Calibration{}, err
	}
	return cal, nil
}

func readCalibrationJSON(path string) (map[string]int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCalibrated, err)
	}
	raw := map[string]*int{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotCalibrated, path, err)
	}
	out := make(map[string]int, len(calibrationKeys))
	for _, k := range calibrationKeys {
		v, ok := raw[k]
		if !ok || v == nil {
			return nil, fmt.Errorf("%w: %s: missing field %q", ErrNotCalibrated, path, k)
		}
		out[k] = *v
	}
	return out, nil
}

func readCalibrationINI(path string) (map[string]int, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotCalibrated, err)
	}
	section := f.Section(ini.DefaultSection)
	out := make(map[string]int, len(calibrationKeys))
	for _, k := range calibrationKeys {
		if !section.HasKey(k) {
			return nil, fmt.Errorf("%w: %s: missing field %q", ErrNotCalibrated, path, k)
		}
		v, err := section.Key(k).Int()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: field %q: %v", ErrNotCalibrated, path, k, err)
		}
		out[k] = v
	}
	return out, nil
}

// SaveCalibration writes c in the format implied by the path extension.
func SaveCalibration(path string, c Calibration) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if isJSON(path) {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		enc := json.NewEncoder(f)
		enc.SetIndent("", "  ")
		return enc.Encode(c)
	}
	f := ini.Empty()
	section := f.Section(ini.DefaultSection)
	values := map[string]int{"x": c.X, "y": c.Y, "w": c.W, "h": c.H}
	for _, k := range calibrationKeys {
		if _, err := section.NewKey(k, strconv.Itoa(values[k])); err != nil {
			return err
		}
	}
	return f.SaveTo(path)
}
