package sdfaux

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/chewxy/math32"
	"github.com/pelletier/go-toml/v2"
	"github.com/soypat/geometry/ms3"
	"github.com/soypat/sdfgraph/gleval"
	"github.com/soypat/sdfgraph/glrender"
)

// Settings are the renderer settings. Zero fields in a settings file keep
// their [DefaultSettings] value.
type Settings struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
	// Samples is the number of path tracer samples per pixel and frame.
	Samples     int `toml:"samples"`
	StepsPerRay int `toml:"steps_per_ray"`
	Bounces     int `toml:"bounces"`
	// FOV is the vertical field of view in degrees.
	FOV       float32        `toml:"fov"`
	TimeScale float32        `toml:"time_scale"`
	Camera    CameraSettings `toml:"camera"`
	// DebounceMillis is the quiet period after a graph file write before it is reloaded.
	DebounceMillis int `toml:"debounce_ms"`
	// Preflight enables the shader translator preflight before GPU compilation.
	Preflight bool   `toml:"validate"`
	LogLevel  string `toml:"log_level"`
}

type CameraSettings struct {
	Position [3]float32 `toml:"position"`
	Target   [3]float32 `toml:"target"`
}

// DefaultSettings returns the settings used when no settings file is given.
func DefaultSettings() Settings {
	return Settings{
		Width:       640,
		Height:      480,
		Samples:     1,
		StepsPerRay: 128,
		Bounces:     3,
		FOV:         60,
		TimeScale:   1,
		Camera: CameraSettings{
			Position: [3]float32{0, 1, -5},
		},
		DebounceMillis: 100,
		Preflight:      true,
		LogLevel:       "info",
	}
}

// LoadSettingsFile reads settings from a TOML file.
func LoadSettingsFile(filename string) (Settings, error) {
	fp, err := os.Open(filename)
	if err != nil {
		return Settings{}, err
	}
	defer fp.Close()
	s, err := LoadSettings(fp)
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", filename, err)
	}
	return s, nil
}

// LoadSettings decodes TOML settings on top of [DefaultSettings]. Unknown keys are an error.
func LoadSettings(r io.Reader) (Settings, error) {
	s := DefaultSettings()
	err := toml.NewDecoder(r).DisallowUnknownFields().Decode(&s)
	if err != nil {
		return Settings{}, err
	}
	return s, s.Validate()
}

// Encode writes the settings as TOML.
func (s Settings) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(s)
}

// Validate reports every out of range setting.
func (s Settings) Validate() error {
	var errs []error
	if s.Width <= 0 || s.Height <= 0 {
		errs = append(errs, fmt.Errorf("non-positive image size %dx%d", s.Width, s.Height))
	}
	if s.Samples < 1 {
		errs = append(errs, errors.New("samples must be at least 1"))
	}
	if s.StepsPerRay < 1 {
		errs = append(errs, errors.New("steps_per_ray must be at least 1"))
	}
	if s.Bounces < 0 {
		errs = append(errs, errors.New("negative bounces"))
	}
	if s.FOV <= 0 || s.FOV >= 180 {
		errs = append(errs, fmt.Errorf("fov %g out of range (0, 180)", s.FOV))
	}
	if s.Camera.Position == s.Camera.Target {
		errs = append(errs, errors.New("camera position equals target"))
	}
	if s.DebounceMillis < 0 {
		errs = append(errs, errors.New("negative debounce"))
	}
	if _, err := parseLevel(s.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Debounce returns the reload quiet period.
func (s Settings) Debounce() time.Duration {
	return time.Duration(s.DebounceMillis) * time.Millisecond
}

// Level returns the configured log level, defaulting to info.
func (s Settings) Level() slog.Level {
	lvl, err := parseLevel(s.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func parseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	err := lvl.UnmarshalText([]byte(s))
	if err != nil {
		return lvl, fmt.Errorf("bad log_level: %w", err)
	}
	return lvl, nil
}

// RenderCamera returns the camera described by the settings.
func (s Settings) RenderCamera() glrender.Camera {
	return glrender.Camera{
		Pos:    ms3.Vec{X: s.Camera.Position[0], Y: s.Camera.Position[1], Z: s.Camera.Position[2]},
		Target: ms3.Vec{X: s.Camera.Target[0], Y: s.Camera.Target[1], Z: s.Camera.Target[2]},
		FOV:    s.FOV * math32.Pi / 180,
	}
}

// Uniforms returns the compute shader inputs for scene time t.
func (s Settings) Uniforms(t float32) gleval.Uniforms {
	cam := s.RenderCamera()
	return gleval.Uniforms{
		Time:        t * s.TimeScale,
		StepsPerRay: s.StepsPerRay,
		Samples:     s.Samples,
		Bounces:     s.Bounces,
		FOV:         cam.FOV,
		CamPos:      cam.Pos,
		CamTarget:   cam.Target,
	}
}
