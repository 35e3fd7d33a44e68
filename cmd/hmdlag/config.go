package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"hmdlag/internal/frame"
	"hmdlag/internal/simhmd"
)

// Config is the top-level YAML configuration for the hmdlag daemon.
//
// It only describes the host: where poses come from, where input comes from
// and where state goes. The latency and view dials start at their defaults
// on every run and are changed from the controller.
type Config struct {
	Compositor CompositorConfig `yaml:"compositor"`
	Input      InputConfig      `yaml:"input"`
	IPC        IPCConfig        `yaml:"ipc"`
	HTTP       HTTPConfig       `yaml:"http"`
	Trace      TraceConfig      `yaml:"trace"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type CompositorConfig struct {
	Backend   string    `yaml:"backend"` // only "sim" for now
	FrameRate int       `yaml:"frame_rate"`
	Sim       SimConfig `yaml:"sim"`
}

// SimConfig is the YAML form of simhmd.Config.
type SimConfig struct {
	DeviceIOD  float64 `yaml:"device_iod_m"`
	HeadHeight float64 `yaml:"head_height_m"`
	YawAmp     float64 `yaml:"yaw_amplitude_rad"`
	PitchAmp   float64 `yaml:"pitch_amplitude_rad"`
	SwayAmp    float64 `yaml:"sway_amplitude_m"`
	PeriodSec  float64 `yaml:"period_sec"`
	HandRadius float64 `yaml:"hand_radius_m"`
}

type InputConfig struct {
	Devices       []string `yaml:"devices,omitempty"` // evdev gamepads; empty means IPC only
	StickDeadzone float64  `yaml:"stick_deadzone"`
	StickMax      int32    `yaml:"stick_max"`
	TriggerMax    int32    `yaml:"trigger_max"`
}

type IPCConfig struct {
	SocketPath string `yaml:"socket_path"`
}

type HTTPConfig struct {
	Port   int    `yaml:"port"`
	WSPath string `yaml:"ws_path"`
}

type TraceConfig struct {
	// Output is a PNG path written on shutdown; empty disables tracing.
	Output string `yaml:"output,omitempty"`
	Window int    `yaml:"window"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a fully-populated Config with defaults.
func DefaultConfig() Config {
	sim := simhmd.DefaultConfig()
	return Config{
		Compositor: CompositorConfig{
			Backend:   "sim",
			FrameRate: defaultFrameRate,
			Sim: SimConfig{
				DeviceIOD:  sim.DeviceIOD,
				HeadHeight: sim.HeadHeight,
				YawAmp:     sim.YawAmp,
				PitchAmp:   sim.PitchAmp,
				SwayAmp:    sim.SwayAmp,
				PeriodSec:  sim.Period,
				HandRadius: sim.HandRadius,
			},
		},
		Input: InputConfig{
			StickDeadzone: frame.DefaultStickDeadzone,
			StickMax:      defaultStickMax,
			TriggerMax:    defaultTriggerMax,
		},
		IPC: IPCConfig{
			SocketPath: defaultSocketPath,
		},
		HTTP: HTTPConfig{
			Port:   defaultHTTPPort,
			WSPath: defaultWSPath,
		},
		Trace: TraceConfig{
			Window: defaultTraceWindow,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfigFile reads and parses a YAML config file on top of the defaults.
// Unknown fields are rejected.
func LoadConfigFile(path string) (Config, error) {
	if path == "" {
		return Config{}, errors.New("config path is empty")
	}
	b, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config yaml: %w", err)
	}

	// Only comments may follow the document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config yaml: unexpected trailing document")
	}

	return cfg, nil
}

// FlagOverrides applies command-line overrides on top of a loaded config.
// Each non-nil pointer is applied, even if it holds a zero value.
type FlagOverrides struct {
	FrameRate     *int
	InputDevice   *string
	StickDeadzone *float64
	IPCSocketPath *string
	HTTPPort      *int
	TraceOutput   *string
	LogLevel      *string
}

func (o FlagOverrides) Apply(cfg *Config) {
	if cfg == nil {
		return
	}
	if o.FrameRate != nil {
		cfg.Compositor.FrameRate = *o.FrameRate
	}
	if o.InputDevice != nil {
		if *o.InputDevice == "" {
			cfg.Input.Devices = nil
		} else {
			cfg.Input.Devices = []string{*o.InputDevice}
		}
	}
	if o.StickDeadzone != nil {
		cfg.Input.StickDeadzone = *o.StickDeadzone
	}
	if o.IPCSocketPath != nil {
		cfg.IPC.SocketPath = *o.IPCSocketPath
	}
	if o.HTTPPort != nil {
		cfg.HTTP.Port = *o.HTTPPort
	}
	if o.TraceOutput != nil {
		cfg.Trace.Output = *o.TraceOutput
	}
	if o.LogLevel != nil {
		cfg.Logging.Level = *o.LogLevel
	}
}

// Validate checks config invariants after defaults, file and overrides are applied.
func (c *Config) Validate() error {
	if c.Compositor.Backend != "sim" {
		return fmt.Errorf("compositor.backend %q is not supported (want \"sim\")", c.Compositor.Backend)
	}
	if c.Compositor.FrameRate <= 0 || c.Compositor.FrameRate > maxFrameRate {
		return fmt.Errorf("compositor.frame_rate must be between 1 and %d", maxFrameRate)
	}
	if c.Compositor.Sim.DeviceIOD <= 0 || c.Compositor.Sim.DeviceIOD > frame.IODLimit {
		return fmt.Errorf("compositor.sim.device_iod_m must be in (0, %.2f]", frame.IODLimit)
	}
	if c.Compositor.Sim.PeriodSec <= 0 {
		return errors.New("compositor.sim.period_sec must be > 0")
	}

	for i, dev := range c.Input.Devices {
		if dev == "" {
			return fmt.Errorf("input.devices[%d] is empty", i)
		}
	}
	if c.Input.StickDeadzone < 0 || c.Input.StickDeadzone >= 1 {
		return errors.New("input.stick_deadzone must be in [0, 1)")
	}
	if c.Input.StickMax <= 0 || c.Input.TriggerMax <= 0 {
		return errors.New("input.stick_max and input.trigger_max must be > 0")
	}

	if c.IPC.SocketPath == "" {
		return errors.New("ipc.socket_path must not be empty")
	}
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return errors.New("http.port must be between 0 and 65535 (0 disables)")
	}
	if c.HTTP.Port > 0 && (c.HTTP.WSPath == "" || c.HTTP.WSPath[0] != '/') {
		return errors.New("http.ws_path must start with /")
	}
	if c.Trace.Output != "" && c.Trace.Window <= 0 {
		return errors.New("trace.window must be > 0 when trace.output is set")
	}
	if c.Logging.Level == "" {
		return errors.New("logging.level must not be empty")
	}
	return nil
}

// ToSimConfig converts the file config into the simulator's config.
func (c *Config) ToSimConfig() simhmd.Config {
	sim := simhmd.DefaultConfig()
	sim.FrameRate = float64(c.Compositor.FrameRate)
	sim.DeviceIOD = c.Compositor.Sim.DeviceIOD
	sim.HeadHeight = c.Compositor.Sim.HeadHeight
	sim.YawAmp = c.Compositor.Sim.YawAmp
	sim.PitchAmp = c.Compositor.Sim.PitchAmp
	sim.SwayAmp = c.Compositor.Sim.SwayAmp
	sim.Period = c.Compositor.Sim.PeriodSec
	sim.HandRadius = c.Compositor.Sim.HandRadius
	return sim
}

// ExpandPath expands a leading "~" in a path using $HOME.
func ExpandPath(p string) string {
	if p == "" {
		return p
	}
	if p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	if len(p) >= 2 && (p[1] == '/' || p[1] == '\\') {
		return filepath.Join(home, p[2:])
	}
	return p
}
