package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/crnsim/internal/experiment"
)

const envPrefix = "CRNSIM"

const (
	DefaultIntegrator = "rk45"
	DefaultDt         = 2.0
	DefaultDuration   = 20000.0
	DefaultTolerance  = 1e-6
	DefaultMinDt      = 1e-9
	DefaultMaxDt      = 100.0
	DefaultDataDir    = "runs"

	DefaultSliderMin  = 1e-4
	DefaultSliderMax  = 1e-2
	DefaultSliderStep = 1e-8
	DefaultX0Step     = 0.1
)

type Config struct {
	Integrator string      `yaml:"integrator" mapstructure:"integrator" validate:"oneof=euler rk4 rk45"`
	Dt         float64     `yaml:"dt" mapstructure:"dt" validate:"gt=0"`
	Duration   float64     `yaml:"duration" mapstructure:"duration" validate:"gtefield=Dt"`
	Tolerance  float64     `yaml:"tolerance" mapstructure:"tolerance" validate:"gt=0"`
	MinDt      float64     `yaml:"min_dt" mapstructure:"min_dt" validate:"gt=0"`
	MaxDt      float64     `yaml:"max_dt" mapstructure:"max_dt" validate:"gtefield=MinDt"`
	Adaptive   bool        `yaml:"adaptive" mapstructure:"adaptive"`
	DataDir    string      `yaml:"data_dir" mapstructure:"data_dir" validate:"required"`
	Log        LogConfig   `yaml:"log" mapstructure:"log"`
	Panel      PanelConfig `yaml:"panel" mapstructure:"panel"`
	Chart      ChartConfig `yaml:"chart" mapstructure:"chart"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// SliderConfig bounds one rate slider of the panel.
type SliderConfig struct {
	Min  float64 `yaml:"min" mapstructure:"min" validate:"gte=0"`
	Max  float64 `yaml:"max" mapstructure:"max" validate:"gtfield=Min"`
	Step float64 `yaml:"step" mapstructure:"step" validate:"gt=0"`
}

type PanelConfig struct {
	Slider     SliderConfig            `yaml:"slider" mapstructure:"slider"`
	Rates      map[string]SliderConfig `yaml:"rates,omitempty" mapstructure:"rates" validate:"dive"`
	X0Step     float64                 `yaml:"x0_step" mapstructure:"x0_step" validate:"gt=0"`
	Horizontal bool                    `yaml:"horizontal" mapstructure:"horizontal"`
	PlotWidth  int                     `yaml:"plot_width" mapstructure:"plot_width" validate:"min=10"`
	PlotHeight int                     `yaml:"plot_height" mapstructure:"plot_height" validate:"min=5"`
}

// ChartConfig sizes PNG charts in inches at a given resolution.
type ChartConfig struct {
	Width  float64 `yaml:"width" mapstructure:"width" validate:"gt=0"`
	Height float64 `yaml:"height" mapstructure:"height" validate:"gt=0"`
	DPI    float64 `yaml:"dpi" mapstructure:"dpi" validate:"gt=0"`
}

// Pixels returns the chart size in pixels.
func (c ChartConfig) Pixels() (int, int) {
	return int(c.Width * c.DPI), int(c.Height * c.DPI)
}

func DefaultConfig() *Config {
	return &Config{
		Integrator: DefaultIntegrator,
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Tolerance:  DefaultTolerance,
		MinDt:      DefaultMinDt,
		MaxDt:      DefaultMaxDt,
		Adaptive:   true,
		DataDir:    DefaultDataDir,
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Panel: PanelConfig{
			Slider: SliderConfig{
				Min:  DefaultSliderMin,
				Max:  DefaultSliderMax,
				Step: DefaultSliderStep,
			},
			X0Step:     DefaultX0Step,
			Horizontal: true,
			PlotWidth:  70,
			PlotHeight: 15,
		},
		Chart: ChartConfig{Width: 8, Height: 6, DPI: 80},
	}
}

// SliderFor returns the slider bounds configured for rate, falling back to
// the panel default.
func (c *Config) SliderFor(rate string) SliderConfig {
	if s, ok := c.Panel.Rates[rate]; ok {
		return s
	}
	return c.Panel.Slider
}

// Experiment returns the simulation settings as an experiment config.
func (c *Config) Experiment() experiment.Config {
	return experiment.Config{
		Integrator: c.Integrator,
		Dt:         c.Dt,
		Duration:   c.Duration,
		Tolerance:  c.Tolerance,
		MinDt:      c.MinDt,
		MaxDt:      c.MaxDt,
		Adaptive:   c.Adaptive,
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	d := DefaultConfig()
	v.SetDefault("integrator", d.Integrator)
	v.SetDefault("dt", d.Dt)
	v.SetDefault("duration", d.Duration)
	v.SetDefault("tolerance", d.Tolerance)
	v.SetDefault("min_dt", d.MinDt)
	v.SetDefault("max_dt", d.MaxDt)
	v.SetDefault("adaptive", d.Adaptive)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("panel.slider.min", d.Panel.Slider.Min)
	v.SetDefault("panel.slider.max", d.Panel.Slider.Max)
	v.SetDefault("panel.slider.step", d.Panel.Slider.Step)
	v.SetDefault("panel.x0_step", d.Panel.X0Step)
	v.SetDefault("panel.horizontal", d.Panel.Horizontal)
	v.SetDefault("panel.plot_width", d.Panel.PlotWidth)
	v.SetDefault("panel.plot_height", d.Panel.PlotHeight)
	v.SetDefault("chart.width", d.Chart.Width)
	v.SetDefault("chart.height", d.Chart.Height)
	v.SetDefault("chart.dpi", d.Chart.DPI)
	return v
}

// Load reads the YAML file at path over the defaults, applies CRNSIM_*
// environment overrides (CRNSIM_PANEL_X0_STEP for panel.x0_step) and
// validates the result. An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
