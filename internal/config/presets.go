package config

import "sort"

// Presets override the simulation timing of the defaults.
var Presets = map[string]func(*Config){
	"quick": func(c *Config) {
		c.Duration = 2000
		c.Dt = 2
		c.Tolerance = 1e-4
	},
	"default": func(c *Config) {},
	"long": func(c *Config) {
		c.Duration = 200000
		c.Dt = 20
		c.MaxDt = 1000
	},
	"precise": func(c *Config) {
		c.Integrator = "rk45"
		c.Adaptive = true
		c.Tolerance = 1e-10
		c.MinDt = 1e-12
		c.MaxDt = 10
	},
}

// GetPreset returns the defaults with the named preset applied, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

// ApplyPreset overlays the timing of the named preset onto cfg.
func ApplyPreset(cfg *Config, name string) bool {
	apply, ok := Presets[name]
	if ok {
		apply(cfg)
	}
	return ok
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
