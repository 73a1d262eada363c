package config

import "sort"

// Presets are keyed by scenario then name. Each entry is applied with
// GetPreset, which returns a copy.
var Presets = map[string]map[string]*Config{
	ScenarioPendulum: {
		"small": pendulumPreset(func(c *Config) {
			c.Pendulum.InitState = []float64{0, 0, 0.1, 0}
		}),
		"large": pendulumPreset(func(c *Config) {
			c.Duration = 10
			c.Pendulum.InitState = []float64{0, 0, 0.4, 0}
		}),
		"pid": pendulumPreset(func(c *Config) {
			c.Duration = 10
			c.Controller = "pid"
		}),
		"nonlinear": pendulumPreset(func(c *Config) {
			c.Plant = PlantNonlinear
			c.Pendulum.InitState = []float64{0, 0, 0.3, 0}
		}),
		"random": pendulumPreset(func(c *Config) {
			c.Pendulum.RandomStart = true
			c.LQR.WarmStart = true
		}),
	},
	ScenarioPF: {
		"default": pfPreset(func(c *Config) {
			c.Duration = 50
		}),
		"sparse": pfPreset(func(c *Config) {
			c.Duration = 50
			c.ParticleFilter.Particles = 50
			c.ParticleFilter.MaxRange = 12
			c.ParticleFilter.Landmarks = [][2]float64{{10, 0}, {-5, 20}}
		}),
		"dense": pfPreset(func(c *Config) {
			c.Duration = 50
			c.ParticleFilter.Particles = 1000
			c.ParticleFilter.Parallel = true
		}),
	},
}

func pendulumPreset(apply func(*Config)) *Config {
	c := DefaultConfig()
	apply(c)
	return c
}

func pfPreset(apply func(*Config)) *Config {
	c := DefaultConfig()
	c.Scenario = ScenarioPF
	apply(c)
	return c
}

func GetPreset(scenario, preset string) *Config {
	scenarioPresets, ok := Presets[scenario]
	if !ok {
		return nil
	}
	cfg, ok := scenarioPresets[preset]
	if !ok {
		return nil
	}
	return cfg.Clone()
}

// ListPresets returns the preset names of a scenario in sorted order.
func ListPresets(scenario string) []string {
	scenarioPresets, ok := Presets[scenario]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(scenarioPresets))
	for name := range scenarioPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
