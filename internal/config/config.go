package config

import (
	"fmt"
	"math"
	"os"

	"github.com/san-kum/robosim/internal/control"
	"github.com/san-kum/robosim/internal/dynamo"
	"github.com/san-kum/robosim/internal/linalg"
	"github.com/san-kum/robosim/internal/localization"
	"github.com/san-kum/robosim/internal/physics"
	"gopkg.in/yaml.v3"
)

const (
	DefaultDt       = 0.1
	DefaultDuration = 5.0
	DefaultSeed     = 42
	DefaultTheta    = 0.2
	DefaultKp       = 40.0
	DefaultKi       = 0.5
	DefaultKd       = 10.0
)

const (
	ScenarioPendulum = "pendulum"
	ScenarioPF       = "pf"

	PlantLinear    = "linear"
	PlantNonlinear = "nonlinear"
)

type Config struct {
	Scenario   string  `yaml:"scenario"`
	Dt         float64 `yaml:"dt"`
	Duration   float64 `yaml:"duration"`
	Seed       uint64  `yaml:"seed"`
	Plant      string  `yaml:"plant"`
	Integrator string  `yaml:"integrator"`
	Controller string  `yaml:"controller"`

	Pendulum       PendulumConfig       `yaml:"pendulum"`
	LQR            LQRConfig            `yaml:"lqr"`
	PID            PIDConfig            `yaml:"pid"`
	ParticleFilter ParticleFilterConfig `yaml:"particle_filter"`
}

type PendulumConfig struct {
	BarLength float64   `yaml:"l_bar"`
	CartMass  float64   `yaml:"m_cart"`
	BallMass  float64   `yaml:"m_ball"`
	Gravity   float64   `yaml:"gravity"`
	InitState []float64 `yaml:"init_state,flow"`
	// RandomStart ignores InitState and draws the angle on every reset.
	RandomStart bool `yaml:"random_start"`
}

type LQRConfig struct {
	Q         []float64 `yaml:"q,flow"`
	R         []float64 `yaml:"r,flow"`
	Epsilon   float64   `yaml:"epsilon"`
	MaxIter   int       `yaml:"max_iter"`
	WarmStart bool      `yaml:"warm_start"`
}

type PIDConfig struct {
	Kp     float64 `yaml:"kp"`
	Ki     float64 `yaml:"ki"`
	Kd     float64 `yaml:"kd"`
	Target float64 `yaml:"target"`
}

// ParticleFilterConfig mirrors localization.Config in file units: odometry
// variances are [speed m²/s², yaw rate deg].
type ParticleFilterConfig struct {
	Particles      int          `yaml:"particles"`
	MaxRange       float64      `yaml:"max_range"`
	Landmarks      [][2]float64 `yaml:"landmarks,flow"`
	Input          [2]float64   `yaml:"input,flow"`
	SimRangeVar    float64      `yaml:"sim_range_var"`
	SimOdomVar     [2]float64   `yaml:"sim_odom_var,flow"`
	FilterRangeVar float64      `yaml:"filter_range_var"`
	FilterOdomVar  [2]float64   `yaml:"filter_odom_var,flow"`
	ResampleRatio  float64      `yaml:"resample_ratio"`
	Parallel       bool         `yaml:"parallel"`
}

func DefaultConfig() *Config {
	return &Config{
		Scenario:   ScenarioPendulum,
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Seed:       DefaultSeed,
		Plant:      PlantLinear,
		Integrator: "rk4",
		Controller: "lqr",
		Pendulum: PendulumConfig{
			BarLength: 2.0,
			CartMass:  1.0,
			BallMass:  1.0,
			Gravity:   physics.Gravity,
			InitState: []float64{0, 0, DefaultTheta, 0},
		},
		LQR: LQRConfig{
			Q:       []float64{0, 1, 1, 0},
			R:       []float64{0.01},
			Epsilon: control.DefaultEpsilon,
			MaxIter: control.DefaultMaxIter,
		},
		PID: PIDConfig{
			Kp: DefaultKp,
			Ki: DefaultKi,
			Kd: DefaultKd,
		},
		ParticleFilter: ParticleFilterConfig{
			Particles:      localization.DefaultParticles,
			MaxRange:       localization.DefaultMaxRange,
			Landmarks:      [][2]float64{{10, 0}, {10, 10}, {0, 15}, {-5, 20}},
			Input:          [2]float64{1.0, 0.1},
			SimRangeVar:    0.2,
			SimOdomVar:     [2]float64{1.0, 30},
			FilterRangeVar: 0.2,
			FilterOdomVar:  [2]float64{2.0, 40},
			ResampleRatio:  localization.DefaultResampleRatio,
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.Overlay(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Overlay reads a YAML file over c. Keys absent from the file keep their
// current values, so a file can refine a preset.
func (c *Config) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy, so presets are never mutated by callers.
func (c *Config) Clone() *Config {
	out := *c
	out.Pendulum.InitState = append([]float64(nil), c.Pendulum.InitState...)
	out.LQR.Q = append([]float64(nil), c.LQR.Q...)
	out.LQR.R = append([]float64(nil), c.LQR.R...)
	out.ParticleFilter.Landmarks = append([][2]float64(nil), c.ParticleFilter.Landmarks...)
	return &out
}

// Validate returns a *dynamo.ConfigurationError for the first bad field.
func (c *Config) Validate() error {
	if c.Scenario != ScenarioPendulum && c.Scenario != ScenarioPF {
		return dynamo.NewConfigError("scenario", c.Scenario, "must be pendulum or pf")
	}
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		return dynamo.NewConfigError("dt", c.Dt, "must be positive")
	}
	if !(c.Duration > 0) || math.IsInf(c.Duration, 0) {
		return dynamo.NewConfigError("duration", c.Duration, "must be positive")
	}
	if c.Scenario == ScenarioPF {
		_, err := c.FilterConfig()
		return err
	}

	switch c.Plant {
	case PlantLinear, PlantNonlinear:
	default:
		return dynamo.NewConfigError("plant", c.Plant, "must be linear or nonlinear")
	}
	switch c.Integrator {
	case "euler", "rk4":
	default:
		return dynamo.NewConfigError("integrator", c.Integrator, "must be euler or rk4")
	}
	if err := c.CartPole().Validate(); err != nil {
		return err
	}
	if !c.Pendulum.RandomStart && len(c.Pendulum.InitState) != physics.CartPoleStates {
		return dynamo.NewConfigError("pendulum.init_state", c.Pendulum.InitState, "must have 4 components")
	}

	switch c.Controller {
	case "lqr":
		_, err := c.LQRParams()
		return err
	case "pid":
		return nil
	case "none":
		return nil
	}
	return dynamo.NewConfigError("controller", c.Controller, "must be lqr, pid or none")
}

// CartPole returns the plant described by the pendulum section.
func (c *Config) CartPole() *physics.CartPole {
	return &physics.CartPole{
		BarLength: c.Pendulum.BarLength,
		CartMass:  c.Pendulum.CartMass,
		BallMass:  c.Pendulum.BallMass,
		Gravity:   c.Pendulum.Gravity,
	}
}

// LQRParams builds diagonal Q and R from the lqr section.
func (c *Config) LQRParams() (control.Params, error) {
	if len(c.LQR.Q) != physics.CartPoleStates {
		return control.Params{}, dynamo.NewConfigError("lqr.q", c.LQR.Q, "must have 4 diagonal entries")
	}
	if len(c.LQR.R) != physics.CartPoleInputs {
		return control.Params{}, dynamo.NewConfigError("lqr.r", c.LQR.R, "must have 1 diagonal entry")
	}
	p := control.Params{
		Q:       linalg.Diag(c.LQR.Q...),
		R:       linalg.Diag(c.LQR.R...),
		Epsilon: c.LQR.Epsilon,
		MaxIter: c.LQR.MaxIter,
	}
	if err := p.Validate(); err != nil {
		return control.Params{}, err
	}
	return p, nil
}

// FilterConfig converts the particle_filter section, turning the yaw rate
// entries from degrees to radians.
func (c *Config) FilterConfig() (localization.Config, error) {
	pf := c.ParticleFilter
	lc := localization.Config{
		Particles:     pf.Particles,
		MaxRange:      pf.MaxRange,
		ResampleRatio: pf.ResampleRatio,
		Sim: localization.NoiseModel{
			RangeVar:   pf.SimRangeVar,
			SpeedVar:   pf.SimOdomVar[0],
			YawRateVar: deg2rad(pf.SimOdomVar[1]),
		},
		Filter: localization.NoiseModel{
			RangeVar:   pf.FilterRangeVar,
			SpeedVar:   pf.FilterOdomVar[0],
			YawRateVar: deg2rad(pf.FilterOdomVar[1]),
		},
		Parallel: pf.Parallel,
	}
	if err := lc.Validate(); err != nil {
		return localization.Config{}, err
	}
	return lc, nil
}

func (c *Config) Landmarks() []physics.Landmark {
	out := make([]physics.Landmark, len(c.ParticleFilter.Landmarks))
	for i, l := range c.ParticleFilter.Landmarks {
		out[i] = physics.Landmark{X: l[0], Y: l[1]}
	}
	return out
}

func (c *Config) Input() localization.Input {
	return localization.Input{V: c.ParticleFilter.Input[0], YawRate: c.ParticleFilter.Input[1]}
}

func deg2rad(d float64) float64 {
	return d * math.Pi / 180
}
