package localization

import (
	"math"

	"github.com/san-kum/robosim/internal/dynamo"
)

const (
	DefaultParticles     = 100
	DefaultMaxRange      = 20.0
	DefaultResampleRatio = 0.5
)

// NoiseModel holds the variances of the range sensor and of the odometry
// input (speed, yaw rate).
type NoiseModel struct {
	RangeVar   float64
	SpeedVar   float64
	YawRateVar float64
}

func (n NoiseModel) validate(prefix string) error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"range_var", n.RangeVar},
		{"speed_var", n.SpeedVar},
		{"yaw_rate_var", n.YawRateVar},
	} {
		if f.v < 0 || math.IsNaN(f.v) {
			return dynamo.NewConfigError(prefix+"."+f.name, f.v, "must be non-negative")
		}
	}
	return nil
}

// Config parameterises a Filter.
//
// Sim drives observation synthesis and Filter the particle prediction and
// weighting. They differ by default: the filter assumes noisier odometry
// than the one generating the data.
type Config struct {
	Particles     int
	MaxRange      float64
	ResampleRatio float64
	Sim           NoiseModel
	Filter        NoiseModel
	// Parallel spreads particle prediction over GOMAXPROCS workers.
	Parallel bool
}

func DefaultConfig() Config {
	return Config{
		Particles:     DefaultParticles,
		MaxRange:      DefaultMaxRange,
		ResampleRatio: DefaultResampleRatio,
		Sim: NoiseModel{
			RangeVar:   0.2,
			SpeedVar:   1.0,
			YawRateVar: radians(30),
		},
		Filter: NoiseModel{
			RangeVar:   0.2,
			SpeedVar:   2.0,
			YawRateVar: radians(40),
		},
	}
}

func (c Config) Validate() error {
	if c.Particles <= 0 {
		return dynamo.NewConfigError("particles", c.Particles, "must be positive")
	}
	if !(c.MaxRange > 0) {
		return dynamo.NewConfigError("max_range", c.MaxRange, "must be positive")
	}
	if !(c.ResampleRatio >= 0 && c.ResampleRatio <= 1) {
		return dynamo.NewConfigError("resample_ratio", c.ResampleRatio, "must be within [0, 1]")
	}
	if err := c.Sim.validate("sim"); err != nil {
		return err
	}
	if err := c.Filter.validate("filter"); err != nil {
		return err
	}
	if c.Filter.RangeVar == 0 {
		return dynamo.NewConfigError("filter.range_var", 0, "must be positive")
	}
	return nil
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
