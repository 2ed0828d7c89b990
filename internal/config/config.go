package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/dpend/internal/dynamo"
	"github.com/san-kum/dpend/internal/physics"
)

const (
	DefaultIntegrator = "rk45"
	DefaultDt         = 0.05
	DefaultDuration   = 20.0
	DefaultTolerance  = 1e-9
	DefaultTheta1     = 120.0
	DefaultTheta2     = -10.0
)

type Config struct {
	Integrator string          `yaml:"integrator"`
	Dt         float64         `yaml:"dt"`
	Duration   float64         `yaml:"duration"`
	Tolerance  float64         `yaml:"tolerance"`
	MaxStep    float64         `yaml:"max_step"`
	Seed       int64           `yaml:"seed"`
	Physics    PhysicsConfig   `yaml:"physics"`
	InitState  InitStateConfig `yaml:"init_state"`
}

type PhysicsConfig struct {
	G  float64 `yaml:"g"`
	L1 float64 `yaml:"l1"`
	L2 float64 `yaml:"l2"`
	M1 float64 `yaml:"m1"`
	M2 float64 `yaml:"m2"`
}

// InitStateConfig holds angles in degrees and angular velocities in
// degrees per second.
type InitStateConfig struct {
	Theta1 float64 `yaml:"theta1"`
	Omega1 float64 `yaml:"omega1"`
	Theta2 float64 `yaml:"theta2"`
	Omega2 float64 `yaml:"omega2"`
}

func DefaultPhysics() PhysicsConfig {
	return PhysicsConfig{
		G:  physics.DefaultGravity,
		L1: physics.DefaultLength,
		L2: physics.DefaultLength,
		M1: physics.DefaultMass,
		M2: physics.DefaultMass,
	}
}

func DefaultConfig() *Config {
	return &Config{
		Integrator: DefaultIntegrator,
		Dt:         DefaultDt,
		Duration:   DefaultDuration,
		Tolerance:  DefaultTolerance,
		Physics:    DefaultPhysics(),
		InitState: InitStateConfig{
			Theta1: DefaultTheta1,
			Theta2: DefaultTheta2,
		},
	}
}

func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver overlays the YAML file at path on a copy of base. Keys absent
// from the file keep the base values.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := *base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the sampling settings and the physical constants.
func (c *Config) Validate() error {
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		return fmt.Errorf("%w: dt must be positive, got %g", dynamo.ErrInvalidConfig, c.Dt)
	}
	if !(c.Duration > 0) || math.IsInf(c.Duration, 0) {
		return fmt.Errorf("%w: duration must be positive, got %g", dynamo.ErrInvalidConfig, c.Duration)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance must not be negative", dynamo.ErrInvalidConfig)
	}
	if c.MaxStep < 0 {
		return fmt.Errorf("%w: max_step must not be negative", dynamo.ErrInvalidConfig)
	}
	for name, v := range map[string]float64{
		"theta1": c.InitState.Theta1, "omega1": c.InitState.Omega1,
		"theta2": c.InitState.Theta2, "omega2": c.InitState.Omega2,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: init_state.%s is %v", dynamo.ErrInvalidConfig, name, v)
		}
	}
	return c.Model().Validate()
}

// Model builds the double pendulum described by the physics section.
func (c *Config) Model() *physics.DoublePendulum {
	return &physics.DoublePendulum{
		M1: c.Physics.M1, M2: c.Physics.M2,
		L1: c.Physics.L1, L2: c.Physics.L2,
		Gravity: c.Physics.G,
	}
}

// InitialState converts the configured degrees to a state in radians.
func (c *Config) InitialState() dynamo.State {
	s := c.InitState
	return physics.InitialState(s.Theta1, s.Omega1, s.Theta2, s.Omega2)
}

// RunConfig maps the file settings onto driver settings.
func (c *Config) RunConfig() dynamo.Config {
	rc := dynamo.DefaultConfig()
	rc.Dt = c.Dt
	rc.Duration = c.Duration
	rc.Seed = c.Seed
	rc.Tolerance = c.Tolerance
	rc.MaxDt = c.MaxStep
	return rc
}

// Params returns the physical constants keyed by model parameter name.
func (c *Config) Params() map[string]float64 {
	return map[string]float64{
		"g":  c.Physics.G,
		"l1": c.Physics.L1,
		"l2": c.Physics.L2,
		"m1": c.Physics.M1,
		"m2": c.Physics.M2,
	}
}

// Set assigns a scalar setting by name: an initial condition in degrees
// (theta1, omega1, theta2, omega2), a physical constant (g, l1, l2, m1, m2)
// or dt, duration, tolerance, max_step.
func (c *Config) Set(name string, v float64) error {
	fields := map[string]*float64{
		"theta1":    &c.InitState.Theta1,
		"omega1":    &c.InitState.Omega1,
		"theta2":    &c.InitState.Theta2,
		"omega2":    &c.InitState.Omega2,
		"g":         &c.Physics.G,
		"l1":        &c.Physics.L1,
		"l2":        &c.Physics.L2,
		"m1":        &c.Physics.M1,
		"m2":        &c.Physics.M2,
		"dt":        &c.Dt,
		"duration":  &c.Duration,
		"tolerance": &c.Tolerance,
		"max_step":  &c.MaxStep,
	}
	dst, ok := fields[name]
	if !ok {
		return fmt.Errorf("%w: setting %s", dynamo.ErrUnknownName, name)
	}
	*dst = v
	return nil
}
