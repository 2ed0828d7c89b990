package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dpend/internal/dynamo"
)

// Pendulum is a single rigid pendulum with optional viscous damping.
// State: [theta, omega]
type Pendulum struct {
	Mass    float64
	Length  float64
	Damping float64
	Gravity float64
}

func NewPendulum() *Pendulum {
	return &Pendulum{
		Mass:    DefaultMass,
		Length:  DefaultLength,
		Damping: 0,
		Gravity: DefaultGravity,
	}
}

func (p *Pendulum) StateDim() int {
	return 2
}

func (p *Pendulum) Validate() error {
	if p.Mass <= 0 || p.Length <= 0 {
		return fmt.Errorf("%w: mass and length must be positive (mass=%g, length=%g)",
			dynamo.ErrInvalidConfig, p.Mass, p.Length)
	}
	return nil
}

func (p *Pendulum) Derive(x dynamo.State, _ float64) dynamo.State {
	theta := x[0]
	omega := x[1]

	alpha := (-p.Damping*omega - p.Mass*p.Gravity*p.Length*math.Sin(theta)) / (p.Mass * p.Length * p.Length)

	return dynamo.State{omega, alpha}
}

func (p *Pendulum) Energy(x dynamo.State) float64 {
	// KE = 0.5 * m * (L*omega)^2
	// PE = m * g * L * (1 - cos(theta))
	v := p.Length * x[1]
	ke := 0.5 * p.Mass * v * v
	pe := p.Mass * p.Gravity * p.Length * (1.0 - math.Cos(x[0]))
	return ke + pe
}

func (p *Pendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"mass":    p.Mass,
		"length":  p.Length,
		"damping": p.Damping,
		"g":       p.Gravity,
	}
}

func (p *Pendulum) SetParam(name string, value float64) error {
	switch name {
	case "mass":
		p.Mass = value
	case "length":
		p.Length = value
	case "damping":
		p.Damping = value
	case "g":
		p.Gravity = value
	default:
		return fmt.Errorf("%w: param %s", dynamo.ErrUnknownName, name)
	}
	return nil
}
