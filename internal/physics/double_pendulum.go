package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dpend/internal/dynamo"
)

// State layout of the double pendulum.
const (
	Theta1 = iota
	Omega1
	Theta2
	Omega2
)

const (
	DefaultMass    = 1.0
	DefaultLength  = 1.0
	DefaultGravity = 9.8
)

// DoublePendulum is a planar pendulum of two massless rods with point masses.
// State: [theta1, omega1, theta2, omega2], angles measured from the downward
// vertical.
type DoublePendulum struct {
	M1, M2  float64
	L1, L2  float64
	Gravity float64
}

func NewDoublePendulum() *DoublePendulum {
	return &DoublePendulum{
		M1: DefaultMass, M2: DefaultMass,
		L1: DefaultLength, L2: DefaultLength,
		Gravity: DefaultGravity,
	}
}

func (d *DoublePendulum) StateDim() int { return 4 }

// Validate reports constants for which Derive would divide by zero or
// produce non-physical results.
func (d *DoublePendulum) Validate() error {
	for name, v := range d.GetParams() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s is %v", dynamo.ErrInvalidConfig, name, v)
		}
	}
	switch {
	case d.L1 == 0:
		return fmt.Errorf("%w: l1 must be non-zero", dynamo.ErrInvalidConfig)
	case d.L2 <= 0:
		return fmt.Errorf("%w: l2 must be positive, got %g", dynamo.ErrInvalidConfig, d.L2)
	case d.M1 < 0 || d.M2 < 0:
		return fmt.Errorf("%w: masses must be non-negative (m1=%g, m2=%g)", dynamo.ErrInvalidConfig, d.M1, d.M2)
	case d.M1+d.M2 == 0:
		return fmt.Errorf("%w: total mass m1+m2 must be non-zero", dynamo.ErrInvalidConfig)
	}
	return nil
}

// Derive ignores t; the system is autonomous.
func (d *DoublePendulum) Derive(x dynamo.State, _ float64) dynamo.State {
	theta1, omega1, theta2, omega2 := x[Theta1], x[Omega1], x[Theta2], x[Omega2]
	m1, m2, l1, l2, g := d.M1, d.M2, d.L1, d.L2, d.Gravity

	delta := theta2 - theta1
	sinD, cosD := math.Sin(delta), math.Cos(delta)

	den1 := (m1+m2)*l1 - m2*l1*cosD*cosD
	den2 := (l2 / l1) * den1

	alpha1 := (m2*l1*omega1*omega1*sinD*cosD +
		m2*g*math.Sin(theta2)*cosD +
		m2*l2*omega2*omega2*sinD -
		(m1+m2)*g*math.Sin(theta1)) / den1

	alpha2 := (-m2*l2*omega2*omega2*sinD*cosD +
		(m1+m2)*g*math.Sin(theta1)*cosD -
		(m1+m2)*l1*omega1*omega1*sinD -
		(m1+m2)*g*math.Sin(theta2)) / den2

	return dynamo.State{omega1, alpha1, omega2, alpha2}
}

// Energy is kinetic plus potential energy with the pivot at height zero.
func (d *DoublePendulum) Energy(x dynamo.State) float64 {
	theta1, omega1, theta2, omega2 := x[Theta1], x[Omega1], x[Theta2], x[Omega2]
	m1, m2, l1, l2, g := d.M1, d.M2, d.L1, d.L2, d.Gravity

	v1sq := l1 * l1 * omega1 * omega1
	v2sq := l1*l1*omega1*omega1 + l2*l2*omega2*omega2 +
		2*l1*l2*omega1*omega2*math.Cos(theta1-theta2)

	ke := 0.5*m1*v1sq + 0.5*m2*v2sq
	y1 := -l1 * math.Cos(theta1)
	y2 := y1 - l2*math.Cos(theta2)
	pe := m1*g*y1 + m2*g*y2

	return ke + pe
}

// Positions returns the Cartesian coordinates of both bobs with the pivot at
// the origin and y pointing up.
func (d *DoublePendulum) Positions(x dynamo.State) (x1, y1, x2, y2 float64) {
	x1 = d.L1 * math.Sin(x[Theta1])
	y1 = -d.L1 * math.Cos(x[Theta1])

	x2 = x1 + d.L2*math.Sin(x[Theta2])
	y2 = y1 - d.L2*math.Cos(x[Theta2])
	return
}

func (d *DoublePendulum) GetParams() map[string]float64 {
	return map[string]float64{
		"g":  d.Gravity,
		"l1": d.L1,
		"l2": d.L2,
		"m1": d.M1,
		"m2": d.M2,
	}
}

func (d *DoublePendulum) SetParam(name string, value float64) error {
	switch name {
	case "g":
		d.Gravity = value
	case "l1":
		d.L1 = value
	case "l2":
		d.L2 = value
	case "m1":
		d.M1 = value
	case "m2":
		d.M2 = value
	default:
		return fmt.Errorf("%w: param %s", dynamo.ErrUnknownName, name)
	}
	return nil
}

// InitialState builds a state from angles in degrees and angular velocities
// in degrees per second.
func InitialState(theta1, omega1, theta2, omega2 float64) dynamo.State {
	const rad = math.Pi / 180
	return dynamo.State{theta1 * rad, omega1 * rad, theta2 * rad, omega2 * rad}
}
