package config

import "sort"

// Presets are named starting scenarios. classic is the 120°/-10° release
// sampled every 0.05 s for 20 s.
var Presets = map[string]*Config{
	"classic": {
		Integrator: "rk45", Dt: 0.05, Duration: 20.0, Tolerance: 1e-9,
		Physics:   PhysicsConfig{G: 9.8, L1: 1, L2: 1, M1: 1, M2: 1},
		InitState: InitStateConfig{Theta1: 120, Omega1: 0, Theta2: -10, Omega2: 0},
	},
	"gentle": {
		Integrator: "rk45", Dt: 0.05, Duration: 30.0, Tolerance: 1e-9,
		Physics:   PhysicsConfig{G: 9.8, L1: 1, L2: 1, M1: 1, M2: 1},
		InitState: InitStateConfig{Theta1: 10, Theta2: 10},
	},
	"symmetric": {
		Integrator: "rk45", Dt: 0.05, Duration: 30.0, Tolerance: 1e-9,
		Physics:   PhysicsConfig{G: 9.8, L1: 1, L2: 1, M1: 1, M2: 1},
		InitState: InitStateConfig{Theta1: 90, Theta2: 90},
	},
	"chaos": {
		Integrator: "rk45", Dt: 0.02, Duration: 60.0, Tolerance: 1e-10,
		Physics:   PhysicsConfig{G: 9.8, L1: 1, L2: 1, M1: 1, M2: 1},
		InitState: InitStateConfig{Theta1: 170, Theta2: 170},
	},
	"heavy-lower": {
		Integrator: "rk45", Dt: 0.05, Duration: 30.0, Tolerance: 1e-9,
		Physics:   PhysicsConfig{G: 9.8, L1: 1, L2: 0.5, M1: 1, M2: 5},
		InitState: InitStateConfig{Theta1: 60, Theta2: 0},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(name string) *Config {
	cfg, ok := Presets[name]
	if !ok {
		return nil
	}
	c := *cfg
	return &c
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
