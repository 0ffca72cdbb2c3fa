package config

import "math"

var Presets = map[string]map[string]*Config{
	"harvester": {
		"cycle": {
			Model: "harvester",
			Horizon: HorizonConfig{End: 2 * math.Pi, Intervals: 20},
			Problem: ProblemConfig{
				InitState:     []float64{1, 0, 0},
				ControlLower:  []float64{-1},
				ControlUpper:  []float64{1},
				SimulateGuess: true,
			},
		},
		"long": {
			Model: "harvester",
			Horizon: HorizonConfig{End: 6 * math.Pi, Intervals: 60},
			Problem: ProblemConfig{
				InitState:     []float64{1, 0, 0},
				ControlLower:  []float64{-1},
				ControlUpper:  []float64{1},
				SimulateGuess: true,
			},
		},
	},
	"powered-ascent": {
		"nominal": {
			Model: "powered-ascent",
			Horizon: HorizonConfig{End: 1, Intervals: 1},
			Problem: ProblemConfig{
				InitState:     []float64{10, 0},
				ParamLower:    []float64{0},
				ParamUpper:    []float64{0.5},
				SimulateGuess: true,
			},
		},
		"multiple-shooting": {
			Model: "powered-ascent",
			Horizon: HorizonConfig{End: 1, Intervals: 10},
			Problem: ProblemConfig{
				InitState:     []float64{10, 0},
				ParamLower:    []float64{0},
				ParamUpper:    []float64{0.5},
				SimulateGuess: true,
			},
		},
	},
	"vanderpol": {
		"regulate": {
			Model: "vanderpol",
			Horizon: HorizonConfig{End: 10, Intervals: 30},
			Problem: ProblemConfig{
				InitState:     []float64{0, 1},
				ControlLower:  []float64{-1},
				ControlUpper:  []float64{1},
				PathLower:     []float64{-0.25},
				PathUpper:     []float64{math.Inf(1)},
				SimulateGuess: true,
			},
		},
	},
	"double-integrator": {
		"transfer": {
			Model: "double-integrator",
			Horizon: HorizonConfig{End: 1, Intervals: 10},
			Problem: ProblemConfig{
				InitState: []float64{0, 0},
			},
		},
	},
}

func GetPreset(model, name string) *Config {
	group, ok := Presets[model]
	if !ok {
		return nil
	}
	preset, ok := group[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Model = preset.Model
	cfg.Horizon = preset.Horizon
	cfg.Problem = preset.Problem
	if preset.Solver.Name != "" {
		cfg.Solver = preset.Solver
	}
	if preset.Workers != 0 {
		cfg.Workers = preset.Workers
	}
	return cfg
}

func ListPresets(model string) []string {
	group, ok := Presets[model]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(group))
	for name := range group {
		names = append(names, name)
	}
	return names
}
