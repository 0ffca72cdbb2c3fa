package config

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultIntervals = 20
	DefaultHorizon   = 10.0
	DefaultRelTol    = 1e-8
	DefaultAbsTol    = 1e-8
	DefaultNLPTol    = 1e-8
	DefaultMaxIter   = 500
)

type Config struct {
	Model      string           `yaml:"model"`
	Horizon    HorizonConfig    `yaml:"horizon"`
	Integrator IntegratorConfig `yaml:"integrator"`
	Solver     SolverConfig     `yaml:"solver"`
	Problem    ProblemConfig    `yaml:"problem"`
	Workers    int              `yaml:"workers"`
}

type HorizonConfig struct {
	Start     float64 `yaml:"start"`
	End       float64 `yaml:"end"`
	Intervals int     `yaml:"intervals"`
}

type IntegratorConfig struct {
	RelTol float64 `yaml:"rel_tol"`
	AbsTol float64 `yaml:"abs_tol"`
}

type SolverConfig struct {
	Name    string  `yaml:"name"`
	Tol     float64 `yaml:"tol"`
	MaxIter int     `yaml:"max_iter"`
}

type ProblemConfig struct {
	InitState     []float64 `yaml:"init_state"`
	ControlLower  []float64 `yaml:"control_lower"`
	ControlUpper  []float64 `yaml:"control_upper"`
	ParamLower    []float64 `yaml:"param_lower"`
	ParamUpper    []float64 `yaml:"param_upper"`
	PathLower     []float64 `yaml:"path_lower"`
	PathUpper     []float64 `yaml:"path_upper"`
	SimulateGuess bool      `yaml:"simulate_guess"`
}

func DefaultConfig() *Config {
	return &Config{
		Model: "double-integrator",
		Horizon: HorizonConfig{
			End:       DefaultHorizon,
			Intervals: DefaultIntervals,
		},
		Integrator: IntegratorConfig{
			RelTol: DefaultRelTol,
			AbsTol: DefaultAbsTol,
		},
		Solver: SolverConfig{
			Name:    "interior-point",
			Tol:     DefaultNLPTol,
			MaxIter: DefaultMaxIter,
		},
		Problem: ProblemConfig{
			SimulateGuess: true,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
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
