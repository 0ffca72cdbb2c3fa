package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/trajopt/internal/config"
	"github.com/san-kum/trajopt/internal/integrators"
	"github.com/san-kum/trajopt/internal/models"
	"github.com/san-kum/trajopt/internal/nlp"
	"github.com/san-kum/trajopt/internal/ocp"
	"github.com/san-kum/trajopt/internal/viz"
)

var (
	configFile string
	preset     string
	intervals  int
	horizon    float64
	workers    int
	verbose    bool
	showPlots  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trajopt",
		Short: "multiple-shooting optimal control solver",
	}

	solveCmd := &cobra.Command{
		Use:   "solve [model]",
		Short: "transcribe and solve a control problem",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSolve,
	}
	solveCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	solveCmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	solveCmd.Flags().IntVar(&intervals, "intervals", 0, "override shooting intervals")
	solveCmd.Flags().Float64Var(&horizon, "horizon", 0, "override horizon length")
	solveCmd.Flags().IntVar(&workers, "workers", 0, "parallel interval evaluations")
	solveCmd.Flags().BoolVar(&showPlots, "plot", true, "plot trajectories")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list models and presets",
		RunE:  listModels,
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write a default config file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.Save(args[0], config.DefaultConfig())
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "solver iteration logging")
	rootCmd.AddCommand(solveCmd, modelsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, viz.StatusBad.Render("error: ")+err.Error())
		os.Exit(1)
	}
}

func loadConfig(args []string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if len(args) > 0 {
		cfg.Model = args[0]
	}
	if preset != "" {
		p := config.GetPreset(cfg.Model, preset)
		if p == nil {
			return nil, fmt.Errorf("no preset %q for model %q", preset, cfg.Model)
		}
		cfg = p
	}
	if intervals > 0 {
		cfg.Horizon.Intervals = intervals
	}
	if horizon > 0 {
		cfg.Horizon.End = cfg.Horizon.Start + horizon
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	return cfg, nil
}

func runSolve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return err
		}
		defer logger.Sync()
	}

	model, err := models.ByName(cfg.Model)
	if err != nil {
		return err
	}

	icfg := integrators.DefaultConfig()
	icfg.RelTol = cfg.Integrator.RelTol
	icfg.AbsTol = cfg.Integrator.AbsTol

	opts := nlp.DefaultOptions()
	opts.Tol = cfg.Solver.Tol
	opts.MaxIter = cfg.Solver.MaxIter

	tr, err := ocp.New(ocp.Config{
		Grid:          ocp.UniformGrid(cfg.Horizon.Start, cfg.Horizon.End, cfg.Horizon.Intervals),
		Dynamics:      model.Dynamics,
		Mayer:         model.Mayer,
		Lagrange:      model.Lagrange,
		Path:          model.Path,
		Integrator:    icfg,
		Solver:        cfg.Solver.Name,
		SolverOptions: opts,
		Workers:       cfg.Workers,
		Logger:        logger,
	}, nlp.DefaultRegistry())
	if err != nil {
		return err
	}
	if err := applyProblem(tr, &cfg.Problem); err != nil {
		return err
	}

	sol, err := tr.Solve(context.Background())
	if sol == nil && err != nil {
		return err
	}

	status := viz.StatusGood.Render(sol.Status().String())
	if err != nil {
		status = viz.StatusBad.Render(sol.Status().String())
	}
	fmt.Println(viz.Summary(cfg.Model, [][2]string{
		{"status", status},
		{"objective", fmt.Sprintf("%.8g", sol.Objective())},
		{"iterations", fmt.Sprintf("%d", sol.Iterations())},
		{"residual", fmt.Sprintf("%.3e", sol.Residual())},
		{"intervals", fmt.Sprintf("%d", cfg.Horizon.Intervals)},
	}))

	if showPlots {
		states := make([][]float64, cfg.Horizon.Intervals+1)
		for k := range states {
			states[k] = sol.State(k)
		}
		fmt.Println(viz.StatePlots(states))
		if tr.NumControls() > 0 {
			fmt.Println(viz.ControlPlot(sol.Controls()))
		}
	}
	if len(sol.Parameters()) > 0 {
		fmt.Println(viz.Subtle.Render(fmt.Sprintf("parameters: %v", sol.Parameters())))
	}
	return err
}

func applyProblem(tr *ocp.Transcriber, p *config.ProblemConfig) error {
	if len(p.InitState) > 0 {
		if err := tr.SetInitialState(p.InitState); err != nil {
			return err
		}
	}
	if len(p.ControlLower) > 0 || len(p.ControlUpper) > 0 {
		lb, ub := orInf(p.ControlLower, tr.NumControls(), -1), orInf(p.ControlUpper, tr.NumControls(), 1)
		if err := tr.SetControlBounds(lb, ub); err != nil {
			return err
		}
	}
	if len(p.ParamLower) > 0 || len(p.ParamUpper) > 0 {
		lb, ub := orInf(p.ParamLower, tr.NumParameters(), -1), orInf(p.ParamUpper, tr.NumParameters(), 1)
		if err := tr.SetParameterBounds(lb, ub); err != nil {
			return err
		}
	}
	if len(p.PathLower) > 0 || len(p.PathUpper) > 0 {
		lb, ub := orInf(p.PathLower, tr.NumPath(), -1), orInf(p.PathUpper, tr.NumPath(), 1)
		if err := tr.SetPathBounds(lb, ub); err != nil {
			return err
		}
	}
	if p.SimulateGuess {
		return tr.SimulateGuess(context.Background())
	}
	return nil
}

// orInf pads an absent bound vector with infinities of the given sign.
func orInf(v []float64, n, sign int) []float64 {
	if len(v) > 0 {
		return v
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Inf(sign)
	}
	return out
}

func listModels(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, viz.Title.Render("model")+"\t"+viz.Title.Render("presets"))
	for _, name := range models.Names() {
		presets := config.ListPresets(name)
		fmt.Fprintf(w, "%s\t%v\n", name, presets)
	}
	return w.Flush()
}
