package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/LNR1001/tissue-forge/internal/compute"
	"github.com/LNR1001/tissue-forge/internal/config"
	"github.com/LNR1001/tissue-forge/internal/engine"
	"github.com/LNR1001/tissue-forge/internal/metrics"
	"github.com/LNR1001/tissue-forge/internal/tui"
)

var (
	configFile string
	preset     string
	steps      int64
	runners    int
	backend    string
	seed       int64
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tfsim",
		Short: "particle interaction simulation engine",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a scenario headless",
		RunE:  runScenario,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	runCmd.Flags().StringVar(&preset, "preset", "", "built-in scenario")
	runCmd.Flags().Int64Var(&steps, "steps", 0, "step count (0 uses scenario duration)")
	runCmd.Flags().IntVar(&runners, "runners", 0, "worker count (0: all cpus)")
	runCmd.Flags().StringVar(&backend, "backend", "", "compute backend: cpu, cuda, auto")
	runCmd.Flags().Int64Var(&seed, "seed", 0, "placement seed")
	runCmd.Flags().BoolVar(&verbose, "verbose", false, "engine log to stderr")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run a scenario under the live monitor",
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	liveCmd.Flags().StringVar(&preset, "preset", "", "built-in scenario")
	liveCmd.Flags().Int64Var(&steps, "steps", 0, "step count (0: until quit)")
	liveCmd.Flags().IntVar(&runners, "runners", 0, "worker count")
	liveCmd.Flags().StringVar(&backend, "backend", "", "compute backend")
	liveCmd.Flags().Int64Var(&seed, "seed", 0, "placement seed")

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark stepping rate across worker counts",
		RunE:  benchScenario,
	}
	benchCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	benchCmd.Flags().StringVar(&preset, "preset", "dpd-fluid", "built-in scenario")
	benchCmd.Flags().Int64Var(&steps, "steps", 200, "steps per measurement")

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "show backends and scenario summary",
		RunE:  showInfo,
	}
	infoCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	infoCmd.Flags().StringVar(&preset, "preset", "", "built-in scenario")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list built-in scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [file]",
		Short: "write a default scenario file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if preset != "" {
				if cfg = config.GetPreset(preset); cfg == nil {
					return fmt.Errorf("unknown preset %q (available: %v)", preset, config.ListPresets())
				}
			}
			return config.Save(args[0], cfg)
		},
	}
	initCmd.Flags().StringVar(&preset, "preset", "", "start from a built-in scenario")

	rootCmd.AddCommand(runCmd, liveCmd, benchCmd, infoCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadScenario() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	if preset != "" {
		cfg := config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (available: %v)", preset, config.ListPresets())
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("need --config or --preset")
}

func buildEngine(cfg *config.Config) (*engine.Engine, error) {
	if backend != "" {
		cfg.Backend = backend
	}
	if seed != 0 {
		cfg.Seed = seed
	}
	e, err := config.Build(cfg)
	if err != nil {
		return nil, err
	}
	if verbose {
		e.SetLogWriter(os.Stderr)
	}
	e.Start(runners)
	return e, nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario()
	if err != nil {
		return err
	}
	e, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer e.Close()

	n := steps
	if n <= 0 {
		n = int64(cfg.Duration / cfg.Dt)
	}

	trace := metrics.NewEnergyTrace(int(n))
	drift := metrics.NewEnergyDrift()
	rate := metrics.NewStepRate(64)
	collector := metrics.NewCollector(trace, drift, rate)

	fmt.Printf("running %d steps, %d particles, %d cells, backend %s\n",
		n, e.ParticleCount(), e.CellCount(), e.Backend())
	start := time.Now()

	for i := int64(0); i < n; i++ {
		stepStart := time.Now()
		epot, err := e.Step()
		if err != nil {
			return err
		}
		e.Advance()
		collector.Observe(metrics.Sample{
			Step:        e.StepCount(),
			Time:        e.Time(),
			Epot:        epot,
			Ekin:        e.KineticEnergy(),
			Temperature: e.Temperature(),
			NrParts:     e.ParticleCount(),
			Wall:        time.Since(stepStart),
		})
	}
	elapsed := time.Since(start)

	fmt.Printf("completed in %v (%.0f steps/sec)\n\n", elapsed, float64(n)/elapsed.Seconds())
	fmt.Printf("epot: %.6f   ekin: %.6f   T: %.6f   drift: %.3e\n\n",
		e.PotentialEnergy(), e.KineticEnergy(), e.Temperature(), drift.Value())

	if data := trace.Series(); len(data) > 1 {
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption("total energy"),
		)
		fmt.Println(graph)
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario()
	if err != nil {
		return err
	}
	e, err := buildEngine(cfg)
	if err != nil {
		return err
	}
	defer e.Close()
	return tui.RunLive(e, steps)
}

func benchScenario(cmd *cobra.Command, args []string) error {
	cfg, err := loadScenario()
	if err != nil {
		return err
	}

	fmt.Printf("benchmarking %d steps, %d cells\n\n",
		steps, cfg.Domain.Cells[0]*cfg.Domain.Cells[1]*cfg.Domain.Cells[2])
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUNNERS\tPARTICLES\tTIME\tSTEPS/SEC")

	for _, nr := range []int{1, 2, 4, 8} {
		e, err := config.Build(cfg)
		if err != nil {
			return err
		}
		e.Start(nr)

		start := time.Now()
		for i := int64(0); i < steps; i++ {
			if _, err := e.Step(); err != nil {
				e.Close()
				return err
			}
			e.Advance()
		}
		elapsed := time.Since(start)
		fmt.Fprintf(w, "%d\t%d\t%v\t%.0f\n",
			nr, e.ParticleCount(), elapsed.Round(time.Millisecond),
			float64(steps)/elapsed.Seconds())
		e.Close()
	}
	return w.Flush()
}

func showInfo(cmd *cobra.Command, args []string) error {
	fmt.Println("backends:")
	for _, name := range []string{"cpu", "cuda"} {
		b, err := compute.New(name)
		if err != nil {
			fmt.Printf("  %-6s unavailable\n", name)
			continue
		}
		fmt.Printf("  %-6s %s\n", name, b.Name())
	}

	if configFile == "" && preset == "" {
		fmt.Printf("\npresets: %v\n", config.ListPresets())
		return nil
	}

	cfg, err := loadScenario()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Printf("\ndomain: %v cells %v cutoff %g\n", cfg.Domain.Size, cfg.Domain.Cells, cfg.Cutoff)
	fmt.Printf("dt: %g  flux steps: %d  backend: %s\n", cfg.Dt, cfg.FluxSteps, cfg.Backend)
	fmt.Println("types:")
	for _, t := range cfg.Types {
		fmt.Printf("  %-12s mass %g radius %g count %d species %d\n",
			t.Name, t.Mass, t.Radius, t.Count, len(t.Species))
	}
	fmt.Printf("potentials: %d  fluxes: %d\n", len(cfg.Potential), len(cfg.Fluxes))
	return nil
}
