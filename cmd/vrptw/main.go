// Command vrptw plans delivery routes for a CSV of stops and prints one plan
// per vehicle.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"go.uber.org/zap"

	"routeplanner/internal/buildinfo"
	"routeplanner/internal/config"
	"routeplanner/internal/loader"
	"routeplanner/internal/logger"
	"routeplanner/internal/opt"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "vrptw:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("vrptw", flag.ContinueOnError)
	data := fs.String("data", "data.csv", "CSV file of stops; the first row is the depot")
	configPath := fs.String("config", "", "YAML config file with fleet and solver defaults")
	timeLimit := fs.Duration("time-limit", 0, "search time limit (overrides config)")
	workers := fs.Int("workers", -1, "concurrent move evaluators (overrides config)")
	asJSON := fs.Bool("json", false, "print the solution as JSON")
	version := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *version {
		fmt.Fprintln(stdout, buildinfo.Info()["version"])
		return nil
	}

	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = lg.Sync() }()

	stops, err := loader.ReadFile(*data)
	if err != nil {
		return err
	}
	params := cfg.Solver.Params()
	if *timeLimit > 0 {
		params.TimeLimit = *timeLimit
	}
	if *workers >= 0 {
		params.Workers = *workers
	}
	params.Logger = lg

	in, err := opt.NewInstance(stops, cfg.Solver.Fleet())
	if err != nil {
		return err
	}
	start := time.Now()
	sol, err := opt.Solve(ctx, in, params)
	if err != nil {
		var nfi *opt.NoFeasibleInsertionError
		if errors.As(err, &nfi) || errors.As(err, new(*opt.NoSolutionError)) {
			fmt.Fprintln(stdout, "No solution found!")
		}
		return err
	}
	lg.Debug("solved", zap.Duration("elapsed", time.Since(start)))

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sol)
	}
	return writeReport(stdout, sol)
}

// writeReport prints every vehicle's stops with the window in which service
// can start, then the per-route and fleet totals.
func writeReport(w io.Writer, sol *opt.Solution) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Objective: %d\n", sol.Objective)
	for _, rp := range sol.Routes {
		parts := make([]string, len(rp.Visits))
		for i, v := range rp.Visits {
			parts[i] = fmt.Sprintf("%d Time(%d,%d)", v.Node, v.TimeMin, v.TimeMax)
		}
		fmt.Fprintf(bw, "Route for vehicle %d:\n", rp.Vehicle)
		fmt.Fprintf(bw, " %s\n", strings.Join(parts, " -> "))
		fmt.Fprintf(bw, "Distance of the route: %dkm\n", rp.Distance)
		fmt.Fprintf(bw, "Load of the route: volume %d, weight %d\n", rp.Volume, rp.Weight)
		fmt.Fprintf(bw, "Time of the route: %dmin\n\n", rp.Time)
	}
	fmt.Fprintf(bw, "Total distance of all routes: %dkm\n", sol.TotalDistance)
	fmt.Fprintf(bw, "Maximum of the route distances: %dkm\n", sol.MaxRouteDistance)
	fmt.Fprintf(bw, "Total time of all routes: %dmin\n", sol.TotalTime)
	return bw.Flush()
}
