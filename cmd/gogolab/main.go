package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"slices"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/rafidiit-ops/ReverseGoGo/internal/automation"
	"github.com/rafidiit-ops/ReverseGoGo/internal/config"
	"github.com/rafidiit-ops/ReverseGoGo/internal/depth"
	"github.com/rafidiit-ops/ReverseGoGo/internal/grab"
	"github.com/rafidiit-ops/ReverseGoGo/internal/log"
	"github.com/rafidiit-ops/ReverseGoGo/internal/mapping"
	"github.com/rafidiit-ops/ReverseGoGo/internal/metrics"
	"github.com/rafidiit-ops/ReverseGoGo/internal/optim"
	"github.com/rafidiit-ops/ReverseGoGo/internal/recorder"
	"github.com/rafidiit-ops/ReverseGoGo/internal/sim"
	"github.com/rafidiit-ops/ReverseGoGo/internal/storage"
	"github.com/rafidiit-ops/ReverseGoGo/internal/study"
	"github.com/rafidiit-ops/ReverseGoGo/internal/testbed"
	"github.com/rafidiit-ops/ReverseGoGo/internal/tui"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"
)

var (
	dataDir    string
	configFile string
	preset     string
	logLevel   string
	technique  string
	backend    string
	placement  string
	dt         float64
	trace      bool
	// batch
	participants int
	techniques   []string
	workers      int
	// tune
	sweeps    []string
	objective string
	// curve range
	fromDist float64
	toDist   float64
	steps    int

	cfg *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "gogolab",
		Short:             "GoGo / ReverseGoGo interaction testbed",
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "study data directory")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "use preset configuration")
	pf.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	pf.StringVar(&backend, "backend", "csv", "recorder backend (csv or sqlite)")

	runCmd := &cobra.Command{
		Use:   "run [scenario.yaml]",
		Short: "run a scripted participant through the study",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStudy,
	}
	runCmd.Flags().StringVar(&technique, "technique", "", "starting technique (gogo, reverse, legacy)")
	runCmd.Flags().StringVar(&placement, "placement", "", "placement evaluation (deferred or immediate)")
	runCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "tick length in seconds")
	runCmd.Flags().BoolVar(&trace, "trace", false, "save a per-tick trace of the run")

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "run many scripted participants concurrently and compare techniques",
		RunE:  runBatch,
	}
	batchCmd.Flags().IntVar(&participants, "participants", 4, "participants per technique")
	batchCmd.Flags().StringSliceVar(&techniques, "techniques", []string{"gogo", "reverse"}, "techniques to compare")
	batchCmd.Flags().IntVar(&workers, "workers", runtime.NumCPU(), "concurrent runs")
	batchCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "tick length in seconds")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid-search technique parameters against a scripted study",
		RunE:  tune,
	}
	tuneCmd.Flags().StringArrayVar(&sweeps, "sweep", nil, "parameter values as name=v1,v2,... (repeatable)")
	tuneCmd.Flags().StringVar(&objective, "objective", optim.TaskTime, "value to minimise: task_time, errors, failure or a metric name")
	tuneCmd.Flags().StringVar(&technique, "technique", "", "technique to tune (gogo, reverse)")
	tuneCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "tick length in seconds")

	liveCmd := &cobra.Command{
		Use:   "live [scenario.yaml]",
		Short: "replay a scripted participant in the terminal",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().StringVar(&technique, "technique", "", "starting technique (gogo, reverse, legacy)")
	liveCmd.Flags().Float64Var(&dt, "dt", config.DefaultDt, "tick length in seconds")

	curveCmd := &cobra.Command{
		Use:   "curve",
		Short: "plot the depth multiplier and GoGo reach over arm distance",
		RunE:  plotCurve,
	}
	curveCmd.Flags().Float64Var(&fromDist, "from", 0, "first hand distance (m)")
	curveCmd.Flags().Float64Var(&toDist, "to", 0.8, "last hand distance (m)")
	curveCmd.Flags().IntVar(&steps, "steps", 80, "samples")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "summarise recorded participants",
		RunE:  report,
	}

	nextIDCmd := &cobra.Command{
		Use:   "next-id",
		Short: "print the next participant id",
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := openRecorder()
			if err != nil {
				return err
			}
			defer rec.Close()
			fmt.Println(rec.NextParticipantID())
			return nil
		},
	}

	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "list traced runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a traced run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	scenarioCmd := &cobra.Command{
		Use:   "scenario [technique]",
		Short: "print the built-in scenario for a technique as yaml",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := grab.ParseKind(args[0])
			if err != nil {
				return err
			}
			sc, err := automation.Builtin(kind, testbed.DefaultLayout().Tasks())
			if err != nil {
				return err
			}
			data, err := sc.Marshal()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Run: func(cmd *cobra.Command, args []string) {
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
		},
	}

	writeConfigCmd := &cobra.Command{
		Use:   "write-config [path]",
		Short: "write the resolved configuration to a yaml file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Save(args[0], cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", args[0])
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, batchCmd, tuneCmd, liveCmd, curveCmd, reportCmd, nextIDCmd, runsCmd, plotCmd, scenarioCmd, presetsCmd, writeConfigCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig resolves defaults, then the preset, then the config file, then
// any flags given on the command line.
func loadConfig(cmd *cobra.Command, args []string) error {
	cfg = config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		var err error
		if cfg, err = config.LoadOver(configFile, cfg); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") || cfg.LogLevel == "" {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("data") || cfg.Recorder.Dir == "" {
		cfg.Recorder.Dir = dataDir
	}
	if flags.Changed("backend") || cfg.Recorder.Backend == "" {
		cfg.Recorder.Backend = backend
	}
	if flags.Changed("technique") {
		cfg.Technique = technique
	}
	if flags.Changed("placement") {
		cfg.Study.Placement = placement
	}
	if flags.Changed("dt") {
		cfg.Sim.Dt = dt
	}

	log.Init(cfg.LogLevel)
	return cfg.Validate()
}

func openRecorder() (recorder.Recorder, error) {
	rec, err := recorder.Open(cfg.Recorder.Backend, cfg.Recorder.Dir, log.L())
	if err != nil {
		return nil, err
	}
	if err := rec.Init(); err != nil {
		return nil, fmt.Errorf("init recorder: %w", err)
	}
	return rec, nil
}

// scenarioFor loads the scenario at args[0] or builds the built-in one for
// the configured technique. A scenario's own technique wins unless
// --technique was given.
func scenarioFor(cmd *cobra.Command, args []string) (*automation.Scenario, error) {
	if len(args) == 0 {
		kind, err := cfg.Kind()
		if err != nil {
			return nil, err
		}
		return automation.Builtin(kind, testbed.DefaultLayout().Tasks())
	}
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return nil, err
	}
	if sc.Technique != "" && !cmd.Flags().Changed("technique") {
		cfg.Technique = sc.Technique
	}
	return sc, nil
}

func runStudy(cmd *cobra.Command, args []string) error {
	sc, err := scenarioFor(cmd, args)
	if err != nil {
		return err
	}

	rec, err := openRecorder()
	if err != nil {
		return err
	}
	defer rec.Close()

	tb, err := testbed.New(cfg, rec, log.L())
	if err != nil {
		return err
	}
	for _, m := range metrics.Default() {
		tb.AddMetric(m)
	}
	var tr *storage.Trace
	if trace {
		tr = &storage.Trace{}
		tb.AddObserver(tr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s with %s...\n", sc.Name, tb.Switcher.ModeName())
	start := time.Now()
	result, err := tb.Run(ctx, automation.NewPlayer(sc))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("session: %s\n", result.Session)
	fmt.Printf("ticks: %d (%.2fs simulated)\n", result.Ticks, result.Duration)
	fmt.Printf("recorder: %s\n", rec.Path())
	if len(result.Records) > 0 {
		fmt.Println()
		if err := printRecords(result.Records); err != nil {
			return err
		}
	} else {
		fmt.Printf("no participant finished (task %d/%d)\n", tb.State().TrialIndex, study.TasksPerStudy)
	}

	fmt.Println("\nmetrics:")
	names := make([]string, 0, len(result.Metrics))
	for name := range result.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.4f\n", name, result.Metrics[name])
	}

	if tr != nil {
		st := storage.New(filepath.Join(cfg.Recorder.Dir, "runs"))
		if err := st.Init(); err != nil {
			return err
		}
		ids := make([]string, len(result.Records))
		for i, r := range result.Records {
			ids[i] = r.ParticipantID
		}
		runID, err := st.Save(storage.RunMetadata{
			ID:           result.Session,
			Technique:    cfg.Technique,
			Scenario:     sc.Name,
			Dt:           cfg.Sim.Dt,
			Duration:     result.Duration,
			Ticks:        result.Ticks,
			Participants: ids,
			Metrics:      result.Metrics,
		}, tr)
		if err != nil {
			return err
		}
		fmt.Printf("\ntrace: %s\n", runID)
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	if participants < 1 {
		return fmt.Errorf("--participants must be at least 1")
	}
	plans := make([]sim.Plan, 0, participants*len(techniques))
	for range participants {
		for _, t := range techniques {
			plans = append(plans, sim.Plan{Technique: t})
		}
	}

	rec, err := openRecorder()
	if err != nil {
		return err
	}
	defer rec.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	outcomes, err := sim.NewEnsemble(cfg, plans, workers, log.L()).
		WithMetrics(metrics.Default).
		Run(ctx, rec)
	if err != nil && len(outcomes) == 0 {
		return err
	}
	if err != nil {
		log.Warn("batch finished with errors", "err", err)
	}
	fmt.Printf("%d runs in %v\n\n", len(outcomes), time.Since(start))

	byKind := make(map[grab.Kind][]study.TrialRecord)
	var order []grab.Kind
	for _, o := range outcomes {
		if o.Result == nil {
			continue
		}
		if _, ok := byKind[o.Technique]; !ok {
			order = append(order, o.Technique)
		}
		byKind[o.Technique] = append(byKind[o.Technique], o.Result.Records...)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TECHNIQUE\tPARTICIPANTS\tSUCCESS\tERRORS\tAVG TASK\tPULL ACC")
	for _, k := range order {
		recs := byKind[k]
		if len(recs) == 0 {
			fmt.Fprintf(w, "%s\t0\t-\t-\t-\t-\n", k.Label())
			continue
		}
		col := func(f func(study.TrialRecord) float64) float64 {
			v := make([]float64, len(recs))
			for i, r := range recs {
				v[i] = f(r)
			}
			return stat.Mean(v, nil)
		}
		fmt.Fprintf(w, "%s\t%d\t%.2f%%\t%.2f\t%.2fs\t%.2f%%\n",
			k.Label(),
			len(recs),
			col(func(r study.TrialRecord) float64 { return r.SuccessRate }),
			col(func(r study.TrialRecord) float64 { return r.ErrorRate }),
			col(func(r study.TrialRecord) float64 { return r.AverageTaskTime }),
			col(func(r study.TrialRecord) float64 { return r.PullingAccuracy }),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nrecorder: %s\n", rec.Path())
	return nil
}

func tune(cmd *cobra.Command, args []string) error {
	if len(sweeps) == 0 {
		return fmt.Errorf("give at least one --sweep; parameters: %s", strings.Join(optim.ParamNames(), ", "))
	}
	names := make([]string, 0, len(sweeps))
	ranges := make([][]float64, 0, len(sweeps))
	for _, sw := range sweeps {
		name, list, ok := strings.Cut(sw, "=")
		if !ok {
			return fmt.Errorf("bad --sweep %q, want name=v1,v2", sw)
		}
		var vals []float64
		for _, f := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return fmt.Errorf("bad value in --sweep %q: %w", sw, err)
			}
			vals = append(vals, v)
		}
		names = append(names, strings.TrimSpace(name))
		ranges = append(ranges, vals)
	}

	gs, err := optim.NewGridSearch(names, ranges)
	if err != nil {
		return err
	}
	obj, err := optim.StudyObjective(objective)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("tuning %s over %d points, minimising %s...\n\n", cfg.Technique, gs.Size(), objective)
	best, trials, err := gs.Search(ctx, cfg, obj)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(append(slices.Clone(names), objective), "\t")))
	for _, t := range trials {
		row := make([]string, 0, len(names)+1)
		for _, n := range names {
			row = append(row, strconv.FormatFloat(t.Params[n], 'g', -1, 64))
		}
		if t.Err != nil {
			row = append(row, "error: "+t.Err.Error())
		} else {
			row = append(row, fmt.Sprintf("%.4f", t.Value))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	if err != nil {
		return err
	}

	fmt.Printf("\nbest %s = %.4f at", objective, best.Value)
	for _, n := range names {
		fmt.Printf(" %s=%g", n, best.Params[n])
	}
	fmt.Println()
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	sc, err := scenarioFor(cmd, args)
	if err != nil {
		return err
	}

	rec, err := openRecorder()
	if err != nil {
		return err
	}
	defer rec.Close()

	// The TUI owns the terminal; keep logs quiet unless asked for.
	if !cmd.Flags().Changed("log-level") {
		log.Discard()
	}
	tb, err := testbed.New(cfg, rec, log.L())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	records, err := tui.Run(ctx, tb, automation.NewPlayer(sc))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if len(records) > 0 {
		return printRecords(records)
	}
	return nil
}

func plotCurve(cmd *cobra.Command, args []string) error {
	if steps < 2 || toDist <= fromDist {
		return fmt.Errorf("need --to > --from and --steps >= 2")
	}
	mult := make([]float64, steps)
	reach := make([]float64, steps)
	for i := range steps {
		d := fromDist + (toDist-fromDist)*float64(i)/float64(steps-1)
		mult[i] = depth.Multiplier(d, cfg.Depth)
		reach[i] = mapping.VirtualDistance(d, cfg.GoGo)
	}

	fmt.Printf("hand distance %.2fm .. %.2fm\n\n", fromDist, toDist)
	fmt.Println(asciigraph.Plot(mult,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("depth multiplier (threshold %.2f, power %.1f, max %.1f)",
			cfg.Depth.Threshold, cfg.Depth.Power, cfg.Depth.MaxMultiplier)),
	))
	fmt.Println()
	fmt.Println(asciigraph.Plot(reach,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("gogo virtual distance (k %.1f, max %.1fm)",
			cfg.GoGo.ScalingFactor, cfg.GoGo.MaxExtension)),
	))
	return nil
}

func report(cmd *cobra.Command, args []string) error {
	rec, err := openRecorder()
	if err != nil {
		return err
	}
	defer rec.Close()

	records, err := rec.Records()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no participants recorded")
		return nil
	}

	fmt.Printf("%s: %d participants\n\n", rec.Path(), len(records))
	if err := printRecords(records); err != nil {
		return err
	}

	success := make([]float64, len(records))
	taskTime := make([]float64, len(records))
	accuracy := make([]float64, len(records))
	for i, r := range records {
		success[i] = r.SuccessRate
		taskTime[i] = r.AverageTaskTime
		accuracy[i] = r.PullingAccuracy
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MEASURE\tMEAN\tSTDDEV")
	for _, row := range []struct {
		name string
		data []float64
	}{
		{"success rate", success},
		{"avg task time", taskTime},
		{"pulling accuracy", accuracy},
	} {
		sd := 0.0
		if len(row.data) > 1 {
			sd = stat.StdDev(row.data, nil)
		}
		fmt.Fprintf(w, "%s\t%.2f\t%.2f\n", row.name, stat.Mean(row.data, nil), sd)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(records) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(success,
			asciigraph.Height(8),
			asciigraph.Width(60),
			asciigraph.Caption("success rate per participant"),
		))
		fmt.Println()
		fmt.Println(asciigraph.Plot(taskTime,
			asciigraph.Height(8),
			asciigraph.Width(60),
			asciigraph.Caption("average task time per participant (s)"),
		))
	}
	return nil
}

func printRecords(records []study.TrialRecord) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join([]string{"ID", "TIME", "SUCCESS", "ERRORS", "AVG TASK", "PULL ACC"}, "\t"))
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%.2f%%\t%.0f\t%.2fs\t%.2f%%\n",
			r.ParticipantID,
			r.Timestamp.Format(recorder.TimeLayout),
			r.SuccessRate,
			r.ErrorRate,
			r.AverageTaskTime,
			r.PullingAccuracy,
		)
	}
	return w.Flush()
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(filepath.Join(cfg.Recorder.Dir, "runs"))
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTECHNIQUE\tSCENARIO\tTIME\tDURATION\tPARTICIPANTS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2fs\t%s\n",
			run.ID,
			run.Technique,
			run.Scenario,
			run.Timestamp.Format(recorder.TimeLayout),
			run.Duration,
			strings.Join(run.Participants, ","),
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(filepath.Join(cfg.Recorder.Dir, "runs"))
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadTrace(runID)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("technique: %s\n", meta.Technique)
	fmt.Printf("samples: %d\n\n", len(samples))

	series := []struct {
		caption string
		value   func(storage.Sample) float64
	}{
		{"hand distance from hmd (m)", func(s storage.Sample) float64 { return s.HMDDistance }},
		{"depth multiplier", func(s storage.Sample) float64 { return s.Multiplier }},
		{"virtual hand z (m)", func(s storage.Sample) float64 { return s.Virtual.Z }},
	}
	for _, sr := range series {
		data := make([]float64, len(samples))
		for i, s := range samples {
			data[i] = sr.value(s)
		}
		fmt.Println(asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(sr.caption),
		))
		fmt.Println()
	}
	return nil
}
