package cmd

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/tandem-sim/tandem-sim/sim"
	"github.com/tandem-sim/tandem-sim/sim/analytic"
	"github.com/tandem-sim/tandem-sim/sim/trace"
)

var (
	// CLI flags for the load and the server
	lambda float64 // Arrival rate; 0 means derive it from rho
	rho    float64 // Server utilisation
	mu1    float64 // Stage-1 service rate
	mu2    float64 // Stage-2 service rate

	// CLI flags for batch means
	transient    int     // Departures discarded before measuring
	batchSize    int     // Initial departures per round
	rounds       int     // Rounds per attempt
	confidence   float64 // Confidence level of the intervals
	precision    float64 // Target relative half width
	maxDoublings int     // Batch size doublings before giving up

	// CLI flags for the run itself
	seed          int64  // Seed for arrival and service streams
	schedulerKind string // Event scheduler implementation
	traceLevel    string // Trace verbosity
	logLevel      string // Log verbosity level
	configPath    string // Optional YAML run config
	presetName    string // Preset inside the run config
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "tandem-sim",
	Short: "Discrete-event simulator for a two-stage tandem queue with a shared preemptive server",
}

// runCmd simulates until every estimate reaches the requested precision
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the batch-means simulation",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg := sim.DefaultControllerConfig()
		if configPath != "" {
			rc, err := loadRunConfig(configPath)
			if err != nil {
				logrus.Fatalf("Failed to load run config: %v", err)
			}
			scenario, err := rc.Resolve(presetName)
			if err != nil {
				logrus.Fatalf("Failed to resolve run config: %v", err)
			}
			scenario.applyTo(&cfg)
			logrus.Infof("Loaded run config %s (preset %q)", configPath, presetName)
		} else if presetName != "" {
			logrus.Fatalf("--preset requires --config")
		}
		applyFlags(cmd, &cfg)

		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		logrus.Infof("Starting simulation: λ=%.4f ρ=%.4f μ1=%v μ2=%v N=%d K=%d M=%d target=%v",
			cfg.Arrival.Rate(cfg.Service), cfg.Utilization(), cfg.Service.Rate1, cfg.Service.Rate2,
			cfg.Rounds.InitialBatch, cfg.Rounds.Rounds, cfg.Rounds.Transient, cfg.Precision.Target)
		startTime := time.Now()

		c, err := sim.NewController(cfg)
		if err != nil {
			logrus.Fatalf("Failed to create controller: %v", err)
		}
		rep, err := c.Run()
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		var reference map[string]float64
		if q, err := analytic.NewMM1(rep.Lambda, cfg.Service.Rate1); err == nil {
			reference = q.Stage1()
			reference[sim.MetricU.MeanName()] = analytic.ServerUtilization(rep.Lambda, cfg.Service.Rate1, cfg.Service.Rate2)
		}
		printReport(os.Stdout, rep, reference)
		if st := c.Trace(); st != nil {
			printTraceSummary(os.Stdout, trace.Summarize(st))
		}

		logrus.Infof("Simulation complete in %s.", time.Since(startTime).Round(time.Millisecond))
	},
}

// theoryCmd prints the closed-form stage-1 values without simulating
var theoryCmd = &cobra.Command{
	Use:   "theory",
	Short: "Print exact M/M/1 values for stage 1",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		cfg := sim.DefaultControllerConfig()
		applyFlags(cmd, &cfg)
		if err := cfg.Validate(); err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		lam := cfg.Arrival.Rate(cfg.Service)
		q, err := analytic.NewMM1(lam, cfg.Service.Rate1)
		if err != nil {
			logrus.Fatalf("Stage 1 has no steady state: %v", err)
		}
		printTheory(os.Stdout, q, analytic.ServerUtilization(lam, cfg.Service.Rate1, cfg.Service.Rate2))
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// applyFlags copies explicitly set flags into cfg, so they win over both the
// built-in defaults and the run config file.
func applyFlags(cmd *cobra.Command, cfg *sim.ControllerConfig) {
	flags := cmd.Flags()
	if flags.Changed("lambda") {
		cfg.Arrival.Lambda = lambda
	}
	if flags.Changed("rho") {
		cfg.Arrival.Rho = rho
		if !flags.Changed("lambda") {
			cfg.Arrival.Lambda = 0
		}
	}
	if flags.Changed("mu1") {
		cfg.Service.Rate1 = mu1
	}
	if flags.Changed("mu2") {
		cfg.Service.Rate2 = mu2
	}
	if flags.Changed("transient") {
		cfg.Rounds.Transient = transient
	}
	if flags.Changed("batch") {
		cfg.Rounds.InitialBatch = batchSize
	}
	if flags.Changed("rounds") {
		cfg.Rounds.Rounds = rounds
	}
	if flags.Changed("max-doublings") {
		cfg.Rounds.MaxDoublings = maxDoublings
	}
	if flags.Changed("confidence") {
		cfg.Precision.Confidence = confidence
	}
	if flags.Changed("precision") {
		cfg.Precision.Target = precision
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("scheduler") {
		cfg.Scheduler = sim.SchedulerKind(schedulerKind)
	}
	if flags.Changed("trace") {
		cfg.Trace = trace.TraceLevel(traceLevel)
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func registerLoadFlags(cmd *cobra.Command) {
	d := sim.DefaultControllerConfig()
	cmd.Flags().Float64Var(&lambda, "lambda", 0, "Arrival rate λ (overrides --rho when set)")
	cmd.Flags().Float64Var(&rho, "rho", d.Arrival.Rho, "Server utilisation ρ; λ = ρ/(1/μ1 + 1/μ2)")
	cmd.Flags().Float64Var(&mu1, "mu1", d.Service.Rate1, "Stage-1 service rate")
	cmd.Flags().Float64Var(&mu2, "mu2", d.Service.Rate2, "Stage-2 service rate")
	cmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
}

// init sets up CLI flags and subcommands
func init() {
	d := sim.DefaultControllerConfig()

	registerLoadFlags(runCmd)
	registerLoadFlags(theoryCmd)

	// Batch means
	runCmd.Flags().IntVar(&transient, "transient", d.Rounds.Transient, "Departures simulated and discarded before the first round")
	runCmd.Flags().IntVar(&batchSize, "batch", d.Rounds.InitialBatch, "Initial same-epoch departures per round")
	runCmd.Flags().IntVar(&rounds, "rounds", d.Rounds.Rounds, "Rounds per attempt")
	runCmd.Flags().Float64Var(&confidence, "confidence", d.Precision.Confidence, "Confidence level of the intervals")
	runCmd.Flags().Float64Var(&precision, "precision", d.Precision.Target, "Target relative half width of every estimate")
	runCmd.Flags().IntVar(&maxDoublings, "max-doublings", d.Rounds.MaxDoublings, "Batch size doublings before reporting the best precision reached")

	// Run
	runCmd.Flags().Int64Var(&seed, "seed", d.Seed, "Seed for arrival and service streams")
	runCmd.Flags().StringVar(&schedulerKind, "scheduler", string(d.Scheduler), "Event scheduler (linear, heap)")
	runCmd.Flags().StringVar(&traceLevel, "trace", string(d.Trace), "Trace level (none, rounds, preemptions)")
	runCmd.Flags().StringVar(&configPath, "config", "", "YAML run config; explicitly set flags override it")
	runCmd.Flags().StringVar(&presetName, "preset", "", "Named preset from the run config")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(theoryCmd)
}
