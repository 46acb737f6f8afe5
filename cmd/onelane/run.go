package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/timewinder-dev/onelane/model"
)

var (
	scenarioPath    string
	crossingTime    time.Duration
	seed            uint64
	arrivalInterval time.Duration
	stallTimeout    time.Duration
	quietFlag       bool
	debugFlag       bool
	keepGoing       bool
	detailsFlag     bool
	checkWorkers    int
)

var runCmd = &cobra.Command{
	Use:   "run [COUNT] [MAX_LOAD]",
	Short: "Run the bridge simulation",
	Long: `Run COUNT vehicles over a bridge holding at most MAX_LOAD at once, or the
scenario given with --scenario. Positional arguments override the scenario.`,
	Args: cobra.RangeArgs(0, 2),
	Run:  runCommand,
}

func init() {
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Scenario file (.toml or .yaml)")
	runCmd.Flags().DurationVar(&crossingTime, "crossing-time", 0, "Time each vehicle spends on the bridge (default 1s)")
	runCmd.Flags().Uint64Var(&seed, "seed", 0, "Seed for direction assignment (0 uses the clock)")
	runCmd.Flags().DurationVar(&arrivalInterval, "arrival-interval", 0, "Delay between starting consecutive vehicles")
	runCmd.Flags().DurationVar(&stallTimeout, "stall-timeout", 0, "Fail if the bridge makes no progress for this long (0 disables)")
	runCmd.Flags().BoolVar(&quietFlag, "quiet", false, "Do not print the bridge after every event")
	runCmd.Flags().BoolVar(&debugFlag, "debug", false, "Print every event, including arrivals, with full counters")
	runCmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Report every violation instead of the first per property")
	runCmd.Flags().BoolVar(&detailsFlag, "details", false, "Show detailed trace reconstruction when property violations occur")
	runCmd.Flags().IntVar(&checkWorkers, "check-workers", 0, "Number of property check workers (0 uses NumCPU/2)")
}

func loadSpec(cmd *cobra.Command, args []string) (*model.Spec, error) {
	var spec *model.Spec
	if scenarioPath != "" {
		s, err := model.LoadSpecFromFile(scenarioPath)
		if err != nil {
			return nil, err
		}
		spec = s
	} else {
		if len(args) != 2 {
			return nil, fmt.Errorf("need COUNT and MAX_LOAD, or --scenario")
		}
		spec = model.DefaultSpec(0, 0)
	}

	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return nil, fmt.Errorf("COUNT %q is not a number", args[0])
		}
		spec.Bridge.Vehicles = n
		// An explicit direction list no longer matches a new count.
		spec.Traffic.Directions = nil
	}
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, fmt.Errorf("MAX_LOAD %q is not a number", args[1])
		}
		spec.Bridge.MaxLoad = n
	}

	flags := cmd.Flags()
	if flags.Changed("crossing-time") {
		spec.Bridge.CrossingTime.Duration = crossingTime
	}
	if flags.Changed("seed") {
		spec.Traffic.Seed = seed
	}
	if flags.Changed("arrival-interval") {
		spec.Traffic.ArrivalInterval.Duration = arrivalInterval
	}
	if flags.Changed("stall-timeout") {
		spec.Traffic.StallTimeout.Duration = stallTimeout
	}
	return spec, nil
}

func runCommand(cmd *cobra.Command, args []string) {
	spec, err := loadSpec(cmd, args)
	if err != nil {
		log.Fatal().Err(err).Msg("Couldn't load scenario")
	}
	exec, err := spec.BuildExecutor()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid bridge configuration")
	}
	if !quietFlag {
		exec.Reporter = &model.ColorReporter{Writer: os.Stdout}
	}
	if debugFlag {
		exec.DebugWriter = os.Stderr
	}
	exec.KeepGoing = keepGoing
	exec.ShowDetails = detailsFlag
	exec.CheckThreads = checkWorkers

	if err := exec.Initialize(); err != nil {
		log.Fatal().Err(err).Msg("Couldn't initialize the bridge")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintln(os.Stderr, color.Cyan.Sprintf("Running %d vehicles, max load %d...", spec.Bridge.Vehicles, spec.Bridge.MaxLoad))
	result, err := exec.Run(ctx)
	if result != nil {
		if keepGoing {
			fmt.Fprint(os.Stderr, model.FormatAllViolations(result.Violations))
		} else if len(result.Violations) > 0 {
			fmt.Fprint(os.Stderr, model.FormatPropertyViolation(result.Violations[0]))
		}
		fmt.Fprint(os.Stderr, model.FormatStatistics(result.Statistics, exec.Endpoints))
	}
	if err != nil {
		if result != nil {
			fmt.Fprint(os.Stderr, model.FormatSnapshot(result.Final, exec.Endpoints))
		}
		log.Fatal().Err(err).Msg("Run did not complete")
	}
	if !result.Success {
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, color.Green.Sprint("✓ Every vehicle crossed - all properties satisfied!"))
}
