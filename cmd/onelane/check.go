package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gookit/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/timewinder-dev/onelane/model"
)

var checkCmd = &cobra.Command{
	Use:   "check SCENARIO...",
	Short: "Run scenarios silently and report which satisfy every property",
	Args:  cobra.MinimumNArgs(1),
	Run:   checkCommand,
}

func checkScenario(ctx context.Context, path string) (*model.RunResult, error) {
	spec, err := model.LoadSpecFromFile(path)
	if err != nil {
		return nil, err
	}
	exec, err := spec.BuildExecutor()
	if err != nil {
		return nil, err
	}
	if err := exec.Initialize(); err != nil {
		return nil, err
	}
	return exec.Run(ctx)
}

func checkCommand(cmd *cobra.Command, args []string) {
	failed := 0
	for _, path := range args {
		result, err := checkScenario(cmd.Context(), path)
		switch {
		case err != nil:
			failed++
			fmt.Fprintf(os.Stdout, "%s %s: %v\n", color.Red.Sprint("ERROR"), path, err)
			log.Debug().Err(err).Str("scenario", path).Msg("Scenario failed")
		case !result.Success:
			failed++
			fmt.Fprintf(os.Stdout, "%s %s: %d violation(s)\n", color.Red.Sprint("FAIL "), path, len(result.Violations))
			fmt.Fprint(os.Stdout, model.FormatAllViolations(result.Violations))
		default:
			fmt.Fprintf(os.Stdout, "%s %s (%d events, %d unique states)\n", color.Green.Sprint("PASS "), path,
				result.Statistics.Events, result.Statistics.UniqueStates)
		}
	}
	if failed > 0 {
		os.Exit(1)
	}
}
