package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/mcdev12/excon/go/internal/exercise/broadcast"
	"github.com/mcdev12/excon/go/internal/exercise/checkpoint"
	"github.com/mcdev12/excon/go/internal/exercise/timefmt"
	"github.com/mcdev12/excon/go/internal/models"
	"github.com/spf13/cobra"
)

var errNoCheckpoint = errors.New("no checkpoint found")

func snapshotCmd(config *Config) *cobra.Command {
	var summary bool
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the last published exercise state",
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := checkpoint.Open(cmd.Context(), config.Checkpoint)
			if err != nil {
				return fmt.Errorf("failed to open checkpoint store: %w", err)
			}
			defer kv.Close()

			key := broadcast.NamesFor(config.Sync.Deployment).CheckpointKey
			snap := checkpoint.ReadSnapshot(cmd.Context(), kv, key)
			if snap == nil {
				return fmt.Errorf("%w under %s", errNoCheckpoint, key)
			}
			if summary {
				printSummary(cmd.OutOrStdout(), *snap)
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		},
	}
	cmd.Flags().BoolVar(&summary, "summary", false, "print a human-readable summary instead of JSON")
	return cmd
}

func printSummary(w io.Writer, snap models.DashboardSnapshot) {
	bold := color.New(color.Bold)

	name := snap.ExerciseName
	if name == "" {
		name = "(unnamed exercise)"
	}
	fmt.Fprintf(w, "%s\n", bold.Sprint(name))
	if snap.ControllerName != "" {
		fmt.Fprintf(w, "  controller: %s\n", snap.ControllerName)
	}
	if snap.ExerciseFinishTime != "" {
		fmt.Fprintf(w, "  finish:     %s\n", snap.ExerciseFinishTime)
	}

	state := color.New(color.FgYellow).Sprint("STOPPED")
	if snap.IsRunning {
		state = color.New(color.FgGreen).Sprint("RUNNING")
	}
	fmt.Fprintf(w, "  clock:      %s %s\n", timefmt.FormatHMS(snap.CurrentSeconds), state)

	fmt.Fprintf(w, "\n%s (%d)\n", bold.Sprint("Injects"), len(snap.Injects))
	for _, inj := range snap.Injects {
		fmt.Fprintf(w, "  %3d  %s  %-9s  %s\n", inj.Number, timefmt.FormatHMS(inj.DueSeconds), injectStatus(inj.Status), inj.Title)
	}

	fmt.Fprintf(w, "\n%s (%d)\n", bold.Sprint("Resources"), len(snap.Resources))
	for _, res := range snap.Resources {
		fmt.Fprintf(w, "  %s  %-9s  %s\n", timefmt.FormatHMS(res.ETASeconds), resourceStatus(res.Status), res.Label)
	}
}

func injectStatus(status models.InjectStatus) string {
	switch status {
	case models.InjectStatusCompleted:
		return color.New(color.FgGreen).Sprint(status)
	case models.InjectStatusMissed:
		return color.New(color.FgRed).Sprint(status)
	case models.InjectStatusSkipped:
		return color.New(color.FgHiBlack).Sprint(status)
	default:
		return string(status)
	}
}

func resourceStatus(status models.ResourceStatus) string {
	switch status {
	case models.ResourceStatusArrived:
		return color.New(color.FgGreen).Sprint(status)
	case models.ResourceStatusEnroute:
		return color.New(color.FgCyan).Sprint(status)
	case models.ResourceStatusCancelled:
		return color.New(color.FgHiBlack).Sprint(status)
	default:
		return string(status)
	}
}
