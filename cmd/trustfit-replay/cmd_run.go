package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/trustfit/internal/archive"
	"github.com/MikeSquared-Agency/trustfit/internal/replay"
	"github.com/MikeSquared-Agency/trustfit/internal/session"
	"github.com/MikeSquared-Agency/trustfit/internal/trust"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Refit trust estimates for one participant log",
	Long: `Reads a participant Data.csv (trust feedback in column 12, the recorded
estimate in column 13, performance in column 14), feeds every site visit
through a fresh estimator session and writes TrustFeedback, OriginalEstimate
and NewEstimate for each visit.`,
	Args: cobra.NoArgs,
	RunE: runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	input, _ := cmd.Flags().GetString("input")
	output, _ := cmd.Flags().GetString("output")
	archivePath, _ := cmd.Flags().GetString("archive")
	sessionID, _ := cmd.Flags().GetString("session")
	maxEval, _ := cmd.Flags().GetInt("max-eval")

	in, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	records, err := replay.ReadParticipantCSV(in)
	in.Close()
	if err != nil {
		return fmt.Errorf("parse %s: %w", input, err)
	}
	slog.Info("participant log loaded", "input", input, "visits", len(records))

	var sinks []session.Sink
	if archivePath != "" {
		a, err := archive.Open(archivePath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := a.Close(); closeErr != nil {
				slog.Warn("failed to close archive", "error", closeErr)
			}
		}()
		sinks = append(sinks, a)
	}

	sessions := session.New(slog.Default(), sinks, trust.WithMaxEvaluations(maxEval))
	rows, err := replay.Run(cmd.Context(), sessionID, records, sessions)
	if err != nil {
		return err
	}

	out, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := replay.WriteEstimatesCSV(out, rows); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}

	slog.Info("replay complete", "output", output, "rows", len(rows), "session", sessionID)
	return nil
}
