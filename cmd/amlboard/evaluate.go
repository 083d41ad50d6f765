package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/amlboard/internal/evaluation"
	"github.com/opensource-finance/amlboard/internal/ingest"
	"github.com/opensource-finance/amlboard/internal/render"
)

func evaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Measure classifier accuracy against labelled cases",
		Long: `Classify a labelled case file and compare each result with its
"Expected Typology" column. Prints per-typology precision, recall and F1
and the confusion matrix.

Examples:
  amlboard evaluate --csv labelled.csv
  amlboard evaluate --csv labelled.csv --rules-file rules.yaml --mismatches`,
		RunE: runEvaluate,
	}

	addDataFlags(cmd)
	cmd.Flags().Int("workers", 4, "concurrent classifiers")
	cmd.Flags().Bool("json", false, "print the result as JSON")
	cmd.Flags().Bool("mismatches", false, "list every wrongly classified row")

	return cmd
}

func runEvaluate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	engine, closeRepo, err := loadEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	f, err := os.Open(cfg.Data.CSVPath)
	if err != nil {
		return fmt.Errorf("%w: %v", ingest.ErrMalformedInput, err)
	}
	records, err := ingest.Read(f)
	f.Close()
	if err != nil {
		return err
	}

	var (
		mu         sync.Mutex
		mismatches []evaluation.Mismatch
	)
	workers, _ := cmd.Flags().GetInt("workers")
	res, err := evaluation.Run(ctx, records, engine, evaluation.Options{
		Workers: workers,
		OnMismatch: func(m evaluation.Mismatch) {
			mu.Lock()
			mismatches = append(mismatches, m)
			mu.Unlock()
		},
	})
	if err != nil {
		return err
	}
	if res.Labelled == 0 {
		return errors.New(`no labelled rows: add an "Expected Typology" column`)
	}
	sort.Slice(mismatches, func(i, j int) bool { return mismatches[i].Row < mismatches[j].Row })

	slog.Debug("evaluation complete", "labelled", res.Labelled, "accuracy", res.Accuracy, "duration", res.Duration)

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(out, struct {
			*evaluation.Result
			Mismatches []evaluation.Mismatch `json:"mismatches"`
		}{res, mismatches})
	}

	fmt.Fprint(out, render.NewTerminalRenderer().RenderEvaluation(res))
	if show, _ := cmd.Flags().GetBool("mismatches"); show && len(mismatches) > 0 {
		fmt.Fprintln(out, "\nMismatches:")
		for _, m := range mismatches {
			fmt.Fprintf(out, "  row %-4d expected %-12s got %-12s %s\n", m.Row, m.Expected, m.Predicted, m.Scenario)
		}
	}
	return nil
}
