package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/amlboard/internal/casebook"
	"github.com/opensource-finance/amlboard/internal/render"
	"github.com/opensource-finance/amlboard/internal/report"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the filtered dashboard report",
		Long: `Classify the case file and print the same report the dashboard shows.

Filter values match the dashboard controls; ALL (the default) means no constraint.

Examples:
  amlboard report --csv aml_report.csv
  amlboard report --risk High --sar "SAR Required"
  amlboard report --typology LAYERING --json`,
		RunE: runReport,
	}

	addDataFlags(cmd)
	cmd.Flags().String("risk", report.All, "risk level filter")
	cmd.Flags().String("typology", report.All, "typology filter")
	cmd.Flags().String("sar", report.All, `SAR filter: ALL, "SAR Required" or "No SAR Required"`)
	cmd.Flags().Bool("json", false, "print the report as JSON")
	cmd.Flags().Bool("no-cases", false, "omit the per-case listing")

	return cmd
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	risk, _ := cmd.Flags().GetString("risk")
	typology, _ := cmd.Flags().GetString("typology")
	sar, _ := cmd.Flags().GetString("sar")
	criteria, err := report.ParseCriteria(risk, typology, sar)
	if err != nil {
		return err
	}

	engine, closeRepo, err := loadEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	book := casebook.New(casebook.FileSource{Path: cfg.Data.CSVPath}, engine, casebook.Options{})
	ds, err := book.Load(ctx)
	if err != nil {
		return err
	}

	rep := report.Build(ds.Cases, criteria)
	rep.DatasetID = ds.ID
	rep.Source = ds.Source

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), rep)
	}

	renderer := render.NewTerminalRenderer()
	if noCases, _ := cmd.Flags().GetBool("no-cases"); noCases {
		renderer.ShowCases = false
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), renderer.Render(rep))
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
