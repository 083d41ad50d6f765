package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/amlboard/internal/render"
)

func classifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classify <scenario...>",
		Short: "Classify a single scenario",
		Long: `Classify free-text scenario wording into a money-laundering typology
using the configured rules.

Examples:
  amlboard classify Cryptocurrency mixer withdrawals
  amlboard classify --json "Structuring below reporting threshold"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runClassify,
	}

	cmd.Flags().String("rules-source", "", "rule source: builtin, file or repository")
	cmd.Flags().String("rules-file", "", "YAML rules file for --rules-source file")
	cmd.Flags().Bool("json", false, "print the classification as JSON")

	return cmd
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	engine, closeRepo, err := loadEngine(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	scenario := strings.Join(args, " ")
	result := engine.ClassifyDetail(scenario)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return writeJSON(cmd.OutOrStdout(), result)
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), render.NewTerminalRenderer().RenderClassification(scenario, result))
	return err
}
