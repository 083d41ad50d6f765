package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/amlboard/internal/domain"
	"github.com/opensource-finance/amlboard/internal/report"
)

const casesCSV = "Scenario,Level,Overall Score,SAR\n" +
	"Structuring of cash deposits,High,91,True\n" +
	"Cryptocurrency mixer withdrawals,Medium,60,False\n" +
	"Shell company transfers,Low,20,False\n" +
	"Sub-threshold deposits,High,88,True\n"

const labelledCSV = "Scenario,Level,Overall Score,SAR,Expected Typology\n" +
	"Structuring below threshold,High,90,True,STRUCTURING\n" +
	"Crypto mixer withdrawals,Medium,60,False,layering\n" +
	"Wildlife trade proceeds,High,80,True,LAYERING\n" +
	"Salary payments,Low,10,False,PLACEMENT\n" +
	"Structuring again,High,85,True,\n"

const shellRules = `rules:
  - id: shell-001
    typology: LAYERING
    expression: scenario.contains("shell company")
    priority: 1
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// execute runs the CLI with args against a clean viper state.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--log-level", "error"))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "amlboard "+Version)
}

func TestReportCommand(t *testing.T) {
	csvPath := writeFile(t, "cases.csv", casesCSV)

	t.Run("Terminal", func(t *testing.T) {
		out, err := execute(t, "report", "--csv", csvPath)
		require.NoError(t, err)
		assert.Contains(t, out, "Total Cases")
		assert.Contains(t, out, "Structuring of cash deposits")
		assert.Contains(t, out, "MODERATE RISK")
	})

	t.Run("NoCases", func(t *testing.T) {
		out, err := execute(t, "report", "--csv", csvPath, "--no-cases")
		require.NoError(t, err)
		assert.NotContains(t, out, "Structuring of cash deposits")
	})

	t.Run("JSONFiltered", func(t *testing.T) {
		out, err := execute(t, "report", "--csv", csvPath, "--typology", "structuring", "--json")
		require.NoError(t, err)

		var rep report.Report
		require.NoError(t, json.Unmarshal([]byte(out), &rep))
		assert.Equal(t, 2, rep.Summary.TotalCases)
		assert.Equal(t, 2, rep.Summary.SARCount)
		assert.Equal(t, report.BandHigh, rep.Assessment.Band)
		assert.NotEmpty(t, rep.DatasetID)
		assert.Equal(t, csvPath, rep.Source)
	})

	t.Run("NoMatches", func(t *testing.T) {
		out, err := execute(t, "report", "--csv", csvPath, "--risk", "Critical")
		require.NoError(t, err)
		assert.Contains(t, out, "No cases match the selected filters.")
	})

	t.Run("RulesFile", func(t *testing.T) {
		rulesPath := writeFile(t, "rules.yaml", shellRules)
		out, err := execute(t, "report", "--csv", csvPath, "--rules-file", rulesPath, "--json")
		require.NoError(t, err)

		var rep report.Report
		require.NoError(t, json.Unmarshal([]byte(out), &rep))
		require.Len(t, rep.Cases, 4)
		assert.Equal(t, domain.TypologyLayering, rep.Cases[2].Typology)
		// Only the shell rule is loaded.
		assert.Equal(t, domain.TypologyUnclassified, rep.Cases[0].Typology)
	})

	t.Run("InvalidFilter", func(t *testing.T) {
		_, err := execute(t, "report", "--csv", csvPath, "--sar", "maybe")
		require.ErrorIs(t, err, report.ErrInvalidCriteria)
	})

	t.Run("MissingFile", func(t *testing.T) {
		_, err := execute(t, "report", "--csv", filepath.Join(t.TempDir(), "missing.csv"))
		require.Error(t, err)
	})
}

func TestClassifyCommand(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		out, err := execute(t, "classify", "--json", "Cryptocurrency", "mixer", "withdrawals")
		require.NoError(t, err)

		var result domain.Classification
		require.NoError(t, json.Unmarshal([]byte(out), &result))
		assert.Equal(t, domain.TypologyLayering, result.Typology)
		assert.Equal(t, domain.StageLayering, result.Stage)
		assert.Equal(t, "crypto-001", result.RuleID)
	})

	t.Run("Terminal", func(t *testing.T) {
		out, err := execute(t, "classify", "Routine payroll")
		require.NoError(t, err)
		assert.Contains(t, out, "UNCLASSIFIED")
		assert.Contains(t, out, "Routine payroll")
	})

	t.Run("RequiresScenario", func(t *testing.T) {
		_, err := execute(t, "classify")
		require.Error(t, err)
	})

	t.Run("FileSourceWithoutFile", func(t *testing.T) {
		_, err := execute(t, "classify", "--rules-source", "file", "anything")
		require.Error(t, err)
	})
}

func TestEvaluateCommand(t *testing.T) {
	t.Run("JSON", func(t *testing.T) {
		csvPath := writeFile(t, "labelled.csv", labelledCSV)
		out, err := execute(t, "evaluate", "--csv", csvPath, "--workers", "2", "--json")
		require.NoError(t, err)

		var res struct {
			Total      int64   `json:"total"`
			Labelled   int64   `json:"labelled"`
			Correct    int64   `json:"correct"`
			Accuracy   float64 `json:"accuracy"`
			Mismatches []struct {
				Row       int             `json:"row"`
				Predicted domain.Typology `json:"predicted"`
			} `json:"mismatches"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.Equal(t, int64(5), res.Total)
		assert.Equal(t, int64(4), res.Labelled)
		assert.Equal(t, int64(2), res.Correct)
		assert.InDelta(t, 0.5, res.Accuracy, 1e-9)
		require.Len(t, res.Mismatches, 2)
		assert.Equal(t, 3, res.Mismatches[0].Row)
		assert.Equal(t, domain.TypologyIntegration, res.Mismatches[0].Predicted)
		assert.Equal(t, 4, res.Mismatches[1].Row)
	})

	t.Run("Terminal", func(t *testing.T) {
		csvPath := writeFile(t, "labelled.csv", labelledCSV)
		out, err := execute(t, "evaluate", "--csv", csvPath, "--mismatches")
		require.NoError(t, err)
		assert.Contains(t, out, "CLASSIFIER EVALUATION")
		assert.Contains(t, out, "Mismatches:")
		assert.Contains(t, out, "Wildlife trade proceeds")
	})

	t.Run("Unlabelled", func(t *testing.T) {
		csvPath := writeFile(t, "cases.csv", casesCSV)
		_, err := execute(t, "evaluate", "--csv", csvPath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no labelled rows")
	})
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)

		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, domain.DefaultConfig(), cfg)
	})

	t.Run("Environment", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		t.Setenv("AMLBOARD_SERVER_PORT", "9999")
		t.Setenv("AMLBOARD_CACHE_REPORTTTL", "30s")

		require.NoError(t, initConfig(nil, nil))
		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, 9999, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Cache.ReportTTL)
		assert.Equal(t, "./aml_report.csv", cfg.Data.CSVPath)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		path := writeFile(t, "amlboard.yaml", "data:\n  csvPath: /data/cases.csv\nrules:\n  source: repository\n")

		cfgFile = path
		t.Cleanup(func() { cfgFile = "" })

		require.NoError(t, initConfig(nil, nil))
		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, "/data/cases.csv", cfg.Data.CSVPath)
		assert.Equal(t, domain.RuleSourceRepository, cfg.Rules.Source)
		assert.Equal(t, 8080, cfg.Server.Port)
	})

	t.Run("ClusterProfile", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		viper.Set("profile", "cluster")

		cfg, err := loadConfig()
		require.NoError(t, err)
		assert.Equal(t, "postgres", cfg.Repository.Driver)
		assert.Equal(t, "nats", cfg.EventBus.Type)
		assert.True(t, cfg.Cache.EnableTwoPhase)
	})

	t.Run("UnknownProfile", func(t *testing.T) {
		viper.Reset()
		t.Cleanup(viper.Reset)
		viper.Set("profile", "enterprise")

		_, err := loadConfig()
		require.Error(t, err)
	})
}

func TestSetupLogging(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("logging.level", "verbose")
	require.Error(t, setupLogging())

	viper.Set("logging.level", "debug")
	viper.Set("logging.format", "xml")
	require.Error(t, setupLogging())

	viper.Set("logging.format", "text")
	require.NoError(t, setupLogging())
}
