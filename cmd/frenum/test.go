package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/terry-li-hm/frenum/internal/evaluator"
	"github.com/terry-li-hm/frenum/internal/policy"
	"github.com/terry-li-hm/frenum/internal/policyio"
	"github.com/terry-li-hm/frenum/internal/report"
	"github.com/terry-li-hm/frenum/internal/testrunner"
)

var (
	testConfigPath string
	testTestsPath  string
	testFormat     string
	testOutputPath string
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run a declarative test suite against a policy and report guardrail coverage",
	RunE:  runTest,
}

func init() {
	testCmd.Flags().StringVar(&testConfigPath, "config", "", "path to the policy YAML document")
	testCmd.Flags().StringVar(&testTestsPath, "tests", "", "path to the test-case YAML document")
	testCmd.Flags().StringVar(&testFormat, "format", "text", "report format: text|json|html")
	testCmd.Flags().StringVar(&testOutputPath, "output", "", "write the report here instead of stdout")
	testCmd.MarkFlagRequired("config")
	testCmd.MarkFlagRequired("tests")
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	code, err := doTest(cmd.OutOrStdout(), testConfigPath, testTestsPath, testFormat, testOutputPath)
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// doTest runs the test workflow and returns the process exit code spec.md
// §6 mandates (0 if all tests pass AND no lint errors, 1 otherwise)
// without calling os.Exit itself, so it can be tested.
func doTest(w io.Writer, configPath, testsPath, format, outputPath string) (int, error) {
	policyData, err := os.ReadFile(configPath)
	if err != nil {
		return 0, fmt.Errorf("test: reading %s: %w", configPath, err)
	}
	testsData, err := os.ReadFile(testsPath)
	if err != nil {
		return 0, fmt.Errorf("test: reading %s: %w", testsPath, err)
	}

	raw, err := policyio.LoadPolicy(policyData)
	if err != nil {
		return 0, fmt.Errorf("test: %w", err)
	}
	findings := policy.Lint(raw)

	compiled, err := policy.Compile(raw)
	if err != nil {
		fmt.Fprintf(w, "policy failed to compile: %v\n", err)
		return 1, nil
	}

	cases, err := policyio.LoadTests(testsData)
	if err != nil {
		return 0, fmt.Errorf("test: %w", err)
	}

	eval := evaluator.New(compiled, nil)
	outcomes := testrunner.Run(eval, cases)
	coverage := testrunner.Coverage(compiled, outcomes)
	testReport := report.TestRunReport{Outcomes: outcomes, Coverage: coverage}

	rendered, err := renderReport(testReport, format)
	if err != nil {
		return 0, fmt.Errorf("test: %w", err)
	}

	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(rendered), 0o644); err != nil {
			return 0, fmt.Errorf("test: writing %s: %w", outputPath, err)
		}
	} else {
		fmt.Fprintln(w, rendered)
	}

	allPassed := true
	for _, o := range outcomes {
		if !o.Passed {
			allPassed = false
			break
		}
	}
	if !allPassed || policy.HasErrors(findings) {
		return 1, nil
	}
	return 0, nil
}

func renderReport(r report.TestRunReport, format string) (string, error) {
	switch format {
	case "", "text":
		return report.RenderText(r), nil
	case "json":
		raw, err := report.RenderJSON(r)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	case "html":
		return report.RenderHTML(r), nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, json, or html)", format)
	}
}
