package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/terry-li-hm/frenum/internal/policy"
	"github.com/terry-li-hm/frenum/internal/policyio"
)

var lintConfigPath string

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Statically check a policy document for errors and warnings",
	RunE:  runLint,
}

func init() {
	lintCmd.Flags().StringVar(&lintConfigPath, "config", "", "path to the policy YAML document")
	lintCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	code, err := doLint(cmd.OutOrStdout(), lintConfigPath)
	if err != nil {
		return err
	}
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// doLint runs the lint workflow and returns the process exit code spec.md
// §6 mandates (0 if no error-severity findings, 1 otherwise; warnings
// never affect it) without calling os.Exit itself, so it can be tested.
func doLint(w io.Writer, configPath string) (int, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return 0, fmt.Errorf("lint: reading %s: %w", configPath, err)
	}

	raw, err := policyio.LoadPolicy(data)
	if err != nil {
		return 0, fmt.Errorf("lint: %w", err)
	}

	findings := policy.Lint(raw)
	for _, f := range findings {
		fmt.Fprintf(w, "%s [%s] %s: %s\n", f.Code, f.Severity, f.RuleName, f.Message)
	}
	if len(findings) == 0 {
		fmt.Fprintln(w, "no findings")
	}

	if policy.HasErrors(findings) {
		return 1, nil
	}
	return 0, nil
}
