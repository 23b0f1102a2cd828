package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "frenum",
	Short:         "A deterministic policy engine for agent tool calls",
	SilenceUsage:  true,
	SilenceErrors: true,
}
