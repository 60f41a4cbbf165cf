package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "crawlctl",
	Short: "crawlctl is the admission and scheduling control plane for a distributed web crawl",
	Long: `crawlctl accepts crawl-job submissions, admits and prioritizes them against
cluster and per-user resource budgets, and dispatches admitted jobs to a
crawl collaborator. Run "crawlctl serve" to start the control plane, or use
"crawlctl submit"/"crawlctl status" as a thin client against a running one.`,
}

// Execute is called by main.main. It only needs to happen once to rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
