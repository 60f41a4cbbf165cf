package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var (
	submitServerAddr string
	submitUserID     string
	submitPriority   string
	submitUserAgent  string
)

var submitCmd = &cobra.Command{
	Use:   "submit [urls...]",
	Short: "Submit a new crawl job to a running crawlctl server",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := json.Marshal(map[string]any{
			"urls":      args,
			"userId":    submitUserID,
			"priority":  submitPriority,
			"userAgent": submitUserAgent,
		})
		if err != nil {
			return err
		}

		resp, err := http.Post(submitServerAddr+"/api/v1/jobs", "application/json", bytes.NewReader(body))
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		var out map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return err
		}
		fmt.Printf("jobId=%v status=%v\n", out["jobId"], out["status"])
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitServerAddr, "server", "http://localhost:8080", "crawlctl server base URL")
	submitCmd.Flags().StringVar(&submitUserID, "user", "", "submitting user id")
	submitCmd.Flags().StringVar(&submitPriority, "priority", "", "priority hint: low, normal, high")
	submitCmd.Flags().StringVar(&submitUserAgent, "user-agent", "", "user agent recorded on the task message (not sent by the crawler)")
	rootCmd.AddCommand(submitCmd)
}
