package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/spf13/cobra"
)

var statusServerAddr string

var statusCmd = &cobra.Command{
	Use:   "status <jobId>",
	Short: "Read the status of a crawl job from a running crawlctl server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(statusServerAddr + "/api/v1/jobs/" + args[0] + "/status")
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, raw)
		}

		var pretty map[string]any
		if err := json.Unmarshal(raw, &pretty); err != nil {
			return err
		}
		encoded, err := json.MarshalIndent(pretty, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(encoded))
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusServerAddr, "server", "http://localhost:8080", "crawlctl server base URL")
	rootCmd.AddCommand(statusCmd)
}
