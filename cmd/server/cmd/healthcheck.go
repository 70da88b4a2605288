package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	healthcheckTimeout int
	healthcheckURL     string

	healthcheckCmd = &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /readyz endpoint.

Used by container HEALTHCHECK directives. Exits 0 when the server reports
healthy, 1 when unhealthy or unreachable, 2 on an invalid response.`,
		RunE: runHealthcheck,
	}
)

func init() {
	healthcheckCmd.Flags().IntVar(&healthcheckTimeout, "timeout", 5, "timeout in seconds")
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/readyz)")
}

type healthResponse struct {
	Status string `json:"status"`
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	url := healthcheckURL
	if url == "" {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		url = fmt.Sprintf("http://localhost:%s/readyz", port)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(healthcheckTimeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid health response: %v\n", err)
		os.Exit(2)
	}

	if resp.StatusCode != http.StatusOK || health.Status == "unhealthy" {
		fmt.Fprintf(os.Stderr, "Server unhealthy: %s\n", health.Status)
		os.Exit(1)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Server healthy: %s\n", health.Status)
	return nil
}
