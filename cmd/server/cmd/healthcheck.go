package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Togather-Foundation/geowidget/internal/api/handlers"
	"github.com/spf13/cobra"
)

type healthcheckOptions struct {
	timeout time.Duration
	url     string
	strict  bool
}

// HealthResult is the outcome of probing one /health endpoint.
type HealthResult struct {
	URL       string
	Status    string
	Checks    map[string]handlers.CheckResult
	IsHealthy bool
	LatencyMs int64
	Error     string
}

func newHealthcheckCmd() *cobra.Command {
	opts := &healthcheckOptions{}
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

This command is used by Docker HEALTHCHECK to monitor container health.
A degraded server (for example one running on in-memory storage) passes
unless --strict is set.

Exit codes:
  0 - Server is healthy
  1 - Server is unhealthy, unreachable or answered with an invalid body`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			result := performHealthCheck(ctx, http.DefaultClient, healthcheckURL(opts.url), opts.strict)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s (%dms)\n", result.URL, orUnknown(result.Status), result.LatencyMs)
			for name, check := range result.Checks {
				fmt.Fprintf(out, "  %-12s %s %s\n", name, check.Status, check.Message)
			}
			if !result.IsHealthy {
				if result.Error != "" {
					return errors.New(result.Error)
				}
				return fmt.Errorf("server status: %s", result.Status)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "request timeout")
	cmd.Flags().StringVar(&opts.url, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "treat a degraded server as unhealthy")
	return cmd
}

func healthcheckURL(flag string) string {
	if flag != "" {
		return flag
	}
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}
	return fmt.Sprintf("http://localhost:%s/health", port)
}

func performHealthCheck(ctx context.Context, client *http.Client, url string, strict bool) (result HealthResult) {
	result.URL = url
	start := time.Now()
	defer func() { result.LatencyMs = time.Since(start).Milliseconds() }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		result.Error = fmt.Sprintf("create request: %v", err)
		return result
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("health check failed: %v", err)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	var body handlers.HealthCheck
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		result.Error = fmt.Sprintf("parse health response (status %d): %v", resp.StatusCode, err)
		return result
	}
	result.Status = body.Status
	result.Checks = body.Checks

	switch {
	case resp.StatusCode != http.StatusOK:
		result.IsHealthy = false
	case body.Status == "healthy":
		result.IsHealthy = true
	case body.Status == "degraded":
		result.IsHealthy = !strict
	}
	return result
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
