package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/gqlgate/internal/health"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the rate limit status of a running gateway",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "http://localhost:8080", "gateway base URL")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimRight(statusAddr, "/") + "/ratelimit")
	if err != nil {
		slog.Error("Failed to reach gateway", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		slog.Error("Unexpected status", "code", resp.StatusCode)
		os.Exit(1)
	}

	var report health.RateLimitReport
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		slog.Error("Failed to decode status", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "FIELD\tVALUE")
	_, _ = fmt.Fprintf(w, "warning level\t%s\n", report.WarningLevel)
	_, _ = fmt.Fprintf(w, "throttled\t%t\n", report.Throttled)
	_, _ = fmt.Fprintf(w, "queued\t%d\n", report.Queued)
	_, _ = fmt.Fprintf(w, "this hour\t%d/%d (%.1f%%)\n",
		report.Usage.RequestsThisHour, report.Limits.MaxRequestsPerHour, report.Usage.HourlyPercent)
	_, _ = fmt.Fprintf(w, "this minute\t%d/%d (%.1f%%)\n",
		report.Usage.RequestsThisMinute, report.Limits.MaxRequestsPerMinute, report.Usage.MinutePercent)
	_, _ = fmt.Fprintf(w, "api remaining\t%s\n", optional(report.Quota.RemainingHour))
	_, _ = fmt.Fprintf(w, "resets\t%s\n", report.Quota.ResetTime)
	if report.Quota.RetryAfter != "" {
		_, _ = fmt.Fprintf(w, "retry after\t%s\n", report.Quota.RetryAfter)
	}
	_ = w.Flush()
}

func optional(v *int64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprint(*v)
}
