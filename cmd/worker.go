package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/podletter/newsletter-api/internal/models"
	"github.com/podletter/newsletter-api/pkg/config"
)

var (
	workerRecheck      bool
	workerRecheckCount int
	workerLookback     int
	workerMaxEpisodes  int
	workerNoLock       bool
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run one transcript worker pass immediately",
	Long: `Run a single transcript acquisition pass and print the run summary.

Example:
  newsletter-api worker
  newsletter-api worker --recheck --recheck-count 10
  newsletter-api worker --lookback 168 --max-episodes 500`,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().BoolVar(&workerRecheck, "recheck", false, "reprocess episodes that already have transcripts")
	workerCmd.Flags().IntVar(&workerRecheckCount, "recheck-count", 0, "number of recent episodes to recheck (overrides config)")
	workerCmd.Flags().IntVar(&workerLookback, "lookback", 0, "lookback window in hours (overrides config)")
	workerCmd.Flags().IntVar(&workerMaxEpisodes, "max-episodes", 0, "max candidate episodes per run (overrides config)")
	workerCmd.Flags().BoolVar(&workerNoLock, "no-lock", false, "skip the advisory lock (single-instance use only)")
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	if workerRecheck {
		cfg.Worker.Recheck = true
	}
	if workerRecheckCount > 0 {
		cfg.Worker.RecheckCount = workerRecheckCount
	}
	if workerLookback > 0 {
		cfg.Worker.LookbackHours = workerLookback
	}
	if workerMaxEpisodes > 0 {
		cfg.Worker.MaxEpisodes = workerMaxEpisodes
	}
	if workerNoLock {
		cfg.Worker.UseLock = false
	}

	comps, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer comps.close()

	if err := comps.db.AutoMigrate(&models.Podcast{}, &models.Episode{}, &models.Transcript{}); err != nil {
		return err
	}

	summary, err := comps.worker.Run(cmd.Context())
	if err != nil {
		return err
	}

	if summary.Skipped {
		fmt.Println("Run skipped: another worker instance holds the lock")
		return nil
	}

	fmt.Printf("Processed %d/%d episodes in %s\n", summary.Processed, summary.Total,
		summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	for status, count := range summary.StatusCounts {
		fmt.Printf("  %-22s %d\n", status, count)
	}
	fmt.Printf("Fallback: %d attempts, %d succeeded, %d failed\n",
		summary.FallbackAttempts, summary.FallbackSuccesses, summary.FallbackFailures)
	if summary.QuotaExhausted {
		fmt.Println("Run ended early: provider quota exhausted")
	}
	return nil
}
