package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/podletter/newsletter-api/internal/api"
	"github.com/podletter/newsletter-api/internal/models"
	"github.com/podletter/newsletter-api/pkg/config"
)

var (
	serverHost string
	serverPort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and nightly worker schedule",
	Long: `Start the HTTP surface and the cron schedule that drives the nightly
transcript worker run.

Example:
  newsletter-api serve
  newsletter-api serve --port 9090`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host (overrides config)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (overrides config)")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	if serverHost == "" {
		serverHost = cfg.Server.Host
	}
	if serverPort == 0 {
		serverPort = cfg.Server.Port
	}

	comps, err := buildComponents(cfg)
	if err != nil {
		return err
	}
	defer comps.close()

	if err := comps.db.AutoMigrate(&models.Podcast{}, &models.Episode{}, &models.Transcript{}); err != nil {
		return err
	}

	// Nightly transcript worker schedule
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Worker.Schedule, func() {
		summary, err := comps.worker.Run(context.Background())
		if err != nil {
			log.Printf("[ERROR] Scheduled transcript run failed: %v", err)
			return
		}
		if summary.Skipped {
			log.Printf("[INFO] Scheduled transcript run skipped (lock held elsewhere)")
		}
	}); err != nil {
		return fmt.Errorf("invalid worker schedule %q: %w", cfg.Worker.Schedule, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := api.NewServer(comps.deps)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", serverHost, serverPort),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- fmt.Errorf("server error: %w", err)
		}
	}()

	log.Printf("[INFO] Server listening on %s:%d, worker schedule %q", serverHost, serverPort, cfg.Worker.Schedule)

	select {
	case <-stop:
		log.Printf("[INFO] Shutting down server...")
	case err := <-serverErr:
		log.Printf("[ERROR] %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Printf("[INFO] Server gracefully stopped")
	return nil
}
