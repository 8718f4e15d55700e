package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/podletter/newsletter-api/internal/database"
	"github.com/podletter/newsletter-api/internal/models"
	"github.com/podletter/newsletter-api/pkg/config"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Create or update the database schema for all models.`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	db, err := database.Initialize(cfg.Database.DSN, cfg.Database.LogQueries)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()

	if err := db.AutoMigrate(&models.Podcast{}, &models.Episode{}, &models.Transcript{}); err != nil {
		return err
	}

	fmt.Println("Migrations completed successfully")
	return nil
}
