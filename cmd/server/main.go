package main

import (
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"chatrelay-backend/internal/config"
	"chatrelay-backend/internal/logging"
)

func main() {
	var migrationsDir string
	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:           "chatrelay",
		Short:         "Streaming chat relay and chat history backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if migrationsDir != "" {
				cfg.MigrationsDir = migrationsDir
			}
			return logging.Setup(cfg.LogLevel, cfg.Env)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	}
	rootCmd.PersistentFlags().StringVar(&migrationsDir, "migrations", "", "directory holding NNN_name.sql migrations (overrides MIGRATIONS_DIR)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfg)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply pending Postgres migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), cfg)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("chatrelay exited")
		os.Exit(1)
	}
}
