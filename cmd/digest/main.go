package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"media-digest-go/cmd/digest/commands"
	"media-digest-go/pkg/config"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	// Set up signal handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-signalCh
		fmt.Println("\nReceived interrupt signal, shutting down gracefully...")
		cancel()
	}()

	rootCmd := &cobra.Command{
		Use:   "digest",
		Short: "Turn videos, playlists and channels into summaries and topics",
		Long: `A media ingestion pipeline that:
- Fetches video, playlist and channel metadata
- Acquires transcripts from captions, with an optional audio transcription fallback
- Summarizes transcripts and extracts topics with language models
- Tracks every unit step by step and supports manual retries of failures`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			verbose, _ := cmd.Flags().GetBool("verbose")
			logFile, _ := cmd.Flags().GetBool("log-file")
			logger, err := config.SetupLogging(verbose, logFile)
			if err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}

			if path, _ := cmd.Flags().GetString("config"); path != "" {
				viper.SetConfigFile(path)
			}

			// Store logger in context
			ctx = context.WithValue(ctx, "logger", logger)
			cmd.SetContext(ctx)

			return nil
		},
	}

	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().Bool("log-file", true, "Also write logs to a timestamped file")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")

	// Add commands
	rootCmd.AddCommand(commands.NewIngestCommand())
	rootCmd.AddCommand(commands.NewRetryCommand())
	rootCmd.AddCommand(commands.NewStatusCommand())
	rootCmd.AddCommand(commands.NewEstimateCommand())
	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewWatchCommand())
	rootCmd.AddCommand(commands.NewMigrateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(version, commit, date))

	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
