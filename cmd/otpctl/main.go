package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/otp-relay/internal/cli"
	"github.com/otp-relay/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	load := cli.NewLoader(cfg, log)

	rootCmd := &cobra.Command{
		Use:           "otpctl",
		Short:         "Operator tool for the OTP relay",
		Long:          `otpctl inspects and edits notification subscriptions and lists OTPs awaiting dispatch, against the same tables the relay uses.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(cli.SubscribeCmd(load))
	rootCmd.AddCommand(cli.UnsubscribeCmd(load))
	rootCmd.AddCommand(cli.CheckCmd(load))
	rootCmd.AddCommand(cli.StatsCmd(load))
	rootCmd.AddCommand(cli.PendingCmd(load))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
