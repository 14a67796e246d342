package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"abtest/internal"
	"abtest/internal/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	logger := internal.NewLogger(internal.ParseLogLevel(os.Getenv("LOG_LEVEL")))
	defer logger.Sync()

	rootCmd := &cobra.Command{
		Use:           "abtest",
		Short:         "Two-arm A/B experiment analyzer",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.AddCommand(
		newAnalyzeCmd(logger),
		newGenerateCmd(logger),
		newServeCmd(logger),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error [%s]: %v\n", errors.GetCode(err), err)
		os.Exit(1)
	}
}
