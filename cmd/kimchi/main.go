package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"kimchi/internal/api"
	"kimchi/internal/app"
	"kimchi/internal/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "kimchi",
	Short: "Track the kimchi premium of BTC",
	Long: `kimchi polls Upbit, Binance and a USD/KRW rate source, computes the
premium of the Korean price over the converted international price and
publishes it over HTTP and WebSocket.`,
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Refresh on a schedule and serve the current premium",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := build()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return a.Run(ctx)
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single refresh cycle and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := build()
		if err != nil {
			return err
		}
		state, err := a.Once(cmd.Context())
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(api.NewStateView(state)); err != nil {
			return err
		}
		if state.Err != nil {
			return fmt.Errorf("refresh failed: %w", state.Err)
		}
		return nil
	},
}

func build() (*app.App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}
	logger, err := app.NewLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory containing config.yaml")
	rootCmd.AddCommand(serveCmd, onceCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatalf("kimchi: %v", err)
	}
}
