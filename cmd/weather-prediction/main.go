package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-prediction/internal/app"
	"github.com/i474232898/weather-prediction/internal/config"
	"github.com/i474232898/weather-prediction/internal/ingest"
	"github.com/i474232898/weather-prediction/internal/logger"
	"github.com/i474232898/weather-prediction/internal/store"
	"github.com/i474232898/weather-prediction/internal/weather"
)

var cfg *config.AppConfig

func main() {
	rootCmd := &cobra.Command{
		Use:           "weather-prediction",
		Short:         "Weather ingestion, prediction and serving service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server with background ingestion and forecasting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
				return err
			}
			if err := store.Migrate(store.DSN(cfg.DBPath, cfg.StoreLockWait)); err != nil {
				return err
			}
			logger.Infof("migrations applied to %s", cfg.DBPath)
			return nil
		},
	}

	predictCmd := &cobra.Command{
		Use:   "predict",
		Short: "Generate and store the forecast of one day",
		RunE: func(cmd *cobra.Command, args []string) error {
			day, _ := cmd.Flags().GetInt("day")
			return withComponents(cmd.Context(), func(ctx context.Context, c *app.Components) error {
				fc, err := c.Predictor.PredictDay(ctx, cfg.Location, day)
				if err != nil {
					return err
				}
				return printJSON(fc)
			})
		},
	}
	predictCmd.Flags().IntP("day", "d", 1, fmt.Sprintf("Day ahead to forecast (1-%d)", weather.ForecastDays))

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Replace the full multi-day forecast",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd.Context(), func(ctx context.Context, c *app.Components) error {
				res, err := c.Predictor.RefreshAll(ctx, cfg.Location)
				if err != nil {
					return err
				}
				failed := make(map[int]string, len(res.Failed))
				for day, ferr := range res.Failed {
					failed[day] = ferr.Error()
				}
				return printJSON(map[string]any{
					"run_id":   res.RunID,
					"status":   res.Status(),
					"cleared":  res.Cleared,
					"days":     len(res.Days),
					"failed":   failed,
					"duration": res.Duration.String(),
				})
			})
		},
	}

	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete readings and predictions past retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withComponents(cmd.Context(), func(ctx context.Context, c *app.Components) error {
				res, err := c.Store.Purge(ctx, cfg.Retention, time.Now())
				if err != nil {
					return err
				}
				return printJSON(res)
			})
		},
	}

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill an empty store with mock hourly readings",
		RunE: func(cmd *cobra.Command, args []string) error {
			hours, _ := cmd.Flags().GetInt("hours")
			return withComponents(cmd.Context(), func(ctx context.Context, c *app.Components) error {
				n, err := c.Ingestor.SeedMockHistory(ctx, cfg.Location, hours)
				if err != nil {
					return err
				}
				logger.Infof("seeded %d readings", n)
				return nil
			})
		},
	}
	seedCmd.Flags().Int("hours", ingest.SeedHours, "Number of hourly readings to create")

	rootCmd.AddCommand(serveCmd, migrateCmd, predictCmd, refreshCmd, purgeCmd, seedCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		logger.Fatalf("%v", err)
	}
}

func serve() error {
	a := app.NewServer(cfg)
	if err := a.Err(); err != nil {
		return err
	}
	a.Run()
	return nil
}

// withComponents starts the core components, runs fn and stops them.
func withComponents(ctx context.Context, fn func(context.Context, *app.Components) error) error {
	c, stopApp, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := stopApp(stopCtx); err != nil {
			logger.Errorf("error during shutdown: %v", err)
		}
	}()
	return fn(ctx, c)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
