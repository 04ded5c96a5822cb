package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/KH-Pua/ai-chatbot/internal/application"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/config"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/logger"
	"github.com/KH-Pua/ai-chatbot/internal/infrastructure/persistence"
)

const (
	appName    = "support-gateway"
	appVersion = "0.1.0"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:   appName,
		Short: "Customer support chat backend",
		Long:  "Streaming customer support chat server with tickets, orders, knowledge search and analytics",
		RunE:  runServe,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: search ~/.support-bot, ./config, .)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP, SSE and websocket server",
		RunE:  runServe,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Seed the database with demo orders and the built-in knowledge articles",
		RunE:  runSeed,
	})

	initCmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default config.yaml",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInit,
	}
	rootCmd.AddCommand(initCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "Check the configuration",
		RunE:  runDoctor,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", appName, appVersion)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger builds the process logger from the log section of cfg.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.OutputPath,
	})
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	log.Info("Starting support gateway",
		zap.String("name", appName),
		zap.String("version", appVersion),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := application.NewApp(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}

	if err := app.Start(ctx); err != nil {
		log.Fatal("Failed to start application", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
		os.Exit(1)
	}
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := newLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	n, err := application.SeedDatabase(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %d demo orders for %s\n", n, persistence.DemoCustomerEmail)
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	log, err := logger.NewLogger(logger.Config{Level: "info", Format: "console", OutputPath: "stderr"})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	dir := ""
	if len(args) > 0 {
		dir = args[0]
	}
	path, err := config.Bootstrap(dir, log)
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Printf("%s doctor v%s\n\n", appName, appVersion)

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		fmt.Printf("  \033[91m✗\033[0m config: %v\n", err)
		return nil
	}

	checks := []struct {
		name  string
		check func(*config.Config) (string, bool)
	}{
		{"config", checkConfigFile},
		{"llm providers", checkProviders},
		{"database", checkDatabase},
		{"rate limit", checkRateLimit},
	}

	allOK := true
	for _, c := range checks {
		val, ok := c.check(cfg)
		icon := "\033[92m✓\033[0m"
		if !ok {
			icon = "\033[91m✗\033[0m"
			allOK = false
		}
		fmt.Printf("  %s %s: %s\n", icon, c.name, val)
	}

	fmt.Println()
	if allOK {
		fmt.Println("All checks passed")
	} else {
		fmt.Println("Some checks failed, see above")
	}
	return nil
}

func checkConfigFile(*config.Config) (string, bool) {
	if configPath != "" {
		return configPath, true
	}
	for _, p := range []string{config.HomeDir() + "/config.yaml", "config/config.yaml", "config.yaml"} {
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "no config.yaml found, using defaults (run `init`)", false
}

func checkProviders(cfg *config.Config) (string, bool) {
	if len(cfg.LLM.Providers) == 0 {
		return "none configured (set OPENAI_API_KEY or llm.providers)", false
	}
	names := ""
	for i, p := range cfg.LLM.Providers {
		if i > 0 {
			names += ", "
		}
		names += p.Name
		if p.APIKey == "" {
			return p.Name + " has no api_key", false
		}
	}
	return names, true
}

func checkDatabase(cfg *config.Config) (string, bool) {
	db, err := persistence.NewDBConnection(&cfg.Database, zap.NewNop())
	if err != nil {
		return err.Error(), false
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	return cfg.Database.Type, true
}

func checkRateLimit(cfg *config.Config) (string, bool) {
	if !cfg.RateLimit.Enabled {
		return "disabled", true
	}
	return fmt.Sprintf("%d requests per %s (%s)", cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, cfg.RateLimit.Store), true
}
