package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"faqbot/internal/config"
	"faqbot/internal/datadir"
	"faqbot/internal/gateway"
	"faqbot/internal/logging"
	"faqbot/internal/telegram"
	"faqbot/internal/version"
	"faqbot/internal/watcher"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "faqbot.json"

var (
	cfgFile   string
	verbose   bool
	logFormat string
	port      int
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "faqbot",
	Short: "FAQ chatbot - answers questions from a question/answer corpus",
	Long: `faqbot matches user questions against a FAQ corpus with TF-IDF cosine
similarity and serves the answers over HTTP, WebSocket, Telegram or a
terminal chat.

Running faqbot without a subcommand starts the server.`,
	Version:       version.Full(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP/WebSocket server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Get()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "faqbot %s\n", version.Full())
		if info.GitCommit != "unknown" {
			fmt.Fprintf(out, "Git commit: %s\n", info.GitCommit)
		}
		if info.BuildDate != "unknown" {
			fmt.Fprintf(out, "Build date: %s\n", info.BuildDate)
		}
		fmt.Fprintf(out, "Go version: %s\n", info.GoVersion)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultConfigFile, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json or logfmt (overrides config)")

	serverCmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP port (overrides config)")

	rootCmd.AddCommand(serverCmd, versionCmd, buildCmd, askCmd, chatCmd, reloadCmd, hashTokenCmd)

	// If no command is specified, default to server
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runServer(cmd)
	}
}

// loadConfig loads .env files, then the config file. When --config was not
// given and ./faqbot.json does not exist, the data directory's config is
// used and its relative paths are anchored there.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dd, err := datadir.New("")
	if err != nil {
		return nil, err
	}
	if err := datadir.LoadEnv(dd.Root()); err != nil {
		return nil, err
	}

	path, fromDataDir := cfgFile, false
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			if _, err := os.Stat(dd.ConfigPath()); err == nil {
				path, fromDataDir = dd.ConfigPath(), true
			}
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if fromDataDir {
		cfg.CorpusPath = dd.Resolve(cfg.CorpusPath)
		cfg.ArtifactDir = dd.Resolve(cfg.ArtifactDir)
	}
	return cfg, nil
}

// newLogger builds the root logger from config and flags.
func newLogger(cfg *config.Config) (*log.Logger, error) {
	opts := logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}
	if verbose {
		opts.Level = "debug"
	}
	if logFormat != "" {
		opts.Format = logFormat
	}
	return logging.New(opts)
}

func runServer(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Port = port
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received signal", "signal", sig)
		cancel()
	}()

	snap, err := a.manager.EnsureReady(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare index: %w", err)
	}
	logger.Info("index ready", "items", snap.Items(), "source", snap.Source, "build_id", snap.BuildID)
	if !a.verifier.Enabled() {
		logger.Warn("reload disabled: set RELOAD_TOKEN or reload_token_hash to enable POST /reload")
	}

	gw, err := gateway.New(gateway.Options{
		Config:   cfg,
		Manager:  a.manager,
		Service:  a.service,
		Verifier: a.verifier,
		Metrics:  a.metrics,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create gateway: %w", err)
	}

	var wg sync.WaitGroup

	if cfg.Watch.Enabled {
		w, err := watcher.New(watcher.Config{
			CorpusPath: cfg.CorpusPath,
			Schedule:   cfg.Watch.Schedule,
			Reloader:   a.manager,
			Observer:   a.metrics,
			Logger:     logger,
		})
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Start(ctx)
		}()
	}

	if cfg.Telegram.Enabled {
		tg, err := telegram.New(a.service, telegram.Config{
			BotToken:     cfg.Telegram.BotToken,
			AllowedChats: cfg.Telegram.AllowedChats,
			Logger:       logger,
		})
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := tg.Start(ctx); err != nil {
				logger.Error("telegram stopped", "err", err)
			}
		}()
	}

	err = gw.Start(ctx)
	cancel()
	wg.Wait()
	if err != nil {
		return fmt.Errorf("gateway failed: %w", err)
	}

	logger.Info("stopped gracefully")
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
