package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kevensen/conductor-chat/internal/configuration"
	"github.com/kevensen/conductor-chat/internal/feed"
	"github.com/kevensen/conductor-chat/internal/logging"
	"github.com/kevensen/conductor-chat/internal/settings"
	"github.com/kevensen/conductor-chat/internal/tui/core"
)

const dialTimeout = 5 * time.Second

var (
	serverURL  string
	backend    string
	model      string
	logLevel   string
	wsPath     string
	configFile string
	noFeed     bool
	envFiles   []string
)

var rootCmd = &cobra.Command{
	Use:   "conductor-chat",
	Short: "Terminal front end for the chemistry conductor",
	Long: `conductor-chat follows the conductor's reasoning as it works and lets you pick
the LLM backend, model and tool servers it runs with.`,
	RunE:          runTUI,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&serverURL, "server-url", "", "Conductor backend URL (overrides "+configuration.EnvServerURL+")")
	flags.StringVar(&backend, "backend", "", "Initial LLM backend, e.g. openai, ollama, vllm")
	flags.StringVar(&model, "model", "", "Initial model for the backend")
	flags.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&wsPath, "ws-path", "", "Path of the conductor feed")
	flags.StringVar(&configFile, "config", "", "Configuration file (default is the user config directory)")
	flags.BoolVar(&noFeed, "no-feed", false, "Do not connect to the conductor feed")
	flags.StringSliceVar(&envFiles, "env-file", nil, "Dotenv files to load (default .env)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*configuration.Config, error) {
	if err := configuration.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	var config *configuration.Config
	var err error
	if configFile != "" {
		config, err = configuration.LoadFile(configFile)
	} else {
		config, err = configuration.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	config.ApplyEnv(nil)

	// Flags win over the file and the environment
	if serverURL != "" {
		config.HTTPServerURL = serverURL
	}
	if logLevel != "" {
		config.LogLevel = logLevel
	}
	if wsPath != "" {
		config.WebsocketPath = wsPath
	}
	var p settings.Partial
	if backend != "" {
		p.Backend = settings.String(backend)
	}
	if model != "" {
		p.Model = settings.String(model)
	}
	config.InitialSettings = config.InitialSettings.Merge(p)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	if err := logging.Initialize(config.LoggingConfig()); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer logging.Close()
	logger := logging.WithComponent("main")
	logger.Info("Starting conductor-chat", "server", config.HTTPServerURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session := settings.NewSession(nil)
	initial := session.Initialize(config.InitialSettings)
	logger.Debug("Initial settings", "settings", initial)

	// A nil *feed.Client must not end up inside the interface
	var f core.Feed
	if !noFeed {
		dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
		client, err := feed.Dial(dialCtx, config.HTTPServerURL, feed.WithPath(config.WebsocketPath))
		cancel()
		if err != nil {
			logger.Warn("Running without the conductor feed", "error", err)
		} else {
			defer client.Close()
			f = client
		}
	}

	program := tea.NewProgram(
		core.NewModel(ctx, config, session, f),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := program.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			logger.Info("Interrupted")
			return nil
		}
		return fmt.Errorf("error running program: %w", err)
	}

	logger.Info("conductor-chat exited")
	return nil
}
