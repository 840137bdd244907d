// Package daemon wires configuration, adapters and the dispatcher behind the blobsense commands.
package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/blobsense/internal/config"
)

const cmdName = "blobsense"

// App represents the application.
type App struct {
	cmd    *cobra.Command
	config appConfig
	cfg    *config.Config

	deps deps

	out    io.Writer
	ctx    context.Context
	cancel context.CancelFunc
}

// appConfig holds the command line settings.
type appConfig struct {
	Verbosity  int
	JSONLogs   bool
	ConfigPath string

	Size int64
}

// New creates a new App instance with default values.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := App{out: os.Stdout, ctx: ctx, cancel: cancel, deps: defaultDeps()}

	a.cmd = &cobra.Command{
		Use:           cmdName,
		Short:         "Classify newly created objects with cognitive services",
		Long:          "blobsense dispatches new objects by suffix: images to the vision service, text to sentiment analysis.",
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			setSlog(os.Stderr, a.config.Verbosity, a.config.JSONLogs)

			cfg, err := config.Load(a.config.ConfigPath)
			if err != nil {
				return fmt.Errorf("could not load configuration: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			a.cfg = cfg
			slog.Debug("got app config", "config", a.config.ConfigPath, "bucket", cfg.Storage.BucketName, "database", cfg.Database.Driver)
			return nil
		},
	}
	a.cmd.CompletionOptions.HiddenDefaultCmd = true
	a.cmd.SetOut(a.out)

	defaultConfig := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultConfig = v
	}
	a.cmd.PersistentFlags().CountVarP(&a.config.Verbosity, "verbose", "v", "issue DEBUG logs (-v)")
	a.cmd.PersistentFlags().BoolVar(&a.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")
	a.cmd.PersistentFlags().StringVarP(&a.config.ConfigPath, "config", "c", defaultConfig, "path to the yaml configuration file")

	installServeCmd(&a)
	installClassifyCmd(&a)

	return &a
}

// Run executes the command and associated process, returning an error if any.
func (a *App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a *App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// Hup prints all goroutine stack traces and return false to signal you shouldn't quit.
func (a *App) Hup() (shouldQuit bool) {
	buf := make([]byte, 1<<16)
	runtime.Stack(buf, true)
	fmt.Printf("%s", buf)
	return false
}

// Quit gracefully shuts down whatever command is running.
func (a *App) Quit() {
	a.cancel()
}

// RootCmd returns the root command.
func (a *App) RootCmd() *cobra.Command {
	return a.cmd
}

func setSlog(w io.Writer, verbosity int, jsonLogs bool) {
	level := slog.LevelInfo
	if verbosity > 0 {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if jsonLogs {
		slog.SetDefault(slog.New(slog.NewJSONHandler(w, opts)))
		return
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, opts)))
}
