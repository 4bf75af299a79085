package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/contre95/dropsort/src/features/config"
	"github.com/contre95/dropsort/src/features/hosting"
	"github.com/contre95/dropsort/src/features/logging"
	"github.com/contre95/dropsort/src/features/reporting"
	"github.com/contre95/dropsort/src/triage"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const skipConfigLoad = "skipConfigLoad"

type commandContext struct {
	configPath string
	logLevel   string
	config     *config.Manager
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}
	root := &cobra.Command{
		Use:           "dropsort",
		Short:         "Sort files dropped into a folder by type and project keyword",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfigLoad] == "true" {
				return nil
			}
			cfgManager, err := config.Load(ctx.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if ctx.logLevel != "" {
				cfgManager.Get().Logger.Level = ctx.logLevel
			}
			slog.SetDefault(logging.SetupLogger(cfgManager))
			ctx.config = cfgManager
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&ctx.configPath, "config", "c", "config.yaml", "Path to the configuration file")
	root.PersistentFlags().StringVar(&ctx.logLevel, "log-level", "", "Override logger.level (debug, info, warn, error)")

	root.AddCommand(
		newWatchCommand(ctx),
		newServeCommand(ctx),
		newSweepCommand(ctx),
		newResolveCommand(ctx),
		newConfigCommand(ctx),
	)
	return root
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var withServer bool
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the root and sort files once they stop changing",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			app, err := newApplication(ctx.config, reporting.FuncSink(func(line string) {
				fmt.Fprintln(out, line)
			}))
			if err != nil {
				return err
			}
			defer app.close()

			serving := withServer || ctx.config.Get().Server.Enabled
			if serving {
				server := startServer(app)
				defer shutdownServer(server)
			}
			if err := app.watching.Start(); err != nil {
				return err
			}
			return waitForShutdown(cmd.Context(), app.watching.Done(), app.watching.StopRequested, serving)
		},
	}
	cmd.Flags().BoolVar(&withServer, "server", false, "Also serve the HTTP API")
	return cmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API; watching starts only when watcher.auto_start is set",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(ctx.config)
			if err != nil {
				return err
			}
			defer app.close()

			server := startServer(app)
			defer shutdownServer(server)
			if ctx.config.Get().Watcher.AutoStart {
				if err := app.watching.Start(); err != nil {
					return err
				}
			}
			return waitForShutdown(cmd.Context(), nil, nil, true)
		},
	}
}

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep [dir | file...]",
		Short: "Sort the files already in a directory (the root by default) or the given files",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(ctx.config)
			if err != nil {
				return err
			}
			defer app.close()

			paths, err := sweepTargets(app, args)
			if err != nil {
				return err
			}
			if len(paths) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to sort.")
				return nil
			}

			var bar *progressbar.ProgressBar
			if isTerminal(os.Stderr) {
				bar = progressbar.NewOptions(len(paths),
					progressbar.OptionSetWriter(os.Stderr),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(40),
					progressbar.OptionSetDescription("Sorting files..."),
					progressbar.OptionClearOnFinish(),
				)
			}

			results := make([]triage.MoveResult, 0, len(paths))
			for _, path := range paths {
				results = append(results, app.classifying.SweepPaths(cmd.Context(), []string{path})...)
				if bar != nil {
					_ = bar.Add(1)
				}
			}

			rows := make([][]string, 0, len(results))
			failed := 0
			for _, result := range results {
				if result.Failed() {
					failed++
				}
				rows = append(rows, []string{result.Name, outcome(result), result.Category, result.Destination})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"File", "Outcome", "Category", "Destination"}, rows))
			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be moved", failed, len(results))
			}
			return nil
		},
	}
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <file>...",
		Short: "Print the category each file would get, without moving anything",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(ctx.config)
			if err != nil {
				return err
			}
			defer app.close()

			rows := make([][]string, 0, len(args))
			for _, path := range args {
				res, err := app.classifying.Resolve(cmd.Context(), path)
				if err != nil {
					rows = append(rows, []string{path, "", "", err.Error()})
					continue
				}
				reason := string(res.Reason)
				if res.Keyword != "" {
					reason += " (" + res.Keyword + ")"
				}
				rows = append(rows, []string{path, res.Category, reason, res.Type})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"File", "Category", "Reason", "Type"}, rows))
			return nil
		},
	}
}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Write the default configuration file",
		Annotations: map[string]string{skipConfigLoad: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(ctx.configPath)
			if dir := filepath.Dir(target); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create config directory %q: %w", dir, err)
				}
			}
			if err := config.WriteDefault(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", target)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), ctx.config.GetYAML())
			return nil
		},
	}

	configCmd.AddCommand(initCmd, showCmd)
	return configCmd
}

// sweepTargets turns the sweep arguments into an ordered list of files.
func sweepTargets(app *application, args []string) ([]string, error) {
	if len(args) == 0 {
		return app.classifying.Candidates(app.root)
	}
	if len(args) == 1 {
		if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
			return app.classifying.Candidates(args[0])
		}
	}
	return args, nil
}

func outcome(result triage.MoveResult) string {
	switch {
	case result.Skipped:
		return "skipped"
	case result.Success:
		return "moved"
	default:
		return "failed: " + result.Error
	}
}

func startServer(app *application) *hosting.Server {
	server := hosting.NewServer(app.config, app.classifying, app.watching, app.jobs, app.collector)
	go func() {
		if err := server.Start(); err != nil {
			slog.Error("HTTP server stopped", "error", err)
		}
	}()
	slog.Info("HTTP API listening", "port", app.config.Get().Server.Port)
	return server
}

func shutdownServer(server *hosting.Server) {
	if err := server.Shutdown(); err != nil {
		slog.Error("Failed to shutdown server", "error", err)
		return
	}
	slog.Info("Server gracefully shut down.")
}

// waitForShutdown blocks until SIGINT/SIGTERM or until done is closed. A watcher
// that ends on its own is an error. One stopped on request ends the wait, unless
// the API is being served, in which case the wait goes on until a signal.
func waitForShutdown(ctx context.Context, done <-chan struct{}, stopRequested func() bool, serving bool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case <-ctx.Done():
		slog.Info("Shutting down...")
		return nil
	case <-done:
	}

	if stopRequested == nil || !stopRequested() {
		return errors.New("watcher stopped unexpectedly")
	}
	if !serving {
		slog.Info("Watcher stopped on request, exiting")
		return nil
	}
	slog.Info("Watcher stopped on request, still serving the API")
	<-ctx.Done()
	slog.Info("Shutting down...")
	return nil
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
