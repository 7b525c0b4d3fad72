// Package main is the CLI entry point for lifecycled, the reference daemon
// built on the daemon core.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/daemon_core/internal/config"
	"github.com/eliteGoblin/focusd/daemon_core/internal/daemon"
	"github.com/eliteGoblin/focusd/daemon_core/internal/domain"
	"github.com/eliteGoblin/focusd/daemon_core/internal/infra"
	"github.com/eliteGoblin/focusd/daemon_core/internal/metrics"
	"github.com/eliteGoblin/focusd/daemon_core/internal/modules"
	"github.com/eliteGoblin/focusd/daemon_core/internal/usecase"
)

const appName = "lifecycled"

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

// exitCode is the status of a launch that reached the startup sequence.
var exitCode int

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}

var rootCmd = &cobra.Command{
	Use:   "lifecycled [start|stop|restart]",
	Short: "Single-instance daemon with an orderly start/stop/restart protocol",
	Long: `lifecycled runs one daemon per data directory. A new instance either
refuses to start (start), replaces the running one (restart, the default) or
only stops it (stop). Startup messages are printed here even though the
daemon detaches from the terminal.`,
	ValidArgs:     []string{"start", "stop", "restart"},
	Args:          cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE:          runRoot,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	showVersion  bool
	foreground   bool
	logUndefined bool
	forceStart   bool
	forceStop    bool
	lockTimeout  int
	cfgFile      string
	jsonOutput   bool
)

func init() {
	f := rootCmd.Flags()
	f.BoolVarP(&showVersion, "version", "v", false, "Print version and exit")
	f.BoolVarP(&foreground, "foreground", "d", false, "Run in foreground and log to stderr")
	f.BoolVarP(&logUndefined, "log-undefined", "u", false, "Log configuration options left at their defaults")
	f.BoolVarP(&forceStart, "start", "f", false, "Same as the start mode")
	f.BoolVarP(&forceStop, "stop", "s", false, "Same as the stop mode")
	f.IntVarP(&lockTimeout, "lock-timeout", "t", 0, "Seconds to wait for a previous instance (overrides lock_timeout)")
	f.StringVarP(&cfgFile, "config", "c", config.DefaultPath(appName), "Configuration file")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	rootCmd.AddCommand(versionCmd)
}

// resolveMode picks the run mode: restart by default, -f or -s, and a
// positional mode last.
func resolveMode(args []string) (domain.RunMode, error) {
	mode := domain.RunModeRestart
	if forceStart {
		mode = domain.RunModeStart
	}
	if forceStop {
		mode = domain.RunModeStop
	}
	if len(args) == 1 {
		return domain.ParseRunMode(args[0])
	}
	return mode, nil
}

func runRoot(cmd *cobra.Command, args []string) error {
	if showVersion {
		runVersion(cmd, args)
		return nil
	}

	mode, err := resolveMode(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load(cfgFile, appName)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("lock-timeout") {
		if lockTimeout < 1 {
			return fmt.Errorf("lock timeout must be at least 1 second, got %d", lockTimeout)
		}
		cfg.LockTimeout = lockTimeout
	}

	detached := daemon.IsDetached()
	if !detached && !foreground && mode.StartsDaemon() {
		launcher := &daemon.Launcher{Args: os.Args[1:], Stderr: cmd.ErrOrStderr()}
		code, err := launcher.Launch()
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
		exitCode = code
		return nil
	}

	var sink *daemon.Sink
	if detached {
		sink, err = daemon.Detach()
	} else {
		sink, err = daemon.ForegroundSink()
	}
	if err != nil {
		return err
	}

	exitCode = runDaemon(cfg, mode, !detached, sink)
	return nil
}

func runDaemon(cfg *config.Config, mode domain.RunMode, inForeground bool, sink *daemon.Sink) int {
	d := domain.Daemon{
		PID:        os.Getpid(),
		Name:       appName,
		InstanceID: uuid.NewString(),
		Mode:       mode,
		Foreground: inForeground,
		StartedAt:  time.Now(),
		AppVersion: Version,
	}

	logger, level, err := infra.NewLogger(infra.LoggerOptions{
		Ident:       cfg.SyslogIdent,
		Level:       cfg.LogLevel,
		Foreground:  inForeground,
		InstanceID:  d.InstanceID,
		FallbackDir: "/var/tmp",
	})
	if err != nil {
		fmt.Fprintln(sink, err)
		_ = sink.Close()
		return 1
	}
	defer func() { _ = logger.Sync() }()

	report := infra.NewReporter(logger, sink)
	rt := daemon.NewRuntime(daemon.Options{
		App:     appName,
		Logger:  logger,
		Metrics: metrics.New(appName),
	})

	registry, err := modules.Default(cfg, appName, level)
	if err != nil {
		report.Errorf("%v", err)
		_ = sink.Close()
		return 1
	}

	startup := usecase.NewStartup(d, cfg, rt, registry.Steps(), report, sink)
	startup.LogUndefined = logUndefined
	code, err := startup.Execute(context.Background())
	if err != nil {
		logger.Error("startup failed", zap.Error(err), zap.String("mode", string(mode)))
	}
	return code
}

func runVersion(cmd *cobra.Command, args []string) {
	out := cmd.OutOrStdout()
	printVersion(out)
}

func printVersion(out io.Writer) {
	if jsonOutput {
		fmt.Fprintf(out, `{"version":"%s","commit":"%s","build_time":"%s"}`+"\n",
			Version, Commit, BuildTime)
	} else {
		fmt.Fprintf(out, "%s %s (commit: %s, built: %s)\n",
			appName, Version, Commit, BuildTime)
	}
}
