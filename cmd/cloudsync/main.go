package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/cloudsync/internal/config"
	"github.com/openmined/cloudsync/internal/utils"
	"github.com/openmined/cloudsync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// logLevel is shared by all handlers so the configured level applies after startup.
var logLevel = new(slog.LevelVar)

var rootCmd = &cobra.Command{
	Use:     "cloudsync",
	Short:   "Reconcile a local folder with Dropbox, Google Drive or S3",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.SortFlags = false
	flags.StringP("config", "c", "", "config file (default is config.yaml in ., ~/.cloudsync, ~/.config/cloudsync or /etc/cloudsync)")
	flags.StringP("storage", "s", "", "cloud storage: dropbox, gdrive or s3")
	flags.StringP("local-dir", "l", "", "local root folder")
	flags.StringP("cloud-dir", "r", "", "cloud folder to synchronize")
	flags.Bool("recursive", true, "descend into subfolders")
	flags.Bool("dry-run", false, "decide and report, but do not write anything")
	flags.IntP("workers", "w", 0, "concurrent listings and transfers (default is the number of CPUs)")
	flags.Bool("fail-fast", false, "stop on the first content comparison error")
	flags.StringSlice("include", nil, "only map files matching these globs, e.g. '**/*.pdf'")
	flags.String("log-level", "", "log level: debug, info, warn or error")
}

// flagKeys maps flags to config keys.
var flagKeys = map[string]string{
	"storage":   "storage",
	"local-dir": "local_dir",
	"cloud-dir": "cloud_dir",
	"recursive": "recursive",
	"dry-run":   "dry_run",
	"workers":   "workers",
	"fail-fast": "fail_fast",
	"include":   "include",
	"log-level": "log_level",
}

func main() {
	logFile, err := openLogFile(config.DefaultLogFilePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	logInterceptor := utils.NewLogInterceptor(logFile)

	stdoutHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// time is added by the log interceptor
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	runID := uuid.NewString()
	logger := slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)).With("run", runID[:8])
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Debug("cloudsync start", "version", version.Short(), "run", runID, "args", os.Args[1:])
	err = rootCmd.ExecuteContext(ctx)
	if err != nil {
		slog.Error("cloudsync failed", "error", err)
		fmt.Fprintln(os.Stderr, red.Render("Error: "+err.Error()))
	}

	stop()
	logInterceptor.Close()
	logFile.Close()
	os.Exit(exitCode(err))
}

// openLogFile truncates the log of the previous run.
func openLogFile(path string) (*os.File, error) {
	if err := utils.EnsureParent(path); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
}

func loadConfig(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	if path := explicitConfigPath(cmd); path != "" {
		viper.SetConfigFile(path)
	} else {
		for _, dir := range config.SearchPaths {
			viper.AddConfigPath(dir)
		}
		viper.SetConfigName(config.ConfigFileName)
		viper.SetConfigType(config.ConfigFileType)
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, ok := err.(viper.ConfigFileNotFoundError)
		if !enoent && !ok {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	config.SetDefaults(viper.GetViper())
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := viper.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", flag, err)
			}
		}
	}
	return nil
}

// loadValidConfig returns the validated config and applies its log level.
func loadValidConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	level, _ := cfg.Level()
	logLevel.Set(level)
	slog.Debug("config loaded", "path", cfg.Path, "config", cfg)
	return cfg, nil
}
