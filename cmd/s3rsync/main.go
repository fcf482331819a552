package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/s3rsync/s3rsync/internal/blob"
	"github.com/s3rsync/s3rsync/internal/config"
	"github.com/s3rsync/s3rsync/internal/sync"
	"github.com/s3rsync/s3rsync/internal/utils"
	"github.com/s3rsync/s3rsync/internal/version"
)

var rootCmd = &cobra.Command{
	Use:     "s3rsync <local_path>",
	Short:   "Sync a local directory with an S3-compatible bucket prefix",
	Args:    cobra.ExactArgs(1),
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd, args[0])
	},
	RunE: runSync,
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.Flags().StringP("bucket", "b", "", "S3 bucket name")
	rootCmd.Flags().StringP("prefix", "p", "", "S3 prefix (directory) to sync under")
	rootCmd.Flags().String("endpoint-url", "", "S3-compatible service endpoint URL")
	rootCmd.Flags().String("region", "", "Region name (e.g. oss-cn-beijing)")
	rootCmd.Flags().String("access-key", "", "Access key ID (falls back to OSS_/AWS_ env vars)")
	rootCmd.Flags().String("secret-key", "", "Secret access key (falls back to OSS_/AWS_ env vars)")
	rootCmd.Flags().StringSliceP("extensions", "x", nil, "File extensions to include (or exclude with --blacklist)")
	rootCmd.Flags().Bool("blacklist", false, "Treat extensions as a blacklist instead of a whitelist")
	rootCmd.Flags().IntP("concurrency", "j", 4, "Maximum concurrent transfers")
	rootCmd.Flags().Bool("dry-run", false, "Report pending transfers without performing them")
	rootCmd.Flags().BoolP("verbose", "v", false, "Enable debug logging")
}

func main() {
	verbose := false
	for _, arg := range os.Args[1:] {
		if arg == "-v" || arg == "--verbose" {
			verbose = true
		}
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command, localPath string) error {
	// per-directory config file, silently absent
	configFile := filepath.Join(localPath, config.ConfigFileName)
	if utils.FileExists(configFile) {
		viper.SetConfigFile(configFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("config read '%s': %w", configFile, err)
		}
	}

	// flags take precedence over the config file
	viper.BindPFlag("bucket", cmd.Flags().Lookup("bucket"))
	viper.BindPFlag("prefix", cmd.Flags().Lookup("prefix"))
	viper.BindPFlag("endpoint-url", cmd.Flags().Lookup("endpoint-url"))
	viper.BindPFlag("region", cmd.Flags().Lookup("region"))
	viper.BindPFlag("extensions", cmd.Flags().Lookup("extensions"))
	viper.BindPFlag("blacklist", cmd.Flags().Lookup("blacklist"))
	viper.BindPFlag("concurrency", cmd.Flags().Lookup("concurrency"))

	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config parse: %w", err)
	}
	cfg.LocalPath = args[0]

	// credentials never come from the config file
	cfg.AccessKey, _ = cmd.Flags().GetString("access-key")
	cfg.SecretKey, _ = cmd.Flags().GetString("secret-key")
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		envAccess, envSecret := config.CredentialsFromEnv()
		if cfg.AccessKey == "" {
			cfg.AccessKey = envAccess
		}
		if cfg.SecretKey == "" {
			cfg.SecretKey = envSecret
		}
	}
	cfg.DryRun, _ = cmd.Flags().GetBool("dry-run")

	if err := cfg.Validate(); err != nil {
		return err
	}

	cmd.SilenceUsage = true

	store, err := blob.NewS3StoreWithConfig(&blob.S3Config{
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Endpoint:  cfg.Endpoint,
	})
	if err != nil {
		return err
	}

	lock, err := sync.NewFlockLock(cfg.Bucket, cfg.Prefix)
	if err != nil {
		return err
	}

	console := newConsoleObserver()

	engine := sync.NewSyncEngine(store, lock, &sync.Options{
		RootDir:     cfg.LocalPath,
		Prefix:      cfg.Prefix,
		Filter:      sync.NewExtFilter(cfg.Extensions, cfg.Blacklist),
		Concurrency: cfg.Concurrency,
		Observer:    console.Observe,
		OnPlan:      console.PrintPlan,
	})

	if cfg.DryRun {
		plan, err := engine.Plan(cmd.Context())
		if err != nil {
			return err
		}
		console.PrintPlan(plan)
		return nil
	}

	stats, err := engine.Run(cmd.Context())
	if errors.Is(err, sync.ErrSyncInProgress) {
		slog.Warn("another sync process is running, nothing to do")
		return nil
	}
	if stats != nil {
		console.PrintSummary(stats)
	}
	return err
}
