package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CodeChoreography/dicomity/internal/adapters/progress"
	"github.com/CodeChoreography/dicomity/internal/config"
	"github.com/CodeChoreography/dicomity/internal/domain"
	"github.com/CodeChoreography/dicomity/internal/logging"
	"github.com/CodeChoreography/dicomity/internal/wiring"
)

var (
	cfgFile string
	noCache bool
	v       = config.New()
	rt      *wiring.Runtime
)

var rootCmd = &cobra.Command{
	Use:   "dicomity-cli",
	Short: "Group DICOM files into series and put their slices in order",
	Long: `dicomity-cli scans directories of DICOM files, groups the images into
coherent series and orders each series for display.

Headers are cached between runs, so rescanning an unchanged tree reads
nothing but file metadata.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip initialization for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}
		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		if noCache {
			cfg.Cache.Enabled = false
		}
		logger, err := logging.New(cfg.Log.Level)
		if err != nil {
			return err
		}
		rt, err = wiring.New(cfg, logger)
		if err != nil {
			return err
		}
		return rt.Open()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if rt == nil {
			return nil
		}
		defer rt.Logger.Sync()
		return rt.Close()
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is dicomity.yaml in the user config dir or .)")
	flags.String("cache", config.CachePath(), "path to the header cache database")
	flags.BoolVar(&noCache, "no-cache", false, "do not read or write the header cache")
	flags.IntP("workers", "w", 0, "concurrent header reads (0 = one per CPU)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("metrics-textfile", "", "write Prometheus metrics to this file on exit")

	bind(v, "cache.path", "cache")
	bind(v, "workers", "workers")
	bind(v, "log.level", "log-level")
	bind(v, "metrics.textfile", "metrics-textfile")
}

func bind(v *viper.Viper, key, flag string) {
	if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// scan runs a fresh scan of roots, logging progress.
func scan(cmd *cobra.Command, roots []string) (*domain.Registry, *domain.ScanReport, error) {
	report, err := rt.Session.Scan(cmd.Context(), roots, progress.NewLogger(rt.Logger))
	if err != nil {
		return nil, nil, err
	}
	if report.Cancelled {
		fmt.Fprintln(cmd.ErrOrStderr(), "scan interrupted: showing the files read so far")
	}
	return rt.Session.Registry(), report, nil
}
