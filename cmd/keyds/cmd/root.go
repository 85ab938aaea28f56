/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ssargent/keyds/pkg/access"
	"github.com/ssargent/keyds/pkg/codec"
	"github.com/ssargent/keyds/pkg/config"
	"github.com/ssargent/keyds/pkg/di"
	"github.com/ssargent/keyds/pkg/logging"
)

var container *di.Container

// SetContainer sets the dependency injection container
func SetContainer(c *di.Container) {
	container = c
}

type envKey struct{}

// env is what every subcommand runs with: the effective configuration and
// the objects built from it
type env struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
	method     access.Method
	transcoder codec.Transcoder
}

func envFrom(cmd *cobra.Command) (*env, error) {
	e, ok := cmd.Context().Value(envKey{}).(*env)
	if !ok {
		return nil, errors.New("environment not initialized")
	}
	return e, nil
}

// NewRootCmd builds the keyds command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "keyds",
		Short: "keyds - keyed record datasets",
		Long: `keyds stores fixed-length records in keyed datasets. Each dataset is
described by a schema of string and hexadecimal fields, one of which is the
record key.

Datasets can be used directly from the command line, interactively with
'keyds shell', or served over a REST API with 'keyds serve'.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey{}, e))
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Config file (default is $HOME/.config/keyds/config.yaml)")
	flags.StringP("data-dir", "d", "", "Directory relative dataset paths in the config resolve against")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text or json")
	flags.String("compression", "", "Record compression for pebble datasets: none, snappy, zstd or lz4")
	flags.String("encoding", "", "String field encoding: identity, ibm-1047 or ibm-037")

	rootCmd.AddCommand(
		newInitCmd(),
		newAllocCmd(),
		newDeallocCmd(),
		newExistCmd(),
		newFindCmd(),
		newDumpCmd(),
		newWriteCmd(),
		newUpdateCmd(),
		newDeleteCmd(),
		newServeCmd(),
		newShellCmd(),
	)
	return rootCmd
}

// loadEnv loads the config file when there is one and applies the flag
// overrides on top of it
func loadEnv(cmd *cobra.Command) (*env, error) {
	flags := cmd.Flags()

	configPath, _ := flags.GetString("config")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg := config.DefaultConfig()
	if config.ConfigExists(configPath) {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overrides := []struct {
		flag   string
		target *string
	}{
		{"data-dir", &cfg.DataDir},
		{"log-level", &cfg.Logging.Level},
		{"log-format", &cfg.Logging.Format},
		{"compression", &cfg.Storage.Compression},
		{"encoding", &cfg.Storage.Encoding},
	}
	for _, o := range overrides {
		if flags.Changed(o.flag) {
			*o.target, _ = flags.GetString(o.flag)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	if container == nil {
		container = di.NewContainer()
	}
	method, err := container.GetMethod(cfg, logger)
	if err != nil {
		return nil, err
	}
	tc, err := cfg.Transcoder()
	if err != nil {
		return nil, err
	}

	return &env{
		configPath: configPath,
		cfg:        cfg,
		logger:     logger,
		method:     method,
		transcoder: tc,
	}, nil
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
