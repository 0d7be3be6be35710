package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	goLearn "github.com/MrEthical07/goLearn"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type app struct {
	baseURL string
	verbose bool

	logger *zap.Logger
	client *goLearn.Client
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "golearn",
		Short:         "goLearn command line client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open()
		},
	}
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "API base URL (overrides GOLEARN_BASE_URL)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Log requests to stderr")

	root.AddCommand(
		a.loginCmd(),
		a.logoutCmd(),
		a.whoamiCmd(),
		a.coursesCmd(),
		a.enrollmentsCmd(),
		a.certificatesCmd(),
		a.uploadCmd(),
	)
	return root
}

func (a *app) open() error {
	cfg, err := goLearn.LoadConfigFromEnv()
	if err != nil {
		return err
	}
	if a.baseURL != "" {
		cfg.BaseURL = a.baseURL
	}
	if cfg.TokenStore.Backend == "" || cfg.TokenStore.Backend == goLearn.TokenStoreMemory {
		path, err := defaultTokenPath()
		if err != nil {
			return err
		}
		cfg.TokenStore.Backend = goLearn.TokenStoreFile
		cfg.TokenStore.FilePath = path
	}

	level := zapcore.WarnLevel
	if a.verbose {
		level = zapcore.DebugLevel
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.OutputPaths = []string{"stderr"}
	a.logger, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	a.client, err = goLearn.New().
		WithConfig(cfg).
		WithLogger(a.logger).
		WithEventSink(goLearn.NewZapSink(a.logger.Named("events"))).
		WithSignOutHandler(func(reason error) {
			a.logger.Warn("session expired, run golearn login", zap.Error(reason))
		}).
		Build()
	return err
}

func (a *app) close() {
	if a.client != nil {
		_ = a.client.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

func defaultTokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "golearn", "token.json"), nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// friendly turns the errors a user can act on into short messages.
func friendly(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, goLearn.ErrSessionExpired), errors.Is(err, goLearn.ErrNotAuthenticated):
		return fmt.Errorf("not signed in, run golearn login: %w", err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("request timed out: %w", err)
	default:
		return err
	}
}
