package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"shopledger/backend/internal/bootstrap"
	"shopledger/backend/internal/config"
	"shopledger/backend/internal/logger"
	"shopledger/backend/internal/service"
)

var version = "1.0.0"

// openCache is swapped in tests.
var openCache = bootstrap.OpenCache

// opener builds the service a command runs against and a function that
// releases it.
type opener func(ctx context.Context) (*service.Service, func() error, error)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	logCfg := cfg.LogConfig()
	logCfg.Format = "console"
	logCfg.Output = "stderr"
	logCloser, err := logger.Setup(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()

	log := logger.WithComponent("ledgerctl")
	if err := newRootCmd(openFromConfig(cfg)).Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		logCloser.Close()
		os.Exit(1)
	}
}

func openFromConfig(cfg config.Config) opener {
	return func(ctx context.Context) (*service.Service, func() error, error) {
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("invalid configuration: %w", err)
		}
		log := logger.WithComponent("ledgerctl")
		gw, err := bootstrap.OpenGateway(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		reports, closeCache := openCache(ctx, cfg, log)
		release := func() error {
			err := gw.Close()
			if closeCache != nil {
				err = errors.Join(err, closeCache())
			}
			return err
		}
		svc, err := bootstrap.Service(cfg, gw, reports)
		if err != nil {
			_ = release()
			return nil, nil, err
		}
		return svc, release, nil
	}
}

func newRootCmd(open opener) *cobra.Command {
	var (
		svc     *service.Service
		release func() error
	)
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Administer a shopledger store",
		Long: `ledgerctl runs maintenance commands directly against the configured store.

Storage is selected with the same environment variables as the server:
  STORAGE_DRIVER  memory, postgres or sqlite
  DATABASE_URL    postgres connection string
  SQLITE_PATH     sqlite database file`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			svc, release, err = open(cmd.Context())
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if release == nil {
				return nil
			}
			return release()
		},
	}
	get := func() *service.Service { return svc }

	root.AddCommand(
		newExportCmd(get),
		newRestoreCmd(get),
		newPayrollCmd(get),
		newReconcileCmd(get),
		newStockCmd(get),
	)
	return root
}
