package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TaIos/mod-tls/pkg/cert"
	"github.com/TaIos/mod-tls/pkg/cert/ocsp"
	"github.com/TaIos/mod-tls/pkg/config"
	"github.com/TaIos/mod-tls/pkg/engine"
	"github.com/TaIos/mod-tls/pkg/server"
	"github.com/TaIos/mod-tls/pkg/telemetry/logging"
)

var runFlags struct {
	listen   []string
	logLevel string
	dryRun   bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the TLS termination core",
	Long: `Start the TLS termination core with the specified configuration.

Every virtual host is compiled into an immutable policy before the
first connection is accepted; any configuration or certificate problem
aborts startup.

Examples:
  # Start with default config
  modtls run

  # Start with custom config
  modtls run --config /etc/modtls/config.yaml

  # Override the listen addresses
  modtls run --listen 0.0.0.0:8443

  # Compile all policies without serving
  modtls run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVarP(&runFlags.listen, "listen", "l", nil, "override listen addresses")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "compile policies without starting the server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}
	if len(runFlags.listen) > 0 {
		cfg.Listen = runFlags.listen
	}
	if runFlags.logLevel != "" {
		cfg.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger, err := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.AddSource,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, engine.NewStd(), logger)
	if err != nil {
		return err
	}
	reg := srv.Registry()

	if runFlags.dryRun {
		defer reg.Close()
		fmt.Printf("✓ Configuration valid: %d vhosts compiled, %d certificates loaded\n",
			len(reg.Policies), reg.Certs.Len())
		return nil
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.WatchCertificates {
		watcher, err := cert.NewWatcher(reg.CertFilePaths(cfg), logger)
		if err != nil {
			return err
		}
		defer watcher.Close()
	}

	if cfg.OCSP.Enabled {
		refresher := ocsp.NewRefresher(reg.OCSPCache, ocsp.NewHTTPFetcher(nil), reg.Certs.Keys(), logger, srv.Collector())
		refresher.Prime(ctx)
		if err := refresher.Start(cfg.OCSP.RefreshSchedule); err != nil {
			return err
		}
		defer refresher.Stop()
	}

	return srv.Start(ctx)
}
