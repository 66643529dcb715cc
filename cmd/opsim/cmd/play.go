package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/psantana5/opsim/internal/shell"
	"github.com/psantana5/opsim/pkg/logging"
	"github.com/psantana5/opsim/pkg/metrics"
	"github.com/psantana5/opsim/pkg/sim"
	"github.com/psantana5/opsim/pkg/store"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start an interactive session",
	Long: `Start the interactive simulator shell. Type 'help' inside the shell for
the list of commands and 'tutorial' to browse the guided lessons.`,
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.LogLevel
	logCfg.File = cfg.LogFile
	logger, closer, err := logging.New(logCfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	st, err := store.NewStore(store.Config{Type: cfg.Store, DSN: cfg.DSN, Path: cfg.SaveFile})
	if err != nil {
		return errors.Wrapf(err, "failed to open %s store", cfg.Store)
	}
	defer st.Close()

	simulator, err := sim.New(sim.Options{
		Seed:        cfg.Seed,
		Logger:      logger,
		Autoscaling: cfg.Autoscale,
	})
	if err != nil {
		return err
	}

	exporter := metrics.NewExporter()
	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, exporter, logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "\nReceived signal, exiting...")
			cancel()
			// Unblock the pending read
			os.Stdin.Close()
		case <-ctx.Done():
		}
	}()

	sh := shell.New(simulator, shell.Options{
		In:       cmd.InOrStdin(),
		Out:      cmd.OutOrStdout(),
		Store:    st,
		Exporter: exporter,
		Logger:   logger,
	})
	if err := sh.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func startMetricsServer(addr string, exporter *metrics.Exporter, logger *logrus.Logger) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      exporter.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		logger.WithField("addr", addr).Info("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("metrics server error")
		}
	}()
	return srv
}
