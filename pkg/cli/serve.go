package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vulnapproval/pkg/cli/config"
	httpctrl "github.com/secmon-lab/vulnapproval/pkg/controller/http"
	"github.com/secmon-lab/vulnapproval/pkg/service/worker"
	"github.com/secmon-lab/vulnapproval/pkg/usecase"
	"github.com/secmon-lab/vulnapproval/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe(version string) *cli.Command {
	var addr string
	var appCfg config.App
	var repoCfg config.Repository
	var cacheCfg config.Cache
	var tracerCfg config.Tracer

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("VULNAPPROVAL_ADDR"),
			Destination: &addr,
		},
	}

	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, cacheCfg.Flags()...)
	flags = append(flags, tracerCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			shutdownTracer, err := tracerCfg.Configure(ctx, version)
			if err != nil {
				return goerr.Wrap(err, "failed to configure tracer")
			}
			defer func() {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdownTracer(flushCtx); err != nil {
					logging.Default().Error("failed to shutdown tracer", "error", err.Error())
				}
			}()

			approvalCache, closeCache, err := cacheCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure cache")
			}
			defer closeCache()

			eng, err := newEngine(ctx, &appCfg, &repoCfg, usecase.WithCache(approvalCache))
			if err != nil {
				return err
			}
			defer eng.close()

			var checkWorker *worker.ConsistencyCheckWorker
			if interval := eng.app.CheckInterval(); interval > 0 {
				checkWorker = worker.NewConsistencyCheckWorker(eng.uc.Approval, interval)
				if err := checkWorker.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start consistency check worker")
				}
			}

			server := &http.Server{
				Addr: addr,
				Handler: httpctrl.New(eng.uc.Approval, eng.uc.Vulnerability,
					httpctrl.WithStatusDisplay(eng.app.Display()),
				),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				if checkWorker != nil {
					checkWorker.Stop()
				}
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				// Stop background worker first
				if checkWorker != nil {
					checkWorker.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
