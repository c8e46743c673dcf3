// Copyright (C) 2025-2026, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.
package servecmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/clawlet/pkg/application"
	"github.com/luxfi/clawlet/pkg/server"
)

var (
	app *application.App

	stdioFlag bool
)

func NewCmd(injectedApp *application.App) *cobra.Command {
	app = injectedApp

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the broker bindings",
		Long: `Run the JSON-HTTP binding on PORT (default 3000), the payment-session
sweeper, and, with --stdio, the line-delimited tool protocol on the
process's standard streams.`,
		RunE:         runServe,
		SilenceUsage: true,
	}

	cmd.Flags().BoolVar(&stdioFlag, "stdio", false, "also serve the stdio tool protocol")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpBinding := server.NewHTTP(app.Tools, app.Metrics, app.Store, app.Log)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.Conf.Port),
		Handler: httpBinding.Router(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.Log.Info("http binding listening",
			zap.Int("port", app.Conf.Port),
			zap.Bool("demoMode", app.Conf.DemoMode),
			zap.String("network", string(app.Store.Network())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		app.Broker.RunSweeper(gctx)
		return nil
	})

	if stdioFlag {
		g.Go(func() error {
			app.Log.Info("stdio binding attached")
			return server.NewStdio(app.Tools, app.Log).Run(gctx, os.Stdin, os.Stdout)
		})
	}

	return g.Wait()
}
