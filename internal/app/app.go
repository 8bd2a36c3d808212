package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quickserve/pos-device-access/internal/config"
	"github.com/quickserve/pos-device-access/internal/observability"
	"github.com/quickserve/pos-device-access/internal/service"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	Sweeper       *service.ExpirySweeper

	ShutdownTimeout time.Duration
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, runtime *observability.Runtime, sweeper *service.ExpirySweeper) *App {
	return &App{
		Config:          cfg,
		Logger:          logger,
		Server:          server,
		Observability:   runtime,
		Sweeper:         sweeper,
		ShutdownTimeout: 15 * time.Second,
	}
}

// Run serves HTTP and the expiry sweeper until the context is
// canceled, then drains both before shutting observability down.
func (a *App) Run(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if a.Sweeper != nil {
		group.Go(func() error {
			err := a.Sweeper.Run(groupCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.ShutdownTimeout)
		defer cancel()
		a.Logger.Info("shutting down http server")
		return a.Server.Shutdown(shutdownCtx)
	})

	err := group.Wait()

	if a.Observability != nil {
		obsCtx, cancel := context.WithTimeout(context.Background(), a.ShutdownTimeout)
		defer cancel()
		if obsErr := a.Observability.Shutdown(obsCtx); obsErr != nil {
			a.Logger.Error("observability shutdown failed", "error", obsErr)
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
