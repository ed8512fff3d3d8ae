package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ZilDuck/nft-marketplace/internal/config"
	"github.com/ZilDuck/nft-marketplace/internal/config/di"
	"github.com/gorilla/mux"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

type Daemon struct {
	cfg       *config.Config
	container *di.Container
}

func NewDaemon(cfg *config.Config, container *di.Container) *Daemon {
	return &Daemon{cfg: cfg, container: container}
}

// Execute serves the marketplace until ctx is cancelled or a server fails,
// then drains pending events and closes the store.
func (d *Daemon) Execute(ctx context.Context) (err error) {
	defer func() {
		err = multierr.Append(err, d.shutdown())
	}()

	if err := d.initialize(ctx); err != nil {
		return err
	}

	server, err := d.container.GetApi()
	if err != nil {
		return err
	}

	servers := []*http.Server{
		{Addr: ":" + d.cfg.HttpPort, Handler: server.Router()},
		{Addr: ":" + d.cfg.HealthPort, Handler: healthRouter()},
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			zap.L().With(zap.String("addr", srv.Addr)).Info("Daemon: Listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		zap.L().Info("Daemon: Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs error
		for _, srv := range servers {
			errs = multierr.Append(errs, srv.Shutdown(shutdownCtx))
		}
		return errs
	})

	return g.Wait()
}

func (d *Daemon) initialize(ctx context.Context) error {
	if _, err := d.container.GetLedger(); err != nil {
		zap.L().With(zap.Error(err)).Error("Daemon: Failed to load ledger")
		return err
	}

	manager := d.container.GetEventManager()

	relay := d.container.GetRelay()
	if relay.Publishers() != 0 {
		manager.AddEventListener(relay.Handle)
	} else {
		zap.L().Warn("Daemon: No event publishers configured")
	}

	archive, err := d.container.GetArchive()
	if err != nil {
		return err
	}
	if archive != nil {
		index, err := d.container.GetElastic()
		if err != nil {
			return err
		}
		if err := index.InstallMappings(ctx); err != nil {
			return err
		}
		manager.AddEventListener(archive.Handle)
	}

	return nil
}

// shutdown stops the event manager first so every emitted event reaches the
// relay and the archive before they are closed.
func (d *Daemon) shutdown() error {
	d.container.GetEventManager().Close()

	err := d.container.Delete()
	if err != nil {
		zap.L().With(zap.Error(err)).Error("Daemon: Shutdown failed")
	} else {
		zap.L().Info("Daemon: Stopped")
	}
	return err
}

func healthRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "OK")
	}).Methods("GET")

	return r
}
