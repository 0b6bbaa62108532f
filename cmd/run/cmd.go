// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package run

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"

	"github.com/luxfi/database"
	"github.com/luxfi/database/badgerdb"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/surety"
	"github.com/luxfi/surety/api/server"
	"github.com/luxfi/surety/config"
	"github.com/luxfi/surety/utils/profiler"
)

const metricsEndpoint = "/metrics"

func Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "run",
		Short: "Runs the surety engine and serves its API",
		RunE:  runFunc,
	}
	AddFlags(c.Flags())
	return c
}

func runFunc(c *cobra.Command, args []string) error {
	cfg, err := ParseFlags(c.Flags(), args)
	if err != nil {
		return err
	}

	logger := log.NewLogger("surety")
	if cfg.ProfileDir != "" {
		p := profiler.New(cfg.ProfileDir)
		if err := p.StartCPUProfiler(); err != nil {
			return fmt.Errorf("failed to start profiler: %w", err)
		}
		defer func() {
			if err := p.Stop(); err != nil {
				logger.Warn("failed to write profiles",
					log.Err(err),
				)
			}
		}()
	}

	db, err := openDatabase(cfg.Engine.DataDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database",
				log.Err(err),
			)
		}
	}()

	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return err
	}

	vm, err := newVM(c.Context(), cfg, logger, db, registry)
	if err != nil {
		return err
	}
	defer func() {
		_ = vm.Shutdown(context.Background())
	}()

	return serve(c.Context(), cfg.Engine, logger, vm, registry)
}

func openDatabase(dir string) (database.Database, error) {
	if dir == "" {
		return memdb.New(), nil
	}
	db, err := badgerdb.New(dir, nil, "", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %s: %w", dir, err)
	}
	return db, nil
}

type engine struct {
	*surety.VM
	toEngine chan surety.Message
}

func newVM(
	ctx context.Context,
	cfg *Config,
	logger log.Logger,
	db database.Database,
	registry prometheus.Registerer,
) (*engine, error) {
	factory := &surety.Factory{Config: cfg.Engine}
	created, err := factory.New(logger)
	if err != nil {
		return nil, err
	}
	vm := created.(*surety.VM)

	toEngine := make(chan surety.Message, cfg.Engine.NotificationBuffer)
	if err := vm.Initialize(ctx, db, registry, toEngine); err != nil {
		return nil, err
	}
	if cfg.Bootstrap && !vm.IsBootstrapped() {
		if err := vm.Bootstrap(cfg.Owner, cfg.Airline, cfg.AirlineName); err != nil {
			return nil, errors.Join(
				fmt.Errorf("failed to bootstrap: %w", err),
				vm.Shutdown(ctx),
			)
		}
	}
	return &engine{
		VM:       vm,
		toEngine: toEngine,
	}, nil
}

func serve(
	ctx context.Context,
	cfg config.Config,
	logger log.Logger,
	vm *engine,
	registry *prometheus.Registry,
) error {
	address := net.JoinHostPort(cfg.Server.HTTPHost, strconv.Itoa(int(cfg.Server.HTTPPort)))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", address, err)
	}

	srv, err := server.New(
		logger,
		listener,
		cfg.Server.AllowedOrigins,
		cfg.Server.ShutdownTimeout,
		registry,
		server.HTTPConfig{
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		},
	)
	if err != nil {
		_ = listener.Close()
		return err
	}

	handlers, err := vm.CreateHandlers(ctx)
	if err != nil {
		_ = listener.Close()
		return err
	}
	handlers[metricsEndpoint] = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	for endpoint, handler := range handlers {
		if err := srv.AddRoute(handler, endpoint); err != nil {
			_ = listener.Close()
			return err
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		err := srv.Dispatch()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	eg.Go(func() error {
		<-ctx.Done()
		return srv.Shutdown()
	})
	eg.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg := <-vm.toEngine:
				logger.Info("engine notification",
					log.Stringer("type", msg.Type),
					log.Stringer("participant", msg.Participant),
					log.Stringer("key", msg.Key),
				)
			}
		}
	})
	return eg.Wait()
}
