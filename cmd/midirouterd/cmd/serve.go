package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rtpmididns/midirouter/internal/config"
	"github.com/rtpmididns/midirouter/internal/connection"
	"github.com/rtpmididns/midirouter/internal/control"
	"github.com/rtpmididns/midirouter/internal/database"
	"github.com/rtpmididns/midirouter/internal/metrics"
	"github.com/rtpmididns/midirouter/internal/peers"
	"github.com/rtpmididns/midirouter/internal/router"
	"github.com/rtpmididns/midirouter/internal/session"
	"github.com/rtpmididns/midirouter/internal/version"
	"github.com/rtpmididns/midirouter/internal/writer"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the routing daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.Log, os.Stdout)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			logger.Info("starting midirouterd",
				"version", version.Version,
				"commit", version.Commit,
				"config", *configPath,
			)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case sig := <-sigCh:
					logger.Info("received shutdown signal", "signal", sig)
					cancel()
				case <-ctx.Done():
				}
			}()

			d, err := newDaemon(ctx, cfg, logger)
			if err != nil {
				logger.Error("failed to start", "error", err)
				return err
			}
			return d.run(ctx)
		},
	}
}

// daemon holds the assembled components of a running instance.
type daemon struct {
	cfg    *config.DaemonConfig
	logger *slog.Logger

	metrics  *metrics.Metrics
	router   *router.Router
	binder   *session.Binder
	monitors map[string]*peers.Monitor

	ws      *connection.Server
	wsHTTP  *http.Server
	control *http.Server
	stats   lifecycle
	closeDB func()
}

// lifecycle is a background component started before the servers.
type lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// newDaemon wires the router, built-in peers, transports and the optional
// stats writer. Listeners are not opened until run.
func newDaemon(ctx context.Context, cfg *config.DaemonConfig, logger *slog.Logger) (*daemon, error) {
	d := &daemon{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics.New("midirouter"),
		monitors: make(map[string]*peers.Monitor),
		closeDB:  func() {},
	}

	d.router = router.New(
		router.Config{TraceRoutes: cfg.Router.TraceRoutes},
		logger.With("component", "router"),
		router.WithObserver(d.metrics),
	)
	d.binder = session.NewBinder(d.router, cfg.Routes, logger.With("component", "session"))

	for _, name := range cfg.Peers.Echo {
		if err := d.addBuiltin(peers.NewEcho(name)); err != nil {
			return nil, err
		}
	}
	for _, name := range cfg.Peers.Monitor {
		m := peers.NewMonitor(name, cfg.Peers.MonitorKeep, logger.With("component", "monitor"))
		if err := d.addBuiltin(m); err != nil {
			return nil, err
		}
		d.monitors[name] = m
	}

	d.ws = connection.NewServer(
		connection.ClientConfig{
			WriteTimeout: cfg.WebSocket.WriteTimeout,
			PingInterval: cfg.WebSocket.PingInterval,
			PingTimeout:  2 * cfg.WebSocket.PingInterval,
			ReadLimit:    cfg.WebSocket.ReadLimit,
			QueueSize:    cfg.WebSocket.QueueSize,
		},
		d.router,
		logger.With("component", "websocket"),
		connection.WithBinder(d.binder),
		connection.WithQueueDropHook(d.metrics.QueueDropped),
	)
	wsMux := http.NewServeMux()
	wsMux.Handle(cfg.WebSocket.Path, d.ws)
	d.wsHTTP = &http.Server{
		Addr:              cfg.WebSocket.ListenAddr,
		Handler:           wsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	deps := control.Deps{
		Router:   d.router,
		Resolver: d.binder,
		Metrics:  d.metrics.Handler(),
		Monitors: d.monitors,
	}

	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database, cfg.Instance.Name)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		d.closeDB = pool.Close
		if err := writer.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("database connected")

		d.stats = writer.NewStatsWriter(
			writer.WriterConfig{
				FlushInterval: cfg.Stats.FlushInterval,
				FlushTimeout:  writer.DefaultWriterConfig().FlushTimeout,
			},
			d.router,
			pool,
			d.metrics,
			logger.With("component", "stats_writer"),
		)
		deps.Database = pool
	}

	d.control = control.NewServer(cfg.HTTP.ListenAddr, deps, logger.With("component", "control"))
	return d, nil
}

// addBuiltin registers a built-in peer and binds its name so routes apply.
func (d *daemon) addBuiltin(p router.Peer) error {
	name := p.Base().Name
	id := d.router.AddPeer(p)
	if err := d.binder.Bind(name, id); err != nil {
		d.router.RemovePeer(id)
		return fmt.Errorf("built-in peer %q: %w", name, err)
	}
	return nil
}

// run serves until ctx is cancelled or a server fails, then shuts down.
func (d *daemon) run(ctx context.Context) error {
	wsLn, err := net.Listen("tcp", d.wsHTTP.Addr)
	if err != nil {
		d.closeDB()
		return fmt.Errorf("listen websocket: %w", err)
	}
	ctlLn, err := net.Listen("tcp", d.control.Addr)
	if err != nil {
		wsLn.Close()
		d.closeDB()
		return fmt.Errorf("listen control: %w", err)
	}
	return d.serve(ctx, wsLn, ctlLn)
}

func (d *daemon) serve(ctx context.Context, wsLn, ctlLn net.Listener) error {
	defer d.closeDB()

	// Nothing is serving yet, so a failed start only has to release the listeners.
	if d.stats != nil {
		if err := d.stats.Start(ctx); err != nil {
			wsLn.Close()
			ctlLn.Close()
			return fmt.Errorf("start stats writer: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.logger.Info("websocket server listening", "addr", wsLn.Addr().String(), "path", d.cfg.WebSocket.Path)
		if err := d.wsHTTP.Serve(wsLn); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("websocket server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		d.logger.Info("control server listening", "addr", ctlLn.Addr().String())
		if err := d.control.Serve(ctlLn); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return d.shutdown()
	})

	d.logger.Info("midirouterd running",
		"instance", d.cfg.Instance.Name,
		"peers", d.router.Stats().Peers,
		"routes", len(d.cfg.Routes),
	)

	err := g.Wait()
	d.logger.Info("midirouterd stopped")
	return err
}

func (d *daemon) shutdown() error {
	d.logger.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := d.wsHTTP.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown websocket server: %w", err))
	}
	// Hijacked websocket connections are not closed by Shutdown.
	if err := d.ws.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close websocket peers: %w", err))
	}
	if d.stats != nil {
		if err := d.stats.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop stats writer: %w", err))
		}
	}
	if err := d.control.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown control server: %w", err))
	}
	return errors.Join(errs...)
}
