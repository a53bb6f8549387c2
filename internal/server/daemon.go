// Package server boots fluxdnad. It loads configuration, starts embedded
// NATS, builds the host runtime and loads the plugin, then serves the
// control API and the site.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/fluxfullcircle/fluxdna/internal/api"
	"github.com/fluxfullcircle/fluxdna/internal/dispatch"
	"github.com/fluxfullcircle/fluxdna/internal/host"
	"github.com/fluxfullcircle/fluxdna/internal/natsserver"
	"github.com/fluxfullcircle/fluxdna/internal/options"
	"github.com/fluxfullcircle/fluxdna/internal/plugin"
	"github.com/fluxfullcircle/fluxdna/internal/scripting"
	"github.com/fluxfullcircle/fluxdna/internal/web"
	"github.com/fluxfullcircle/fluxdna/pkg/protocol"
)

const renderTimeout = 10 * time.Second

// Daemon is the fluxdnad process.
type Daemon struct {
	cfg       Config
	logger    zerolog.Logger
	nats      *natsserver.Server
	runtime   *host.Runtime
	plugin    *plugin.Plugin
	scripts   *scripting.Engine
	renderSub *nats.Subscription
	apiServer *api.Server
	webServer *web.Server
	startedAt time.Time
	cancel    context.CancelFunc
	stopCh    chan struct{}
}

// NewDaemon creates a Daemon from config.
func NewDaemon(cfg Config, logger zerolog.Logger) *Daemon {
	return &Daemon{
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Run starts all subsystems and blocks until a signal is received or Stop
// is called.
func (d *Daemon) Run() error {
	d.startedAt = time.Now()
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	if err := d.start(ctx); err != nil {
		d.shutdown()
		return err
	}

	apiErrCh := make(chan error, 1)
	go func() {
		apiErrCh <- d.apiServer.Start()
	}()
	webErrCh := make(chan error, 1)
	if d.webServer != nil {
		go func() {
			webErrCh <- d.webServer.Start()
		}()
	}

	d.logger.Info().
		Str("socket", d.cfg.Server.Socket).
		Str("plugin", d.plugin.Name()).
		Str("version", d.plugin.Version()).
		Msg("fluxdnad started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		d.logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-d.stopCh:
		d.logger.Info().Msg("stop requested, shutting down")
	case err := <-apiErrCh:
		if err != nil {
			d.logger.Error().Err(err).Msg("API server error")
		}
	case err := <-webErrCh:
		if err != nil {
			d.logger.Error().Err(err).Msg("web server error")
		}
	}

	return d.shutdown()
}

func (d *Daemon) start(ctx context.Context) error {
	// 1. Embedded NATS with the event stream.
	ns, err := natsserver.New(natsserver.Config{
		StoreDir: d.cfg.NATS.DataDir,
		Host:     d.cfg.NATS.Host,
		Port:     d.cfg.NATS.Port,
		Token:    d.cfg.NATS.Token,
		Stream:   protocol.StreamEvents,
		Subjects: []string{protocol.SubjectEvents},
		MaxAge:   d.cfg.NATS.EventMaxAge,
	}, d.logger)
	if err != nil {
		return fmt.Errorf("start nats: %w", err)
	}
	d.nats = ns

	// 2. Site options.
	store, err := options.Open(d.cfg.Options.File, d.cfg.Identities, d.logger)
	if err != nil {
		return fmt.Errorf("open options: %w", err)
	}
	if d.cfg.Options.Watch {
		if err := store.Watch(ctx); err != nil {
			d.logger.Warn().Err(err).Str("file", d.cfg.Options.File).Msg("options hot reload disabled")
		}
	}

	// 3. Host runtime.
	metrics := prometheus.NewRegistry()
	metrics.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rt, err := host.New(dispatch.New(d.logger, dispatch.WithRegisterer(metrics)), store, d.logger)
	if err != nil {
		return fmt.Errorf("host runtime: %w", err)
	}
	d.runtime = rt

	// 4. Extension scripts.
	if d.cfg.Scripts.Dir != "" {
		engine := scripting.New(d.cfg.Scripts.Dir, store, d.cfg.Scripts.HandlerTimeout, d.logger)
		engine.SetVerifyIntegrity(d.cfg.Scripts.VerifyIntegrity)
		if err := engine.LoadDir(); err != nil {
			return fmt.Errorf("load scripts: %w", err)
		}
		d.scripts = engine
	}

	// 5. Plugin.
	d.plugin = plugin.New(plugin.Config{
		BaseURL:      d.cfg.Plugin.BaseURL,
		LanguagesDir: d.cfg.Plugin.LanguagesDir,
		Locale:       d.cfg.Plugin.Locale,
		CacheTTL:     d.cfg.Plugin.CacheTTL,
		Scripts:      d.scripts,
		Notifier:     &eventNotifier{pub: ns, source: "fluxdnad"},
	}, d.logger)
	if err := d.plugin.Load(rt); err != nil {
		return fmt.Errorf("load plugin: %w", err)
	}
	if err := rt.Boot(ctx); err != nil {
		return fmt.Errorf("boot: %w", err)
	}
	if d.cfg.Plugin.Activate {
		if err := rt.Activate(ctx, d.plugin.Name()); err != nil {
			return err
		}
	}

	// 6. NATS render service.
	svc := &renderService{
		runtime: rt,
		secret:  d.cfg.Security.RenderSecret,
		timeout: renderTimeout,
		logger:  d.logger.With().Str("component", "render").Logger(),
	}
	d.renderSub, err = svc.subscribe(ns.Conn())
	if err != nil {
		return fmt.Errorf("subscribe render: %w", err)
	}

	// 7. API server.
	d.apiServer = api.New(d.cfg.Server.Socket, rt, d.plugin, d.scripts, metrics, d.startedAt, d.logger)

	// 8. Site front end.
	if d.cfg.Web.Listen != "" {
		d.webServer = web.New(web.Config{
			Listen:   d.cfg.Web.Listen,
			SiteName: d.cfg.Web.SiteName,
			Username: d.cfg.Web.Username,
			Password: d.cfg.Web.Password,
		}, rt, ns.Conn(), d.logger)
	}
	return nil
}

// Stop signals the daemon to shut down. Safe to call from another goroutine.
func (d *Daemon) Stop() {
	close(d.stopCh)
}

// NATSClientURL returns the embedded NATS server's client URL.
func (d *Daemon) NATSClientURL() string {
	if d.nats == nil {
		return ""
	}
	return d.nats.ClientURL()
}

// NATSConnectOpts returns NATS connection options for in-process connections.
func (d *Daemon) NATSConnectOpts() []nats.Option {
	if d.nats == nil {
		return nil
	}
	return []nats.Option{nats.InProcessServer(d.nats.NATSServer())}
}

func (d *Daemon) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if d.apiServer != nil {
		if err := d.apiServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api shutdown: %w", err))
		}
	}
	if d.webServer != nil {
		if err := d.webServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("web shutdown: %w", err))
		}
	}
	if d.renderSub != nil {
		d.renderSub.Unsubscribe()
	}
	if d.cancel != nil {
		d.cancel()
	}
	if d.scripts != nil {
		d.scripts.Close()
	}
	if d.nats != nil {
		d.nats.Shutdown()
	}
	return errors.Join(errs...)
}
