// Package natsserver embeds a NATS server with JetStream. fluxdnad uses it
// for render requests and for the retained lifecycle event stream.
package natsserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// Config holds settings for the embedded NATS server.
type Config struct {
	StoreDir string
	// Host empty keeps the server in-process only.
	Host  string
	Port  int
	Token string
	// Stream, when set, is created on start and retains the listed subjects.
	Stream   string
	Subjects []string
	MaxAge   time.Duration
}

// Server wraps an embedded NATS server and its client connection.
type Server struct {
	ns     *server.Server
	nc     *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
	logger zerolog.Logger
}

// New creates and starts the embedded NATS server.
func New(cfg Config, logger zerolog.Logger) (*Server, error) {
	opts := &server.Options{
		JetStream:  true,
		StoreDir:   cfg.StoreDir,
		DontListen: cfg.Host == "",
		Host:       cfg.Host,
		Port:       cfg.Port,
		NoLog:      true,
		NoSigs:     true,
	}
	if cfg.Token != "" {
		opts.Authorization = cfg.Token
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("nats server create: %w", err)
	}
	ns.SetLoggerV2(newZerologAdapter(logger), false, false, false)

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("nats server failed to become ready")
	}

	var connectOpts []nats.Option
	if opts.DontListen {
		connectOpts = append(connectOpts, nats.InProcessServer(ns))
	}
	if cfg.Token != "" {
		connectOpts = append(connectOpts, nats.Token(cfg.Token))
	}
	nc, err := nats.Connect(ns.ClientURL(), connectOpts...)
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		ns.Shutdown()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	s := &Server{ns: ns, nc: nc, js: js, logger: logger.With().Str("component", "nats").Logger()}
	if cfg.Stream != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.stream, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     cfg.Stream,
			Subjects: cfg.Subjects,
			MaxAge:   cfg.MaxAge,
			Storage:  jetstream.FileStorage,
		})
		if err != nil {
			nc.Close()
			ns.Shutdown()
			return nil, fmt.Errorf("create stream %s: %w", cfg.Stream, err)
		}
	}

	s.logger.Info().Str("client_url", ns.ClientURL()).Str("stream", cfg.Stream).Msg("embedded NATS started")
	return s, nil
}

// Conn returns the internal NATS client connection.
func (s *Server) Conn() *nats.Conn { return s.nc }

// JetStream returns the JetStream handle.
func (s *Server) JetStream() jetstream.JetStream { return s.js }

// NATSServer returns the raw server for InProcessServer connections.
func (s *Server) NATSServer() *server.Server { return s.ns }

// ClientURL returns the NATS client connection URL.
func (s *Server) ClientURL() string { return s.ns.ClientURL() }

// Publish stores data on subject through JetStream and waits for the ack.
func (s *Server) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := s.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// StoredMessages returns how many messages the configured stream holds. It
// is zero when no stream is configured.
func (s *Server) StoredMessages(ctx context.Context) (uint64, error) {
	if s.stream == nil {
		return 0, nil
	}
	info, err := s.stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

// Shutdown drains the client connection and stops the server.
func (s *Server) Shutdown() {
	s.logger.Info().Msg("shutting down embedded NATS")
	s.nc.Drain()
	s.ns.Shutdown()
	s.ns.WaitForShutdown()
}
