package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/internal/presentation/tui"
	httpAdapter "github.com/aretw0/lattice/pkg/adapters/http"
	redisAdapter "github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/adapters/stdio"
	"github.com/aretw0/lattice/pkg/adapters/websocket"
	"github.com/aretw0/lattice/pkg/dispatch"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/session"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve diagram sessions",
	Long: `Starts the lattice server. With the websocket transport every connection to /ws is
one session. With the redis transport the server owns one session (--session) over
Redis Pub/Sub. With the stdio transport one session runs over stdin/stdout as JSON lines.
/healthz, /metrics and /sessions are served on the HTTP address for websocket and redis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if kind, _ := cmd.Flags().GetString("transport"); kind != "" {
			cfg.Transport.Kind = kind
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		sessionID, _ := cmd.Flags().GetString("session")

		logger := newLogger(cfg)
		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet && cfg.Transport.Kind != config.TransportStdio {
			tui.PrintBanner(cmd.ErrOrStderr())
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := newServer(cfg, logger, prometheus.DefaultRegisterer)
		defer srv.close()

		switch cfg.Transport.Kind {
		case config.TransportStdio:
			return srv.serveStdio(ctx, sessionID)
		case config.TransportRedis:
			return srv.serveRedis(ctx, sessionID, prometheus.DefaultGatherer)
		default:
			return srv.serveHTTP(ctx, nil, prometheus.DefaultGatherer)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("transport", "", "Transport override (websocket, redis, stdio)")
	serveCmd.Flags().String("addr", "", "HTTP listen address override")
	serveCmd.Flags().String("session", "", "Session ID for the redis and stdio transports (generated when empty)")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}

// server holds what every transport mode shares.
type server struct {
	cfg      *config.Config
	logger   *slog.Logger
	codec    *domain.Codec
	sessions *session.Manager
	redis    *backend.Client
}

func newServer(cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) *server {
	metrics := observability.NewMetrics(reg)
	hooks := observability.Chain(observability.LoggingHooks(logger), metrics.Hooks())

	s := &server{
		cfg:    cfg,
		logger: logger,
		codec:  lattice.NewCodec(domain.WithMaxEnvelopeBytes(cfg.MaxEnvelopeBytes)),
	}

	mgrOpts := []session.ManagerOption{
		session.WithLogger(logger),
		session.WithLockTTL(time.Duration(cfg.Session.LockTTL)),
		session.WithSessionOptions(
			session.WithHooks(hooks),
			session.WithRemoteKinds(cfg.RemoteKinds...),
			session.WithDispatchOptions(
				dispatch.WithTimeout(time.Duration(cfg.RequestTimeout)),
				dispatch.WithQueueSize(cfg.QueueSize),
			),
		),
	}
	if cfg.Transport.Kind == config.TransportRedis {
		s.redis = backend.NewClient(&backend.Options{
			Addr:     cfg.Transport.Redis.Addr,
			Password: cfg.Transport.Redis.Password,
			DB:       cfg.Transport.Redis.DB,
		})
		mgrOpts = append(mgrOpts, session.WithLocker(redisAdapter.NewLocker(s.redis, cfg.Transport.Redis.Prefix)))
	}
	s.sessions = session.NewManager(mgrOpts...)
	return s
}

func (s *server) close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.sessions.Shutdown(ctx); err != nil {
		s.logger.Warn("Session shutdown incomplete", "err", err)
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Warn("Redis client close failed", "err", err)
		}
	}
}

// serveHTTP serves the HTTP surface until ctx is done or the listener fails.
// extra, when set, runs alongside and its failure also stops the server.
func (s *server) serveHTTP(ctx context.Context, extra <-chan error, gatherer prometheus.Gatherer) error {
	handler := httpAdapter.NewHandler(s.sessions,
		httpAdapter.WithLogger(s.logger),
		httpAdapter.WithGatherer(gatherer),
		httpAdapter.WithTransportOptions(websocket.WithCodec(s.codec)),
	)
	srv := &http.Server{
		Addr:              s.cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("Starting Lattice Server", "addr", srv.Addr, "transport", s.cfg.Transport.Kind)
		serverErrors <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case runErr = <-extra:
		s.logger.Info("Start shutdown...", "reason", "session ended")
	case <-ctx.Done():
		s.logger.Info("Start shutdown...", "reason", context.Cause(ctx))
	}

	// Give outstanding requests a deadline for completion.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
		if err := srv.Close(); err != nil {
			s.logger.Error("Error killing server", "err", err)
		}
	}
	s.logger.Info("Lattice Server stopped gracefully")
	return runErr
}

// serveRedis runs one session over Redis Pub/Sub next to the HTTP surface.
func (s *server) serveRedis(ctx context.Context, sessionID string, gatherer prometheus.Gatherer) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis %s: %w", s.cfg.Transport.Redis.Addr, err)
	}
	sess, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		return err
	}
	t, err := redisAdapter.NewServerTransport(ctx, s.redis, s.cfg.Transport.Redis.Prefix, sess.ID(), redisAdapter.WithCodec(s.codec))
	if err != nil {
		return err
	}
	toClient, toServer := redisAdapter.Channels(s.cfg.Transport.Redis.Prefix, sess.ID())
	s.logger.Info("Session listening on Redis", "session_id", sess.ID(), "publish", toClient, "subscribe", toServer)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- s.runSession(runCtx, sess, t)
	}()
	err = s.serveHTTP(ctx, done, gatherer)
	cancel()
	return err
}

// serveStdio runs one session over stdin/stdout. Logs stay on stderr.
func (s *server) serveStdio(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.Open(ctx, sessionID)
	if err != nil {
		return err
	}
	t := stdio.New(os.Stdin, os.Stdout, stdio.WithCodec(s.codec))
	return s.runSession(ctx, sess, t)
}

func (s *server) runSession(ctx context.Context, sess *session.Session, t ports.Transport) error {
	go func() {
		if _, err := sess.LoadModel(ctx); err != nil && !errors.Is(err, domain.ErrDispatcherClosed) {
			s.logger.Warn("Initial model request failed", "session_id", sess.ID(), "err", err)
		}
	}()
	err := sess.Run(ctx, t)
	s.logger.Info("Session ended", "session_id", sess.ID())
	return err
}
