// Package httpgate serves the relay over HTTP: binary websocket links,
// prometheus metrics and a health check.
package httpgate

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cyberinferno/galaxy-relay/logger"
	"github.com/cyberinferno/galaxy-relay/tcpserver"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"nhooyr.io/websocket"
)

// Adopter serves an already connected link. *tcpserver.TCPServer satisfies it.
type Adopter interface {
	Adopt(conn net.Conn) *tcpserver.Peer
}

// Config holds the HTTP listener settings.
type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	// OriginPatterns lists extra origins allowed to open websockets.
	OriginPatterns []string
}

// DefaultConfig returns a Config listening on addr.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:              addr,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
	}
}

// Gateway routes HTTP requests to the relay.
type Gateway struct {
	cfg     Config
	log     logger.Logger
	adopter Adopter
	metrics http.Handler
}

// New creates a Gateway.
//
// Parameters:
//   - cfg: Listener settings
//   - adopter: Takes over each upgraded websocket
//   - metrics: Handler mounted at /metrics; nil leaves it unmounted
//   - log: Logger for upgrade failures and lifecycle
//
// Returns:
//   - A new *Gateway
func New(cfg Config, adopter Adopter, metrics http.Handler, log logger.Logger) *Gateway {
	return &Gateway{cfg: cfg, log: log, adopter: adopter, metrics: metrics}
}

// Routes returns the router.
func (g *Gateway) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthz)
	r.Get("/ws", g.serveWS)
	if g.metrics != nil {
		r.Method(http.MethodGet, "/metrics", g.metrics)
	}

	return r
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (g *Gateway) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              g.cfg.Addr,
		Handler:           g.Routes(),
		ReadHeaderTimeout: g.cfg.ReadHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		g.log.Info("http gateway listening", logger.Field{Key: "addr", Value: g.cfg.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), g.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// serveWS upgrades the request and hands the binary stream to the relay
// as a plain connection carrying the same frames as TCP.
func (g *Gateway) serveWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.cfg.OriginPatterns,
	})
	if err != nil {
		g.log.Warn("websocket upgrade failed", logger.Err(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	peer := g.adopter.Adopt(websocket.NetConn(ctx, c, websocket.MessageBinary))
	<-peer.Done()
}
