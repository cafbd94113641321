// Package httpapi exposes the daemon's HTTP surface: the webhook intake
// endpoint, the health probe, and Prometheus metrics.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/dreyhq/drey/internal/ingest"
)

const shutdownTimeout = 30 * time.Second

// headers the chat platform signs requests with.
const (
	headerTimestamp = "X-Request-Timestamp"
	headerSignature = "X-Request-Signature"
)

// Pinger reports backend connectivity for the health probe. Satisfied by
// *store.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the ingestion HTTP server.
type Server struct {
	addr    string
	router  *gin.Engine
	gateway *ingest.Gateway
	pinger  Pinger
	logger  *logrus.Entry
}

// NewServer builds the router and its routes. The metrics endpoint serves
// the given registry.
func NewServer(addr string, gateway *ingest.Gateway, pinger Pinger, registry *prometheus.Registry, logger *logrus.Entry) *Server {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		addr:    addr,
		router:  gin.New(),
		gateway: gateway,
		pinger:  pinger,
		logger:  logger,
	}

	s.router.Use(gin.Recovery())
	s.router.POST("/events/chat", s.handleEvents)
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return s
}

// Router exposes the gin engine for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// handleEvents is the webhook intake endpoint. The raw body is handed to the
// gateway untouched; signature verification needs the exact bytes the
// platform signed.
func (s *Server) handleEvents(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	ack, err := s.gateway.HandleWebhook(
		c.Request.Context(),
		body,
		c.GetHeader(headerTimestamp),
		c.GetHeader(headerSignature),
	)
	if err != nil {
		if errors.Is(err, ingest.ErrBadSignature) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		s.logger.WithError(err).Error("Webhook handling failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	if ack.Challenge != "" {
		c.JSON(http.StatusOK, gin.H{"challenge": ack.Challenge})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// handleHealth reports readiness. Unreachable Redis means the pipeline can
// neither dedup nor persist, so the probe fails.
func (s *Server) handleHealth(c *gin.Context) {
	if err := s.pinger.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.addr).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
