package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/TaIos/mod-tls/pkg/config"
	"github.com/TaIos/mod-tls/pkg/conn"
	"github.com/TaIos/mod-tls/pkg/engine"
	"github.com/TaIos/mod-tls/pkg/gate"
	"github.com/TaIos/mod-tls/pkg/policy"
	"github.com/TaIos/mod-tls/pkg/telemetry/health"
	"github.com/TaIos/mod-tls/pkg/telemetry/logging"
	"github.com/TaIos/mod-tls/pkg/telemetry/metrics"
)

// ConnHandler receives a connection once its TLS handshake completed.
// The handler owns the net.Conn from this point on.
type ConnHandler func(c *conn.Conn, nc net.Conn)

const (
	handshakeTimeout = 30 * time.Second
	readBufferSize   = 16 * 1024
)

// Server accepts TCP connections on the configured listeners and drives
// each through the TLS handshake orchestration. Established connections
// are handed to the ConnHandler; failed ones are torn down here.
type Server struct {
	cfg       *config.Config
	registry  *policy.Registry
	orch      *conn.Orchestrator
	layer     *Layer
	gate      *gate.Gate
	collector *metrics.Collector
	logger    *logging.Logger

	// Handler receives established connections. Optional; without one
	// the server completes handshakes and closes.
	Handler ConnHandler

	mu        sync.Mutex
	listeners []net.Listener
	metricSrv *http.Server
	running   bool

	shutdownChan chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// New compiles the registry from the configuration and wires the
// orchestration stack: server layer, certificate selection, admission
// gate, and metric collection. Any compilation failure aborts startup.
func New(cfg *config.Config, eng engine.Engine, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	collector := metrics.NewCollector(cfg.Metrics, nil)
	layer := NewLayer(nil, logger)

	// the selection callback re-enters the orchestrator, which in turn
	// needs the compiled registry; the indirection breaks the cycle
	var orch *conn.Orchestrator
	reg, err := policy.Initialize(cfg, policy.Deps{
		Engine:       eng,
		HelloCapture: conn.CaptureHello,
		SelectKey: func(userdata any, hello *engine.ClientHello) *engine.CertifiedKey {
			return orch.SelectCertifiedKey(userdata, hello)
		},
		Contributor: NewFileContributor(cfg.CertificateDir),
		Logger:      logger,
		Metrics:     collector,
	})
	if err != nil {
		return nil, err
	}
	orch = conn.NewOrchestrator(reg, layer, logger, collector)

	return &Server{
		cfg:          cfg,
		registry:     reg,
		orch:         orch,
		layer:        layer,
		gate:         gate.New(reg, collector),
		collector:    collector,
		logger:       logger,
		shutdownChan: make(chan struct{}),
	}, nil
}

// Registry returns the compiled global registry.
func (s *Server) Registry() *policy.Registry { return s.registry }

// Layer returns the server layer, for registering challenge solvers.
func (s *Server) Layer() *Layer { return s.layer }

// Collector returns the metric collector shared by the server's
// collaborators.
func (s *Server) Collector() *metrics.Collector { return s.collector }

// Admit decides request admission on an established connection. The
// host is the vhost the request addresses; empty means the
// connection's own server.
func (s *Server) Admit(c *conn.Conn, host string) gate.Decision {
	var target *policy.ServerPolicy
	if host != "" {
		target = s.registry.MatchServer(host)
		if target == nil {
			target = s.registry.Default
		}
	}
	return s.gate.Check(c, target)
}

// Start opens the configured listeners and blocks until the context is
// cancelled, a shutdown signal arrives, or a listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	errChan := make(chan error, len(s.cfg.Listen)+1)

	for _, addr := range s.cfg.Listen {
		ln, err := net.Listen("tcp", normalizeListenAddr(addr))
		if err != nil {
			s.closeListeners()
			return fmt.Errorf("cannot listen on %s: %w", addr, err)
		}
		s.mu.Lock()
		s.listeners = append(s.listeners, ln)
		s.mu.Unlock()

		s.logger.Info("listening", "address", ln.Addr().String(),
			"vhosts", s.registry.EnabledCount())

		s.wg.Add(1)
		go func(ln net.Listener) {
			defer s.wg.Done()
			if err := s.acceptLoop(ln); err != nil {
				errChan <- err
			}
		}(ln)
	}

	if err := s.startMetricsEndpoint(errChan); err != nil {
		s.closeListeners()
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down")
		return s.Shutdown()
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown()
	case err := <-errChan:
		s.Shutdown()
		return err
	case <-s.shutdownChan:
		return nil
	}
}

// Shutdown closes the listeners, waits for in-flight handshakes, and
// releases the registry. Idempotent.
func (s *Server) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.shutdownChan)
		s.closeListeners()
		if s.metricSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.metricSrv.Shutdown(ctx)
			cancel()
		}
		s.wg.Wait()
		err = s.registry.Close()
		s.logger.Info("server stopped")
	})
	return err
}

func (s *Server) acceptLoop(ln net.Listener) error {
	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdownChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(nc)
		}()
	}
}

// handleConn drives one connection through the handshake. The loop
// reads client bytes, feeds them to the orchestrator, and writes back
// whatever the engine produced, until the connection is established or
// disabled.
func (s *Server) handleConn(nc net.Conn) {
	c := s.orch.NewConn()
	defer s.layer.Forget(c.ID())
	defer s.orch.Teardown(c)

	if err := s.orch.Start(c); err != nil {
		nc.Close()
		return
	}
	if c.State() == conn.StateDisabled {
		nc.Close()
		return
	}

	deadline := time.Now().Add(handshakeTimeout)
	buf := make([]byte, readBufferSize)
	for c.State() != conn.StatePostHandshake {
		nc.SetReadDeadline(deadline)
		n, err := nc.Read(buf)
		if n > 0 {
			out, ferr := s.orch.Feed(c, buf[:n])
			if len(out) > 0 {
				if _, werr := nc.Write(out); werr != nil {
					nc.Close()
					return
				}
			}
			if ferr != nil {
				nc.Close()
				return
			}
		}
		if err != nil {
			nc.Close()
			return
		}
	}
	nc.SetReadDeadline(time.Time{})

	if s.Handler != nil {
		s.Handler(c, nc)
		return
	}
	nc.Close()
}

func (s *Server) startMetricsEndpoint(errChan chan<- error) error {
	if !s.cfg.Metrics.Enabled || s.cfg.Metrics.Address == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.collector.Handler())

	checker := health.NewChecker(0)
	checker.Register("certificates", s.probeCertificates)
	checker.Register("session_cache", s.probeSessionCache)
	mux.HandleFunc("/healthz", checker.LivenessHandler())
	mux.HandleFunc("/readyz", checker.ReadinessHandler())

	s.metricSrv = &http.Server{Addr: s.cfg.Metrics.Address, Handler: mux}

	ln, err := net.Listen("tcp", s.cfg.Metrics.Address)
	if err != nil {
		return fmt.Errorf("cannot listen on metrics address %s: %w", s.cfg.Metrics.Address, err)
	}
	s.logger.Info("metrics endpoint listening", "address", ln.Addr().String())
	go func() {
		if err := s.metricSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	return nil
}

// probeCertificates fails when a loaded certificate has already
// expired.
func (s *Server) probeCertificates(ctx context.Context) error {
	now := time.Now()
	for _, key := range s.registry.Certs.Keys() {
		if key.Leaf != nil && now.After(key.Leaf.NotAfter) {
			return fmt.Errorf("certificate %s expired %s", key.Leaf.Subject.CommonName, key.Leaf.NotAfter.Format(time.RFC3339))
		}
	}
	return nil
}

// probeSessionCache verifies the cache accepts writes. Disabled caches
// are healthy.
func (s *Server) probeSessionCache(ctx context.Context) error {
	cache := s.registry.SessionCache
	if cache == nil {
		return nil
	}
	const probeKey = "health-probe"
	if err := cache.Put(probeKey, []byte{1}); err != nil {
		return fmt.Errorf("session cache write: %w", err)
	}
	cache.Remove(probeKey)
	return nil
}

func (s *Server) closeListeners() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ln := range s.listeners {
		ln.Close()
	}
	s.listeners = nil
}

// normalizeListenAddr turns the config notation ("*:443", "443") into
// a net.Listen address.
func normalizeListenAddr(addr string) string {
	host, port, err := config.SplitListenAddr(addr)
	if err != nil {
		return addr
	}
	if host == "" {
		return ":" + port
	}
	return net.JoinHostPort(host, port)
}
