// Package server implements the sub-document daemon's TCP front-end:
// accepting connections, framing requests with pkg/binproto, validating
// them with pkg/validator, and dispatching to pkg/subdocexec /
// pkg/multipath against the bucket a connection is bound to.
//
// Architecture:
//   - TCP server with one goroutine per connection (spec.md §5's
//     "single-threaded cooperative state machine" reinterpreted as one
//     goroutine per connection rather than a worker-thread pool with
//     explicit continuations — see DESIGN.md)
//   - Binary protocol request/response framing via pkg/binproto
//   - Structural validation via pkg/validator before any engine call
//   - Sub-document execution via pkg/subdocexec (single-path) and
//     pkg/multipath (multi-path), against the bucket registry's engines
//   - Graceful shutdown support
//
// Example usage:
//
//	srv := server.New(config.Load())
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/cachemir/cachemir/pkg/binproto"
	"github.com/cachemir/cachemir/pkg/bucket"
	"github.com/cachemir/cachemir/pkg/config"
	"github.com/cachemir/cachemir/pkg/docbuf"
	"github.com/cachemir/cachemir/pkg/engine"
	"github.com/cachemir/cachemir/pkg/ioctl"
	"github.com/cachemir/cachemir/pkg/metrics"
	"github.com/cachemir/cachemir/pkg/topkeys"
	"github.com/cachemir/cachemir/pkg/validator"
)

// DefaultBucket is the bucket every connection starts bound to, mirroring
// the original's "default" bucket convention.
const DefaultBucket = "default"

// Server is the sub-document daemon's TCP front-end.
type Server struct {
	cfg      *config.Config
	registry *bucket.Registry
	topkeys  *topkeys.Table
	ioctl    *ioctl.Surface
	limits   validator.Limits

	listener net.Listener
}

// New creates a Server configured per cfg, with a single default bucket
// backed by an in-memory reference engine.
func New(cfg *config.Config) *Server {
	registry := bucket.NewRegistry(cfg.MaxBuckets)
	if err := registry.Create(DefaultBucket, engine.NewMemEngine()); err != nil {
		log.Panicf("server: failed to create default bucket: %v", err)
	}

	s := &Server{
		cfg:      cfg,
		registry: registry,
		topkeys:  topkeys.New(),
		limits: validator.Limits{
			MaxPathLen:    cfg.MaxSubdocPathLen,
			MaxValueLen:   cfg.MaxSubdocValueLen,
			MaxMultiSpecs: cfg.MaxSubdocPaths,
		},
	}
	s.ioctl = ioctl.NewSurface(
		func() error { return nil },
		func(aggressive bool) error { return nil },
	)
	metrics.ActiveBuckets.Set(1)
	return s
}

// Start begins listening for TCP (or TLS, if configured) connections and
// processing commands. Blocks until the listener is closed.
func (s *Server) Start() error {
	addr := s.cfg.Address()
	lc := net.ListenConfig{}
	listener, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return fmt.Errorf("server: failed to listen on %s: %w", addr, err)
	}

	if s.cfg.TLSEnabled() {
		cert, err := tls.LoadX509KeyPair(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("server: failed to load TLS keypair: %w", err)
		}
		listener = tls.NewListener(listener, &tls.Config{Certificates: []tls.Certificate{cert}})
	}

	s.listener = listener
	log.Printf("subdocd listening on %s (tls=%v)", addr, s.cfg.TLSEnabled())

	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Printf("server: accept error: %v", err)
			return err
		}
		go s.handleConnection(conn)
	}
}

// Stop gracefully shuts down the server by closing the TCP listener.
func (s *Server) Stop() error {
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// handleConnection owns one client's entire lifetime: framing, dispatch,
// and response, strictly in receive order (spec.md §5 "Ordering").
func (s *Server) handleConnection(conn net.Conn) {
	connID := bucket.NewConnectionID()
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("server: conn=%s close error: %v", connID, err)
		}
	}()

	metrics.ActiveConnections.Inc()
	defer metrics.ActiveConnections.Dec()

	docbufConn, err := docbuf.NewConnection(s.cfg.DynamicBufferMax)
	if err != nil {
		log.Printf("server: conn=%s failed to create docbuf connection: %v", connID, err)
		return
	}
	defer docbufConn.Close()

	binding, err := s.registry.Select(DefaultBucket)
	if err != nil {
		log.Printf("server: conn=%s failed to select default bucket: %v", connID, err)
		return
	}

	d := &dispatcher{
		srv:        s,
		connID:     connID,
		binding:    binding,
		bucketName: DefaultBucket,
		docbuf:     docbufConn,
	}

	readTimeout := time.Duration(s.cfg.ReadTimeout) * time.Second
	writeTimeout := time.Duration(s.cfg.WriteTimeout) * time.Second

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			log.Printf("server: conn=%s set read deadline: %v", connID, err)
			return
		}
		req, err := binproto.ReadPacket(conn)
		if err != nil {
			return
		}

		resp := d.dispatch(req)

		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			log.Printf("server: conn=%s set write deadline: %v", connID, err)
			return
		}
		resp.Header.Opaque = req.Header.Opaque
		if err := binproto.WritePacket(conn, resp); err != nil {
			log.Printf("server: conn=%s write response: %v", connID, err)
			return
		}
	}
}
