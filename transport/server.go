// Package transport implements the dual-connection RPC surface (T): one
// accept loop per listener with one frame-loop goroutine per connection,
// connection admission control, length-prefixed and HTTP/JSON fallback framing, and
// dispatch into the command manager.
package transport

import (
	"net"
	"regexp"
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/shmocz/ra2yrcpp-sub000/command"
	"github.com/shmocz/ra2yrcpp-sub000/internal/config"
	"github.com/shmocz/ra2yrcpp-sub000/internal/obslog"
)

// Server owns the listeners and connection-admission policy. Each
// connection's frame loop runs on its own goroutine performing blocking
// I/O (Go's net package gives no portable way to multiplex sockets
// without a dedicated poller goroutine per listener anyway); all shared
// mutation goes through the command.Manager, which already serializes
// itself, so the per-connection goroutines never need a shared lock of
// their own beyond the admission counters below.
type Server struct {
	log     *obslog.Logger
	manager *command.Manager

	allowedHost *regexp.Regexp
	limiter     *catrate.Limiter
	maxClients  int

	flushMaxCount       int
	flushPartialTimeout time.Duration

	mu           sync.Mutex
	clientCount  int
	listeners    []net.Listener
	shuttingDown bool
	shutdownOnce sync.Once
	done         chan struct{}
}

// NewServer constructs a Server bound to manager, validating
// cfg.AllowedHostRegex eagerly so a typo surfaces at startup, not on the
// first connection attempt.
func NewServer(cfg config.Config, manager *command.Manager, log *obslog.Logger) (*Server, error) {
	var allowed *regexp.Regexp
	if cfg.AllowedHostRegex != "" {
		re, err := regexp.Compile(cfg.AllowedHostRegex)
		if err != nil {
			return nil, err
		}
		allowed = re
	}

	return &Server{
		log:                 log,
		manager:             manager,
		allowedHost:         allowed,
		limiter:             newAdmissionLimiter(cfg.AdmitRate, cfg.AdmitBurst),
		maxClients:          cfg.MaxClients,
		flushMaxCount:       cfg.FlushMaxCount,
		flushPartialTimeout: cfg.FlushPartialTimeout,
		done:                make(chan struct{}),
	}, nil
}

// Serve listens on addr and accepts connections until Stop is called or
// the listener fails. httpFallback controls whether a connection whose
// first bytes look like an HTTP request line is served the JSON fallback
// framing instead of length-prefixed binary framing.
func (s *Server) Serve(addr string, httpFallback bool) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.listeners = append(s.listeners, ln)
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.done:
				return nil
			default:
				return err
			}
		}
		if !s.admit(conn) {
			conn.Close()
			continue
		}
		go s.handleConn(conn, httpFallback)
	}
}

// admit enforces the allowed-host regex, the sliding-window per-host
// admission limiter, and the configured MaxClients ceiling, incrementing
// the live connection count on success.
func (s *Server) admit(conn net.Conn) bool {
	host := remoteHost(conn)

	if s.allowedHost != nil && !s.allowedHost.MatchString(host) {
		if s.log != nil {
			s.log.Warn().Str("host", host).Log("transport: connection rejected by allowed-host filter")
		}
		return false
	}

	if s.limiter != nil {
		if _, ok := s.limiter.Allow(host); !ok {
			if s.log != nil {
				s.log.Warn().Str("host", host).Log("transport: connection rejected by admission limiter")
			}
			return false
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxClients > 0 && s.clientCount >= s.maxClients {
		if s.log != nil {
			s.log.Warn().Int("max_clients", s.maxClients).Log("transport: connection rejected, at capacity")
		}
		return false
	}
	s.clientCount++
	return true
}

func (s *Server) releaseClient() {
	s.mu.Lock()
	s.clientCount--
	s.mu.Unlock()
}

// beginShutdown closes every listener exactly once, unblocking Serve's
// Accept calls so it can return after the in-flight SHUTDOWN response is
// written.
func (s *Server) beginShutdown() {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		s.shuttingDown = true
		close(s.done)
		listeners := s.listeners
		s.mu.Unlock()
		for _, ln := range listeners {
			_ = ln.Close()
		}
	})
}

// Stop closes every listener, equivalent to what a received SHUTDOWN
// command triggers, for callers that need to tear the transport down
// without going through the wire protocol (e.g. host-process exit).
func (s *Server) Stop() {
	s.beginShutdown()
}
