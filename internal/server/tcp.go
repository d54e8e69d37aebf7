package server

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/centralka/station-service/internal/config"
	"github.com/centralka/station-service/internal/metrics"
	"github.com/centralka/station-service/internal/protocol"
	"github.com/centralka/station-service/internal/state"
)

// ackLine is written back to the device after every received line.
const ackLine = "OK\n"

// TCPServer accepts device connections and feeds parsed readings into the
// sensor state store. Each connection gets its own goroutine so a slow or
// stuck device cannot block the others.
type TCPServer struct {
	listener net.Listener
	config   *config.DeviceConfig
	logger   *slog.Logger
	store    *state.Store
	metrics  *metrics.Metrics

	// Concurrency management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	sem    chan struct{} // bounds concurrent device connections

	// Ingest counters
	linesReceived     uint64
	readingsStored    uint64
	greetingsReceived uint64
	linesUnrecognized uint64
	activeConnections int
	mu                sync.RWMutex
}

// NewTCPServer creates a new device listener instance
func NewTCPServer(cfg *config.DeviceConfig, logger *slog.Logger, store *state.Store, m *metrics.Metrics) *TCPServer {
	ctx, cancel := context.WithCancel(context.Background())

	return &TCPServer{
		config:  cfg,
		logger:  logger,
		store:   store,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		sem:     make(chan struct{}, cfg.MaxConnections),
	}
}

// Start binds the listening socket and launches the accept loop. A bind
// failure is returned to the caller; the process must not run without its
// ingestion path.
func (s *TCPServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.BindAddress, s.config.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener

	s.logger.Info("Device listener started",
		slog.String("address", listener.Addr().String()),
		slog.Duration("read_timeout", s.config.GetReadTimeoutDuration()),
		slog.Int("max_connections", s.config.MaxConnections),
	)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Addr returns the bound listener address. Only valid after Start.
func (s *TCPServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Stop closes the listener and waits for in-flight connection handlers to
// finish their current line or hit their read deadline.
func (s *TCPServer) Stop() error {
	s.logger.Info("Stopping device listener...")

	s.cancel()

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Warn("Error closing listener", slog.String("error", err.Error()))
		}
	}

	s.wg.Wait()

	stats := s.GetStatistics()
	s.logger.Info("Device listener stopped",
		slog.Uint64("lines_received", stats.LinesReceived),
		slog.Uint64("readings_stored", stats.ReadingsStored),
		slog.Uint64("lines_unrecognized", stats.LinesUnrecognized),
	)

	return nil
}

// acceptLoop accepts device connections until the listener closes. A single
// failed accept is logged and the loop continues.
func (s *TCPServer) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				s.logger.Info("Accept loop stopping")
				return
			default:
				s.logger.Error("Failed to accept connection", slog.String("error", err.Error()))
				continue
			}
		}

		select {
		case s.sem <- struct{}{}:
		default:
			s.metrics.RecordConnectionRejected()
			s.logger.Warn("Connection cap reached, rejecting device",
				slog.String("remote_addr", conn.RemoteAddr().String()),
				slog.Int("max_connections", s.config.MaxConnections),
			)
			conn.Close()
			continue
		}

		s.metrics.RecordConnectionAccepted()
		s.logger.Info("Device connected",
			slog.String("remote_addr", conn.RemoteAddr().String()),
		)

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

// handleConnection owns one device connection: it reads lines under a rolling
// inactivity deadline, stores extracted readings, and acknowledges every
// line. The socket is released on every exit path.
func (s *TCPServer) handleConnection(conn net.Conn) {
	remoteAddr := conn.RemoteAddr().String()
	startTime := time.Now()

	s.trackConnection(1)

	defer func() {
		conn.Close()
		<-s.sem
		s.trackConnection(-1)
		s.metrics.RecordConnectionClosed(time.Since(startTime).Seconds())
		s.wg.Done()

		s.logger.Info("Device disconnected",
			slog.String("remote_addr", remoteAddr),
			slog.Duration("duration", time.Since(startTime)),
		)
	}()

	scanner := bufio.NewScanner(conn)
	readTimeout := s.config.GetReadTimeoutDuration()

	for {
		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			s.logger.Error("Failed to set read deadline",
				slog.String("remote_addr", remoteAddr),
				slog.String("error", err.Error()),
			)
			return
		}

		if !scanner.Scan() {
			err := scanner.Err()
			switch {
			case err == nil:
				// Zero-length read: the peer closed the socket.
				s.logger.Info("Device closed connection", slog.String("remote_addr", remoteAddr))
			case isTimeout(err):
				s.metrics.RecordConnectionTimeout()
				s.logger.Warn("Device connection timed out",
					slog.String("remote_addr", remoteAddr),
					slog.Duration("read_timeout", readTimeout),
				)
			default:
				s.logger.Error("Device connection error",
					slog.String("remote_addr", remoteAddr),
					slog.String("error", err.Error()),
				)
			}
			return
		}

		line := strings.TrimSpace(scanner.Text())
		s.processLine(line, remoteAddr)

		// Every received line is acknowledged, reading or not.
		if _, err := conn.Write([]byte(ackLine)); err != nil {
			s.logger.Error("Failed to write ack",
				slog.String("remote_addr", remoteAddr),
				slog.String("error", err.Error()),
			)
			return
		}
	}
}

// processLine classifies one trimmed line and applies its effect. Parse
// outcomes never terminate the connection.
func (s *TCPServer) processLine(line, remoteAddr string) {
	s.mu.Lock()
	s.linesReceived++
	s.mu.Unlock()
	s.metrics.RecordLine()

	msg := protocol.Parse(line)

	switch msg.Kind {
	case protocol.KindReading:
		s.store.Set(msg.Temperature, msg.Humidity, time.Now())

		s.mu.Lock()
		s.readingsStored++
		s.mu.Unlock()
		s.metrics.RecordReadingStored()

		s.logger.Info("Reading stored",
			slog.String("remote_addr", remoteAddr),
			slog.String("temperature", msg.Temperature),
			slog.String("humidity", msg.Humidity),
		)

	case protocol.KindGreeting:
		s.mu.Lock()
		s.greetingsReceived++
		s.mu.Unlock()
		s.metrics.RecordGreeting()

		s.logger.Info("Device greeting",
			slog.String("remote_addr", remoteAddr),
			slog.String("line", line),
		)

	default:
		s.mu.Lock()
		s.linesUnrecognized++
		s.mu.Unlock()
		s.metrics.RecordUnrecognized()

		s.logger.Debug("Unrecognized device line",
			slog.String("remote_addr", remoteAddr),
			slog.String("line", line),
		)
	}
}

// trackConnection adjusts the live connection count and mirrors it into the
// Prometheus gauge.
func (s *TCPServer) trackConnection(delta int) {
	s.mu.Lock()
	s.activeConnections += delta
	count := s.activeConnections
	s.mu.Unlock()

	s.metrics.SetActiveConnections(count)
}

// GetStatistics returns current ingest statistics
func (s *TCPServer) GetStatistics() ListenerStatistics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return ListenerStatistics{
		LinesReceived:     s.linesReceived,
		ReadingsStored:    s.readingsStored,
		GreetingsReceived: s.greetingsReceived,
		LinesUnrecognized: s.linesUnrecognized,
		ActiveConnections: s.activeConnections,
	}
}

// ListenerStatistics represents device listener counters
type ListenerStatistics struct {
	LinesReceived     uint64 `json:"lines_received"`
	ReadingsStored    uint64 `json:"readings_stored"`
	GreetingsReceived uint64 `json:"greetings_received"`
	LinesUnrecognized uint64 `json:"lines_unrecognized"`
	ActiveConnections int    `json:"active_connections"`
}

// isTimeout reports whether err is a network timeout.
func isTimeout(err error) bool {
	netErr, ok := err.(net.Error)
	return ok && netErr.Timeout()
}
