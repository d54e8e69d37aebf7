package server

import (
	"bufio"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/centralka/station-service/internal/config"
	"github.com/centralka/station-service/internal/metrics"
	"github.com/centralka/station-service/internal/protocol"
	"github.com/centralka/station-service/internal/state"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startTestTCPServer(t *testing.T, maxConnections int) (*TCPServer, *state.Store) {
	t.Helper()

	cfg := &config.DeviceConfig{
		Port:           0, // ephemeral port for tests
		BindAddress:    "127.0.0.1",
		ReadTimeout:    5,
		MaxConnections: maxConnections,
	}

	store := state.NewStore()
	m := metrics.NewMetrics(prometheus.NewRegistry())
	srv := NewTCPServer(cfg, testLogger(), store, m)

	if err := srv.Start(); err != nil {
		t.Fatalf("Failed to start TCP server: %v", err)
	}
	t.Cleanup(func() { srv.Stop() })

	return srv, store
}

// sendLine writes one line and reads the acknowledgment.
func sendLine(t *testing.T, conn net.Conn, reader *bufio.Reader, line string) string {
	t.Helper()

	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("Failed to write line: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	ack, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("Failed to read ack: %v", err)
	}

	return ack
}

func TestConnectionStoresReading(t *testing.T) {
	srv, store := startTestTCPServer(t, 4)

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	if ack := sendLine(t, conn, reader, "TEMP:23.5:HUM:45"); ack != "OK\n" {
		t.Errorf("Expected ack 'OK', got %q", ack)
	}

	reading := store.Snapshot()
	if reading.Temperature != "23.5" || reading.Humidity != "45" {
		t.Errorf("Expected 23.5/45, got %s/%s", reading.Temperature, reading.Humidity)
	}
	if reading.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to be set")
	}
}

func TestEveryLineIsAcknowledged(t *testing.T) {
	srv, store := startTestTCPServer(t, 4)

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	lines := []string{
		"HELLO ARDUINO",
		"DHT22 init done",
		`{"temp": 21.1, "hum": 50}`,
		"TEMP:HUM:1",
	}

	for _, line := range lines {
		if ack := sendLine(t, conn, reader, line); ack != "OK\n" {
			t.Errorf("Line %q: expected ack 'OK', got %q", line, ack)
		}
	}

	// Only the JSON line carried a reading.
	reading := store.Snapshot()
	if reading.Temperature != "21.1" || reading.Humidity != "50" {
		t.Errorf("Expected 21.1/50, got %s/%s", reading.Temperature, reading.Humidity)
	}

	stats := srv.GetStatistics()
	if stats.LinesReceived != uint64(len(lines)) {
		t.Errorf("Expected %d lines received, got %d", len(lines), stats.LinesReceived)
	}
	if stats.ReadingsStored != 1 {
		t.Errorf("Expected 1 reading stored, got %d", stats.ReadingsStored)
	}
	if stats.GreetingsReceived != 1 {
		t.Errorf("Expected 1 greeting, got %d", stats.GreetingsReceived)
	}
	if stats.LinesUnrecognized != 2 {
		t.Errorf("Expected 2 unrecognized lines, got %d", stats.LinesUnrecognized)
	}
}

func TestGreetingDoesNotOverwriteReading(t *testing.T) {
	srv, store := startTestTCPServer(t, 4)

	connA, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer connA.Close()
	readerA := bufio.NewReader(connA)

	connB, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer connB.Close()
	readerB := bufio.NewReader(connB)

	sendLine(t, connA, readerA, "TEMP:19.2:HUM:61")
	sendLine(t, connB, readerB, "HELLO")
	sendLine(t, connA, readerA, "HELLO AGAIN")

	reading := store.Snapshot()
	if reading.Temperature != "19.2" || reading.Humidity != "61" {
		t.Errorf("Greeting overwrote reading: got %s/%s", reading.Temperature, reading.Humidity)
	}
}

func TestUnrecognizedLineLeavesStateUnchanged(t *testing.T) {
	srv, store := startTestTCPServer(t, 4)

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	sendLine(t, conn, reader, "garbage with no shape")

	reading := store.Snapshot()
	if reading.Temperature != protocol.ValueUnknown || reading.Humidity != protocol.ValueUnknown {
		t.Errorf("Expected sentinels, got %s/%s", reading.Temperature, reading.Humidity)
	}
	if !reading.UpdatedAt.IsZero() {
		t.Error("Expected UpdatedAt to stay zero")
	}
}

func TestConnectionCapRejectsExcess(t *testing.T) {
	srv, _ := startTestTCPServer(t, 1)

	first, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer first.Close()
	firstReader := bufio.NewReader(first)

	// The handler for the first connection holds the only slot.
	sendLine(t, first, firstReader, "HELLO")

	second, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer second.Close()

	// The server closes the excess connection without acknowledging anything.
	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 8)
	if _, err := second.Read(buf); err == nil {
		t.Error("Expected excess connection to be closed by the server")
	}
}

func TestPeerCloseReleasesSlot(t *testing.T) {
	srv, _ := startTestTCPServer(t, 1)

	first, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	firstReader := bufio.NewReader(first)
	sendLine(t, first, firstReader, "HELLO")
	first.Close()

	// The slot frees once the handler observes the close; poll briefly.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if srv.GetStatistics().ActiveConnections == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	second, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer second.Close()
	secondReader := bufio.NewReader(second)

	if ack := sendLine(t, second, secondReader, "HELLO"); ack != "OK\n" {
		t.Errorf("Expected freed slot to accept a new device, got %q", ack)
	}
}
