// Command devicesim pretends to be the sensor device: it dials the station's
// TCP port, greets, then sends alternating colon-format and JSON readings,
// printing every acknowledgment. Useful for exercising the ingest path
// end to end without hardware.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "station device port to dial")
	interval := flag.Duration("interval", 3*time.Second, "delay between readings")
	count := flag.Int("count", 0, "number of readings to send (0 = forever)")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)

	send := func(line string) error {
		if _, err := fmt.Fprintf(conn, "%s\n", line); err != nil {
			return fmt.Errorf("write failed: %w", err)
		}

		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		ack, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("no ack: %w", err)
		}

		fmt.Printf("-> %-40s <- %s", line, ack)
		return nil
	}

	if err := send("HELLO DEVICESIM v1.0"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for i := 0; *count == 0 || i < *count; i++ {
		temp := 18.0 + rand.Float64()*8
		hum := 35.0 + rand.Float64()*30

		var line string
		if i%2 == 0 {
			line = fmt.Sprintf("TEMP:%.1f:HUM:%.0f", temp, hum)
		} else {
			line = fmt.Sprintf(`{"temp": %.1f, "hum": %.0f}`, temp, hum)
		}

		if err := send(line); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		time.Sleep(*interval)
	}
}
