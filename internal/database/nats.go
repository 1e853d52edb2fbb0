package database

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// ConnectNATS dials the event bus. An empty url disables publishing and
// yields a nil connection.
func ConnectNATS(url, clientName string) (*nats.Conn, error) {
	if url == "" {
		return nil, nil
	}

	conn, err := nats.Connect(url,
		nats.Name(clientName),
		nats.Timeout(3*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to reach nats: %w", err)
	}

	return conn, nil
}
