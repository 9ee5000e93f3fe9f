package stubserver

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"time"

	commsserver "github.com/nats-io/nats-server/v2/server"
)

const embeddedLogPrefix = "stubserver:embedded"

// StartEmbeddedComms runs an in-process COMMS broker listening on the host
// and port of commsURL. The caller owns shutdown.
func StartEmbeddedComms(commsURL string) (*commsserver.Server, error) {
	u, err := url.Parse(commsURL)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid COMMS url %q: %w", embeddedLogPrefix, commsURL, err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return nil, fmt.Errorf("%s - COMMS url %q needs host:port: %w", embeddedLogPrefix, commsURL, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("%s - invalid port %q: %w", embeddedLogPrefix, portStr, err)
	}

	ns, err := commsserver.NewServer(&commsserver.Options{
		Host:   host,
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create broker: %w", embeddedLogPrefix, err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("%s - broker on %s did not become ready", embeddedLogPrefix, u.Host)
	}
	slog.Info(fmt.Sprintf("%s - Embedded COMMS broker listening on %s", embeddedLogPrefix, ns.ClientURL()))
	return ns, nil
}
