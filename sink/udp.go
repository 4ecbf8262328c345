package sink

import (
	"net"

	"github.com/pkg/errors"

	"github.com/jeffrom/syslogger/config"
	"github.com/jeffrom/syslogger/internal"
)

// UDPTransport sends one datagram per message with no connection state and no
// framing: packet boundaries are already message boundaries. A per-message
// send failure is reported to the diagnostic channel and does not abort the
// rest of the batch.
type UDPTransport struct {
	conf *config.Config
	diag DiagnosticFunc
	conn net.Conn
}

// NewUDPTransport returns a new udp transport. An unresolvable endpoint
// surfaces here.
func NewUDPTransport(conf *config.Config) (*UDPTransport, error) {
	conn, err := net.Dial("udp", conf.Hostport)
	if err != nil {
		return nil, errors.Wrapf(err, "resolving %s", conf.Hostport)
	}

	return &UDPTransport{
		conf: conf,
		diag: defaultDiagnostics,
		conn: conn,
	}, nil
}

func (t *UDPTransport) setDiagnostics(diag DiagnosticFunc) {
	t.diag = diag
}

// Send issues one datagram per message and reports how many were written. It
// never returns an error: failures are isolated per message and delivery is
// inherently unreliable.
func (t *UDPTransport) Send(msgs []string) (int, error) {
	sent := 0
	for _, msg := range msgs {
		if _, err := t.conn.Write([]byte(msg)); err != nil {
			internal.Debugf(t.conf, "datagram send failed: %+v", err)
			t.diag(err)
			continue
		}
		sent++
	}
	return sent, nil
}

// Close closes the socket.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
