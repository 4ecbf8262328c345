// Package sink delivers structured log records to syslog collectors over
// udp, tcp (optionally tls), or the local syslog daemon. Remote delivery is
// best-effort: transport failures are contained inside the sink and reported
// only through a diagnostic side channel, never to Emit callers.
package sink

import (
	"github.com/pkg/errors"

	"github.com/jeffrom/syslogger/config"
	"github.com/jeffrom/syslogger/internal"
	"github.com/jeffrom/syslogger/protocol"
)

// ErrClosed is returned when an operation is attempted on a closed sink.
// Batched sinks absorb it; only the local sink surfaces it from Emit.
var ErrClosed = errors.New("sink closed")

// ErrFaulted is reported through the diagnostic channel when a transport hits
// an unrecoverable configuration problem, such as a rejected server
// certificate with no override.
var ErrFaulted = errors.New("transport faulted")

// errBackoff indicates a flush was skipped because the reconnect backoff
// window has not elapsed.
var errBackoff = errors.New("reconnect backoff in effect")

// Sink is the capability implemented by every concrete sink.
type Sink interface {
	Emit(r *protocol.Record) error
	Close() error
}

// Transport delivers a batch of formatted messages and reports how many were
// delivered. A transport instance is owned exclusively by one batching sink
// worker, so implementations need no connection-level locking.
type Transport interface {
	Send(msgs []string) (int, error)
	Close() error
}

// DiagnosticFunc receives internal transport failures. It is the only way
// steady-state errors leave the sink.
type DiagnosticFunc func(err error)

func defaultDiagnostics(err error) {
	internal.Logf("syslog delivery error: %+v", err)
}

// New assembles a sink from a validated configuration. Configuration errors
// are the only error class surfaced here; everything later goes through the
// diagnostic channel.
func New(conf *config.Config) (Sink, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	switch conf.Network {
	case "local":
		return NewLocal(conf)
	case "udp":
		t, err := NewUDPTransport(conf)
		if err != nil {
			return nil, err
		}
		return NewBatching(conf, t), nil
	default:
		t, err := NewTCPTransport(conf)
		if err != nil {
			return nil, err
		}
		return NewBatching(conf, t), nil
	}
}
