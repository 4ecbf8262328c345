package sink

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jeffrom/syslogger/config"
	"github.com/jeffrom/syslogger/protocol"
)

// LocalSink writes synchronously to the local syslog daemon over a unix
// domain socket. A single mutex is shared between Emit and Close so the
// socket is never written concurrently with its closing. Emit after Close
// returns ErrClosed.
type LocalSink struct {
	mu     sync.Mutex
	conn   net.Conn
	fmtr   protocol.Formatter
	stream bool

	appName string
	procID  int
}

// NewLocal returns a sink connected to the local syslog daemon.
func NewLocal(conf *config.Config) (*LocalSink, error) {
	conn, stream, err := dialLocal()
	if err != nil {
		return nil, err
	}

	appName := conf.AppName
	if appName == "" {
		appName = filepath.Base(os.Args[0])
	}

	return &LocalSink{
		conn:    conn,
		fmtr:    &protocol.LocalFormatter{Facility: protocol.Facility(conf.Facility)},
		stream:  stream,
		appName: appName,
		procID:  os.Getpid(),
	}, nil
}

// dialLocal tries the datagram socket first, then the stream variants some
// platforms use.
func dialLocal() (net.Conn, bool, error) {
	networks := []string{"unixgram", "unix"}
	paths := []string{"/dev/log", "/var/run/syslog", "/var/run/log"}
	for _, network := range networks {
		for _, path := range paths {
			conn, err := net.Dial(network, path)
			if err != nil {
				continue
			}
			return conn, network == "unix", nil
		}
	}
	return nil, false, errors.New("no local syslog socket available")
}

// Emit formats and writes the record under the sink mutex.
func (s *LocalSink) Emit(r *protocol.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return ErrClosed
	}

	rec := *r
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	if rec.AppName == "" {
		rec.AppName = s.appName
	}
	if rec.ProcID == 0 {
		rec.ProcID = s.procID
	}

	msg := s.fmtr.Format(&rec)
	if s.stream && !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	_, err := s.conn.Write([]byte(msg))
	return err
}

// Close closes the socket. Later Emit calls return ErrClosed.
func (s *LocalSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
