package sink

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeffrom/syslogger/protocol"
)

func newTestLocalSink() (*LocalSink, net.Conn) {
	server, client := net.Pipe()
	s := &LocalSink{
		conn:    client,
		fmtr:    &protocol.LocalFormatter{Facility: protocol.User},
		stream:  true,
		appName: "localtest",
		procID:  7,
	}
	return s, server
}

func TestLocalSinkEmit(t *testing.T) {
	s, server := newTestLocalSink()
	defer server.Close()

	got := make(chan string, 1)
	go func() {
		b := make([]byte, 1024)
		n, _ := server.Read(b)
		got <- string(b[:n])
	}()

	require.NoError(t, s.Emit(&protocol.Record{
		Time:     time.Date(2023, time.October, 14, 12, 30, 45, 0, time.UTC),
		Severity: protocol.Informational,
		Message:  "local hello",
	}))

	select {
	case msg := <-got:
		require.Equal(t, "<14>Oct 14 12:30:45 localtest[7]: local hello\n", msg)
	case <-time.After(time.Second):
		t.Fatal("no message written to the socket")
	}

	require.NoError(t, s.Close())
}

func TestLocalSinkEmitAfterClose(t *testing.T) {
	s, server := newTestLocalSink()
	defer server.Close()

	require.NoError(t, s.Close())
	err := s.Emit(&protocol.Record{Message: "late"})
	require.Equal(t, ErrClosed, err)

	// Close is idempotent
	require.NoError(t, s.Close())
}
