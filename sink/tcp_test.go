package sink

import (
	"bytes"
	"crypto/x509"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/jeffrom/syslogger/protocol"
	"github.com/jeffrom/syslogger/testhelper"
)

// pipeDialer hands out pre-arranged connections, then fails.
type pipeDialer struct {
	mu    sync.Mutex
	conns []net.Conn
	dials int
}

func (d *pipeDialer) DialTimeout(network, addr string, timeout time.Duration) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

func TestTCPEndToEnd(t *testing.T) {
	server, err := testhelper.NewCaptureServer()
	require.NoError(t, err)
	defer server.Close()

	conf := testConfig()
	conf.Network = "tcp"
	conf.Hostport = server.Addr()
	conf.Format = "rfc5424"
	conf.Facility = int(protocol.Local0)
	conf.Framing = "octet-counting"
	conf.BatchLimit = 1
	conf.WriteTimeout = time.Second
	conf.Timeout = time.Second

	tr, err := NewTCPTransport(conf)
	require.NoError(t, err)
	s := NewBatching(conf, tr)

	require.NoError(t, s.Emit(&protocol.Record{
		Severity: protocol.Informational,
		Message:  "hello",
	}))
	require.NoError(t, s.Close())

	require.Eventually(t, func() bool {
		return len(server.Bytes()) > 0
	}, time.Second, 5*time.Millisecond)

	b := server.Bytes()
	sp := bytes.IndexByte(b, ' ')
	require.Greater(t, sp, 0, "expected an octet-count prefix: %q", b)

	n, err := strconv.Atoi(string(b[:sp]))
	require.NoError(t, err, "length prefix not numeric: %q", b)

	payload := string(b[sp+1:])
	require.Len(t, payload, n, "octet count must match the payload byte length")
	require.True(t, strings.HasPrefix(payload, "<134>1 "),
		"local0/info should encode as 134: %q", payload)
	require.True(t, strings.HasSuffix(payload, " hello"), "payload: %q", payload)
}

func TestTCPZeroTimeoutsStillDeliver(t *testing.T) {
	server, err := testhelper.NewCaptureServer()
	require.NoError(t, err)
	defer server.Close()

	conf := testConfig()
	conf.Network = "tcp"
	conf.Hostport = server.Addr()
	conf.Framing = "octet-counting"
	conf.Timeout = 0
	conf.WriteTimeout = 0

	require.NoError(t, conf.Validate())

	tr, err := NewTCPTransport(conf)
	require.NoError(t, err)
	n, err := tr.Send([]string{"hello"})
	require.NoError(t, err,
		"an unset write timeout must fall back to the default, not expire immediately")
	require.Equal(t, 1, n)
	require.NoError(t, tr.Close())

	require.Eventually(t, func() bool {
		return string(server.Bytes()) == "5 hello"
	}, time.Second, 5*time.Millisecond)
}

func TestTCPMidBatchFailureAbandonsRemainder(t *testing.T) {
	conf := testConfig()
	conf.Network = "tcp"
	conf.Hostport = "127.0.0.1:0"
	conf.Framing = "octet-counting"
	conf.WriteTimeout = time.Second
	conf.ConnRetryInterval = 1

	server1, client1 := net.Pipe()
	server2, client2 := net.Pipe()
	d := &pipeDialer{conns: []net.Conn{client1, client2}}

	tr, err := NewTCPTransport(conf)
	require.NoError(t, err)
	tr.WithDialer(d)

	// the first connection accepts exactly one framed message, then drops
	frame1 := "2 m1"
	got1 := make(chan string, 1)
	go func() {
		b := make([]byte, len(frame1))
		if _, err := io.ReadFull(server1, b); err != nil {
			got1 <- ""
			return
		}
		server1.Close()
		got1 <- string(b)
	}()

	_, err = tr.Send([]string{"m1", "m2", "m3"})
	require.Error(t, err, "a mid-batch connection failure must fail the flush")
	require.Equal(t, frame1, <-got1)

	// the backoff window is 1ns, so the next flush reconnects
	time.Sleep(time.Millisecond)

	var buf2 bytes.Buffer
	done := make(chan struct{})
	go func() {
		io.Copy(&buf2, server2)
		close(done)
	}()

	n, err := tr.Send([]string{"m4"})
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoError(t, tr.Close())
	<-done

	require.Equal(t, "2 m4", buf2.String(),
		"only records enqueued after the failure should be delivered")
	require.Equal(t, 2, d.dials)
}

func TestTCPBackoffSkipsFlushes(t *testing.T) {
	conf := testConfig()
	conf.Network = "tcp"
	conf.Hostport = "127.0.0.1:0"
	conf.ConnRetryInterval = time.Hour
	conf.ConnRetryMaxInterval = time.Hour

	tr, err := NewTCPTransport(conf)
	require.NoError(t, err)
	tr.WithDialer(&pipeDialer{})

	_, err = tr.Send([]string{"m1"})
	require.Error(t, err)
	_, err = tr.Send([]string{"m2"})
	require.Equal(t, errBackoff, err,
		"flushes inside the backoff window must not dial")
}

func TestTCPBackoffGrowsAndCaps(t *testing.T) {
	conf := testConfig()
	conf.Network = "tcp"
	conf.Hostport = "127.0.0.1:0"
	conf.ConnRetryInterval = 10 * time.Millisecond
	conf.ConnRetryMaxInterval = 40 * time.Millisecond
	conf.ConnRetryMultiplier = 2.0

	tr, err := NewTCPTransport(conf)
	require.NoError(t, err)
	tr.WithDialer(&pipeDialer{})

	intervals := []time.Duration{}
	for i := 0; i < 4; i++ {
		tr.nextAttempt = time.Time{} // force an attempt
		_, err = tr.Send([]string{"m"})
		require.Error(t, err)
		intervals = append(intervals, tr.retryInterval)
	}

	require.Equal(t, 10*time.Millisecond, intervals[0])
	require.Equal(t, 20*time.Millisecond, intervals[1])
	require.Equal(t, 40*time.Millisecond, intervals[2])
	require.Equal(t, 40*time.Millisecond, intervals[3], "backoff must cap")
}

func TestCertErrorsAreTerminal(t *testing.T) {
	require.True(t, isCertError(x509.UnknownAuthorityError{}))
	require.True(t, isCertError(errors.Wrap(x509.CertificateInvalidError{}, "handshake")))
	require.True(t, isCertError(x509.HostnameError{Host: "collector"}))
	require.False(t, isCertError(errors.New("connection refused")))
	require.False(t, isCertError(io.EOF))
}

func TestTCPNonTransparentEndToEnd(t *testing.T) {
	server, err := testhelper.NewCaptureServer()
	require.NoError(t, err)
	defer server.Close()

	conf := testConfig()
	conf.Network = "tcp"
	conf.Hostport = server.Addr()
	conf.Framing = "non-transparent"
	conf.BatchLimit = 1
	conf.WriteTimeout = time.Second
	conf.Timeout = time.Second

	tr, err := NewTCPTransport(conf)
	require.NoError(t, err)
	s := NewBatching(conf, tr)

	require.NoError(t, s.Emit(&protocol.Record{
		Severity: protocol.Warning,
		Message:  "line one\nline two",
	}))
	require.NoError(t, s.Close())

	require.Eventually(t, func() bool {
		return len(server.Bytes()) > 0
	}, time.Second, 5*time.Millisecond)

	b := server.Bytes()
	require.Equal(t, byte('\n'), b[len(b)-1])
	require.Equal(t, 1, bytes.Count(b, []byte("\n")),
		"interior LF bytes must not create extra boundaries")
}

func TestTCPReconnectDeliversLaterBatches(t *testing.T) {
	server, err := testhelper.NewCaptureServer()
	require.NoError(t, err)
	defer server.Close()

	conf := testConfig()
	conf.Network = "tcp"
	conf.Hostport = server.Addr()
	conf.Framing = "octet-counting"
	conf.BatchLimit = 1
	conf.FlushInterval = 10 * time.Millisecond
	conf.ConnRetryInterval = 1
	conf.WriteTimeout = time.Second
	conf.Timeout = time.Second

	// kill the first connection after a few header bytes
	server.CloseAfterBytes(4)

	tr, err := NewTCPTransport(conf)
	require.NoError(t, err)
	s := NewBatching(conf, tr)
	defer s.Close()

	require.NoError(t, s.Emit(&protocol.Record{
		Severity: protocol.Informational,
		Message:  strings.Repeat("x", 2048),
	}))

	require.Eventually(t, func() bool {
		return server.Conns() >= 1
	}, time.Second, 5*time.Millisecond)

	// keep emitting; a flush eventually lands on a fresh connection. The
	// batch in flight when the first connection died is never retried.
	require.Eventually(t, func() bool {
		require.NoError(t, s.Emit(&protocol.Record{
			Severity: protocol.Informational,
			Message:  "after-reconnect",
		}))
		return server.Conns() >= 2 &&
			bytes.Contains(server.Bytes(), []byte("after-reconnect"))
	}, 3*time.Second, 20*time.Millisecond)
}
