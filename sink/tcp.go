package sink

import (
	"bufio"
	"bytes"
	"crypto/tls"
	"crypto/x509"
	"math"
	"net"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/jeffrom/syslogger/config"
	"github.com/jeffrom/syslogger/internal"
	"github.com/jeffrom/syslogger/protocol"
)

type connState uint32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
	stateFaulted
)

func (s connState) String() string {
	switch s {
	case stateDisconnected:
		return "DISCONNECTED"
	case stateConnecting:
		return "CONNECTING"
	case stateConnected:
		return "CONNECTED"
	case stateFaulted:
		return "FAULTED"
	default:
		return "INVALID"
	}
}

// Dialer defines an interface for connecting to servers. It can be used for
// mocking in tests.
type Dialer interface {
	DialTimeout(network, addr string, timeout time.Duration) (net.Conn, error)
}

type netDialer struct{}

func (nd *netDialer) DialTimeout(network, addr string, timeout time.Duration) (net.Conn, error) {
	return net.DialTimeout(network, addr, timeout)
}

// ClientCertificateFunc produces a client certificate for a connection
// being negotiated.
type ClientCertificateFunc func(*tls.CertificateRequestInfo) (*tls.Certificate, error)

// PeerVerifierFunc accepts or rejects the server certificate chain. When nil,
// the system trust store applies.
type PeerVerifierFunc func(rawCerts [][]byte, verifiedChains [][]*x509.Certificate) error

// TCPTransport owns a single persistent connection to the collector,
// optionally TLS. On each Send it ensures connectivity, writes every framed
// message in order, and on any I/O failure abandons the rest of the batch,
// tears the connection down, and schedules a reconnect with capped
// exponential backoff. All fields are owned by the sink worker goroutine.
type TCPTransport struct {
	conf    *config.Config
	framing protocol.Framing
	dialer  Dialer
	diag    DiagnosticFunc
	tlsConf *tls.Config

	conn          net.Conn
	bw            *bufio.Writer
	buf           bytes.Buffer
	state         connState
	retries       int
	retryInterval time.Duration
	nextAttempt   time.Time
}

// NewTCPTransport returns a new tcp transport. Invalid framing or TLS
// configuration surfaces here, before any connection attempt.
func NewTCPTransport(conf *config.Config) (*TCPTransport, error) {
	framing, err := protocol.ParseFraming(conf.Framing)
	if err != nil {
		return nil, err
	}

	t := &TCPTransport{
		conf:    conf,
		framing: framing,
		dialer:  &netDialer{},
		diag:    defaultDiagnostics,
	}

	if conf.TLS.Enabled {
		tlsConf, err := buildTLSConfig(conf)
		if err != nil {
			return nil, err
		}
		t.tlsConf = tlsConf
	}
	return t, nil
}

// WithDialer sets the dialer. It should be called as part of initialization.
func (t *TCPTransport) WithDialer(d Dialer) *TCPTransport {
	t.dialer = d
	return t
}

// WithClientCertificate injects the client certificate provider used during
// the TLS handshake. No-op when TLS is disabled.
func (t *TCPTransport) WithClientCertificate(fn ClientCertificateFunc) *TCPTransport {
	if t.tlsConf != nil {
		t.tlsConf.GetClientCertificate = fn
	}
	return t
}

// WithPeerVerifier injects the server certificate validator. No-op when TLS
// is disabled.
func (t *TCPTransport) WithPeerVerifier(fn PeerVerifierFunc) *TCPTransport {
	if t.tlsConf != nil {
		t.tlsConf.VerifyPeerCertificate = fn
	}
	return t
}

func (t *TCPTransport) setDiagnostics(diag DiagnosticFunc) {
	t.diag = diag
}

// Send writes one batch and reports how many messages were delivered. A
// failure mid-batch abandons the undelivered remainder; messages are never
// retried individually. The count on failure is zero: a torn-down connection
// confirms nothing about what reached the collector.
func (t *TCPTransport) Send(msgs []string) (int, error) {
	if t.state == stateFaulted {
		return 0, ErrFaulted
	}
	if err := t.ensureConn(); err != nil {
		return 0, err
	}

	internal.LogError(t.conn.SetWriteDeadline(time.Now().Add(t.conf.GetWriteTimeout())))
	for _, msg := range msgs {
		t.buf.Reset()
		protocol.Frame(&t.buf, t.framing, msg)
		if _, err := t.bw.Write(t.buf.Bytes()); err != nil {
			t.fail(err)
			return 0, err
		}
	}
	if err := t.bw.Flush(); err != nil {
		t.fail(err)
		return 0, err
	}
	internal.LogError(t.conn.SetWriteDeadline(time.Time{}))
	return len(msgs), nil
}

// Close closes the connection, if any.
func (t *TCPTransport) Close() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	t.bw = nil
	t.state = stateDisconnected
	return err
}

func (t *TCPTransport) ensureConn() error {
	if t.conn != nil {
		return nil
	}
	if !t.nextAttempt.IsZero() && time.Now().Before(t.nextAttempt) {
		return errBackoff
	}

	t.state = stateConnecting
	internal.Debugf(t.conf, "connecting to %s (attempt %d)", t.conf.Hostport, t.retries+1)
	conn, err := t.dialer.DialTimeout("tcp", t.conf.Hostport, t.conf.GetTimeout())
	if err != nil {
		if conn != nil {
			internal.IgnoreError(conn.Close())
		}
		t.scheduleRetry()
		return err
	}

	if t.tlsConf != nil {
		tlsConn := tls.Client(conn, t.tlsConf)
		internal.LogError(tlsConn.SetDeadline(time.Now().Add(t.conf.GetTimeout())))
		if err := tlsConn.Handshake(); err != nil {
			internal.IgnoreError(conn.Close())
			if isCertError(err) {
				t.state = stateFaulted
				return errors.Wrap(err, "server certificate rejected")
			}
			t.scheduleRetry()
			return err
		}
		internal.LogError(tlsConn.SetDeadline(time.Time{}))
		conn = tlsConn
	}

	t.conn = conn
	t.bw = bufio.NewWriter(conn)
	t.state = stateConnected
	t.retries = 0
	t.retryInterval = 0
	t.nextAttempt = time.Time{}
	internal.Debugf(t.conf, "connected to %s", t.conf.Hostport)
	return nil
}

func (t *TCPTransport) fail(err error) {
	internal.Debugf(t.conf, "write failed, tearing down connection: %+v", err)
	if t.conn != nil {
		internal.IgnoreError(t.conn.Close())
	}
	t.conn = nil
	t.bw = nil
	t.state = stateDisconnected
	t.scheduleRetry()
}

func (t *TCPTransport) scheduleRetry() {
	t.state = stateDisconnected
	t.retries++
	if t.retryInterval == 0 {
		t.retryInterval = t.conf.ConnRetryInterval
	} else {
		next := int(math.Round(float64(t.retryInterval) * t.conf.ConnRetryMultiplier))
		t.retryInterval = time.Duration(next)
	}
	if t.retryInterval > t.conf.ConnRetryMaxInterval {
		t.retryInterval = t.conf.ConnRetryMaxInterval
	}
	t.nextAttempt = time.Now().Add(t.retryInterval)
	internal.Debugf(t.conf, "next connection attempt in %s", t.retryInterval)
}

func isCertError(err error) bool {
	var verifyErr *tls.CertificateVerificationError
	if errors.As(err, &verifyErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var invalidCert x509.CertificateInvalidError
	if errors.As(err, &invalidCert) {
		return true
	}
	var hostnameErr x509.HostnameError
	return errors.As(err, &hostnameErr)
}

func buildTLSConfig(conf *config.Config) (*tls.Config, error) {
	versions, err := conf.TLSVersions()
	if err != nil {
		return nil, err
	}

	tlsConf := &tls.Config{
		MinVersion:         versions[0],
		MaxVersion:         versions[1],
		InsecureSkipVerify: conf.TLS.InsecureSkipVerify,
	}
	if host, _, err := net.SplitHostPort(conf.Hostport); err == nil {
		tlsConf.ServerName = host
	}

	if conf.TLS.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(conf.TLS.CertFile, conf.TLS.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "loading client certificate")
		}
		tlsConf.Certificates = []tls.Certificate{cert}
	}
	if conf.TLS.CAFile != "" {
		pem, err := os.ReadFile(conf.TLS.CAFile)
		if err != nil {
			return nil, errors.Wrap(err, "reading ca file")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.Errorf("no certificates found in %s", conf.TLS.CAFile)
		}
		tlsConf.RootCAs = pool
	}
	return tlsConf, nil
}
