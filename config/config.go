package config

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/jeffrom/syslogger/protocol"
)

// TLSConfig holds the optional TLS settings for the tcp transport. An empty
// protocol version set (Enabled false) disables TLS entirely.
type TLSConfig struct {
	Enabled            bool   `json:"enabled"`
	MinVersion         string `json:"min-version"`
	MaxVersion         string `json:"max-version"`
	InsecureSkipVerify bool   `json:"insecure-skip-verify"`
	CertFile           string `json:"cert-file"`
	KeyFile            string `json:"key-file"`
	CAFile             string `json:"ca-file"`
}

// Config holds configuration variables for a syslog sink.
type Config struct {
	// File is the path of a file from which configuration is read.
	File string `json:"config-file"`

	// Verbose prints debugging information.
	Verbose bool `json:"verbose"`

	// Hostport is the remote collector host:port. Ignored for the local
	// network.
	Hostport string `json:"host"`

	// Network selects the transport: tcp, udp or local.
	Network string `json:"network"`

	// Format selects the message syntax: rfc3164 or rfc5424.
	Format string `json:"format"`

	// Framing selects stream framing for tcp: octet-counting or
	// non-transparent. Ignored for udp and local.
	Framing string `json:"framing"`

	// Facility classifies message origin, 0 through 23.
	Facility int `json:"facility"`

	// AppName is the TAG / APP-NAME header field. Defaults to the process
	// name.
	AppName string `json:"app-name"`

	// BatchLimit is the number of buffered records that triggers a flush.
	BatchLimit int `json:"batch-limit"`

	// FlushInterval is the longest a buffered record waits before a flush.
	FlushInterval time.Duration `json:"flush-interval"`

	// QueueLimit bounds the pending record queue. Records emitted past the
	// limit are dropped rather than blocking the caller.
	QueueLimit int `json:"queue-limit"`

	// Timeout bounds connection establishment, including any TLS handshake.
	Timeout time.Duration `json:"timeout"`

	// WriteTimeout bounds a single batch write.
	WriteTimeout time.Duration `json:"write-timeout"`

	// ConnRetryInterval is the initial delay before reconnecting after a
	// transport failure.
	ConnRetryInterval time.Duration `json:"connection-retry-interval"`

	// ConnRetryMaxInterval caps the reconnect backoff.
	ConnRetryMaxInterval time.Duration `json:"connection-retry-max-interval"`

	// ConnRetryMultiplier scales the backoff on consecutive failures.
	ConnRetryMultiplier float64 `json:"connection-retry-multiplier"`

	TLS TLSConfig `json:"tls"`
}

// New returns a new configuration object
func New() *Config {
	return &Config{}
}

func (c *Config) String() string {
	return fmt.Sprintf("%+v", *c)
}

// Default is the default sink config
var Default = &Config{
	Hostport:             "127.0.0.1:514",
	Network:              "udp",
	Format:               "rfc5424",
	Framing:              "octet-counting",
	Facility:             int(protocol.User),
	BatchLimit:           100,
	FlushInterval:        2 * time.Second,
	QueueLimit:           1000,
	Timeout:              10 * time.Second,
	WriteTimeout:         10 * time.Second,
	ConnRetryInterval:    1 * time.Second,
	ConnRetryMaxInterval: 30 * time.Second,
	ConnRetryMultiplier:  2.0,
}

// DefaultTestConfig returns a testing configuration
func DefaultTestConfig(verbose bool) *Config {
	c := &Config{}
	*c = *Default
	c.Verbose = verbose
	c.BatchLimit = 3
	c.FlushInterval = 50 * time.Millisecond
	c.QueueLimit = 10
	c.Timeout = 100 * time.Millisecond
	c.WriteTimeout = 100 * time.Millisecond
	c.ConnRetryInterval = 1
	c.ConnRetryMaxInterval = 1
	c.ConnRetryMultiplier = 2
	return c
}

// GetTimeout returns the connection timeout, falling back to the default when
// unset.
func (c *Config) GetTimeout() time.Duration {
	if c.Timeout <= 0 {
		return Default.Timeout
	}
	return c.Timeout
}

// GetWriteTimeout returns the batch write timeout, falling back to the
// default when unset so a zero value never becomes an already-expired write
// deadline.
func (c *Config) GetWriteTimeout() time.Duration {
	if c.WriteTimeout <= 0 {
		return Default.WriteTimeout
	}
	return c.WriteTimeout
}

// Validate returns an error pointing to incorrect values for the
// configuration, if any. It is the only error surface for sink construction.
func (c *Config) Validate() error {
	switch c.Network {
	case "tcp", "udp", "local":
	default:
		return errors.Errorf("unknown network: %q", c.Network)
	}
	if c.Network != "local" && c.Hostport == "" {
		return errors.New("host must be set for remote networks")
	}
	switch c.Format {
	case "rfc3164", "rfc5424":
	default:
		return errors.Errorf("unknown format: %q", c.Format)
	}
	if !protocol.Facility(c.Facility).Valid() {
		return errors.Errorf("facility out of range: %d", c.Facility)
	}
	if _, err := protocol.ParseFraming(c.Framing); err != nil && c.Network == "tcp" {
		return err
	}
	if c.ConnRetryMultiplier < 1.0 {
		return errors.New("connection-retry-multiplier must be >= 1.0")
	}
	if c.BatchLimit <= 0 {
		return errors.New("batch-limit must be positive")
	}
	if c.QueueLimit <= 0 {
		return errors.New("queue-limit must be positive")
	}
	if _, err := c.TLSVersions(); err != nil {
		return err
	}
	return nil
}

// Formatter builds the protocol formatter selected by the config. Validate
// first.
func (c *Config) Formatter() protocol.Formatter {
	f := protocol.Facility(c.Facility)
	switch c.Format {
	case "rfc3164":
		return &protocol.RFC3164Formatter{Facility: f}
	default:
		return &protocol.RFC5424Formatter{Facility: f}
	}
}

// TLSVersions maps the configured protocol version names onto crypto/tls
// constants. Empty names leave crypto/tls defaults in place.
func (c *Config) TLSVersions() (minMax [2]uint16, err error) {
	minMax[0], err = tlsVersion(c.TLS.MinVersion)
	if err != nil {
		return minMax, err
	}
	minMax[1], err = tlsVersion(c.TLS.MaxVersion)
	return minMax, err
}

func tlsVersion(name string) (uint16, error) {
	switch name {
	case "":
		return 0, nil
	case "1.0", "tls1.0":
		return tls.VersionTLS10, nil
	case "1.1", "tls1.1":
		return tls.VersionTLS11, nil
	case "1.2", "tls1.2":
		return tls.VersionTLS12, nil
	case "1.3", "tls1.3":
		return tls.VersionTLS13, nil
	}
	return 0, errors.Errorf("unknown tls version: %q", name)
}
