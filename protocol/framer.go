package protocol

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Framing selects how messages are delimited on a stream transport.
type Framing int

const (
	// FramingOctetCounting prefixes each message with its byte length
	// (RFC6587 section 3.4.1). Content-safe for any payload.
	FramingOctetCounting Framing = iota

	// FramingNonTransparent terminates each message with a LF byte
	// (RFC6587 section 3.4.2). Interior LF bytes are substituted before
	// framing since the receiver splits purely on LF.
	FramingNonTransparent
)

func (f Framing) String() string {
	switch f {
	case FramingOctetCounting:
		return "octet-counting"
	case FramingNonTransparent:
		return "non-transparent"
	default:
		return "<invalid framing " + strconv.Itoa(int(f)) + ">"
	}
}

// ParseFraming returns the Framing mode named by s.
func ParseFraming(s string) (Framing, error) {
	switch strings.ToLower(s) {
	case "octet-counting", "octet":
		return FramingOctetCounting, nil
	case "non-transparent", "newline", "lf":
		return FramingNonTransparent, nil
	}
	return 0, errors.Errorf("unknown framing mode: %q", s)
}

// Frame appends the framed form of msg to buf. A decoder reading an
// octet-counted frame (digits, one space, exactly that many bytes)
// reproduces msg byte for byte, including embedded digits and newlines.
func Frame(buf *bytes.Buffer, framing Framing, msg string) {
	switch framing {
	case FramingNonTransparent:
		if strings.IndexByte(msg, '\n') >= 0 {
			msg = strings.ReplaceAll(msg, "\n", "\\n")
		}
		buf.WriteString(msg)
		buf.WriteByte('\n')
	default:
		buf.WriteString(strconv.Itoa(len(msg)))
		buf.WriteByte(' ')
		buf.WriteString(msg)
	}
}
