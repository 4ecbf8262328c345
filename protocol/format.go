package protocol

import (
	"bytes"
	"strconv"
	"time"
)

// rfc5424Time keeps sub-second precision, which RFC5424 allows and most
// collectors index on.
const rfc5424Time = "2006-01-02T15:04:05.999999Z07:00"

const (
	maxHostnameLen = 255
	maxAppNameLen  = 48
	maxProcIDLen   = 128
	maxMsgIDLen    = 32
)

// Formatter turns a record into a wire-ready syslog string, including the
// <PRI> header. Implementations perform no I/O.
type Formatter interface {
	Format(r *Record) string
}

// RFC3164Formatter renders the legacy BSD syslog format:
// <PRI>Mmm dd hh:mm:ss HOST TAG[pid]: MSG
type RFC3164Formatter struct {
	Facility Facility
}

func (f *RFC3164Formatter) Format(r *Record) string {
	var buf bytes.Buffer
	writePri(&buf, f.Facility, r.Severity)
	buf.WriteString(r.Time.Format(time.Stamp))
	buf.WriteByte(' ')
	buf.WriteString(truncate(r.Hostname, maxHostnameLen))
	buf.WriteByte(' ')
	buf.WriteString(r.AppName)
	if r.ProcID > 0 {
		buf.WriteByte('[')
		buf.WriteString(strconv.Itoa(r.ProcID))
		buf.WriteByte(']')
	}
	buf.WriteString(": ")
	buf.WriteString(r.Message)
	return buf.String()
}

// RFC5424Formatter renders the modern syslog format:
// <PRI>1 TIMESTAMP HOST APP-NAME PROCID MSGID STRUCTURED-DATA MSG
// Absent header fields render as the NILVALUE "-".
type RFC5424Formatter struct {
	Facility Facility
}

func (f *RFC5424Formatter) Format(r *Record) string {
	var buf bytes.Buffer
	writePri(&buf, f.Facility, r.Severity)
	buf.WriteString("1 ")
	if r.Time.IsZero() {
		buf.WriteByte('-')
	} else {
		buf.WriteString(r.Time.Format(rfc5424Time))
	}
	buf.WriteByte(' ')
	writeHeaderField(&buf, r.Hostname, maxHostnameLen)
	buf.WriteByte(' ')
	writeHeaderField(&buf, r.AppName, maxAppNameLen)
	buf.WriteByte(' ')
	if r.ProcID > 0 {
		writeHeaderField(&buf, strconv.Itoa(r.ProcID), maxProcIDLen)
	} else {
		buf.WriteByte('-')
	}
	buf.WriteByte(' ')
	writeHeaderField(&buf, r.MsgID, maxMsgIDLen)
	// no structured data
	buf.WriteString(" - ")
	buf.WriteString(r.Message)
	return buf.String()
}

// LocalFormatter renders messages for the local syslog daemon, which fills in
// the hostname itself: <PRI>Mmm dd hh:mm:ss TAG[pid]: MSG
type LocalFormatter struct {
	Facility Facility
}

func (f *LocalFormatter) Format(r *Record) string {
	var buf bytes.Buffer
	writePri(&buf, f.Facility, r.Severity)
	buf.WriteString(r.Time.Format(time.Stamp))
	buf.WriteByte(' ')
	buf.WriteString(r.AppName)
	if r.ProcID > 0 {
		buf.WriteByte('[')
		buf.WriteString(strconv.Itoa(r.ProcID))
		buf.WriteByte(']')
	}
	buf.WriteString(": ")
	buf.WriteString(r.Message)
	return buf.String()
}

// writePri encodes the PRI header, clamping out-of-range fields so the value
// stays within [0, 191].
func writePri(buf *bytes.Buffer, f Facility, s Severity) {
	if s < Emergency {
		s = Emergency
	} else if s > Debug {
		s = Debug
	}
	if f < Kernel {
		f = Kernel
	} else if f > Local7 {
		f = Local7
	}
	buf.WriteByte('<')
	buf.WriteString(strconv.Itoa(Priority(f, s)))
	buf.WriteByte('>')
}

// writeHeaderField writes an RFC5424 header field, replacing anything outside
// PRINTUSASCII (33..126) with '?' and rendering empty fields as NILVALUE.
func writeHeaderField(buf *bytes.Buffer, s string, max int) {
	if s == "" {
		buf.WriteByte('-')
		return
	}
	if len(s) > max {
		s = s[:max]
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 33 || c > 126 {
			c = '?'
		}
		buf.WriteByte(c)
	}
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
