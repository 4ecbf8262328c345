package protocol

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Severity is a syslog severity level as defined in RFC5424 section 6.2.1.
type Severity int

const (
	Emergency Severity = iota
	Alert
	Critical
	Error
	Warning
	Notice
	Informational
	Debug
)

var severityNames = []string{
	"emergency",
	"alert",
	"critical",
	"error",
	"warning",
	"notice",
	"informational",
	"debug",
}

func (s Severity) String() string {
	if s < Emergency || s > Debug {
		return "<invalid severity " + strconv.Itoa(int(s)) + ">"
	}
	return severityNames[s]
}

// Valid reports whether s is one of the 8 defined severity levels.
func (s Severity) Valid() bool {
	return s >= Emergency && s <= Debug
}

// ParseSeverity returns the Severity named by s. It accepts the keyword
// (case-insensitive, "info" and "warn" included) or the decimal code.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(s) {
	case "emergency", "emerg":
		return Emergency, nil
	case "alert":
		return Alert, nil
	case "critical", "crit":
		return Critical, nil
	case "error", "err":
		return Error, nil
	case "warning", "warn":
		return Warning, nil
	case "notice":
		return Notice, nil
	case "informational", "info":
		return Informational, nil
	case "debug":
		return Debug, nil
	}
	if n, err := strconv.Atoi(s); err == nil && Severity(n).Valid() {
		return Severity(n), nil
	}
	return 0, errors.Errorf("unknown severity: %q", s)
}

// Facility is a syslog facility code, 0 through 23.
type Facility int

const (
	Kernel Facility = iota
	User
	Mail
	Daemon
	Auth
	Internal
	Printer
	News
	UUCP
	Cron
	AuthPriv
	FTP
	NTP
	LogAudit
	LogAlert
	Cron2
	Local0
	Local1
	Local2
	Local3
	Local4
	Local5
	Local6
	Local7
)

var facilityNames = []string{
	"kern",
	"user",
	"mail",
	"daemon",
	"auth",
	"syslog",
	"lpr",
	"news",
	"uucp",
	"cron",
	"authpriv",
	"ftp",
	"ntp",
	"audit",
	"alert",
	"cron2",
	"local0",
	"local1",
	"local2",
	"local3",
	"local4",
	"local5",
	"local6",
	"local7",
}

func (f Facility) String() string {
	if !f.Valid() {
		return "<invalid facility " + strconv.Itoa(int(f)) + ">"
	}
	return facilityNames[f]
}

// Valid reports whether f is in the range defined by RFC5424.
func (f Facility) Valid() bool {
	return f >= Kernel && f <= Local7
}

// ParseFacility returns the Facility named by s, accepting either a keyword
// or the decimal code.
func ParseFacility(s string) (Facility, error) {
	low := strings.ToLower(s)
	for i, name := range facilityNames {
		if low == name {
			return Facility(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Facility(n).Valid() {
		return Facility(n), nil
	}
	return 0, errors.Errorf("unknown facility: %q", s)
}

// Priority encodes a facility and severity into the PRI value carried in the
// message header. The result is always within [0, 191].
func Priority(f Facility, s Severity) int {
	return int(f)*8 + int(s)
}
