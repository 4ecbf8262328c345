package protocol

import (
	"fmt"
	"time"
)

// Record is a single log event ready for formatting. The message body is
// already rendered; identity fields (hostname, app name, pid) are filled in
// by whoever constructs the record rather than read from global state.
type Record struct {
	Time     time.Time
	Severity Severity
	Hostname string
	AppName  string
	ProcID   int
	MsgID    string
	Message  string
}

func (r *Record) String() string {
	return fmt.Sprintf("Record<%s %q>", r.Severity, r.Message)
}
