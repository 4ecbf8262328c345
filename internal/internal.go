package internal

import (
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/jeffrom/syslogger/config"
)

func init() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.SetOutput(os.Stderr)
}

func getFileLine(distance int) (string, int) {
	_, file, line, ok := runtime.Caller(1 + distance)
	if !ok {
		file = "???"
		line = 0
	}

	parts := strings.Split(file, "/")
	file = parts[len(parts)-1]

	return file, line
}

func stdlog(distance int, s string, args ...interface{}) {
	file, line := getFileLine(distance)

	s = "%s %s " + s + "\n"
	linearg := fmt.Sprintf("%s:%d:", file, line)
	args = append([]interface{}{time.Now().Format("2006/01/02 15:04:05.000"), linearg}, args...)
	_, err := fmt.Fprintf(os.Stderr, s, args...)
	IgnoreError(err)
}

// Debugf prints a debug log message to stderr
func Debugf(conf *config.Config, s string, args ...interface{}) {
	if !conf.Verbose {
		return
	}

	stdlog(2, s, args...)
}

// DebugfDepth prints a debug log message to stderr
func DebugfDepth(conf *config.Config, depth int, s string, args ...interface{}) {
	if !conf.Verbose {
		return
	}

	stdlog(2+depth, s, args...)
}

// Logf logs to stderr
func Logf(s string, args ...interface{}) {
	stdlog(3, s, args...)
}

// LogError logs the error if one occurred
func LogError(err error) {
	if err != nil {
		stdlog(2, "error: %+v", err)
	}
}

// IgnoreError logs the error if one occurred
func IgnoreError(err error) {
	if err != nil {
		stdlog(2, "error ignored: %+v", err)
	}
}

// CloseAll closes all supplied closers, returns the first error, and logs all
// errors.
func CloseAll(c []io.Closer) error {
	var firstErr error

	for _, cl := range c {
		if cl == nil {
			continue
		}
		if err := cl.Close(); err != nil {
			log.Printf("error closing %v: %+v", cl, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
