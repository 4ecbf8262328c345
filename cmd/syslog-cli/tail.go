package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/hpcloud/tail"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jeffrom/syslogger/internal"
	"github.com/jeffrom/syslogger/protocol"
	"github.com/jeffrom/syslogger/sink"
)

var tailFile string
var tailFollow bool

func init() {
	pflags := TailCmd.PersistentFlags()
	pflags.StringVar(&tailFile, "file", "",
		"log `FILE` to ship")
	pflags.BoolVarP(&tailFollow, "follow", "f", false,
		"keep shipping as the file grows")
}

var TailCmd = &cobra.Command{
	Use:   "tail --file FILE",
	Short: "Ship a log file line by line",
	RunE: func(cmd *cobra.Command, args []string) error {
		if tailFile == "" {
			return errors.New("--file is required")
		}
		return doTail()
	},
}

func doTail() error {
	sev, err := protocol.ParseSeverity(severityFlag)
	if err != nil {
		return err
	}

	s, err := sink.New(tmpConfig)
	if err != nil {
		return err
	}
	defer func() {
		internal.LogError(s.Close())
	}()

	t, err := tail.TailFile(tailFile, tail.Config{
		Follow: tailFollow,
		ReOpen: tailFollow,
		Logger: tail.DiscardingLogger,
	})
	if err != nil {
		return err
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case line, ok := <-t.Lines:
			if !ok {
				return t.Err()
			}
			if line.Err != nil {
				internal.LogError(line.Err)
				continue
			}
			internal.IgnoreError(s.Emit(&protocol.Record{
				Time:     line.Time,
				Severity: sev,
				Message:  line.Text,
			}))
		case <-done:
			return t.Stop()
		}
	}
}
