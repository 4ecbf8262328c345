package main

import (
	"bufio"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeffrom/syslogger/internal"
	"github.com/jeffrom/syslogger/protocol"
	"github.com/jeffrom/syslogger/sink"
)

var msgIDFlag string

func init() {
	pflags := SendCmd.PersistentFlags()
	pflags.StringVar(&msgIDFlag, "msgid", "",
		"MSGID header field (rfc5424 only)")
}

var SendCmd = &cobra.Command{
	Use:     "send [messages]",
	Aliases: []string{"s"},
	Short:   "Send messages to the collector",
	Long:    `Sends each argument as one syslog message, then reads further messages from stdin if it is piped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		internal.Debugf(tmpConfig, "%+v", tmpConfig)
		return doSend(args)
	},
}

func doSend(args []string) error {
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

	emit := func(msg string) {
		if msg == "" {
			return
		}
		internal.IgnoreError(s.Emit(&protocol.Record{
			Severity: sev,
			MsgID:    msgIDFlag,
			Message:  msg,
		}))
	}

	for _, arg := range args {
		emit(arg)
	}

	// check if there's data in stdin
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) != 0 {
		return nil
	}

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Split(bufio.ScanLines)
	for scanner.Scan() {
		emit(scanner.Text())
	}
	return scanner.Err()
}
