package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jeffrom/syslogger/config"
)

var tmpConfig = config.New()
var severityFlag string

var RootCmd = &cobra.Command{
	Use:   "syslog-cli",
	Short: "Ship log lines to a syslog collector",
	Long:  `syslog-cli sends messages to a remote syslog collector over udp or tcp (optionally tls), or to the local syslog daemon.`,
}

func init() {
	*tmpConfig = *config.Default
	dconf := config.Default

	pflags := RootCmd.PersistentFlags()
	pflags.StringVar(&tmpConfig.File, "config", "",
		"load configuration from `FILE`")
	pflags.BoolVarP(&tmpConfig.Verbose, "verbose", "v", dconf.Verbose,
		"print debug output")
	pflags.StringVar(&tmpConfig.Hostport, "host", dconf.Hostport,
		"collector `HOST:PORT` to connect to")
	pflags.StringVar(&tmpConfig.Network, "network", dconf.Network,
		"transport `NETWORK`: tcp, udp or local")
	pflags.StringVar(&tmpConfig.Format, "format", dconf.Format,
		"message `FORMAT`: rfc3164 or rfc5424")
	pflags.StringVar(&tmpConfig.Framing, "framing", dconf.Framing,
		"tcp `FRAMING`: octet-counting or non-transparent")
	pflags.IntVar(&tmpConfig.Facility, "facility", dconf.Facility,
		"syslog `FACILITY` code, 0-23")
	pflags.StringVar(&tmpConfig.AppName, "app-name", dconf.AppName,
		"`NAME` for the TAG / APP-NAME header field")
	pflags.IntVar(&tmpConfig.BatchLimit, "batch-limit", dconf.BatchLimit,
		"records per batch before a flush")
	pflags.DurationVar(&tmpConfig.FlushInterval, "flush-interval", dconf.FlushInterval,
		"longest a buffered record waits before a flush")
	pflags.IntVar(&tmpConfig.QueueLimit, "queue-limit", dconf.QueueLimit,
		"pending record queue bound")
	pflags.DurationVar(&tmpConfig.Timeout, "timeout", dconf.Timeout,
		"connection timeout")
	pflags.DurationVar(&tmpConfig.WriteTimeout, "write-timeout", dconf.WriteTimeout,
		"batch write timeout")
	pflags.BoolVar(&tmpConfig.TLS.Enabled, "tls", dconf.TLS.Enabled,
		"enable tls for the tcp transport")
	pflags.StringVar(&tmpConfig.TLS.CertFile, "tls-cert", dconf.TLS.CertFile,
		"client certificate `FILE`")
	pflags.StringVar(&tmpConfig.TLS.KeyFile, "tls-key", dconf.TLS.KeyFile,
		"client key `FILE`")
	pflags.StringVar(&tmpConfig.TLS.CAFile, "tls-ca", dconf.TLS.CAFile,
		"ca bundle `FILE` for server validation")
	pflags.BoolVar(&tmpConfig.TLS.InsecureSkipVerify, "tls-skip-verify", dconf.TLS.InsecureSkipVerify,
		"skip server certificate validation")
	pflags.StringVar(&severityFlag, "severity", "info",
		"`SEVERITY` keyword or code for outgoing records")

	cobra.OnInitialize(initConfig)
}

// initConfig layers the config file and environment under the flag values.
func initConfig() {
	if tmpConfig.File != "" {
		viper.SetConfigFile(tmpConfig.File)
	} else {
		viper.SetConfigName("syslog-cli")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.config")
	}
	viper.SetEnvPrefix("SYSLOG")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && tmpConfig.File != "" {
			fmt.Fprintf(os.Stderr, "reading config: %v\n", err)
			os.Exit(1)
		}
	}
	applyViper()
}

func applyViper() {
	pflags := RootCmd.PersistentFlags()
	setString := func(key string, dst *string) {
		if viper.IsSet(key) && !pflags.Changed(key) {
			*dst = viper.GetString(key)
		}
	}
	setInt := func(key string, dst *int) {
		if viper.IsSet(key) && !pflags.Changed(key) {
			*dst = viper.GetInt(key)
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if viper.IsSet(key) && !pflags.Changed(key) {
			*dst = viper.GetDuration(key)
		}
	}

	setString("host", &tmpConfig.Hostport)
	setString("network", &tmpConfig.Network)
	setString("format", &tmpConfig.Format)
	setString("framing", &tmpConfig.Framing)
	setString("app-name", &tmpConfig.AppName)
	setInt("facility", &tmpConfig.Facility)
	setInt("batch-limit", &tmpConfig.BatchLimit)
	setInt("queue-limit", &tmpConfig.QueueLimit)
	setDuration("flush-interval", &tmpConfig.FlushInterval)
	setDuration("timeout", &tmpConfig.Timeout)
	setDuration("write-timeout", &tmpConfig.WriteTimeout)
	if viper.IsSet("verbose") && !pflags.Changed("verbose") {
		tmpConfig.Verbose = viper.GetBool("verbose")
	}
}

func main() {
	RootCmd.AddCommand(SendCmd)
	RootCmd.AddCommand(TailCmd)
	RootCmd.AddCommand(VersionCmd)

	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
