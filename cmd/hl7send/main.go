// Command hl7send sends HL7 v2 batch files to a receiver over MLLP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/arloliu/go-hl7/internal/cliconfig"
	"github.com/arloliu/go-hl7/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var exampleUsage = strings.TrimSpace(`
  hl7send send --host 10.0.0.5 --port 2575 adt_batch.hl7
  hl7send send --config /etc/hl7send/config.toml --keep-open *.hl7
  hl7send watch --host 10.0.0.5 --archive-dir /var/spool/hl7/sent /var/spool/hl7/outbox
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}

	return "dev"
}

// app carries the resolved configuration shared by subcommands.
type app struct {
	cfg     cliconfig.Config
	cfgPath string
	fs      afero.Fs
	logger  logger.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cliconfig.DefaultConfig(), fs: afero.NewOsFs()}
	if err := a.rootCmd().ExecuteContext(ctx); err != nil {
		logger.Error("hl7send failed", "error", err)
		stop()
		os.Exit(1)
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hl7send",
		Short:         "Send HL7 v2 messages to a receiver over MLLP",
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.resolve(cmd)
		},
	}

	cfg := &a.cfg
	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgPath, "config", "", "path to config file (default: $HOME/.hl7send/config.toml)")
	flags.StringVar(&cfg.Host, "host", cfg.Host, "receiver host")
	flags.IntVar(&cfg.Port, "port", cfg.Port, "receiver port")
	flags.DurationVar(&cfg.ConnectionTimeout, "connection-timeout", cfg.ConnectionTimeout, "budget from first connection attempt to ready, 0 disables it")
	flags.DurationVar(&cfg.SocketTimeout, "socket-timeout", cfg.SocketTimeout, "timeout of each connection attempt and write")
	flags.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "maximum connection attempts")
	flags.DurationVar(&cfg.RetryLow, "retry-low", cfg.RetryLow, "first retry delay")
	flags.DurationVar(&cfg.RetryHigh, "retry-high", cfg.RetryHigh, "maximum retry delay")
	flags.BoolVar(&cfg.WaitAck, "wait-ack", cfg.WaitAck, "wait for the acknowledgment of a message before sending the next one")
	flags.BoolVar(&cfg.KeepOpen, "keep-open", cfg.KeepOpen, "send all messages of a file over one connection")
	flags.IntVar(&cfg.MaxConnections, "max-connections", cfg.MaxConnections, "socket pool ceiling")
	flags.StringVar(&cfg.Encoding, "encoding", cfg.Encoding, "text encoding of frames, such as utf-8 or iso-8859-1")
	flags.StringVar(&cfg.Delimiters, "delimiters", cfg.Delimiters, "delimiter set in wire order")
	flags.BoolVar(&cfg.ValidateHeaders, "validate", cfg.ValidateHeaders, "validate MSH fields before sending")
	flags.BoolVar(&cfg.TLS, "tls", cfg.TLS, "connect with TLS")
	flags.StringVar(&cfg.TLSServerName, "tls-server-name", cfg.TLSServerName, "TLS server name (defaults to host)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: json, console, zerolog")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve prometheus metrics on this address, empty disables it")
	if err := flags.MarkHidden("delimiters"); err != nil {
		logger.Warn("failed to hide flag", "flag", "delimiters", "error", err)
	}

	root.AddCommand(a.sendCmd(), a.watchCmd())

	return root
}

// resolve applies the config file and HL7SEND_* environment variables under the flags that
// were set explicitly, then validates the result and installs the logger.
func (a *app) resolve(cmd *cobra.Command) error {
	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	cfgFile := a.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	if cfgFile != "" && cliconfig.FileExists(a.fs, cfgFile) {
		fc, err := cliconfig.LoadFileConfig(a.fs, cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&a.cfg, fc, changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
		return err
	}

	if err := a.cfg.Validate(); err != nil {
		return err
	}

	a.logger = a.cfg.NewLogger(cmd.ErrOrStderr())
	logger.SetLogger(a.logger)
	a.logger.Debug("configuration resolved", "config", a.cfg, "file", cfgFile)

	return nil
}
