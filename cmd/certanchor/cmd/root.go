package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const envPrefix = "CERTANCHOR"

const (
	flagLogLevel      = "log-level"
	flagDataDir       = "data-dir"
	flagNetwork       = "network"
	flagTopicID       = "topic-id"
	flagMirrorURL     = "mirror-url"
	flagMirrorAPIKey  = "mirror-api-key"
	flagInstitute     = "institute"
	flagLedgerTimeout = "ledger-timeout"
	flagMetricsFile   = "metrics-file"
)

var (
	conf = viper.New()
	fs   = afero.NewOsFs()
	log  = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:           "certanchor",
	Short:         "Issue and verify ledger anchored document certificates",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger, err := newLogger(conf.GetString(flagLogLevel), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		log = logger
		return nil
	},
}

// exitError ends the process with code without printing anything further.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	var exit exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}

func init() {
	registerPersistentFlags(rootCmd.PersistentFlags())
	if err := bindConfig(conf, rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(topicCmd, issueCmd, issueBatchCmd, verifyCmd, diagnoseCmd, listCmd)
}

func registerPersistentFlags(flags *pflag.FlagSet) {
	flags.String(flagLogLevel, "info", "log level (trace, debug, info, warn, error)")
	flags.String(flagDataDir, "certanchor-data", "directory of the certificate record store")
	flags.String(flagNetwork, "", "hedera network (mainnet, testnet, previewnet); defaults to HEDERA_NETWORK")
	flags.String(flagTopicID, "", "anchor topic ID")
	flags.String(flagMirrorURL, "", "mirror node base URL override")
	flags.String(flagMirrorAPIKey, "", "mirror node API key")
	flags.String(flagInstitute, "", "institute the certificates belong to")
	flags.Duration(flagLedgerTimeout, 2*time.Minute, "upper bound for a single ledger call")
	flags.String(flagMetricsFile, "", "write verification metrics to this file in the Prometheus text format")
}

// bindConfig makes every flag in flags resolvable through conf, with
// CERTANCHOR_<FLAG> environment variables as fallback.
func bindConfig(conf *viper.Viper, flags *pflag.FlagSet) error {
	conf.SetEnvPrefix(envPrefix)
	conf.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	conf.AutomaticEnv()
	return conf.BindPFlags(flags)
}

type settings struct {
	DataDir       string
	Network       string
	TopicID       string
	MirrorURL     string
	MirrorAPIKey  string
	Institute     string
	LedgerTimeout time.Duration
	MetricsFile   string
}

func loadSettings(conf *viper.Viper) settings {
	return settings{
		DataDir:       strings.TrimSpace(conf.GetString(flagDataDir)),
		Network:       strings.TrimSpace(conf.GetString(flagNetwork)),
		TopicID:       strings.TrimSpace(conf.GetString(flagTopicID)),
		MirrorURL:     strings.TrimSpace(conf.GetString(flagMirrorURL)),
		MirrorAPIKey:  strings.TrimSpace(conf.GetString(flagMirrorAPIKey)),
		Institute:     strings.TrimSpace(conf.GetString(flagInstitute)),
		LedgerTimeout: conf.GetDuration(flagLedgerTimeout),
		MetricsFile:   strings.TrimSpace(conf.GetString(flagMetricsFile)),
	}
}

// scope returns the normalized institute, which every command working on
// records requires.
func (s settings) scope() (certificate.Scope, error) {
	if s.Institute == "" {
		return "", fmt.Errorf("--%s is required", flagInstitute)
	}
	return certificate.NewScope(s.Institute)
}

func newLogger(level string, out io.Writer) (zerolog.Logger, error) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}

	writer := zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(parsed).With().Timestamp().Logger(), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func withTimeout(cmd *cobra.Command, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(commandContext(cmd))
	}
	return context.WithTimeout(commandContext(cmd), timeout)
}

func printJSON(out io.Writer, value interface{}) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(out, string(encoded))
	return err
}
