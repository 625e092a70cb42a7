package kafkaform

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/edgeflare/kafkaform/pkg/config"
	"github.com/edgeflare/kafkaform/pkg/connector"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// app carries what every subcommand needs once flags and config are parsed.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger

	// overridable in tests
	connectorOpts []connector.Option
}

func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	return a.rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kafkaform",
		Short: "Declarative Kafka topics, ACLs and quotas",
		Long: `kafkaform reconciles Kafka clusters with YAML documents kept in a repository:
  kafka/config.yaml                  clusters and connector settings
  kafka/<cluster>/topics/<name>.yaml  topics
  kafka/<cluster>/acls/<id>.yaml      ACLs
  kafka/<cluster>/quotas/<id>.yaml    client quotas`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				fmt.Fprintln(cmd.OutOrStdout(), config.Version)
				return nil
			}
			return cmd.Help()
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/.config/kafkaform.yaml)")
	f.StringP("prefix", "p", ".", "repository root holding the kafka/ directory")
	f.StringP("log-level", "L", "info", "log at this level (debug, info, warn, error, none)")
	cmd.Flags().BoolP("version", "v", false, "Print the version number")
	a.v.BindPFlag("prefix", f.Lookup("prefix"))
	a.v.BindPFlag("logLevel", f.Lookup("log-level"))

	cmd.AddCommand(
		a.serveCmd(),
		a.planCmd(),
		a.applyCmd(),
		a.getCmd(),
		a.listCmd(),
		a.validateCmd(),
		a.skeletonCmd(),
	)
	return cmd
}

func (a *app) init() error {
	cfg, err := config.LoadWith(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.logger == nil {
		if a.logger, err = newLogger(cfg.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// newLogger builds a production zap logger; "none" disables logging.
func newLogger(level string) (*zap.Logger, error) {
	if strings.EqualFold(level, "none") {
		return zap.NewNop(), nil
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// connect creates a connector for the configured prefix and connects it.
func (a *app) connect(ctx context.Context) (*connector.Connector, error) {
	conn := a.offline()
	if err := conn.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize connector: %w", err)
	}
	return conn, nil
}

// offline creates a connector that is never connected, for commands that
// only inspect documents.
func (a *app) offline() *connector.Connector {
	opts := append([]connector.Option{connector.WithLogger(a.logger)}, a.connectorOpts...)
	return connector.New(a.cfg.Prefix, opts...)
}

func Main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
