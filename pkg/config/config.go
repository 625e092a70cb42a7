package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const EnvPrefix = "KAFKAFORM"

// Version is set at build time with -ldflags "-X .../pkg/config.Version=...".
var Version = "dev"

// Config holds process-wide configuration. The connector's cluster list is
// a separate resource, see Connector.
type Config struct {
	Prefix   string        `mapstructure:"prefix"`
	LogLevel string        `mapstructure:"logLevel"`
	Serve    ServeConfig   `mapstructure:"serve"`
	Metrics  MetricsConfig `mapstructure:"metrics"`
}

type ServeConfig struct {
	ListenAddr      string        `mapstructure:"listenAddr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout"`
	// BasicAuth maps usernames to passwords. Empty disables authentication.
	BasicAuth map[string]string `mapstructure:"basicAuth"`
	// CORSOrigins is a comma separated list, "*" allows any origin.
	CORSOrigins []string `mapstructure:"corsOrigins"`
	// TLS serves HTTPS. Without cert and key files a self-signed pair is
	// generated under ./tls.
	TLS         bool   `mapstructure:"tls"`
	TLSCertFile string `mapstructure:"tlsCertFile"`
	TLSKeyFile  string `mapstructure:"tlsKeyFile"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

func Default() *Config {
	return &Config{
		Prefix:   ".",
		LogLevel: "info",
		Serve: ServeConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
		},
	}
}

// Load reads config from file or environment. Values not set anywhere keep
// their Default.
func Load(cfgFile string) (*Config, error) {
	return LoadWith(viper.New(), cfgFile)
}

// LoadWith is Load on a caller supplied viper instance, typically one that
// already has command line flags bound.
func LoadWith(v *viper.Viper, cfgFile string) (*Config, error) {
	def := Default()
	v.SetDefault("prefix", def.Prefix)
	v.SetDefault("logLevel", def.LogLevel)
	v.SetDefault("serve.listenAddr", def.Serve.ListenAddr)
	v.SetDefault("serve.shutdownTimeout", def.Serve.ShutdownTimeout)
	v.SetDefault("metrics.enabled", def.Metrics.Enabled)
	v.SetDefault("metrics.addr", def.Metrics.Addr)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("kafkaform")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	return &cfg, nil
}
