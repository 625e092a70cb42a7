package client

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/edgeflare/kafkaform/pkg/config"
	"github.com/edgeflare/kafkaform/pkg/util"
)

// DefaultKafkaVersion is assumed unless kafka.version is set in
// additional_config. Client quota APIs need at least 2.6.
var DefaultKafkaVersion = sarama.V2_8_0_0

// SecurityProtocol reports the effective Kafka security.protocol for a
// cluster: the auth variant picks SASL or not, a TLS block upgrades to SSL.
func SecurityProtocol(c config.Cluster) string {
	sasl := c.Auth.Mechanism != "" && c.Auth.Mechanism != config.AuthNone
	switch {
	case sasl && c.TLS != nil:
		return "SASL_SSL"
	case sasl:
		return "SASL_PLAINTEXT"
	case c.TLS != nil:
		return "SSL"
	}
	return "PLAINTEXT"
}

// ToSaramaConfig converts a cluster config to a sarama.Config. timeout bounds
// every admin request.
func ToSaramaConfig(c config.Cluster, timeout time.Duration) (*sarama.Config, error) {
	conf := sarama.NewConfig()
	conf.Version = DefaultKafkaVersion
	conf.ClientID = "kafkaform"

	conf.Admin.Timeout = timeout
	conf.Admin.Retry.Max = 0

	// audit producer
	conf.Producer.Retry.Max = 1
	conf.Producer.RequiredAcks = sarama.WaitForAll
	conf.Producer.Return.Successes = true

	if err := applyAuth(conf, c.Auth); err != nil {
		return nil, err
	}

	if c.TLS != nil {
		tlsConfig, err := util.NewTLSConfig(util.TLSFiles{
			CAFile:     c.TLS.CACertPath,
			CertFile:   c.TLS.ClientCertPath,
			KeyFile:    c.TLS.ClientKeyPath,
			SkipVerify: !c.TLS.VerifyCertificate,
		})
		if err != nil {
			return nil, fmt.Errorf("error configuring TLS: %w", err)
		}
		conf.Net.TLS.Enable = true
		conf.Net.TLS.Config = tlsConfig
	}

	if err := applyAdditional(conf, c.AdditionalConfig); err != nil {
		return nil, err
	}

	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	return conf, nil
}

func applyAuth(conf *sarama.Config, auth config.Auth) error {
	switch auth.Mechanism {
	case config.AuthNone, "":
		return nil
	case config.AuthSASLPlain:
		conf.Net.SASL.Mechanism = sarama.SASLTypePlaintext
	case config.AuthSASLScramSHA256:
		conf.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		conf.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA256} }
	case config.AuthSASLScramSHA512:
		conf.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		conf.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient { return &XDGSCRAMClient{HashGeneratorFcn: SHA512} }
	case config.AuthSASLGSSAPI:
		user, realm, ok := strings.Cut(auth.Principal, "@")
		if !ok || user == "" || realm == "" {
			return fmt.Errorf("GSSAPI principal %q must be of the form user@REALM", auth.Principal)
		}
		if auth.KeytabPath == "" {
			return fmt.Errorf("GSSAPI principal %q: keytab_path is required", auth.Principal)
		}
		conf.Net.SASL.Enable = true
		conf.Net.SASL.Mechanism = sarama.SASLTypeGSSAPI
		conf.Net.SASL.GSSAPI = sarama.GSSAPIConfig{
			AuthType:           sarama.KRB5_KEYTAB_AUTH,
			KeyTabPath:         auth.KeytabPath,
			KerberosConfigPath: util.EnvOr("/etc/krb5.conf", "KAFKAFORM_KRB5_CONFIG", "KRB5_CONFIG"),
			ServiceName:        "kafka",
			Username:           user,
			Realm:              realm,
			DisablePAFXFAST:    true,
		}
		return nil
	default:
		return fmt.Errorf("invalid auth mechanism: %s", auth.Mechanism)
	}

	conf.Net.SASL.Enable = true
	conf.Net.SASL.Handshake = true
	conf.Net.SASL.User = auth.Username
	conf.Net.SASL.Password = auth.Password
	return nil
}

// applyAdditional maps the librdkafka-style properties sarama has an
// equivalent for. Anything else is rejected rather than ignored.
func applyAdditional(conf *sarama.Config, props map[string]string) error {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := props[key]
		switch key {
		case "client.id":
			conf.ClientID = value
		case "kafka.version":
			v, err := sarama.ParseKafkaVersion(value)
			if err != nil {
				return fmt.Errorf("error parsing Kafka version: %w", err)
			}
			conf.Version = v
		case "metadata.max.age.ms":
			d, err := millis(key, value)
			if err != nil {
				return err
			}
			conf.Metadata.RefreshFrequency = d
		case "request.timeout.ms":
			d, err := millis(key, value)
			if err != nil {
				return err
			}
			conf.Net.ReadTimeout = d
			conf.Net.WriteTimeout = d
		case "socket.connection.setup.timeout.ms":
			d, err := millis(key, value)
			if err != nil {
				return err
			}
			conf.Net.DialTimeout = d
		case "sasl.kerberos.service.name":
			conf.Net.SASL.GSSAPI.ServiceName = value
		default:
			return fmt.Errorf("unsupported additional_config property %q", key)
		}
	}
	return nil
}

func millis(key, value string) (time.Duration, error) {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: expected a positive number of milliseconds, got %q", key, value)
	}
	return time.Duration(n) * time.Millisecond, nil
}
