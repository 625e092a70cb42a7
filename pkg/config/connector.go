package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultClusterName        = "default"
	DefaultBootstrapServers   = "localhost:9092"
	DefaultOperationTimeoutMS = 30000
	DefaultConcurrentRequests = 10
)

// ConnectorPath is where the connector config lives relative to the prefix.
const ConnectorPath = "kafka/config.yaml"

var ErrInvalidConnector = errors.New("invalid connector config")

type AuthMechanism string

const (
	AuthNone            AuthMechanism = "none"
	AuthSASLPlain       AuthMechanism = "sasl_plain"
	AuthSASLScramSHA256 AuthMechanism = "sasl_scram_sha256"
	AuthSASLScramSHA512 AuthMechanism = "sasl_scram_sha512"
	AuthSASLGSSAPI      AuthMechanism = "sasl_gssapi"
)

// Auth selects how a cluster authenticates. In YAML it is either the scalar
// `none` or a single-key mapping naming the mechanism:
//
//	auth:
//	  sasl_scram_sha512:
//	    username: admin
//	    password: secret
type Auth struct {
	Mechanism  AuthMechanism
	Username   string
	Password   string
	Principal  string
	KeytabPath string
}

type userPass struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type gssapi struct {
	Principal  string `yaml:"principal"`
	KeytabPath string `yaml:"keytab_path,omitempty"`
}

func (a *Auth) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind == yaml.ScalarNode {
		if n.Value != string(AuthNone) {
			return fmt.Errorf("line %d: auth: unknown variant %q", n.Line, n.Value)
		}
		*a = Auth{Mechanism: AuthNone}
		return nil
	}
	if n.Kind != yaml.MappingNode || len(n.Content) != 2 {
		return fmt.Errorf("line %d: auth: expected `none` or a single-key mapping", n.Line)
	}

	mech := AuthMechanism(n.Content[0].Value)
	body := n.Content[1]
	switch mech {
	case AuthSASLPlain, AuthSASLScramSHA256, AuthSASLScramSHA512:
		var up userPass
		if err := strictDecode(body, &up); err != nil {
			return fmt.Errorf("auth.%s: %w", mech, err)
		}
		if up.Username == "" {
			return fmt.Errorf("auth.%s: username is required", mech)
		}
		*a = Auth{Mechanism: mech, Username: up.Username, Password: up.Password}
	case AuthSASLGSSAPI:
		var g gssapi
		if err := strictDecode(body, &g); err != nil {
			return fmt.Errorf("auth.%s: %w", mech, err)
		}
		if g.Principal == "" {
			return fmt.Errorf("auth.%s: principal is required", mech)
		}
		*a = Auth{Mechanism: mech, Principal: g.Principal, KeytabPath: g.KeytabPath}
	default:
		return fmt.Errorf("line %d: auth: unknown variant %q", n.Content[0].Line, mech)
	}
	return nil
}

func (a Auth) MarshalYAML() (any, error) {
	switch a.Mechanism {
	case AuthNone, "":
		return string(AuthNone), nil
	case AuthSASLPlain, AuthSASLScramSHA256, AuthSASLScramSHA512:
		return map[string]userPass{string(a.Mechanism): {Username: a.Username, Password: a.Password}}, nil
	case AuthSASLGSSAPI:
		return map[string]gssapi{string(a.Mechanism): {Principal: a.Principal, KeytabPath: a.KeytabPath}}, nil
	}
	return nil, fmt.Errorf("auth: unknown mechanism %q", a.Mechanism)
}

// TLS upgrades the transport of a cluster connection.
type TLS struct {
	CACertPath        string `yaml:"ca_cert_path,omitempty"`
	ClientCertPath    string `yaml:"client_cert_path,omitempty"`
	ClientKeyPath     string `yaml:"client_key_path,omitempty"`
	VerifyCertificate bool   `yaml:"verify_certificate"`
}

func (t *TLS) UnmarshalYAML(n *yaml.Node) error {
	type plain TLS
	p := plain{VerifyCertificate: true}
	if err := strictDecode(n, &p); err != nil {
		return fmt.Errorf("tls: %w", err)
	}
	*t = TLS(p)
	return nil
}

// Cluster holds the connection parameters of one named cluster.
type Cluster struct {
	// BootstrapServers is a comma separated host:port list.
	BootstrapServers string            `yaml:"bootstrap_servers"`
	Auth             Auth              `yaml:"auth"`
	TLS              *TLS              `yaml:"tls,omitempty"`
	AdditionalConfig map[string]string `yaml:"additional_config,omitempty"`
}

// Brokers splits BootstrapServers.
func (c Cluster) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.BootstrapServers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

type Capability struct {
	Exec bool `yaml:"exec"`
}

// Capabilities gates remote execution per resource kind. Topics are always
// executable.
type Capabilities struct {
	Acl   Capability `yaml:"acl"`
	Quota Capability `yaml:"quota"`
}

// Audit names the topic OpExec outcomes are published to.
type Audit struct {
	Cluster string `yaml:"cluster"`
	Topic   string `yaml:"topic"`
}

// Connector is the connector's own configuration resource.
type Connector struct {
	Clusters           map[string]Cluster `yaml:"clusters"`
	OperationTimeoutMS uint64             `yaml:"operation_timeout_ms"`
	ConcurrentRequests int                `yaml:"concurrent_requests"`
	Capabilities       Capabilities       `yaml:"capabilities"`
	Audit              *Audit             `yaml:"audit,omitempty"`
}

// DefaultConnector is used when no config file exists.
func DefaultConnector() *Connector {
	return &Connector{
		Clusters: map[string]Cluster{
			DefaultClusterName: {BootstrapServers: DefaultBootstrapServers, Auth: Auth{Mechanism: AuthNone}},
		},
		OperationTimeoutMS: DefaultOperationTimeoutMS,
		ConcurrentRequests: DefaultConcurrentRequests,
	}
}

func (c *Connector) OperationTimeout() time.Duration {
	return time.Duration(c.OperationTimeoutMS) * time.Millisecond
}

// ClusterNames returns the configured cluster names, sorted.
func (c *Connector) ClusterNames() []string {
	names := make([]string, 0, len(c.Clusters))
	for name := range c.Clusters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Connector) Validate() error {
	if len(c.Clusters) == 0 {
		return fmt.Errorf("%w: at least one cluster is required", ErrInvalidConnector)
	}
	for _, name := range c.ClusterNames() {
		if name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("%w: invalid cluster name %q", ErrInvalidConnector, name)
		}
		cl := c.Clusters[name]
		if len(cl.Brokers()) == 0 {
			return fmt.Errorf("%w: cluster %q: bootstrap_servers is empty", ErrInvalidConnector, name)
		}
		if cl.Auth.Mechanism == "" {
			return fmt.Errorf("%w: cluster %q: auth is required", ErrInvalidConnector, name)
		}
		if cl.TLS != nil && (cl.TLS.ClientCertPath == "") != (cl.TLS.ClientKeyPath == "") {
			return fmt.Errorf("%w: cluster %q: client_cert_path and client_key_path must be set together", ErrInvalidConnector, name)
		}
	}
	if c.OperationTimeoutMS == 0 {
		return fmt.Errorf("%w: operation_timeout_ms must be greater than 0", ErrInvalidConnector)
	}
	if c.ConcurrentRequests <= 0 {
		return fmt.Errorf("%w: concurrent_requests must be greater than 0", ErrInvalidConnector)
	}
	if c.Audit != nil {
		if c.Audit.Topic == "" {
			return fmt.Errorf("%w: audit.topic is required", ErrInvalidConnector)
		}
		if _, ok := c.Clusters[c.Audit.Cluster]; !ok {
			return fmt.Errorf("%w: audit.cluster %q is not configured", ErrInvalidConnector, c.Audit.Cluster)
		}
	}
	return nil
}

// ParseConnector decodes and validates a connector config document. Unknown
// fields are rejected; omitted timeout and concurrency take their defaults.
func ParseConnector(data []byte) (*Connector, error) {
	cfg := &Connector{
		OperationTimeoutMS: DefaultOperationTimeoutMS,
		ConcurrentRequests: DefaultConcurrentRequests,
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConnector, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MarshalConnector renders c as 2-space indented YAML.
func MarshalConnector(c *Connector) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// LoadConnector reads <prefix>/kafka/config.yaml, falling back to
// DefaultConnector when the file does not exist. KAFKAFORM_OPERATION_TIMEOUT_MS
// and KAFKAFORM_CONCURRENT_REQUESTS override the file.
func LoadConnector(prefix string) (*Connector, error) {
	path := filepath.Join(prefix, filepath.FromSlash(ConnectorPath))

	var cfg *Connector
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		cfg = DefaultConnector()
	case err != nil:
		return nil, fmt.Errorf("error reading connector config: %w", err)
	default:
		if cfg, err = ParseConnector(data); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	if v.IsSet("operation_timeout_ms") {
		cfg.OperationTimeoutMS = v.GetUint64("operation_timeout_ms")
	}
	if v.IsSet("concurrent_requests") {
		cfg.ConcurrentRequests = v.GetInt("concurrent_requests")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// strictDecode decodes n rejecting unknown fields. yaml.Node.Decode does not
// honour KnownFields, so the node is re-encoded first.
func strictDecode(n *yaml.Node, out any) error {
	data, err := yaml.Marshal(n)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}
