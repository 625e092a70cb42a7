package op

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/edgeflare/kafkaform/pkg/kafka/resource"
)

var ErrMalformed = errors.New("malformed operation")

// envelope is the wire form: {"op":"<Name>", ...variant fields}.
type envelope struct {
	Op         string              `json:"op"`
	Topic      *resource.Topic     `json:"topic,omitempty"`
	Partitions *int32              `json:"partitions,omitempty"`
	Config     *resource.ConfigMap `json:"config,omitempty"`
	Acl        *resource.Acl       `json:"acl,omitempty"`
	Quota      *resource.Quota     `json:"quota,omitempty"`
}

// Marshal encodes o into its JSON envelope.
func Marshal(o Op) ([]byte, error) {
	var env envelope
	switch v := o.(type) {
	case CreateTopic:
		env.Topic = &v.Topic
	case UpdateTopicPartitions:
		env.Partitions = &v.Partitions
	case UpdateTopicConfig:
		env.Config = &v.Config
	case DeleteTopic:
	case CreateAcl:
		env.Acl = &v.Acl
	case DeleteAcl:
		env.Acl = &v.Acl
	case CreateQuota:
		env.Quota = &v.Quota
	case UpdateQuota:
		env.Quota = &v.Quota
	case DeleteQuota:
		env.Quota = &v.Quota
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrMalformed, o)
	}
	env.Op = o.Name()
	return json.Marshal(env)
}

// Unmarshal decodes a JSON envelope. Unknown variants, unknown fields and
// fields that do not belong to the variant are rejected.
func Unmarshal(data []byte) (Op, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var env envelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after operation", ErrMalformed)
	}

	var (
		o    Op
		want string
	)
	switch env.Op {
	case "CreateTopic":
		if env.Topic != nil {
			o = CreateTopic{Topic: *env.Topic}
		}
		want = "topic"
	case "UpdateTopicPartitions":
		if env.Partitions != nil {
			o = UpdateTopicPartitions{Partitions: *env.Partitions}
		}
		want = "partitions"
	case "UpdateTopicConfig":
		if env.Config != nil {
			o = UpdateTopicConfig{Config: *env.Config}
		}
		want = "config"
	case "DeleteTopic":
		o = DeleteTopic{}
	case "CreateAcl":
		if env.Acl != nil {
			o = CreateAcl{Acl: *env.Acl}
		}
		want = "acl"
	case "DeleteAcl":
		if env.Acl != nil {
			o = DeleteAcl{Acl: *env.Acl}
		}
		want = "acl"
	case "CreateQuota":
		if env.Quota != nil {
			o = CreateQuota{Quota: *env.Quota}
		}
		want = "quota"
	case "UpdateQuota":
		if env.Quota != nil {
			o = UpdateQuota{Quota: *env.Quota}
		}
		want = "quota"
	case "DeleteQuota":
		if env.Quota != nil {
			o = DeleteQuota{Quota: *env.Quota}
		}
		want = "quota"
	case "":
		return nil, fmt.Errorf("%w: missing \"op\"", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: unknown op %q", ErrMalformed, env.Op)
	}

	if o == nil {
		return nil, fmt.Errorf("%w: %s requires %q", ErrMalformed, env.Op, want)
	}
	if extra := env.extraFields(want); extra != "" {
		return nil, fmt.Errorf("%w: %s does not take %q", ErrMalformed, env.Op, extra)
	}
	if err := validate(o); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Op, err)
	}
	return o, nil
}

func (e envelope) extraFields(want string) string {
	set := map[string]bool{
		"topic":      e.Topic != nil,
		"partitions": e.Partitions != nil,
		"config":     e.Config != nil,
		"acl":        e.Acl != nil,
		"quota":      e.Quota != nil,
	}
	for _, name := range []string{"topic", "partitions", "config", "acl", "quota"} {
		if set[name] && name != want {
			return name
		}
	}
	return ""
}

func validate(o Op) error {
	switch v := o.(type) {
	case CreateTopic:
		return resource.Validate(v.Topic)
	case UpdateTopicPartitions:
		if v.Partitions <= 0 {
			return errors.New("partitions must be greater than 0")
		}
	case CreateAcl:
		return resource.Validate(v.Acl)
	case DeleteAcl:
		return resource.Validate(v.Acl)
	case CreateQuota:
		return resource.Validate(v.Quota)
	case UpdateQuota:
		return resource.Validate(v.Quota)
	case DeleteQuota:
		return resource.Validate(v.Quota)
	}
	return nil
}
