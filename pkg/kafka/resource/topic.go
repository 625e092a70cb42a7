package resource

import (
	"errors"

	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"gopkg.in/yaml.v3"
)

// Topic is the declared shape of a Kafka topic.
type Topic struct {
	Partitions        int32     `yaml:"partitions" json:"partitions"`
	ReplicationFactor int16     `yaml:"replication_factor" json:"replication_factor"`
	Config            ConfigMap `yaml:"config" json:"config"`
}

// DefaultTopic is what an empty topic document decodes to.
func DefaultTopic() Topic {
	return Topic{Partitions: 1, ReplicationFactor: 1}
}

func (Topic) Kind() addr.Kind { return addr.KindTopic }

func (Topic) isResource() {}

func (t Topic) Equal(o Topic) bool {
	return t.Partitions == o.Partitions &&
		t.ReplicationFactor == o.ReplicationFactor &&
		t.Config.Equal(o.Config)
}

func (t Topic) validate() error {
	if t.Partitions <= 0 {
		return &DeserializeError{Field: "partitions", Err: errors.New("must be greater than 0")}
	}
	if t.ReplicationFactor <= 0 {
		return &DeserializeError{Field: "replication_factor", Err: errors.New("must be greater than 0")}
	}
	return nil
}

func decodeTopic(data []byte) (Topic, error) {
	root, err := parseDocument(data)
	if err != nil {
		return Topic{}, err
	}

	t := DefaultTopic()
	err = decodeFields("", root, []field{
		{name: "partitions", decode: func(p string, n *yaml.Node) error {
			return scalar(p, n, &t.Partitions)
		}},
		{name: "replication_factor", decode: func(p string, n *yaml.Node) error {
			return scalar(p, n, &t.ReplicationFactor)
		}},
		{name: "config", decode: func(p string, n *yaml.Node) error {
			return decodeConfigMap(p, n, &t.Config)
		}},
	})
	if err != nil {
		return Topic{}, err
	}
	if err := t.validate(); err != nil {
		return Topic{}, err
	}
	return t, nil
}
