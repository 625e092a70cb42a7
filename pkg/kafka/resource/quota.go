package resource

import (
	"fmt"
	"slices"

	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"gopkg.in/yaml.v3"
)

type EntityType string

const (
	EntityUser     EntityType = "User"
	EntityClientID EntityType = "ClientId"
	EntityIP       EntityType = "Ip"
)

var entityTypes = []EntityType{EntityUser, EntityClientID, EntityIP}

type QuotaEntity struct {
	EntityType EntityType `yaml:"entity_type" json:"entity_type"`
	Name       string     `yaml:"name" json:"name"`
}

// Quota is a client quota. A nil rate is unset, which is not the same as 0.
type Quota struct {
	Entities          []QuotaEntity `yaml:"entities" json:"entities"`
	ProducerByteRate  *float64      `yaml:"producer_byte_rate,omitempty" json:"producer_byte_rate,omitempty"`
	ConsumerByteRate  *float64      `yaml:"consumer_byte_rate,omitempty" json:"consumer_byte_rate,omitempty"`
	RequestPercentage *float64      `yaml:"request_percentage,omitempty" json:"request_percentage,omitempty"`
}

func (Quota) Kind() addr.Kind { return addr.KindQuota }

func (Quota) isResource() {}

func (q Quota) Equal(o Quota) bool {
	return slices.Equal(q.Entities, o.Entities) &&
		rateEqual(q.ProducerByteRate, o.ProducerByteRate) &&
		rateEqual(q.ConsumerByteRate, o.ConsumerByteRate) &&
		rateEqual(q.RequestPercentage, o.RequestPercentage)
}

func (q Quota) validate() error {
	for i, e := range q.Entities {
		if !slices.Contains(entityTypes, e.EntityType) {
			return &DeserializeError{
				Field: fmt.Sprintf("entities[%d].entity_type", i),
				Err:   fmt.Errorf("unknown variant %q", e.EntityType),
			}
		}
	}
	for _, r := range []struct {
		field string
		rate  *float64
	}{
		{"producer_byte_rate", q.ProducerByteRate},
		{"consumer_byte_rate", q.ConsumerByteRate},
		{"request_percentage", q.RequestPercentage},
	} {
		if r.rate == nil {
			continue
		}
		if err := checkRate(*r.rate); err != nil {
			return &DeserializeError{Field: r.field, Err: err}
		}
	}
	return nil
}

func rateEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Rate is a convenience for building quotas in code.
func Rate(v float64) *float64 { return &v }

func decodeQuota(data []byte) (Quota, error) {
	root, err := parseDocument(data)
	if err != nil {
		return Quota{}, err
	}

	var q Quota
	err = decodeFields("", root, []field{
		{name: "entities", required: true, decode: func(p string, n *yaml.Node) error {
			return decodeEntities(p, n, &q.Entities)
		}},
		{name: "producer_byte_rate", decode: func(p string, n *yaml.Node) error {
			return optionalFloat(p, n, &q.ProducerByteRate)
		}},
		{name: "consumer_byte_rate", decode: func(p string, n *yaml.Node) error {
			return optionalFloat(p, n, &q.ConsumerByteRate)
		}},
		{name: "request_percentage", decode: func(p string, n *yaml.Node) error {
			return optionalFloat(p, n, &q.RequestPercentage)
		}},
	})
	if err != nil {
		return Quota{}, err
	}
	return q, nil
}

func decodeEntities(path string, n *yaml.Node, out *[]QuotaEntity) error {
	if n.Kind != yaml.SequenceNode {
		return nodeError(path, n, fmt.Errorf("expected a sequence, got %s", nodeKind(n)))
	}
	entities := make([]QuotaEntity, 0, len(n.Content))
	for i, item := range n.Content {
		var e QuotaEntity
		err := decodeFields(fmt.Sprintf("%s[%d].", path, i), item, []field{
			{name: "entity_type", required: true, decode: func(p string, n *yaml.Node) error {
				return enum(p, n, entityTypes, &e.EntityType)
			}},
			{name: "name", required: true, decode: func(p string, n *yaml.Node) error {
				return str(p, n, &e.Name)
			}},
		})
		if err != nil {
			return err
		}
		entities = append(entities, e)
	}
	*out = entities
	return nil
}
