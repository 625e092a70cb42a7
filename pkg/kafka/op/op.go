// Package op defines the mutating actions a plan is made of. Every op is
// self-contained: it carries exactly what is needed to execute it against the
// address it was planned for.
package op

import (
	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"github.com/edgeflare/kafkaform/pkg/kafka/resource"
)

// Op is one of the variants below.
type Op interface {
	// Kind is the address kind the op applies to.
	Kind() addr.Kind
	// Name is the variant name used on the wire.
	Name() string
	isOp()
}

type CreateTopic struct {
	Topic resource.Topic
}

type UpdateTopicPartitions struct {
	Partitions int32
}

// UpdateTopicConfig carries the full desired config, not a delta.
type UpdateTopicConfig struct {
	Config resource.ConfigMap
}

type DeleteTopic struct{}

type CreateAcl struct {
	Acl resource.Acl
}

// DeleteAcl carries the binding to remove.
type DeleteAcl struct {
	Acl resource.Acl
}

type CreateQuota struct {
	Quota resource.Quota
}

type UpdateQuota struct {
	Quota resource.Quota
}

// DeleteQuota carries the quota being removed so its entities are known.
type DeleteQuota struct {
	Quota resource.Quota
}

func (CreateTopic) Kind() addr.Kind           { return addr.KindTopic }
func (UpdateTopicPartitions) Kind() addr.Kind { return addr.KindTopic }
func (UpdateTopicConfig) Kind() addr.Kind     { return addr.KindTopic }
func (DeleteTopic) Kind() addr.Kind           { return addr.KindTopic }
func (CreateAcl) Kind() addr.Kind             { return addr.KindAcl }
func (DeleteAcl) Kind() addr.Kind             { return addr.KindAcl }
func (CreateQuota) Kind() addr.Kind           { return addr.KindQuota }
func (UpdateQuota) Kind() addr.Kind           { return addr.KindQuota }
func (DeleteQuota) Kind() addr.Kind           { return addr.KindQuota }

func (CreateTopic) Name() string           { return "CreateTopic" }
func (UpdateTopicPartitions) Name() string { return "UpdateTopicPartitions" }
func (UpdateTopicConfig) Name() string     { return "UpdateTopicConfig" }
func (DeleteTopic) Name() string           { return "DeleteTopic" }
func (CreateAcl) Name() string             { return "CreateAcl" }
func (DeleteAcl) Name() string             { return "DeleteAcl" }
func (CreateQuota) Name() string           { return "CreateQuota" }
func (UpdateQuota) Name() string           { return "UpdateQuota" }
func (DeleteQuota) Name() string           { return "DeleteQuota" }

func (CreateTopic) isOp()           {}
func (UpdateTopicPartitions) isOp() {}
func (UpdateTopicConfig) isOp()     {}
func (DeleteTopic) isOp()           {}
func (CreateAcl) isOp()             {}
func (DeleteAcl) isOp()             {}
func (CreateQuota) isOp()           {}
func (UpdateQuota) isOp()           {}
func (DeleteQuota) isOp()           {}

// Equal compares two ops structurally, using the semantic equality of any
// resource they carry.
func Equal(a, b Op) bool {
	switch x := a.(type) {
	case CreateTopic:
		y, ok := b.(CreateTopic)
		return ok && x.Topic.Equal(y.Topic)
	case UpdateTopicPartitions:
		y, ok := b.(UpdateTopicPartitions)
		return ok && x.Partitions == y.Partitions
	case UpdateTopicConfig:
		y, ok := b.(UpdateTopicConfig)
		return ok && x.Config.Equal(y.Config)
	case DeleteTopic:
		_, ok := b.(DeleteTopic)
		return ok
	case CreateAcl:
		y, ok := b.(CreateAcl)
		return ok && x.Acl == y.Acl
	case DeleteAcl:
		y, ok := b.(DeleteAcl)
		return ok && x.Acl == y.Acl
	case CreateQuota:
		y, ok := b.(CreateQuota)
		return ok && x.Quota.Equal(y.Quota)
	case UpdateQuota:
		y, ok := b.(UpdateQuota)
		return ok && x.Quota.Equal(y.Quota)
	case DeleteQuota:
		y, ok := b.(DeleteQuota)
		return ok && x.Quota.Equal(y.Quota)
	}
	return false
}
