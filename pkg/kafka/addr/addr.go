// Package addr maps connector resource addresses to and from their
// filesystem paths.
//
// Path grammar (case-sensitive, '/'-separated):
//
//	kafka/config.yaml                        -> Config
//	kafka/<cluster>/topics/<topic>.yaml      -> Topic
//	kafka/<cluster>/acls/<acl_id>.yaml       -> Acl
//	kafka/<cluster>/quotas/<quota_id>.yaml   -> Quota
//	kafka/task.yaml                          -> Task
package addr

import (
	"errors"
	"fmt"
	"strings"
)

// Ext is the suffix carried by every persisted resource file.
const Ext = ".yaml"

const root = "kafka"

// Kind identifies which shape an Address has.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindTopic
	KindAcl
	KindQuota
	KindTask
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTopic:
		return "topic"
	case KindAcl:
		return "acl"
	case KindQuota:
		return "quota"
	case KindTask:
		return "task"
	default:
		return "unknown"
	}
}

// segment is the collection directory name for the cluster-scoped kinds.
func (k Kind) segment() string {
	switch k {
	case KindTopic:
		return "topics"
	case KindAcl:
		return "acls"
	case KindQuota:
		return "quotas"
	}
	return ""
}

var ErrInvalidAddress = errors.New("invalid address")

// InvalidAddressError reports a path that matches none of the known shapes.
type InvalidAddressError struct {
	Path   string
	Reason string
}

func (e *InvalidAddressError) Error() string {
	return fmt.Sprintf("invalid address %q: %s", e.Path, e.Reason)
}

func (e *InvalidAddressError) Is(target error) bool {
	return target == ErrInvalidAddress
}

// Address identifies one resource instance or the control singletons.
// Cluster and Name are set for Topic, Acl and Quota; Task is set for Task.
type Address struct {
	Kind    Kind
	Cluster string
	Name    string
	Task    string
}

func Config() Address { return Address{Kind: KindConfig} }

func Topic(cluster, topic string) Address {
	return Address{Kind: KindTopic, Cluster: cluster, Name: topic}
}

func Acl(cluster, aclID string) Address {
	return Address{Kind: KindAcl, Cluster: cluster, Name: aclID}
}

func Quota(cluster, quotaID string) Address {
	return Address{Kind: KindQuota, Cluster: cluster, Name: quotaID}
}

func Task(kind string) Address { return Address{Kind: KindTask, Task: kind} }

// IsResource reports whether the address names reconciled resource state.
func (a Address) IsResource() bool {
	return a.Kind == KindTopic || a.Kind == KindAcl || a.Kind == KindQuota
}

// Validate checks that the address can be encoded and decoded back unchanged.
func (a Address) Validate() error {
	switch a.Kind {
	case KindConfig, KindTask:
		return nil
	case KindTopic, KindAcl, KindQuota:
		if err := validSegment(a.Cluster); err != nil {
			return fmt.Errorf("cluster: %w", err)
		}
		if err := validSegment(a.Name); err != nil {
			return fmt.Errorf("%s name: %w", a.Kind, err)
		}
		return nil
	}
	return fmt.Errorf("unknown address kind %d", a.Kind)
}

func validSegment(s string) error {
	if s == "" {
		return errors.New("must not be empty")
	}
	if strings.Contains(s, "/") {
		return errors.New("must not contain '/'")
	}
	return nil
}

// Encode returns the canonical path of the address.
func Encode(a Address) string {
	switch a.Kind {
	case KindConfig:
		return root + "/config" + Ext
	case KindTask:
		return root + "/task" + Ext
	case KindTopic, KindAcl, KindQuota:
		return root + "/" + a.Cluster + "/" + a.Kind.segment() + "/" + a.Name + Ext
	}
	return ""
}

// String is the canonical path.
func (a Address) String() string { return Encode(a) }

// Decode parses a path into an Address. Any path that does not match one of
// the known shapes yields an *InvalidAddressError.
func Decode(path string) (Address, error) {
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] != root {
		return Address{}, &InvalidAddressError{Path: path, Reason: "path must start with " + root + "/"}
	}

	switch len(parts) {
	case 2:
		switch parts[1] {
		case "config" + Ext:
			return Config(), nil
		case "task" + Ext:
			return Task(""), nil
		}
		return Address{}, &InvalidAddressError{Path: path, Reason: "unknown control address"}
	case 4:
		cluster, collection, file := parts[1], parts[2], parts[3]
		if cluster == "" {
			return Address{}, &InvalidAddressError{Path: path, Reason: "empty cluster name"}
		}
		name, ok := strings.CutSuffix(file, Ext)
		if !ok {
			return Address{}, &InvalidAddressError{Path: path, Reason: "missing " + Ext + " suffix"}
		}
		if name == "" {
			return Address{}, &InvalidAddressError{Path: path, Reason: "empty resource name"}
		}
		switch collection {
		case KindTopic.segment():
			return Topic(cluster, name), nil
		case KindAcl.segment():
			return Acl(cluster, name), nil
		case KindQuota.segment():
			return Quota(cluster, name), nil
		}
		return Address{}, &InvalidAddressError{Path: path, Reason: fmt.Sprintf("unknown collection %q", collection)}
	}
	return Address{}, &InvalidAddressError{Path: path, Reason: fmt.Sprintf("unexpected segment count %d", len(parts))}
}

// ClusterPath is the directory holding every resource of a cluster.
func ClusterPath(cluster string) string {
	return root + "/" + cluster
}

// MatchesFilter reports whether path and subpath overlap segment-wise, i.e.
// one is a prefix of the other. An empty subpath matches everything.
func MatchesFilter(path, subpath string) bool {
	subpath = strings.Trim(subpath, "/")
	if subpath == "" || subpath == "." {
		return true
	}
	a := strings.Split(strings.Trim(path, "/"), "/")
	b := strings.Split(subpath, "/")
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
