// Package plan computes the ordered operations that move a resource from its
// current state to its desired state.
//
// Planning is pure: it never talks to a cluster, only decodes the two payloads
// selected by the address kind and compares them.
package plan

import (
	"errors"
	"fmt"

	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"github.com/edgeflare/kafkaform/pkg/kafka/op"
	"github.com/edgeflare/kafkaform/pkg/kafka/resource"
)

var (
	ErrImmutableField        = errors.New("immutable field")
	ErrUnsupportedTransition = errors.New("unsupported transition")
)

// Step is one planned operation with a human readable justification.
type Step struct {
	Op          op.Op
	Description string
}

// ValidationError aborts a plan: no steps are returned alongside it.
type ValidationError struct {
	Reason error
	Field  string
	From   string
	To     string
	Detail string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("%s: cannot change %s from %s to %s", e.Reason, e.Field, e.From, e.To)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Reason }

// Plan returns the steps for address a. A nil payload means the resource does
// not exist on that side. Config and Task addresses never produce steps.
func Plan(a addr.Address, current, desired []byte) ([]Step, error) {
	switch a.Kind {
	case addr.KindTopic:
		return planTopic(a, current, desired)
	case addr.KindAcl:
		return planAcl(a, current, desired)
	case addr.KindQuota:
		return planQuota(a, current, desired)
	case addr.KindConfig, addr.KindTask:
		return nil, nil
	}
	return nil, fmt.Errorf("plan: unsupported address kind %s", a.Kind)
}

// decodeSides decodes whichever payloads are present. Errors name the side.
func decodeSides(a addr.Address, current, desired []byte) (cur, des resource.Resource, err error) {
	if current != nil {
		if cur, err = resource.Deserialize(a, current); err != nil {
			return nil, nil, fmt.Errorf("current %s: %w", a.Kind, err)
		}
	}
	if desired != nil {
		if des, err = resource.Deserialize(a, desired); err != nil {
			return nil, nil, fmt.Errorf("desired %s: %w", a.Kind, err)
		}
	}
	return cur, des, nil
}

func planTopic(a addr.Address, current, desired []byte) ([]Step, error) {
	cr, dr, err := decodeSides(a, current, desired)
	if err != nil {
		return nil, err
	}

	switch {
	case cr == nil && dr == nil:
		return nil, nil
	case cr == nil:
		d, err := resource.AsTopic(dr)
		if err != nil {
			return nil, err
		}
		return []Step{{
			Op:          op.CreateTopic{Topic: d},
			Description: fmt.Sprintf("Create topic with %d partitions and replication factor %d", d.Partitions, d.ReplicationFactor),
		}}, nil
	case dr == nil:
		return []Step{{Op: op.DeleteTopic{}, Description: "Delete topic"}}, nil
	}

	c, err := resource.AsTopic(cr)
	if err != nil {
		return nil, err
	}
	d, err := resource.AsTopic(dr)
	if err != nil {
		return nil, err
	}

	var steps []Step
	switch {
	case d.Partitions > c.Partitions:
		steps = append(steps, Step{
			Op:          op.UpdateTopicPartitions{Partitions: d.Partitions},
			Description: fmt.Sprintf("Increase partitions from %d to %d", c.Partitions, d.Partitions),
		})
	case d.Partitions < c.Partitions:
		return nil, &ValidationError{
			Reason: ErrUnsupportedTransition,
			Field:  "partitions",
			From:   fmt.Sprint(c.Partitions),
			To:     fmt.Sprint(d.Partitions),
			Detail: "partitions for existing topics can only be increased",
		}
	}

	if d.ReplicationFactor != c.ReplicationFactor {
		return nil, &ValidationError{
			Reason: ErrImmutableField,
			Field:  "replication_factor",
			From:   fmt.Sprint(c.ReplicationFactor),
			To:     fmt.Sprint(d.ReplicationFactor),
		}
	}

	if !d.Config.Equal(c.Config) {
		steps = append(steps, Step{
			Op:          op.UpdateTopicConfig{Config: d.Config.Clone()},
			Description: "Update topic configuration",
		})
	}
	return steps, nil
}

func planAcl(a addr.Address, current, desired []byte) ([]Step, error) {
	cr, dr, err := decodeSides(a, current, desired)
	if err != nil {
		return nil, err
	}

	var c, d resource.Acl
	if cr != nil {
		if c, err = resource.AsAcl(cr); err != nil {
			return nil, err
		}
	}
	if dr != nil {
		if d, err = resource.AsAcl(dr); err != nil {
			return nil, err
		}
	}

	switch {
	case cr == nil && dr == nil:
		return nil, nil
	case cr == nil:
		return []Step{{
			Op:          op.CreateAcl{Acl: d},
			Description: fmt.Sprintf("Create ACL for %s on %s", d.Principal, d.ResourceName),
		}}, nil
	case dr == nil:
		return []Step{{Op: op.DeleteAcl{Acl: c}, Description: "Delete ACL"}}, nil
	case c.Equal(d):
		return nil, nil
	}

	// delete first so two bindings never coexist
	return []Step{
		{Op: op.DeleteAcl{Acl: c}, Description: "Delete old ACL"},
		{Op: op.CreateAcl{Acl: d}, Description: fmt.Sprintf("Create new ACL for %s on %s", d.Principal, d.ResourceName)},
	}, nil
}

func planQuota(a addr.Address, current, desired []byte) ([]Step, error) {
	cr, dr, err := decodeSides(a, current, desired)
	if err != nil {
		return nil, err
	}

	var c, d resource.Quota
	if cr != nil {
		if c, err = resource.AsQuota(cr); err != nil {
			return nil, err
		}
	}
	if dr != nil {
		if d, err = resource.AsQuota(dr); err != nil {
			return nil, err
		}
	}

	switch {
	case cr == nil && dr == nil:
		return nil, nil
	case cr == nil:
		return []Step{{Op: op.CreateQuota{Quota: d}, Description: "Create quota"}}, nil
	case dr == nil:
		return []Step{{Op: op.DeleteQuota{Quota: c}, Description: "Delete quota"}}, nil
	case c.Equal(d):
		return nil, nil
	}
	return []Step{{Op: op.UpdateQuota{Quota: d}, Description: "Update quota"}}, nil
}
