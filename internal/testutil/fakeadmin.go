package testutil

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/edgeflare/kafkaform/pkg/config"
	"github.com/edgeflare/kafkaform/pkg/kafka/client"
	"github.com/edgeflare/kafkaform/pkg/kafka/resource"
)

// FakeAdmin is an in-memory client.Admin. Remote-side failures are injected
// through Err (whole call) and ItemErrs (keyed by item name).
type FakeAdmin struct {
	mu sync.Mutex

	Topics map[string]*client.TopicDescription
	Acls   []resource.Acl
	Quotas map[string]resource.Quota

	Err         error
	ItemErrs    map[string]error
	DropResults bool

	Calls  []string
	Closed bool
}

var _ client.Admin = (*FakeAdmin)(nil)

func NewFakeAdmin() *FakeAdmin {
	return &FakeAdmin{
		Topics:   map[string]*client.TopicDescription{},
		Quotas:   map[string]resource.Quota{},
		ItemErrs: map[string]error{},
	}
}

// AddTopic seeds an existing topic.
func (f *FakeAdmin) AddTopic(name string, t resource.Topic) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Topics[name] = &client.TopicDescription{
		Name:              name,
		Partitions:        t.Partitions,
		ReplicationFactor: t.ReplicationFactor,
		Config:            t.Config.Clone(),
	}
}

// CallLog returns a copy of the recorded method calls.
func (f *FakeAdmin) CallLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.Calls)
}

func (f *FakeAdmin) begin(call string) error {
	f.Calls = append(f.Calls, call)
	return f.Err
}

func (f *FakeAdmin) results(rs []client.ItemResult) []client.ItemResult {
	if f.DropResults {
		return nil
	}
	return rs
}

func (f *FakeAdmin) ListTopics(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ListTopics"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(f.Topics))
	for name := range f.Topics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *FakeAdmin) DescribeTopic(ctx context.Context, topic string) (*client.TopicDescription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DescribeTopic " + topic); err != nil {
		return nil, err
	}
	t, ok := f.Topics[topic]
	if !ok {
		return nil, nil
	}
	desc := *t
	desc.Config = t.Config.Clone()
	return &desc, nil
}

func (f *FakeAdmin) CreateTopics(ctx context.Context, topics []client.TopicSpec) ([]client.ItemResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateTopics"); err != nil {
		return nil, err
	}
	rs := make([]client.ItemResult, 0, len(topics))
	for _, t := range topics {
		var err error
		switch {
		case f.ItemErrs[t.Name] != nil:
			err = f.ItemErrs[t.Name]
		case f.Topics[t.Name] != nil:
			err = fmt.Errorf("Topic '%s' already exists.", t.Name)
		default:
			f.Topics[t.Name] = &client.TopicDescription{
				Name:              t.Name,
				Partitions:        t.Topic.Partitions,
				ReplicationFactor: t.Topic.ReplicationFactor,
				Config:            t.Topic.Config.Clone(),
			}
		}
		rs = append(rs, client.ItemResult{Name: t.Name, Err: err})
	}
	return f.results(rs), nil
}

func (f *FakeAdmin) CreatePartitions(ctx context.Context, partitions []client.PartitionSpec) ([]client.ItemResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreatePartitions"); err != nil {
		return nil, err
	}
	rs := make([]client.ItemResult, 0, len(partitions))
	for _, p := range partitions {
		var err error
		t := f.Topics[p.Topic]
		switch {
		case f.ItemErrs[p.Topic] != nil:
			err = f.ItemErrs[p.Topic]
		case t == nil:
			err = fmt.Errorf("This server does not host this topic-partition.")
		case p.Count <= t.Partitions:
			err = fmt.Errorf("Topic currently has %d partitions, which is higher than the requested %d.", t.Partitions, p.Count)
		default:
			t.Partitions = p.Count
		}
		rs = append(rs, client.ItemResult{Name: p.Topic, Err: err})
	}
	return f.results(rs), nil
}

func (f *FakeAdmin) AlterConfigs(ctx context.Context, configs []client.ConfigSpec) ([]client.ItemResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("AlterConfigs"); err != nil {
		return nil, err
	}
	rs := make([]client.ItemResult, 0, len(configs))
	for _, c := range configs {
		var err error
		t := f.Topics[c.Topic]
		switch {
		case f.ItemErrs[c.Topic] != nil:
			err = f.ItemErrs[c.Topic]
		case t == nil:
			err = fmt.Errorf("This server does not host this topic-partition.")
		default:
			t.Config = c.Config.Clone()
		}
		rs = append(rs, client.ItemResult{Name: c.Topic, Err: err})
	}
	return f.results(rs), nil
}

func (f *FakeAdmin) DeleteTopics(ctx context.Context, topics []string) ([]client.ItemResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeleteTopics"); err != nil {
		return nil, err
	}
	rs := make([]client.ItemResult, 0, len(topics))
	for _, name := range topics {
		var err error
		switch {
		case f.ItemErrs[name] != nil:
			err = f.ItemErrs[name]
		case f.Topics[name] == nil:
			err = fmt.Errorf("This server does not host this topic-partition.")
		default:
			delete(f.Topics, name)
		}
		rs = append(rs, client.ItemResult{Name: name, Err: err})
	}
	return f.results(rs), nil
}

func (f *FakeAdmin) CreateACLs(ctx context.Context, acls []resource.Acl) ([]client.ItemResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateACLs"); err != nil {
		return nil, err
	}
	rs := make([]client.ItemResult, 0, len(acls))
	for _, acl := range acls {
		err := f.ItemErrs[acl.ResourceName]
		if err == nil && !slices.Contains(f.Acls, acl) {
			f.Acls = append(f.Acls, acl)
		}
		rs = append(rs, client.ItemResult{Name: acl.ResourceName, Err: err})
	}
	return f.results(rs), nil
}

func (f *FakeAdmin) DeleteACLs(ctx context.Context, acls []resource.Acl) ([]client.ItemResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeleteACLs"); err != nil {
		return nil, err
	}
	rs := make([]client.ItemResult, 0, len(acls))
	for _, acl := range acls {
		err := f.ItemErrs[acl.ResourceName]
		if err == nil {
			f.Acls = slices.DeleteFunc(f.Acls, func(a resource.Acl) bool { return a == acl })
		}
		rs = append(rs, client.ItemResult{Name: acl.ResourceName, Err: err})
	}
	return f.results(rs), nil
}

func (f *FakeAdmin) AlterQuotas(ctx context.Context, quotas []client.QuotaSpec) ([]client.ItemResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("AlterQuotas"); err != nil {
		return nil, err
	}
	rs := make([]client.ItemResult, 0, len(quotas))
	for _, q := range quotas {
		err := f.ItemErrs[q.Name]
		if err == nil {
			if q.Remove {
				delete(f.Quotas, q.Name)
			} else {
				f.Quotas[q.Name] = q.Quota
			}
		}
		rs = append(rs, client.ItemResult{Name: q.Name, Err: err})
	}
	return f.results(rs), nil
}

func (f *FakeAdmin) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// Factory returns a client.AdminFactory serving admins by cluster name.
// Unknown names fail to connect. Closed fakes keep serving so a reload can
// hand out the same instance again.
func Factory(admins map[string]*FakeAdmin) client.AdminFactory {
	var mu sync.Mutex
	return func(ctx context.Context, name string, _ config.Cluster, _ time.Duration) (client.Admin, error) {
		mu.Lock()
		defer mu.Unlock()
		a, ok := admins[name]
		if !ok {
			return nil, fmt.Errorf("connect %s: no brokers available", name)
		}
		return a, nil
	}
}
