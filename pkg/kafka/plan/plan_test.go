package plan

import (
	"strconv"
	"testing"

	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"github.com/edgeflare/kafkaform/pkg/kafka/op"
	"github.com/edgeflare/kafkaform/pkg/kafka/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	topicAddr = addr.Topic("prod", "orders")
	aclAddr   = addr.Acl("prod", "orders-reader")
	quotaAddr = addr.Quota("prod", "batch")
)

func topicYAML(partitions, rf int, config ...string) []byte {
	s := "partitions: " + strconv.Itoa(partitions) + "\nreplication_factor: " + strconv.Itoa(rf) + "\n"
	if len(config) > 0 {
		s += "config:\n"
		for i := 0; i+1 < len(config); i += 2 {
			s += "  " + config[i] + ": \"" + config[i+1] + "\"\n"
		}
	}
	return []byte(s)
}

const aclReadYAML = `resource_type: Topic
resource_name: orders
pattern_type: Literal
principal: {type: User, name: alice}
operation: Read
permission: Allow
`

const aclWriteYAML = `resource_type: Topic
resource_name: orders
pattern_type: Literal
principal: {type: User, name: alice}
operation: Write
permission: Allow
`

const quotaYAML = `entities:
  - entity_type: User
    name: alice
producer_byte_rate: 1024
`

func opsOf(steps []Step) []op.Op {
	out := make([]op.Op, len(steps))
	for i, s := range steps {
		out[i] = s.Op
	}
	return out
}

func assertOps(t *testing.T, want []op.Op, steps []Step) {
	t.Helper()
	got := opsOf(steps)
	require.Len(t, got, len(want), "ops: %#v", got)
	for i := range want {
		assert.True(t, op.Equal(want[i], got[i]), "op %d: want %#v, got %#v", i, want[i], got[i])
	}
}

func TestPlanTopic(t *testing.T) {
	testCases := []struct {
		name    string
		current []byte
		desired []byte
		want    []op.Op
		desc    []string
	}{
		{
			name: "absent to absent",
		},
		{
			name:    "create",
			desired: topicYAML(3, 2, "retention.ms", "1000"),
			want:    []op.Op{op.CreateTopic{Topic: resource.Topic{Partitions: 3, ReplicationFactor: 2, Config: resource.NewConfigMap("retention.ms", "1000")}}},
			desc:    []string{"Create topic with 3 partitions and replication factor 2"},
		},
		{
			name:    "delete",
			current: topicYAML(3, 2),
			want:    []op.Op{op.DeleteTopic{}},
			desc:    []string{"Delete topic"},
		},
		{
			name:    "unchanged",
			current: topicYAML(3, 2, "a", "1", "b", "2"),
			desired: topicYAML(3, 2, "b", "2", "a", "1"),
		},
		{
			name:    "partitions increase",
			current: topicYAML(3, 1),
			desired: topicYAML(5, 1),
			want:    []op.Op{op.UpdateTopicPartitions{Partitions: 5}},
			desc:    []string{"Increase partitions from 3 to 5"},
		},
		{
			name:    "config change",
			current: topicYAML(3, 1, "retention.ms", "1000"),
			desired: topicYAML(3, 1, "retention.ms", "2000"),
			want:    []op.Op{op.UpdateTopicConfig{Config: resource.NewConfigMap("retention.ms", "2000")}},
			desc:    []string{"Update topic configuration"},
		},
		{
			name:    "config carries the full desired map",
			current: topicYAML(3, 1, "retention.ms", "1000", "cleanup.policy", "delete"),
			desired: topicYAML(3, 1, "retention.ms", "2000", "cleanup.policy", "delete"),
			want:    []op.Op{op.UpdateTopicConfig{Config: resource.NewConfigMap("retention.ms", "2000", "cleanup.policy", "delete")}},
		},
		{
			name:    "config key removed",
			current: topicYAML(3, 1, "retention.ms", "1000"),
			desired: topicYAML(3, 1),
			want:    []op.Op{op.UpdateTopicConfig{}},
		},
		{
			name:    "partitions and config",
			current: topicYAML(3, 1, "retention.ms", "1000"),
			desired: topicYAML(6, 1, "retention.ms", "2000"),
			want: []op.Op{
				op.UpdateTopicPartitions{Partitions: 6},
				op.UpdateTopicConfig{Config: resource.NewConfigMap("retention.ms", "2000")},
			},
			desc: []string{"Increase partitions from 3 to 6", "Update topic configuration"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			steps, err := Plan(topicAddr, tc.current, tc.desired)
			require.NoError(t, err)
			assertOps(t, tc.want, steps)
			for i, d := range tc.desc {
				assert.Equal(t, d, steps[i].Description)
			}
		})
	}
}

func TestPlanTopicValidation(t *testing.T) {
	testCases := []struct {
		name    string
		current []byte
		desired []byte
		reason  error
		field   string
	}{
		{"partitions decrease", topicYAML(5, 1), topicYAML(3, 1), ErrUnsupportedTransition, "partitions"},
		{"replication factor change", topicYAML(3, 2), topicYAML(3, 3), ErrImmutableField, "replication_factor"},
		{"replication change with partitions increase", topicYAML(3, 2), topicYAML(6, 3), ErrImmutableField, "replication_factor"},
		{"decrease with config change", topicYAML(5, 1, "a", "1"), topicYAML(3, 1, "a", "2"), ErrUnsupportedTransition, "partitions"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			steps, err := Plan(topicAddr, tc.current, tc.desired)
			assert.Nil(t, steps)
			require.ErrorIs(t, err, tc.reason)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
		})
	}
}

func TestPlanDeserializeFailure(t *testing.T) {
	steps, err := Plan(topicAddr, []byte("partitions: many\n"), topicYAML(3, 1))
	assert.Nil(t, steps)
	assert.ErrorIs(t, err, resource.ErrDeserialize)
	assert.Contains(t, err.Error(), "current")

	steps, err = Plan(aclAddr, nil, []byte("resource_type: Topic\n"))
	assert.Nil(t, steps)
	assert.ErrorIs(t, err, resource.ErrDeserialize)
	assert.Contains(t, err.Error(), "desired")

	// a topic payload is not a quota payload
	_, err = Plan(quotaAddr, nil, topicYAML(1, 1))
	assert.ErrorIs(t, err, resource.ErrDeserialize)
}

func TestPlanRejectsUncomparablePayloads(t *testing.T) {
	testCases := []struct {
		name    string
		a       addr.Address
		current []byte
		desired []byte
	}{
		{
			name:    "nan quota rate on both sides",
			a:       quotaAddr,
			current: []byte("entities: []\nproducer_byte_rate: .nan\n"),
			desired: []byte("entities: []\nproducer_byte_rate: .nan\n"),
		},
		{
			name:    "extra document hides unknown field",
			a:       topicAddr,
			current: topicYAML(3, 1),
			desired: []byte("partitions: 3\n---\npartitions: 1\nbogus: 1\n"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			steps, err := Plan(tc.a, tc.current, tc.desired)
			assert.Nil(t, steps)
			assert.ErrorIs(t, err, resource.ErrDeserialize)
		})
	}
}

func TestPlanAcl(t *testing.T) {
	read, err := resource.Deserialize(aclAddr, []byte(aclReadYAML))
	require.NoError(t, err)
	write, err := resource.Deserialize(aclAddr, []byte(aclWriteYAML))
	require.NoError(t, err)
	readAcl, _ := resource.AsAcl(read)
	writeAcl, _ := resource.AsAcl(write)

	t.Run("create", func(t *testing.T) {
		steps, err := Plan(aclAddr, nil, []byte(aclReadYAML))
		require.NoError(t, err)
		assertOps(t, []op.Op{op.CreateAcl{Acl: readAcl}}, steps)
		assert.Equal(t, "Create ACL for User:alice on orders", steps[0].Description)
	})

	t.Run("delete carries current", func(t *testing.T) {
		steps, err := Plan(aclAddr, []byte(aclReadYAML), nil)
		require.NoError(t, err)
		assertOps(t, []op.Op{op.DeleteAcl{Acl: readAcl}}, steps)
	})

	t.Run("unchanged", func(t *testing.T) {
		steps, err := Plan(aclAddr, []byte(aclReadYAML), []byte(aclReadYAML))
		require.NoError(t, err)
		assert.Empty(t, steps)
	})

	t.Run("replace is delete then create", func(t *testing.T) {
		steps, err := Plan(aclAddr, []byte(aclReadYAML), []byte(aclWriteYAML))
		require.NoError(t, err)
		assertOps(t, []op.Op{op.DeleteAcl{Acl: readAcl}, op.CreateAcl{Acl: writeAcl}}, steps)
		assert.Equal(t, "Delete old ACL", steps[0].Description)
		assert.Equal(t, "Create new ACL for User:alice on orders", steps[1].Description)
	})
}

func TestPlanQuota(t *testing.T) {
	r, err := resource.Deserialize(quotaAddr, []byte(quotaYAML))
	require.NoError(t, err)
	q, _ := resource.AsQuota(r)

	changed := q
	changed.ConsumerByteRate = resource.Rate(0)
	changedYAML, err := resource.Serialize(changed)
	require.NoError(t, err)

	testCases := []struct {
		name    string
		current []byte
		desired []byte
		want    []op.Op
	}{
		{"absent to absent", nil, nil, nil},
		{"create", nil, []byte(quotaYAML), []op.Op{op.CreateQuota{Quota: q}}},
		{"delete", []byte(quotaYAML), nil, []op.Op{op.DeleteQuota{Quota: q}}},
		{"unchanged", []byte(quotaYAML), []byte(quotaYAML), nil},
		{"rate set to zero", []byte(quotaYAML), changedYAML, []op.Op{op.UpdateQuota{Quota: changed}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			steps, err := Plan(quotaAddr, tc.current, tc.desired)
			require.NoError(t, err)
			assertOps(t, tc.want, steps)
		})
	}
}

func TestPlanControlAddresses(t *testing.T) {
	for _, a := range []addr.Address{addr.Config(), addr.Task("")} {
		steps, err := Plan(a, []byte("anything"), []byte("else"))
		assert.NoError(t, err)
		assert.Empty(t, steps)
	}
}

func TestPlanDeterministic(t *testing.T) {
	current := topicYAML(3, 1, "retention.ms", "1000", "cleanup.policy", "delete")
	desired := topicYAML(9, 1, "cleanup.policy", "compact", "retention.ms", "1000")

	first, err := Plan(topicAddr, current, desired)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Plan(topicAddr, current, desired)
		require.NoError(t, err)
		require.Len(t, again, len(first))
		for j := range first {
			assert.True(t, op.Equal(first[j].Op, again[j].Op))
			assert.Equal(t, first[j].Description, again[j].Description)
		}
	}
}
