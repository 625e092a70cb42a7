package cluster

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/edgeflare/kafkaform/internal/testutil"
	"github.com/edgeflare/kafkaform/pkg/config"
	"github.com/edgeflare/kafkaform/pkg/kafka/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func noBackOff() backoff.BackOff { return &backoff.ZeroBackOff{} }

func connectorConfig(concurrency int, names ...string) *config.Connector {
	c := &config.Connector{
		Clusters:           map[string]config.Cluster{},
		OperationTimeoutMS: 1000,
		ConcurrentRequests: concurrency,
	}
	for _, name := range names {
		c.Clusters[name] = config.Cluster{
			BootstrapServers: name + ":9092",
			Auth:             config.Auth{Mechanism: config.AuthNone},
		}
	}
	return c
}

func TestRegistryInit(t *testing.T) {
	admins := map[string]*testutil.FakeAdmin{
		"a": testutil.NewFakeAdmin(),
		"b": testutil.NewFakeAdmin(),
	}
	r := NewRegistry(testutil.Factory(admins), WithBackOff(noBackOff))

	require.NoError(t, r.Init(context.Background(), connectorConfig(2, "b", "a")))
	assert.Equal(t, []string{"a", "b"}, r.Clusters())
	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("c"))
	assert.Equal(t, 2, r.Config().ConcurrentRequests)

	require.NoError(t, r.Close())
	assert.True(t, admins["a"].Closed)
	assert.True(t, admins["b"].Closed)
	assert.Empty(t, r.Clusters())
}

func TestRegistryInitRetries(t *testing.T) {
	var attempts atomic.Int32
	fake := testutil.NewFakeAdmin()
	factory := func(ctx context.Context, name string, _ config.Cluster, _ time.Duration) (client.Admin, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("no brokers available")
		}
		return fake, nil
	}

	core, logs := observer.New(zapcore.WarnLevel)
	r := NewRegistry(factory, WithBackOff(noBackOff), WithLogger(zap.New(core)))

	require.NoError(t, r.Init(context.Background(), connectorConfig(1, "a")))
	assert.Equal(t, int32(3), attempts.Load())
	assert.Equal(t, 2, logs.FilterMessage("connect attempt failed").Len())
}

func TestRegistryInitFailureKeepsPreviousState(t *testing.T) {
	admins := map[string]*testutil.FakeAdmin{
		"a": testutil.NewFakeAdmin(),
		"b": testutil.NewFakeAdmin(),
	}
	r := NewRegistry(testutil.Factory(admins), WithBackOff(noBackOff))
	require.NoError(t, r.Init(context.Background(), connectorConfig(1, "a")))

	fresh := map[string]*testutil.FakeAdmin{"b": testutil.NewFakeAdmin()}
	r.factory = testutil.Factory(fresh)

	err := r.Init(context.Background(), connectorConfig(1, "a", "b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to cluster a")

	assert.Equal(t, []string{"a"}, r.Clusters())
	assert.False(t, admins["a"].Closed)
	assert.False(t, fresh["b"].Closed, "b sorts after a and was never built")
}

func TestRegistryInitClosesPartialHandles(t *testing.T) {
	admins := map[string]*testutil.FakeAdmin{"a": testutil.NewFakeAdmin()}
	r := NewRegistry(testutil.Factory(admins), WithBackOff(noBackOff))

	err := r.Init(context.Background(), connectorConfig(1, "a", "z"))
	require.Error(t, err)
	assert.True(t, admins["a"].Closed)
	assert.Empty(t, r.Clusters())
	assert.Nil(t, r.Config())
}

func TestRegistryInitInvalidConfig(t *testing.T) {
	r := NewRegistry(testutil.Factory(nil), WithBackOff(noBackOff))
	err := r.Init(context.Background(), connectorConfig(0, "a"))
	assert.ErrorIs(t, err, config.ErrInvalidConnector)
}

func TestRegistryReloadClosesOldHandles(t *testing.T) {
	first := testutil.NewFakeAdmin()
	second := testutil.NewFakeAdmin()
	admins := map[string]*testutil.FakeAdmin{"a": first}
	r := NewRegistry(testutil.Factory(admins), WithBackOff(noBackOff))
	require.NoError(t, r.Init(context.Background(), connectorConfig(1, "a")))

	admins["a"] = second
	require.NoError(t, r.Init(context.Background(), connectorConfig(1, "a")))
	assert.True(t, first.Closed)
	assert.False(t, second.Closed)

	err := r.Do(context.Background(), "a", func(ctx context.Context, admin client.Admin) error {
		assert.Same(t, second, admin)
		return nil
	})
	require.NoError(t, err)
}

func TestRegistryDoUnknownCluster(t *testing.T) {
	r := NewRegistry(testutil.Factory(map[string]*testutil.FakeAdmin{"a": testutil.NewFakeAdmin()}), WithBackOff(noBackOff))

	called := false
	err := r.Do(context.Background(), "a", func(context.Context, client.Admin) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrClusterNotFound, "before init")

	require.NoError(t, r.Init(context.Background(), connectorConfig(1, "a")))
	err = r.Do(context.Background(), "missing", func(context.Context, client.Admin) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrClusterNotFound)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "missing", nf.Cluster)
	assert.False(t, called)
}

func TestRegistryDoAppliesTimeout(t *testing.T) {
	r := NewRegistry(testutil.Factory(map[string]*testutil.FakeAdmin{"a": testutil.NewFakeAdmin()}), WithBackOff(noBackOff))
	cfg := connectorConfig(1, "a")
	cfg.OperationTimeoutMS = 20
	require.NoError(t, r.Init(context.Background(), cfg))

	err := r.Do(context.Background(), "a", func(ctx context.Context, _ client.Admin) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(20*time.Millisecond), deadline, 20*time.Millisecond)
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistryDoBoundsConcurrency(t *testing.T) {
	const limit = 3
	admins := map[string]*testutil.FakeAdmin{"a": testutil.NewFakeAdmin(), "b": testutil.NewFakeAdmin()}
	r := NewRegistry(testutil.Factory(admins), WithBackOff(noBackOff))
	cfg := connectorConfig(limit, "a", "b")
	cfg.OperationTimeoutMS = 5000
	require.NoError(t, r.Init(context.Background(), cfg))

	var active, peak atomic.Int32
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := "a"
			if i%2 == 1 {
				name = "b"
			}
			err := r.Do(context.Background(), name, func(context.Context, client.Admin) error {
				n := active.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				active.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(limit))
	assert.Equal(t, int32(0), active.Load())
}

func TestRegistryDoReleasesPermitOnError(t *testing.T) {
	r := NewRegistry(testutil.Factory(map[string]*testutil.FakeAdmin{"a": testutil.NewFakeAdmin()}), WithBackOff(noBackOff))
	require.NoError(t, r.Init(context.Background(), connectorConfig(1, "a")))

	boom := errors.New("boom")
	for range 3 {
		err := r.Do(context.Background(), "a", func(context.Context, client.Admin) error { return boom })
		assert.ErrorIs(t, err, boom)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, r.Do(ctx, "a", func(context.Context, client.Admin) error { return nil }))
}

func TestRegistryDoCanceledWhileWaiting(t *testing.T) {
	r := NewRegistry(testutil.Factory(map[string]*testutil.FakeAdmin{"a": testutil.NewFakeAdmin()}), WithBackOff(noBackOff))
	cfg := connectorConfig(1, "a")
	cfg.OperationTimeoutMS = 5000
	require.NoError(t, r.Init(context.Background(), cfg))

	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = r.Do(context.Background(), "a", func(context.Context, client.Admin) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := r.Do(ctx, "a", func(context.Context, client.Admin) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(hold)
}

func TestRegistryDoIf(t *testing.T) {
	r := NewRegistry(testutil.Factory(map[string]*testutil.FakeAdmin{"a": testutil.NewFakeAdmin()}), WithBackOff(noBackOff))
	cfg := connectorConfig(1, "a")
	cfg.OperationTimeoutMS = 5000
	require.NoError(t, r.Init(context.Background(), cfg))

	t.Run("denied runs nothing and takes no permit", func(t *testing.T) {
		hold := make(chan struct{})
		started := make(chan struct{})
		go func() {
			_ = r.Do(context.Background(), "a", func(context.Context, client.Admin) error {
				close(started)
				<-hold
				return nil
			})
		}()
		<-started
		defer close(hold)

		called := false
		ran, err := r.DoIf(context.Background(), "a", func(*config.Connector) bool { return false },
			func(context.Context, client.Admin) error {
				called = true
				return nil
			})
		require.NoError(t, err)
		assert.False(t, ran)
		assert.False(t, called)
	})

	t.Run("unknown cluster is checked first", func(t *testing.T) {
		allowCalled := false
		ran, err := r.DoIf(context.Background(), "missing", func(*config.Connector) bool {
			allowCalled = true
			return true
		}, func(context.Context, client.Admin) error { return nil })
		assert.ErrorIs(t, err, ErrClusterNotFound)
		assert.False(t, ran)
		assert.False(t, allowCalled)
	})

	t.Run("reload waits for the guarded call", func(t *testing.T) {
		next := connectorConfig(1, "a")
		reloaded := make(chan error, 1)

		var seen *config.Connector
		ran, err := r.DoIf(context.Background(), "a", func(c *config.Connector) bool {
			seen = c
			go func() { reloaded <- r.Init(context.Background(), next) }()
			return true
		}, func(context.Context, client.Admin) error {
			select {
			case <-reloaded:
				t.Error("config swapped while the call was running")
			case <-time.After(20 * time.Millisecond):
			}
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)
		assert.Same(t, cfg, seen)

		require.NoError(t, <-reloaded)
		assert.Same(t, next, r.Config())
	})
}
