package kafkatest

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/edgeflare/kafkaform/pkg/config"
	"github.com/edgeflare/kafkaform/pkg/kafka/client"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// BrokersEnv names the variable holding a comma-separated broker list for
// tests against a live cluster.
const BrokersEnv = "TEST_KAFKA_BROKERS"

// Cluster returns the cluster config for the live test broker, skipping the
// test when none is configured.
func Cluster(t testing.TB) config.Cluster {
	brokers := os.Getenv(BrokersEnv)
	if brokers == "" {
		t.Skipf("%s not set", BrokersEnv)
	}
	return config.Cluster{
		BootstrapServers: brokers,
		Auth:             config.Auth{Mechanism: config.AuthNone},
	}
}

// Connect creates an admin handle for the live test broker, closed on cleanup.
func Connect(ctx context.Context, t testing.TB) client.Admin {
	cluster := Cluster(t)

	admin, err := client.NewSaramaAdmin(ctx, "test", cluster, 30*time.Second, zaptest.NewLogger(t))
	require.NoError(t, err)

	t.Cleanup(func() {
		Close(t, admin)
	})

	return admin
}

// Close safely closes an admin handle
func Close(t testing.TB, admin client.Admin) {
	require.NoError(t, admin.Close())
}

// WithAdmin provides an admin handle to a test function and handles cleanup
func WithAdmin(t testing.TB, fn func(client.Admin)) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	fn(Connect(ctx, t))
}
