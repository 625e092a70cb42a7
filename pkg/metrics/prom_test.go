package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestObserveOp(t *testing.T) {
	testCases := []struct {
		name         string
		cluster      string
		result       string
		wantDuration bool
	}{
		{"ok", "observe-ok", ResultOK, true},
		{"error", "observe-error", ResultError, true},
		{"not implemented", "observe-ni", ResultNotImplemented, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			series := testutil.CollectAndCount(OpDuration)

			ObserveOp(tc.cluster, "CreateTopic", tc.result, 20*time.Millisecond)
			ObserveOp(tc.cluster, "CreateTopic", tc.result, 30*time.Millisecond)

			assert.Equal(t, 2.0, testutil.ToFloat64(Ops.WithLabelValues(tc.cluster, "CreateTopic", tc.result)))
			if tc.wantDuration {
				assert.Equal(t, series+1, testutil.CollectAndCount(OpDuration))
			} else {
				assert.Equal(t, series, testutil.CollectAndCount(OpDuration))
			}
		})
	}
}

func TestStartPrometheusServerStopsOnCancel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	StartPrometheusServer(ctx, &wg, &PromServerOpts{Addr: "127.0.0.1:0", Logger: zap.New(core)})
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}

	require.Eventually(t, func() bool {
		return logs.FilterMessage("metrics server shutdown complete").Len() == 1
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, logs.FilterMessage("starting metrics server").Len())
	assert.Zero(t, logs.FilterMessage("metrics server error").Len())
}
