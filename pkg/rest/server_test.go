package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/edgeflare/kafkaform/internal/testutil"
	"github.com/edgeflare/kafkaform/pkg/connector"
	"github.com/edgeflare/kafkaform/pkg/httputil"
	"github.com/edgeflare/kafkaform/pkg/kafka/addr"
	"github.com/edgeflare/kafkaform/pkg/kafka/cluster"
	"github.com/edgeflare/kafkaform/pkg/kafka/exec"
	"github.com/edgeflare/kafkaform/pkg/kafka/op"
	"github.com/edgeflare/kafkaform/pkg/kafka/plan"
	"github.com/edgeflare/kafkaform/pkg/kafka/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersAddr = "kafka/default/topics/orders.yaml"

func newTestServer(t *testing.T) (http.Handler, *testutil.FakeAdmin) {
	t.Helper()
	admin := testutil.NewFakeAdmin()
	conn := connector.New(t.TempDir(),
		connector.WithAdminFactory(testutil.Factory(map[string]*testutil.FakeAdmin{"default": admin})),
		connector.WithConnectBackOff(func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	)
	require.NoError(t, conn.Init(context.Background()))
	t.Cleanup(func() { _ = conn.Close() })

	r := httputil.NewRouter()
	NewServer(conn).Register(r)
	return r, admin
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, &buf))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), rr.Body.String())
	return v
}

func ptr(s string) *string { return &s }

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t)
	rr := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestFilterAndSubpaths(t *testing.T) {
	h, _ := newTestServer(t)

	rr := do(t, h, http.MethodGet, "/v1/filter?addr="+ordersAddr, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "resource", decode[FilterResponse](t, rr).Filter)

	rr = do(t, h, http.MethodGet, "/v1/filter?addr=somewhere/else.txt", nil)
	assert.Equal(t, "none", decode[FilterResponse](t, rr).Filter)

	rr = do(t, h, http.MethodGet, "/v1/subpaths", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"kafka/default"}, decode[SubpathsResponse](t, rr).Subpaths)
}

func TestListAndGet(t *testing.T) {
	h, admin := newTestServer(t)
	admin.AddTopic("orders", resource.Topic{Partitions: 3, ReplicationFactor: 1, Config: resource.NewConfigMap("retention.ms", "1000")})

	rr := do(t, h, http.MethodGet, "/v1/list?subpath=kafka", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{ordersAddr}, decode[ListResponse](t, rr).Paths)

	rr = do(t, h, http.MethodGet, "/v1/list?subpath=kafka/other", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{}, decode[ListResponse](t, rr).Paths)

	rr = do(t, h, http.MethodGet, "/v1/get?addr="+ordersAddr, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[GetResponse](t, rr)
	assert.Equal(t, "partitions: 3\nreplication_factor: 1\nconfig:\n  retention.ms: \"1000\"\n", got.ResourceDefinition)

	req := httptest.NewRequest(http.MethodGet, "/v1/get?addr="+ordersAddr, nil)
	req.Header.Set("Accept", "text/html, application/yaml;q=0.9")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/yaml", rr.Header().Get("Content-Type"))
	assert.Equal(t, got.ResourceDefinition, rr.Body.String())
}

func TestGetErrors(t *testing.T) {
	h, _ := newTestServer(t)

	testCases := []struct {
		name string
		addr string
		want int
	}{
		{"absent topic", "kafka/default/topics/missing.yaml", http.StatusNotFound},
		{"unknown cluster", "kafka/nope/topics/orders.yaml", http.StatusNotFound},
		{"invalid address", "kafka/default/widgets/x.yaml", http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, http.MethodGet, "/v1/get?addr="+tc.addr, nil)
			assert.Equal(t, tc.want, rr.Code)
			e := decode[httputil.ErrorResponse](t, rr)
			assert.Equal(t, tc.want, e.Code)
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestPlanAndOpExec(t *testing.T) {
	h, admin := newTestServer(t)
	desired := string(testutil.MustFixture(t, "topic.yaml"))

	rr := do(t, h, http.MethodPost, "/v1/plan", PlanRequest{Addr: ordersAddr, Desired: &desired})
	require.Equal(t, http.StatusOK, rr.Code)
	steps := decode[PlanResponse](t, rr).Steps
	require.Len(t, steps, 1)
	assert.Equal(t, "Create topic with 6 partitions and replication factor 3", steps[0].FriendlyMessage)

	rr = do(t, h, http.MethodPost, "/v1/op_exec", OpExecRequest{Addr: ordersAddr, Op: steps[0].Op})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode[connector.OpExecResponse](t, rr)
	assert.Equal(t, "Created topic 'orders' in cluster 'default'", resp.FriendlyMessage)
	assert.Equal(t, "orders", resp.Outputs["topic"])
	assert.Contains(t, admin.Topics, "orders")

	// the cluster now matches the document
	rr = do(t, h, http.MethodGet, "/v1/get?addr="+ordersAddr, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	current := decode[GetResponse](t, rr).ResourceDefinition
	rr = do(t, h, http.MethodPost, "/v1/plan", PlanRequest{Addr: ordersAddr, Current: &current, Desired: &desired})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[PlanResponse](t, rr).Steps)
}

func TestPlanErrors(t *testing.T) {
	h, _ := newTestServer(t)

	testCases := []struct {
		name string
		req  PlanRequest
	}{
		{"replication factor change", PlanRequest{
			Addr:    ordersAddr,
			Current: ptr("partitions: 3\nreplication_factor: 3\n"),
			Desired: ptr("partitions: 3\nreplication_factor: 1\n"),
		}},
		{"unknown field", PlanRequest{Addr: ordersAddr, Desired: ptr("partitions: 3\nbogus: true\n")}},
		{"invalid address", PlanRequest{Addr: "kafka/default/topics/orders", Desired: ptr("partitions: 3\n")}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/v1/plan", tc.req)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
}

func TestOpExecErrors(t *testing.T) {
	h, admin := newTestServer(t)
	admin.ItemErrs["orders"] = errors.New("Topic 'orders' already exists.")

	create, err := op.Marshal(op.CreateTopic{Topic: resource.DefaultTopic()})
	require.NoError(t, err)

	testCases := []struct {
		name string
		req  OpExecRequest
		want int
	}{
		{"remote failure", OpExecRequest{Addr: ordersAddr, Op: string(create)}, http.StatusBadGateway},
		{"malformed op", OpExecRequest{Addr: ordersAddr, Op: `{"op":"DropEverything"}`}, http.StatusBadRequest},
		{"op on config address", OpExecRequest{Addr: "kafka/config.yaml", Op: string(create)}, http.StatusBadRequest},
		{"unknown cluster", OpExecRequest{Addr: "kafka/nope/topics/orders.yaml", Op: string(create)}, http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rr := do(t, h, http.MethodPost, "/v1/op_exec", tc.req)
			assert.Equal(t, tc.want, rr.Code, rr.Body.String())
		})
	}
}

func TestOpExecTimeout(t *testing.T) {
	h, admin := newTestServer(t)
	admin.Err = fmt.Errorf("create topics: %w", context.DeadlineExceeded)

	create, err := op.Marshal(op.CreateTopic{Topic: resource.DefaultTopic()})
	require.NoError(t, err)

	rr := do(t, h, http.MethodPost, "/v1/op_exec", OpExecRequest{Addr: ordersAddr, Op: string(create)})
	assert.Equal(t, http.StatusGatewayTimeout, rr.Code, rr.Body.String())
	assert.Contains(t, admin.CallLog(), "CreateTopics")
}

func TestDiagAndEq(t *testing.T) {
	h, _ := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/v1/diag", DiagRequest{Addr: ordersAddr, Body: "partitions: 3\n"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, decode[connector.DiagnosticResponse](t, rr).Diagnostics)

	rr = do(t, h, http.MethodPost, "/v1/diag", DiagRequest{Addr: ordersAddr, Body: "partitions: 3\nbogus: 1\n"})
	require.Equal(t, http.StatusOK, rr.Code)
	diags := decode[connector.DiagnosticResponse](t, rr).Diagnostics
	require.Len(t, diags, 1)
	assert.Equal(t, connector.SeverityError, diags[0].Severity)

	rr = do(t, h, http.MethodPost, "/v1/eq", EqRequest{
		Addr: ordersAddr,
		A:    "partitions: 3\nconfig:\n  a: \"1\"\n  b: \"2\"\n",
		B:    "config: {b: \"2\", a: \"1\"}\npartitions: 3\n",
	})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decode[EqResponse](t, rr).Equal)
}

func TestSkeletonsAndTaskExec(t *testing.T) {
	h, _ := newTestServer(t)

	rr := do(t, h, http.MethodGet, "/v1/skeletons", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	skeletons := decode[SkeletonsResponse](t, rr).Skeletons
	require.Len(t, skeletons, 4)
	assert.Equal(t, addr.Encode(addr.Config()), skeletons[0].Addr)
	assert.Contains(t, skeletons[1].Body, "retention.ms")

	rr = do(t, h, http.MethodPost, "/v1/task_exec", TaskExecRequest{Addr: "kafka/task.yaml"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodPost, "/v1/task_exec", TaskExecRequest{Addr: "nope"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestBindRejectsUnknownFields(t *testing.T) {
	h, _ := newTestServer(t)
	rr := do(t, h, http.MethodPost, "/v1/plan", map[string]string{"addr": ordersAddr, "wanted": "x"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestReload(t *testing.T) {
	h, _ := newTestServer(t)
	rr := do(t, h, http.MethodPost, "/v1/reload", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{"kafka/default"}, decode[SubpathsResponse](t, rr).Subpaths)
}

func TestStatusFor(t *testing.T) {
	testCases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrapped: %w", addr.ErrInvalidAddress), http.StatusBadRequest},
		{resource.ErrDeserialize, http.StatusBadRequest},
		{plan.ErrImmutableField, http.StatusBadRequest},
		{exec.ErrInvalidOp, http.StatusBadRequest},
		{&cluster.NotFoundError{Cluster: "x"}, http.StatusNotFound},
		{&exec.RemoteOperationError{Action: "create topic", Resource: "t", Err: errors.New("boom")}, http.StatusBadGateway},
		{exec.ErrNoResultReturned, http.StatusBadGateway},
		{&exec.RemoteOperationError{Action: "create topic", Resource: "t", Err: fmt.Errorf("call: %w", context.DeadlineExceeded)}, http.StatusGatewayTimeout},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			assert.Equal(t, tc.want, statusFor(tc.err))
		})
	}
}

func TestAPIMiddleware(t *testing.T) {
	admin := testutil.NewFakeAdmin()
	conn := connector.New(t.TempDir(),
		connector.WithAdminFactory(testutil.Factory(map[string]*testutil.FakeAdmin{"default": admin})),
	)
	require.NoError(t, conn.Init(context.Background()))
	t.Cleanup(func() { _ = conn.Close() })

	deny := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httputil.Error(w, http.StatusUnauthorized, "denied")
		})
	}
	r := httputil.NewRouter()
	NewServer(conn, WithAPIMiddleware(deny)).Register(r)

	assert.Equal(t, http.StatusOK, do(t, r, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/v1/subpaths", nil).Code)
}
