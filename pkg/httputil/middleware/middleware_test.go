package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edgeflare/kafkaform/pkg/httputil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChain(t *testing.T) {
	var order []string
	mark := func(name string) httputil.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(mark("first"), mark("second"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"first", "second", "handler"}, order)

	order = nil
	Chain()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"handler"}, order)
}

func TestRecover(t *testing.T) {
	logger, logs := newTestLogger()
	h := Chain(LoggerWithOptions(&LoggerOptions{Logger: logger}), Recover)(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("nil admin") }),
	)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/plan", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body httputil.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Internal Server Error", body.Message)

	recovered := logs.FilterMessage("panic recovered").All()
	require.Len(t, recovered, 1)
	assert.Equal(t, "nil admin", recovered[0].ContextMap()["panic"])
	assert.Equal(t, "/v1/plan", recovered[0].ContextMap()["path"])

	responses := logs.FilterMessage("response").All()
	require.Len(t, responses, 1)
	assert.EqualValues(t, http.StatusInternalServerError, responses[0].ContextMap()["status"])
}

func TestRecoverReraisesAbort(t *testing.T) {
	h := Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic(http.ErrAbortHandler) }))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
