package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanonone/kektorgraph/pkg/core/types"
	"github.com/sanonone/kektorgraph/pkg/engine"
	"github.com/sanonone/kektorgraph/pkg/fetcher"
	"github.com/sanonone/kektorgraph/pkg/fetcher/memory"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func vid(id string) types.VertexID {
	return types.VertexID{Service: "social", Column: "user_id", ID: id}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	require.NoError(t, store.AddEdges([]types.Edge{
		{Src: vid("v"), Tgt: vid("a"), Label: "knows", Weight: 0.9},
		{Src: vid("v"), Tgt: vid("b"), Label: "knows", Weight: 0.5},
	}))
	reg := fetcher.NewRegistry(quiet)
	require.NoError(t, reg.Add("mem", fetcher.WrapSource("mem", store, quiet)))
	eng := engine.New(reg, nil, engine.Options{Logger: quiet})
	s := NewServer(eng, ":0", quiet)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.cancel()
		eng.Close()
	})
	return ts
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

const knowsQuery = `{
	"start": [{"service": "social", "column": "user_id", "id": "v"}],
	"steps": [{"params": [{"label": "knows", "direction": "out", "limit": 2}]}]
}`

func TestHealthzAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	post(t, ts.URL+"/v1/traverse", knowsQuery)
	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "kektorgraph_traversals_total")
}

func TestTraverse(t *testing.T) {
	ts := newTestServer(t)
	resp := post(t, ts.URL+"/v1/traverse", knowsQuery)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decode[TraverseResponse](t, resp)
	require.Len(t, out.Edges, 2)
	assert.Equal(t, "a", out.Edges[0].Tgt.ID)
	assert.InDelta(t, 0.9, out.Edges[0].Score, 1e-9)
	assert.Equal(t, "b", out.Edges[1].Tgt.ID)
	assert.False(t, out.Partial)
	assert.NotEmpty(t, out.TraversalID)
}

func TestTraverseErrors(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts.URL+"/v1/traverse", `{"start": [`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts.URL+"/v1/traverse", `{"start": [], "steps": [], "bogus": 1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = post(t, ts.URL+"/v1/traverse", `{
		"start": [{"service": "social", "column": "user_id", "id": "v"}],
		"steps": [{"params": [{"label": "knows", "limit": -1}]}]
	}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decode[ErrorResponse](t, resp)
	assert.Equal(t, string(engine.KindInvalid), e.Kind)

	resp, err := http.Get(ts.URL + "/v1/nothing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAsyncTraverse(t *testing.T) {
	ts := newTestServer(t)
	resp := post(t, ts.URL+"/v1/traverse", `{
		"async": true,
		"start": [{"service": "social", "column": "user_id", "id": "v"}],
		"steps": [{"params": [{"label": "knows"}]}]
	}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	task := decode[TaskView](t, resp)
	require.NotEmpty(t, task.ID)

	require.Eventually(t, func() bool {
		r, err := http.Get(ts.URL + "/v1/tasks/" + task.ID)
		if err != nil {
			return false
		}
		defer r.Body.Close()
		var v TaskView
		if json.NewDecoder(r.Body).Decode(&v) != nil {
			return false
		}
		task = v
		return v.Status != TaskStatusRunning
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, TaskStatusCompleted, task.Status)
	require.NotNil(t, task.Result)
	assert.Len(t, task.Result.Edges, 2)

	r, err := http.Get(ts.URL + "/v1/tasks/unknown")
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusNotFound, r.StatusCode)
}

func TestBackends(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/v1/backends")
	require.NoError(t, err)
	defer resp.Body.Close()
	out := decode[BackendsResponse](t, resp)
	assert.Equal(t, []string{"mem"}, out.Backends)
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)

	resp := post(t, ts.URL+"/v1/traverse", knowsQuery)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/v1/backends", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "trace-42")
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, "trace-42", r.Header.Get(requestIDHeader))
}

func TestRecoveryMiddleware(t *testing.T) {
	s := &Server{logger: quiet}
	h := s.RecoveryMiddleware(s.LoggingMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestTaskSweep(t *testing.T) {
	tm := NewTaskManager()
	running := tm.NewTask()
	done := tm.NewTask()
	done.Complete(&TraverseResponse{})
	failed := tm.NewTask()
	failed.Fail(&ErrorResponse{Error: "boom"})

	assert.Equal(t, 0, tm.Sweep(time.Now(), TaskTTL), "fresh tasks stay readable")
	assert.Equal(t, 3, tm.Len())

	assert.Equal(t, 2, tm.Sweep(time.Now().Add(TaskTTL+time.Second), TaskTTL))
	_, ok := tm.GetTask(running.id)
	assert.True(t, ok, "running tasks are never evicted")
	_, ok = tm.GetTask(done.id)
	assert.False(t, ok)
	_, ok = tm.GetTask(failed.id)
	assert.False(t, ok)
}
