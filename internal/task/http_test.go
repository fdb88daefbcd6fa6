package task

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cybertodo/internal/model"
)

func newHandlerForTests(t *testing.T) (http.Handler, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	mux := http.NewServeMux()
	NewHandler(env.store).Register(mux)
	return mux, env
}

func jsonReq(method, path string, body any) *http.Request {
	var b []byte
	if body != nil {
		b, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) model.Task {
	t.Helper()
	var out model.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHTTP_CreateAndList(t *testing.T) {
	h, _ := newHandlerForTests(t)

	rec := serve(h, jsonReq(http.MethodPost, "/api/tasks", map[string]any{"text": "  buy milk "}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeTask(t, rec)
	assert.Equal(t, "buy milk", created.Text)

	rec = serve(h, jsonReq(http.MethodPost, "/api/tasks", map[string]any{"text": "  "}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, jsonReq(http.MethodPost, "/api/tasks", map[string]any{"title": "x"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")

	rec = serve(h, jsonReq(http.MethodGet, "/api/tasks?q=MILK", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var out struct {
		View  ViewState    `json:"view"`
		Tasks []model.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, "MILK", out.View.SearchTerm)
	require.Len(t, out.Tasks, 1)
	assert.Equal(t, created.ID, out.Tasks[0].ID)

	rec = serve(h, jsonReq(http.MethodGet, "/api/tasks?filter=done", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_ItemLifecycle(t *testing.T) {
	h, env := newHandlerForTests(t)
	task := mustAdd(t, env.store, "write report")[0]
	path := "/api/tasks/" + string(task.ID)

	rec := serve(h, jsonReq(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, jsonReq(http.MethodPatch, path, map[string]any{
		"text":     "write final report",
		"priority": "HIGH",
		"category": "work",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decodeTask(t, rec)
	assert.Equal(t, "write final report", got.Text)
	assert.Equal(t, model.PriorityHigh, got.Priority)
	assert.Equal(t, "work", got.Category)

	rec = serve(h, jsonReq(http.MethodPatch, path, map[string]any{"text": "ok", "priority": "urgent"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	cur, _ := env.store.Get(task.ID)
	assert.Equal(t, "write final report", cur.Text, "rejected patch must not apply partially")

	rec = serve(h, jsonReq(http.MethodPost, path+"/toggle", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeTask(t, rec).Completed)

	rec = serve(h, jsonReq(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(h, jsonReq(http.MethodDelete, path, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code, "delete is idempotent")

	rec = serve(h, jsonReq(http.MethodGet, path, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(h, jsonReq(http.MethodPost, path+"/toggle", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = serve(h, jsonReq(http.MethodPatch, path, map[string]any{"text": "x"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTP_EditMode(t *testing.T) {
	h, env := newHandlerForTests(t)
	task := mustAdd(t, env.store, "a")[0]
	path := "/api/tasks/" + string(task.ID) + "/edit"

	rec := serve(h, jsonReq(http.MethodPut, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, task.ID, env.store.View().EditingID)

	rec = serve(h, jsonReq(http.MethodDelete, path, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.store.View().EditingID)

	rec = serve(h, jsonReq(http.MethodPut, "/api/tasks/ghost/edit", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTP_CollectionActions(t *testing.T) {
	h, env := newHandlerForTests(t)
	tasks := mustAdd(t, env.store, "c", "b", "a")

	rec := serve(h, jsonReq(http.MethodPost, "/api/tasks/reorder", map[string]any{"from": 0, "to": 2}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"b", "c", "a"}, texts(env.store.Tasks()))

	rec = serve(h, jsonReq(http.MethodPost, "/api/tasks/reorder", map[string]any{"from": 0, "to": 9}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = serve(h, jsonReq(http.MethodPost, "/api/tasks/reorder", map[string]any{"from": 0}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, jsonReq(http.MethodPost, "/api/tasks/bulk", map[string]any{
		"action":   "priority",
		"ids":      []string{string(tasks[0].ID), "ghost"},
		"priority": "low",
	}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"affected":1}`, rec.Body.String())

	rec = serve(h, jsonReq(http.MethodPost, "/api/tasks/bulk", map[string]any{"action": "explode"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, jsonReq(http.MethodPost, "/api/tasks/complete-all", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"completed":true}`, rec.Body.String())

	rec = serve(h, jsonReq(http.MethodPost, "/api/tasks/bulk", map[string]any{
		"action": "complete",
		"ids":    []string{string(tasks[1].ID)},
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, jsonReq(http.MethodPost, "/api/tasks/clear-completed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":3}`, rec.Body.String())

	rec = serve(h, jsonReq(http.MethodGet, "/api/tasks/clear-completed", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHTTP_ViewAndStats(t *testing.T) {
	h, env := newHandlerForTests(t)
	tasks := mustAdd(t, env.store, "a", "b")
	_, _ = env.store.ToggleTask(tasks[0].ID)

	rec := serve(h, jsonReq(http.MethodPut, "/api/view", map[string]any{"filter": "completed", "search": "a"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ViewState{Filter: model.FilterCompleted, SearchTerm: "a"}, env.store.View())

	rec = serve(h, jsonReq(http.MethodPut, "/api/view", map[string]any{"filter": "nope"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, jsonReq(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var st Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 1, st.Completed)
	assert.Equal(t, 0, st.ByPriority[model.PriorityLow])
}

func TestHTTP_ExportImportReset(t *testing.T) {
	h, env := newHandlerForTests(t)
	mustAdd(t, env.store, "a", "b")

	rec := serve(h, jsonReq(http.MethodGet, "/api/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	exported := rec.Body.Bytes()

	rec = serve(h, jsonReq(http.MethodPost, "/api/reset", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, env.store.Len())

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader([]byte("not json"))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, env.store.Len())

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/api/import", bytes.NewReader(exported)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"b", "a"}, texts(env.store.Tasks()))

	rec = serve(h, jsonReq(http.MethodGet, "/api/export?format=yaml", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "yaml")

	rec = serve(h, jsonReq(http.MethodGet, "/api/export?format=xml", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTP_PersistFailureStillSucceeds(t *testing.T) {
	h, env := newHandlerForTests(t)
	env.kv.FailPuts = errors.New("disk full")

	rec := serve(h, jsonReq(http.MethodPost, "/api/tasks", map[string]any{"text": "a"}))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Header().Get("X-Persist-Error"), "disk full")
	assert.Equal(t, 1, env.store.Len())
}
