package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"cybertodo/internal/app"
	"cybertodo/internal/clock"
	"cybertodo/internal/config"
	"cybertodo/internal/serverapp"
	"cybertodo/internal/storage"
)

func TestServer_HealthAndReady(t *testing.T) {
	ta := newTestApp(t, t.TempDir())

	res := ta.request(http.MethodGet, "/healthz", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for /healthz, got %d", res.Code)
	}
	if rid := res.Header().Get("X-Request-Id"); rid == "" {
		t.Fatalf("expected X-Request-Id header on every response")
	}

	res = ta.request(http.MethodGet, "/readyz", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for /readyz, got %d body=%s", res.Code, res.Body.String())
	}

	res = ta.request(http.MethodPost, "/healthz", nil, "")
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for POST /healthz, got %d", res.Code)
	}
}

func TestServer_TaskFlowSurvivesRestart(t *testing.T) {
	dataDir := t.TempDir()
	ta := newTestApp(t, dataDir)

	for _, text := range []string{"jack in", "patch cyberdeck", "buy noodles"} {
		res := ta.json(http.MethodPost, "/api/tasks", map[string]any{"text": text})
		if res.Code != http.StatusCreated {
			t.Fatalf("create %q expected 201, got %d body=%s", text, res.Code, res.Body.String())
		}
	}

	list := decodeList(t, ta.request(http.MethodGet, "/api/tasks", nil, ""))
	if len(list.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(list.Tasks))
	}
	if list.Tasks[0].Text != "buy noodles" {
		t.Fatalf("expected newest task first, got %q", list.Tasks[0].Text)
	}

	id := list.Tasks[1].ID
	res := ta.request(http.MethodPost, "/api/tasks/"+id+"/toggle", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("toggle expected 200, got %d body=%s", res.Code, res.Body.String())
	}
	res = ta.json(http.MethodPatch, "/api/tasks/"+id, map[string]any{"priority": "high", "category": "gear"})
	if res.Code != http.StatusOK {
		t.Fatalf("patch expected 200, got %d body=%s", res.Code, res.Body.String())
	}
	res = ta.json(http.MethodPut, "/api/view", map[string]any{"filter": "completed"})
	if res.Code != http.StatusOK {
		t.Fatalf("set view expected 200, got %d body=%s", res.Code, res.Body.String())
	}

	restarted := newTestApp(t, dataDir)
	list = decodeList(t, restarted.request(http.MethodGet, "/api/tasks", nil, ""))
	if list.View.Filter != "completed" {
		t.Fatalf("expected persisted filter completed, got %q", list.View.Filter)
	}
	if len(list.Tasks) != 1 || list.Tasks[0].ID != id {
		t.Fatalf("expected only %s after restart, got %+v", id, list.Tasks)
	}
	if list.Tasks[0].Priority != "high" || list.Tasks[0].Category != "gear" {
		t.Fatalf("expected edits to survive restart, got %+v", list.Tasks[0])
	}
}

func TestServer_ActivityAndAccessLog(t *testing.T) {
	ta := newTestApp(t, t.TempDir())

	res := ta.json(http.MethodPost, "/api/tasks", map[string]any{"text": "scan the net"})
	if res.Code != http.StatusCreated {
		t.Fatalf("create expected 201, got %d", res.Code)
	}
	res = ta.request(http.MethodPost, "/api/tasks/complete-all", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("complete-all expected 200, got %d body=%s", res.Code, res.Body.String())
	}

	res = ta.request(http.MethodGet, "/api/activity", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("activity expected 200, got %d", res.Code)
	}
	body := decodeBodyMap(t, res)
	stats, ok := body["stats"].(map[string]any)
	if !ok {
		t.Fatalf("expected stats object, got %T", body["stats"])
	}
	if stats["added"] != float64(1) || stats["completions"] != float64(1) {
		t.Fatalf("unexpected activity stats: %v", stats)
	}

	if !strings.Contains(ta.logs.String(), `"msg":"http_request"`) {
		t.Fatalf("expected JSON access log lines, got %s", ta.logs.String())
	}
}

func TestServer_ImportExport(t *testing.T) {
	ta := newTestApp(t, t.TempDir())

	snapshot := `[{"id":"a1","text":"from backup","completed":false,"createdAt":"2026-10-01T08:00:00Z","priority":"low","category":"ops"}]`
	res := ta.request(http.MethodPost, "/api/import", strings.NewReader(snapshot), "application/json")
	if res.Code != http.StatusOK {
		t.Fatalf("import expected 200, got %d body=%s", res.Code, res.Body.String())
	}

	res = ta.request(http.MethodPost, "/api/import", strings.NewReader(`{"nope":true}`), "application/json")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("bad import expected 400, got %d", res.Code)
	}

	res = ta.request(http.MethodGet, "/api/export", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("export expected 200, got %d", res.Code)
	}
	var items []map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode export: %v body=%s", err, res.Body.String())
	}
	if len(items) != 1 || items[0]["text"] != "from backup" {
		t.Fatalf("expected imported task in export, got %v", items)
	}
}

func TestServer_PersistFailureIsReported(t *testing.T) {
	cfg := loadTestConfig(t)
	cfg.Storage.Backend = "memory"

	var logs bytes.Buffer
	a, err := app.Open(cfg, app.Options{LogOutput: &logs, Clock: clock.NewFake(testNow)})
	if err != nil {
		t.Fatalf("app.Open: %v", err)
	}
	a.KV.(*storage.MemoryKV).FailPuts = io.ErrShortWrite

	h, err := serverapp.NewHandler(serverapp.Options{App: a})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	ta := &testApp{handler: h, logs: &logs}

	res := ta.json(http.MethodPost, "/api/tasks", map[string]any{"text": "unsaved"})
	if res.Code != http.StatusCreated {
		t.Fatalf("create expected 201 despite persist failure, got %d", res.Code)
	}
	if res.Header().Get("X-Persist-Error") == "" {
		t.Fatalf("expected X-Persist-Error header")
	}
	if !strings.Contains(logs.String(), "persist_failed") {
		t.Fatalf("expected persist_failed log, got %s", logs.String())
	}
}

var testNow = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

type testApp struct {
	handler http.Handler
	logs    *bytes.Buffer
}

func newTestApp(t *testing.T, dataDir string) *testApp {
	t.Helper()

	cfg := loadTestConfig(t)
	cfg.DataDir = dataDir

	var logs bytes.Buffer
	a, err := app.Open(cfg, app.Options{LogOutput: &logs, Clock: clock.NewFake(testNow)})
	if err != nil {
		t.Fatalf("app.Open: %v", err)
	}
	h, err := serverapp.NewHandler(serverapp.Options{
		App: a,
		Now: func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	return &testApp{handler: h, logs: &logs}
}

func (a *testApp) json(method, path string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	return a.request(method, path, bytes.NewReader(b), "application/json")
}

func (a *testApp) request(method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

type listResponse struct {
	View struct {
		Filter string `json:"filter"`
	} `json:"view"`
	Tasks []struct {
		ID       string `json:"id"`
		Text     string `json:"text"`
		Priority string `json:"priority"`
		Category string `json:"category"`
	} `json:"tasks"`
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) listResponse {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("list expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var out listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode list failed: %v body=%s", err, rec.Body.String())
	}
	return out
}

func decodeBodyMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode json body failed: %v body=%s", err, rec.Body.String())
	}
	return out
}

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfgPath := filepath.Join(projectRoot(t), config.DefaultPath)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config %s: %v", cfgPath, err)
	}
	return cfg
}

func projectRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime.Caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "..", ".."))
}
