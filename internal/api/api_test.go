package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sprite-ai/prlens/internal/fetch"
	"github.com/sprite-ai/prlens/internal/jobs"
	"github.com/sprite-ai/prlens/internal/model"
	"github.com/sprite-ai/prlens/internal/queue"
	"github.com/sprite-ai/prlens/internal/store"
)

const testDiff = `diff --git a/app.py b/app.py
index abc1234..def5678 100644
--- a/app.py
+++ b/app.py
@@ -1,2 +1,3 @@
 import os
+if x == None:
 pass
`

const testContent = "import os\nif x == None:\npass"

type stubFetcher struct{}

func (stubFetcher) PRMetadata(context.Context, fetch.Repo, int) (*model.PRMetadata, error) {
	return &model.PRMetadata{HeadSHA: "abc"}, nil
}

func (stubFetcher) ChangedFiles(context.Context, fetch.Repo, int) ([]model.ChangedFile, error) {
	return []model.ChangedFile{{Path: "app.py", Status: model.FileModified}}, nil
}

func (stubFetcher) DiffText(context.Context, fetch.Repo, int) (string, error) {
	return testDiff, nil
}

func (stubFetcher) FileContent(context.Context, fetch.Repo, string, string) (string, error) {
	return testContent, nil
}

type stubFactory struct{}

func (stubFactory) Supports(fetch.Repo) error { return nil }

func (stubFactory) For(fetch.Repo, string) (fetch.Fetcher, error) { return stubFetcher{}, nil }

// heldQueue keeps tasks until the test runs them.
type heldQueue struct {
	mu    sync.Mutex
	tasks []queue.Task
}

func (q *heldQueue) Enqueue(_ context.Context, t queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	return nil
}

func (q *heldQueue) pop() queue.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	return t
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	srv   *Server
	orch  *jobs.Orchestrator
	queue *heldQueue
}

func newTestEnv(health Pinger) *testEnv {
	q := &heldQueue{}
	orch := jobs.NewOrchestrator(store.NewMemory(), q, stubFactory{}, jobs.Options{})
	return &testEnv{
		srv:   New(":0", orch, health, WithWatchInterval(10*time.Millisecond), WithVersion("test")),
		orch:  orch,
		queue: q,
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(w, req)
	return w
}

func (e *testEnv) submit(t *testing.T) string {
	t.Helper()
	body, _ := json.Marshal(analyzeRequest{RepoURL: "https://github.com/acme/widgets", PRNumber: 7})
	w := e.do(http.MethodPost, "/analyze-pr", string(body))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp analyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	return resp.TaskID
}

func TestRootEndpoint(t *testing.T) {
	env := newTestEnv(nil)
	w := env.do(http.MethodGet, "/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp rootResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if resp.Version != "test" || resp.Endpoints["analyze"] != "POST /analyze-pr" {
		t.Errorf("unexpected root response %+v", resp)
	}
}

func TestHealthEndpoint(t *testing.T) {
	tests := []struct {
		name   string
		health Pinger
		code   int
		status string
	}{
		{"no store", nil, http.StatusOK, "ok"},
		{"store up", pinger{}, http.StatusOK, "ok"},
		{"store down", pinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestEnv(tt.health).do(http.MethodGet, "/health", "")
			if w.Code != tt.code {
				t.Errorf("expected %d, got %d", tt.code, w.Code)
			}
			var resp healthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("json decode: %v", err)
			}
			if resp.Status != tt.status {
				t.Errorf("expected status %q, got %q", tt.status, resp.Status)
			}
		})
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	env := newTestEnv(nil)

	w := env.do(http.MethodPost, "/analyze-pr", `{"repo_url":"acme/widgets","pr_number":3,"github_token":"t0k"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp analyzeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if resp.TaskID == "" || resp.Status != model.JobPending || resp.Message == "" {
		t.Errorf("unexpected response %+v", resp)
	}
	if len(env.queue.tasks) != 1 || env.queue.tasks[0].Credential != "t0k" {
		t.Errorf("expected one task carrying the token, got %+v", env.queue.tasks)
	}
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"invalid json", "{bad json", http.StatusBadRequest},
		{"wrong type", `{"repo_url":"acme/widgets","pr_number":"seven"}`, http.StatusBadRequest},
		{"missing repo", `{"pr_number":1}`, http.StatusUnprocessableEntity},
		{"bad repo", `{"repo_url":"ftp://example.com/x","pr_number":1}`, http.StatusUnprocessableEntity},
		{"zero pr", `{"repo_url":"acme/widgets","pr_number":0}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(nil)
			w := env.do(http.MethodPost, "/analyze-pr", tt.body)
			if w.Code != tt.code {
				t.Errorf("expected %d, got %d: %s", tt.code, w.Code, w.Body.String())
			}
			if len(env.queue.tasks) != 0 {
				t.Error("rejected request must not enqueue a task")
			}
		})
	}
}

func TestUnknownTask(t *testing.T) {
	env := newTestEnv(nil)
	for _, path := range []string{"/status/nope", "/results/nope", "/ws/nope"} {
		w := env.do(http.MethodGet, path, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, w.Code)
		}
		var resp map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("json decode: %v", err)
		}
		if resp["error"] != "task not found" {
			t.Errorf("%s: expected task not found, got %q", path, resp["error"])
		}
	}
}

func TestStatusAndResultsLifecycle(t *testing.T) {
	env := newTestEnv(nil)
	id := env.submit(t)

	w := env.do(http.MethodGet, "/status/"+id, "")
	var st statusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if st.Status != model.JobPending {
		t.Errorf("expected pending, got %q", st.Status)
	}

	w = env.do(http.MethodGet, "/results/"+id, "")
	if strings.Contains(w.Body.String(), `"results"`) {
		t.Errorf("pending job must not carry results: %s", w.Body.String())
	}

	if err := env.orch.Execute(context.Background(), env.queue.pop()); err != nil {
		t.Fatalf("execute: %v", err)
	}

	w = env.do(http.MethodGet, "/results/"+id, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var res resultResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("json decode: %v", err)
	}
	if res.Status != model.JobCompleted || res.Results == nil {
		t.Fatalf("expected completed with results, got %+v", res)
	}
	if len(res.Results.Files) != 1 || res.Results.Files[0].Name != "app.py" {
		t.Fatalf("unexpected files %+v", res.Results.Files)
	}
	is := res.Results.Files[0].Issues
	if len(is) != 1 || is[0].Line != 2 || is[0].Type != model.IssueBug || is[0].Severity != model.SeverityMedium {
		t.Errorf("unexpected issues %+v", is)
	}
	if res.Results.Summary.TotalIssues != 1 || res.Results.Summary.MediumIssues != 1 {
		t.Errorf("unexpected summary %+v", res.Results.Summary)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(nil)
	req := httptest.NewRequest(http.MethodOptions, "/analyze-pr", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	env.srv.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected allow-origin *, got %q", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

func TestWebSocketWatch(t *testing.T) {
	env := newTestEnv(nil)
	id := env.submit(t)

	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	defer conn.Close()

	var first wsMessage
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("ws read: %v", err)
	}
	if first.Type != wsMsgStatus {
		t.Fatalf("expected status frame, got %q", first.Type)
	}

	go env.orch.Execute(context.Background(), env.queue.pop())

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var last statusResponse
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("ws read: %v", err)
		}
		if msg.Type == wsMsgStatus {
			if err := json.Unmarshal(msg.Data, &last); err != nil {
				t.Fatalf("unmarshal status: %v", err)
			}
			continue
		}
		if msg.Type != wsMsgResult {
			t.Fatalf("unexpected frame %q: %s", msg.Type, msg.Data)
		}
		var res resultResponse
		if err := json.Unmarshal(msg.Data, &res); err != nil {
			t.Fatalf("unmarshal result: %v", err)
		}
		if res.Status != model.JobCompleted || res.Results == nil {
			t.Errorf("expected completed result, got %+v", res)
		}
		break
	}
	if last.Status != model.JobCompleted {
		t.Errorf("last status frame should be completed, got %q", last.Status)
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal closure, got %v", err)
	}
}

func TestReadJSONEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/analyze-pr", bytes.NewReader(nil))
	var v analyzeRequest
	if err := readJSON(req, &v); err == nil {
		t.Error("expected error decoding empty body")
	}
}
