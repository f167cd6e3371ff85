package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"choreboard/internal/export"
	"choreboard/internal/requestid"
	"choreboard/internal/server"
	"choreboard/internal/tasks"
	"choreboard/internal/testutil"
	"choreboard/internal/views"
)

const staticDir = "../../www"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	pages, err := views.Load(staticDir)
	if err != nil {
		t.Fatalf("load views: %v", err)
	}
	repo := tasks.NewRepository(testutil.NewSQLiteDB(t))
	srv := server.New(repo, export.NewExporter(repo), pages, staticDir)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

// do sends a request and returns the status and body.
func do(t *testing.T, ts *httptest.Server, method, path, body string) (int, string) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := ts.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res.StatusCode, string(b)
}

func decode[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		t.Fatalf("decode %q: %v", body, err)
	}
	return v
}

func createTask(t *testing.T, ts *httptest.Server, body string) tasks.Task {
	t.Helper()
	code, res := do(t, ts, http.MethodPost, "/api/tasks", body)
	if code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", code, res)
	}
	return decode[tasks.Task](t, res)
}

func TestScoreDifferential(t *testing.T) {
	ts := newTestServer(t)

	code, body := do(t, ts, http.MethodGet, "/api/scores", "")
	if code != http.StatusOK || decode[tasks.Scores](t, body).Difference != 0 {
		t.Fatalf("initial scores: got %d %s", code, body)
	}

	t1 := createTask(t, ts, `{"name":"Dishes","frequency":"daily","assigned_to":"A","points":5}`)
	if code, body := do(t, ts, http.MethodPost, "/api/tasks/"+itoa(t1.ID)+"/complete", `{"completedBy":"A"}`); code != http.StatusOK {
		t.Fatalf("complete T1: %d %s", code, body)
	}
	t2 := createTask(t, ts, `{"name":"Trash","frequency":"weekly","assigned_to":"B","points":3}`)
	if code, body := do(t, ts, http.MethodPost, "/api/tasks/"+itoa(t2.ID)+"/complete", `{"completedBy":"B"}`); code != http.StatusOK {
		t.Fatalf("complete T2: %d %s", code, body)
	}

	code, body = do(t, ts, http.MethodGet, "/api/scores", "")
	if code != http.StatusOK {
		t.Fatalf("scores: expected 200, got %d", code)
	}
	if strings.TrimSpace(body) != `{"difference":2}` {
		t.Errorf("expected {\"difference\":2}, got %s", body)
	}
}

func TestCreateValidation(t *testing.T) {
	ts := newTestServer(t)

	for name, body := range map[string]string{
		"empty name":     `{"name":"","frequency":"daily","assigned_to":"A","points":1}`,
		"missing points": `{"name":"Dishes","frequency":"daily","assigned_to":"A"}`,
		"bad points":     `{"name":"Dishes","frequency":"daily","assigned_to":"A","points":"lots"}`,
		"malformed json": `{"name":"Dishes",`,
	} {
		t.Run(name, func(t *testing.T) {
			code, res := do(t, ts, http.MethodPost, "/api/tasks", body)
			if code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", code, res)
			}
		})
	}

	_, body := do(t, ts, http.MethodGet, "/api/tasks", "")
	if strings.TrimSpace(body) != "[]" {
		t.Errorf("rejected creates must not store anything, got %s", body)
	}
}

func TestCompleteUnknownTask(t *testing.T) {
	ts := newTestServer(t)

	code, _ := do(t, ts, http.MethodPost, "/api/tasks/9999/complete", `{"completedBy":"A"}`)
	if code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestCompleteValidation(t *testing.T) {
	ts := newTestServer(t)
	task := createTask(t, ts, `{"name":"Dishes","frequency":"daily","assigned_to":"A","points":5}`)
	path := "/api/tasks/" + itoa(task.ID) + "/complete"

	if code, _ := do(t, ts, http.MethodPost, path, `{}`); code != http.StatusBadRequest {
		t.Errorf("missing completedBy: expected 400, got %d", code)
	}
	if code, _ := do(t, ts, http.MethodPost, path, `not json`); code != http.StatusBadRequest {
		t.Errorf("malformed json: expected 400, got %d", code)
	}
}

func TestRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	created := createTask(t, ts, `{"name":"Laundry","description":"whites only","frequency":"weekly","assigned_to":"B","points":4}`)
	if created.Completed {
		t.Error("new task must not be completed")
	}

	code, body := do(t, ts, http.MethodGet, "/api/tasks/"+itoa(created.ID), "")
	if code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", code)
	}
	got := decode[tasks.Task](t, body)
	if got.ID != created.ID || got.Name != "Laundry" || got.Frequency != "weekly" ||
		got.AssignedTo != "B" || got.Points != 4 || got.Completed ||
		got.Description == nil || *got.Description != "whites only" {
		t.Errorf("round trip mismatch: %+v", got)
	}

	if code, _ := do(t, ts, http.MethodGet, "/api/tasks/9999", ""); code != http.StatusNotFound {
		t.Errorf("unknown id: expected 404, got %d", code)
	}
}

func TestFreshIDs(t *testing.T) {
	ts := newTestServer(t)

	seen := map[int64]bool{}
	for i := 0; i < 3; i++ {
		task := createTask(t, ts, `{"name":"Sweep","frequency":"daily","assigned_to":"A","points":1}`)
		if seen[task.ID] {
			t.Fatalf("id %d handed out twice", task.ID)
		}
		seen[task.ID] = true
	}
}

func TestIdempotentCompletion(t *testing.T) {
	ts := newTestServer(t)
	task := createTask(t, ts, `{"name":"Dishes","frequency":"daily","assigned_to":"A","points":5}`)

	for i := 0; i < 2; i++ {
		code, body := do(t, ts, http.MethodPost, "/api/tasks/"+itoa(task.ID)+"/complete", `{"completedBy":"A"}`)
		if code != http.StatusOK {
			t.Fatalf("completion #%d: expected 200, got %d", i+1, code)
		}
		got := decode[tasks.Completion](t, body)
		if got != (tasks.Completion{ID: task.ID, Completed: true, Points: 5}) {
			t.Errorf("completion #%d: unexpected body %+v", i+1, got)
		}
	}
}

func TestUpdate(t *testing.T) {
	ts := newTestServer(t)
	task := createTask(t, ts, `{"name":"Dishes","frequency":"daily","assigned_to":"A","points":5}`)
	path := "/api/tasks/" + itoa(task.ID)

	do(t, ts, http.MethodPost, path+"/complete", `{"completedBy":"A"}`)

	code, body := do(t, ts, http.MethodPut, path, `{"name":"Pots","frequency":"weekly","assigned_to":"B","points":8}`)
	if code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", code, body)
	}
	got := decode[tasks.Task](t, body)
	if got.Name != "Pots" || got.AssignedTo != "B" || got.Points != 8 || !got.Completed {
		t.Errorf("unexpected updated task %+v", got)
	}

	if code, _ := do(t, ts, http.MethodPut, path, `{"name":"","frequency":"weekly","assigned_to":"B","points":8}`); code != http.StatusBadRequest {
		t.Errorf("invalid update: expected 400, got %d", code)
	}
	if code, _ := do(t, ts, http.MethodPut, "/api/tasks/9999", `{"name":"x","frequency":"weekly","assigned_to":"B","points":8}`); code != http.StatusNotFound {
		t.Errorf("update of unknown id: expected 404, got %d", code)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	task := createTask(t, ts, `{"name":"Dishes","frequency":"daily","assigned_to":"A","points":5}`)
	path := "/api/tasks/" + itoa(task.ID)

	for i := 0; i < 2; i++ {
		code, body := do(t, ts, http.MethodDelete, path, "")
		if code != http.StatusNoContent || body != "" {
			t.Errorf("delete #%d: expected empty 204, got %d %q", i+1, code, body)
		}
	}
	if code, _ := do(t, ts, http.MethodDelete, "/api/tasks/9999", ""); code != http.StatusNoContent {
		t.Errorf("delete of unknown id: expected 204, got %d", code)
	}
	if code, _ := do(t, ts, http.MethodGet, path, ""); code != http.StatusNotFound {
		t.Errorf("deleted task: expected 404, got %d", code)
	}
}

func TestCreateRejectsTrailingGarbage(t *testing.T) {
	ts := newTestServer(t)

	code, _ := do(t, ts, http.MethodPost, "/api/tasks", `{"name":"x","frequency":"d","assigned_to":"A","points":1} garbage`)
	if code != http.StatusBadRequest {
		t.Errorf("create: expected 400, got %d", code)
	}
	if _, body := do(t, ts, http.MethodGet, "/api/tasks", ""); strings.TrimSpace(body) != "[]" {
		t.Errorf("nothing should be stored, got %s", body)
	}

	task := createTask(t, ts, `{"name":"x","frequency":"d","assigned_to":"A","points":1}`)
	code, _ = do(t, ts, http.MethodPost, "/api/tasks/"+itoa(task.ID)+"/complete", `{"completedBy":"A"} trailing`)
	if code != http.StatusBadRequest {
		t.Errorf("complete: expected 400, got %d", code)
	}
}

func TestPagesAndStatic(t *testing.T) {
	ts := newTestServer(t)
	createTask(t, ts, `{"name":"Dishes","frequency":"daily","assigned_to":"A","points":5}`)

	code, body := do(t, ts, http.MethodGet, "/", "")
	if code != http.StatusOK || !strings.Contains(body, "Dishes") {
		t.Errorf("index: got %d, body contains Dishes=%v", code, strings.Contains(body, "Dishes"))
	}

	code, body = do(t, ts, http.MethodGet, "/create_task", "")
	if code != http.StatusOK || !strings.Contains(body, "<form") {
		t.Errorf("create page: got %d", code)
	}

	code, body = do(t, ts, http.MethodGet, "/static/style.css", "")
	if code != http.StatusOK || !strings.Contains(body, "body") {
		t.Errorf("static: got %d", code)
	}

	for _, path := range []string{"/static/", "/static/index.html"} {
		code, body = do(t, ts, http.MethodGet, path, "")
		if code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, code)
		}
		if strings.Contains(body, "{{") {
			t.Errorf("%s: raw template text was served", path)
		}
	}

	if code, _ := do(t, ts, http.MethodGet, "/nope", ""); code != http.StatusNotFound {
		t.Errorf("unknown path: expected 404, got %d", code)
	}
}

func TestExportRoute(t *testing.T) {
	ts := newTestServer(t)
	createTask(t, ts, `{"name":"Dishes","frequency":"daily","assigned_to":"A","points":5}`)

	code, body := do(t, ts, http.MethodGet, "/api/tasks/export?format=csv", "")
	if code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", code)
	}
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "1,Dishes,") {
		t.Errorf("unexpected csv %q", body)
	}
}

func TestMiddleware(t *testing.T) {
	ts := newTestServer(t)

	res, err := ts.Client().Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Errorf("health: expected 200, got %d", res.StatusCode)
	}
	if res.Header.Get(requestid.Header) == "" {
		t.Error("expected a request id header")
	}

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/tasks/1", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	res, err = ts.Client().Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	res.Body.Close()
	if res.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("expected CORS allow-origin *, got %q", res.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	pages, err := views.Load(staticDir)
	if err != nil {
		t.Fatalf("load views: %v", err)
	}
	repo := tasks.NewRepository(testutil.NewSQLiteDB(t))
	srv := server.New(repo, export.NewExporter(repo), pages, staticDir)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, addr) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		res, err := http.Get("http://" + addr + "/health")
		if err == nil {
			res.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
