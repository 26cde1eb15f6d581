package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type recordedRequest struct {
	method string
	path   string
	body   string
}

type requestLog struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (l *requestLog) at(i int) recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reqs[i]
}

func fakeDaemon(t *testing.T, status int, reply string) (*httptest.Server, *requestLog) {
	t.Helper()
	log := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		log.mu.Lock()
		log.reqs = append(log.reqs, recordedRequest{method: r.Method, path: r.URL.Path, body: string(body)})
		log.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, reply)
	}))
	t.Cleanup(srv.Close)
	return srv, log
}

func runCLI(t *testing.T, addr string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--addr", addr}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCycleCommand(t *testing.T) {
	srv, reqs := fakeDaemon(t, http.StatusOK, `{"outcome":"activated","tab_id":7,"index":1,"next_index":2}`)
	out, err := runCLI(t, srv.URL, "cycle")
	if err != nil {
		t.Fatalf("cycle error = %v", err)
	}
	if reqs.at(0).method != http.MethodPost || reqs.at(0).path != "/api/v1/commands/cycle-clicked-tabs" {
		t.Fatalf("request = %+v", reqs.at(0))
	}
	if !strings.Contains(out, "activated tab 7 (next index 2)") {
		t.Fatalf("output = %q", out)
	}
}

func TestListCommand(t *testing.T) {
	srv, _ := fakeDaemon(t, http.StatusOK, `{"tabs":[{"id":3,"title":"Go","url":"https://go.dev","time":1,"windowId":1,"ago":"Just now","faviconUrl":""}]}`)
	out, err := runCLI(t, srv.URL, "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	if !strings.Contains(out, "ID") || !strings.Contains(out, "Go") || !strings.Contains(out, "Just now") {
		t.Fatalf("output = %q", out)
	}

	empty, _ := fakeDaemon(t, http.StatusOK, `{"tabs":[]}`)
	out, _ = runCLI(t, empty.URL, "list")
	if !strings.Contains(out, "No recent tab activity.") {
		t.Fatalf("empty output = %q", out)
	}
}

func TestOpenCommandReportsAPIError(t *testing.T) {
	srv, reqs := fakeDaemon(t, http.StatusNotFound, `{"title":"Not Found","status":404,"detail":"tab 9 is not tracked"}`)
	_, err := runCLI(t, srv.URL, "open", "9")
	if err == nil || !strings.Contains(err.Error(), "tab 9 is not tracked") {
		t.Fatalf("open error = %v", err)
	}
	if reqs.at(0).path != "/api/v1/tabs/9/activate" {
		t.Fatalf("path = %q", reqs.at(0).path)
	}

	if _, err := runCLI(t, srv.URL, "open", "nine"); err == nil {
		t.Fatalf("open with bad id error = nil")
	}
}

func TestSettingsCommandSendsOnlyChangedFlags(t *testing.T) {
	srv, reqs := fakeDaemon(t, http.StatusOK, `{"maxTrackedTabs":20,"tabCycleLimit":3}`)
	out, err := runCLI(t, srv.URL, "settings", "--cycle-limit", "3")
	if err != nil {
		t.Fatalf("settings error = %v", err)
	}
	req := reqs.at(0)
	if req.method != http.MethodPut {
		t.Fatalf("method = %s; want PUT", req.method)
	}
	var body map[string]int
	if err := json.Unmarshal([]byte(req.body), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if _, ok := body["maxTrackedTabs"]; ok || body["tabCycleLimit"] != 3 {
		t.Fatalf("body = %v", body)
	}
	if !strings.Contains(out, "tab cycle limit:  3") {
		t.Fatalf("output = %q", out)
	}

	if _, err := runCLI(t, srv.URL, "settings"); err != nil {
		t.Fatalf("settings show error = %v", err)
	}
	if reqs.at(1).method != http.MethodGet {
		t.Fatalf("method = %s; want GET", reqs.at(1).method)
	}
}

func TestClearCommand(t *testing.T) {
	srv, reqs := fakeDaemon(t, http.StatusOK, `{"status":"cleared"}`)
	out, err := runCLI(t, srv.URL, "clear")
	if err != nil {
		t.Fatalf("clear error = %v", err)
	}
	if reqs.at(0).method != http.MethodDelete || !strings.Contains(out, "history cleared") {
		t.Fatalf("request = %+v output = %q", reqs.at(0), out)
	}
}
