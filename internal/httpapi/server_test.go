package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	agentpkg "github.com/nickbooth1/airport-capacity-planner/internal/agent"
	"github.com/nickbooth1/airport-capacity-planner/internal/airport"
	"github.com/nickbooth1/airport-capacity-planner/internal/config"
	"github.com/nickbooth1/airport-capacity-planner/internal/confirmation"
	"github.com/nickbooth1/airport-capacity-planner/internal/learning"
	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
	"github.com/nickbooth1/airport-capacity-planner/internal/nlp"
	"github.com/nickbooth1/airport-capacity-planner/internal/params"
	"github.com/nickbooth1/airport-capacity-planner/internal/registry"
	"github.com/nickbooth1/airport-capacity-planner/internal/router"
	"github.com/nickbooth1/airport-capacity-planner/internal/session"
	"github.com/nickbooth1/airport-capacity-planner/internal/tools"
)

func newTestServer(t *testing.T) (*httptest.Server, *session.Manager) {
	t.Helper()

	store := memory.NewInMemoryStore(30 * 24 * time.Hour)
	svc := airport.NewServices(nil)

	reg := registry.New()
	reg.RegisterInstance(router.ServiceCapacity, svc.Capacity)
	reg.RegisterInstance(router.ServiceMaintenance, svc.Maintenance)
	reg.RegisterInstance(router.ServiceInfrastructure, svc.Infrastructure)
	reg.RegisterInstance(router.ServiceStand, svc.Stand)

	sessions := session.NewManager(time.Hour)
	engine := learning.NewEngine(store, 0.05)

	ag := agentpkg.New(agentpkg.Deps{
		Store:         store,
		Pipeline:      nlp.NewPipeline(),
		Orchestrator:  tools.NewOrchestrator(reg, nil),
		Validator:     params.NewValidator(time.Now),
		Confirmations: confirmation.NewManager(10*time.Minute, store),
		Engine:        engine,
		Sessions:      sessions,
	})

	srv := New(config.Config{AllowAnyOrigin: true}, sessions, ag, store, engine, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, sessions
}

func postJSON(t *testing.T, url string, payload any) (*http.Response, map[string]any) {
	t.Helper()
	body, _ := json.Marshal(payload)
	res, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { res.Body.Close() })
	var decoded map[string]any
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response from %s: %v", url, err)
	}
	return res, decoded
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { res.Body.Close() })
	var decoded map[string]any
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response from %s: %v", url, err)
	}
	return res, decoded
}

func TestHealthAndReady(t *testing.T) {
	ts, _ := newTestServer(t)
	res, body := getJSON(t, ts.URL+"/healthz")
	if res.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthz = %d %v", res.StatusCode, body)
	}
	res, body = getJSON(t, ts.URL+"/readyz")
	if res.StatusCode != http.StatusOK || body["status"] != "ready" {
		t.Fatalf("readyz = %d %v", res.StatusCode, body)
	}
}

func TestSessionLifecycle(t *testing.T) {
	ts, _ := newTestServer(t)

	res, created := postJSON(t, ts.URL+"/v1/session", map[string]string{"user_id": "user-1"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	sessionID, _ := created["session_id"].(string)
	if sessionID == "" {
		t.Fatalf("missing session_id in %v", created)
	}

	res, _ = postJSON(t, ts.URL+"/v1/session/"+sessionID+"/end", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", res.StatusCode, http.StatusOK)
	}
}

func TestQueryAndHistory(t *testing.T) {
	ts, _ := newTestServer(t)

	res, body := postJSON(t, ts.URL+"/v1/query", map[string]string{
		"user_id": "user-1",
		"query":   "What is the capacity of Terminal 1?",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("query status = %d: %v", res.StatusCode, body)
	}
	contextID, _ := body["context_id"].(string)
	if contextID == "" {
		t.Fatalf("missing context_id in %v", body)
	}
	if body["response"] == nil {
		t.Fatalf("missing response in %v", body)
	}

	res, body = getJSON(t, ts.URL+"/v1/history?user_id=user-1")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("history status = %d", res.StatusCode)
	}
	contexts, _ := body["contexts"].([]any)
	if len(contexts) != 1 {
		t.Fatalf("contexts = %d, want 1", len(contexts))
	}

	res, body = getJSON(t, ts.URL+"/v1/context/"+contextID)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("context status = %d", res.StatusCode)
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}

	if res, _ := getJSON(t, ts.URL+"/v1/context/missing"); res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing context status = %d, want 404", res.StatusCode)
	}
}

func TestQueryValidation(t *testing.T) {
	ts, _ := newTestServer(t)
	res, _ := postJSON(t, ts.URL+"/v1/query", map[string]string{"user_id": "user-1"})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
}

func TestActionApprovalFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	res, body := postJSON(t, ts.URL+"/v1/query", map[string]string{
		"user_id": "user-1",
		"query":   "Schedule maintenance for stand A1 tomorrow",
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("query status = %d: %v", res.StatusCode, body)
	}
	proposal, _ := body["proposal"].(map[string]any)
	if proposal == nil {
		t.Fatalf("expected a proposal in %v", body)
	}
	operationID, _ := proposal["operation_id"].(string)
	sessionID, _ := body["session_id"].(string)
	if operationID == "" || sessionID == "" {
		t.Fatalf("missing ids in %v", body)
	}

	res, status := getJSON(t, ts.URL+"/v1/actions/status/"+operationID)
	if res.StatusCode != http.StatusOK || status["status"] != "pending" {
		t.Fatalf("status = %d %v, want pending", res.StatusCode, status)
	}

	res, result := postJSON(t, ts.URL+"/v1/actions/approve/"+operationID, map[string]string{"session_id": sessionID})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve status = %d: %v", res.StatusCode, result)
	}
	if result["status"] != "executed" {
		t.Fatalf("result = %v, want executed", result)
	}

	// A second approval must conflict.
	res, _ = postJSON(t, ts.URL+"/v1/actions/approve/"+operationID, map[string]string{"session_id": sessionID})
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("second approve status = %d, want 409", res.StatusCode)
	}
}

func TestActionRejectFlow(t *testing.T) {
	ts, _ := newTestServer(t)

	_, body := postJSON(t, ts.URL+"/v1/query", map[string]string{
		"user_id": "user-1",
		"query":   "Schedule maintenance for stand B1 tomorrow",
	})
	proposal, _ := body["proposal"].(map[string]any)
	if proposal == nil {
		t.Fatalf("expected a proposal in %v", body)
	}
	operationID, _ := proposal["operation_id"].(string)
	sessionID, _ := body["session_id"].(string)

	res, result := postJSON(t, ts.URL+"/v1/actions/reject/"+operationID, map[string]string{
		"session_id": sessionID,
		"reason":     "wrong stand",
	})
	if res.StatusCode != http.StatusOK || result["status"] != "rejected" {
		t.Fatalf("reject = %d %v", res.StatusCode, result)
	}

	if res, _ := postJSON(t, ts.URL+"/v1/actions/approve/unknown-op", map[string]string{"session_id": sessionID}); res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown op status = %d, want 404", res.StatusCode)
	}
}

func TestFeedbackEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	res, body := postJSON(t, ts.URL+"/v1/feedback", map[string]any{
		"user_id":     "user-1",
		"target_type": "response",
		"target_id":   "msg-1",
		"rating":      5,
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("explicit feedback = %d: %v", res.StatusCode, body)
	}
	if body["source"] != "user_explicit" {
		t.Fatalf("source = %v, want user_explicit", body["source"])
	}

	res, body = postJSON(t, ts.URL+"/v1/feedback", map[string]any{
		"user_id":     "user-1",
		"target_type": "insight",
		"target_id":   "ins-1",
		"interaction": "save",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("implicit feedback = %d: %v", res.StatusCode, body)
	}
	if body["source"] != "user_implicit" {
		t.Fatalf("source = %v, want user_implicit", body["source"])
	}

	res, _ = postJSON(t, ts.URL+"/v1/feedback", map[string]any{
		"user_id":     "user-1",
		"target_type": "bogus",
		"target_id":   "x",
		"rating":      3,
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid feedback = %d, want 400", res.StatusCode)
	}
}

func TestInsightEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	res, saved := postJSON(t, ts.URL+"/v1/insights/save", map[string]any{
		"user_id": "user-1",
		"content": "Terminal 2 runs hot on Friday mornings",
		"tags":    []string{"capacity"},
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("save insight = %d: %v", res.StatusCode, saved)
	}
	id, _ := saved["id"].(string)
	if id == "" {
		t.Fatalf("missing id in %v", saved)
	}

	res, body := getJSON(t, ts.URL+"/v1/insights?user_id=user-1")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list insights = %d", res.StatusCode)
	}
	insights, _ := body["insights"].([]any)
	if len(insights) != 1 {
		t.Fatalf("insights = %d, want 1", len(insights))
	}

	res, got := getJSON(t, ts.URL+"/v1/insights/"+id)
	if res.StatusCode != http.StatusOK || got["content"] != "Terminal 2 runs hot on Friday mornings" {
		t.Fatalf("get insight = %d %v", res.StatusCode, got)
	}

	if res, _ := getJSON(t, ts.URL+"/v1/insights/missing"); res.StatusCode != http.StatusNotFound {
		t.Fatalf("missing insight = %d, want 404", res.StatusCode)
	}
}

func TestPreferenceEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)

	res, prefs := getJSON(t, ts.URL+"/v1/preferences?user_id=user-1")
	if res.StatusCode != http.StatusOK || prefs["theme"] != "system" {
		t.Fatalf("defaults = %d %v", res.StatusCode, prefs)
	}

	put := func(payload map[string]any) (*http.Response, map[string]any) {
		body, _ := json.Marshal(payload)
		req, _ := http.NewRequest(http.MethodPut, ts.URL+"/v1/preferences", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("PUT preferences: %v", err)
		}
		t.Cleanup(func() { res.Body.Close() })
		var decoded map[string]any
		_ = json.NewDecoder(res.Body).Decode(&decoded)
		return res, decoded
	}

	res, updated := put(map[string]any{
		"user_id":     "user-1",
		"preferences": map[string]any{"theme": "Dark"},
	})
	if res.StatusCode != http.StatusOK || updated["theme"] != "dark" {
		t.Fatalf("put = %d %v", res.StatusCode, updated)
	}

	res, _ = put(map[string]any{
		"user_id":     "user-1",
		"preferences": map[string]any{"nonsense": true},
	})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("strict put with unknown key = %d, want 400", res.StatusCode)
	}

	// Sync drops unknown keys instead of failing.
	res, synced := postJSON(t, ts.URL+"/v1/preferences/sync", map[string]any{
		"user_id":     "user-1",
		"preferences": map[string]any{"nonsense": true, "advancedMode": "yes"},
	})
	if res.StatusCode != http.StatusOK || synced["advancedMode"] != true {
		t.Fatalf("sync = %d %v", res.StatusCode, synced)
	}

	res, reset := postJSON(t, ts.URL+"/v1/preferences/reset", map[string]string{"user_id": "user-1"})
	if res.StatusCode != http.StatusOK || reset["theme"] != "system" {
		t.Fatalf("reset = %d %v", res.StatusCode, reset)
	}
}

func TestDashboardCRUD(t *testing.T) {
	ts, _ := newTestServer(t)

	res, created := postJSON(t, ts.URL+"/v1/dashboards", map[string]any{
		"user_id": "user-1",
		"payload": map[string]any{"name": "Morning ops", "widgets": []any{"capacity"}},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("create dashboard = %d: %v", res.StatusCode, created)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("missing id in %v", created)
	}

	res, body := getJSON(t, ts.URL+"/v1/dashboards?user_id=user-1")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list dashboards = %d", res.StatusCode)
	}
	dashboards, _ := body["dashboards"].(map[string]any)
	if len(dashboards) != 1 {
		t.Fatalf("dashboards = %v, want one entry", body)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/v1/dashboards/"+id+"?user_id=user-1", nil)
	delRes, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE dashboard: %v", err)
	}
	delRes.Body.Close()
	if delRes.StatusCode != http.StatusOK {
		t.Fatalf("delete dashboard = %d", delRes.StatusCode)
	}

	_, body = getJSON(t, ts.URL+"/v1/dashboards?user_id=user-1")
	dashboards, _ = body["dashboards"].(map[string]any)
	if len(dashboards) != 0 {
		t.Fatalf("dashboards after delete = %v, want empty", body)
	}
}

func TestAgentWebsocket(t *testing.T) {
	ts, sessions := newTestServer(t)
	sess := sessions.Create("user-1", "")

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/agent/ws?session_id=" + sess.ID
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if res != nil {
		res.Body.Close()
	}
	defer conn.Close()

	frame := map[string]string{
		"type":       "client_query",
		"session_id": sess.ID,
		"query":      "Is stand A1 available?",
	}
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var event map[string]any
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read: %v", err)
	}
	if event["type"] != "agent-response" {
		t.Fatalf("type = %v, want agent-response", event["type"])
	}
	if event["context_id"] == "" {
		t.Fatal("missing context_id")
	}
}

func TestPerfLatencyWithoutMetrics(t *testing.T) {
	ts, _ := newTestServer(t)

	res, body := getJSON(t, ts.URL+"/v1/perf/latency")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	stages, ok := body["stages"].([]any)
	if !ok {
		t.Fatalf("stages = %T, want array", body["stages"])
	}
	if len(stages) != 0 {
		t.Fatalf("len(stages) = %d, want 0", len(stages))
	}
}
