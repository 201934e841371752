package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tmarsden/edgeflow-core/internal/action"
	"github.com/tmarsden/edgeflow-core/internal/infrastructure/config"
	"github.com/tmarsden/edgeflow-core/internal/infrastructure/logging"
	"github.com/tmarsden/edgeflow-core/internal/variable"
)

const testSecret = "test-secret-key-at-least-32-chars!"

// memRepo is an in-memory template repository for handler tests.
type memRepo struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[string][]byte)}
}

func (r *memRepo) Upsert(_ context.Context, id string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[id] = append([]byte(nil), payload...)
	return nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

func (r *memRepo) LoadAll(_ context.Context) (map[string][]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]byte, len(r.items))
	for k, v := range r.items {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (r *memRepo) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[string][]byte)
	return nil
}

// newTestServer builds a server around a started engine and returns the
// router ready for httptest requests.
func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()

	logger := logging.Default()
	vars := variable.NewStore()

	engine := action.New(action.Config{
		QueueSize:     4,
		AdmissionWait: 50 * time.Millisecond,
		SyncTimeout:   2 * time.Second,
	}, action.Deps{Variables: vars, Logger: logger})
	if err := engine.Start(); err != nil {
		t.Fatalf("starting engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	templates := action.NewTemplates(action.TemplatesConfig{}, engine, newMemRepo(), nil, logger)

	s, err := New(Deps{
		Config:    config.APIConfig{},
		WS:        config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		Security:  config.SecurityConfig{JWT: config.JWTConfig{Secret: testSecret}},
		Logger:    logger,
		Engine:    engine,
		Templates: templates,
		Variables: vars,
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("creating server: %v", err)
	}
	s.hub = NewHub(s.wsCfg, logger)

	return s, s.buildRouter()
}

// signToken issues a short-lived HS256 token for test requests.
func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

// doRequest performs an authenticated request against the router and
// decodes the JSON response into out when non-nil.
func doRequest(t *testing.T, h http.Handler, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "tester"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
		}
	}
	return rec
}

func logTemplateBody(name string) map[string]any {
	return map[string]any{
		"name":    name,
		"enabled": true,
		"action": map[string]any{
			"kind": "log",
			"log":  map[string]any{"level": "info", "message": "hello"},
		},
	}
}

func TestHealthNoAuth(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding health body: %v", err)
	}
	if body["version"] != "test" {
		t.Errorf("version = %v, want test", body["version"])
	}
}

func TestAuthRequired(t *testing.T) {
	_, router := newTestServer(t)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing token", token: ""},
		{name: "wrong secret", token: signToken(t, "another-secret-also-32-characters!!", "tester")},
		{name: "garbage token", token: "not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/templates", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestTemplateCRUD(t *testing.T) {
	_, router := newTestServer(t)

	var created action.Template
	rec := doRequest(t, router, http.MethodPost, "/api/v1/templates", logTemplateBody("greeting"), &created)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	if created.ID == "" {
		t.Fatal("created template has no id")
	}

	var list struct {
		Templates []action.Template `json:"templates"`
		Count     int               `json:"count"`
	}
	rec = doRequest(t, router, http.MethodGet, "/api/v1/templates", nil, &list)
	if rec.Code != http.StatusOK || list.Count != 1 {
		t.Fatalf("list status = %d count = %d, want 200/1", rec.Code, list.Count)
	}

	var got action.Template
	rec = doRequest(t, router, http.MethodGet, "/api/v1/templates/"+created.ID, nil, &got)
	if rec.Code != http.StatusOK || got.Name != "greeting" {
		t.Fatalf("get status = %d name = %q", rec.Code, got.Name)
	}

	update := logTemplateBody("greeting-v2")
	var updated action.Template
	rec = doRequest(t, router, http.MethodPut, "/api/v1/templates/"+created.ID, update, &updated)
	if rec.Code != http.StatusOK || updated.Name != "greeting-v2" {
		t.Fatalf("update status = %d name = %q", rec.Code, updated.Name)
	}

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/templates/"+created.ID, nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/templates/"+created.ID, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestTemplateExecute(t *testing.T) {
	_, router := newTestServer(t)

	var created action.Template
	doRequest(t, router, http.MethodPost, "/api/v1/templates", logTemplateBody("runner"), &created)

	var res action.Result
	rec := doRequest(t, router, http.MethodPost, "/api/v1/templates/"+created.ID+"/execute", nil, &res)
	if rec.Code != http.StatusOK {
		t.Fatalf("execute status = %d, body %s", rec.Code, rec.Body.String())
	}
	if res.Status != action.StatusSuccess {
		t.Errorf("result status = %q, want success", res.Status)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/v1/templates/nope/execute", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("execute unknown status = %d, want 404", rec.Code)
	}
}

func TestTemplateExecuteDisabled(t *testing.T) {
	_, router := newTestServer(t)

	body := logTemplateBody("dormant")
	body["enabled"] = false
	var created action.Template
	doRequest(t, router, http.MethodPost, "/api/v1/templates", body, &created)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/templates/"+created.ID+"/execute", nil, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("execute disabled status = %d, want 409", rec.Code)
	}
}

func TestExecuteActionSync(t *testing.T) {
	_, router := newTestServer(t)

	body := map[string]any{
		"kind": "log",
		"log":  map[string]any{"level": "info", "message": "hi"},
	}
	var res action.Result
	rec := doRequest(t, router, http.MethodPost, "/api/v1/actions/execute", body, &res)
	if rec.Code != http.StatusOK {
		t.Fatalf("execute status = %d, body %s", rec.Code, rec.Body.String())
	}
	if res.Status != action.StatusSuccess {
		t.Errorf("result status = %q, want success", res.Status)
	}

	var stats action.Stats
	rec = doRequest(t, router, http.MethodGet, "/api/v1/actions/stats", nil, &stats)
	if rec.Code != http.StatusOK || stats.TotalExecuted != 1 {
		t.Fatalf("stats status = %d executed = %d, want 200/1", rec.Code, stats.TotalExecuted)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/v1/actions/stats/reset", nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("reset status = %d, want 204", rec.Code)
	}
	doRequest(t, router, http.MethodGet, "/api/v1/actions/stats", nil, &stats)
	if stats.TotalExecuted != 0 {
		t.Errorf("executed after reset = %d, want 0", stats.TotalExecuted)
	}
}

func TestExecuteActionAsync(t *testing.T) {
	_, router := newTestServer(t)

	body := map[string]any{
		"kind":  "log",
		"async": true,
		"log":   map[string]any{"level": "info", "message": "later"},
	}
	var res map[string]any
	rec := doRequest(t, router, http.MethodPost, "/api/v1/actions/execute", body, &res)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("async status = %d, want 202", rec.Code)
	}
	if res["status"] != string(action.StatusQueued) {
		t.Errorf("status = %v, want queued", res["status"])
	}
}

func TestExecuteActionInvalid(t *testing.T) {
	_, router := newTestServer(t)

	body := map[string]any{"kind": "teleport"}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/actions/execute", body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid kind status = %d, want 400", rec.Code)
	}
}

func TestQueueEndpoints(t *testing.T) {
	_, router := newTestServer(t)

	var status map[string]any
	rec := doRequest(t, router, http.MethodGet, "/api/v1/actions/queue", nil, &status)
	if rec.Code != http.StatusOK {
		t.Fatalf("queue status = %d, want 200", rec.Code)
	}
	if depth, ok := status["depth"].(float64); !ok || depth != 0 {
		t.Errorf("depth = %v, want 0", status["depth"])
	}

	var cancelled map[string]any
	rec = doRequest(t, router, http.MethodDelete, "/api/v1/actions/queue", nil, &cancelled)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, want 200", rec.Code)
	}
	if n, ok := cancelled["cancelled"].(float64); !ok || n != 0 {
		t.Errorf("cancelled = %v, want 0", cancelled["cancelled"])
	}
}

func TestHostEndpoints(t *testing.T) {
	_, router := newTestServer(t)

	body := map[string]any{
		"id":        "host-1",
		"addr":      "10.0.0.5",
		"port":      22,
		"username":  "admin",
		"auth_type": "password",
		"password":  "secret",
	}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/hosts", body, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body %s", rec.Code, rec.Body.String())
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("secret")) {
		t.Error("response leaks the host password")
	}

	var list struct {
		Count int `json:"count"`
	}
	rec = doRequest(t, router, http.MethodGet, "/api/v1/hosts", nil, &list)
	if rec.Code != http.StatusOK || list.Count != 1 {
		t.Fatalf("list status = %d count = %d, want 200/1", rec.Code, list.Count)
	}

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/hosts/host-1", nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unregister status = %d, want 204", rec.Code)
	}
	rec = doRequest(t, router, http.MethodDelete, "/api/v1/hosts/host-1", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("second unregister status = %d, want 404", rec.Code)
	}
}

func TestRegisterHostInvalid(t *testing.T) {
	_, router := newTestServer(t)

	body := map[string]any{"id": "host-x"}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/hosts", body, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid host status = %d, want 400", rec.Code)
	}
}

func TestVariableEndpoints(t *testing.T) {
	_, router := newTestServer(t)

	var res action.Result
	rec := doRequest(t, router, http.MethodPut, "/api/v1/variables/flag",
		map[string]any{"type": "bool", "value": "true"}, &res)
	if rec.Code != http.StatusOK {
		t.Fatalf("set status = %d, body %s", rec.Code, rec.Body.String())
	}
	if res.Status != action.StatusSuccess {
		t.Fatalf("result status = %q, want success", res.Status)
	}

	var list struct {
		Variables []variableView `json:"variables"`
		Count     int            `json:"count"`
	}
	rec = doRequest(t, router, http.MethodGet, "/api/v1/variables", nil, &list)
	if rec.Code != http.StatusOK || list.Count != 1 {
		t.Fatalf("list status = %d count = %d, want 200/1", rec.Code, list.Count)
	}
	got := list.Variables[0]
	if got.Name != "flag" || got.Type != "bool" || got.Value != "true" {
		t.Errorf("variable = %+v, want flag/bool/true", got)
	}
}

func TestWatchesUnconfigured(t *testing.T) {
	_, router := newTestServer(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/watches", nil, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("watches status = %d, want 503", rec.Code)
	}
}

func TestCommandsUnconfigured(t *testing.T) {
	_, router := newTestServer(t)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/commands", nil, nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("commands status = %d, want 503", rec.Code)
	}
}

func TestWebSocketRequiresToken(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "tester"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("ws without token query status = %d, want 401", rec.Code)
	}
}

func TestHubBroadcastSubscribedOnly(t *testing.T) {
	hub := NewHub(config.WebSocketConfig{}, logging.Default())

	subscribed := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{ChannelActionExecuted: {}},
	}
	other := &WSClient{
		hub:           hub,
		send:          make(chan []byte, 1),
		subscriptions: map[string]struct{}{"something.else": {}},
	}
	hub.Register(subscribed)
	hub.Register(other)

	hub.Broadcast(ChannelActionExecuted, map[string]any{"status": "success"})

	select {
	case data := <-subscribed.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decoding broadcast: %v", err)
		}
		if msg.Type != WSTypeEvent || msg.EventType != ChannelActionExecuted {
			t.Errorf("message = %+v, want event on %s", msg, ChannelActionExecuted)
		}
	default:
		t.Fatal("subscribed client received nothing")
	}

	select {
	case <-other.send:
		t.Fatal("unsubscribed client received a broadcast")
	default:
	}
}
