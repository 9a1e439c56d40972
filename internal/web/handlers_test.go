package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/config"
	"Wulin-Chronicle/server/internal/events"
	"Wulin-Chronicle/server/internal/faction"
	"Wulin-Chronicle/server/internal/game"
	"Wulin-Chronicle/server/internal/interfaces"
	"Wulin-Chronicle/server/internal/narrative"
	"Wulin-Chronicle/server/internal/prompts"
	"Wulin-Chronicle/server/internal/rng"
	"Wulin-Chronicle/server/internal/state"
	"Wulin-Chronicle/server/internal/storage"
	"Wulin-Chronicle/server/internal/store"
	"Wulin-Chronicle/server/internal/triggers"
)

type cannedBackend struct{}

func (cannedBackend) Generate(context.Context, *interfaces.GenerationRequest) (*interfaces.GenerationResponse, error) {
	return &interfaces.GenerationResponse{
		Content: `{"narration": "风过竹林。", "options": [{"text": "拔剑", "result": {"description": "剑鸣如龙。"}}, {"text": "离开"}]}`,
	}, nil
}

type testServer struct {
	handler *Handler
	store   *store.Store
	hub     *StateHub
	srv     http.Handler
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	logger := zerolog.Nop()
	mem := storage.NewMemoryStore()
	st := store.New(logger, state.New(state.NewPlayer("石破天"), state.GenerateWorld(rng.New("web-seed"))))
	templates := prompts.NewTemplateEngine()
	if err := templates.InitializeDefaultTemplates(); err != nil {
		t.Fatalf("templates: %v", err)
	}
	narrator := narrative.NewDispatcher(logger, cannedBackend{}, templates, nil, nil, "")
	src := rng.New("web-test")
	factions := faction.NewSystem(logger, mem, mem, src, config.FactionConfig{}, nil)
	engine := events.NewEngine(logger, events.Deps{
		Registry:   triggers.NewRegistry(logger),
		Catalog:    events.StaticCatalog{},
		Backend:    narrator,
		Templates:  templates,
		Dispatcher: st,
		RNG:        src,
	})

	var cfg config.Config
	cfg.World.SceneTicks = 10
	session := game.NewSession(logger, cfg, game.Deps{
		Store: st, Events: engine, Factions: factions, Narrator: narrator,
		Chronicle: mem, Archive: mem, Saves: mem,
	})
	if err := session.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	hub := NewStateHub(logger)
	h := NewHandler(logger, session, factions, templates, hub)
	return testServer{handler: h, store: st, hub: hub, srv: h.Router(time.Minute)}
}

func (ts testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK || decode(t, rec)["status"] != "ok" {
		t.Fatalf("health = %d %s", rec.Code, rec.Body.String())
	}
}

func TestSceneFlow(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/scene/choose", map[string]int{"index": 0})
	if rec.Code != http.StatusConflict {
		t.Fatalf("choose without scene = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/scene/next", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("next = %d %s", rec.Code, rec.Body.String())
	}
	if scene := decode(t, rec); scene["narration"] != "风过竹林。" {
		t.Fatalf("scene = %v", scene)
	}

	rec = ts.do(t, http.MethodPost, "/api/scene/choose", map[string]int{"index": 99})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad choice = %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/api/scene/choose", map[string]int{"index": 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("choose = %d %s", rec.Code, rec.Body.String())
	}
	if out := decode(t, rec); out["description"] != "剑鸣如龙。" {
		t.Fatalf("outcome = %v", out)
	}

	body := decode(t, ts.do(t, http.MethodGet, "/api/state", nil))
	player := body["state"].(map[string]any)["player"].(map[string]any)
	if player["xp"].(float64) != 10 {
		t.Fatalf("player = %v", player)
	}
}

func TestCommandEndpoint(t *testing.T) {
	ts := newTestServer(t)
	tests := []struct {
		text string
		code int
	}{
		{"/save 1", http.StatusOK},
		{"/load 1", http.StatusOK},
		{"/load 9", http.StatusNotFound},
		{"/save 0", http.StatusBadRequest},
		{"/save one", http.StatusBadRequest},
		{"/tone 诙谐", http.StatusOK},
		{"/tone 悲怆", http.StatusBadRequest},
		{"/slots", http.StatusOK},
		{"/archive", http.StatusOK},
		{"/war", http.StatusOK},
		{"/fly", http.StatusBadRequest},
		{"hello", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := ts.do(t, http.MethodPost, "/api/command", map[string]string{"text": tt.text})
		if rec.Code != tt.code {
			t.Errorf("%s = %d, want %d (%s)", tt.text, rec.Code, tt.code, rec.Body.String())
		}
	}
}

func TestTravelEndpoint(t *testing.T) {
	ts := newTestServer(t)
	current, _ := ts.store.GetState().World.CurrentLocation()
	for dir, target := range current.Exits {
		rec := ts.do(t, http.MethodPost, "/api/travel", map[string]string{"direction": string(dir)})
		if rec.Code != http.StatusOK {
			t.Fatalf("travel = %d %s", rec.Code, rec.Body.String())
		}
		if got := int(decode(t, rec)["id"].(float64)); got != target {
			t.Fatalf("arrived at %d, want %d", got, target)
		}
		return
	}
	t.Skip("starting location has no exits")
}

func TestFactionEndpoints(t *testing.T) {
	ts := newTestServer(t)
	out := decode(t, ts.do(t, http.MethodGet, "/api/factions", nil))
	if got := len(out["factions"].([]any)); got != len(faction.DefaultFactions) {
		t.Fatalf("factions = %d", got)
	}
	wars := decode(t, ts.do(t, http.MethodGet, "/api/wars", nil))
	if got := len(wars["wars"].([]any)); got != 0 {
		t.Fatalf("wars = %d", got)
	}
}

func TestTemplateExport(t *testing.T) {
	ts := newTestServer(t)

	names := decode(t, ts.do(t, http.MethodGet, "/api/templates", nil))["templates"].([]any)
	if len(names) == 0 {
		t.Fatal("no templates listed")
	}

	rec := ts.do(t, http.MethodGet, "/api/templates/rest", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export = %d %s", rec.Code, rec.Body.String())
	}
	exported := rec.Body.String()
	if tmpl := decode(t, rec); tmpl["name"] != "rest" || tmpl["content"] == "" {
		t.Fatalf("template = %v", tmpl)
	}

	other := prompts.NewTemplateEngine()
	if err := other.ImportTemplate(exported); err != nil {
		t.Fatalf("exported template does not import: %v", err)
	}

	if rec := ts.do(t, http.MethodGet, "/api/templates/missing", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("missing template = %d", rec.Code)
	}
}

func TestInvalidJSON(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/scene/choose", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d", rec.Code)
	}
}

func TestWebsocketReceivesState(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ts.hub.Run(ctx)
	detach := ts.hub.Attach(ts.store)
	defer detach()

	srv := httptest.NewServer(ts.srv)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg struct {
		Type string         `json:"type"`
		Data state.Snapshot `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "state" || msg.Data.Player.Name != "石破天" {
		t.Fatalf("msg = %+v", msg)
	}
}
