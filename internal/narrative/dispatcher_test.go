package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"Wulin-Chronicle/server/internal/infra"
	"Wulin-Chronicle/server/internal/interfaces"
	"Wulin-Chronicle/server/internal/prompts"
	"Wulin-Chronicle/server/internal/state"
)

type scriptedBackend struct {
	content  string
	err      error
	requests []*interfaces.GenerationRequest
}

func (b *scriptedBackend) Generate(_ context.Context, req *interfaces.GenerationRequest) (*interfaces.GenerationResponse, error) {
	b.requests = append(b.requests, req)
	if b.err != nil {
		return nil, b.err
	}
	return &interfaces.GenerationResponse{
		Content:  b.content,
		Metadata: interfaces.GenerationMetadata{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

type recordingMonitor struct{ records []interfaces.CostRecord }

func (m *recordingMonitor) RecordCall(_ context.Context, rec interfaces.CostRecord) {
	m.records = append(m.records, rec)
}

func newTemplates(t *testing.T) *prompts.TemplateEngine {
	t.Helper()
	e := prompts.NewTemplateEngine()
	if err := e.InitializeDefaultTemplates(); err != nil {
		t.Fatalf("templates: %v", err)
	}
	return e
}

func sampleContext(eventType string) Context {
	return Context{
		Player:       state.NewPlayer("林平之"),
		Location:     state.Location{ID: 1, Name: "洛阳", Type: state.LocationTown, Description: "繁华的古都"},
		Time:         "甲子年正月初一",
		SceneSummary: "你走进了洛阳城。",
		Tone:         "宿命",
		EventType:    eventType,
	}
}

const goodNarration = `{"narration": "夜色如墨。", "options": [{"text": "1. 拔剑", "result": {"description": "你拔出了剑。"}}, {"text": "离开"}]}`

func TestResolveIsOrderSensitive(t *testing.T) {
	rules := []Rule{
		{Comment: "travel", Conditions: map[string]any{"event_type": "travel"}, Tier: TierTemplate},
		{Comment: "important travel", Conditions: map[string]any{"event_type": "travel", "importance": 3}, Tier: TierLight, Model: "small"},
	}
	d := NewDispatcher(zerolog.Nop(), nil, nil, rules, nil, "big")

	c := sampleContext("travel")
	c.Importance = 3
	if tier, _ := d.Resolve(c); tier != TierTemplate {
		t.Fatalf("tier = %s, want template", tier)
	}

	reversed := NewDispatcher(zerolog.Nop(), nil, nil, []Rule{rules[1], rules[0]}, nil, "big")
	if tier, model := reversed.Resolve(c); tier != TierLight || model != "small" {
		t.Fatalf("tier = %s/%s, want light/small", tier, model)
	}

	if tier, _ := d.Resolve(sampleContext("combat")); tier != TierHeavy {
		t.Fatalf("unmatched tier = %s, want heavy", tier)
	}
}

func TestResolveNormalizesNumbers(t *testing.T) {
	rules, err := ParseRules([]byte("rules:\n  - comment: big\n    conditions:\n      importance: 5\n    tier: heavy_llm\n  - conditions:\n      importance: 1.0\n    tier: light_llm\n    model: tiny\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	d := NewDispatcher(zerolog.Nop(), nil, nil, rules, nil, "")
	c := sampleContext("")
	c.Importance = 1
	if tier, model := d.Resolve(c); tier != TierLight || model != "tiny" {
		t.Fatalf("tier = %s/%s", tier, model)
	}
}

func TestTemplateTier(t *testing.T) {
	backend := &scriptedBackend{content: goodNarration}
	rules := []Rule{{Conditions: map[string]any{"event_type": prompts.TravelTemplate}, Tier: TierTemplate}}
	d := NewDispatcher(zerolog.Nop(), backend, newTemplates(t), rules, nil, "big")

	out := d.Dispatch(context.Background(), sampleContext(prompts.TravelTemplate))
	if !strings.Contains(out.Narration, "洛阳") {
		t.Fatalf("narration = %q", out.Narration)
	}
	if len(out.Options) != 3 {
		t.Fatalf("options = %+v", out.Options)
	}
	if out.Options[2].Result == nil || out.Options[2].Result.Description != `你选择了"继续赶路"` {
		t.Fatalf("default result = %+v", out.Options[2].Result)
	}
	if len(backend.requests) != 0 {
		t.Fatal("template tier must not call the backend")
	}
}

func TestMissingTemplateFallsBackToHeavy(t *testing.T) {
	backend := &scriptedBackend{content: goodNarration}
	monitor := &recordingMonitor{}
	rules := []Rule{{Conditions: map[string]any{"event_type": "banquet"}, Tier: TierTemplate}}
	d := NewDispatcher(zerolog.Nop(), backend, newTemplates(t), rules, monitor, "big")

	out := d.Dispatch(context.Background(), sampleContext("banquet"))
	if out.Narration != "夜色如墨。" {
		t.Fatalf("narration = %q", out.Narration)
	}
	if len(backend.requests) != 1 || backend.requests[0].Model != "" || backend.requests[0].Format != interfaces.FormatJSON {
		t.Fatalf("requests = %+v", backend.requests)
	}
	if len(monitor.records) != 1 || monitor.records[0].Layer != string(TierHeavy) || monitor.records[0].Model != "big" {
		t.Fatalf("records = %+v", monitor.records)
	}
}

func TestLightTierWithoutModelFallsBackToHeavy(t *testing.T) {
	backend := &scriptedBackend{content: goodNarration}
	monitor := &recordingMonitor{}
	rules := []Rule{{Conditions: map[string]any{"event_type": "combat"}, Tier: TierLight}}
	d := NewDispatcher(zerolog.Nop(), backend, newTemplates(t), rules, monitor, "big")

	d.Dispatch(context.Background(), sampleContext("combat"))
	if len(monitor.records) != 1 || monitor.records[0].Layer != string(TierHeavy) {
		t.Fatalf("records = %+v", monitor.records)
	}
}

func TestLightTierUsesRuleModel(t *testing.T) {
	backend := &scriptedBackend{content: goodNarration}
	monitor := &recordingMonitor{}
	rules := []Rule{{Conditions: map[string]any{"event_type": "social"}, Tier: TierLight, Model: "qwen2.5:7b"}}
	d := NewDispatcher(zerolog.Nop(), backend, newTemplates(t), rules, monitor, "big")

	d.Dispatch(context.Background(), sampleContext("social"))
	if backend.requests[0].Model != "qwen2.5:7b" {
		t.Fatalf("model = %q", backend.requests[0].Model)
	}
	rec := monitor.records[0]
	if rec.Layer != string(TierLight) || rec.Model != "qwen2.5:7b" || rec.TotalTokens != 15 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestNormalization(t *testing.T) {
	cases := []struct {
		name      string
		content   string
		narration string
		options   []string
	}{
		{"fenced", "好的：\n```json\n" + goodNarration + "\n```\n以上。", "夜色如墨。", []string{"拔剑", "离开"}},
		{"prose around", "说书人道：" + goodNarration + " 完。", "夜色如墨。", []string{"拔剑", "离开"}},
		{"empty options", `{"narration": "风起。", "options": []}`, "风起。", []string{"继续..."}},
		{"options not a list", `{"narration": "风起。", "options": "随便"}`, "风起。", []string{"继续..."}},
		{"blank option dropped", `{"narration": "风起。", "options": [{"text": "  "}, {"text": 3}, {"text": "2. 出发"}]}`, "风起。", []string{"出发"}},
		{"not json", "今天天气不错。", "（AI说书人言语错乱，似乎看到了无法理解的景象。）", nil},
		{"missing narration", `{"options": [{"text": "走"}]}`, "（AI说书人言语错乱，似乎看到了无法理解的景象。）", nil},
		{"narration not string", `{"narration": 42}`, "（AI说书人言语错乱，似乎看到了无法理解的景象。）", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := NewDispatcher(zerolog.Nop(), &scriptedBackend{content: tc.content}, newTemplates(t), nil, nil, "big")
			out := d.Dispatch(context.Background(), sampleContext("combat"))
			if out.Narration != tc.narration {
				t.Fatalf("narration = %q", out.Narration)
			}
			if len(out.Options) == 0 {
				t.Fatal("output must always carry an option")
			}
			if tc.options == nil {
				for _, opt := range out.Options {
					if opt.Action != actionDebug {
						t.Fatalf("diagnostic option %+v is not a debug option", opt)
					}
				}
				return
			}
			var texts []string
			for _, opt := range out.Options {
				texts = append(texts, opt.Text)
				if opt.Result == nil {
					t.Fatalf("option %q has no result", opt.Text)
				}
			}
			if strings.Join(texts, "|") != strings.Join(tc.options, "|") {
				t.Fatalf("options = %v, want %v", texts, tc.options)
			}
		})
	}
}

func TestBackendFailureYieldsDiagnostic(t *testing.T) {
	monitor := &recordingMonitor{}
	d := NewDispatcher(zerolog.Nop(), &scriptedBackend{err: errors.New("connection refused")}, newTemplates(t), nil, monitor, "big")
	out := d.Dispatch(context.Background(), sampleContext("combat"))
	if !strings.Contains(out.Narration, "走神") {
		t.Fatalf("narration = %q", out.Narration)
	}
	if len(out.Options) == 0 {
		t.Fatal("diagnostic output must have options")
	}
	if len(monitor.records) != 1 {
		t.Fatalf("failed calls are still accounted, got %d records", len(monitor.records))
	}
}

func TestGenerateRaw(t *testing.T) {
	backend := &scriptedBackend{content: `{"ok": true}`}
	d := NewDispatcher(zerolog.Nop(), backend, newTemplates(t), nil, nil, "big")
	content, err := d.GenerateRaw(context.Background(), "问")
	if err != nil || content != `{"ok": true}` {
		t.Fatalf("content = %q, err = %v", content, err)
	}
	if backend.requests[0].Format != interfaces.FormatJSON {
		t.Fatalf("format = %q", backend.requests[0].Format)
	}

	empty := NewDispatcher(zerolog.Nop(), &scriptedBackend{content: "  "}, nil, nil, nil, "")
	if _, err := empty.GenerateRaw(context.Background(), "问"); err == nil {
		t.Fatal("expected error for empty content")
	}
}

func TestConsultDecodesFencedAnswer(t *testing.T) {
	backend := &scriptedBackend{content: "好的：\n```json\n{\"dialogue\": \"客官请看。\", \"goods\": [{\"name\": \"青钢剑\", \"buy_price\": 12}]}\n```"}
	d := NewDispatcher(zerolog.Nop(), backend, newTemplates(t), nil, nil, "big")

	var answer struct {
		Dialogue string `json:"dialogue"`
		Goods    []struct {
			Name     string `json:"name"`
			BuyPrice int    `json:"buy_price"`
		} `json:"goods"`
	}
	err := d.Consult(context.Background(), prompts.TraderTemplate, prompts.Vars{
		"location_name": "洛阳",
		"player":        map[string]any{"name": "林平之", "gold": 30},
	}, &answer)
	if err != nil {
		t.Fatalf("consult: %v", err)
	}
	if answer.Dialogue != "客官请看。" || len(answer.Goods) != 1 || answer.Goods[0].BuyPrice != 12 {
		t.Fatalf("answer = %+v", answer)
	}
	if !strings.Contains(backend.requests[0].Prompt, "洛阳") {
		t.Fatalf("prompt = %q", backend.requests[0].Prompt)
	}

	prose := NewDispatcher(zerolog.Nop(), &scriptedBackend{content: "并无货物。"}, newTemplates(t), nil, nil, "")
	if err := prose.Consult(context.Background(), prompts.TraderTemplate, nil, &answer); err == nil {
		t.Fatal("expected error for an answer without JSON")
	}
}

func TestTellReturnsProse(t *testing.T) {
	backend := &scriptedBackend{content: "  听说黄蓉的掌力又精进了。\n"}
	d := NewDispatcher(zerolog.Nop(), backend, newTemplates(t), nil, nil, "big")
	story, err := d.Tell(context.Background(), prompts.NPCGrowthTemplate, prompts.Vars{
		"npc": map[string]any{"name": "黄蓉"}, "old_strength": 19, "new_strength": 20,
	})
	if err != nil || story != "听说黄蓉的掌力又精进了。" {
		t.Fatalf("story = %q, err = %v", story, err)
	}
	if backend.requests[0].Format != interfaces.FormatText {
		t.Fatalf("format = %q", backend.requests[0].Format)
	}
}

func TestCostMonitorPublishes(t *testing.T) {
	pub := infra.NewRecordingPublisher()
	m := NewCostMonitor(zerolog.Nop(), pub, "jianghu.ai.cost")
	m.RecordCall(context.Background(), interfaces.CostRecord{Layer: "heavy_llm", Model: "big", TotalTokens: 30})
	m.RecordCall(context.Background(), interfaces.CostRecord{Layer: "light_llm", Model: "small", TotalTokens: 12})

	calls, tokens := m.Totals()
	if calls != 2 || tokens != 42 {
		t.Fatalf("totals = %d/%d", calls, tokens)
	}
	msgs := pub.Messages()
	if len(msgs) != 2 || msgs[0].Subject != "jianghu.ai.cost" {
		t.Fatalf("messages = %+v", msgs)
	}
	var rec interfaces.CostRecord
	if err := json.Unmarshal(msgs[1].Data, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Model != "small" || rec.Timestamp.IsZero() {
		t.Fatalf("record = %+v", rec)
	}
}

func TestLoadRulesMissingFile(t *testing.T) {
	if rules := LoadRules("/nonexistent/rules.yaml", zerolog.Nop()); len(rules) != 0 {
		t.Fatalf("rules = %v", rules)
	}
}
