package narrative

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"Wulin-Chronicle/server/internal/state"
)

// Output is the canonical narration: prose plus the player's options.
type Output struct {
	Narration string              `json:"narration"`
	Options   []state.EventChoice `json:"options"`
}

const (
	actionNarrate = "narrate"
	actionDebug   = "debug"
)

var (
	fencedJSON     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")
	optionNumber   = regexp.MustCompile(`^\d+\.\s*`)
	errNoJSON      = errors.New("no JSON object in response")
	errNoNarration = errors.New("response has no narration")
)

// wanderingOutput is shown when the backend could not be reached.
func wanderingOutput() Output {
	return Output{
		Narration: "（AI说书人暂时走神了，一股神秘的力量让你看到了世界的真实面貌。）",
		Options: []state.EventChoice{
			{Text: "1. [调试] 检查模型服务是否运行", Action: actionDebug},
			{Text: "2. [调试] 查看服务端错误日志", Action: actionDebug},
			{Text: "3. [调试] 尝试使用不同的模型", Action: actionDebug},
		},
	}
}

// garbledOutput is shown when the backend answered with something unusable.
func garbledOutput() Output {
	return Output{
		Narration: "（AI说书人言语错乱，似乎看到了无法理解的景象。）",
		Options: []state.EventChoice{
			{Text: "1. [调试] 检查返回的 JSON 结构是否正确", Action: actionDebug},
			{Text: "2. [调试] 查看叙事分发器的解析日志", Action: actionDebug},
		},
	}
}

func continueOption() state.EventChoice {
	return state.EventChoice{
		Text:   "继续...",
		Action: actionNarrate,
		Result: &state.EventResult{Description: "你决定继续前行。"},
	}
}

// ExtractJSON finds the JSON object inside model output that may be fenced
// or surrounded by prose.
func ExtractJSON(content string) (string, error) {
	if m := fencedJSON.FindStringSubmatch(content); m != nil && strings.HasPrefix(strings.TrimSpace(m[1]), "{") {
		return m[1], nil
	}
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return "", errNoJSON
	}
	return content[start : end+1], nil
}

type rawOption struct {
	Text   any                `json:"text"`
	Action string             `json:"action"`
	Result *state.EventResult `json:"result"`
}

// parseOutput decodes and normalizes a narration object.
func parseOutput(content string) (Output, error) {
	raw, err := ExtractJSON(content)
	if err != nil {
		return Output{}, err
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return Output{}, fmt.Errorf("failed to decode narration: %w", err)
	}
	var narration string
	field, ok := doc["narration"]
	if !ok || string(field) == "null" || json.Unmarshal(field, &narration) != nil {
		return Output{}, errNoNarration
	}
	return Output{Narration: narration, Options: normalizeOptions(doc["options"])}, nil
}

func normalizeOptions(data json.RawMessage) []state.EventChoice {
	var items []json.RawMessage
	if len(data) > 0 {
		_ = json.Unmarshal(data, &items)
	}

	options := make([]state.EventChoice, 0, len(items))
	for _, item := range items {
		var opt rawOption
		if err := json.Unmarshal(item, &opt); err != nil {
			// Keep the text even when the result is malformed.
			var textOnly struct {
				Text any `json:"text"`
			}
			if json.Unmarshal(item, &textOnly) != nil {
				continue
			}
			opt = rawOption{Text: textOnly.Text}
		}
		text, _ := opt.Text.(string)
		text = strings.TrimSpace(optionNumber.ReplaceAllString(strings.TrimSpace(text), ""))
		if text == "" {
			continue
		}
		action := opt.Action
		if action == "" {
			action = actionNarrate
		}
		result := opt.Result
		if result == nil {
			result = &state.EventResult{Description: fmt.Sprintf("你选择了\"%s\"", text)}
		}
		options = append(options, state.EventChoice{Text: text, Action: action, Result: result})
	}
	if len(options) == 0 {
		return []state.EventChoice{continueOption()}
	}
	return options
}
