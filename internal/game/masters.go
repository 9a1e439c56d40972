package game

import (
	"context"
	"fmt"
	"strings"

	"Wulin-Chronicle/server/internal/prompts"
	"Wulin-Chronicle/server/internal/state"
	"Wulin-Chronicle/server/internal/store"
)

// Masters keep a counter in a scene. Choosing their option opens a follow-up
// scene instead of ending the turn.
const (
	merchantName    = "行脚商人"
	skillMasterName = "扫地僧"
	appraiserName   = "多宝先生"

	actionTrade    = "trade"
	actionLearn    = "learn_skill"
	actionIdentify = "identify_item"
	actionBuy      = "buy"
	actionSell     = "sell"
	actionTrain    = "train"
	actionLeave    = "narrate"

	// maxLessonGain caps what one lesson may add to a single attribute.
	maxLessonGain = 2
)

// wanderers travel the roads and never join the world roster.
var wanderers = []string{merchantName, appraiserName}

type tradeOffer struct {
	Dialogue string `json:"dialogue"`
	Goods    []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		BuyPrice    int    `json:"buy_price"`
	} `json:"goods"`
	Acquisitions []struct {
		Name      string `json:"name"`
		SellPrice int    `json:"sell_price"`
	} `json:"acquisitions"`
}

type lesson struct {
	Dialogue      string `json:"dialogue"`
	Opportunities []struct {
		Type  string `json:"type"`
		Text  string `json:"text"`
		Skill *struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"skill"`
		SkillName   string                `json:"skill_name"`
		Improvement *state.AttributeDelta `json:"improvement"`
	} `json:"opportunities"`
}

type appraisal struct {
	Dialogue       string `json:"dialogue"`
	Identification struct {
		OriginalName string `json:"original_name"`
		TrueName     string `json:"true_name"`
		Story        string `json:"story"`
	} `json:"identification"`
}

// masterOption is the option a master standing in the scene adds.
func masterOption(name string) (state.EventChoice, bool) {
	switch name {
	case merchantName:
		return state.EventChoice{
			Text:   "与商人交易",
			Action: actionTrade,
			Result: &state.EventResult{Description: "你走上前去，想看看他卖些什么。"},
		}, true
	case skillMasterName:
		return state.EventChoice{
			Text:   "向扫地僧请教",
			Action: actionLearn,
			Result: &state.EventResult{Description: "你恭敬地向扫地僧行了一礼。"},
		}, true
	case appraiserName:
		return state.EventChoice{
			Text:   "请多宝先生鉴定物品",
			Action: actionIdentify,
			Result: &state.EventResult{Description: "你将身上的物品拿出来，请多宝先生过目。"},
		}, true
	}
	return state.EventChoice{}, false
}

func leaveOption(text, description string) state.EventChoice {
	return state.EventChoice{Text: text, Action: actionLeave, Result: &state.EventResult{Description: description}}
}

// wanderingVisitor rolls for a travelling master passing through.
func (s *Session) wanderingVisitor(locationID int) (state.NPC, bool) {
	chance := s.cfg.World.VisitorChance
	if chance <= 0 || s.deps.RNG.Float64() >= chance {
		return state.NPC{}, false
	}
	return state.NPC{
		ID:         -1,
		Name:       wanderers[s.deps.RNG.Intn(len(wanderers))],
		Realm:      state.RealmMortal,
		Alive:      true,
		LocationID: locationID,
		Stats:      state.Stats{HP: 100, MaxHP: 100, MP: 50, MaxMP: 50},
	}, true
}

// masterScene opens the counter behind action, or returns nil for ordinary
// actions.
func (s *Session) masterScene(ctx context.Context, action string) (*Scene, error) {
	switch action {
	case actionTrade:
		return s.tradeScene(ctx), nil
	case actionLearn:
		return s.lessonScene(ctx), nil
	case actionIdentify:
		return s.appraisalScene(ctx)
	}
	return nil, nil
}

// affordable rejects a result the player cannot pay for or lacks the goods for.
func affordable(p state.PlayerState, r state.EventResult) error {
	if r.Gold < 0 && p.Gold+r.Gold < 0 {
		return fmt.Errorf("%w: need %d, have %d", ErrNotEnoughGold, -r.Gold, p.Gold)
	}
	for _, name := range r.LoseItems {
		if !p.HasItem(name) {
			return fmt.Errorf("%w: %s", ErrMissingItem, name)
		}
	}
	return nil
}

func (s *Session) tradeScene(ctx context.Context) *Scene {
	current := s.State()
	location, _ := current.World.CurrentLocation()

	var offer tradeOffer
	err := s.deps.Narrator.Consult(ctx, prompts.TraderTemplate, prompts.Vars{
		"location_name": location.Name,
		"player":        playerVars(current.Player),
	}, &offer)
	if err != nil {
		s.logger.Warn().Err(err).Msg("merchant failed to answer")
		return &Scene{
			Narration: "商人似乎没什么兴趣，摆了摆手让你离开。",
			Options:   []state.EventChoice{leaveOption("继续...", "你耸了耸肩，决定继续前行。")},
		}
	}

	var options []state.EventChoice
	for _, g := range offer.Goods {
		if g.Name == "" || g.BuyPrice < 0 {
			continue
		}
		options = append(options, state.EventChoice{
			Text:   fmt.Sprintf("[购买] %s (%d金)", g.Name, g.BuyPrice),
			Action: actionBuy,
			Result: &state.EventResult{
				Description: fmt.Sprintf("你买下了%s。", g.Name),
				Gold:        -g.BuyPrice,
				GainItems:   []state.Item{{Name: g.Name, Description: g.Description}},
			},
		})
	}
	// Only what the player actually carries can be sold.
	for _, a := range offer.Acquisitions {
		if a.Name == "" || a.SellPrice < 0 || !current.Player.HasItem(a.Name) {
			continue
		}
		options = append(options, state.EventChoice{
			Text:   fmt.Sprintf("[出售] %s (%d金)", a.Name, a.SellPrice),
			Action: actionSell,
			Result: &state.EventResult{
				Description: fmt.Sprintf("你卖掉了%s。", a.Name),
				Gold:        a.SellPrice,
				LoseItems:   []string{a.Name},
			},
		})
	}
	options = append(options, leaveOption("离开", "你结束了和商人的交谈。"))

	narration := offer.Dialogue
	if narration == "" {
		narration = "商人放下货担，冲你点了点头。"
	}
	return &Scene{Narration: narration, Options: options}
}

func (s *Session) lessonScene(ctx context.Context) *Scene {
	player := s.State().Player

	var l lesson
	if err := s.deps.Narrator.Consult(ctx, prompts.SkillMasterTemplate, prompts.Vars{"player": playerVars(player)}, &l); err != nil {
		s.logger.Warn().Err(err).Msg("skill master failed to answer")
		return &Scene{
			Narration: "扫地僧只是低头扫地，仿佛没有听见你的话。",
			Options:   []state.EventChoice{leaveOption("告退", "你默默退了出去。")},
		}
	}

	var options []state.EventChoice
	for _, o := range l.Opportunities {
		name := o.SkillName
		if o.Skill != nil && o.Skill.Name != "" {
			name = o.Skill.Name
		}
		result := &state.EventResult{}
		switch o.Type {
		case "learn_skill":
			if name == "" || player.HasSkill(name) {
				continue
			}
			result.Description = fmt.Sprintf("你学会了%s。", name)
			result.LearnSkill = name
		case "improve_skill":
			if name == "" || !player.HasSkill(name) {
				continue
			}
			result.Description = fmt.Sprintf("你对%s的领悟更深了一层。", name)
			result.PlayerAttributes = capLesson(o.Improvement)
			if result.PlayerAttributes == nil {
				result.PlayerAttributes = &state.AttributeDelta{Intelligence: 1}
			}
		case "improve_attribute":
			result.PlayerAttributes = capLesson(o.Improvement)
			if result.PlayerAttributes == nil {
				continue
			}
			result.Description = "经扫地僧点拨，你的资质有所长进。"
		default:
			continue
		}
		text := o.Text
		if text == "" {
			text = result.Description
		}
		options = append(options, state.EventChoice{Text: text, Action: actionTrain, Result: result})
	}
	options = append(options, leaveOption("告退", "你向扫地僧道谢，转身离去。"))

	narration := l.Dialogue
	if narration == "" {
		narration = "扫地僧停下扫帚，看了你一眼。"
	}
	return &Scene{Narration: narration, Options: options}
}

// capLesson keeps each attribute gain within [0, maxLessonGain]. It returns
// nil when nothing is left to teach.
func capLesson(d *state.AttributeDelta) *state.AttributeDelta {
	if d == nil {
		return nil
	}
	out := state.AttributeDelta{
		Strength:     clampGain(d.Strength),
		Constitution: clampGain(d.Constitution),
		Intelligence: clampGain(d.Intelligence),
		Agility:      clampGain(d.Agility),
	}
	if out == (state.AttributeDelta{}) {
		return nil
	}
	return &out
}

func clampGain(v int) int {
	return min(max(v, 0), maxLessonGain)
}

// appraisalScene identifies the first unidentified item the player carries.
func (s *Session) appraisalScene(ctx context.Context) (*Scene, error) {
	player := s.State().Player
	if len(player.Inventory) == 0 {
		return &Scene{
			Narration: "你身上空空如也，没什么值得鉴定的东西。",
			Options:   []state.EventChoice{leaveOption("离开", "你尴尬地笑了笑。")},
		}, nil
	}
	idx := -1
	for i, item := range player.Inventory {
		if !item.Identified() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &Scene{
			Narration: "多宝先生摆摆手：“你这些东西，老夫都看过了。”",
			Options:   []state.EventChoice{leaveOption("离开", "你收起了物品。")},
		}, nil
	}
	item := player.Inventory[idx]

	var a appraisal
	err := s.deps.Narrator.Consult(ctx, prompts.ItemMasterTemplate, prompts.Vars{
		"item": map[string]any{"name": item.Name, "description": item.Description},
	}, &a)
	if err != nil || a.Identification.TrueName == "" {
		s.logger.Warn().Err(err).Str("item", item.Name).Msg("appraiser gave no identification")
		return &Scene{
			Narration: "“此乃凡物。”多宝先生瞥了一眼，便不再多言。",
			Options:   []state.EventChoice{leaveOption("离开", "看来这东西确实不值一提。")},
		}, nil
	}

	inventory := append([]state.Item(nil), player.Inventory...)
	inventory[idx].TrueName = a.Identification.TrueName
	inventory[idx].Story = a.Identification.Story
	if err := s.deps.Store.Dispatch(ctx, store.UpdateInventory{Inventory: inventory}); err != nil {
		return nil, err
	}
	s.logger.Info().Str("item", item.Name).Str("true_name", a.Identification.TrueName).Msg("item identified")

	narration := a.Dialogue
	if narration == "" {
		narration = fmt.Sprintf("多宝先生捻须道：“此物名为%s。%s”", a.Identification.TrueName, a.Identification.Story)
	}
	return &Scene{
		Narration: narration,
		Options:   []state.EventChoice{leaveOption("多谢先生指点", fmt.Sprintf("你对%s有了新的认识。", item.Name))},
	}, nil
}

// playerVars is the player as the masters' prompts see it.
func playerVars(p state.PlayerState) map[string]any {
	items := make([]string, 0, len(p.Inventory))
	for _, item := range p.Inventory {
		items = append(items, item.Name)
	}
	return map[string]any{
		"name":         p.Name,
		"realm":        string(p.Realm),
		"level":        p.Level,
		"gold":         p.Gold,
		"inventory":    joinOrNone(items),
		"skills":       joinOrNone(p.Skills),
		"strength":     p.Attributes.Strength,
		"constitution": p.Attributes.Constitution,
		"intelligence": p.Attributes.Intelligence,
		"agility":      p.Attributes.Agility,
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "无"
	}
	return strings.Join(items, "、")
}
