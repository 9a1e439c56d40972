package state

// Realm is the cultivation stage. Order matters: 凡人 < 练气 < 真气 < 先天 < 宗师.
type Realm string

const (
	RealmMortal      Realm = "凡人"
	RealmQiRefining  Realm = "练气"
	RealmTrueQi      Realm = "真气"
	RealmInnate      Realm = "先天"
	RealmGrandmaster Realm = "宗师"
)

var realmOrder = []Realm{RealmMortal, RealmQiRefining, RealmTrueQi, RealmInnate, RealmGrandmaster}

// Rank returns the position of the realm in the cultivation order, or -1 if unknown.
func (r Realm) Rank() int {
	for i, candidate := range realmOrder {
		if candidate == r {
			return i
		}
	}
	return -1
}

// Next returns the following realm. The last realm returns itself.
func (r Realm) Next() Realm {
	rank := r.Rank()
	if rank < 0 || rank == len(realmOrder)-1 {
		return r
	}
	return realmOrder[rank+1]
}

type Alignment string

const (
	AlignmentRighteous Alignment = "正"
	AlignmentEvil      Alignment = "邪"
	AlignmentNeutral   Alignment = "中立"
)

type Attributes struct {
	Strength     int `json:"strength"`     // 力量
	Constitution int `json:"constitution"` // 根骨
	Intelligence int `json:"intelligence"` // 悟性
	Agility      int `json:"agility"`      // 身法
}

type Stats struct {
	HP    int `json:"hp"`
	MaxHP int `json:"max_hp"`
	MP    int `json:"mp"`
	MaxMP int `json:"max_mp"`
}

// Item is carried by the player. TrueName and Story are set once an
// appraiser has identified it.
type Item struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TrueName    string `json:"true_name,omitempty"`
	Story       string `json:"story,omitempty"`
}

func (i Item) Identified() bool { return i.TrueName != "" }

// PlayerState is the single protagonist.
type PlayerState struct {
	Name       string     `json:"name"`
	Level      int        `json:"level"`
	XP         int        `json:"xp"`
	Attributes Attributes `json:"attributes"`
	Stats      Stats      `json:"stats"`
	Realm      Realm      `json:"realm"`
	Alignment  Alignment  `json:"alignment"`
	Mood       string     `json:"mood"`
	Gold       int        `json:"gold"`
	Inventory  []Item     `json:"inventory"`
	Skills     []string   `json:"skills,omitempty"`
}

// NewPlayer returns the starting character.
func NewPlayer(name string) PlayerState {
	return PlayerState{
		Name:  name,
		Level: 1,
		XP:    0,
		Attributes: Attributes{
			Strength:     10,
			Constitution: 10,
			Intelligence: 10,
			Agility:      10,
		},
		Stats:     Stats{HP: 100, MaxHP: 100, MP: 50, MaxMP: 50},
		Realm:     RealmMortal,
		Alignment: AlignmentNeutral,
		Mood:      "平静",
		Gold:      30,
		Inventory: []Item{{Name: "金创药"}, {Name: "生锈的铁剑"}},
	}
}

// Clone copies the player, including its inventory.
func (p PlayerState) Clone() PlayerState {
	out := p
	out.Inventory = append([]Item(nil), p.Inventory...)
	out.Skills = append([]string(nil), p.Skills...)
	return out
}

func (p PlayerState) HasItem(name string) bool {
	for _, item := range p.Inventory {
		if item.Name == name {
			return true
		}
	}
	return false
}

func (p PlayerState) HasSkill(name string) bool {
	for _, skill := range p.Skills {
		if skill == name {
			return true
		}
	}
	return false
}

// IsDead reports whether the player has run out of hp.
func (p PlayerState) IsDead() bool {
	return p.Stats.HP <= 0
}

// ExpForNextLevel is the experience needed to leave the given level.
func ExpForNextLevel(level int) int {
	return level * 100
}

// LevelUp returns the player one level higher: xp cleared, every attribute +1, hp/mp restored.
func (p PlayerState) LevelUp() PlayerState {
	out := p.Clone()
	out.Level++
	out.XP = 0
	out.Attributes.Strength++
	out.Attributes.Constitution++
	out.Attributes.Intelligence++
	out.Attributes.Agility++
	out.Stats.HP = out.Stats.MaxHP
	out.Stats.MP = out.Stats.MaxMP
	return out
}
