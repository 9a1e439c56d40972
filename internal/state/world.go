package state

import (
	"fmt"
	"sort"

	"Wulin-Chronicle/server/internal/rng"
)

type LocationType string

const (
	LocationTown  LocationType = "城镇"
	LocationWilds LocationType = "山野"
	LocationRiver LocationType = "河流"
	LocationSect  LocationType = "门派"
)

type Direction string

const (
	East  Direction = "东"
	South Direction = "南"
	West  Direction = "西"
	North Direction = "北"
)

var directions = []Direction{East, South, West, North}

// Opposite returns the reverse direction.
func (d Direction) Opposite() Direction {
	switch d {
	case East:
		return West
	case West:
		return East
	case South:
		return North
	case North:
		return South
	}
	return d
}

type Location struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	Type        LocationType      `json:"type"`
	Description string            `json:"description"`
	Exits       map[Direction]int `json:"exits"`
}

type NPCAttributes struct {
	Strength     int `json:"strength"`
	Constitution int `json:"constitution"`
}

type NPC struct {
	ID         int           `json:"id"`
	Name       string        `json:"name"`
	Realm      Realm         `json:"realm"`
	Sect       string        `json:"sect,omitempty"`
	Alive      bool          `json:"alive"`
	LocationID int           `json:"location_id"`
	Reputation int           `json:"reputation"`
	Stats      Stats         `json:"stats"`
	Attributes NPCAttributes `json:"attributes"`
}

type World struct {
	Locations         map[int]Location `json:"locations"`
	NPCs              []NPC            `json:"npcs"`
	CurrentLocationID int              `json:"current_location_id"`
}

// CurrentLocation returns the location the player stands in.
func (w World) CurrentLocation() (Location, bool) {
	loc, ok := w.Locations[w.CurrentLocationID]
	return loc, ok
}

// LocationIDs returns the ids in ascending order.
func (w World) LocationIDs() []int {
	ids := make([]int, 0, len(w.Locations))
	for id := range w.Locations {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

const worldSize = 10

var locationNames = map[LocationType][]string{
	LocationTown:  {"洛阳", "长安", "开封", "杭州"},
	LocationWilds: {"黑风山", "无名山谷", "乱石坡", "密林"},
	LocationRiver: {"黄河", "长江", "淮河", "渭水"},
	LocationSect:  {"华山派", "丐帮", "魔教", "少林寺"},
}

var locationTypes = []LocationType{LocationTown, LocationWilds, LocationRiver, LocationSect}

var npcNames = []string{"李寻欢", "扫地僧", "东方不败", "令狐冲", "黄蓉"}

// GenerateWorld builds the static map and the starting NPCs from a seeded source.
// Every exit targets an existing location; reverse links are added when the slot is free.
func GenerateWorld(src *rng.Source) World {
	locations := make(map[int]Location, worldSize)
	for i := 1; i <= worldSize; i++ {
		typ := locationTypes[src.Intn(len(locationTypes))]
		names := locationNames[typ]
		name := names[src.Intn(len(names))]
		locations[i] = Location{
			ID:          i,
			Name:        fmt.Sprintf("%s (%d)", name, i),
			Type:        typ,
			Description: fmt.Sprintf("这里是%s，一片未知的区域。", name),
			Exits:       map[Direction]int{},
		}
	}

	for id := 1; id <= worldSize; id++ {
		numExits := src.IntRange(1, 3)
		for j := 0; j < numExits; j++ {
			target := src.IntRange(1, worldSize)
			if target == id {
				continue
			}
			dir := directions[src.Intn(len(directions))]
			loc := locations[id]
			if _, taken := loc.Exits[dir]; taken {
				continue
			}
			loc.Exits[dir] = target

			back := locations[target]
			if _, taken := back.Exits[dir.Opposite()]; !taken {
				back.Exits[dir.Opposite()] = id
			}
		}
	}

	npcs := make([]NPC, 0, len(npcNames))
	for i, name := range npcNames {
		npcs = append(npcs, NPC{
			ID:         i + 1,
			Name:       name,
			Realm:      RealmMortal,
			Alive:      true,
			LocationID: src.IntRange(1, worldSize),
			Stats:      Stats{HP: 100, MaxHP: 100, MP: 50, MaxMP: 50},
			Attributes: NPCAttributes{Strength: 10, Constitution: 10},
		})
	}

	return World{Locations: locations, NPCs: npcs, CurrentLocationID: 1}
}
