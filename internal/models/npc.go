package models

import "time"

// NPCRecord is the archived form of a world NPC, keyed by name.
type NPCRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"uniqueIndex;size:64" json:"name"`
	Realm        string    `gorm:"size:16" json:"realm"`
	Sect         string    `gorm:"size:64" json:"sect"`
	Alive        bool      `json:"alive"`
	LocationID   int       `json:"location_id"`
	Reputation   int       `json:"reputation"`
	HP           int       `json:"hp"`
	MaxHP        int       `json:"max_hp"`
	MP           int       `json:"mp"`
	MaxMP        int       `json:"max_mp"`
	Strength     int       `json:"strength"`
	Constitution int       `json:"constitution"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// GameMeta is a small key/value table for world-level bookkeeping.
type GameMeta struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MetaTriggeredOnceEvents stores the JSON list of fired one-shot events.
const MetaTriggeredOnceEvents = "triggeredOnceEvents"
