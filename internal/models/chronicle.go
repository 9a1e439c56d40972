package models

import (
	"encoding/json"
	"time"
)

// Chronicle record types.
const (
	EventWarStart  = "WAR_START"
	EventLegacy    = "LEGACY"
	EventNPCGrowth = "NPC_GROWTH"
)

// ChronicleEntry is an append-only world event record.
type ChronicleEntry struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Type      string    `gorm:"size:32;index" json:"type"`
	Subject   string    `gorm:"size:191;index" json:"subject"` // lookup key, e.g. "武当派→魔教"
	Timestamp string    `gorm:"size:64" json:"timestamp"`      // in-world time
	Details   string    `gorm:"type:text" json:"details"`      // JSON
	CreatedAt time.Time `json:"created_at"`
}

// GetDetails decodes the details payload into a generic map.
func (c *ChronicleEntry) GetDetails() map[string]any {
	out := make(map[string]any)
	if c.Details == "" {
		return out
	}
	_ = json.Unmarshal([]byte(c.Details), &out)
	return out
}

// SetDetails encodes v as the details payload.
func (c *ChronicleEntry) SetDetails(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Details = string(data)
	return nil
}
