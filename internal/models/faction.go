package models

import (
	"time"
)

// Alignment of a sect. Drives reputation drift and default relationships.
type Alignment string

const (
	AlignmentRighteous Alignment = "正道"
	AlignmentVillain   Alignment = "邪宗"
	AlignmentNeutral   Alignment = "中立"
)

// RelationshipStatus between two sects.
type RelationshipStatus string

const (
	StatusAllied  RelationshipStatus = "ALLIED"
	StatusNeutral RelationshipStatus = "NEUTRAL"
	StatusHostile RelationshipStatus = "HOSTILE"
)

// Faction is a sect of the jianghu.
type Faction struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"uniqueIndex;size:64" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	Alignment   Alignment `gorm:"size:16" json:"alignment"`
	Reputation  int       `json:"reputation"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FactionRelationship is directed: source's stance towards target.
type FactionRelationship struct {
	ID        uint               `gorm:"primaryKey" json:"id"`
	SourceID  uint               `gorm:"uniqueIndex:idx_relationship_pair" json:"source_id"`
	TargetID  uint               `gorm:"uniqueIndex:idx_relationship_pair" json:"target_id"`
	Source    Faction            `gorm:"foreignKey:SourceID" json:"source"`
	Target    Faction            `gorm:"foreignKey:TargetID" json:"target"`
	Status    RelationshipStatus `gorm:"size:16;index" json:"status"`
	Intensity int                `json:"intensity"` // 关系强度
	UpdatedAt time.Time          `json:"updated_at"`
}
