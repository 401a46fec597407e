package models

import "time"

// ReportThreshold is the report count at which a user shows up in the moderation queue.
const ReportThreshold = 8

// UserBlock is a directed block edge. The pair (BlockerID, BlockedID) is unique.
type UserBlock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BlockerID uint      `gorm:"not null;uniqueIndex:idx_blocks_pair" json:"blockerId"`
	BlockedID uint      `gorm:"not null;uniqueIndex:idx_blocks_pair;index" json:"blockedId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for GORM.
func (UserBlock) TableName() string { return "blocks" }

// UserReport is a directed report edge. Duplicates are allowed and counted.
type UserReport struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ReporterID uint      `gorm:"not null;index" json:"reporterId"`
	ReportedID uint      `gorm:"not null;index" json:"reportedId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// TableName specifies the table name for GORM.
func (UserReport) TableName() string { return "reports" }
