package models

import "time"

// Setting keys read by the chat core and the public pages.
const (
	SettingFilterWords          = "filter_words"
	SettingAboutText            = "about_text"
	SettingDailyTopic           = "daily_topic"
	SettingGroupLifetimeHours   = "group_message_lifetime_hours"
	SettingPrivateLifetimeHours = "private_message_lifetime_hours"
)

// Retention windows applied when the settings are unset or unparseable.
const (
	DefaultGroupLifetimeHours   = 48
	DefaultPrivateLifetimeHours = 24
)

const defaultAboutText = "Bakı Dövlət Universiteti Tələbə Chat Platforması"

// Setting is one admin-editable key/value pair.
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for GORM.
func (Setting) TableName() string { return "settings" }

// DefaultSettings are inserted at boot when the key is missing.
func DefaultSettings() map[string]string {
	return map[string]string{
		SettingFilterWords:          "",
		SettingAboutText:            defaultAboutText,
		SettingDailyTopic:           "",
		SettingGroupLifetimeHours:   "48",
		SettingPrivateLifetimeHours: "24",
	}
}

// PublicSettingKeys are the settings exposed to signed-in students.
var PublicSettingKeys = []string{SettingAboutText, SettingDailyTopic}
