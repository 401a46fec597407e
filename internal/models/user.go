// Package models contains the persistent and in-memory domain types of the chat platform.
package models

import "time"

// User is a registered student. Identity and activity status are owned here;
// the chat core only reads them.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone     string    `gorm:"uniqueIndex;size:20;not null" json:"phone"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	FullName  string    `gorm:"size:255;not null" json:"fullName"`
	Faculty   string    `gorm:"size:255;not null;index" json:"faculty"`
	Degree    string    `gorm:"size:50;not null" json:"degree"`
	Course    int       `gorm:"not null" json:"course"`
	Avatar    string    `gorm:"size:10;default:'👤'" json:"avatar"`
	IsActive  bool      `gorm:"not null" json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string { return "users" }

// SenderProfile is the display snapshot copied into every message at send time.
type SenderProfile struct {
	FullName string `json:"fullName"`
	Faculty  string `json:"faculty"`
	Degree   string `json:"degree"`
	Course   int    `json:"course"`
	Avatar   string `json:"avatar"`
}

// Profile returns the sender display snapshot for u.
func (u *User) Profile() SenderProfile {
	return SenderProfile{
		FullName: u.FullName,
		Faculty:  u.Faculty,
		Degree:   u.Degree,
		Course:   u.Course,
		Avatar:   u.Avatar,
	}
}

// Admin is a moderator account. Exactly one super admin is seeded at boot.
type Admin struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Password     string    `gorm:"size:255;not null" json:"-"`
	IsSuperAdmin bool      `gorm:"not null;default:false" json:"isSuperAdmin"`
	CreatedAt    time.Time `json:"createdAt"`
}

// TableName specifies the table name for GORM.
func (Admin) TableName() string { return "admins" }

// UserWithReports is a user row annotated with the number of reports filed against it.
type UserWithReports struct {
	User
	ReportCount int64 `json:"reportCount"`
}
