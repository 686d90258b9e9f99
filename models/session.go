package models

import "time"

// Session is a server-side login record. ID holds the sha-256 of the session id, never the id itself.
type Session struct {
	ID        string    `gorm:"primaryKey;size:64" json:"-"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	ExpiresAt time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// All lists every model that must be migrated.
func All() []interface{} {
	return []interface{}{&User{}, &Post{}, &Comment{}, &Session{}}
}
