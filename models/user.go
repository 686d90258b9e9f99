package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/techblog/techblog/utils"
)

// User represents a blog author. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;not null;uniqueIndex" json:"username"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Password carries a new plaintext until the next create/save hashes it.
	Password string `gorm:"-" json:"-"`
}

// BeforeCreate hashes the initial password and sets timestamps.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return u.hashPendingPassword()
}

// BeforeUpdate rehashes when a new password was assigned and refreshes UpdatedAt.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return u.hashPendingPassword()
}

func (u *User) hashPendingPassword() error {
	if u.Password == "" {
		return nil
	}
	hash, err := utils.HashPassword(u.Password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.Password = ""
	return nil
}
