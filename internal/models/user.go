package models

import "time"

// User represents a registered diary user
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	AppleSub  *string   `gorm:"uniqueIndex" json:"-"`
	GoogleSub *string   `gorm:"uniqueIndex" json:"-"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
