package models

import "time"

// User is an account allowed to call the inventory API.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;type:varchar(50);not null"`
	Email        *string   `json:"email,omitempty" gorm:"uniqueIndex;type:varchar(255)"`
	PasswordHash string    `json:"-" gorm:"type:varchar(255);not null"` // never serialized
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime:false;not null"`
}
