package models

import "gorm.io/gorm"

// User represents an account in the system.
// Every user owns exactly one Profile, created together with the account.
type User struct {
	gorm.Model
	Username     string `gorm:"size:150;unique;not null"`
	Email        string `gorm:"size:255;unique;not null"`
	PasswordHash string `gorm:"size:255;not null"`
}
