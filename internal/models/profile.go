package models

import "gorm.io/gorm"

// Profile is the user-facing identity record. There is exactly one per User.
type Profile struct {
	gorm.Model
	UserID    uint   `gorm:"not null;uniqueIndex"`
	FirstName string `gorm:"size:200"`
	LastName  string `gorm:"size:200"`
	Slug      string `gorm:"size:255;not null;uniqueIndex"`
	Bio       string `gorm:"type:text"`
	Avatar    string `gorm:"size:512"`

	User User `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// FullName joins the name parts, falling back to the username.
func (p Profile) FullName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	case p.LastName != "":
		return p.LastName
	}
	return p.User.Username
}
