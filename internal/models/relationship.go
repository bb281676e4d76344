package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// RelationshipStatus defines the state of an invitation between two profiles.
type RelationshipStatus string

const (
	// StatusSent means the invitation was created and the receiver has not acted on it yet.
	StatusSent RelationshipStatus = "sent"

	// StatusAccepted means the receiver accepted the invitation, the profiles are now friends.
	StatusAccepted RelationshipStatus = "accepted"
)

// ErrSelfRelationship is returned by the save hook when sender and receiver are the same profile.
var ErrSelfRelationship = errors.New("a profile cannot have a relationship with itself")

// Relationship is a directed edge between two profiles.
// The primary key is a composite of (SenderID, ReceiverID), so there is at most one row per ordered pair.
// Rejected invitations are not kept: rejecting deletes the row.
type Relationship struct {
	SenderID   uint               `gorm:"primaryKey;autoIncrement:false;check:chk_relationship_not_self,sender_id <> receiver_id"`
	ReceiverID uint               `gorm:"primaryKey;autoIncrement:false;index"`
	Status     RelationshipStatus `gorm:"type:varchar(20);not null;index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Sender   Profile `gorm:"foreignKey:SenderID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Receiver Profile `gorm:"foreignKey:ReceiverID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// BeforeSave rejects self-relationships before they reach the database.
// Zero-valued models used as update targets are let through.
func (r *Relationship) BeforeSave(_ *gorm.DB) error {
	if r.SenderID != 0 && r.SenderID == r.ReceiverID {
		return ErrSelfRelationship
	}
	return nil
}

// Other returns the id of the party that is not profileID.
func (r Relationship) Other(profileID uint) uint {
	if r.SenderID == profileID {
		return r.ReceiverID
	}
	return r.SenderID
}
