package profiles

import (
	"context"
	"errors"
	"fmt"

	"socialprofiles/backend/internal/metrics"
	"socialprofiles/backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RelationView describes how a viewer relates to another profile.
type RelationView struct {
	// Invited is set when the viewer sent a pending invitation to the other profile.
	Invited   bool `json:"invited"`
	// InvitedBy is set when the other profile sent a pending invitation to the viewer.
	InvitedBy bool `json:"invited_by"`
	Friends   bool `json:"friends"`
}

// Connected reports whether any relationship row exists.
func (v RelationView) Connected() bool {
	return v.Invited || v.InvitedBy || v.Friends
}

// Counts summarises the relationships of one profile.
type Counts struct {
	Friends         int64 `json:"friends_count"`
	PendingIncoming int64 `json:"pending_incoming_count"`
	PendingOutgoing int64 `json:"pending_outgoing_count"`
}

// Ledger owns the directed relationship rows between profiles.
//
// Per ordered (sender, receiver) pair the row is absent, sent or accepted.
// It is created as sent by the sender, moves to accepted only when the receiver
// accepts it while sent, and is deleted by reject or remove from either state.
type Ledger struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewLedger creates a Ledger.
func NewLedger(db *gorm.DB, logger *zap.Logger) *Ledger {
	return &Ledger{db: db, logger: logger}
}

// SendInvitation creates a sent relationship from the actor's profile to receiverID.
func (l *Ledger) SendInvitation(ctx context.Context, actor Actor, receiverID uint) (*models.Relationship, error) {
	const op = "send invitation"

	sender, err := profileByUser(ctx, l.db, actor.UserID, op)
	if err != nil {
		return nil, err
	}
	if sender.ID == receiverID {
		return nil, opError(op, ErrSelfRelationship)
	}

	var rel models.Relationship
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var receiver models.Profile
		if err := tx.Select("id").First(&receiver, receiverID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return opError(op, ErrProfileNotFound)
			}
			return err
		}

		var existing []models.Relationship
		if err := eitherDirection(tx, sender.ID, receiverID).Find(&existing).Error; err != nil {
			return err
		}
		for _, e := range existing {
			if e.SenderID == sender.ID {
				return opError(op, ErrRelationshipExists)
			}
		}
		// Two opposite sends racing under read committed can both pass this check and
		// leave a row per direction. RemoveRelationship deletes both.
		if len(existing) > 0 {
			return opError(op, ErrReverseInvitationExists)
		}

		rel = models.Relationship{
			SenderID:   sender.ID,
			ReceiverID: receiverID,
			Status:     models.StatusSent,
		}
		if err := tx.Omit(clause.Associations).Create(&rel).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return opError(op, ErrRelationshipExists)
			}
			return err
		}
		return nil
	})
	if err != nil {
		var opErr *Error
		if errors.As(err, &opErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.RecordTransition(metrics.TransitionSent)
	l.logger.Info("invitation sent", zap.Uint("sender_id", rel.SenderID), zap.Uint("receiver_id", rel.ReceiverID))
	return &rel, nil
}

// AcceptInvitation moves the (senderID, actor) relationship from sent to accepted.
// A row that is not in the sent state is left unchanged and no error is returned.
// The bool reports whether this call made the transition.
func (l *Ledger) AcceptInvitation(ctx context.Context, actor Actor, senderID uint) (*models.Relationship, bool, error) {
	const op = "accept invitation"

	receiver, err := profileByUser(ctx, l.db, actor.UserID, op)
	if err != nil {
		return nil, false, err
	}

	// Conditional update: only one concurrent transition out of sent can win.
	res := l.db.WithContext(ctx).
		Model(&models.Relationship{}).
		Where("sender_id = ? AND receiver_id = ? AND status = ?", senderID, receiver.ID, models.StatusSent).
		Update("status", models.StatusAccepted)
	if res.Error != nil {
		return nil, false, fmt.Errorf("%s: %w", op, res.Error)
	}

	var row models.Relationship
	err = l.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiver.ID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, opError(op, ErrRelationshipNotFound)
	}
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	if res.RowsAffected == 0 {
		metrics.RecordTransition(metrics.TransitionNoopAccept)
		l.logger.Debug("invitation not in sent state, accept ignored",
			zap.Uint("sender_id", senderID), zap.Uint("receiver_id", receiver.ID), zap.String("status", string(row.Status)))
		return &row, false, nil
	}

	metrics.RecordTransition(metrics.TransitionAccepted)
	l.logger.Info("invitation accepted", zap.Uint("sender_id", senderID), zap.Uint("receiver_id", receiver.ID))
	return &row, true, nil
}

// RejectInvitation deletes the (senderID, actor) relationship whatever its status.
func (l *Ledger) RejectInvitation(ctx context.Context, actor Actor, senderID uint) error {
	const op = "reject invitation"

	receiver, err := profileByUser(ctx, l.db, actor.UserID, op)
	if err != nil {
		return err
	}

	res := l.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiver.ID).
		Delete(&models.Relationship{})
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return opError(op, ErrRelationshipNotFound)
	}

	metrics.RecordTransition(metrics.TransitionRejected)
	l.logger.Info("invitation rejected", zap.Uint("sender_id", senderID), zap.Uint("receiver_id", receiver.ID))
	return nil
}

// RemoveRelationship deletes the relationship between the actor and otherID,
// regardless of who sent the invitation or its status.
func (l *Ledger) RemoveRelationship(ctx context.Context, actor Actor, otherID uint) error {
	const op = "remove relationship"

	me, err := profileByUser(ctx, l.db, actor.UserID, op)
	if err != nil {
		return err
	}

	res := eitherDirection(l.db.WithContext(ctx), me.ID, otherID).Delete(&models.Relationship{})
	if res.Error != nil {
		return fmt.Errorf("%s: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return opError(op, ErrRelationshipNotFound)
	}

	metrics.RecordTransition(metrics.TransitionRemoved)
	l.logger.Info("relationship removed", zap.Uint("profile_id", me.ID), zap.Uint("other_id", otherID))
	return nil
}

// InvitationsReceived returns the senders of every pending invitation addressed to profileID.
func (l *Ledger) InvitationsReceived(ctx context.Context, profileID uint) ([]models.Profile, error) {
	var rels []models.Relationship
	err := l.db.WithContext(ctx).
		Preload("Sender.User").
		Where("receiver_id = ? AND status = ?", profileID, models.StatusSent).
		Order("created_at, sender_id, receiver_id").
		Find(&rels).Error
	if err != nil {
		return nil, fmt.Errorf("invitations received: %w", err)
	}

	senders := make([]models.Profile, 0, len(rels))
	for _, r := range rels {
		senders = append(senders, r.Sender)
	}
	return senders, nil
}

// InvitationsSent returns the receivers of every pending invitation sent by profileID.
func (l *Ledger) InvitationsSent(ctx context.Context, profileID uint) ([]models.Profile, error) {
	var rels []models.Relationship
	err := l.db.WithContext(ctx).
		Preload("Receiver.User").
		Where("sender_id = ? AND status = ?", profileID, models.StatusSent).
		Order("created_at, sender_id, receiver_id").
		Find(&rels).Error
	if err != nil {
		return nil, fmt.Errorf("invitations sent: %w", err)
	}

	receivers := make([]models.Profile, 0, len(rels))
	for _, r := range rels {
		receivers = append(receivers, r.Receiver)
	}
	return receivers, nil
}

// FriendsOf returns the other party of every accepted relationship of profileID.
func (l *Ledger) FriendsOf(ctx context.Context, profileID uint) ([]models.Profile, error) {
	var rels []models.Relationship
	err := l.db.WithContext(ctx).
		Preload("Sender.User").
		Preload("Receiver.User").
		Where("(sender_id = ? OR receiver_id = ?) AND status = ?", profileID, profileID, models.StatusAccepted).
		Order("created_at, sender_id, receiver_id").
		Find(&rels).Error
	if err != nil {
		return nil, fmt.Errorf("friends of: %w", err)
	}

	friends := make([]models.Profile, 0, len(rels))
	for _, r := range rels {
		if r.SenderID == profileID {
			friends = append(friends, r.Receiver)
		} else {
			friends = append(friends, r.Sender)
		}
	}
	return friends, nil
}

// ConnectedProfiles returns the ids of every profile sharing a relationship row
// with profileID, in either direction and any status. Each id appears once.
func (l *Ledger) ConnectedProfiles(ctx context.Context, profileID uint) ([]uint, error) {
	rels, err := l.involving(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("connected profiles: %w", err)
	}

	seen := make(map[uint]struct{}, len(rels))
	ids := make([]uint, 0, len(rels))
	for _, r := range rels {
		other := r.Other(profileID)
		if _, ok := seen[other]; ok {
			continue
		}
		seen[other] = struct{}{}
		ids = append(ids, other)
	}
	return ids, nil
}

// RelationBetween describes how viewerID relates to otherID.
func (l *Ledger) RelationBetween(ctx context.Context, viewerID, otherID uint) (RelationView, error) {
	var rels []models.Relationship
	if err := eitherDirection(l.db.WithContext(ctx), viewerID, otherID).Find(&rels).Error; err != nil {
		return RelationView{}, fmt.Errorf("relation between: %w", err)
	}

	var view RelationView
	for _, r := range rels {
		applyRelation(&view, r, viewerID)
	}
	return view, nil
}

// RelationMap returns a RelationView for every profile connected to viewerID.
// Profiles missing from the map have no relationship with the viewer.
func (l *Ledger) RelationMap(ctx context.Context, viewerID uint) (map[uint]RelationView, error) {
	rels, err := l.involving(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("relation map: %w", err)
	}

	views := make(map[uint]RelationView, len(rels))
	for _, r := range rels {
		other := r.Other(viewerID)
		view := views[other]
		applyRelation(&view, r, viewerID)
		views[other] = view
	}
	return views, nil
}

// Counts returns friend and pending invitation counts for profileID.
func (l *Ledger) Counts(ctx context.Context, profileID uint) (Counts, error) {
	var c Counts
	db := l.db.WithContext(ctx).Model(&models.Relationship{})

	if err := db.Session(&gorm.Session{}).
		Where("(sender_id = ? OR receiver_id = ?) AND status = ?", profileID, profileID, models.StatusAccepted).
		Count(&c.Friends).Error; err != nil {
		return Counts{}, fmt.Errorf("count friends: %w", err)
	}
	if err := db.Session(&gorm.Session{}).
		Where("receiver_id = ? AND status = ?", profileID, models.StatusSent).
		Count(&c.PendingIncoming).Error; err != nil {
		return Counts{}, fmt.Errorf("count incoming invitations: %w", err)
	}
	if err := db.Session(&gorm.Session{}).
		Where("sender_id = ? AND status = ?", profileID, models.StatusSent).
		Count(&c.PendingOutgoing).Error; err != nil {
		return Counts{}, fmt.Errorf("count outgoing invitations: %w", err)
	}
	return c, nil
}

func (l *Ledger) involving(ctx context.Context, profileID uint) ([]models.Relationship, error) {
	var rels []models.Relationship
	err := l.db.WithContext(ctx).
		Where("sender_id = ? OR receiver_id = ?", profileID, profileID).
		Order("created_at, sender_id, receiver_id").
		Find(&rels).Error
	return rels, err
}

// eitherDirection scopes db to the row (a, b) or (b, a).
func eitherDirection(db *gorm.DB, a, b uint) *gorm.DB {
	return db.Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a)
}

func applyRelation(view *RelationView, r models.Relationship, viewerID uint) {
	switch {
	case r.Status == models.StatusAccepted:
		view.Friends = true
	case r.SenderID == viewerID:
		view.Invited = true
	default:
		view.InvitedBy = true
	}
}
