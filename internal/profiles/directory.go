// Package profiles holds the profile directory and the relationship ledger:
// profile lookups and updates, search, invitations and friendships between profiles.
package profiles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"socialprofiles/backend/internal/metrics"
	"socialprofiles/backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Actor is the authenticated user on whose behalf an operation runs.
type Actor struct {
	UserID uint
}

// ProfileUpdate lists the fields a user may change on their own profile.
// Nil fields are left untouched.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Bio       *string
	Avatar    *string
}

func (u ProfileUpdate) changes() map[string]interface{} {
	changes := map[string]interface{}{}
	if u.FirstName != nil {
		changes["first_name"] = strings.TrimSpace(*u.FirstName)
	}
	if u.LastName != nil {
		changes["last_name"] = strings.TrimSpace(*u.LastName)
	}
	if u.Bio != nil {
		changes["bio"] = *u.Bio
	}
	if u.Avatar != nil {
		changes["avatar"] = strings.TrimSpace(*u.Avatar)
	}
	return changes
}

// Page is one page of a profile listing.
type Page struct {
	Profiles []models.Profile
	Total    int64
	Page     int
	Limit    int
}

// SearchResult is the outcome of a profile search.
// The zero value means no search was run, which is different from a search with no matches.
type SearchResult struct {
	Query    string
	Profiles []models.Profile
	Searched bool
}

// IsEmpty reports whether a search ran and matched nothing.
func (r SearchResult) IsEmpty() bool {
	return r.Searched && len(r.Profiles) == 0
}

// Directory gives read and update access to profile records.
type Directory struct {
	db     *gorm.DB
	ledger *Ledger
	logger *zap.Logger
}

// NewDirectory creates a Directory. The ledger is used to exclude existing contacts from invite suggestions.
func NewDirectory(db *gorm.DB, ledger *Ledger, logger *zap.Logger) *Directory {
	return &Directory{db: db, ledger: ledger, logger: logger}
}

// ProfileByUser returns the profile owned by userID.
// Every account gets a profile on registration, so a miss here is logged as an integrity problem.
func (d *Directory) ProfileByUser(ctx context.Context, userID uint) (*models.Profile, error) {
	profile, err := profileByUser(ctx, d.db, userID, "get profile by user")
	if IsNotFound(err) {
		d.logger.Error("user has no profile", zap.Uint("user_id", userID))
	}
	return profile, err
}

// ProfileBySlug returns the profile with the given slug.
func (d *Directory) ProfileBySlug(ctx context.Context, slug string) (*models.Profile, error) {
	return findProfile(ctx, d.db, "get profile by slug", "slug = ?", slug)
}

// ProfileByID returns the profile with the given id.
func (d *Directory) ProfileByID(ctx context.Context, id uint) (*models.Profile, error) {
	return findProfile(ctx, d.db, "get profile by id", "profiles.id = ?", id)
}

// ListAllProfiles returns every profile except the actor's own, in store order.
func (d *Directory) ListAllProfiles(ctx context.Context, actor Actor) ([]models.Profile, error) {
	profiles := []models.Profile{}
	err := d.db.WithContext(ctx).
		Preload("User").
		Where("user_id <> ?", actor.UserID).
		Order("id").
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("list all profiles: %w", err)
	}
	return profiles, nil
}

// ListAllProfilesPage is ListAllProfiles split into pages. page starts at 1.
func (d *Directory) ListAllProfilesPage(ctx context.Context, actor Actor, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 1
	}

	// Session makes query reusable across Count and Find.
	query := d.db.WithContext(ctx).Model(&models.Profile{}).Where("user_id <> ?", actor.UserID).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count profiles: %w", err)
	}

	profiles := []models.Profile{}
	err := query.Preload("User").
		Order("id").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("list profiles page: %w", err)
	}

	return &Page{Profiles: profiles, Total: total, Page: page, Limit: limit}, nil
}

// ListProfilesToInvite returns all profiles except the actor's own and except
// any profile already connected to it in either direction, whatever the status.
func (d *Directory) ListProfilesToInvite(ctx context.Context, actor Actor) ([]models.Profile, error) {
	own, err := d.ProfileByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	connected, err := d.ledger.ConnectedProfiles(ctx, own.ID)
	if err != nil {
		return nil, err
	}
	exclude := append([]uint{own.ID}, connected...)

	profiles := []models.Profile{}
	err = d.db.WithContext(ctx).
		Preload("User").
		Where("id NOT IN ?", exclude).
		Order("id").
		Find(&profiles).Error
	if err != nil {
		return nil, fmt.Errorf("list profiles to invite: %w", err)
	}
	return profiles, nil
}

// UpdateProfile applies update to the profile identified by profileID.
// Only the owning user may update a profile.
func (d *Directory) UpdateProfile(ctx context.Context, actor Actor, profileID uint, update ProfileUpdate) (*models.Profile, error) {
	const op = "update profile"

	profile, err := findProfile(ctx, d.db, op, "profiles.id = ?", profileID)
	if err != nil {
		return nil, err
	}
	if profile.UserID != actor.UserID {
		return nil, opError(op, ErrNotProfileOwner)
	}

	changes := update.changes()
	if len(changes) == 0 {
		return profile, nil
	}

	if err := d.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", profile.ID).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return findProfile(ctx, d.db, op, "profiles.id = ?", profile.ID)
}

// SearchProfiles does a case-insensitive substring match of query against first name,
// last name and account username. A profile matching several fields is returned once.
func (d *Directory) SearchProfiles(ctx context.Context, query string) (SearchResult, error) {
	query = strings.TrimSpace(query)
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"

	profiles := []models.Profile{}
	err := d.db.WithContext(ctx).
		Joins("JOIN users ON users.id = profiles.user_id").
		Preload("User").
		Where(`LOWER(profiles.first_name) LIKE ? ESCAPE '\' OR LOWER(profiles.last_name) LIKE ? ESCAPE '\' OR LOWER(users.username) LIKE ? ESCAPE '\'`,
			pattern, pattern, pattern).
		Order("profiles.id").
		Find(&profiles).Error
	if err != nil {
		return SearchResult{}, fmt.Errorf("search profiles: %w", err)
	}

	result := SearchResult{Query: query, Profiles: profiles, Searched: true}
	metrics.RecordSearch(result.IsEmpty())
	return result, nil
}

func profileByUser(ctx context.Context, db *gorm.DB, userID uint, op string) (*models.Profile, error) {
	return findProfile(ctx, db, op, "user_id = ?", userID)
}

func findProfile(ctx context.Context, db *gorm.DB, op string, query string, args ...interface{}) (*models.Profile, error) {
	var profile models.Profile
	err := db.WithContext(ctx).Preload("User").Where(query, args...).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, opError(op, ErrProfileNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &profile, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
