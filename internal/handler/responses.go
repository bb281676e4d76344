package handler

import (
	"time"

	"socialprofiles/backend/internal/models"
	"socialprofiles/backend/internal/profiles"
)

// ProfileResponse is the public view of a profile.
type ProfileResponse struct {
	ID        uint                   `json:"id" example:"1"`
	Slug      string                 `json:"slug" example:"testuser"`
	Username  string                 `json:"username" example:"testuser"`
	FirstName string                 `json:"first_name" example:"Test"`
	LastName  string                 `json:"last_name" example:"User"`
	FullName  string                 `json:"full_name" example:"Test User"`
	Bio       string                 `json:"bio"`
	Avatar    string                 `json:"avatar"`
	CreatedAt time.Time              `json:"created_at"`
	Relation  *profiles.RelationView `json:"relation,omitempty"`
}

// ProfileDetailResponse is a single profile as seen by the viewer.
type ProfileDetailResponse struct {
	Profile  ProfileResponse       `json:"profile"`
	IsSelf   bool                  `json:"is_self"`
	Counts   profiles.Counts       `json:"counts"`
	Relation profiles.RelationView `json:"relation"`
}

// MeResponse is the authenticated user's own profile.
type MeResponse struct {
	Profile ProfileResponse `json:"profile"`
	Email   string          `json:"email" example:"test@example.com"`
	Counts  profiles.Counts `json:"counts"`
}

// ProfileListResponse is an unpaginated list of profiles.
type ProfileListResponse struct {
	Data    []ProfileResponse `json:"data"`
	IsEmpty bool              `json:"is_empty"`
}

// PaginatedProfileResponse documents PaginatedResponse[ProfileResponse] for swagger.
type PaginatedProfileResponse struct {
	Data    []ProfileResponse `json:"data"`
	Meta    PaginationMeta    `json:"meta"`
	IsEmpty bool              `json:"is_empty"`
}

// SearchResponse distinguishes a search that matched nothing from no search at all.
type SearchResponse struct {
	Lookup   string            `json:"lookup"`
	Searched bool              `json:"searched"`
	IsEmpty  bool              `json:"is_empty"`
	Data     []ProfileResponse `json:"data"`
}

// RelationshipResponse describes one relationship row.
type RelationshipResponse struct {
	SenderID   uint      `json:"sender_id" example:"1"`
	ReceiverID uint      `json:"receiver_id" example:"2"`
	Status     string    `json:"status" example:"sent"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// RelationshipChange is the payload of events about deleted relationships.
type RelationshipChange struct {
	ProfileID uint `json:"profile_id" example:"1"`
}

func newProfileResponse(p models.Profile) ProfileResponse {
	return ProfileResponse{
		ID:        p.ID,
		Slug:      p.Slug,
		Username:  p.User.Username,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		FullName:  p.FullName(),
		Bio:       p.Bio,
		Avatar:    p.Avatar,
		CreatedAt: p.CreatedAt,
	}
}

// newProfileResponses converts ps, attaching the viewer's relation to each when relations is not nil.
func newProfileResponses(ps []models.Profile, relations map[uint]profiles.RelationView) []ProfileResponse {
	out := make([]ProfileResponse, 0, len(ps))
	for _, p := range ps {
		resp := newProfileResponse(p)
		if relations != nil {
			view := relations[p.ID]
			resp.Relation = &view
		}
		out = append(out, resp)
	}
	return out
}

func newRelationshipResponse(r models.Relationship) RelationshipResponse {
	return RelationshipResponse{
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Status:     string(r.Status),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
