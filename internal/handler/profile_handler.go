package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"socialprofiles/backend/internal/auth"
	"socialprofiles/backend/internal/models"
	"socialprofiles/backend/internal/profiles"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// UpdateProfileInput lists the editable profile fields. Omitted fields are left untouched;
// an empty avatar clears it.
type UpdateProfileInput struct {
	FirstName *string `json:"first_name" binding:"omitempty,max=200" example:"Test"`
	LastName  *string `json:"last_name" binding:"omitempty,max=200" example:"User"`
	Bio       *string `json:"bio" binding:"omitempty,max=2000" example:"Hello there"`
	Avatar    *string `json:"avatar" binding:"omitempty,max=512,url|len=0" example:"https://example.com/me.png"`
}

// ProfileHandler serves profile browsing, search and editing.
type ProfileHandler struct {
	directory *profiles.Directory
	ledger    *profiles.Ledger
	logger    *zap.Logger
}

// NewProfileHandler creates a ProfileHandler.
func NewProfileHandler(directory *profiles.Directory, ledger *profiles.Ledger, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{directory: directory, ledger: ledger, logger: logger}
}

// requireActor returns the authenticated user or writes a 401.
func requireActor(c *gin.Context) (profiles.Actor, bool) {
	actor, ok := auth.ActorFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "User not authenticated"})
	}
	return actor, ok
}

// viewer resolves the authenticated user's own profile, writing the error response on failure.
func (h *ProfileHandler) viewer(c *gin.Context) (profiles.Actor, *models.Profile, bool) {
	actor, ok := requireActor(c)
	if !ok {
		return actor, nil, false
	}
	me, err := h.directory.ProfileByUser(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return actor, nil, false
	}
	return actor, me, true
}

// GetMe godoc
// @Summary      Get current user's profile
// @Description  Returns the authenticated user's profile with relationship counts.
// @Tags         profiles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  MeResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /profiles/me [get]
func (h *ProfileHandler) GetMe(c *gin.Context) {
	_, me, ok := h.viewer(c)
	if !ok {
		return
	}

	counts, err := h.ledger.Counts(c.Request.Context(), me.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, MeResponse{
		Profile: newProfileResponse(*me),
		Email:   me.User.Email,
		Counts:  counts,
	})
}

// UpdateMe godoc
// @Summary      Update current user's profile
// @Description  Changes the given fields of the authenticated user's profile. Unknown fields are rejected.
// @Tags         profiles
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body UpdateProfileInput true "Fields to change"
// @Success      200  {object}  ProfileResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      403  {object}  ErrorResponse
// @Router       /profiles/me [patch]
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	actor, me, ok := h.viewer(c)
	if !ok {
		return
	}

	var input UpdateProfileInput
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err.Error())
		return
	}
	if err := binding.Validator.ValidateStruct(&input); err != nil {
		badRequest(c, err.Error())
		return
	}

	updated, err := h.directory.UpdateProfile(c.Request.Context(), actor, me.ID, profiles.ProfileUpdate{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Bio:       input.Bio,
		Avatar:    input.Avatar,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(*updated))
}

// ListProfiles godoc
// @Summary      List profiles
// @Description  Lists every profile except the viewer's, with the viewer's relation to each.
// @Tags         profiles
// @Produce      json
// @Security     BearerAuth
// @Param        page  query     int     false  "Page number" default(1)
// @Param        limit query     int     false  "Items per page" default(10)
// @Success      200   {object}  PaginatedProfileResponse
// @Failure      401   {object}  ErrorResponse
// @Router       /profiles [get]
func (h *ProfileHandler) ListProfiles(c *gin.Context) {
	actor, me, ok := h.viewer(c)
	if !ok {
		return
	}
	page, limit := pageParams(c)

	result, err := h.directory.ListAllProfilesPage(c.Request.Context(), actor, page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	relations, err := h.ledger.RelationMap(c.Request.Context(), me.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, NewPaginatedResponse(newProfileResponses(result.Profiles, relations), result.Total, result.Page, result.Limit))
}

// ListToInvite godoc
// @Summary      List profiles available to invite
// @Description  Lists profiles with no relationship to the viewer in either direction.
// @Tags         profiles
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ProfileListResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /profiles/to-invite [get]
func (h *ProfileHandler) ListToInvite(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	list, err := h.directory.ListProfilesToInvite(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ProfileListResponse{Data: newProfileResponses(list, nil), IsEmpty: len(list) == 0})
}

// SearchProfiles godoc
// @Summary      Search profiles
// @Description  Case-insensitive substring search over first name, last name and username.
// @Description  Without the q parameter no search runs and "searched" is false.
// @Tags         profiles
// @Produce      json
// @Param        q    query     string  false  "Search text"
// @Success      200  {object}  SearchResponse
// @Router       /profiles/search [get]
func (h *ProfileHandler) SearchProfiles(c *gin.Context) {
	query, present := c.GetQuery("q")
	if !present {
		c.JSON(http.StatusOK, SearchResponse{Data: []ProfileResponse{}})
		return
	}

	result, err := h.directory.SearchProfiles(c.Request.Context(), query)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var relations map[uint]profiles.RelationView
	if actor, ok := auth.ActorFrom(c); ok {
		if me, err := h.directory.ProfileByUser(c.Request.Context(), actor.UserID); err == nil {
			relations, err = h.ledger.RelationMap(c.Request.Context(), me.ID)
			if err != nil {
				respondError(c, h.logger, err)
				return
			}
		}
	}

	c.JSON(http.StatusOK, SearchResponse{
		Lookup:   result.Query,
		Searched: result.Searched,
		IsEmpty:  result.IsEmpty(),
		Data:     newProfileResponses(result.Profiles, relations),
	})
}

// GetProfile godoc
// @Summary      Get a profile
// @Description  Returns a profile by slug with its counts and the viewer's relation to it.
// @Tags         profiles
// @Produce      json
// @Security     BearerAuth
// @Param        slug  path      string  true  "Profile slug"
// @Success      200   {object}  ProfileDetailResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      404   {object}  ErrorResponse
// @Router       /profiles/{slug} [get]
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	_, me, ok := h.viewer(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	profile, err := h.directory.ProfileBySlug(ctx, c.Param("slug"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := ProfileDetailResponse{
		Profile: newProfileResponse(*profile),
		IsSelf:  profile.ID == me.ID,
	}
	if !resp.IsSelf {
		if resp.Relation, err = h.ledger.RelationBetween(ctx, me.ID, profile.ID); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}
	if resp.Counts, err = h.ledger.Counts(ctx, profile.ID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListInvitations godoc
// @Summary      List received invitations
// @Description  Lists the senders of pending invitations to the viewer.
// @Tags         relationships
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ProfileListResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /profiles/me/invites [get]
func (h *ProfileHandler) ListInvitations(c *gin.Context) {
	h.listRelated(c, h.ledger.InvitationsReceived)
}

// ListSentInvitations godoc
// @Summary      List sent invitations
// @Description  Lists the receivers of the viewer's pending invitations.
// @Tags         relationships
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ProfileListResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /profiles/me/invites/sent [get]
func (h *ProfileHandler) ListSentInvitations(c *gin.Context) {
	h.listRelated(c, h.ledger.InvitationsSent)
}

// ListFriends godoc
// @Summary      List friends
// @Description  Lists the profiles with an accepted relationship to the viewer.
// @Tags         relationships
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ProfileListResponse
// @Failure      401  {object}  ErrorResponse
// @Router       /profiles/me/friends [get]
func (h *ProfileHandler) ListFriends(c *gin.Context) {
	h.listRelated(c, h.ledger.FriendsOf)
}

func (h *ProfileHandler) listRelated(c *gin.Context, list func(ctx context.Context, profileID uint) ([]models.Profile, error)) {
	_, me, ok := h.viewer(c)
	if !ok {
		return
	}

	related, err := list(c.Request.Context(), me.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, ProfileListResponse{Data: newProfileResponses(related, nil), IsEmpty: len(related) == 0})
}
