package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"socialprofiles/backend/internal/hub"
	"socialprofiles/backend/internal/profiles"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const heartbeatInterval = 25 * time.Second

// RelationHandler serves invitation and friendship transitions and the event stream.
type RelationHandler struct {
	directory *profiles.Directory
	ledger    *profiles.Ledger
	hub       *hub.Hub
	logger    *zap.Logger
}

// NewRelationHandler creates a RelationHandler publishing transitions to h.
func NewRelationHandler(directory *profiles.Directory, ledger *profiles.Ledger, h *hub.Hub, logger *zap.Logger) *RelationHandler {
	return &RelationHandler{directory: directory, ledger: ledger, hub: h, logger: logger}
}

func profileIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, "Invalid profile ID")
		return 0, false
	}
	return uint(id), true
}

// SendInvitation godoc
// @Summary      Send an invitation
// @Description  Invites another profile to become friends.
// @Tags         relationships
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Receiver profile ID"
// @Success      201  {object}  RelationshipResponse
// @Failure      400  {object}  ErrorResponse "Invalid ID or self-invitation"
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Receiver not found"
// @Failure      409  {object}  ErrorResponse "Relationship already exists"
// @Router       /relationships/{id}/invite [post]
func (h *RelationHandler) SendInvitation(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	receiverID, ok := profileIDParam(c)
	if !ok {
		return
	}

	rel, err := h.ledger.SendInvitation(c.Request.Context(), actor, receiverID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := newRelationshipResponse(*rel)
	h.hub.Publish(rel.ReceiverID, hub.Event{Type: hub.EventInvitationReceived, Payload: resp})
	c.JSON(http.StatusCreated, resp)
}

// AcceptInvitation godoc
// @Summary      Accept an invitation
// @Description  Accepts the pending invitation sent by the given profile. Accepting twice is harmless.
// @Tags         relationships
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Sender profile ID"
// @Success      200  {object}  RelationshipResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Invitation not found"
// @Router       /relationships/{id}/accept [post]
func (h *RelationHandler) AcceptInvitation(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	senderID, ok := profileIDParam(c)
	if !ok {
		return
	}

	rel, accepted, err := h.ledger.AcceptInvitation(c.Request.Context(), actor, senderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	resp := newRelationshipResponse(*rel)
	if accepted {
		h.hub.Publish(rel.SenderID, hub.Event{Type: hub.EventInvitationAccepted, Payload: resp})
	}
	c.JSON(http.StatusOK, resp)
}

// RejectInvitation godoc
// @Summary      Reject an invitation
// @Description  Deletes the invitation sent by the given profile.
// @Tags         relationships
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Sender profile ID"
// @Success      204
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Invitation not found"
// @Router       /relationships/{id}/reject [post]
func (h *RelationHandler) RejectInvitation(c *gin.Context) {
	h.deleteRelationship(c, hub.EventInvitationRejected, h.ledger.RejectInvitation)
}

// RemoveRelationship godoc
// @Summary      Remove a relationship
// @Description  Deletes the relationship with the given profile, whoever sent it and whatever its status.
// @Tags         relationships
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      int  true  "Other profile ID"
// @Success      204
// @Failure      400  {object}  ErrorResponse
// @Failure      401  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse "Relationship not found"
// @Router       /relationships/{id}/remove [post]
func (h *RelationHandler) RemoveRelationship(c *gin.Context) {
	h.deleteRelationship(c, hub.EventRelationshipRemoved, h.ledger.RemoveRelationship)
}

func (h *RelationHandler) deleteRelationship(c *gin.Context, eventType string, del func(ctx context.Context, actor profiles.Actor, otherID uint) error) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	otherID, ok := profileIDParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	me, err := h.directory.ProfileByUser(ctx, actor.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := del(ctx, actor, otherID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.hub.Publish(otherID, hub.Event{Type: eventType, Payload: RelationshipChange{ProfileID: me.ID}})
	c.Status(http.StatusNoContent)
}

// StreamEvents godoc
// @Summary      Stream relationship events
// @Description  Server-sent events about invitations and friendships involving the viewer.
// @Tags         relationships
// @Produce      text/event-stream
// @Security     BearerAuth
// @Success      200
// @Failure      401  {object}  ErrorResponse
// @Router       /profiles/me/events [get]
func (h *RelationHandler) StreamEvents(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	me, err := h.directory.ProfileByUser(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	client := hub.NewClient()
	h.hub.Subscribe(me.ID, client)
	defer h.hub.Unsubscribe(me.ID, client)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case msg, open := <-client:
			if !open {
				return
			}
			c.SSEvent("message", string(msg))
			c.Writer.Flush()
		case <-heartbeat.C:
			c.SSEvent("ping", "")
			c.Writer.Flush()
		}
	}
}
